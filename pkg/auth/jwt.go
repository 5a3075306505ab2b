package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/helloquitx/hqx-api/internal/domain/repository"
)

const signingKeyID = "hqx-v1"

// JWTService issues and validates session tokens. An in-memory map of
// per-user invalidation watermarks mirrors the invalid_tokens table so
// validation stays a memory lookup on the hot path.
type JWTService struct {
	secret           []byte
	sessionMaxAge    time.Duration
	invalidatedUsers map[uuid.UUID]time.Time
	mu               sync.RWMutex
	invalidTokenRepo repository.InvalidTokenRepository
	cleanupInterval  time.Duration
	appCtx           context.Context
}

// NewJWTService builds the service and warms the invalidation cache from the
// database.
func NewJWTService(
	secret string,
	sessionMaxAgeDays int,
	invalidTokenRepo repository.InvalidTokenRepository,
	cleanupInterval time.Duration,
	appCtx context.Context,
) (*JWTService, error) {
	if secret == "" {
		return nil, errors.New("JWT secret is required")
	}
	if invalidTokenRepo == nil {
		return nil, errors.New("InvalidTokenRepository is required for JWTService")
	}
	if appCtx == nil {
		appCtx = context.Background()
	}
	if sessionMaxAgeDays <= 0 {
		sessionMaxAgeDays = 30
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 1 * time.Hour
	}

	service := &JWTService{
		secret:           []byte(secret),
		sessionMaxAge:    time.Duration(sessionMaxAgeDays) * 24 * time.Hour,
		invalidatedUsers: make(map[uuid.UUID]time.Time),
		invalidTokenRepo: invalidTokenRepo,
		cleanupInterval:  cleanupInterval,
		appCtx:           appCtx,
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	service.loadInvalidatedTokensFromDB(startupCtx)

	go service.runCleanupRoutine()

	return service, nil
}

// SessionMaxAge returns the configured session horizon.
func (s *JWTService) SessionMaxAge() time.Duration {
	return s.sessionMaxAge
}

func (s *JWTService) loadInvalidatedTokensFromDB(ctx context.Context) {
	tokens, err := s.invalidTokenRepo.GetAllInvalidTokens(ctx)
	if err != nil {
		log.Printf("[JWT] Error loading invalidated tokens from DB: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range tokens {
		s.invalidatedUsers[token.UserID] = token.InvalidationTime
	}
	log.Printf("[JWT] Loaded %d invalidation watermarks from database", len(tokens))
}

// GenerateToken signs the claims. Registered claims are stamped here so
// callers only fill the session payload.
func (s *JWTService) GenerateToken(claims *SessionClaims) (string, error) {
	if claims.UserID == uuid.Nil {
		return "", errors.New("cannot generate a session token without a user id")
	}
	if claims.CSRFSecret == "" {
		return "", errors.New("CSRF secret cannot be empty for session tokens")
	}

	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionMaxAge)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    "hqx-api",
		Subject:   claims.UserID.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = signingKeyID

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		log.Printf("[JWT] Failed to sign session token for user %s: %v", claims.UserID, err)
		return "", err
	}
	return tokenString, nil
}

// ParseToken validates the signature, expiry, and the invalidation watermark.
func (s *JWTService) ParseToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, errors.New("token is malformed")
			case ve.Errors&jwt.ValidationErrorExpired != 0:
				return nil, errors.New("token is expired")
			case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
				return nil, errors.New("signature is invalid")
			default:
				return nil, errors.New("token validation failed")
			}
		}
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	// Watermark check: tokens issued at or before the user's invalidation
	// time are rejected even if unexpired.
	s.mu.RLock()
	invTime, exists := s.invalidatedUsers[claims.UserID]
	s.mu.RUnlock()
	if exists && claims.IssuedAt != nil && !claims.IssuedAt.Time.After(invTime) {
		log.Printf("[JWT] Token for user %s rejected: issued %v, invalidated at %v",
			claims.UserID, claims.IssuedAt.Time, invTime)
		return nil, errors.New("token has been invalidated")
	}

	return claims, nil
}

// InvalidateTokensForUser moves the user's watermark to now, revoking every
// previously issued token. The write-through to the database keeps the
// watermark across restarts.
func (s *JWTService) InvalidateTokensForUser(ctx context.Context, userID uuid.UUID) error {
	now := time.Now()

	s.mu.Lock()
	s.invalidatedUsers[userID] = now
	s.mu.Unlock()

	if err := s.invalidTokenRepo.AddInvalidToken(ctx, userID, now); err != nil {
		log.Printf("[JWT] Failed to persist invalidation watermark for user %s: %v", userID, err)
		return fmt.Errorf("failed to persist token invalidation: %w", err)
	}

	log.Printf("[JWT] Invalidated all tokens for user %s issued before %v", userID, now)
	return nil
}

// ResetInvalidationForUser clears the watermark, typically right before a new
// token is issued during sign-in.
func (s *JWTService) ResetInvalidationForUser(ctx context.Context, userID uuid.UUID) {
	s.mu.Lock()
	delete(s.invalidatedUsers, userID)
	s.mu.Unlock()

	if err := s.invalidTokenRepo.RemoveInvalidToken(ctx, userID); err != nil {
		log.Printf("[JWT] Failed to remove invalidation watermark for user %s: %v", userID, err)
	}
}

// CleanupInvalidatedUsers drops watermarks older than the session horizon:
// any token they would reject has expired on its own by then.
func (s *JWTService) CleanupInvalidatedUsers(ctx context.Context) error {
	cutoff := time.Now().Add(-s.sessionMaxAge)

	s.mu.Lock()
	removed := 0
	for userID, invTime := range s.invalidatedUsers {
		if invTime.Before(cutoff) {
			delete(s.invalidatedUsers, userID)
			removed++
		}
	}
	s.mu.Unlock()

	if err := s.invalidTokenRepo.CleanupOldInvalidTokens(ctx, cutoff); err != nil {
		return fmt.Errorf("failed to cleanup invalidation watermarks: %w", err)
	}
	if removed > 0 {
		log.Printf("[JWT] Cleaned up %d stale invalidation watermarks", removed)
	}
	return nil
}

func (s *JWTService) runCleanupRoutine() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := s.CleanupInvalidatedUsers(ctx); err != nil {
				log.Printf("[JWT] Periodic watermark cleanup failed: %v", err)
			}
			cancel()
		case <-s.appCtx.Done():
			return
		}
	}
}
