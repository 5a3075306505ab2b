package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/helloquitx/hqx-api/internal/domain/entity"
	"github.com/helloquitx/hqx-api/internal/domain/repository"
	"github.com/helloquitx/hqx-api/internal/metrics"
	apperrors "github.com/helloquitx/hqx-api/internal/pkg/errors"
	"github.com/helloquitx/hqx-api/internal/provider"
	"github.com/helloquitx/hqx-api/pkg/auth"
)

// BlueskyAuthenticator performs the direct credential exchange.
type BlueskyAuthenticator interface {
	AuthenticateWithCredentials(ctx context.Context, identifier, password string) (*provider.Identity, error)
}

// SessionNotifier pushes session lifecycle events to connected clients.
type SessionNotifier interface {
	NotifySessionRevoked(userID uuid.UUID)
}

// ExchangeError is a credential exchange rejection the provider client did
// not classify. It matches apperrors.ErrUnauthorized but keeps the upstream
// message so handlers can surface it.
type ExchangeError struct {
	cause error
}

func (e *ExchangeError) Error() string {
	if e.cause == nil {
		return ""
	}
	return e.cause.Error()
}

func (e *ExchangeError) Unwrap() []error {
	return []error{apperrors.ErrUnauthorized, e.cause}
}

// SignInResult is a completed sign-in: the persisted user, the signed session
// token, and the CSRF hash the client must echo on state-changing requests.
type SignInResult struct {
	User      *entity.User
	Claims    *auth.SessionClaims
	Token     string
	CSRFToken string
}

// AuthService orchestrates sign-in events end to end: exchange or normalize,
// resolve, persist, enrich, issue.
type AuthService struct {
	bluesky     BlueskyAuthenticator
	identity    *IdentityService
	sessions    *SessionService
	jwtService  *auth.JWTService
	sessionRepo repository.SessionRepository
	notifier    SessionNotifier
	metrics     *metrics.Collector
}

func NewAuthService(
	bluesky BlueskyAuthenticator,
	identity *IdentityService,
	sessions *SessionService,
	jwtService *auth.JWTService,
	sessionRepo repository.SessionRepository,
	notifier SessionNotifier,
	collector *metrics.Collector,
) *AuthService {
	return &AuthService{
		bluesky:     bluesky,
		identity:    identity,
		sessions:    sessions,
		jwtService:  jwtService,
		sessionRepo: sessionRepo,
		notifier:    notifier,
		metrics:     collector,
	}
}

// SignInWithBluesky runs the credential exchange and links the resulting
// identity. existingClaims carries the current session when the caller is
// already signed in and wants to attach bluesky to their account.
func (s *AuthService) SignInWithBluesky(ctx context.Context, existingClaims *auth.SessionClaims, identifier, password string) (*SignInResult, error) {
	start := time.Now()
	identity, err := s.bluesky.AuthenticateWithCredentials(ctx, identifier, password)
	if s.metrics != nil {
		s.metrics.RecordBlueskyExchange(exchangeResultCode(err), time.Since(start))
	}
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrInvalidCredentials),
			errors.Is(err, provider.ErrServiceUnreachable),
			errors.Is(err, provider.ErrRateLimited):
			return nil, err
		default:
			// The exchange rejected the attempt for a reason we do not
			// classify. Treat it as a failed authentication but keep the
			// upstream message for the response body.
			return nil, &ExchangeError{cause: err}
		}
	}

	tokens := &ProviderTokens{
		Type:         "credentials",
		AccessToken:  identity.AccessToken,
		RefreshToken: identity.RefreshToken,
		TokenType:    "bearer",
	}
	return s.completeSignIn(ctx, existingClaims, provider.Bluesky, &identity.Profile, tokens)
}

// SignInWithProfile handles a redirect-style provider callback: the raw
// profile payload is normalized, then linked like any other event.
func (s *AuthService) SignInWithProfile(ctx context.Context, existingClaims *auth.SessionClaims, providerName string, rawProfile []byte, tokens *ProviderTokens) (*SignInResult, error) {
	profile, err := provider.Normalize(providerName, rawProfile)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordNormalizeFailure(providerName, normalizeFailureReason(err))
		}
		return nil, err
	}
	return s.completeSignIn(ctx, existingClaims, providerName, profile, tokens)
}

func (s *AuthService) completeSignIn(ctx context.Context, existingClaims *auth.SessionClaims, providerName string, profile *provider.Profile, tokens *ProviderTokens) (*SignInResult, error) {
	var currentUserID *uuid.UUID
	if existingClaims != nil && existingClaims.UserID != uuid.Nil {
		id := existingClaims.UserID
		currentUserID = &id
	}

	resolution, err := s.identity.Resolve(currentUserID, profile)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordSignIn(providerName, resolution.Kind.String())
		if resolution.Kind == ResolutionConflict {
			s.metrics.RecordConflict(providerName)
		}
	}

	user, err := s.identity.PersistLink(resolution, tokens)
	if err != nil {
		return nil, err
	}

	// Enrichment. A sign-in into an existing session keeps the claims it
	// already accumulated from earlier providers.
	claims := &auth.SessionClaims{}
	if existingClaims != nil {
		copied := *existingClaims
		claims = &copied
	}
	claims = s.sessions.EnrichToken(claims, user, providerName, profile)

	return s.issueSession(ctx, user, claims)
}

func (s *AuthService) issueSession(ctx context.Context, user *entity.User, claims *auth.SessionClaims) (*SignInResult, error) {
	csrfSecret := auth.GenerateCSRFSecret()
	claims.CSRFSecret = csrfSecret

	// A fresh sign-in supersedes any logout watermark.
	s.jwtService.ResetInvalidationForUser(ctx, user.ID)

	token, err := s.jwtService.GenerateToken(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	session := &entity.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: HashSessionToken(token),
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		// The token is already signed and valid on its own; a failed session
		// row only weakens server-side revocation, it must not block sign-in.
		log.Printf("[Auth] Failed to record session row for user %s: %v", user.ID, err)
	}

	if s.metrics != nil {
		s.metrics.RecordSessionIssued()
	}

	return &SignInResult{
		User:      user,
		Claims:    claims,
		Token:     token,
		CSRFToken: auth.HashCSRFSecret(csrfSecret),
	}, nil
}

// Logout revokes the user's sessions server-side and moves the invalidation
// watermark so every outstanding token dies with them.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	now := time.Now()
	if err := s.sessionRepo.RevokeAllForUser(ctx, userID, now); err != nil {
		return fmt.Errorf("failed to revoke sessions for user %s: %w", userID, err)
	}
	if err := s.jwtService.InvalidateTokensForUser(ctx, userID); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.NotifySessionRevoked(userID)
	}
	if s.metrics != nil {
		s.metrics.RecordLogout()
	}
	log.Printf("[Auth] User %s logged out, all sessions revoked", userID)
	return nil
}

// HashSessionToken derives the storable fingerprint of a session token.
func HashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func exchangeResultCode(err error) int {
	switch {
	case err == nil:
		return 200
	case errors.Is(err, provider.ErrInvalidCredentials):
		return 401
	case errors.Is(err, provider.ErrServiceUnreachable):
		return 503
	case errors.Is(err, provider.ErrRateLimited):
		return 429
	default:
		return 500
	}
}

func normalizeFailureReason(err error) string {
	switch {
	case errors.Is(err, provider.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, provider.ErrInvalidProfile):
		return "invalid_profile"
	default:
		return "other"
	}
}
