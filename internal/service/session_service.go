package service

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/helloquitx/hqx-api/internal/domain/entity"
	"github.com/helloquitx/hqx-api/internal/domain/repository"
	apperrors "github.com/helloquitx/hqx-api/internal/pkg/errors"
	"github.com/helloquitx/hqx-api/internal/provider"
	"github.com/helloquitx/hqx-api/pkg/auth"
)

// SessionUser is the outward user shape of a materialized session.
type SessionUser struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`

	TwitterID       string `json:"twitter_id,omitempty"`
	TwitterUsername string `json:"twitter_username,omitempty"`
	TwitterImage    string `json:"twitter_image,omitempty"`

	MastodonID       string `json:"mastodon_id,omitempty"`
	MastodonUsername string `json:"mastodon_username,omitempty"`
	MastodonImage    string `json:"mastodon_image,omitempty"`
	MastodonInstance string `json:"mastodon_instance,omitempty"`

	BlueskyID       string `json:"bluesky_id,omitempty"`
	BlueskyUsername string `json:"bluesky_username,omitempty"`
	BlueskyImage    string `json:"bluesky_image,omitempty"`

	HasOnboarded       bool `json:"has_onboarded"`
	HqxNewsletter      bool `json:"hqx_newsletter"`
	OepAccepted        bool `json:"oep_accepted"`
	ResearchAccepted   bool `json:"research_accepted"`
	HaveSeenNewsletter bool `json:"have_seen_newsletter"`
	AutomaticReconnect bool `json:"automatic_reconnect"`
}

// MaterializedSession is what /api/auth/session returns.
type MaterializedSession struct {
	User    SessionUser `json:"user"`
	Expires time.Time   `json:"expires"`
}

// SessionService turns authentication events into session claims and claims
// into outward sessions.
type SessionService struct {
	userRepo repository.UserRepository
}

func NewSessionService(userRepo repository.UserRepository) *SessionService {
	return &SessionService{userRepo: userRepo}
}

// EnrichToken applies one authentication event to the claims, in place.
// The claims are an accumulator: each event writes only its own provider's
// fields, so a user who links twitter then mastodon ends up with both sets.
func (s *SessionService) EnrichToken(claims *auth.SessionClaims, user *entity.User, providerName string, p *provider.Profile) *auth.SessionClaims {
	if claims.UserID == uuid.Nil && user != nil {
		claims.UserID = user.ID
		claims.HasOnboarded = user.HasOnboarded
		claims.HqxNewsletter = user.HqxNewsletter
		claims.OepAccepted = user.OepAccepted
		claims.ResearchAccepted = user.ResearchAccepted
		claims.HaveSeenNewsletter = user.HaveSeenNewsletter
		claims.AutomaticReconnect = user.AutomaticReconnect
	}

	if p == nil {
		return claims
	}

	switch providerName {
	case provider.Bluesky:
		// The credential exchange already produced a fully shaped identity;
		// the store is its system of record, so the claims are left alone.
	case provider.Twitter:
		claims.TwitterID = p.ProviderAccountID
		claims.TwitterUsername = p.Username
		claims.TwitterImage = p.AvatarURL
		claims.Name = p.DisplayName
	case provider.Mastodon:
		claims.MastodonID = p.ProviderAccountID
		claims.MastodonUsername = p.Username
		claims.MastodonImage = p.AvatarURL
		claims.MastodonInstance = p.InstanceOrigin
		claims.Name = p.DisplayName
	}

	return claims
}

// Materialize merges the claims with the stored user into the outward
// session. A missing user degrades to a token-only session instead of
// failing; a removed user must not lock out an otherwise valid token.
//
// The per-field policy is asymmetric on purpose and pinned by tests:
// consent flags always come from the store, twitter/bluesky fields prefer the
// claims (the live exchange may be fresher than an unpersisted write), and
// mastodon fields always come from the store.
func (s *SessionService) Materialize(claims *auth.SessionClaims) *MaterializedSession {
	session := &MaterializedSession{
		User: SessionUser{ID: claims.UserID, Name: claims.Name},
	}
	if claims.ExpiresAt != nil {
		session.Expires = claims.ExpiresAt.Time
	}
	if claims.UserID == uuid.Nil {
		return session
	}

	user, err := s.userRepo.GetByID(claims.UserID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[Session] Failed to load user %s for materialization: %v", claims.UserID, err)
		}
		return session
	}

	session.User = SessionUser{
		ID:   claims.UserID,
		Name: firstNonEmpty(claims.Name, deref(user.Name)),

		HasOnboarded:       user.HasOnboarded,
		HqxNewsletter:      user.HqxNewsletter,
		OepAccepted:        user.OepAccepted,
		ResearchAccepted:   user.ResearchAccepted,
		HaveSeenNewsletter: user.HaveSeenNewsletter,
		AutomaticReconnect: user.AutomaticReconnect,

		TwitterID:       firstNonEmpty(claims.TwitterID, deref(user.TwitterID)),
		TwitterUsername: firstNonEmpty(claims.TwitterUsername, deref(user.TwitterUsername)),
		TwitterImage:    firstNonEmpty(claims.TwitterImage, deref(user.TwitterImage)),

		MastodonID:       deref(user.MastodonID),
		MastodonUsername: deref(user.MastodonUsername),
		MastodonImage:    deref(user.MastodonImage),
		MastodonInstance: deref(user.MastodonInstance),

		BlueskyID:       firstNonEmpty(claims.BlueskyID, deref(user.BlueskyID)),
		BlueskyUsername: firstNonEmpty(claims.BlueskyUsername, deref(user.BlueskyUsername)),
		BlueskyImage:    firstNonEmpty(claims.BlueskyImage, deref(user.BlueskyImage)),
	}
	return session
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
