package auth

import (
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// SessionClaims is the session token payload. Provider snapshot fields
// accumulate across linking events over the token's life; a user who links
// twitter then mastodon ends up with both sets. The consent flags are seeded
// once at first issue and are a convenience copy only, the store stays the
// source of truth for them.
type SessionClaims struct {
	UserID uuid.UUID `json:"id"`
	Name   string    `json:"name,omitempty"`

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

	CSRFSecret string `json:"csrf_secret,omitempty"`

	jwt.RegisteredClaims
}
