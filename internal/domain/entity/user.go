package entity

import (
	"time"

	"github.com/google/uuid"
)

// User is a local account assembled from one or more linked social identities.
// Provider columns are nullable snapshots of the last profile seen for that
// provider; the six consent flags live only here and never in tokens as a
// source of truth.
type User struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name  *string   `gorm:"size:255" json:"name,omitempty"`
	Email *string   `gorm:"size:100;uniqueIndex" json:"email,omitempty"`

	TwitterID       *string `gorm:"size:40;uniqueIndex" json:"twitter_id,omitempty"`
	TwitterUsername *string `gorm:"size:255" json:"twitter_username,omitempty"`
	TwitterImage    *string `gorm:"size:500" json:"twitter_image,omitempty"`

	MastodonID       *string `gorm:"size:40;index:idx_users_mastodon,priority:1" json:"mastodon_id,omitempty"`
	MastodonUsername *string `gorm:"size:255" json:"mastodon_username,omitempty"`
	MastodonImage    *string `gorm:"size:500" json:"mastodon_image,omitempty"`
	MastodonInstance *string `gorm:"size:255;index:idx_users_mastodon,priority:2" json:"mastodon_instance,omitempty"`

	BlueskyID       *string `gorm:"size:255;uniqueIndex" json:"bluesky_id,omitempty"`
	BlueskyUsername *string `gorm:"size:255" json:"bluesky_username,omitempty"`
	BlueskyImage    *string `gorm:"size:500" json:"bluesky_image,omitempty"`

	HasOnboarded       bool `gorm:"not null;default:false" json:"has_onboarded"`
	HqxNewsletter      bool `gorm:"not null;default:false" json:"hqx_newsletter"`
	OepAccepted        bool `gorm:"not null;default:false" json:"oep_accepted"`
	ResearchAccepted   bool `gorm:"not null;default:false" json:"research_accepted"`
	HaveSeenNewsletter bool `gorm:"not null;default:false" json:"have_seen_newsletter"`
	AutomaticReconnect bool `gorm:"not null;default:false" json:"automatic_reconnect"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName picks the best human-readable name available.
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	for _, v := range []*string{u.TwitterUsername, u.MastodonUsername, u.BlueskyUsername} {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}
