package entity

import (
	"time"

	"github.com/google/uuid"
)

// Account links a user to one external provider account. Uniqueness over
// (provider, provider_account_id, provider_instance) is enforced by the
// database so a concurrent double sign-in resolves to exactly one row.
// ProviderInstance is the mastodon instance origin and stays empty for the
// other providers.
type Account struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Type              string    `gorm:"size:20;not null" json:"type"` // oauth, credentials
	Provider          string    `gorm:"size:20;not null;uniqueIndex:idx_provider_account,priority:1" json:"provider"`
	ProviderAccountID string    `gorm:"size:255;not null;uniqueIndex:idx_provider_account,priority:2" json:"provider_account_id"`
	ProviderInstance  string    `gorm:"size:255;not null;default:'';uniqueIndex:idx_provider_account,priority:3" json:"provider_instance,omitempty"`

	// Tokens are secretbox-encrypted before they reach this struct.
	AccessToken  []byte     `gorm:"type:bytea" json:"-"`
	RefreshToken []byte     `gorm:"type:bytea" json:"-"`
	TokenType    string     `gorm:"size:40;default:''" json:"token_type,omitempty"`
	Scope        string     `gorm:"size:500;default:''" json:"scope,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}
