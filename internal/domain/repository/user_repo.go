package repository

import (
	"github.com/google/uuid"

	"github.com/helloquitx/hqx-api/internal/domain/entity"
)

// UserRepository defines persistence for users.
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uuid.UUID) (*entity.User, error)
	// GetByProviderID looks a user up by a provider identity column. For
	// mastodon the instance origin participates in the key; for the other
	// providers it must be empty.
	GetByProviderID(provider, providerID, instance string) (*entity.User, error)
	Update(user *entity.User) error
	// UpdateFields applies a partial column update.
	UpdateFields(userID uuid.UUID, updates map[string]interface{}) error
	Count() (int64, error)
	// CountConnected counts users with a non-null identity for the provider.
	CountConnected(provider string) (int64, error)
}
