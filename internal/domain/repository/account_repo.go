package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/helloquitx/hqx-api/internal/domain/entity"
)

// AccountRepository stores provider account links.
type AccountRepository interface {
	// Link inserts the account row. When another row already holds the same
	// (provider, provider_account_id, provider_instance) key the insert fails
	// with apperrors.ErrConflict and the caller re-resolves.
	Link(account *entity.Account) error
	// LinkNewUser creates the user row and its first account link in one
	// transaction; a key collision rolls both back with apperrors.ErrConflict.
	LinkNewUser(user *entity.User, account *entity.Account) error
	GetByProviderAccount(provider, providerAccountID, instance string) (*entity.Account, error)
	GetByUserAndProvider(userID uuid.UUID, provider string) (*entity.Account, error)
	ListByUser(userID uuid.UUID) ([]entity.Account, error)
	// UpdateTokens refreshes the stored (already encrypted) token material.
	UpdateTokens(id uuid.UUID, accessToken, refreshToken []byte, expiresAt *time.Time) error
	DeleteByUserAndProvider(userID uuid.UUID, provider string) error
}
