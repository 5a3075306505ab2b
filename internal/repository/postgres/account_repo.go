package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/helloquitx/hqx-api/internal/domain/entity"
	apperrors "github.com/helloquitx/hqx-api/internal/pkg/errors"
)

// AccountRepo implements repository.AccountRepository. The unique index on
// (provider, provider_account_id, provider_instance) makes Link the
// insert-or-fail arena that serializes concurrent first-link attempts.
type AccountRepo struct {
	db *gorm.DB
}

func NewAccountRepo(db *gorm.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Link(account *entity.Account) error {
	if err := r.db.Create(account).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s account %s already linked",
				apperrors.ErrConflict, account.Provider, account.ProviderAccountID)
		}
		return fmt.Errorf("failed to link account: %w", err)
	}
	return nil
}

func (r *AccountRepo) LinkNewUser(user *entity.User, account *entity.Account) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(account).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s account %s already linked",
				apperrors.ErrConflict, account.Provider, account.ProviderAccountID)
		}
		return fmt.Errorf("failed to create user with account link: %w", err)
	}
	return nil
}

func (r *AccountRepo) GetByProviderAccount(provider, providerAccountID, instance string) (*entity.Account, error) {
	var account entity.Account
	err := r.db.
		Where("provider = ? AND provider_account_id = ? AND provider_instance = ?",
			provider, providerAccountID, instance).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by provider key: %w", err)
	}
	return &account, nil
}

func (r *AccountRepo) GetByUserAndProvider(userID uuid.UUID, provider string) (*entity.Account, error) {
	var account entity.Account
	err := r.db.
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by user/provider: %w", err)
	}
	return &account, nil
}

func (r *AccountRepo) ListByUser(userID uuid.UUID) ([]entity.Account, error) {
	var accounts []entity.Account
	err := r.db.Where("user_id = ?", userID).Order("created_at").Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts for user: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepo) UpdateTokens(id uuid.UUID, accessToken, refreshToken []byte, expiresAt *time.Time) error {
	updates := map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_at":    expiresAt,
	}
	result := r.db.Model(&entity.Account{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update account tokens: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *AccountRepo) DeleteByUserAndProvider(userID uuid.UUID, provider string) error {
	return r.db.
		Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&entity.Account{}).Error
}

// isUniqueViolation detects a Postgres unique violation (23505) from both the
// pgx and lib/pq drivers.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
