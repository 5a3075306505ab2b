package postgres

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/helloquitx/hqx-api/internal/domain/entity"
	apperrors "github.com/helloquitx/hqx-api/internal/pkg/errors"
)

// UserRepo implements repository.UserRepository.
type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(user *entity.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepo) GetByID(id uuid.UUID) (*entity.User, error) {
	var user entity.User
	err := r.db.First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) GetByProviderID(provider, providerID, instance string) (*entity.User, error) {
	var user entity.User
	query := r.db
	switch provider {
	case "twitter":
		query = query.Where("twitter_id = ?", providerID)
	case "mastodon":
		query = query.Where("mastodon_id = ? AND mastodon_instance = ?", providerID, instance)
	case "bluesky":
		query = query.Where("bluesky_id = ?", providerID)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", apperrors.ErrValidation, provider)
	}

	err := query.First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by %s id: %w", provider, err)
	}
	return &user, nil
}

func (r *UserRepo) Update(user *entity.User) error {
	return r.db.Save(user).Error
}

func (r *UserRepo) UpdateFields(userID uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	result := r.db.Model(&entity.User{}).Where("id = ?", userID).Updates(updates)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return apperrors.ErrConflict
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *UserRepo) Count() (int64, error) {
	var count int64
	err := r.db.Model(&entity.User{}).Count(&count).Error
	return count, err
}

func (r *UserRepo) CountConnected(provider string) (int64, error) {
	var count int64
	query := r.db.Model(&entity.User{})
	switch provider {
	case "twitter":
		query = query.Where("twitter_id IS NOT NULL")
	case "mastodon":
		query = query.Where("mastodon_id IS NOT NULL")
	case "bluesky":
		query = query.Where("bluesky_id IS NOT NULL")
	default:
		return 0, fmt.Errorf("%w: unknown provider %q", apperrors.ErrValidation, provider)
	}
	err := query.Count(&count).Error
	return count, err
}
