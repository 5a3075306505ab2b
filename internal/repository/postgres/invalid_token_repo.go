package postgres

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/helloquitx/hqx-api/internal/domain/entity"
)

// InvalidTokenRepo implements repository.InvalidTokenRepository.
type InvalidTokenRepo struct {
	db *gorm.DB
}

func NewInvalidTokenRepo(db *gorm.DB) *InvalidTokenRepo {
	return &InvalidTokenRepo{db: db}
}

// AddInvalidToken upserts the user's invalidation watermark.
func (r *InvalidTokenRepo) AddInvalidToken(ctx context.Context, userID uuid.UUID, invalidationTime time.Time) error {
	err := r.db.WithContext(ctx).Exec(`
		INSERT INTO invalid_tokens (user_id, invalidation_time)
		VALUES (?, ?)
		ON CONFLICT (user_id)
		DO UPDATE SET invalidation_time = ?
	`, userID, invalidationTime, invalidationTime).Error

	if err != nil {
		log.Printf("[InvalidTokens] Failed to add watermark for user %s: %v", userID, err)
		return err
	}
	return nil
}

func (r *InvalidTokenRepo) RemoveInvalidToken(ctx context.Context, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&entity.InvalidToken{})
	if result.Error != nil {
		log.Printf("[InvalidTokens] Failed to remove watermark for user %s: %v", userID, result.Error)
		return result.Error
	}
	return nil
}

func (r *InvalidTokenRepo) IsTokenInvalid(ctx context.Context, userID uuid.UUID, tokenIssuedAt time.Time) (bool, error) {
	var record entity.InvalidToken
	err := r.db.WithContext(ctx).First(&record, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return record.IsTokenInvalidAt(tokenIssuedAt), nil
}

func (r *InvalidTokenRepo) GetAllInvalidTokens(ctx context.Context) ([]entity.InvalidToken, error) {
	var records []entity.InvalidToken
	if err := r.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *InvalidTokenRepo) CleanupOldInvalidTokens(ctx context.Context, cutoffTime time.Time) error {
	result := r.db.WithContext(ctx).
		Where("invalidation_time < ?", cutoffTime).
		Delete(&entity.InvalidToken{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("[InvalidTokens] Cleaned up %d stale watermarks", result.RowsAffected)
	}
	return nil
}
