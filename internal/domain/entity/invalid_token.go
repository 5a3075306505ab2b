package entity

import (
	"time"

	"github.com/google/uuid"
)

// InvalidToken is a per-user invalidation watermark. Any session token issued
// before InvalidationTime is rejected even if its own expiry has not passed.
type InvalidToken struct {
	UserID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	InvalidationTime time.Time `gorm:"not null" json:"invalidation_time"`
}

func (InvalidToken) TableName() string {
	return "invalid_tokens"
}

// IsTokenInvalidAt reports whether a token issued at the given time falls
// under this watermark.
func (it *InvalidToken) IsTokenInvalidAt(issuedAt time.Time) bool {
	return issuedAt.Before(it.InvalidationTime)
}
