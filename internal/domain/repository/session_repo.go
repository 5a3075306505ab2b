package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/helloquitx/hqx-api/internal/domain/entity"
)

// SessionRepository tracks issued session tokens by hash.
type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*entity.Session, error)
	RevokeByTokenHash(ctx context.Context, tokenHash string, revokedAt time.Time) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, revokedAt time.Time) error
	// DeleteExpired removes sessions whose expiry passed before the cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
