package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/helloquitx/hqx-api/internal/domain/entity"
)

// InvalidTokenRepository stores per-user token invalidation watermarks.
type InvalidTokenRepository interface {
	// AddInvalidToken records an invalidation watermark for the user.
	AddInvalidToken(ctx context.Context, userID uuid.UUID, invalidationTime time.Time) error

	// RemoveInvalidToken clears the user's watermark.
	RemoveInvalidToken(ctx context.Context, userID uuid.UUID) error

	// IsTokenInvalid reports whether a token issued at the given time falls
	// under the user's watermark.
	IsTokenInvalid(ctx context.Context, userID uuid.UUID, tokenIssuedAt time.Time) (bool, error)

	// GetAllInvalidTokens returns every watermark, used to warm the in-memory
	// cache at startup.
	GetAllInvalidTokens(ctx context.Context) ([]entity.InvalidToken, error)

	// CleanupOldInvalidTokens removes watermarks older than the cutoff.
	CleanupOldInvalidTokens(ctx context.Context, cutoffTime time.Time) error
}
