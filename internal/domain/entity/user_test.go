package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func strptr(s string) *string { return &s }

func TestUser_DisplayName(t *testing.T) {
	t.Run("prefers explicit name", func(t *testing.T) {
		user := User{Name: strptr("Alice"), TwitterUsername: strptr("alice_tw")}
		assert.Equal(t, "Alice", user.DisplayName())
	})

	t.Run("falls back to first provider username", func(t *testing.T) {
		user := User{MastodonUsername: strptr("alice@mastodon.social")}
		assert.Equal(t, "alice@mastodon.social", user.DisplayName())
	})

	t.Run("empty user", func(t *testing.T) {
		user := User{}
		assert.Equal(t, "", user.DisplayName())
	})
}

func TestSession_IsActive(t *testing.T) {
	now := time.Now()
	revoked := now.Add(-time.Minute)

	tests := []struct {
		name    string
		session Session
		want    bool
	}{
		{"live session", Session{ExpiresAt: now.Add(time.Hour)}, true},
		{"expired session", Session{ExpiresAt: now.Add(-time.Hour)}, false},
		{"revoked session", Session{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.session.IsActive(now))
		})
	}
}

func TestInvalidToken_IsTokenInvalidAt(t *testing.T) {
	watermark := InvalidToken{
		UserID:           uuid.New(),
		InvalidationTime: time.Now(),
	}

	assert.True(t, watermark.IsTokenInvalidAt(watermark.InvalidationTime.Add(-time.Second)),
		"tokens issued before the watermark are dead")
	assert.False(t, watermark.IsTokenInvalidAt(watermark.InvalidationTime.Add(time.Second)),
		"tokens issued after the watermark survive")
}
