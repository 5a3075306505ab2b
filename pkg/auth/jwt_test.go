package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helloquitx/hqx-api/internal/domain/entity"
)

type MockInvalidTokenRepository struct {
	mock.Mock
}

func (m *MockInvalidTokenRepository) AddInvalidToken(ctx context.Context, userID uuid.UUID, invalidationTime time.Time) error {
	args := m.Called(ctx, userID, invalidationTime)
	return args.Error(0)
}

func (m *MockInvalidTokenRepository) RemoveInvalidToken(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockInvalidTokenRepository) IsTokenInvalid(ctx context.Context, userID uuid.UUID, tokenIssuedAt time.Time) (bool, error) {
	args := m.Called(ctx, userID, tokenIssuedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvalidTokenRepository) GetAllInvalidTokens(ctx context.Context) ([]entity.InvalidToken, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.InvalidToken), args.Error(1)
}

func (m *MockInvalidTokenRepository) CleanupOldInvalidTokens(ctx context.Context, cutoffTime time.Time) error {
	args := m.Called(ctx, cutoffTime)
	return args.Error(0)
}

func newTestJWTService(t *testing.T, repo *MockInvalidTokenRepository) *JWTService {
	t.Helper()
	repo.On("GetAllInvalidTokens", mock.Anything).Return([]entity.InvalidToken{}, nil).Maybe()

	svc, err := NewJWTService("test-secret", 30, repo, time.Hour, context.Background())
	require.NoError(t, err)
	return svc
}

func TestJWTService_GenerateAndParse(t *testing.T) {
	// Arrange
	repo := new(MockInvalidTokenRepository)
	svc := newTestJWTService(t, repo)
	userID := uuid.New()

	claims := &SessionClaims{
		UserID:          userID,
		Name:            "Ada",
		TwitterID:       "12345",
		TwitterUsername: "ada",
		HasOnboarded:    true,
		CSRFSecret:      GenerateCSRFSecret(),
	}

	// Act
	token, err := svc.GenerateToken(claims)
	require.NoError(t, err)
	parsed, err := svc.ParseToken(token)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, userID, parsed.UserID)
	assert.Equal(t, "Ada", parsed.Name)
	assert.Equal(t, "12345", parsed.TwitterID)
	assert.True(t, parsed.HasOnboarded)
	assert.Equal(t, claims.CSRFSecret, parsed.CSRFSecret)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), parsed.ExpiresAt.Time, time.Minute,
		"session horizon is 30 days")
}

func TestJWTService_GenerateToken_RequiresCSRFSecret(t *testing.T) {
	repo := new(MockInvalidTokenRepository)
	svc := newTestJWTService(t, repo)

	_, err := svc.GenerateToken(&SessionClaims{UserID: uuid.New()})

	assert.Error(t, err)
}

func TestJWTService_ParseToken_WrongSecret(t *testing.T) {
	repo := new(MockInvalidTokenRepository)
	svc := newTestJWTService(t, repo)
	other, err := NewJWTService("other-secret", 30, repo, time.Hour, context.Background())
	require.NoError(t, err)

	token, err := other.GenerateToken(&SessionClaims{UserID: uuid.New(), CSRFSecret: "s"})
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	assert.EqualError(t, err, "signature is invalid")
}

func TestJWTService_InvalidateTokensForUser(t *testing.T) {
	// Arrange
	repo := new(MockInvalidTokenRepository)
	svc := newTestJWTService(t, repo)
	userID := uuid.New()
	repo.On("AddInvalidToken", mock.Anything, userID, mock.AnythingOfType("time.Time")).Return(nil)

	token, err := svc.GenerateToken(&SessionClaims{UserID: userID, CSRFSecret: "s"})
	require.NoError(t, err)

	// Act: logout revokes everything issued so far.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, svc.InvalidateTokensForUser(context.Background(), userID))

	// Assert
	_, err = svc.ParseToken(token)
	assert.EqualError(t, err, "token has been invalidated")
	repo.AssertExpectations(t)
}

func TestJWTService_ResetInvalidationAllowsNewTokens(t *testing.T) {
	repo := new(MockInvalidTokenRepository)
	svc := newTestJWTService(t, repo)
	userID := uuid.New()
	repo.On("AddInvalidToken", mock.Anything, userID, mock.AnythingOfType("time.Time")).Return(nil)
	repo.On("RemoveInvalidToken", mock.Anything, userID).Return(nil)

	require.NoError(t, svc.InvalidateTokensForUser(context.Background(), userID))
	svc.ResetInvalidationForUser(context.Background(), userID)

	token, err := svc.GenerateToken(&SessionClaims{UserID: userID, CSRFSecret: "s"})
	require.NoError(t, err)
	_, err = svc.ParseToken(token)
	assert.NoError(t, err, "a fresh sign-in after logout must produce a usable token")
}
