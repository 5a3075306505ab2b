package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helloquitx/hqx-api/internal/domain/entity"
	"github.com/helloquitx/hqx-api/internal/service"
	"github.com/helloquitx/hqx-api/pkg/auth"
)

func newUserRouter(stack *authStack) *gin.Engine {
	userService := service.NewUserService(stack.userRepo, &service.NoopEmailService{})
	sessionService := service.NewSessionService(stack.userRepo)
	handler := NewUserHandler(userService, sessionService)

	router := gin.New()
	me := router.Group("/api/users/me", stack.authMiddleware.RequireAuth())
	me.GET("", handler.GetMe)
	me.PUT("/preferences", stack.authMiddleware.RequireCSRF(), handler.UpdatePreferences)
	return router
}

func TestUpdatePreferences_RequiresCSRF(t *testing.T) {
	// Arrange
	stack := newAuthStack(t)
	userID := uuid.New()
	token := stack.signedInToken(t, userID, "csrf-secret")
	router := newUserRouter(stack)

	// Act: no X-CSRF-Token header.
	w := doJSON(router, "PUT", "/api/users/me/preferences",
		map[string]bool{"hqx_newsletter": true},
		func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: auth.SessionTokenCookie, Value: token})
		})

	// Assert
	assert.Equal(t, http.StatusForbidden, w.Code)
	stack.userRepo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything)
}

func TestUpdatePreferences_WritesOnlyProvidedFlags(t *testing.T) {
	// Arrange
	stack := newAuthStack(t)
	userID := uuid.New()
	csrfSecret := auth.GenerateCSRFSecret()
	token := stack.signedInToken(t, userID, csrfSecret)

	stack.userRepo.On("GetByID", userID).Return(&entity.User{ID: userID}, nil).Once()
	stack.userRepo.On("UpdateFields", userID, mock.MatchedBy(func(updates map[string]interface{}) bool {
		onboarded, ok := updates["has_onboarded"]
		_, hasNewsletter := updates["hqx_newsletter"]
		return ok && onboarded == true && !hasNewsletter && len(updates) == 1
	})).Return(nil).Once()
	stack.userRepo.On("GetByID", userID).Return(&entity.User{ID: userID, HasOnboarded: true}, nil).Once()

	router := newUserRouter(stack)

	// Act
	w := doJSON(router, "PUT", "/api/users/me/preferences",
		map[string]bool{"has_onboarded": true},
		func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: auth.SessionTokenCookie, Value: token})
			r.Header.Set(auth.CSRFHeader, auth.HashCSRFSecret(csrfSecret))
		})

	// Assert
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := parseJSONResponse(t, w)
	user := resp["user"].(map[string]interface{})
	assert.Equal(t, true, user["has_onboarded"])
	assert.Equal(t, false, user["hqx_newsletter"])
	stack.userRepo.AssertExpectations(t)
}

func TestUpdatePreferences_StoresEmail(t *testing.T) {
	// Arrange
	stack := newAuthStack(t)
	userID := uuid.New()
	email := "grace@example.com"
	csrfSecret := auth.GenerateCSRFSecret()
	token := stack.signedInToken(t, userID, csrfSecret)

	stack.userRepo.On("GetByID", userID).Return(&entity.User{ID: userID}, nil).Once()
	stack.userRepo.On("UpdateFields", userID, mock.MatchedBy(func(updates map[string]interface{}) bool {
		return updates["email"] == email
	})).Return(nil).Once()
	stack.userRepo.On("GetByID", userID).Return(&entity.User{ID: userID, Email: &email}, nil).Once()

	router := newUserRouter(stack)

	// Act
	w := doJSON(router, "PUT", "/api/users/me/preferences",
		map[string]string{"email": email},
		func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: auth.SessionTokenCookie, Value: token})
			r.Header.Set(auth.CSRFHeader, auth.HashCSRFSecret(csrfSecret))
		})

	// Assert
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := parseJSONResponse(t, w)
	user := resp["user"].(map[string]interface{})
	assert.Equal(t, email, user["email"])
	stack.userRepo.AssertExpectations(t)
}

func TestUpdatePreferences_RejectsMalformedEmail(t *testing.T) {
	stack := newAuthStack(t)
	userID := uuid.New()
	csrfSecret := auth.GenerateCSRFSecret()
	token := stack.signedInToken(t, userID, csrfSecret)
	router := newUserRouter(stack)

	w := doJSON(router, "PUT", "/api/users/me/preferences",
		map[string]string{"email": "not-an-address"},
		func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: auth.SessionTokenCookie, Value: token})
			r.Header.Set(auth.CSRFHeader, auth.HashCSRFSecret(csrfSecret))
		})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	stack.userRepo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything)
}

func TestGetMe_ReturnsStoreView(t *testing.T) {
	stack := newAuthStack(t)
	userID := uuid.New()
	handle := "alice@mastodon.social"
	instance := "https://mastodon.social"
	stack.userRepo.On("GetByID", userID).Return(&entity.User{
		ID:               userID,
		MastodonUsername: &handle,
		MastodonInstance: &instance,
	}, nil)
	token := stack.signedInToken(t, userID, "csrf-secret")
	router := newUserRouter(stack)

	w := doJSON(router, "GET", "/api/users/me", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: auth.SessionTokenCookie, Value: token})
	})

	require.Equal(t, http.StatusOK, w.Code)
	resp := parseJSONResponse(t, w)
	user := resp["user"].(map[string]interface{})
	assert.Equal(t, handle, user["mastodon_username"])
	assert.Equal(t, instance, user["mastodon_instance"])
}
