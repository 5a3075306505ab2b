package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helloquitx/hqx-api/internal/middleware"
	apperrors "github.com/helloquitx/hqx-api/internal/pkg/errors"
	"github.com/helloquitx/hqx-api/internal/provider"
	"github.com/helloquitx/hqx-api/internal/service"
	"github.com/helloquitx/hqx-api/pkg/auth"
)

// AuthHandler handles the sign-in, session, and logout endpoints.
type AuthHandler struct {
	authService    *service.AuthService
	sessionService *service.SessionService
	cookies        *auth.CookieManager
	baseURL        string
}

func NewAuthHandler(authService *service.AuthService, sessionService *service.SessionService, cookies *auth.CookieManager, baseURL string) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		sessionService: sessionService,
		cookies:        cookies,
		baseURL:        baseURL,
	}
}

// BlueskySignInRequest carries the app password credentials.
type BlueskySignInRequest struct {
	Identifier  string `json:"identifier" binding:"required"`
	Password    string `json:"password" binding:"required"`
	CallbackURL string `json:"callback_url" binding:"omitempty"`
}

// ProviderCallbackRequest carries the raw provider profile payload plus
// the token set obtained during the upstream handshake.
type ProviderCallbackRequest struct {
	Profile      json.RawMessage `json:"profile" binding:"required"`
	AccessToken  string          `json:"access_token" binding:"omitempty"`
	RefreshToken string          `json:"refresh_token" binding:"omitempty"`
	TokenType    string          `json:"token_type" binding:"omitempty"`
	Scope        string          `json:"scope" binding:"omitempty"`
	ExpiresAt    *time.Time      `json:"expires_at" binding:"omitempty"`
	CallbackURL  string          `json:"callback_url" binding:"omitempty"`
}

// blueskyUserPayload is the trimmed user view the sign-in endpoint returns.
func blueskyUserPayload(result *service.SignInResult) gin.H {
	user := result.User
	payload := gin.H{"id": user.ID}
	if user.BlueskyID != nil {
		payload["bluesky_id"] = *user.BlueskyID
	}
	if user.BlueskyUsername != nil {
		payload["bluesky_username"] = *user.BlueskyUsername
	}
	if user.BlueskyImage != nil {
		payload["bluesky_image"] = *user.BlueskyImage
	}
	return payload
}

// SignInWithBluesky handles POST /api/auth/bluesky: a direct credential
// exchange against the PDS followed by identity linking. An existing
// session, when presented, attaches the bluesky identity to the signed-in
// user instead of creating a fresh one.
func (h *AuthHandler) SignInWithBluesky(c *gin.Context) {
	var req BlueskySignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Missing credentials fail the same way bad ones do.
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid identifier or password"})
		return
	}

	existingClaims := middleware.ClaimsFromContext(c)

	result, err := h.authService.SignInWithBluesky(c.Request.Context(), existingClaims, req.Identifier, req.Password)
	if err != nil {
		h.handleSignInError(c, provider.Bluesky, err)
		return
	}

	callbackURL := auth.SafeCallbackURL(req.CallbackURL, h.baseURL)
	h.cookies.SetSessionCookies(c.Writer, result.Token, result.CSRFToken, callbackURL)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    blueskyUserPayload(result),
	})
}

// ProviderCallback handles POST /api/auth/callback/:provider for the
// redirect-based providers. The raw profile payload is normalized and
// linked like any other sign-in event.
func (h *AuthHandler) ProviderCallback(c *gin.Context) {
	providerName := c.Param("provider")
	if providerName != provider.Twitter && providerName != provider.Mastodon {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Unknown provider"})
		return
	}

	var req ProviderCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request data"})
		return
	}

	existingClaims := middleware.ClaimsFromContext(c)
	tokens := &service.ProviderTokens{
		Type:         "oauth",
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenType:    req.TokenType,
		Scope:        req.Scope,
		ExpiresAt:    req.ExpiresAt,
	}

	result, err := h.authService.SignInWithProfile(c.Request.Context(), existingClaims, providerName, req.Profile, tokens)
	if err != nil {
		h.handleSignInError(c, providerName, err)
		return
	}

	callbackURL := auth.SafeCallbackURL(req.CallbackURL, h.baseURL)
	h.cookies.SetSessionCookies(c.Writer, result.Token, result.CSRFToken, callbackURL)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"url":     callbackURL,
		"session": h.sessionService.Materialize(result.Claims),
	})
}

// GetSession handles GET /api/auth/session. Requires auth.
func (h *AuthHandler) GetSession(c *gin.Context) {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not authenticated"})
		return
	}
	c.JSON(http.StatusOK, h.sessionService.Materialize(claims))
}

// GetCSRF handles GET /api/auth/csrf. Returns the double submit token the
// client must echo in the X-CSRF-Token header.
func (h *AuthHandler) GetCSRF(c *gin.Context) {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil || claims.CSRFSecret == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not authenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"csrfToken": auth.HashCSRFSecret(claims.CSRFSecret)})
}

// Logout handles DELETE /api/auth/bluesky: revokes every session of the
// user and expires the auth cookies. Requires auth plus CSRF.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not authenticated"})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims.UserID); err != nil {
		log.Printf("[AuthHandler] Logout failed for user %s: %v", claims.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Logout failed"})
		return
	}

	h.cookies.ClearSessionCookies(c.Writer)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleSignInError maps sign-in failures onto the HTTP contract.
func (h *AuthHandler) handleSignInError(c *gin.Context, providerName string, err error) {
	switch {
	case errors.Is(err, provider.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid identifier or password"})
	case errors.Is(err, provider.ErrServiceUnreachable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Unable to connect to Bluesky. Please try again later."})
	case errors.Is(err, provider.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "Too many requests. Please try again later."})
	case errors.Is(err, provider.ErrInvalidProfile):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid profile data"})
	case errors.Is(err, apperrors.ErrUnauthorized):
		// An exchange rejection the provider client did not classify. The
		// upstream message is what the user needs to see ("Account has been
		// suspended" and the like).
		message := err.Error()
		if message == "" || message == apperrors.ErrUnauthorized.Error() {
			message = "Error in Bluesky authentication"
		}
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": message})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   conflictMessage(providerName),
			"url":     auth.SafeCallbackURL("/auth/error?error=AccountAlreadyLinked", h.baseURL),
		})
	default:
		log.Printf("[AuthHandler] Sign-in failed for provider %s: %v", providerName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error while saving user data"})
	}
}

func conflictMessage(providerName string) string {
	switch providerName {
	case provider.Bluesky:
		return "This Bluesky account is already linked to another user"
	case provider.Mastodon:
		return "This Mastodon account is already linked to another user"
	case provider.Twitter:
		return "This Twitter account is already linked to another user"
	default:
		return "This account is already linked to another user"
	}
}
