package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/helloquitx/hqx-api/internal/middleware"
	apperrors "github.com/helloquitx/hqx-api/internal/pkg/errors"
	"github.com/helloquitx/hqx-api/internal/service"
)

// UserHandler handles the signed-in user's profile and preferences.
type UserHandler struct {
	userService    *service.UserService
	sessionService *service.SessionService
}

func NewUserHandler(userService *service.UserService, sessionService *service.SessionService) *UserHandler {
	return &UserHandler{
		userService:    userService,
		sessionService: sessionService,
	}
}

// PreferencesRequest carries the onboarding and consent switches, plus the
// contact email collected with the newsletter opt-in. Absent fields are left
// untouched.
type PreferencesRequest struct {
	Email              *string `json:"email" binding:"omitempty,email"`
	HasOnboarded       *bool   `json:"has_onboarded"`
	HqxNewsletter      *bool   `json:"hqx_newsletter"`
	OepAccepted        *bool   `json:"oep_accepted"`
	ResearchAccepted   *bool   `json:"research_accepted"`
	HaveSeenNewsletter *bool   `json:"have_seen_newsletter"`
	AutomaticReconnect *bool   `json:"automatic_reconnect"`
}

// GetMe handles GET /api/users/me. Requires auth.
func (h *UserHandler) GetMe(c *gin.Context) {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not authenticated"})
		return
	}

	session := h.sessionService.Materialize(claims)
	c.JSON(http.StatusOK, gin.H{"success": true, "user": session.User})
}

// UpdatePreferences handles PUT /api/users/me/preferences. Requires auth
// plus CSRF.
func (h *UserHandler) UpdatePreferences(c *gin.Context) {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not authenticated"})
		return
	}

	var req PreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request data"})
		return
	}

	prefs := &service.PreferencesUpdate{
		Email:              req.Email,
		HasOnboarded:       req.HasOnboarded,
		HqxNewsletter:      req.HqxNewsletter,
		OepAccepted:        req.OepAccepted,
		ResearchAccepted:   req.ResearchAccepted,
		HaveSeenNewsletter: req.HaveSeenNewsletter,
		AutomaticReconnect: req.AutomaticReconnect,
	}

	user, err := h.userService.UpdatePreferences(c.Request.Context(), claims.UserID, prefs)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
			return
		}
		if errors.Is(err, apperrors.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "This email address is already in use"})
			return
		}
		log.Printf("[UserHandler] Failed to update preferences for user %s: %v", claims.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error while saving user data"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"id":                   user.ID,
			"email":                user.Email,
			"has_onboarded":        user.HasOnboarded,
			"hqx_newsletter":       user.HqxNewsletter,
			"oep_accepted":         user.OepAccepted,
			"research_accepted":    user.ResearchAccepted,
			"have_seen_newsletter": user.HaveSeenNewsletter,
			"automatic_reconnect":  user.AutomaticReconnect,
		},
	})
}
