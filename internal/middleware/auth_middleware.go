package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/helloquitx/hqx-api/pkg/auth"
)

// Keys under which the auth middleware stores values in the gin context.
const (
	ContextClaimsKey = "session_claims"
	ContextUserIDKey = "user_id"
)

// AuthMiddleware guards protected routes behind the session token.
type AuthMiddleware struct {
	jwtService *auth.JWTService
	cookies    *auth.CookieManager
}

func NewAuthMiddleware(jwtService *auth.JWTService, cookies *auth.CookieManager) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		cookies:    cookies,
	}
}

// tokenFromRequest reads the session token from the cookie, falling back
// to an Authorization Bearer header for non-browser clients.
func (m *AuthMiddleware) tokenFromRequest(c *gin.Context) (string, bool) {
	if token, ok := m.cookies.SessionTokenFromRequest(c.Request); ok {
		return token, true
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// RequireAuth rejects requests without a valid session token and stores
// the parsed claims in the gin context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := m.tokenFromRequest(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not authenticated"})
			c.Abort()
			return
		}

		claims, err := m.jwtService.ParseToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not authenticated"})
			c.Abort()
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Set(ContextUserIDKey, claims.UserID)
		c.Next()
	}
}

// OptionalAuth parses the session token when present but never rejects
// the request. Handlers check the context to see whether a user is
// signed in.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := m.tokenFromRequest(c); ok {
			if claims, err := m.jwtService.ParseToken(token); err == nil {
				c.Set(ContextClaimsKey, claims)
				c.Set(ContextUserIDKey, claims.UserID)
			}
		}
		c.Next()
	}
}

// RequireCSRF validates the X-CSRF-Token header against the secret
// carried in the session claims. Double submit: the header must hold
// the SHA-256 hash of the secret. Must run AFTER RequireAuth.
func (m *AuthMiddleware) RequireCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions || method == http.MethodTrace {
			c.Next()
			return
		}

		headerToken := c.GetHeader(auth.CSRFHeader)
		if headerToken == "" {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "CSRF token missing"})
			c.Abort()
			return
		}

		claims := ClaimsFromContext(c)
		if claims == nil || claims.CSRFSecret == "" {
			log.Printf("[CSRF Middleware] Session claims missing CSRF secret, path %s", c.Request.URL.Path)
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "CSRF token missing"})
			c.Abort()
			return
		}

		if !auth.VerifyCSRFToken(claims.CSRFSecret, headerToken) {
			if gin.Mode() != gin.ReleaseMode {
				log.Printf("[CSRF Middleware] CSRF token mismatch for user %s, path %s", claims.UserID, c.Request.URL.Path)
			}
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Invalid CSRF token"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// ClaimsFromContext returns the session claims stored by RequireAuth or
// OptionalAuth, or nil when the request is anonymous.
func ClaimsFromContext(c *gin.Context) *auth.SessionClaims {
	value, exists := c.Get(ContextClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*auth.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}
