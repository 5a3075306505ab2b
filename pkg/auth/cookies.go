package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
)

// Cookie and header names. The cookie names follow the session contract the
// web client already speaks.
const (
	SessionTokenCookie = "next-auth.session-token"
	CSRFTokenCookie    = "next-auth.csrf-token"
	CallbackURLCookie  = "next-auth.callback-url"
	CSRFHeader         = "X-CSRF-Token"
)

// CookieManager writes and clears the session cookie set. In production mode
// cookies are Secure and the session cookie gets the __Secure- prefix.
type CookieManager struct {
	maxAgeSeconds int
	isProduction  bool
}

func NewCookieManager(maxAgeSeconds int, isProduction bool) *CookieManager {
	if maxAgeSeconds <= 0 {
		maxAgeSeconds = 30 * 24 * 60 * 60
	}
	return &CookieManager{maxAgeSeconds: maxAgeSeconds, isProduction: isProduction}
}

func (m *CookieManager) sessionCookieName() string {
	if m.isProduction {
		return "__Secure-" + SessionTokenCookie
	}
	return SessionTokenCookie
}

// SetSessionCookies writes the session token, the CSRF hash, and the callback
// URL cookies.
func (m *CookieManager) SetSessionCookies(w http.ResponseWriter, token, csrfTokenHash, callbackURL string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.sessionCookieName(),
		Value:    token,
		Path:     "/",
		MaxAge:   m.maxAgeSeconds,
		HttpOnly: true,
		Secure:   m.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFTokenCookie,
		Value:    csrfTokenHash,
		Path:     "/",
		MaxAge:   m.maxAgeSeconds,
		HttpOnly: true,
		Secure:   m.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	if callbackURL != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     CallbackURLCookie,
			Value:    callbackURL,
			Path:     "/",
			MaxAge:   m.maxAgeSeconds,
			Secure:   m.isProduction,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// ClearSessionCookies expires all three session cookies.
func (m *CookieManager) ClearSessionCookies(w http.ResponseWriter) {
	for _, target := range []struct {
		name     string
		httpOnly bool
	}{
		{m.sessionCookieName(), true},
		{CSRFTokenCookie, true},
		{CallbackURLCookie, false},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     target.name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: target.httpOnly,
			Secure:   m.isProduction,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// SessionTokenFromRequest reads the session token cookie, trying the
// production-prefixed name first.
func (m *CookieManager) SessionTokenFromRequest(r *http.Request) (string, bool) {
	for _, name := range []string{"__Secure-" + SessionTokenCookie, SessionTokenCookie} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}

// GenerateCSRFSecret returns a fresh random secret in hex.
func GenerateCSRFSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Printf("CRITICAL: failed to generate random bytes: %v", err)
		panic(fmt.Sprintf("failed to generate CSRF secret: %v", err))
	}
	return hex.EncodeToString(b)
}

// HashCSRFSecret derives the client-visible CSRF token from the secret kept
// inside the session token.
func HashCSRFSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// VerifyCSRFToken checks the double-submit pair: the header must carry the
// hash of the secret embedded in the session token.
func VerifyCSRFToken(secret, headerToken string) bool {
	if secret == "" || headerToken == "" {
		return false
	}
	expected := HashCSRFSecret(secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(headerToken)) == 1
}
