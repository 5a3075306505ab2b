package auth

import "strings"

// SafeCallbackURL resolves a post-auth navigation target against the
// application origin. Targets already inside the origin pass through
// unchanged; anything else is treated as a path and appended, so an attacker
// cannot bounce the user to an arbitrary external origin.
func SafeCallbackURL(targetURL, baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if targetURL == "" {
		return base
	}
	if strings.HasPrefix(targetURL, base) {
		return targetURL
	}
	if strings.HasPrefix(targetURL, "/") {
		return base + targetURL
	}
	return base + "/" + targetURL
}
