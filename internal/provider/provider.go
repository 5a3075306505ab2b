package provider

import "errors"

// Supported provider names.
const (
	Twitter  = "twitter"
	Mastodon = "mastodon"
	Bluesky  = "bluesky"
)

var (
	// ErrInvalidProfile means the raw payload is empty or lacks required
	// identity fields. Permanent, callers must not retry.
	ErrInvalidProfile = errors.New("invalid provider profile")

	// ErrRateLimited means the provider signaled throttling. Retryable after
	// backoff.
	ErrRateLimited = errors.New("provider rate limit")

	// ErrInvalidCredentials means the credential exchange rejected the
	// identifier/password pair.
	ErrInvalidCredentials = errors.New("invalid identifier or password")

	// ErrServiceUnreachable means the provider could not be reached.
	ErrServiceUnreachable = errors.New("provider service unreachable")
)

// Profile is the canonical identity record every provider payload normalizes
// into. ProviderAccountID is stable for the lifetime of the external account.
// For mastodon it is only unique together with InstanceOrigin, because numeric
// ids collide across instances.
type Profile struct {
	Provider          string
	ProviderAccountID string
	DisplayName       string
	Username          string
	AvatarURL         string
	InstanceOrigin    string
}

// Normalize maps a provider's raw profile payload into a Profile. Provider
// branching happens here, once; downstream layers are provider-agnostic.
func Normalize(providerName string, raw []byte) (*Profile, error) {
	switch providerName {
	case Twitter:
		return normalizeTwitter(raw)
	case Mastodon:
		return normalizeMastodon(raw)
	case Bluesky:
		return normalizeBluesky(raw)
	default:
		return nil, errors.New("unknown provider: " + providerName)
	}
}
