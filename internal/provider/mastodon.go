package provider

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// mastodonAccount is the raw verify_credentials account payload.
type mastodonAccount struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	URL         string `json:"url"`
}

func normalizeMastodon(raw []byte) (*Profile, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty mastodon payload", ErrInvalidProfile)
	}

	var acct mastodonAccount
	if err := json.Unmarshal(raw, &acct); err != nil {
		return nil, fmt.Errorf("%w: mastodon payload: %v", ErrInvalidProfile, err)
	}
	if acct.ID == "" {
		return nil, fmt.Errorf("%w: mastodon payload missing id", ErrInvalidProfile)
	}

	// The numeric id is only unique per instance, so the instance origin is
	// part of the identity. A profile without a parseable URL is rejected
	// rather than stored unscoped.
	origin, err := instanceOrigin(acct.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: mastodon profile url %q: %v", ErrInvalidProfile, acct.URL, err)
	}

	return &Profile{
		Provider:          Mastodon,
		ProviderAccountID: acct.ID,
		DisplayName:       acct.DisplayName,
		Username:          acct.Username,
		AvatarURL:         acct.Avatar,
		InstanceOrigin:    origin,
	}, nil
}

// instanceOrigin extracts scheme://host from the account's canonical URL.
func instanceOrigin(rawURL string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("empty url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url has no origin")
	}
	return u.Scheme + "://" + u.Host, nil
}
