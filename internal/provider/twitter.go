package provider

import (
	"encoding/json"
	"fmt"
)

// twitterEnvelope is the raw /2/users/me response. Rate-limit rejections come
// back through the same channel with status/detail set instead of data.
type twitterEnvelope struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Data   *struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Username        string `json:"username"`
		ProfileImageURL string `json:"profile_image_url"`
	} `json:"data"`
}

func normalizeTwitter(raw []byte) (*Profile, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty twitter payload", ErrInvalidProfile)
	}

	var env twitterEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: twitter payload: %v", ErrInvalidProfile, err)
	}

	// Throttling is retryable and must not be folded into the invalid case.
	if env.Status == 429 || env.Detail == "Too Many Requests" {
		return nil, fmt.Errorf("%w: twitter", ErrRateLimited)
	}

	if env.Data == nil || env.Data.ID == "" {
		return nil, fmt.Errorf("%w: twitter payload missing data.id", ErrInvalidProfile)
	}

	return &Profile{
		Provider:          Twitter,
		ProviderAccountID: env.Data.ID,
		DisplayName:       env.Data.Name,
		Username:          env.Data.Username,
		AvatarURL:         env.Data.ProfileImageURL,
	}, nil
}
