package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Twitter_Valid(t *testing.T) {
	// Arrange
	raw := []byte(`{"data":{"id":"12345","name":"Ada Lovelace","username":"ada","profile_image_url":"https://pbs.twimg.com/ada.jpg"}}`)

	// Act
	profile, err := Normalize(Twitter, raw)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, Twitter, profile.Provider)
	assert.Equal(t, "12345", profile.ProviderAccountID)
	assert.Equal(t, "Ada Lovelace", profile.DisplayName)
	assert.Equal(t, "ada", profile.Username)
	assert.Equal(t, "https://pbs.twimg.com/ada.jpg", profile.AvatarURL)
	assert.Empty(t, profile.InstanceOrigin, "twitter profiles are not instance-scoped")
}

func TestNormalize_Twitter_RateLimitByStatus(t *testing.T) {
	raw := []byte(`{"status":429,"title":"Too Many Requests"}`)

	profile, err := Normalize(Twitter, raw)

	assert.Nil(t, profile)
	assert.ErrorIs(t, err, ErrRateLimited, "429 payload must surface as rate limit, not invalid profile")
	assert.NotErrorIs(t, err, ErrInvalidProfile)
}

func TestNormalize_Twitter_RateLimitByDetail(t *testing.T) {
	raw := []byte(`{"detail":"Too Many Requests"}`)

	profile, err := Normalize(Twitter, raw)

	assert.Nil(t, profile)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestNormalize_Twitter_MissingData(t *testing.T) {
	for name, raw := range map[string][]byte{
		"empty payload": nil,
		"no data":       []byte(`{"title":"something"}`),
		"empty id":      []byte(`{"data":{"name":"Ada"}}`),
		"not json":      []byte(`<html>error</html>`),
	} {
		t.Run(name, func(t *testing.T) {
			profile, err := Normalize(Twitter, raw)

			assert.Nil(t, profile, "no partially-populated profile may escape")
			assert.ErrorIs(t, err, ErrInvalidProfile)
		})
	}
}

func TestNormalize_Mastodon_Valid(t *testing.T) {
	raw := []byte(`{"id":"108234","username":"ada","display_name":"Ada","avatar":"https://files.piaille.fr/ada.png","url":"https://piaille.fr/@ada"}`)

	profile, err := Normalize(Mastodon, raw)

	require.NoError(t, err)
	assert.Equal(t, Mastodon, profile.Provider)
	assert.Equal(t, "108234", profile.ProviderAccountID)
	assert.Equal(t, "https://piaille.fr", profile.InstanceOrigin,
		"instance origin must be derived from the profile url")
	assert.Equal(t, "ada", profile.Username)
	assert.Equal(t, "Ada", profile.DisplayName)
}

func TestNormalize_Mastodon_SameIDDifferentInstance(t *testing.T) {
	// The same numeric id on two instances must normalize into two distinct
	// identities.
	a, err := Normalize(Mastodon, []byte(`{"id":"42","username":"x","url":"https://mastodon.social/@x"}`))
	require.NoError(t, err)
	b, err := Normalize(Mastodon, []byte(`{"id":"42","username":"y","url":"https://piaille.fr/@y"}`))
	require.NoError(t, err)

	assert.Equal(t, a.ProviderAccountID, b.ProviderAccountID)
	assert.NotEqual(t, a.InstanceOrigin, b.InstanceOrigin)
}

func TestNormalize_Mastodon_BadURL(t *testing.T) {
	for name, raw := range map[string][]byte{
		"missing url":  []byte(`{"id":"42","username":"x"}`),
		"relative url": []byte(`{"id":"42","username":"x","url":"/@x"}`),
		"garbage url":  []byte(`{"id":"42","username":"x","url":"://piaille"}`),
	} {
		t.Run(name, func(t *testing.T) {
			profile, err := Normalize(Mastodon, raw)

			assert.Nil(t, profile, "an unscoped mastodon identity must never be produced")
			assert.ErrorIs(t, err, ErrInvalidProfile)
		})
	}
}

func TestNormalize_Mastodon_MissingID(t *testing.T) {
	profile, err := Normalize(Mastodon, []byte(`{"username":"x","url":"https://piaille.fr/@x"}`))

	assert.Nil(t, profile)
	assert.ErrorIs(t, err, ErrInvalidProfile)
}

func TestNormalize_Bluesky_Valid(t *testing.T) {
	raw := []byte(`{"did":"did:plc:abc123","handle":"ada.bsky.social","displayName":"Ada","avatar":"https://cdn.bsky.app/ada.jpg"}`)

	profile, err := Normalize(Bluesky, raw)

	require.NoError(t, err)
	assert.Equal(t, "did:plc:abc123", profile.ProviderAccountID)
	assert.Equal(t, "ada.bsky.social", profile.Username)
	assert.Equal(t, "Ada", profile.DisplayName)
}

func TestNormalize_Bluesky_FallsBackToHandle(t *testing.T) {
	raw := []byte(`{"did":"did:plc:abc123","handle":"ada.bsky.social"}`)

	profile, err := Normalize(Bluesky, raw)

	require.NoError(t, err)
	assert.Equal(t, "ada.bsky.social", profile.DisplayName)
}

func TestNormalize_UnknownProvider(t *testing.T) {
	profile, err := Normalize("facebook", []byte(`{}`))

	assert.Nil(t, profile)
	assert.Error(t, err)
}
