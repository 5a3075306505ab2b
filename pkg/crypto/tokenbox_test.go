package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rawKey = []byte("0123456789abcdef0123456789abcdef")

func TestTokenBox_SealOpenRoundTrip(t *testing.T) {
	box, err := NewTokenBox(string(rawKey))
	require.NoError(t, err)

	sealed, err := box.Seal("access-jwt-value")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "access-jwt-value")

	opened, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "access-jwt-value", opened)
}

func TestTokenBox_KeyEncodings(t *testing.T) {
	for name, key := range map[string]string{
		"raw":    string(rawKey),
		"base64": base64.StdEncoding.EncodeToString(rawKey),
		"hex":    hex.EncodeToString(rawKey),
	} {
		t.Run(name, func(t *testing.T) {
			box, err := NewTokenBox(key)
			require.NoError(t, err)

			sealed, err := box.Seal("secret")
			require.NoError(t, err)
			opened, err := box.Open(sealed)
			require.NoError(t, err)
			assert.Equal(t, "secret", opened)
		})
	}
}

func TestTokenBox_BadKey(t *testing.T) {
	_, err := NewTokenBox("short")
	assert.Error(t, err)
}

func TestTokenBox_EmptyTokenStaysNil(t *testing.T) {
	box, err := NewTokenBox(string(rawKey))
	require.NoError(t, err)

	sealed, err := box.Seal("")
	require.NoError(t, err)
	assert.Nil(t, sealed)

	opened, err := box.Open(nil)
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestTokenBox_TamperedCiphertext(t *testing.T) {
	box, err := NewTokenBox(string(rawKey))
	require.NoError(t, err)

	sealed, err := box.Seal("secret")
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = box.Open(sealed)
	assert.Error(t, err)
}
