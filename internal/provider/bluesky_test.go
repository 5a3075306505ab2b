package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPDS(t *testing.T, loginHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/xrpc/com.atproto.server.createSession", loginHandler)
	mux.HandleFunc("/xrpc/app.bsky.actor.getProfile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-jwt" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"did":"did:plc:abc","handle":"ada.bsky.social","displayName":"Ada","avatar":"https://cdn.bsky.app/ada.jpg"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestBlueskyClient_AuthenticateWithCredentials_Success(t *testing.T) {
	// Arrange
	srv := newTestPDS(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"did":"did:plc:abc","handle":"ada.bsky.social","accessJwt":"access-jwt","refreshJwt":"refresh-jwt"}`))
	})
	client := NewBlueskyClient(srv.URL, 100)

	// Act
	identity, err := client.AuthenticateWithCredentials(context.Background(), "ada.bsky.social", "app-password")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "did:plc:abc", identity.Profile.ProviderAccountID)
	assert.Equal(t, "ada.bsky.social", identity.Profile.Username)
	assert.Equal(t, "Ada", identity.Profile.DisplayName)
	assert.Equal(t, "access-jwt", identity.AccessToken)
	assert.Equal(t, "refresh-jwt", identity.RefreshToken)
}

func TestBlueskyClient_AuthenticateWithCredentials_InvalidCredentials(t *testing.T) {
	srv := newTestPDS(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"AuthenticationRequired","message":"Invalid identifier or password"}`))
	})
	client := NewBlueskyClient(srv.URL, 100)

	identity, err := client.AuthenticateWithCredentials(context.Background(), "ada.bsky.social", "wrong")

	assert.Nil(t, identity)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestBlueskyClient_AuthenticateWithCredentials_Unreachable(t *testing.T) {
	srv := newTestPDS(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close() // connection refused from here on
	client := NewBlueskyClient(srv.URL, 100)

	identity, err := client.AuthenticateWithCredentials(context.Background(), "ada.bsky.social", "pw")

	assert.Nil(t, identity)
	assert.ErrorIs(t, err, ErrServiceUnreachable)
}

func TestBlueskyClient_AuthenticateWithCredentials_ServerError(t *testing.T) {
	srv := newTestPDS(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	client := NewBlueskyClient(srv.URL, 100)

	identity, err := client.AuthenticateWithCredentials(context.Background(), "ada.bsky.social", "pw")

	assert.Nil(t, identity)
	assert.ErrorIs(t, err, ErrServiceUnreachable)
}

func TestBlueskyClient_AuthenticateWithCredentials_UnknownError(t *testing.T) {
	srv := newTestPDS(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"AccountTakedown","message":"Account has been suspended"}`))
	})
	client := NewBlueskyClient(srv.URL, 100)

	identity, err := client.AuthenticateWithCredentials(context.Background(), "ada.bsky.social", "pw")

	assert.Nil(t, identity)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.NotErrorIs(t, err, ErrServiceUnreachable)
	assert.Contains(t, err.Error(), "Account has been suspended", "upstream message passes through")
}

func TestBlueskyClient_ProfileFetchFailure(t *testing.T) {
	// Login succeeds but the issued token is not the one the profile endpoint
	// expects, so the second hop fails.
	srv := newTestPDS(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"did":"did:plc:abc","handle":"ada.bsky.social","accessJwt":"stale-jwt","refreshJwt":"r"}`))
	})
	client := NewBlueskyClient(srv.URL, 100)

	identity, err := client.AuthenticateWithCredentials(context.Background(), "ada.bsky.social", "pw")

	assert.Nil(t, identity)
	assert.Error(t, err)
}
