package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Identity is the output of the credential exchange: a canonical profile plus
// the short-lived token pair issued by the PDS. It is shape-compatible with
// what the redirect-based providers produce so the resolver stays
// provider-agnostic.
type Identity struct {
	Profile      Profile
	AccessToken  string
	RefreshToken string
}

// BlueskyClient performs the direct credential exchange against an atproto
// PDS. Outbound calls go through a shared limiter so a burst of sign-ins
// cannot trip the upstream rate limit.
type BlueskyClient struct {
	serviceURL string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewBlueskyClient(serviceURL string, requestsPerSecond float64) *BlueskyClient {
	return &BlueskyClient{
		serviceURL: strings.TrimRight(serviceURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)+1),
	}
}

type createSessionResponse struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

type actorProfileResponse struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

type xrpcError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// AuthenticateWithCredentials logs in with an app password and fetches the
// profile for the authenticated actor. Errors distinguish bad credentials,
// an unreachable service, and anything else (message passed through).
func (c *BlueskyClient) AuthenticateWithCredentials(ctx context.Context, identifier, password string) (*Identity, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	sess, err := c.createSession(ctx, identifier, password)
	if err != nil {
		return nil, err
	}

	profile, err := c.getProfile(ctx, sess.AccessJwt, sess.Handle)
	if err != nil {
		return nil, err
	}

	displayName := profile.DisplayName
	if displayName == "" {
		displayName = sess.Handle
	}

	return &Identity{
		Profile: Profile{
			Provider:          Bluesky,
			ProviderAccountID: sess.DID,
			DisplayName:       displayName,
			Username:          sess.Handle,
			AvatarURL:         profile.Avatar,
		},
		AccessToken:  sess.AccessJwt,
		RefreshToken: sess.RefreshJwt,
	}, nil
}

func (c *BlueskyClient) createSession(ctx context.Context, identifier, password string) (*createSessionResponse, error) {
	body, err := json.Marshal(map[string]string{
		"identifier": identifier,
		"password":   password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal createSession request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.serviceURL+"/xrpc/com.atproto.server.createSession", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build createSession request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.decodeXRPCError(resp)
	}

	var sess createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return nil, fmt.Errorf("failed to decode createSession response: %w", err)
	}
	return &sess, nil
}

func (c *BlueskyClient) getProfile(ctx context.Context, accessJwt, actor string) (*actorProfileResponse, error) {
	endpoint := c.serviceURL + "/xrpc/app.bsky.actor.getProfile?actor=" + url.QueryEscape(actor)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build getProfile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessJwt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.decodeXRPCError(resp)
	}

	var profile actorProfileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode getProfile response: %w", err)
	}
	return &profile, nil
}

// decodeXRPCError maps an xrpc error body onto the exchange taxonomy.
func (c *BlueskyClient) decodeXRPCError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

	var xe xrpcError
	_ = json.Unmarshal(raw, &xe)

	if strings.Contains(xe.Message, "Invalid identifier or password") ||
		resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w", ErrInvalidCredentials)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: bluesky", ErrRateLimited)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status=%d", ErrServiceUnreachable, resp.StatusCode)
	}
	if xe.Message != "" {
		return fmt.Errorf("bluesky exchange failed: %s", xe.Message)
	}
	return fmt.Errorf("bluesky exchange failed: status=%d body=%s", resp.StatusCode, string(raw))
}

// normalizeBluesky shapes an already-fetched actor profile payload; used when
// the caller has a raw getProfile body instead of a live exchange.
func normalizeBluesky(raw []byte) (*Profile, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty bluesky payload", ErrInvalidProfile)
	}

	var actor actorProfileResponse
	if err := json.Unmarshal(raw, &actor); err != nil {
		return nil, fmt.Errorf("%w: bluesky payload: %v", ErrInvalidProfile, err)
	}
	if actor.DID == "" {
		return nil, fmt.Errorf("%w: bluesky payload missing did", ErrInvalidProfile)
	}

	displayName := actor.DisplayName
	if displayName == "" {
		displayName = actor.Handle
	}

	return &Profile{
		Provider:          Bluesky,
		ProviderAccountID: actor.DID,
		DisplayName:       displayName,
		Username:          actor.Handle,
		AvatarURL:         actor.Avatar,
	}, nil
}
