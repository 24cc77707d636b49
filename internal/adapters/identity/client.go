package identity

// Package identity provides the HTTP adapter over the identity provider's
// REST surface (GoTrue-style auth API). The client is stateless: every
// method is a single request against the configured base endpoint with the
// project API key attached.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	domainsession "github.com/leadforge/sessionkit/internal/domain/session"
	"github.com/leadforge/sessionkit/internal/ports"
	"golang.org/x/oauth2"
)

const (
	signUpPath    = "/auth/v1/signup"
	tokenPath     = "/auth/v1/token"
	userPath      = "/auth/v1/user"
	recoverPath   = "/auth/v1/recover"
	authorizePath = "/auth/v1/authorize"
	logoutPath    = "/auth/v1/logout"
)

// genericFailure is surfaced when the provider rejection carries no
// extractable message.
const genericFailure = "Authentication failed"

// errorMessageExpr extracts the first present, non-empty failure message
// from a provider error payload, in priority order.
const errorMessageExpr = "error_description || message || msg || error"

// Config captures runtime configuration for the identity client.
type Config struct {
	// BaseURL is the identity service origin, e.g. https://auth.example.com.
	BaseURL string
	// APIKey is the project API key sent on every request.
	APIKey string
	// ClientInfo identifies this SDK in the X-Client-Info header.
	ClientInfo string
	Timeout    time.Duration
	Client     *http.Client
	Clock      ports.Clock
}

// Client implements ports.IdentityProvider over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	clientInfo string
	client     *http.Client
	clock      ports.Clock
}

var _ ports.IdentityProvider = (*Client)(nil)

// NewClient constructs an identity client. Base URL and API key are
// required; without them every operation would fail against the provider,
// so construction fails fast instead.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("identity base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse identity base URL: %w", err)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("identity API key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = ports.RealClock{}
	}

	return &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		clientInfo: cfg.ClientInfo,
		client:     hc,
		clock:      clock,
	}, nil
}

// SignUp creates an account. When the provider auto-confirms it returns a
// full session; otherwise the outcome reports ConfirmationRequired with no
// session.
func (c *Client) SignUp(ctx context.Context, in ports.SignUpInput) (ports.AuthOutcome, error) {
	body := map[string]any{
		"email":    in.Email,
		"password": in.Password,
	}
	if in.DisplayName != "" {
		body["data"] = map[string]any{"full_name": in.DisplayName}
	}

	resp, err := c.do(ctx, request{method: http.MethodPost, path: signUpPath, body: body})
	if err != nil {
		return ports.AuthOutcome{}, err
	}
	if !resp.ok() {
		return c.rejection(resp), nil
	}

	if _, hasToken := resp.payload["access_token"]; !hasToken {
		return ports.AuthOutcome{OK: true, Status: resp.status, ConfirmationRequired: true}, nil
	}
	return c.sessionOutcome(resp), nil
}

// SignInWithPassword exchanges email/password credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (ports.AuthOutcome, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   tokenPath,
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]any{"email": email, "password": password},
	})
	if err != nil {
		return ports.AuthOutcome{}, err
	}
	if !resp.ok() {
		return c.rejection(resp), nil
	}
	return c.sessionOutcome(resp), nil
}

// RefreshToken exchanges a refresh token for a rotated session.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (ports.AuthOutcome, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   tokenPath,
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]any{"refresh_token": refreshToken},
	})
	if err != nil {
		return ports.AuthOutcome{}, err
	}
	if !resp.ok() {
		return c.rejection(resp), nil
	}
	return c.sessionOutcome(resp), nil
}

// FetchCurrentUser verifies the access token server-side and returns the
// authoritative identity.
func (c *Client) FetchCurrentUser(ctx context.Context, accessToken string) (domainsession.User, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: userPath, accessToken: accessToken})
	if err != nil {
		return domainsession.User{}, err
	}
	if !resp.ok() {
		return domainsession.User{}, fmt.Errorf("fetch current user: %s", c.failureMessage(resp.payload))
	}

	user, valid := userFromPayload(resp.payload)
	if !valid {
		return domainsession.User{}, errors.New("fetch current user: malformed provider response")
	}
	return user, nil
}

// UpdatePassword sets a new password for the authenticated user.
func (c *Client) UpdatePassword(ctx context.Context, accessToken, newPassword string) (ports.AuthOutcome, error) {
	resp, err := c.do(ctx, request{
		method:      http.MethodPut,
		path:        userPath,
		body:        map[string]any{"password": newPassword},
		accessToken: accessToken,
	})
	if err != nil {
		return ports.AuthOutcome{}, err
	}
	if !resp.ok() {
		return c.rejection(resp), nil
	}
	return ports.AuthOutcome{OK: true, Status: resp.status}, nil
}

// RequestPasswordReset asks the provider to send a recovery email. Success
// means the email was accepted for sending; no session is ever returned.
func (c *Client) RequestPasswordReset(ctx context.Context, email, redirectTo string) (ports.AuthOutcome, error) {
	body := map[string]any{"email": email}
	if redirectTo != "" {
		body["redirect_to"] = redirectTo
	}

	resp, err := c.do(ctx, request{method: http.MethodPost, path: recoverPath, body: body})
	if err != nil {
		return ports.AuthOutcome{}, err
	}
	if !resp.ok() {
		return c.rejection(resp), nil
	}
	return ports.AuthOutcome{OK: true, Status: resp.status}, nil
}

// AuthorizeURL builds the browser-navigation URL starting an OAuth flow
// with the named external provider. The provider redirects back with the
// token bundle in the URL fragment.
func (c *Client) AuthorizeURL(provider, redirectTo string) string {
	params := url.Values{"provider": {provider}}
	if redirectTo != "" {
		params.Set("redirect_to", redirectTo)
	}
	return c.baseURL + authorizePath + "?" + params.Encode()
}

// SignOut revokes the token server-side. Best effort: callers clear local
// state whether or not this succeeds.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	resp, err := c.do(ctx, request{method: http.MethodPost, path: logoutPath, accessToken: accessToken})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return fmt.Errorf("sign out: %s", c.failureMessage(resp.payload))
	}
	return nil
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        any
	accessToken string
}

type response struct {
	status int
	// payload is the decoded JSON body, or nil when the body is absent or
	// not valid JSON. Parsing failures never propagate as errors.
	payload map[string]any
}

func (r response) ok() bool { return r.status >= 200 && r.status < 300 }

// do performs a single request. A non-nil error means the request did not
// complete (transport failure); provider rejections come back in response.
func (c *Client) do(ctx context.Context, req request) (response, error) {
	endpoint := c.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var bodyReader *bytes.Reader
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return response{}, fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, bodyReader)
	if err != nil {
		return response{}, fmt.Errorf("create identity request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("apikey", c.apiKey)
	if c.clientInfo != "" {
		httpReq.Header.Set("X-Client-Info", c.clientInfo)
	}

	resp, err := c.httpClient(ctx, req.accessToken).Do(httpReq)
	if err != nil {
		return response{}, fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-side close.

	var payload map[string]any
	if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr != nil {
		payload = nil
	}
	return response{status: resp.StatusCode, payload: payload}, nil
}

// httpClient returns the base client, or one that injects bearer
// authorization for token-authenticated endpoints.
func (c *Client) httpClient(ctx context.Context, accessToken string) *http.Client {
	if accessToken == "" {
		return c.client
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "bearer"})
	return oauth2.NewClient(ctx, source)
}

// rejection maps a non-2xx provider response to a failed outcome.
func (c *Client) rejection(resp response) ports.AuthOutcome {
	return ports.AuthOutcome{Status: resp.status, Message: c.failureMessage(resp.payload)}
}

// failureMessage extracts a human-readable reason from an error payload.
func (c *Client) failureMessage(payload map[string]any) string {
	if payload == nil {
		return genericFailure
	}
	result, err := jmespath.Search(errorMessageExpr, payload)
	if err != nil {
		return genericFailure
	}
	if msg, isString := result.(string); isString && msg != "" {
		return msg
	}
	return genericFailure
}

// sessionOutcome maps a 2xx token-bundle response. A 2xx payload that does
// not carry a well-formed session is a failed operation.
func (c *Client) sessionOutcome(resp response) ports.AuthOutcome {
	rec, valid := c.sessionFromPayload(resp.payload)
	if !valid {
		return ports.AuthOutcome{Status: resp.status, Message: genericFailure}
	}
	return ports.AuthOutcome{OK: true, Status: resp.status, Session: rec}
}

func (c *Client) sessionFromPayload(payload map[string]any) (*domainsession.Record, bool) {
	accessToken, _ := payload["access_token"].(string)
	refreshToken, _ := payload["refresh_token"].(string)
	if accessToken == "" || refreshToken == "" {
		return nil, false
	}

	userPayload, _ := payload["user"].(map[string]any)
	user, valid := userFromPayload(userPayload)
	if !valid {
		return nil, false
	}

	return &domainsession.Record{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    c.expiryFromPayload(payload),
		User:         user,
	}, true
}

// expiryFromPayload resolves the absolute expiry: explicit expires_at,
// relative expires_in, then a one hour default.
func (c *Client) expiryFromPayload(payload map[string]any) int64 {
	if at, isNumber := payload["expires_at"].(float64); isNumber {
		return int64(at)
	}
	if in, isNumber := payload["expires_in"].(float64); isNumber {
		return c.clock.Now().Unix() + int64(in)
	}
	return c.clock.Now().Unix() + 3600
}

func userFromPayload(payload map[string]any) (domainsession.User, bool) {
	if payload == nil {
		return domainsession.User{}, false
	}
	id, _ := payload["id"].(string)
	if id == "" {
		return domainsession.User{}, false
	}
	email, _ := payload["email"].(string)
	return domainsession.User{ID: id, Email: email}, true
}
