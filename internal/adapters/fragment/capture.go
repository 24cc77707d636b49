package fragment

// Package fragment parses token bundles delivered in a redirect URL
// fragment after an identity-provider OAuth return, and scrubs the
// fragment from the visible URL. It is pure: parsing never mutates
// anything, and scrubbing only returns the rewritten URL for the caller
// to apply.

import (
	"net/url"
	"strconv"

	domainsession "github.com/leadforge/sessionkit/internal/domain/session"
	"github.com/leadforge/sessionkit/internal/ports"
)

// DefaultTokenTTL is assumed when the redirect carries no expiry hint.
const DefaultTokenTTL = 3600 // seconds

const recoveryType = "recovery"

// Capture inspects URLs for identity-provider redirect returns.
type Capture struct {
	clock ports.Clock
}

// NewCapture creates a Capture. A nil clock uses real time.
func NewCapture(clock ports.Clock) *Capture {
	if clock == nil {
		clock = ports.RealClock{}
	}
	return &Capture{clock: clock}
}

// Parse returns the token bundle embedded in rawURL's fragment, or nil if
// the fragment is absent or lacks either token (both are mandatory).
// Expiry is resolved in priority order: absolute expires_at, relative
// expires_in, then DefaultTokenTTL from now.
func (c *Capture) Parse(rawURL string) *domainsession.PendingCapture {
	u, err := url.Parse(rawURL)
	if err != nil || u.Fragment == "" {
		return nil
	}

	params, err := url.ParseQuery(u.EscapedFragment())
	if err != nil {
		return nil
	}

	accessToken := params.Get("access_token")
	refreshToken := params.Get("refresh_token")
	if accessToken == "" || refreshToken == "" {
		return nil
	}

	return &domainsession.PendingCapture{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    c.resolveExpiry(params),
		Recovery:     params.Get("type") == recoveryType,
	}
}

func (c *Capture) resolveExpiry(params url.Values) int64 {
	if raw := params.Get("expires_at"); raw != "" {
		if at, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return at
		}
	}
	if raw := params.Get("expires_in"); raw != "" {
		if in, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return c.clock.Now().Unix() + in
		}
	}
	return c.clock.Now().Unix() + DefaultTokenTTL
}

// Scrub returns rawURL with the fragment removed, path and query intact.
// Callers apply the result with a history replace, never a navigation, and
// only after the captured tokens are durably stored.
func (c *Capture) Scrub(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		// Not parseable as a URL; best effort cut at the delimiter.
		for i := 0; i < len(rawURL); i++ {
			if rawURL[i] == '#' {
				return rawURL[:i]
			}
		}
		return rawURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
