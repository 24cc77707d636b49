package session

// Package session contains domain-level types for the client session
// lifecycle. It is pure and free of transport/storage concerns.

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects which storage backend is authoritative for the session.
// Keep string form for easy persistence. Valid values are defined below.
type Mode string

const (
	// ModeDurable survives process restarts ("remember me").
	ModeDurable Mode = "durable"
	// ModeEphemeral lives only for the current process.
	ModeEphemeral Mode = "ephemeral"
)

// UnmarshalText implements encoding.TextUnmarshaler for Mode.
func (m *Mode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "durable", "ephemeral":
		*m = Mode(v)
		return nil
	default:
		return fmt.Errorf("invalid Mode: %q (valid options: durable, ephemeral)", v)
	}
}

// MarshalText implements encoding.TextMarshaler for Mode.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m), nil
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	return m == ModeDurable || m == ModeEphemeral
}

// PlaceholderUserID marks a session captured from an OAuth redirect whose
// real identity has not been resolved by a verification call yet.
const PlaceholderUserID = "pending-oauth-user"

// User is the authenticated principal as reported by the identity provider.
// An empty Email means the provider did not supply one.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// IsPlaceholder reports whether this identity is the unresolved OAuth
// placeholder rather than a verified user.
func (u User) IsPlaceholder() bool { return u.ID == PlaceholderUserID }

// Record is the persisted unit of authentication state. A Record is either
// fully present (all fields well-typed, required fields non-empty) or does
// not exist; partially valid data is never trusted.
type Record struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // seconds since epoch
	User         User   `json:"user"`
}

// ExpiresWithin reports whether the record expires within buffer of now.
func (r Record) ExpiresWithin(buffer time.Duration, now time.Time) bool {
	return r.ExpiresAt <= now.Add(buffer).Unix()
}

// PendingCapture is the token bundle parsed from an identity-provider
// redirect fragment. It carries no verified identity.
type PendingCapture struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	// Recovery is set when the redirect is a password-recovery return
	// rather than a normal login.
	Recovery bool
}

// Record converts the capture into a persistable session record with the
// placeholder identity. Verification replaces it with the real user.
func (c PendingCapture) Record() Record {
	return Record{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt,
		User:         User{ID: PlaceholderUserID},
	}
}
