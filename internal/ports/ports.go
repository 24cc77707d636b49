package ports

// Package ports defines interfaces (hexagonal ports) for the session
// lifecycle. Implementations live in internal/adapters; orchestration in
// internal/service.

import (
	"context"
	"time"

	domainsession "github.com/leadforge/sessionkit/internal/domain/session"
)

// Backend is a minimal key/value surface over one storage location. Two
// Backend instances are paired by the storage layer: one durable (survives
// restarts) and one ephemeral (process lifetime).
type Backend interface {
	// Read returns the value for key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// AuthOutcome is the tri-state result of an identity-provider call that
// completed over the wire. Transport-level failures are reported as errors
// by the provider methods instead.
type AuthOutcome struct {
	// OK is true when the provider accepted the operation.
	OK bool
	// Status is the HTTP status code of the provider response.
	Status int
	// Session is set when the provider returned a full token bundle.
	Session *domainsession.Record
	// ConfirmationRequired is set on sign-up when the provider accepted
	// the account but requires email confirmation before issuing tokens.
	ConfirmationRequired bool
	// Message is a human-readable failure reason when OK is false.
	Message string
}

// SignUpInput carries inputs for creating an account.
type SignUpInput struct {
	Email       string
	Password    string
	DisplayName string
}

// IdentityProvider is a stateless wrapper over the identity service's REST
// surface. Methods return a non-nil error only for transport or local
// configuration failures; provider rejections come back as AuthOutcome
// with OK=false.
type IdentityProvider interface {
	SignUp(ctx context.Context, in SignUpInput) (AuthOutcome, error)
	SignInWithPassword(ctx context.Context, email, password string) (AuthOutcome, error)
	RefreshToken(ctx context.Context, refreshToken string) (AuthOutcome, error)

	// FetchCurrentUser verifies the access token server-side and returns
	// the authoritative identity. Any failure, transport or rejection,
	// is an error.
	FetchCurrentUser(ctx context.Context, accessToken string) (domainsession.User, error)

	UpdatePassword(ctx context.Context, accessToken, newPassword string) (AuthOutcome, error)
	RequestPasswordReset(ctx context.Context, email, redirectTo string) (AuthOutcome, error)

	// AuthorizeURL builds the browser-navigation URL that starts an OAuth
	// flow with the named external provider. Pure; no network call.
	AuthorizeURL(provider, redirectTo string) string

	// SignOut revokes the token server-side. Best effort: callers must
	// clear local state regardless of the returned error.
	SignOut(ctx context.Context, accessToken string) error
}

// FragmentCapture detects token bundles in redirect URLs and scrubs them.
// The split between Parse and Scrub is deliberate: callers capture, then
// persist, then scrub, so a crash never loses an unsaved token.
type FragmentCapture interface {
	Parse(rawURL string) *domainsession.PendingCapture
	Scrub(rawURL string) string
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// ErrNotFound is returned by Backend.Read when the key has no value.
type notFoundError struct{}

func (notFoundError) Error() string { return "record not found" }

var ErrNotFound error = notFoundError{}
