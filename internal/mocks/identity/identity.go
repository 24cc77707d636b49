package identity

// Package identity contains simple hand-written test doubles for the
// identity provider port. These are lightweight and suitable for unit
// tests without codegen.

import (
	"context"
	"sync"
	"time"

	domainsession "github.com/leadforge/sessionkit/internal/domain/session"
	"github.com/leadforge/sessionkit/internal/ports"
)

// Ensure compile-time conformance to ports.
var _ ports.IdentityProvider = (*MockProvider)(nil)

// MockProvider simulates the identity service with deterministic defaults.
// Any Func field overrides the default behavior for that operation; call
// counters track how often each network-shaped operation ran.
type MockProvider struct {
	SignUpFunc       func(ctx context.Context, in ports.SignUpInput) (ports.AuthOutcome, error)
	SignInFunc       func(ctx context.Context, email, password string) (ports.AuthOutcome, error)
	RefreshFunc      func(ctx context.Context, refreshToken string) (ports.AuthOutcome, error)
	FetchUserFunc    func(ctx context.Context, accessToken string) (domainsession.User, error)
	UpdatePassFunc   func(ctx context.Context, accessToken, newPassword string) (ports.AuthOutcome, error)
	RequestResetFunc func(ctx context.Context, email, redirectTo string) (ports.AuthOutcome, error)
	SignOutFunc      func(ctx context.Context, accessToken string) error

	AuthorizeBase    string
	DefaultUser      domainsession.User
	DefaultExpiresIn time.Duration

	mu           sync.Mutex
	refreshCalls int
	fetchCalls   int
	signOutCalls int
}

// NewMockProvider creates a MockProvider with sensible defaults.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		AuthorizeBase:    "https://mock-idp/auth/v1/authorize",
		DefaultUser:      domainsession.User{ID: "mock-user-1", Email: "mock.user@example.com"},
		DefaultExpiresIn: time.Hour,
	}
}

func (m *MockProvider) defaultSession() *domainsession.Record {
	return &domainsession.Record{
		AccessToken:  "mock-access-token",
		RefreshToken: "mock-refresh-token",
		ExpiresAt:    time.Now().Add(m.DefaultExpiresIn).Unix(),
		User:         m.DefaultUser,
	}
}

func (m *MockProvider) SignUp(ctx context.Context, in ports.SignUpInput) (ports.AuthOutcome, error) {
	if m.SignUpFunc != nil {
		return m.SignUpFunc(ctx, in)
	}
	return ports.AuthOutcome{OK: true, Status: 200, Session: m.defaultSession()}, nil
}

func (m *MockProvider) SignInWithPassword(ctx context.Context, email, password string) (ports.AuthOutcome, error) {
	if m.SignInFunc != nil {
		return m.SignInFunc(ctx, email, password)
	}
	return ports.AuthOutcome{OK: true, Status: 200, Session: m.defaultSession()}, nil
}

func (m *MockProvider) RefreshToken(ctx context.Context, refreshToken string) (ports.AuthOutcome, error) {
	m.mu.Lock()
	m.refreshCalls++
	m.mu.Unlock()

	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	rec := m.defaultSession()
	rec.AccessToken = "rotated-" + rec.AccessToken
	rec.RefreshToken = "rotated-" + refreshToken
	return ports.AuthOutcome{OK: true, Status: 200, Session: rec}, nil
}

func (m *MockProvider) FetchCurrentUser(ctx context.Context, accessToken string) (domainsession.User, error) {
	m.mu.Lock()
	m.fetchCalls++
	m.mu.Unlock()

	if m.FetchUserFunc != nil {
		return m.FetchUserFunc(ctx, accessToken)
	}
	return m.DefaultUser, nil
}

func (m *MockProvider) UpdatePassword(ctx context.Context, accessToken, newPassword string) (ports.AuthOutcome, error) {
	if m.UpdatePassFunc != nil {
		return m.UpdatePassFunc(ctx, accessToken, newPassword)
	}
	return ports.AuthOutcome{OK: true, Status: 200}, nil
}

func (m *MockProvider) RequestPasswordReset(ctx context.Context, email, redirectTo string) (ports.AuthOutcome, error) {
	if m.RequestResetFunc != nil {
		return m.RequestResetFunc(ctx, email, redirectTo)
	}
	return ports.AuthOutcome{OK: true, Status: 200}, nil
}

func (m *MockProvider) AuthorizeURL(provider, redirectTo string) string {
	return m.AuthorizeBase + "?provider=" + provider + "&redirect_to=" + redirectTo
}

func (m *MockProvider) SignOut(ctx context.Context, accessToken string) error {
	m.mu.Lock()
	m.signOutCalls++
	m.mu.Unlock()

	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx, accessToken)
	}
	return nil
}

// RefreshCalls reports how many times RefreshToken ran.
func (m *MockProvider) RefreshCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshCalls
}

// FetchUserCalls reports how many times FetchCurrentUser ran.
func (m *MockProvider) FetchUserCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

// SignOutCalls reports how many times SignOut ran.
func (m *MockProvider) SignOutCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signOutCalls
}
