package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainsession "github.com/leadforge/sessionkit/internal/domain/session"
	"github.com/leadforge/sessionkit/internal/ports"
	"golang.org/x/sync/singleflight"
)

// RefreshBuffer is how close to expiry an access token may get before a
// restore path refreshes it.
const RefreshBuffer = 30 * time.Second

// fallbackMessage is surfaced when a failure carries no provider message.
const fallbackMessage = "Authentication failed"

var (
	errNoSession     = errors.New("no stored session")
	errRefreshFailed = errors.New("token refresh failed")
)

// ManagerOptions groups dependencies for Manager.
type ManagerOptions struct {
	Identity ports.IdentityProvider
	Store    *Store
	Fragment ports.FragmentCapture
	Logger   *slog.Logger
	Clock    ports.Clock
	// RefreshBuffer overrides the default refresh window. Zero keeps the
	// default.
	RefreshBuffer time.Duration
}

// Manager owns the session lifecycle: it restores state at startup,
// refreshes and verifies tokens, and is the sole writer of session
// storage. Construct one instance per application and inject it; methods
// are safe for concurrent use.
type Manager struct {
	identity      ports.IdentityProvider
	store         *Store
	fragment      ports.FragmentCapture
	logger        *slog.Logger
	clock         ports.Clock
	refreshBuffer time.Duration

	// group collapses concurrent refresh attempts into one network call.
	group singleflight.Group

	mu      sync.RWMutex
	current *domainsession.Record
}

// NewManager constructs a Manager.
func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = ports.RealClock{}
	}
	buffer := opts.RefreshBuffer
	if buffer <= 0 {
		buffer = RefreshBuffer
	}
	return &Manager{
		identity:      opts.Identity,
		store:         opts.Store,
		fragment:      opts.Fragment,
		logger:        logger,
		clock:         clock,
		refreshBuffer: buffer,
	}
}

// Result is the uniform outcome of an auth action. Failures are reported
// here, never as panics or errors, so callers can map them straight to UI.
type Result struct {
	OK      bool
	Message string
	// ConfirmationRequired is set when sign-up succeeded but the provider
	// wants email confirmation before issuing tokens.
	ConfirmationRequired bool
	// RedirectURL is set by OAuth sign-in: the caller navigates there.
	RedirectURL string
}

func failure(message string) Result {
	if message == "" {
		message = fallbackMessage
	}
	return Result{Message: message}
}

// RestoreResult reports a startup restore.
type RestoreResult struct {
	// Authenticated is true when a session survived restore, refresh and
	// server-side verification.
	Authenticated bool
	// CleanURL is the current URL with any captured token fragment
	// scrubbed. Apply with a history replace. Equal to the input URL when
	// nothing was captured, or when the capture could not be persisted
	// (never scrub a token that is not stored yet).
	CleanURL string
	// Recovery is true when the URL was a password-recovery return; the
	// caller should route to its password-reset screen.
	Recovery bool
}

// Restore is the primary startup entry point. Idempotent and safe to call
// on every page load: it captures redirect tokens from currentURL, reads
// stored state, refreshes near-expiry tokens, and verifies the session
// server-side. Any failure clears storage and reports unauthenticated.
func (m *Manager) Restore(ctx context.Context, currentURL string) RestoreResult {
	res := RestoreResult{CleanURL: currentURL}

	if currentURL != "" && m.fragment != nil {
		if capture := m.fragment.Parse(currentURL); capture != nil {
			mode := m.store.PreferredMode(ctx)
			if err := m.store.Write(ctx, capture.Record(), mode); err != nil {
				m.logger.ErrorContext(ctx, "persist captured tokens failed", "error", err)
			} else {
				res.CleanURL = m.fragment.Scrub(currentURL)
				res.Recovery = capture.Recovery
			}
		}
	}

	rec, mode, ok := m.freshSession(ctx)
	if !ok {
		m.setCurrent(nil)
		return res
	}

	user, err := m.identity.FetchCurrentUser(ctx, rec.AccessToken)
	if err != nil {
		m.logger.WarnContext(ctx, "session verification failed", "error", err)
		m.clearLocal(ctx)
		return res
	}

	rec.User = user
	if err := m.store.Write(ctx, *rec, mode); err != nil {
		m.logger.ErrorContext(ctx, "persist verified session failed", "error", err)
		m.clearLocal(ctx)
		return res
	}

	m.setCurrent(rec)
	res.Authenticated = true
	return res
}

// ValidAccessToken returns an access token that is not within the refresh
// buffer of expiry, refreshing first if needed. It skips the full
// verification call, except for sessions still carrying the unresolved
// OAuth placeholder identity: those are verified first so no caller ever
// observes a placeholder user.
func (m *Manager) ValidAccessToken(ctx context.Context) (string, bool) {
	rec, mode, ok := m.freshSession(ctx)
	if !ok {
		m.setCurrent(nil)
		return "", false
	}

	if rec.User.IsPlaceholder() {
		user, err := m.identity.FetchCurrentUser(ctx, rec.AccessToken)
		if err != nil {
			m.logger.WarnContext(ctx, "placeholder identity verification failed", "error", err)
			m.clearLocal(ctx)
			return "", false
		}
		rec.User = user
		if err := m.store.Write(ctx, *rec, mode); err != nil {
			m.logger.ErrorContext(ctx, "persist resolved identity failed", "error", err)
			m.clearLocal(ctx)
			return "", false
		}
	}

	m.setCurrent(rec)
	return rec.AccessToken, true
}

type freshResult struct {
	rec  domainsession.Record
	mode domainsession.Mode
}

// freshSession reads stored state and refreshes the token when it expires
// within the buffer. Concurrent callers share one refresh via
// singleflight; each flight re-reads storage at its start so a result
// persisted by an earlier flight is picked up instead of re-refreshed.
func (m *Manager) freshSession(ctx context.Context) (*domainsession.Record, domainsession.Mode, bool) {
	v, err, _ := m.group.Do("refresh", func() (any, error) {
		rec, mode, found := m.store.ReadPreferring(ctx)
		if !found {
			return nil, errNoSession
		}
		if !rec.ExpiresWithin(m.refreshBuffer, m.clock.Now()) {
			return freshResult{rec: *rec, mode: mode}, nil
		}

		outcome, refreshErr := m.identity.RefreshToken(ctx, rec.RefreshToken)
		if refreshErr != nil {
			m.logger.WarnContext(ctx, "token refresh failed", "error", refreshErr)
			m.clearLocal(ctx)
			return nil, fmt.Errorf("%w: %v", errRefreshFailed, refreshErr)
		}
		if !outcome.OK || outcome.Session == nil {
			m.logger.WarnContext(ctx, "token refresh rejected", "status", outcome.Status, "message", outcome.Message)
			m.clearLocal(ctx)
			return nil, errRefreshFailed
		}

		rotated := *outcome.Session
		if rotated.User.ID == "" {
			// Provider omitted the user on rotation; keep what we had.
			rotated.User = rec.User
		}
		if writeErr := m.store.Write(ctx, rotated, mode); writeErr != nil {
			m.logger.ErrorContext(ctx, "persist rotated session failed", "error", writeErr)
			m.clearLocal(ctx)
			return nil, fmt.Errorf("%w: persist: %v", errRefreshFailed, writeErr)
		}
		return freshResult{rec: rotated, mode: mode}, nil
	})
	if err != nil {
		return nil, domainsession.ModeDurable, false
	}
	fresh := v.(freshResult)
	return &fresh.rec, fresh.mode, true
}

// SignUp creates an account and, when the provider auto-confirms, persists
// the new session under mode.
func (m *Manager) SignUp(ctx context.Context, in ports.SignUpInput, mode domainsession.Mode) Result {
	if err := m.store.SetPreferredMode(ctx, mode); err != nil {
		m.logger.ErrorContext(ctx, "set storage mode failed", "error", err)
		return failure("")
	}

	outcome, err := m.identity.SignUp(ctx, in)
	if err != nil {
		m.logger.WarnContext(ctx, "sign up failed", "error", err)
		return failure("")
	}
	if !outcome.OK {
		return failure(outcome.Message)
	}
	if outcome.ConfirmationRequired {
		return Result{OK: true, ConfirmationRequired: true}
	}
	return m.adoptSession(ctx, outcome, mode)
}

// SignIn authenticates with email/password and persists the session under
// mode (the caller's remember-me choice).
func (m *Manager) SignIn(ctx context.Context, email, password string, mode domainsession.Mode) Result {
	if err := m.store.SetPreferredMode(ctx, mode); err != nil {
		m.logger.ErrorContext(ctx, "set storage mode failed", "error", err)
		return failure("")
	}

	outcome, err := m.identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		m.logger.WarnContext(ctx, "sign in failed", "error", err)
		return failure("")
	}
	if !outcome.OK {
		return failure(outcome.Message)
	}
	return m.adoptSession(ctx, outcome, mode)
}

func (m *Manager) adoptSession(ctx context.Context, outcome ports.AuthOutcome, mode domainsession.Mode) Result {
	if outcome.Session == nil {
		return failure("")
	}
	if err := m.store.Write(ctx, *outcome.Session, mode); err != nil {
		m.logger.ErrorContext(ctx, "persist session failed", "error", err)
		return failure("")
	}
	m.setCurrent(outcome.Session)
	return Result{OK: true}
}

// SignInWithOAuth fixes the storage mode for the session that will return
// via redirect, then hands back the provider authorize URL for the caller
// to navigate to. No network call happens here.
func (m *Manager) SignInWithOAuth(ctx context.Context, provider, redirectTo string, mode domainsession.Mode) Result {
	if err := m.store.SetPreferredMode(ctx, mode); err != nil {
		m.logger.ErrorContext(ctx, "set storage mode failed", "error", err)
		return failure("")
	}
	return Result{OK: true, RedirectURL: m.identity.AuthorizeURL(provider, redirectTo)}
}

// RequestPasswordReset asks the provider to send a recovery email. Never
// touches stored session state.
func (m *Manager) RequestPasswordReset(ctx context.Context, email, redirectTo string) Result {
	outcome, err := m.identity.RequestPasswordReset(ctx, email, redirectTo)
	if err != nil {
		m.logger.WarnContext(ctx, "password reset request failed", "error", err)
		return failure("")
	}
	if !outcome.OK {
		return failure(outcome.Message)
	}
	return Result{OK: true}
}

// UpdatePassword sets a new password for the signed-in user.
func (m *Manager) UpdatePassword(ctx context.Context, newPassword string) Result {
	token, ok := m.ValidAccessToken(ctx)
	if !ok {
		return failure("No active session")
	}

	outcome, err := m.identity.UpdatePassword(ctx, token, newPassword)
	if err != nil {
		m.logger.WarnContext(ctx, "password update failed", "error", err)
		return failure("")
	}
	if !outcome.OK {
		return failure(outcome.Message)
	}
	return Result{OK: true}
}

// SignOut clears the local session and revokes the token remotely, best
// effort. Remote failure never leaves the user locally signed in.
func (m *Manager) SignOut(ctx context.Context) Result {
	rec, _, found := m.store.ReadPreferring(ctx)

	if found {
		if err := m.identity.SignOut(ctx, rec.AccessToken); err != nil {
			// Swallowed: local sign-out must always succeed.
			m.logger.WarnContext(ctx, "remote sign out failed", "error", err)
		}
	}

	if err := m.store.Clear(ctx); err != nil {
		m.logger.ErrorContext(ctx, "clear session storage failed", "error", err)
		m.setCurrent(nil)
		return failure("Sign-out could not clear stored session")
	}
	m.setCurrent(nil)
	return Result{OK: true}
}

// Authenticated reports whether the last restore or sign-in left a live
// session. It reflects in-memory state; call Restore or ValidAccessToken
// to consult storage and the provider.
func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

// CurrentUser returns the verified user of the live session, if any.
func (m *Manager) CurrentUser() (domainsession.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return domainsession.User{}, false
	}
	return m.current.User, true
}

func (m *Manager) setCurrent(rec *domainsession.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec == nil {
		m.current = nil
		return
	}
	copied := *rec
	m.current = &copied
}

func (m *Manager) clearLocal(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.ErrorContext(ctx, "clear session storage failed", "error", err)
	}
	m.setCurrent(nil)
}
