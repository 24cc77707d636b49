package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leadforge/sessionkit/internal/adapters/fragment"
	"github.com/leadforge/sessionkit/internal/adapters/memory"
	domainsession "github.com/leadforge/sessionkit/internal/domain/session"
	mockidentity "github.com/leadforge/sessionkit/internal/mocks/identity"
	"github.com/leadforge/sessionkit/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type managerFixture struct {
	manager   *Manager
	store     *Store
	durable   *memory.Backend
	ephemeral *memory.Backend
	provider  *mockidentity.MockProvider
	now       time.Time
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	now := time.Now()
	durable := memory.NewBackend()
	ephemeral := memory.NewBackend()
	store := NewStore(StoreOptions{Durable: durable, Ephemeral: ephemeral, Logger: discardLogger()})
	provider := mockidentity.NewMockProvider()

	manager := NewManager(ManagerOptions{
		Identity: provider,
		Store:    store,
		Fragment: fragment.NewCapture(fixedClock{now: now}),
		Logger:   discardLogger(),
		Clock:    fixedClock{now: now},
	})

	return &managerFixture{
		manager:   manager,
		store:     store,
		durable:   durable,
		ephemeral: ephemeral,
		provider:  provider,
		now:       now,
	}
}

func (f *managerFixture) seedSession(t *testing.T, expiresAt int64) domainsession.Record {
	t.Helper()
	rec := domainsession.Record{
		AccessToken:  "AT",
		RefreshToken: "RT",
		ExpiresAt:    expiresAt,
		User:         domainsession.User{ID: "u1", Email: "a@b.com"},
	}
	require.NoError(t, f.store.Write(context.Background(), rec, domainsession.ModeDurable))
	return rec
}

func TestRestore_ColdStartValidSession(t *testing.T) {
	f := newManagerFixture(t)
	f.seedSession(t, f.now.Add(time.Hour).Unix())
	f.provider.DefaultUser = domainsession.User{ID: "u1", Email: "a@b.com"}

	res := f.manager.Restore(context.Background(), "")

	assert.True(t, res.Authenticated)
	assert.Zero(t, f.provider.RefreshCalls())
	assert.Equal(t, 1, f.provider.FetchUserCalls())

	stored, _, found := f.store.ReadPreferring(context.Background())
	require.True(t, found)
	assert.Equal(t, domainsession.User{ID: "u1", Email: "a@b.com"}, stored.User)

	assert.True(t, f.manager.Authenticated())
	user, ok := f.manager.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "u1", user.ID)
}

func TestRestore_NoStoredSession(t *testing.T) {
	f := newManagerFixture(t)

	res := f.manager.Restore(context.Background(), "https://app.example.com/dashboard")

	assert.False(t, res.Authenticated)
	assert.False(t, f.manager.Authenticated())
	assert.Zero(t, f.provider.FetchUserCalls())
}

func TestRestore_RefreshBoundary(t *testing.T) {
	t.Run("29 seconds to expiry triggers refresh", func(t *testing.T) {
		f := newManagerFixture(t)
		f.seedSession(t, f.now.Add(29*time.Second).Unix())

		res := f.manager.Restore(context.Background(), "")

		assert.True(t, res.Authenticated)
		assert.Equal(t, 1, f.provider.RefreshCalls())
	})

	t.Run("31 seconds to expiry does not", func(t *testing.T) {
		f := newManagerFixture(t)
		f.seedSession(t, f.now.Add(31*time.Second).Unix())

		res := f.manager.Restore(context.Background(), "")

		assert.True(t, res.Authenticated)
		assert.Zero(t, f.provider.RefreshCalls())
	})
}

func TestRestore_RefreshRotatesPersistedTokens(t *testing.T) {
	f := newManagerFixture(t)
	f.seedSession(t, f.now.Add(-5*time.Second).Unix())

	res := f.manager.Restore(context.Background(), "")

	assert.True(t, res.Authenticated)

	stored, _, found := f.store.ReadPreferring(context.Background())
	require.True(t, found)
	assert.Equal(t, "rotated-mock-access-token", stored.AccessToken)
	assert.Equal(t, "rotated-RT", stored.RefreshToken)
}

func TestRestore_RefreshRejectedClearsStorage(t *testing.T) {
	f := newManagerFixture(t)
	f.seedSession(t, f.now.Add(-5*time.Second).Unix())
	f.provider.RefreshFunc = func(context.Context, string) (ports.AuthOutcome, error) {
		return ports.AuthOutcome{Status: 400, Message: "invalid refresh token"}, nil
	}

	res := f.manager.Restore(context.Background(), "")

	assert.False(t, res.Authenticated)
	assert.Zero(t, f.durable.Len())
	assert.Zero(t, f.ephemeral.Len())
	assert.Zero(t, f.provider.FetchUserCalls())
}

func TestRestore_RefreshNetworkFailureClearsStorage(t *testing.T) {
	f := newManagerFixture(t)
	f.seedSession(t, f.now.Add(-5*time.Second).Unix())
	f.provider.RefreshFunc = func(context.Context, string) (ports.AuthOutcome, error) {
		return ports.AuthOutcome{}, errors.New("connection refused")
	}

	res := f.manager.Restore(context.Background(), "")

	assert.False(t, res.Authenticated)
	assert.Zero(t, f.durable.Len())
	assert.Zero(t, f.ephemeral.Len())
}

func TestRestore_VerificationFailureClearsStorage(t *testing.T) {
	f := newManagerFixture(t)
	f.seedSession(t, f.now.Add(time.Hour).Unix())
	f.provider.FetchUserFunc = func(context.Context, string) (domainsession.User, error) {
		return domainsession.User{}, errors.New("401: invalid token")
	}

	res := f.manager.Restore(context.Background(), "")

	assert.False(t, res.Authenticated)
	assert.Zero(t, f.durable.Len())
	assert.Zero(t, f.ephemeral.Len())
	assert.False(t, f.manager.Authenticated())
}

func TestRestore_OAuthCaptureThenVerify(t *testing.T) {
	f := newManagerFixture(t)
	f.provider.FetchUserFunc = func(_ context.Context, accessToken string) (domainsession.User, error) {
		assert.Equal(t, "AT", accessToken)
		return domainsession.User{ID: "u2"}, nil
	}

	currentURL := "https://app.example.com/dashboard#access_token=AT&refresh_token=RT&expires_in=3600"
	res := f.manager.Restore(context.Background(), currentURL)

	assert.True(t, res.Authenticated)
	assert.Equal(t, "https://app.example.com/dashboard", res.CleanURL)
	assert.NotContains(t, res.CleanURL, "access_token")

	stored, _, found := f.store.ReadPreferring(context.Background())
	require.True(t, found)
	assert.Equal(t, "AT", stored.AccessToken)
	assert.Equal(t, "u2", stored.User.ID)
	assert.False(t, stored.User.IsPlaceholder())
}

func TestRestore_IncompleteFragmentIgnored(t *testing.T) {
	f := newManagerFixture(t)

	currentURL := "https://app.example.com/dashboard#access_token=AT"
	res := f.manager.Restore(context.Background(), currentURL)

	assert.False(t, res.Authenticated)
	// Nothing captured, nothing scrubbed.
	assert.Equal(t, currentURL, res.CleanURL)
	assert.Zero(t, f.durable.Len())
}

func TestRestore_RecoveryReturnFlagged(t *testing.T) {
	f := newManagerFixture(t)
	f.provider.FetchUserFunc = func(context.Context, string) (domainsession.User, error) {
		return domainsession.User{ID: "u2"}, nil
	}

	res := f.manager.Restore(context.Background(),
		"https://app.example.com/#access_token=AT&refresh_token=RT&type=recovery")

	assert.True(t, res.Authenticated)
	assert.True(t, res.Recovery)
}

func TestValidAccessToken_NoSession(t *testing.T) {
	f := newManagerFixture(t)

	token, ok := f.manager.ValidAccessToken(context.Background())

	assert.False(t, ok)
	assert.Empty(t, token)
}

func TestValidAccessToken_FreshSessionSkipsNetwork(t *testing.T) {
	f := newManagerFixture(t)
	f.seedSession(t, f.now.Add(time.Hour).Unix())

	token, ok := f.manager.ValidAccessToken(context.Background())

	require.True(t, ok)
	assert.Equal(t, "AT", token)
	assert.Zero(t, f.provider.RefreshCalls())
	assert.Zero(t, f.provider.FetchUserCalls())
}

func TestValidAccessToken_RefreshFailureReturnsNothing(t *testing.T) {
	f := newManagerFixture(t)
	f.seedSession(t, f.now.Add(-time.Minute).Unix())
	f.provider.RefreshFunc = func(context.Context, string) (ports.AuthOutcome, error) {
		return ports.AuthOutcome{Status: 400, Message: "invalid refresh token"}, nil
	}

	token, ok := f.manager.ValidAccessToken(context.Background())

	assert.False(t, ok)
	assert.Empty(t, token)
	assert.Zero(t, f.durable.Len())
}

func TestValidAccessToken_ResolvesPlaceholderIdentity(t *testing.T) {
	f := newManagerFixture(t)
	capture := domainsession.PendingCapture{
		AccessToken:  "AT",
		RefreshToken: "RT",
		ExpiresAt:    f.now.Add(time.Hour).Unix(),
	}
	require.NoError(t, f.store.Write(context.Background(), capture.Record(), domainsession.ModeDurable))
	f.provider.FetchUserFunc = func(context.Context, string) (domainsession.User, error) {
		return domainsession.User{ID: "u2", Email: "u2@b.com"}, nil
	}

	token, ok := f.manager.ValidAccessToken(context.Background())

	require.True(t, ok)
	assert.Equal(t, "AT", token)
	assert.Equal(t, 1, f.provider.FetchUserCalls())

	stored, _, found := f.store.ReadPreferring(context.Background())
	require.True(t, found)
	assert.Equal(t, "u2", stored.User.ID)
}

func TestValidAccessToken_ConcurrentCallersShareOneRefresh(t *testing.T) {
	f := newManagerFixture(t)
	f.seedSession(t, f.now.Add(10*time.Second).Unix())

	release := make(chan struct{})
	f.provider.RefreshFunc = func(context.Context, string) (ports.AuthOutcome, error) {
		<-release
		return ports.AuthOutcome{OK: true, Status: 200, Session: &domainsession.Record{
			AccessToken:  "AT-new",
			RefreshToken: "RT-new",
			ExpiresAt:    f.now.Add(time.Hour).Unix(),
			User:         domainsession.User{ID: "u1"},
		}}, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		i := i
		go func() {
			defer wg.Done()
			tokens[i], _ = f.manager.ValidAccessToken(context.Background())
		}()
	}

	// Let every caller reach the in-flight refresh before it completes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, f.provider.RefreshCalls())
	for _, token := range tokens {
		assert.Equal(t, "AT-new", token)
	}
}

func TestSignIn_PersistsUnderChosenMode(t *testing.T) {
	f := newManagerFixture(t)

	res := f.manager.SignIn(context.Background(), "a@b.com", "secret", domainsession.ModeEphemeral)

	assert.True(t, res.OK)
	assert.Equal(t, domainsession.ModeEphemeral, f.store.PreferredMode(context.Background()))

	// Record sits in the ephemeral backend only.
	assert.Zero(t, f.durable.Len())
	stored, mode, found := f.store.ReadPreferring(context.Background())
	require.True(t, found)
	assert.Equal(t, domainsession.ModeEphemeral, mode)
	assert.Equal(t, "mock-access-token", stored.AccessToken)
	assert.True(t, f.manager.Authenticated())
}

func TestSignIn_ProviderRejection(t *testing.T) {
	f := newManagerFixture(t)
	f.provider.SignInFunc = func(context.Context, string, string) (ports.AuthOutcome, error) {
		return ports.AuthOutcome{Status: 400, Message: "Invalid login credentials"}, nil
	}

	res := f.manager.SignIn(context.Background(), "a@b.com", "wrong", domainsession.ModeDurable)

	assert.False(t, res.OK)
	assert.Equal(t, "Invalid login credentials", res.Message)
	assert.False(t, f.manager.Authenticated())
}

func TestSignIn_NetworkFailureUniformResult(t *testing.T) {
	f := newManagerFixture(t)
	f.provider.SignInFunc = func(context.Context, string, string) (ports.AuthOutcome, error) {
		return ports.AuthOutcome{}, errors.New("dial tcp: connection refused")
	}

	res := f.manager.SignIn(context.Background(), "a@b.com", "secret", domainsession.ModeDurable)

	assert.False(t, res.OK)
	assert.Equal(t, fallbackMessage, res.Message)
}

func TestSignUp_ConfirmationRequired(t *testing.T) {
	f := newManagerFixture(t)
	f.provider.SignUpFunc = func(context.Context, ports.SignUpInput) (ports.AuthOutcome, error) {
		return ports.AuthOutcome{OK: true, Status: 200, ConfirmationRequired: true}, nil
	}

	res := f.manager.SignUp(context.Background(), ports.SignUpInput{Email: "new@b.com", Password: "secret"}, domainsession.ModeDurable)

	assert.True(t, res.OK)
	assert.True(t, res.ConfirmationRequired)
	_, _, found := f.store.ReadPreferring(context.Background())
	assert.False(t, found, "no session should be stored while confirmation is pending")
	assert.False(t, f.manager.Authenticated())
}

func TestSignInWithOAuth_FixesModeAndBuildsRedirect(t *testing.T) {
	f := newManagerFixture(t)

	res := f.manager.SignInWithOAuth(context.Background(), "google", "https://app.example.com/", domainsession.ModeEphemeral)

	assert.True(t, res.OK)
	assert.Contains(t, res.RedirectURL, "provider=google")
	assert.Equal(t, domainsession.ModeEphemeral, f.store.PreferredMode(context.Background()))
}

func TestUpdatePassword_RequiresSession(t *testing.T) {
	f := newManagerFixture(t)

	res := f.manager.UpdatePassword(context.Background(), "new-secret")

	assert.False(t, res.OK)
	assert.Equal(t, "No active session", res.Message)
}

func TestUpdatePassword_UsesFreshToken(t *testing.T) {
	f := newManagerFixture(t)
	f.seedSession(t, f.now.Add(time.Hour).Unix())

	var gotToken string
	f.provider.UpdatePassFunc = func(_ context.Context, accessToken, _ string) (ports.AuthOutcome, error) {
		gotToken = accessToken
		return ports.AuthOutcome{OK: true, Status: 200}, nil
	}

	res := f.manager.UpdatePassword(context.Background(), "new-secret")

	assert.True(t, res.OK)
	assert.Equal(t, "AT", gotToken)
}

func TestSignOut_AlwaysClearsLocally(t *testing.T) {
	f := newManagerFixture(t)
	f.seedSession(t, f.now.Add(time.Hour).Unix())
	f.provider.SignOutFunc = func(context.Context, string) error {
		return errors.New("network down")
	}

	res := f.manager.SignOut(context.Background())

	assert.True(t, res.OK)
	assert.Equal(t, 1, f.provider.SignOutCalls())
	assert.Zero(t, f.durable.Len())
	assert.Zero(t, f.ephemeral.Len())
	assert.False(t, f.manager.Authenticated())
}

func TestSignOut_NoSessionSkipsRemoteCall(t *testing.T) {
	f := newManagerFixture(t)

	res := f.manager.SignOut(context.Background())

	assert.True(t, res.OK)
	assert.Zero(t, f.provider.SignOutCalls())
}

func TestRequestPasswordReset_NeverTouchesSession(t *testing.T) {
	f := newManagerFixture(t)
	rec := f.seedSession(t, f.now.Add(time.Hour).Unix())

	res := f.manager.RequestPasswordReset(context.Background(), "a@b.com", "https://app.example.com/reset")

	assert.True(t, res.OK)
	stored, _, found := f.store.ReadPreferring(context.Background())
	require.True(t, found)
	assert.Equal(t, rec, *stored)
}
