package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/twidder/internal/client/client"
	"github.com/dmitrijs2005/twidder/internal/client/models"
)

func TestLogin_ValidCredentials(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.session.Login(context.Background(), "alice@x.com", "secret"))

	assert.Equal(t, map[string]string{"token": "T1", "email": "alice@x.com"}, h.stored())
	assert.Equal(t, Authenticated, h.session.State())

	sess, ok := h.session.Current()
	require.True(t, ok)
	assert.Equal(t, models.Session{Token: "T1", Email: "alice@x.com"}, sess)

	p, ok := h.session.Profile()
	require.True(t, ok)
	assert.Equal(t, "Alice A", p.FullName())

	assert.Equal(t, []string{"2", "1"}, h.renderer.ids(WallHome))
	assert.Equal(t, "alice@x.com", h.session.Home().Owner())
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h := newHarness()
	h.client.CreateSessionErr = client.ErrUnauthorized

	err := h.session.Login(context.Background(), "alice@x.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, ErrInvalidCredentials, KindOf(err))
	assert.Equal(t, "Invalid username or password.", Message(err))

	assert.Empty(t, h.stored())
	assert.Equal(t, Unauthenticated, h.session.State())
	assert.Equal(t, []string{"Invalid username or password."}, h.notifier.errors)
}

func TestLogin_ValidatesBeforeCalling(t *testing.T) {
	h := newHarness()
	h.client.CreateSessionErr = errors.New("must not be called")

	err := h.session.Login(context.Background(), "", "secret")
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, Unauthenticated, h.session.State())
}

func TestLogin_TransportFailureKeepsStoreEmpty(t *testing.T) {
	h := newHarness()
	h.client.CreateSessionErr = fmt.Errorf("%w: dial", client.ErrUnavailable)

	err := h.session.Login(context.Background(), "alice@x.com", "secret")
	require.ErrorIs(t, err, ErrTransport)
	assert.Empty(t, h.stored())
	assert.Equal(t, Unauthenticated, h.session.State())
}

func TestLogin_RejectedWhileAuthenticated(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.session.Login(ctx, "alice@x.com", "secret"))

	err := h.session.Login(ctx, "bob@x.com", "secret")
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "alice@x.com", h.stored()["email"])
}

func TestBootstrap_NoPersistedSession(t *testing.T) {
	h := newHarness()

	err := h.session.Bootstrap(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, Unauthenticated, h.session.State())
	assert.Empty(t, h.notifier.infos)
	assert.Zero(t, h.client.FetchCalls)
}

func TestBootstrap_HalfWrittenSessionIsDiscarded(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.store.Set(ctx, "token", "T1"))

	err := h.session.Bootstrap(ctx)
	require.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, h.stored())
}

func TestBootstrap_RestoresWithoutChannel(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.store.SetMany(ctx, map[string]string{"token": "T1", "email": "alice@x.com"}))

	require.NoError(t, h.session.Bootstrap(ctx))
	assert.Equal(t, Authenticated, h.session.State())
	assert.Equal(t, []string{"2", "1"}, h.renderer.ids(WallHome))
}

func TestBootstrap_ChannelHandshakeOK(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.client.Channel = &fakeChannel{Reply: "ok"}
	require.NoError(t, h.store.SetMany(ctx, map[string]string{"token": "T1", "email": "alice@x.com"}))

	require.NoError(t, h.session.Bootstrap(ctx))
	assert.Equal(t, Authenticated, h.session.State())
	assert.Equal(t, []string{"T1"}, h.client.Channel.Sent, "bearer credential is the raw token")
}

func TestBootstrap_ChannelHandshakeFail(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.client.Channel = &fakeChannel{Reply: "fail"}
	require.NoError(t, h.store.SetMany(ctx, map[string]string{"token": "T1", "email": "alice@x.com"}))

	err := h.session.Bootstrap(ctx)
	require.ErrorIs(t, err, ErrSessionInvalid)

	assert.Empty(t, h.stored())
	assert.Equal(t, Unauthenticated, h.session.State())
	assert.Equal(t, []string{"You have been logged out."}, h.notifier.infos)
	assert.Equal(t, 1, h.client.Channel.closed())
	assert.Zero(t, h.client.FetchCalls)

	// a late close of the rejected channel changes nothing
	h.client.Channel.PeerClose(errors.New("bye"))
	assert.Equal(t, 1, h.notifier.count("You have been logged out."))
}

func TestBootstrap_ProfileNotFoundInvalidatesSession(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.client.FetchUserErr = client.ErrNotFound
	require.NoError(t, h.store.SetMany(ctx, map[string]string{"token": "T1", "email": "alice@x.com"}))

	err := h.session.Bootstrap(ctx)
	require.ErrorIs(t, err, ErrSessionInvalid)
	assert.Empty(t, h.stored())
	assert.Equal(t, 1, h.notifier.count("You have been logged out."))
}

func TestBootstrap_TransportFailureKeepsSession(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.client.FetchPostsErr = fmt.Errorf("%w: connection refused", client.ErrUnavailable)
	require.NoError(t, h.store.SetMany(ctx, map[string]string{"token": "T1", "email": "alice@x.com"}))

	err := h.session.Bootstrap(ctx)
	require.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, Unauthenticated, h.session.State())
	assert.Equal(t, map[string]string{"token": "T1", "email": "alice@x.com"}, h.stored())
	assert.Zero(t, h.notifier.count("You have been logged out."))
}

func TestBootstrap_PartialSuccessRendersNothing(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.client.FetchUserErr = client.ErrForbidden
	require.NoError(t, h.store.SetMany(ctx, map[string]string{"token": "T1", "email": "alice@x.com"}))

	require.Error(t, h.session.Bootstrap(ctx))
	assert.Zero(t, h.renderer.batches(WallHome))
	_, ok := h.session.Profile()
	assert.False(t, ok)
}

func TestLogout_BestEffortDestroy(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.client.Channel = &fakeChannel{Reply: "ok"}
	require.NoError(t, h.session.Login(ctx, "alice@x.com", "secret"))

	h.client.set(func(f *fakeClient) { f.DestroySessionErr = fmt.Errorf("%w: timeout", client.ErrUnavailable) })
	require.NoError(t, h.session.Logout(ctx))

	assert.Empty(t, h.stored())
	assert.Equal(t, Unauthenticated, h.session.State())
	assert.Equal(t, 1, h.client.DestroyCalls)
	assert.Equal(t, models.Session{Token: "T1", Email: "alice@x.com"}, h.client.LastSession)
	assert.Len(t, h.notifier.errors, 1)
	assert.Equal(t, []string{"You have successfully logged out."}, h.notifier.successes)
	assert.Zero(t, h.notifier.count("You have been logged out."))
	assert.Equal(t, 1, h.client.Channel.closed())
	assert.Empty(t, h.session.Home().View())
	assert.Empty(t, h.renderer.ids(WallHome))

	err := h.session.Logout(ctx)
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestChannelClose_LogsOutOnceWithoutDestroy(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.client.Channel = &fakeChannel{Reply: "ok"}
	require.NoError(t, h.session.Login(ctx, "alice@x.com", "secret"))

	h.client.Channel.PeerClose(errors.New("revoked"))
	h.client.Channel.PeerClose(errors.New("revoked again"))

	assert.Empty(t, h.stored())
	assert.Equal(t, Unauthenticated, h.session.State())
	assert.Equal(t, 1, h.notifier.count("You have been logged out."))
	assert.Zero(t, h.client.DestroyCalls)
}

func TestChannelClose_RacesWithLogout(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newHarness()
		ctx := context.Background()
		h.client.Channel = &fakeChannel{Reply: "ok"}
		require.NoError(t, h.session.Login(ctx, "alice@x.com", "secret"))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = h.session.Logout(ctx)
		}()
		go func() {
			defer wg.Done()
			h.client.Channel.PeerClose(errors.New("revoked"))
		}()
		wg.Wait()

		assert.Empty(t, h.stored())
		assert.Equal(t, Unauthenticated, h.session.State())
		cleanups := h.notifier.count("You have been logged out.") + h.notifier.count("You have successfully logged out.")
		assert.Equal(t, 1, cleanups, "exactly one cleanup must report")
	}
}

func TestDataOperationUnauthorizedInvalidates(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.session.Login(ctx, "alice@x.com", "secret"))

	h.client.set(func(f *fakeClient) { f.FetchPostsErr = client.ErrUnauthorized })
	err := h.session.Home().Reload(ctx, "alice@x.com")
	require.ErrorIs(t, err, ErrSessionInvalid)

	assert.Empty(t, h.stored())
	assert.Equal(t, Unauthenticated, h.session.State())
	assert.Equal(t, 1, h.notifier.count("You have been logged out."))
}

func TestDataOperationTransportErrorKeepsSession(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.session.Login(ctx, "alice@x.com", "secret"))

	h.client.set(func(f *fakeClient) { f.FetchPostsErr = fmt.Errorf("%w: reset", client.ErrUnavailable) })
	err := h.session.Home().Reload(ctx, "alice@x.com")
	require.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, Authenticated, h.session.State())
	assert.NotEmpty(t, h.stored())
}

func TestSessionStoreInvariant_LoginLogoutSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	h := newHarness()
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		switch rng.Intn(4) {
		case 0:
			h.client.set(func(f *fakeClient) { f.CreateSessionErr = nil; f.CreateSessionToken = fmt.Sprintf("T%d", i) })
			_ = h.session.Login(ctx, "alice@x.com", "secret")
		case 1:
			h.client.set(func(f *fakeClient) { f.CreateSessionErr = client.ErrUnauthorized })
			_ = h.session.Login(ctx, "alice@x.com", "wrong")
		case 2:
			_ = h.session.Logout(ctx)
		case 3:
			_ = h.session.Bootstrap(ctx)
		}

		m := h.stored()
		_, hasToken := m["token"]
		_, hasEmail := m["email"]
		require.Equal(t, hasToken, hasEmail, "step %d: %v", i, m)
	}
}
