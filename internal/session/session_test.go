package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"support-portal/internal/authz"
	"support-portal/internal/credential"
	"support-portal/internal/model"
	"support-portal/pkg/apierror"
)

type fakeAPI struct {
	mu            sync.Mutex
	store         credential.Store
	loginResp     model.AuthResponse
	loginErr      error
	registerResp  model.AuthResponse
	registerErr   error
	registerReq   model.RegisterRequest
	me            func(ctx context.Context, call int, token string) (model.Identity, error)
	loginCalls    int
	registerCalls int
	meCalls       int
}

func (f *fakeAPI) Login(_ context.Context, _ string, _ string) (model.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	return f.loginResp, f.loginErr
}

func (f *fakeAPI) Register(_ context.Context, req model.RegisterRequest) (model.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	f.registerReq = req
	return f.registerResp, f.registerErr
}

func (f *fakeAPI) Me(ctx context.Context) (model.Identity, error) {
	f.mu.Lock()
	f.meCalls++
	call := f.meCalls
	me := f.me
	f.mu.Unlock()

	token, _ := f.store.Read(ctx)
	if me == nil {
		return model.Identity{}, apierror.New("UNAUTHORIZED", "Invalid token", "", http.StatusUnauthorized)
	}
	return me(ctx, call, token)
}

func (f *fakeAPI) calls() (login int, register int, me int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.registerCalls, f.meCalls
}

func customer(name string) model.Identity {
	return model.Identity{ID: 1, Email: "a@x.com", Name: name, Role: model.RoleCustomer}
}

func rejected() error {
	return apierror.New("UNAUTHORIZED", "Invalid token", "", http.StatusUnauthorized)
}

func networkDown() error {
	return fmt.Errorf("%w: dial tcp: connection refused", model.ErrNetwork)
}

func newSession(t *testing.T, opts ...Option) (*Session, *fakeAPI, credential.Store) {
	t.Helper()

	store := credential.NewMemoryStore()
	api := &fakeAPI{store: store}
	return New(api, store, opts...), api, store
}

func storedToken(t *testing.T, store credential.Store) string {
	t.Helper()
	token, err := store.Read(context.Background())
	if errors.Is(err, model.ErrNoToken) {
		return ""
	}
	require.NoError(t, err)
	return token
}

func TestNewSessionIsLoading(t *testing.T) {
	t.Parallel()

	s, _, _ := newSession(t)
	snap := s.Snapshot()
	require.Equal(t, StateInit, snap.State)
	require.True(t, snap.Loading)
	require.Nil(t, snap.Identity)
}

func TestInit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("no token settles anonymous without a network call", func(t *testing.T) {
		s, api, _ := newSession(t)
		s.Init(ctx)

		snap := s.Snapshot()
		require.Equal(t, StateUnauthenticated, snap.State)
		require.False(t, snap.Loading)
		require.Nil(t, snap.Identity)
		_, _, meCalls := api.calls()
		require.Zero(t, meCalls)
	})

	t.Run("valid token resolves identity", func(t *testing.T) {
		s, api, store := newSession(t)
		require.NoError(t, store.Save(ctx, "T1"))
		api.me = func(_ context.Context, _ int, token string) (model.Identity, error) {
			require.Equal(t, "T1", token)
			return customer("Ann"), nil
		}

		s.Init(ctx)

		snap := s.Snapshot()
		require.Equal(t, StateResolved, snap.State)
		require.False(t, snap.Loading)
		require.NotNil(t, snap.Identity)
		require.Equal(t, "Ann", snap.Identity.Name)
		require.Equal(t, "T1", storedToken(t, store))
	})

	t.Run("rejected token clears the store and gates to login", func(t *testing.T) {
		s, api, store := newSession(t)
		require.NoError(t, store.Save(ctx, "T1"))
		api.me = func(context.Context, int, string) (model.Identity, error) { return model.Identity{}, rejected() }

		s.Init(ctx)

		snap := s.Snapshot()
		require.Equal(t, StateUnauthenticated, snap.State)
		require.Nil(t, snap.Identity)
		require.Empty(t, storedToken(t, store))

		for _, roles := range []model.RoleSet{
			model.NewRoleSet(),
			model.NewRoleSet(model.RoleAdmin),
			model.NewRoleSet(model.RoleCustomer, model.RoleAgent),
		} {
			require.Equal(t, authz.RedirectLogin, authz.Authorize(snap.Identity, snap.Loading, roles).Kind)
		}
	})

	t.Run("network failure keeps the token", func(t *testing.T) {
		s, api, store := newSession(t)
		require.NoError(t, store.Save(ctx, "T1"))
		api.me = func(context.Context, int, string) (model.Identity, error) { return model.Identity{}, networkDown() }

		s.Init(ctx)

		snap := s.Snapshot()
		require.Equal(t, StateUnauthenticated, snap.State)
		require.False(t, snap.Loading)
		require.Nil(t, snap.Identity)
		require.Equal(t, "T1", storedToken(t, store))
	})

	t.Run("expired jwt is rejected without a network call", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		s, api, store := newSession(t, WithClock(func() time.Time { return now }))

		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "a@x.com",
			"exp": now.Add(-time.Minute).Unix(),
		}).SignedString([]byte("server-secret"))
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, token))

		s.Init(ctx)

		require.Equal(t, StateUnauthenticated, s.Snapshot().State)
		require.Empty(t, storedToken(t, store))
		_, _, meCalls := api.calls()
		require.Zero(t, meCalls)
	})

	t.Run("unexpired jwt exposes its expiry", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		s, api, store := newSession(t, WithClock(func() time.Time { return now }))
		exp := now.Add(time.Hour).Truncate(time.Second)

		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, token))
		api.me = func(context.Context, int, string) (model.Identity, error) { return customer("Ann"), nil }

		s.Init(ctx)

		snap := s.Snapshot()
		require.Equal(t, StateResolved, snap.State)
		require.NotNil(t, snap.ExpiresAt)
		require.True(t, exp.Equal(*snap.ExpiresAt))
	})
}

func TestLoadingFlipsOncePerResolution(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		loading []bool
	)
	s, api, store := newSession(t, WithObserver(func(snap Snapshot) {
		mu.Lock()
		loading = append(loading, snap.Loading)
		mu.Unlock()
	}))
	require.NoError(t, store.Save(ctx, "T1"))
	api.me = func(context.Context, int, string) (model.Identity, error) { return customer("Ann"), nil }

	require.True(t, s.Snapshot().Loading)
	s.Init(ctx)
	require.False(t, s.Snapshot().Loading)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, loading)
	require.False(t, loading[len(loading)-1])

	flips := 0
	for i := 1; i < len(loading); i++ {
		if loading[i-1] && !loading[i] {
			flips++
		}
	}
	require.Equal(t, 1, flips)
	for _, v := range loading[:len(loading)-1] {
		require.True(t, v, "loading stays true until the outcome commits")
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success stores token before the profile fetch", func(t *testing.T) {
		s, api, store := newSession(t)
		s.Init(ctx)

		optimistic := customer("From login")
		api.loginResp = model.AuthResponse{Token: "T1", User: &optimistic}
		api.me = func(_ context.Context, _ int, token string) (model.Identity, error) {
			require.Equal(t, "T1", token, "token persisted before profile fetch")

			snap := s.Snapshot()
			require.True(t, snap.Loading)
			require.Equal(t, StateResolving, snap.State)
			require.NotNil(t, snap.Identity)
			require.Equal(t, "From login", snap.Identity.Name)

			return customer("From profile"), nil
		}

		result, err := s.Login(ctx, "a@x.com", "secret1")
		require.NoError(t, err)
		require.True(t, result.Success)
		require.Empty(t, result.Error)
		require.NotNil(t, result.Identity)
		require.Equal(t, "From profile", result.Identity.Name)
		require.Equal(t, model.RoleCustomer, result.Identity.Role)

		snap := s.Snapshot()
		require.Equal(t, StateResolved, snap.State)
		require.False(t, snap.Loading)
		require.Equal(t, "From profile", snap.Identity.Name)
		require.Equal(t, "T1", storedToken(t, store))
	})

	t.Run("token-only response waits for the profile", func(t *testing.T) {
		s, api, _ := newSession(t)
		s.Init(ctx)

		api.loginResp = model.AuthResponse{Token: "T1"}
		api.me = func(context.Context, int, string) (model.Identity, error) {
			require.Nil(t, s.Snapshot().Identity)
			return customer("Ann"), nil
		}

		result, err := s.Login(ctx, "a@x.com", "secret1")
		require.NoError(t, err)
		require.True(t, result.Success)
		require.Equal(t, "Ann", result.Identity.Name)
	})

	t.Run("rejection leaves stored state untouched", func(t *testing.T) {
		s, api, store := newSession(t)
		require.NoError(t, store.Save(ctx, "PREVIOUS"))
		api.me = func(context.Context, int, string) (model.Identity, error) { return customer("Prev"), nil }
		s.Init(ctx)
		before := s.Snapshot()

		api.loginErr = apierror.New("UNAUTHORIZED", "Invalid credentials", "", http.StatusUnauthorized)
		result, err := s.Login(ctx, "a@x.com", "wrong")
		require.NoError(t, err)
		require.False(t, result.Success)
		require.Equal(t, "Invalid credentials", result.Error)

		after := s.Snapshot()
		require.Equal(t, "PREVIOUS", storedToken(t, store))
		require.Equal(t, before.Identity, after.Identity)
		require.Equal(t, before.Cycle, after.Cycle)
		require.False(t, after.Loading)
	})

	t.Run("rejection without a server message uses the generic text", func(t *testing.T) {
		s, api, _ := newSession(t)
		s.Init(ctx)
		api.loginErr = apierror.FromResponse(http.StatusUnauthorized, nil, "")

		result, err := s.Login(ctx, "a@x.com", "wrong")
		require.NoError(t, err)
		require.Equal(t, MsgLoginFailed, result.Error)
	})

	t.Run("network error", func(t *testing.T) {
		s, api, store := newSession(t)
		s.Init(ctx)
		api.loginErr = networkDown()

		result, err := s.Login(ctx, "a@x.com", "secret1")
		require.NoError(t, err)
		require.False(t, result.Success)
		require.Equal(t, MsgNetworkError, result.Error)
		require.Empty(t, storedToken(t, store))
	})

	t.Run("empty fields never reach the network", func(t *testing.T) {
		s, api, _ := newSession(t)
		result, err := s.Login(ctx, "  ", "secret1")
		require.NoError(t, err)
		require.Equal(t, MsgFieldsRequired, result.Error)

		result, err = s.Login(ctx, "a@x.com", "")
		require.NoError(t, err)
		require.Equal(t, MsgFieldsRequired, result.Error)

		loginCalls, _, _ := api.calls()
		require.Zero(t, loginCalls)
	})

	t.Run("profile rejection after login clears the new token", func(t *testing.T) {
		s, api, store := newSession(t)
		s.Init(ctx)
		optimistic := customer("Ann")
		api.loginResp = model.AuthResponse{Token: "T1", User: &optimistic}
		api.me = func(context.Context, int, string) (model.Identity, error) { return model.Identity{}, rejected() }

		result, err := s.Login(ctx, "a@x.com", "secret1")
		require.NoError(t, err)
		require.False(t, result.Success)
		require.Equal(t, "Invalid token", result.Error)
		require.Nil(t, s.Snapshot().Identity)
		require.Empty(t, storedToken(t, store))
	})

	t.Run("profile network failure keeps the optimistic identity", func(t *testing.T) {
		s, api, store := newSession(t)
		s.Init(ctx)
		optimistic := customer("Ann")
		api.loginResp = model.AuthResponse{Token: "T1", User: &optimistic}
		api.me = func(context.Context, int, string) (model.Identity, error) { return model.Identity{}, networkDown() }

		result, err := s.Login(ctx, "a@x.com", "secret1")
		require.NoError(t, err)
		require.True(t, result.Success)
		require.Equal(t, "Ann", result.Identity.Name)
		require.Equal(t, StateResolved, s.Snapshot().State)
		require.Equal(t, "T1", storedToken(t, store))
	})

	t.Run("response without token is a failure", func(t *testing.T) {
		s, api, store := newSession(t)
		s.Init(ctx)
		api.loginResp = model.AuthResponse{}

		result, err := s.Login(ctx, "a@x.com", "secret1")
		require.NoError(t, err)
		require.False(t, result.Success)
		require.Equal(t, MsgLoginFailed, result.Error)
		require.Empty(t, storedToken(t, store))
	})
}

type failingStore struct {
	credential.Store
}

func (failingStore) Save(context.Context, string) error {
	return errors.New("disk full")
}

func TestLoginStoreFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := failingStore{Store: credential.NewMemoryStore()}
	api := &fakeAPI{store: store, loginResp: model.AuthResponse{Token: "T1"}}
	s := New(api, store)
	s.Init(ctx)

	_, err := s.Login(ctx, "a@x.com", "secret1")
	require.ErrorContains(t, err, "disk full")

	snap := s.Snapshot()
	require.Nil(t, snap.Identity)
	require.False(t, snap.Loading)
	_, _, meCalls := api.calls()
	require.Zero(t, meCalls)
}

func TestRegister(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("defaults to customer role", func(t *testing.T) {
		s, api, store := newSession(t)
		s.Init(ctx)
		api.registerResp = model.AuthResponse{Token: "T7"}
		api.me = func(context.Context, int, string) (model.Identity, error) { return customer("New"), nil }

		result, err := s.Register(ctx, Registration{Name: " New ", Email: "new@x.com", Password: "secret1"})
		require.NoError(t, err)
		require.True(t, result.Success)
		require.Equal(t, "CUSTOMER", api.registerReq.Role)
		require.Equal(t, "New", api.registerReq.Name)
		require.Equal(t, "T7", storedToken(t, store))
	})

	t.Run("server rejection message is surfaced", func(t *testing.T) {
		s, api, store := newSession(t)
		s.Init(ctx)
		api.registerErr = apierror.New("BAD_REQUEST", "Email already in use", "", http.StatusBadRequest)

		result, err := s.Register(ctx, Registration{Name: "New", Email: "new@x.com", Password: "secret1"})
		require.NoError(t, err)
		require.Equal(t, "Email already in use", result.Error)
		require.Empty(t, storedToken(t, store))
	})

	t.Run("missing fields", func(t *testing.T) {
		s, api, _ := newSession(t)
		result, err := s.Register(ctx, Registration{Email: "new@x.com", Password: "secret1"})
		require.NoError(t, err)
		require.Equal(t, MsgFieldsRequired, result.Error)
		_, registerCalls, _ := api.calls()
		require.Zero(t, registerCalls)
	})
}

func TestLogoutDuringProfileFetchDiscardsStaleResult(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, api, store := newSession(t)
	s.Init(ctx)

	started := make(chan struct{})
	release := make(chan struct{})
	optimistic := customer("Ann")
	api.loginResp = model.AuthResponse{Token: "T1", User: &optimistic}
	api.me = func(context.Context, int, string) (model.Identity, error) {
		close(started)
		<-release
		return customer("Ann"), nil
	}

	done := make(chan Result, 1)
	errs := make(chan error, 1)
	go func() {
		result, err := s.Login(ctx, "a@x.com", "secret1")
		errs <- err
		done <- result
	}()

	<-started
	s.Logout(ctx)
	require.Nil(t, s.Snapshot().Identity)
	require.Empty(t, storedToken(t, store))

	close(release)
	require.NoError(t, <-errs)
	result := <-done

	require.False(t, result.Success)
	require.Equal(t, MsgSuperseded, result.Error)
	snap := s.Snapshot()
	require.Nil(t, snap.Identity, "stale fetch must not resurrect the identity")
	require.Equal(t, StateUnauthenticated, snap.State)
	require.False(t, snap.Loading)
	require.Empty(t, storedToken(t, store))
}

func TestNewerLoginSupersedesPendingResolution(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, api, store := newSession(t)
	require.NoError(t, store.Save(ctx, "OLD"))

	started := make(chan struct{})
	release := make(chan struct{})
	api.me = func(_ context.Context, call int, _ string) (model.Identity, error) {
		if call == 1 {
			close(started)
			<-release
			return customer("Stale"), nil
		}
		return customer("Fresh"), nil
	}

	initDone := make(chan struct{})
	go func() {
		s.Init(ctx)
		close(initDone)
	}()
	<-started

	api.loginResp = model.AuthResponse{Token: "NEW"}
	result, err := s.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "Fresh", result.Identity.Name)

	close(release)
	<-initDone

	snap := s.Snapshot()
	require.Equal(t, "Fresh", snap.Identity.Name)
	require.Equal(t, StateResolved, snap.State)
	require.False(t, snap.Loading)
	require.Equal(t, "NEW", storedToken(t, store))
}

func TestLogoutDuringExchangeDropsTheLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := credential.NewMemoryStore()
	api := &blockingLoginAPI{fakeAPI: fakeAPI{store: store}, entered: make(chan struct{}), release: make(chan struct{})}
	s := New(api, store)
	s.Init(ctx)

	done := make(chan Result, 1)
	errs := make(chan error, 1)
	go func() {
		result, err := s.Login(ctx, "a@x.com", "secret1")
		errs <- err
		done <- result
	}()

	<-api.entered
	require.True(t, s.Snapshot().Loading)
	s.Logout(ctx)
	close(api.release)

	require.NoError(t, <-errs)
	result := <-done
	require.Equal(t, MsgSuperseded, result.Error)
	require.Empty(t, storedToken(t, store))
	require.False(t, s.Snapshot().Loading)
}

type blockingLoginAPI struct {
	fakeAPI
	entered chan struct{}
	release chan struct{}
}

func (b *blockingLoginAPI) Login(context.Context, string, string) (model.AuthResponse, error) {
	close(b.entered)
	<-b.release
	return model.AuthResponse{Token: "T1"}, nil
}

// Identity present implies token present, whatever the operation order.
func TestIdentityImpliesToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	s, api, store := newSession(t)
	s.Init(ctx)

	ops := []func(){
		func() {
			api.loginErr = nil
			api.loginResp = model.AuthResponse{Token: fmt.Sprintf("T%d", rng.Intn(100)+1)}
			api.me = func(context.Context, int, string) (model.Identity, error) { return customer("Ann"), nil }
			_, _ = s.Login(ctx, "a@x.com", "secret1")
		},
		func() {
			api.loginErr = rejected()
			_, _ = s.Login(ctx, "a@x.com", "wrong")
		},
		func() { s.Logout(ctx) },
		func() { _ = store.Clear(ctx); s.Init(ctx) },
		func() {
			api.me = func(context.Context, int, string) (model.Identity, error) { return model.Identity{}, rejected() }
			s.Init(ctx)
		},
		func() {
			api.me = func(context.Context, int, string) (model.Identity, error) { return model.Identity{}, networkDown() }
			s.Init(ctx)
		},
	}

	for i := 0; i < 500; i++ {
		ops[rng.Intn(len(ops))]()

		snap := s.Snapshot()
		if snap.Identity != nil {
			require.NotEmpty(t, storedToken(t, store), "step %d", i)
		}
		require.False(t, snap.Loading, "step %d", i)
	}
}

func TestObserversSeeCommitOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	release := make(chan struct{})
	blocked := make(chan struct{})
	var (
		mu   sync.Mutex
		last Snapshot
		seen []uint64
	)
	var once sync.Once
	s, api, store := newSession(t, WithObserver(func(snap Snapshot) {
		if snap.State == StateResolved {
			once.Do(func() {
				close(blocked)
				<-release
			})
		}
		mu.Lock()
		last = snap
		seen = append(seen, snap.Version)
		mu.Unlock()
	}))
	require.NoError(t, store.Save(ctx, "T1"))
	api.me = func(context.Context, int, string) (model.Identity, error) { return customer("Ann"), nil }

	initDone := make(chan struct{})
	go func() {
		s.Init(ctx)
		close(initDone)
	}()

	select {
	case <-blocked:
	case <-time.After(2 * time.Second):
		t.Fatal("resolved snapshot never reached the observer")
	}

	s.Logout(ctx)
	close(release)

	select {
	case <-initDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Init did not return")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, StateUnauthenticated, s.Snapshot().State)
	require.Equal(t, StateUnauthenticated, last.State)
	require.Nil(t, last.Identity)
	require.Equal(t, s.Snapshot().Version, last.Version)
	for i := 1; i < len(seen); i++ {
		require.Greater(t, seen[i], seen[i-1])
	}
}

func TestInitClearsUnreadableSealedToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "session.token")
	oldSealer, err := credential.NewSealer("old-secret")
	require.NoError(t, err)
	oldStore, err := credential.NewFileStore(path, oldSealer)
	require.NoError(t, err)
	require.NoError(t, oldStore.Save(ctx, "T1"))

	newSealer, err := credential.NewSealer("rotated-secret")
	require.NoError(t, err)
	store, err := credential.NewFileStore(path, newSealer)
	require.NoError(t, err)

	api := &fakeAPI{store: store}
	s := New(api, store)
	s.Init(ctx)

	require.Equal(t, StateUnauthenticated, s.Snapshot().State)
	_, _, me := api.calls()
	require.Zero(t, me)

	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = store.Read(ctx)
	require.ErrorIs(t, err, model.ErrNoToken)
}
