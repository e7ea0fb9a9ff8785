// Package session owns the portal's authenticated identity.
//
// A Session moves through Init -> Resolving -> {Resolved, Unauthenticated}.
// Every resolution cycle carries a monotonically increasing id; a profile
// fetch may only commit its outcome while its cycle is still the latest one,
// so a response that lands after a logout or a newer login is discarded.
// All writes to the credential store happen under the session lock together
// with the cycle change they belong to.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"support-portal/internal/credential"
	"support-portal/internal/model"
)

// AuthAPI is the slice of the remote API the session depends on. Me must
// authenticate with whatever token the credential store holds at send time.
type AuthAPI interface {
	Login(ctx context.Context, email string, password string) (model.AuthResponse, error)
	Register(ctx context.Context, req model.RegisterRequest) (model.AuthResponse, error)
	Me(ctx context.Context) (model.Identity, error)
}

type State int

const (
	StateInit State = iota
	StateResolving
	StateResolved
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateResolving:
		return "resolving"
	case StateResolved:
		return "resolved"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is an immutable view of the session at one instant. Version
// increases with every committed change.
type Snapshot struct {
	State     State           `json:"state"`
	Identity  *model.Identity `json:"user,omitempty"`
	Loading   bool            `json:"loading"`
	Cycle     uint64          `json:"cycle"`
	Version   uint64          `json:"version"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
}

func (s Snapshot) Authenticated() bool {
	return s.Identity != nil
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver registers fn to receive committed snapshots in commit order.
// Observers run outside the session lock. While one goroutine is delivering,
// changes committed by others are queued for it and only the newest queued
// snapshot is delivered, so observers may skip versions but never go back.
func WithObserver(fn func(Snapshot)) Option {
	return func(s *Session) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

type Session struct {
	api       AuthAPI
	store     credential.Store
	logger    *slog.Logger
	now       func() time.Time
	observers []func(Snapshot)

	mu          sync.Mutex
	cycle       uint64
	logouts     uint64
	state       State
	identity    *model.Identity
	resolving   bool
	authPending int
	expiresAt   time.Time
	version     uint64

	notifyMu   sync.Mutex
	delivering bool
	queued     *Snapshot
	delivered  uint64
}

// New returns a session in the Init state. Loading reports true until the
// first call to Init settles.
func New(api AuthAPI, store credential.Store, opts ...Option) *Session {
	s := &Session{
		api:       api,
		store:     store,
		logger:    slog.Default(),
		now:       time.Now,
		state:     StateInit,
		resolving: true,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With("component", "session")
	return s
}

// Init runs the start-up resolution cycle: no stored token settles straight
// to Unauthenticated, otherwise the token is exchanged for the current
// profile. Calling Init again starts a fresh cycle from the stored token.
func (s *Session) Init(ctx context.Context) {
	s.mu.Lock()
	s.cycle++
	cycle := s.cycle
	s.state = StateResolving
	s.resolving = true
	s.mu.Unlock()

	token, err := s.store.Read(ctx)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrNoToken):
		s.settleAnonymous(cycle)
		return
	case errors.Is(err, credential.ErrSealedTokenCorrupt):
		s.logger.Warn("stored token unreadable, clearing it", "error", err)
		s.clearIfCurrent(ctx, cycle)
		s.settleAnonymous(cycle)
		return
	default:
		s.logger.Error("read stored token", "error", err)
		s.settleAnonymous(cycle)
		return
	}

	s.mu.Lock()
	if cycle == s.cycle {
		s.expiresAt = tokenExpiry(token)
	}
	snap := s.changedLocked()
	s.mu.Unlock()
	s.notify(snap)

	s.resolve(ctx, cycle)
}

// Snapshot returns the current session view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Logout clears the stored token and the identity. It never fails from the
// caller's point of view; a store error is logged.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	s.cycle++
	s.logouts++
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error("clear stored token on logout", "error", err)
	}
	s.identity = nil
	s.resolving = false
	s.state = StateUnauthenticated
	s.expiresAt = time.Time{}
	snap := s.changedLocked()
	s.mu.Unlock()

	s.logger.Info("session cleared", "reason", "logout")
	s.notify(snap)
}

func (s *Session) clearIfCurrent(ctx context.Context, cycle uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cycle != s.cycle {
		return
	}
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error("clear unreadable token", "error", err)
	}
}

func (s *Session) settleAnonymous(cycle uint64) {
	s.mu.Lock()
	if cycle != s.cycle {
		s.mu.Unlock()
		return
	}
	s.identity = nil
	s.resolving = false
	s.state = StateUnauthenticated
	s.expiresAt = time.Time{}
	snap := s.changedLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// resolve fetches the profile for the stored token and commits the outcome
// if cycle is still current. It reports whether the outcome was committed
// and the fetch error, if any.
func (s *Session) resolve(ctx context.Context, cycle uint64) (bool, error) {
	var (
		identity model.Identity
		err      error
	)

	s.mu.Lock()
	expiresAt := s.expiresAt
	s.mu.Unlock()

	if !expiresAt.IsZero() && !s.now().Before(expiresAt) {
		err = errTokenExpired
	} else {
		identity, err = s.api.Me(ctx)
	}

	return s.commit(ctx, cycle, identity, err), err
}

func (s *Session) commit(ctx context.Context, cycle uint64, identity model.Identity, err error) bool {
	s.mu.Lock()
	if cycle != s.cycle {
		s.mu.Unlock()
		s.logger.Debug("discarding stale profile response", "cycle", cycle)
		return false
	}

	reason := ""
	switch {
	case err == nil:
		resolved := identity
		s.identity = &resolved
		s.state = StateResolved
	case errors.Is(err, model.ErrNetwork):
		// The token may still be valid; keep it and any identity already held.
		if s.identity != nil {
			s.state = StateResolved
		} else {
			s.state = StateUnauthenticated
		}
	default:
		if clearErr := s.store.Clear(ctx); clearErr != nil {
			s.logger.Error("clear rejected token", "error", clearErr)
		}
		s.identity = nil
		s.state = StateUnauthenticated
		s.expiresAt = time.Time{}
		reason = "token rejected"
	}
	s.resolving = false
	snap := s.changedLocked()
	s.mu.Unlock()

	switch {
	case err == nil:
		s.logger.Info("session resolved", "user_id", identity.ID, "role", identity.RoleLabel(), "cycle", cycle)
	case reason != "":
		s.logger.Warn("session cleared", "reason", reason, "error", err.Error())
	default:
		s.logger.Warn("profile fetch failed", "error", err.Error())
	}

	s.notify(snap)
	return true
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:   s.state,
		Loading: s.resolving || s.authPending > 0,
		Cycle:   s.cycle,
		Version: s.version,
	}
	if s.identity != nil {
		identity := *s.identity
		snap.Identity = &identity
	}
	if !s.expiresAt.IsZero() {
		expiresAt := s.expiresAt
		snap.ExpiresAt = &expiresAt
	}
	return snap
}

// changedLocked records a state change and returns its snapshot.
func (s *Session) changedLocked() Snapshot {
	s.version++
	return s.snapshotLocked()
}

// notify hands snap to the observers. A goroutine that finds another one
// delivering leaves snap queued for it and returns at once.
func (s *Session) notify(snap Snapshot) {
	if len(s.observers) == 0 {
		return
	}

	s.notifyMu.Lock()
	if snap.Version > s.delivered && (s.queued == nil || snap.Version > s.queued.Version) {
		s.queued = &snap
	}
	if s.delivering {
		s.notifyMu.Unlock()
		return
	}
	s.delivering = true

	for s.queued != nil {
		next := *s.queued
		s.queued = nil
		s.delivered = next.Version
		s.notifyMu.Unlock()

		for _, fn := range s.observers {
			fn(next)
		}

		s.notifyMu.Lock()
	}
	s.delivering = false
	s.notifyMu.Unlock()
}
