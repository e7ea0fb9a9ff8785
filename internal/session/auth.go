package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"support-portal/internal/model"
	"support-portal/pkg/apierror"
)

const (
	MsgLoginFailed        = "Login failed"
	MsgRegistrationFailed = "Registration failed"
	MsgNetworkError       = "Network error occurred"
	MsgFieldsRequired     = "All fields are required"
	MsgSuperseded         = "Sign-in was superseded by a newer session change"
)

// Result is what an auth operation reports to its caller. Expected failures
// are carried in Error, never as a Go error.
type Result struct {
	Success  bool            `json:"success"`
	Identity *model.Identity `json:"user,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Registration is the input of Register. A zero Role registers a customer.
type Registration struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
}

// Login exchanges credentials for a token, stores it, sets the identity from
// the login response and then lets a profile fetch decide the final identity.
// The returned error is non-nil only when the token could not be persisted.
func (s *Session) Login(ctx context.Context, email string, password string) (Result, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Result{Error: MsgFieldsRequired}, nil
	}

	logouts := s.beginExchange()
	resp, err := s.api.Login(ctx, strings.TrimSpace(email), password)
	return s.completeExchange(ctx, logouts, resp, err, MsgLoginFailed)
}

// Register creates an account and signs it in with the same contract as
// Login. Form-level rules (confirmation, length) belong to the caller.
func (s *Session) Register(ctx context.Context, reg Registration) (Result, error) {
	if strings.TrimSpace(reg.Name) == "" || strings.TrimSpace(reg.Email) == "" || reg.Password == "" {
		return Result{Error: MsgFieldsRequired}, nil
	}

	role := reg.Role
	if role == model.RoleUnknown {
		role = model.RoleCustomer
	}

	logouts := s.beginExchange()
	resp, err := s.api.Register(ctx, model.RegisterRequest{
		Name:     strings.TrimSpace(reg.Name),
		Email:    strings.TrimSpace(reg.Email),
		Password: reg.Password,
		Role:     role.String(),
	})
	return s.completeExchange(ctx, logouts, resp, err, MsgRegistrationFailed)
}

func (s *Session) beginExchange() uint64 {
	s.mu.Lock()
	s.authPending++
	logouts := s.logouts
	snap := s.changedLocked()
	s.mu.Unlock()

	s.notify(snap)
	return logouts
}

func (s *Session) completeExchange(ctx context.Context, logouts uint64, resp model.AuthResponse, exchangeErr error, fallback string) (Result, error) {
	s.mu.Lock()
	s.authPending--

	if exchangeErr == nil && strings.TrimSpace(resp.Token) == "" {
		exchangeErr = apierror.New("BAD_RESPONSE", fallback, "response carried no token", http.StatusBadGateway)
	}

	if exchangeErr != nil || s.logouts != logouts {
		snap := s.changedLocked()
		s.mu.Unlock()
		s.notify(snap)

		if exchangeErr != nil {
			return Result{Error: failureMessage(exchangeErr, fallback)}, nil
		}
		return Result{Error: MsgSuperseded}, nil
	}

	s.cycle++
	cycle := s.cycle
	if err := s.store.Save(ctx, resp.Token); err != nil {
		snap := s.changedLocked()
		s.mu.Unlock()
		s.notify(snap)
		return Result{}, fmt.Errorf("save session token: %w", err)
	}

	s.identity = nil
	if resp.User != nil {
		optimistic := *resp.User
		s.identity = &optimistic
	}
	s.state = StateResolving
	s.resolving = true
	s.expiresAt = tokenExpiry(resp.Token)
	snap := s.changedLocked()
	s.mu.Unlock()
	s.notify(snap)

	committed, fetchErr := s.resolve(ctx, cycle)
	if !committed {
		return Result{Error: MsgSuperseded}, nil
	}

	final := s.Snapshot()
	if final.Cycle != cycle {
		return Result{Error: MsgSuperseded}, nil
	}
	if final.Identity == nil {
		return Result{Error: failureMessage(fetchErr, fallback)}, nil
	}

	return Result{Success: true, Identity: final.Identity}, nil
}

// failureMessage renders an exchange failure the way the caller shows it.
func failureMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}

	if errors.Is(err, model.ErrNetwork) {
		return MsgNetworkError
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}

	return fallback
}

var errTokenExpired = apierror.New("UNAUTHORIZED", "Session expired", "", http.StatusUnauthorized)
