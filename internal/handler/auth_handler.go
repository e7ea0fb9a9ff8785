package handler

import (
	"context"
	"net/http"

	"support-portal/internal/authz"
	"support-portal/internal/form"
	"support-portal/internal/middleware"
	"support-portal/internal/model"
	"support-portal/internal/session"
)

// Session is the slice of *session.Session the page handlers drive.
type Session interface {
	Snapshot() session.Snapshot
	Login(ctx context.Context, email string, password string) (session.Result, error)
	Register(ctx context.Context, reg session.Registration) (session.Result, error)
	Logout(ctx context.Context)
}

const dashboardPath = "/dashboard"

type AuthHandler struct {
	session Session
}

func NewAuthHandler(session Session) *AuthHandler {
	return &AuthHandler{session: session}
}

type authPage struct {
	Login    []string `json:"login"`
	Register []string `json:"register"`
}

type authResult struct {
	User     *model.Identity `json:"user"`
	Redirect string          `json:"redirect"`
}

// Page serves /auth. A signed-in operator is sent on to the dashboard.
func (h *AuthHandler) Page(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	switch {
	case snap.Loading:
		middleware.WriteNavigation(w, authz.Decision{Kind: authz.Pending})
	case snap.Authenticated():
		middleware.WriteNavigation(w, authz.Decision{Kind: authz.RedirectHome, Location: dashboardPath})
	default:
		writeSuccess(w, http.StatusOK, authPage{
			Login:    []string{"email", "password"},
			Register: []string{"name", "email", "password", "confirmPassword"},
		}, nil)
	}
}

// Root serves / the way the client's catch-all route does.
func (h *AuthHandler) Root(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	switch {
	case snap.Loading:
		middleware.WriteNavigation(w, authz.Decision{Kind: authz.Pending})
	case snap.Authenticated():
		middleware.WriteNavigation(w, authz.Decision{Kind: authz.RedirectHome, Location: dashboardPath})
	default:
		middleware.WriteNavigation(w, authz.Decision{Kind: authz.RedirectLogin, Location: authz.LoginPath})
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload form.LoginForm
	if err := form.Decode(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.session.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.writeResult(w, result, http.StatusOK, http.StatusUnauthorized)
}

// Register always signs up a customer; the form has no role field.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload form.RegisterForm
	if err := form.Decode(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.session.Register(r.Context(), session.Registration{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		Role:     model.RoleCustomer,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.writeResult(w, result, http.StatusCreated, http.StatusBadRequest)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout(r.Context())
	middleware.WriteNavigation(w, authz.Decision{Kind: authz.RedirectLogin, Location: authz.LoginPath})
}

func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, h.session.Snapshot(), nil)
}

func (h *AuthHandler) writeResult(w http.ResponseWriter, result session.Result, okStatus int, rejectedStatus int) {
	if result.Success {
		writeSuccess(w, okStatus, authResult{
			User:     result.Identity,
			Redirect: authz.HomeOf(result.Identity.Role),
		}, nil)
		return
	}

	status, code := rejectedStatus, "AUTH_REJECTED"
	switch result.Error {
	case session.MsgNetworkError:
		status, code = http.StatusServiceUnavailable, "NETWORK_ERROR"
	case session.MsgSuperseded:
		status, code = http.StatusConflict, "SUPERSEDED"
	case session.MsgFieldsRequired:
		status, code = http.StatusBadRequest, "VALIDATION_ERROR"
	}

	writeFailure(w, status, &model.APIError{Code: code, Message: result.Error})
}
