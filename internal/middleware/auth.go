package middleware

import (
	"context"
	"net/http"

	"support-portal/internal/authz"
	"support-portal/internal/model"
	"support-portal/internal/session"
)

type snapshotSource interface {
	Snapshot() session.Snapshot
}

type contextKey string

const identityContextKey contextKey = "session_identity"

// Navigation is the body written for a gate decision other than Allow.
type Navigation struct {
	State    string `json:"state"`
	Redirect string `json:"redirect,omitempty"`
}

// SessionGate turns authz decisions into HTTP navigation: 202 while the
// session is loading, 303 to the login page or the role home otherwise.
type SessionGate struct {
	source snapshotSource
}

func NewSessionGate(source snapshotSource) *SessionGate {
	return &SessionGate{source: source}
}

// Require admits any authenticated identity when roles is empty.
func (g *SessionGate) Require(roles ...model.Role) func(http.Handler) http.Handler {
	required := model.NewRoleSet(roles...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := g.source.Snapshot()
			decision := authz.Authorize(snap.Identity, snap.Loading, required)
			traceGate(r.Context(), decision, snap)

			if decision.Kind != authz.Allow {
				WriteNavigation(w, decision)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, *snap.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteNavigation renders a non-Allow decision.
func WriteNavigation(w http.ResponseWriter, decision authz.Decision) {
	w.Header().Set("Content-Type", "application/json")

	if decision.Kind == authz.Pending {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusAccepted)
		_ = jsonEncode(w, model.APIResponse{Success: true, Data: Navigation{State: "loading"}})
		return
	}

	w.Header().Set("Location", decision.Location)
	w.WriteHeader(http.StatusSeeOther)
	_ = jsonEncode(w, model.APIResponse{
		Success: true,
		Data:    Navigation{State: decision.Kind.String(), Redirect: decision.Location},
	})
}

func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	return identity, ok
}
