package handler

import "net/http"

type HealthHandler struct {
	session Session
	breaker func() string
}

// NewHealthHandler reports liveness along with the session state and the
// remote API circuit breaker state.
func NewHealthHandler(session Session, breaker func() string) *HealthHandler {
	return &HealthHandler{session: session, breaker: breaker}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()

	body := map[string]any{
		"status":  "ok",
		"session": snap.State.String(),
		"loading": snap.Loading,
	}
	if h.breaker != nil {
		body["api_breaker"] = h.breaker()
	}

	writeSuccess(w, http.StatusOK, body, nil)
}
