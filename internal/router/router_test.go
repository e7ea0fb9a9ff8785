package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"support-portal/internal/apiclient"
	"support-portal/internal/config"
	"support-portal/internal/credential"
	"support-portal/internal/handler"
	"support-portal/internal/logger"
	"support-portal/internal/middleware"
	"support-portal/internal/session"
)

func newTestRouter(t *testing.T) (http.Handler, *session.Session) {
	t.Helper()

	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(remote.Close)

	cfg := &config.Config{
		RequestTimeout:   5 * time.Second,
		CORSOrigins:      []string{"*"},
		AuthRateLimitRPM: 100,
	}
	log := logger.New(io.Discard, "error", "json")

	store := credential.NewMemoryStore()
	api := apiclient.New(apiclient.DefaultConfig(remote.URL), store, log)
	sess := session.New(api, store, session.WithLogger(log))

	h := New(cfg, log, middleware.NewSessionGate(sess), Handlers{
		Auth:      handler.NewAuthHandler(sess),
		Dashboard: handler.NewDashboardHandler(api, api),
		Ticket:    handler.NewTicketHandler(api),
		Admin:     handler.NewAdminHandler(api),
		Health:    handler.NewHealthHandler(sess, nil),
		Session:   http.NotFoundHandler(),
	})
	return h, sess
}

func serve(h http.Handler, method string, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestOperationalEndpoints(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := serve(h, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = serve(h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "portal_http_requests_total")
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := serve(h, http.MethodGet, "/nowhere")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGatedPagesFollowSessionState(t *testing.T) {
	h, sess := newTestRouter(t)

	rec := serve(h, http.MethodGet, "/users")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))

	sess.Init(context.Background())

	rec = serve(h, http.MethodGet, "/users")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/auth", rec.Header().Get("Location"))

	rec = serve(h, http.MethodGet, "/auth/")
	require.Equal(t, http.StatusOK, rec.Code)
}
