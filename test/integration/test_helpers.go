//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"support-portal/internal/app"
	"support-portal/internal/config"
	"support-portal/internal/model"
)

// remoteAPI is an in-process stand-in for the support-desk backend. Tokens
// map to identities; a token mapped to nil is rejected by /auth/me.
type remoteAPI struct {
	mu      sync.Mutex
	logins  map[string]string
	tokens  map[string]*model.Identity
	tickets []model.Ticket
	meCalls int
}

func newRemoteAPI() *remoteAPI {
	return &remoteAPI{
		logins: map[string]string{},
		tokens: map[string]*model.Identity{},
	}
}

func (api *remoteAPI) addUser(email string, password string, token string, identity *model.Identity) {
	api.mu.Lock()
	defer api.mu.Unlock()

	api.logins[email+"\x00"+password] = token
	api.tokens[token] = identity
}

func (api *remoteAPI) profileCalls() int {
	api.mu.Lock()
	defer api.mu.Unlock()

	return api.meCalls
}

func (api *remoteAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.mu.Lock()
	defer api.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/auth/login":
		var req model.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeRemote(w, http.StatusBadRequest, map[string]string{"message": "bad body"})
			return
		}
		token, ok := api.logins[req.Email+"\x00"+req.Password]
		if !ok {
			writeRemote(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
			return
		}
		writeRemote(w, http.StatusOK, model.AuthResponse{Token: token, User: api.tokens[token]})

	case r.Method == http.MethodGet && r.URL.Path == "/auth/me":
		api.meCalls++
		identity := api.tokens[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		if identity == nil {
			writeRemote(w, http.StatusUnauthorized, map[string]string{"message": "Invalid token"})
			return
		}
		writeRemote(w, http.StatusOK, identity)

	case r.Method == http.MethodGet && r.URL.Path == "/customer/tickets":
		writeRemote(w, http.StatusOK, api.tickets)

	default:
		writeRemote(w, http.StatusNotFound, map[string]string{"message": "not found"})
	}
}

func writeRemote(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type portal struct {
	URL    string
	client *http.Client
}

func newPortal(t *testing.T, api *remoteAPI) *portal {
	t.Helper()

	remote := httptest.NewServer(api)
	t.Cleanup(remote.Close)

	cfg := &config.Config{
		ServerPort:              "0",
		ServerReadHeaderTimeout: 5 * time.Second,
		ServerWriteTimeout:      10 * time.Second,
		ServerIdleTimeout:       10 * time.Second,
		RequestTimeout:          10 * time.Second,
		APIBaseURL:              remote.URL,
		APITimeout:              5 * time.Second,
		APIBreakerFailureRatio:  0.5,
		APIBreakerMinRequests:   5,
		APIBreakerOpenTimeout:   time.Second,
		TokenBackend:            config.TokenBackendMemory,
		CORSOrigins:             []string{"*"},
		AuthRateLimitRPM:        1000,
		LogLevel:                "error",
		LogFormat:               "json",
	}

	application, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Serve(ctx, listener) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("portal did not shut down")
		}
	})

	p := &portal{
		URL: "http://" + listener.Addr().String(),
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}

	require.Eventually(t, func() bool {
		var snap struct {
			Loading bool `json:"loading"`
		}
		resp, err := p.client.Get(p.URL + "/auth/session")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return decodeData(resp, &snap) == nil && !snap.Loading
	}, 3*time.Second, 20*time.Millisecond)

	return p
}

func (p *portal) get(t *testing.T, path string) *http.Response {
	t.Helper()

	resp, err := p.client.Get(p.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (p *portal) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := p.client.Post(p.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeData(resp *http.Response, out any) error {
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	return json.Unmarshal(envelope.Data, out)
}
