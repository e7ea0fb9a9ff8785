package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"support-portal/internal/event"
	"support-portal/internal/middleware"
)

func startHub(t *testing.T, origins []string) (*event.InMemoryBus, *httptest.Server) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	bus := event.NewBus(nil)
	hub := NewHub(bus, nil)
	go hub.Run(ctx)

	initial := func() ([]byte, error) {
		return json.Marshal(event.Event{ID: "initial", Type: event.TypeSessionCleared})
	}
	srv := httptest.NewServer(NewHandler(hub, middleware.NewOriginPolicy(origins), initial))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	return bus, srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) event.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e event.Event
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func TestHubBroadcastsSessionEvents(t *testing.T) {
	t.Parallel()

	bus, srv := startHub(t, nil)
	first := dial(t, srv, nil)
	second := dial(t, srv, nil)

	require.Equal(t, "initial", readEvent(t, first).ID)
	require.Equal(t, "initial", readEvent(t, second).ID)

	bus.Publish(event.Event{ID: "e1", Type: event.TypeSessionResolved})

	got := readEvent(t, first)
	require.Equal(t, "e1", got.ID)
	require.Equal(t, event.TypeSessionResolved, got.Type)
	require.Equal(t, "e1", readEvent(t, second).ID)
}

func TestHubReplaysLatestEventToLateTab(t *testing.T) {
	t.Parallel()

	bus, srv := startHub(t, nil)
	early := dial(t, srv, nil)
	require.Equal(t, "initial", readEvent(t, early).ID)

	bus.Publish(event.Event{ID: "e1", Type: event.TypeSessionResolved})
	require.Equal(t, "e1", readEvent(t, early).ID)

	late := dial(t, srv, nil)
	require.Equal(t, "initial", readEvent(t, late).ID)

	replayed := readEvent(t, late)
	require.Equal(t, "e1", replayed.ID)
	require.Equal(t, uint64(1), replayed.Seq)
}

func TestHandlerRejectsForeignOrigin(t *testing.T) {
	t.Parallel()

	_, srv := startHub(t, []string{"http://portal.local"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.local"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	conn := dial(t, srv, http.Header{"Origin": []string{"http://portal.local"}})
	require.Equal(t, "initial", readEvent(t, conn).ID)
}

func TestHubClosesClientsOnShutdown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(event.NewBus(nil), nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(NewHandler(hub, middleware.NewOriginPolicy(nil), nil))
	defer srv.Close()

	conn := dial(t, srv, nil)
	// Let the registration land before shutting down.
	time.Sleep(50 * time.Millisecond)
	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestHandlerWithoutAllowListAcceptsOnlyOwnOrigin(t *testing.T) {
	t.Parallel()

	_, srv := startHub(t, nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	conn := dial(t, srv, http.Header{"Origin": []string{srv.URL}})
	require.Equal(t, "initial", readEvent(t, conn).ID)
}
