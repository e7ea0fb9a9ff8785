package websocket

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"support-portal/internal/event"
)

var connectedTabs = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "portal_session_stream_clients",
	Help: "Browser tabs following the session over websocket.",
})

// Hub owns every connected tab and forwards session events to them. Only
// Run touches clients and latest.
type Hub struct {
	clients map[*Client]struct{}
	latest  []byte

	register   chan *Client
	unregister chan *Client

	bus    event.Bus
	done   chan struct{}
	logger *slog.Logger
}

func NewHub(bus event.Bus, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		bus:        bus,
		done:       make(chan struct{}),
		logger:     logger.With("component", "ws_hub"),
	}
}

// Run forwards bus events until ctx is done. A tab that registers after an
// event was broadcast is sent that event again, so it cannot start from a
// state older than its peers.
func (h *Hub) Run(ctx context.Context) {
	sub := h.bus.Subscribe()
	defer sub.Close()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			connectedTabs.Inc()
			if h.latest != nil {
				h.deliver(client, h.latest)
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case e, ok := <-sub.C:
			if !ok {
				return
			}

			message, err := json.Marshal(e)
			if err != nil {
				h.logger.Error("failed to marshal event", "type", string(e.Type), "error", err)
				continue
			}
			h.latest = message

			for client := range h.clients {
				h.deliver(client, message)
			}
		}
	}
}

func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.send <- message:
	default:
		h.logger.Warn("dropping slow websocket client")
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	connectedTabs.Dec()
}
