// Package ws streams realtime quote updates to WebSocket clients.
// Clients subscribe to individual symbols; the hub fans out updates
// received from the Redis price channel.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aksjeradar/internal/metrics"
	"github.com/aksjeradar/internal/types"
)

// ClientMsg is a message sent by a connected client.
type ClientMsg struct {
	Type   string `json:"type"` // subscribe, unsubscribe, ping
	Symbol string `json:"symbol,omitempty"`
}

// Hub manages WebSocket connections and per-symbol subscriptions.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu sync.RWMutex
	// symbol -> set of connections
	subs map[string]map[*websocket.Conn]struct{}
	// conn -> write lock; gorilla conns allow one concurrent writer
	writers map[*websocket.Conn]*sync.Mutex
}

// NewHub creates a hub with the given origin policy.
func NewHub(allowOrigin func(r *http.Request) bool, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		logger:   logger.Named("ws"),
		subs:     make(map[string]map[*websocket.Conn]struct{}),
		writers:  make(map[*websocket.Conn]*sync.Mutex),
	}
}

// HandleWS upgrades the request and serves the connection until the
// client disconnects. Each client may subscribe to multiple symbols.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.register(conn)
	defer h.unregister(conn)

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.Symbol != "" {
				h.subscribe(conn, msg.Symbol)
			}
		case "unsubscribe":
			if msg.Symbol != "" {
				h.unsubscribe(conn, msg.Symbol)
			}
		case "ping":
			h.write(conn, []byte(`{"type":"pong"}`))
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.writers[conn] = &sync.Mutex{}
	h.mu.Unlock()
	metrics.WSClientsConnected.Inc()
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	for _, set := range h.subs {
		delete(set, conn)
	}
	delete(h.writers, conn)
	h.mu.Unlock()
	metrics.WSClientsConnected.Dec()
}

func (h *Hub) subscribe(conn *websocket.Conn, symbol string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[symbol]; !ok {
		h.subs[symbol] = make(map[*websocket.Conn]struct{})
	}
	h.subs[symbol][conn] = struct{}{}
}

func (h *Hub) unsubscribe(conn *websocket.Conn, symbol string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[symbol]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.subs, symbol)
		}
	}
}

// Broadcast sends a quote to every client subscribed to its symbol.
// Write failures drop silently; the read loop cleans the client up.
func (h *Hub) Broadcast(quote *types.Quote) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.subs[quote.Symbol]))
	for c := range h.subs[quote.Symbol] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	b, err := json.Marshal(quote)
	if err != nil {
		return
	}
	for _, c := range conns {
		h.write(c, b)
	}
}

// SubscriberCount reports how many clients are subscribed to a symbol.
func (h *Hub) SubscriberCount(symbol string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[symbol])
}

func (h *Hub) write(conn *websocket.Conn, payload []byte) {
	h.mu.RLock()
	lock := h.writers[conn]
	h.mu.RUnlock()
	if lock == nil {
		return
	}
	lock.Lock()
	defer lock.Unlock()
	_ = conn.WriteMessage(websocket.TextMessage, payload)
}
