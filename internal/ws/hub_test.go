package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aksjeradar/internal/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, symbol string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount(symbol) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers for %s, got %d", want, symbol, hub.SubscriberCount(symbol))
}

func TestHub_SubscribeAndBroadcast(t *testing.T) {
	hub := NewHub(func(r *http.Request) bool { return true }, nil)
	conn := dialTestHub(t, hub)

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", Symbol: "EQNR.OL"}))
	waitForSubscribers(t, hub, "EQNR.OL", 1)

	hub.Broadcast(&types.Quote{Symbol: "EQNR.OL", Price: 312.45, Source: types.SourceLive})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got types.Quote
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "EQNR.OL", got.Symbol)
	assert.Equal(t, 312.45, got.Price)
}

func TestHub_BroadcastOnlyToSubscribedSymbol(t *testing.T) {
	hub := NewHub(func(r *http.Request) bool { return true }, nil)
	conn := dialTestHub(t, hub)

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", Symbol: "DNB.OL"}))
	waitForSubscribers(t, hub, "DNB.OL", 1)

	// Not subscribed to this one.
	hub.Broadcast(&types.Quote{Symbol: "EQNR.OL", Price: 300})
	hub.Broadcast(&types.Quote{Symbol: "DNB.OL", Price: 228.1})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got types.Quote
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "DNB.OL", got.Symbol)
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(func(r *http.Request) bool { return true }, nil)
	conn := dialTestHub(t, hub)

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", Symbol: "TEL.OL"}))
	waitForSubscribers(t, hub, "TEL.OL", 1)

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "unsubscribe", Symbol: "TEL.OL"}))
	waitForSubscribers(t, hub, "TEL.OL", 0)
}

func TestHub_Ping(t *testing.T) {
	hub := NewHub(func(r *http.Request) bool { return true }, nil)
	conn := dialTestHub(t, hub)

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "ping"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]string
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "pong", got["type"])
}

func TestHub_DisconnectCleansUpSubscriptions(t *testing.T) {
	hub := NewHub(func(r *http.Request) bool { return true }, nil)
	conn := dialTestHub(t, hub)

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", Symbol: "NHY.OL"}))
	waitForSubscribers(t, hub, "NHY.OL", 1)

	conn.Close()
	waitForSubscribers(t, hub, "NHY.OL", 0)
}
