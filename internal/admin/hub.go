package admin

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/neerajchowdary889/DMXP-MPMC"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans snapshots of the live channel ids and the bus metrics out
// to every connected WebSocket
// client at a fixed cadence. It owns no listener; Run must be started
// by the caller once, typically alongside http.Serve.
type Hub struct {
	bus    *dmxp.Bus
	period time.Duration

	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
}

func newHub(bus *dmxp.Bus, period time.Duration) *Hub {
	if period <= 0 {
		period = 500 * time.Millisecond
	}
	return &Hub{
		bus:     bus,
		period:  period,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Run broadcasts a channel snapshot to every connected client every
// period, until ctx-like cancellation is performed by closing done.
func (h *Hub) Run(done <-chan struct{}) {
	ticker := time.NewTicker(h.period)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			h.broadcastSnapshot()
		}
	}
}

type channelSnapshot struct {
	Channels []uint32           `json:"channels"`
	Metrics  dmxp.MetricsSnapshot `json:"metrics"`
}

func (h *Hub) broadcastSnapshot() {
	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n == 0 {
		return
	}

	snap := channelSnapshot{
		Channels: h.bus.Channels(),
		Metrics:  h.bus.Metrics.Snapshot(),
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			go h.unregister(conn)
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("admin: websocket upgrade failed: %v", err)
		return
	}
	h.register(conn)

	go func() {
		defer func() {
			h.unregister(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
