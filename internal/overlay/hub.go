// Package overlay broadcasts live match state to overlay clients over
// websockets. The UI itself lives elsewhere; this is only the delivery
// surface for snapshots and per-event notifications.
package overlay

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// sendQueueSize bounds the per-client backlog. A client that falls this
	// far behind is dropped rather than allowed to stall the broadcaster.
	sendQueueSize = 64

	writeTimeout = 5 * time.Second
)

// Frame is one broadcast message.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub tracks connected overlay clients and fans broadcast frames out to
// them. Each client has its own writer goroutine fed by a bounded queue, so
// Broadcast never blocks on a slow socket: a client that cannot keep up, or
// whose write times out, is dropped while the rest keep receiving.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// The overlay connects from its own local origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// ServeHTTP upgrades the connection and registers the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Overlay] upgrade failed: %v", err)
		return
	}

	send := make(chan []byte, sendQueueSize)
	h.mu.Lock()
	h.clients[conn] = send
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("[Overlay] client connected (%d total)", count)

	go h.writeLoop(conn, send)

	// Drain client reads; the overlay never sends anything we act on, but
	// the read loop is what detects disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// writeLoop drains one client's queue onto its socket. The queue channel is
// closed by drop, which ends the loop.
func (h *Hub) writeLoop(conn *websocket.Conn, send <-chan []byte) {
	for data := range send {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.drop(conn)
			return
		}
	}
}

// Broadcast sends one typed frame to every connected client. Clients whose
// queue is full are dropped; the call never blocks on a socket write.
func (h *Hub) Broadcast(frameType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[Overlay] marshal %s: %v", frameType, err)
		return
	}
	data, err := json.Marshal(Frame{Type: frameType, Payload: body})
	if err != nil {
		log.Printf("[Overlay] marshal %s frame: %v", frameType, err)
		return
	}

	var stuck []*websocket.Conn
	h.mu.Lock()
	for conn, send := range h.clients {
		select {
		case send <- data:
		default:
			stuck = append(stuck, conn)
		}
	}
	h.mu.Unlock()

	for _, conn := range stuck {
		log.Printf("[Overlay] client queue full, dropping")
		h.drop(conn)
	}
}

// ClientCount reports how many overlay clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn, send := range h.clients {
		conns = append(conns, conn)
		close(send)
	}
	h.clients = make(map[*websocket.Conn]chan []byte)
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// drop unregisters a client and closes its connection. The send channel is
// only ever closed here or in Close, under the lock, so Broadcast cannot race
// a send against the close.
func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	send, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(send)
		log.Printf("[Overlay] client disconnected (%d total)", len(h.clients))
	}
	h.mu.Unlock()
	conn.Close()
}
