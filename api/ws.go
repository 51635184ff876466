package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"algotrade/metrics"
)

// broadcastInterval is how often connected clients receive a snapshot.
const broadcastInterval = 2 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboards are served from arbitrary origins; the API is read-only.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub pushes engine snapshots to every connected websocket client. Clients
// only receive; anything they send is discarded.
type Hub struct {
	src StateSource

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	done    chan struct{}
	once    sync.Once
}

func NewHub(src StateSource) *Hub {
	return &Hub{
		src:     src,
		clients: make(map[*websocket.Conn]bool),
		done:    make(chan struct{}),
	}
}

// Serve upgrades one HTTP request into a stream subscription.
func (h *Hub) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[api] ws upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSClients.Set(float64(n))

	// Drain incoming frames so pings/closes are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// Run broadcasts until Stop. One snapshot per tick, shared by all clients.
func (h *Hub) Run() {
	ticker := time.NewTicker(broadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.broadcast()
		}
	}
}

// Stop ends the broadcast loop and closes every client.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
	metrics.WSClients.Set(0)
}

func (h *Hub) broadcast() {
	h.mu.Lock()
	if len(h.clients) == 0 {
		h.mu.Unlock()
		return
	}
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	snap := h.src.Snapshot()
	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(snap); err != nil {
			h.drop(conn)
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSClients.Set(float64(n))
}
