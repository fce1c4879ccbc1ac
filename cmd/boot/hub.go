package main

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orbitos/mcore/kernel"
)

const maxDashboardConnections = 200

// DashboardHub broadcasts a kernel Snapshot to every connected websocket
// client once a second — a single broadcaster rather than one ticker per
// connection, adapted directly from control_plane/ws_hub.go's
// MetricsHub, with tenant-scoped fan-out replaced by a single kernel-wide
// snapshot (there is only one kernel per process here, not one dashboard
// feed per tenant).
type DashboardHub struct {
	k *kernel.Kernel

	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}

	register   chan *websocket.Conn
	unregister chan *websocket.Conn
}

// NewDashboardHub returns a hub broadcasting snapshots of k.
func NewDashboardHub(k *kernel.Kernel) *DashboardHub {
	return &DashboardHub{
		k:          k,
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run drives the hub's register/unregister/broadcast loop until ctx is
// canceled.
func (h *DashboardHub) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= maxDashboardConnections {
				h.mu.Unlock()
				conn.Close()
				log.Printf("boot: dashboard connection rejected, at capacity (%d)", maxDashboardConnections)
				continue
			}
			h.clients[conn] = struct{}{}
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case <-ticker.C:
			h.broadcast()
		}
	}
}

func (h *DashboardHub) broadcast() {
	snap := takeSnapshot(h.k)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(snap); err != nil {
			log.Printf("boot: dashboard write error: %v", err)
			go h.Unregister(conn)
		}
	}
}

func (h *DashboardHub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
}

// Register admits a new client connection.
func (h *DashboardHub) Register(conn *websocket.Conn) { h.register <- conn }

// Unregister drops a client connection.
func (h *DashboardHub) Unregister(conn *websocket.Conn) { h.unregister <- conn }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (h *DashboardHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("boot: websocket upgrade failed: %v", err)
		return
	}
	h.Register(conn)
}
