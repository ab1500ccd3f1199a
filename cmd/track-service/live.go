package main

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// liveHub fans each collector snapshot out to websocket subscribers.
type liveHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newLiveHub() *liveHub {
	return &liveHub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *liveHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *liveHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// Broadcast sends a snapshot to every subscriber. Clients that fail to
// accept the write are dropped.
func (h *liveHub) Broadcast(v interface{}) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(v); err != nil {
			h.remove(conn)
		}
	}
}

// count returns the number of connected subscribers.
func (h *liveHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// LAN-only service, same trust model as the open CORS policy.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleLiveWS upgrades the connection and streams collector snapshots
// until the client disconnects.
func (s *Server) handleLiveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	// Send the current snapshot immediately so the client does not wait a
	// full poll interval for its first frame. This write happens before
	// the conn joins the hub: gorilla/websocket allows one writer at a
	// time, and a broadcast must not overlap the initial frame.
	if s.collector != nil {
		if snapshot := s.collector.Latest(); snapshot != nil {
			if err := conn.WriteJSON(snapshot); err != nil {
				conn.Close()
				return
			}
		}
	}
	s.hub.add(conn)

	// Drain the connection; clients only listen, reads just detect close.
	go func() {
		defer s.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
