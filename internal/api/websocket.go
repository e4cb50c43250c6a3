package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/rennerdo30/relaunch/internal/lifecycle"
	"github.com/rennerdo30/relaunch/internal/logging"
)

// Event types for WebSocket broadcasts
const (
	EventUpdateLog       = "update.log"
	EventLifecycleChange = "lifecycle.change"
	EventCheckFinished   = "check.finished"
)

// CheckEvent reports the result of a check started over the API.
type CheckEvent struct {
	Applied bool   `json:"applied"`
	Force   bool   `json:"force"`
	Error   string `json:"error,omitempty"`
}

// LifecycleEvent reports an application state transition.
type LifecycleEvent struct {
	State string `json:"state"`
}

// WebSocketHub fans events out to connected WebSocket clients.
type WebSocketHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex
}

// NewWebSocketHub creates a new WebSocket hub.
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
}

// Run runs the hub's main loop until ctx is done, then closes every client.
// Run must be called at most once.
func (h *WebSocketHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			var failed []*websocket.Conn
			h.mu.RLock()
			for client := range h.clients {
				if _, err := client.Write(message); err != nil {
					failed = append(failed, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range failed {
				h.remove(client)
			}
		}
	}
}

func (h *WebSocketHub) remove(client *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.Close()
	}
}

// Clients returns the number of connected clients.
func (h *WebSocketHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event for all connected clients. Events are dropped
// when the queue is full so producers never block.
func (h *WebSocketHub) Broadcast(eventType string, data interface{}) {
	msg := map[string]interface{}{
		"type":      eventType,
		"timestamp": time.Now().Format(time.RFC3339),
		"data":      data,
	}
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- jsonData:
	default:
		logging.Debug("WebSocket broadcast queue full, dropping event", "type", eventType)
	}
}

// ServeWS handles WebSocket connections.
func (h *WebSocketHub) ServeWS(ws *websocket.Conn) {
	select {
	case h.register <- ws:
	case <-h.done:
		return
	}
	defer func() {
		select {
		case h.unregister <- ws:
		case <-h.done:
		}
	}()

	// Keep connection alive and read messages (for ping/pong)
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
		if msg == "ping" {
			websocket.Message.Send(ws, "pong")
		}
	}
}

// ForwardLifecycle broadcasts every transition reported by host until the
// returned function is called.
func (h *WebSocketHub) ForwardLifecycle(host lifecycle.Host) (unsubscribe func()) {
	return host.Subscribe(func(state lifecycle.AppState) {
		h.Broadcast(EventLifecycleChange, LifecycleEvent{State: string(state)})
	})
}

// ForwardLog returns an observer that broadcasts update log entries.
func (h *WebSocketHub) ForwardLog() func(entry string) {
	return func(entry string) {
		h.Broadcast(EventUpdateLog, entry)
	}
}
