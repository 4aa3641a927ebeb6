package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"npitrack/internal/models"
)

// Event is the payload broadcast to all connected WebSocket clients.
type Event struct {
	Type     string                `json:"type"`
	Project  string                `json:"project,omitempty"`
	ID       any                   `json:"id,omitempty"`
	Action   string                `json:"action,omitempty"`
	Progress *models.ProgressEvent `json:"progress,omitempty"`
}

// client wraps a WebSocket connection with a mutex for thread-safe writes.
type client struct {
	conn *ws.Conn
	mu   sync.Mutex
}

// Hub maintains connected WebSocket clients and broadcasts events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	log     *zap.Logger
}

// NewHub creates a new Hub. A nil logger discards output.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{clients: make(map[*client]struct{}), log: log.Named("ws")}
}

func (h *Hub) register(c *client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	return len(h.clients)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok && c.conn != nil {
		_ = c.conn.Close()
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to all connected clients. Clients that cannot be
// written to are dropped.
func (h *Hub) Broadcast(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.log.Error("marshal event", zap.String("type", evt.Type), zap.Error(err))
		return
	}
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		writeErr := func() (writeErr error) {
			defer func() {
				if r := recover(); r != nil {
					writeErr = fmt.Errorf("ws: write panic: %v", r)
				}
			}()
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			return c.conn.WriteMessage(ws.TextMessage, data)
		}()
		c.mu.Unlock()

		if writeErr != nil {
			h.log.Debug("dropping client", zap.Error(writeErr))
			h.unregister(c)
		}
	}
}

// BroadcastChange announces that a resource of project changed, e.g.
// ("matrix", "update") becomes type "matrix_updated".
func (h *Hub) BroadcastChange(resource, action, project string, id any) {
	h.Broadcast(Event{
		Type:    resource + "_" + action + "d",
		Project: project,
		ID:      id,
		Action:  action,
	})
}

// Progress returns a ProgressFunc that broadcasts each event for project.
func (h *Hub) Progress(project string) models.ProgressFunc {
	return func(ev models.ProgressEvent) {
		h.Broadcast(Event{Type: "progress", Project: project, Progress: &ev})
	}
}

// Upgrader is the default WebSocket upgrader.
var Upgrader = ws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWebSocket upgrades the connection and keeps it alive with pings until
// the client goes away.
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn}
	n := hub.register(c)
	hub.log.Info("client connected", zap.Int("clients", n))

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
			c.mu.Lock()
			err := conn.WriteControl(ws.PingMessage, nil, time.Now().Add(5*time.Second))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
	hub.unregister(c)
	hub.log.Info("client disconnected", zap.Int("clients", hub.Clients()))
}
