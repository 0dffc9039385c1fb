// Package livestream broadcasts the decode loop's annotation and
// binary events to connected browser clients over WebSocket, for a
// live waveform/byte view of a capture in progress.
package livestream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dbehnke/dmr-nexus/pkg/annotate"
	"github.com/dbehnke/dmr-nexus/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event is one broadcast message: either a region annotation or a
// binary artifact, tagged by Type so a browser client can dispatch on
// it without guessing from shape.
type Event struct {
	Type      string           `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Region    *annotate.Region `json:"region,omitempty"`
	Binary    *annotate.Binary `json:"binary,omitempty"`
}

func (e *Event) marshal() ([]byte, error) { return json.Marshal(e) }

// Client is one connected WebSocket session.
type Client struct {
	ID       uuid.UUID
	conn     *websocket.Conn
	messages chan []byte
}

// Hub fans annotation/binary events out to every connected client.
// It implements annotate.Sink and annotate.BinarySink directly, so it
// can be wired into the decode loop alongside (or instead of) a
// annotate.WriterSink.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewHub creates a new livestream hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log,
	}
}

// Run drives the hub's event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("livestream client registered", logger.String("client_id", client.ID.String()))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.messages)
			}
			h.mu.Unlock()
			h.logger.Debug("livestream client unregistered", logger.String("client_id", client.ID.String()))

		case event := <-h.broadcast:
			data, err := event.marshal()
			if err != nil {
				h.logger.Error("failed to marshal livestream event", logger.Error(err))
				continue
			}
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.messages <- data:
				default:
					h.logger.Warn("livestream client buffer full, skipping", logger.String("client_id", client.ID.String()))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.logger.Info("livestream hub shutting down")
			h.mu.Lock()
			for client := range h.clients {
				close(client.messages)
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) enqueue(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("livestream broadcast channel full, dropping event", logger.String("event_type", event.Type))
	}
}

// Put implements annotate.Sink, broadcasting a "region" event.
func (h *Hub) Put(r annotate.Region) {
	h.enqueue(Event{Type: "region", Region: &r})
}

// PutBinary implements annotate.BinarySink, broadcasting a "binary" event.
func (h *Hub) PutBinary(b annotate.Binary) {
	h.enqueue(Event{Type: "binary", Binary: &b})
}

// Handler returns an HTTP handler that upgrades connections to
// WebSocket and registers each one as a Client.
func (h *Hub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
			return
		}
		client := &Client{ID: uuid.New(), conn: conn, messages: make(chan []byte, 256)}
		h.register <- client

		go func() {
			defer func() {
				h.unregister <- client
				_ = client.conn.Close()
			}()
			client.conn.SetReadLimit(1024)
			for {
				if _, _, err := client.conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		go func() {
			for msg := range client.messages {
				_ = client.conn.WriteMessage(websocket.TextMessage, msg)
			}
		}()
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
