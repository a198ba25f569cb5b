// Package progresshub fans clone/write progress events out to external
// observers (a CLI's live bar, a future dashboard) over WebSocket: a
// register/unregister/broadcast channel loop carrying pkg/clone.Progress
// events to every connected client.
package progresshub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/n5dmr/trbo-xnl/pkg/clone"
	"github.com/n5dmr/trbo-xnl/pkg/logger"
)

// Event is a clone.Progress update wrapped with a wall-clock timestamp for
// JSON transport.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Fraction  float64   `json:"fraction"`
	Phase     string    `json:"phase"`
}

func (e Event) marshal() ([]byte, error) { return json.Marshal(e) }

// client is one connected WebSocket observer.
type client struct {
	id       string
	conn     *websocket.Conn
	messages chan []byte
}

// Hub fans out Progress events to every connected client. It implements
// clone.Publisher, so it plugs directly into pkg/clone.Reader/Writer.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	log        *logger.Logger
	mu         sync.RWMutex
}

// New creates a Hub. Call Run in its own goroutine to start the event loop.
func New(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.New(logger.Config{})
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		log:        log.WithComponent("progresshub"),
	}
}

// Run drives the hub's event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.log.Debug("progress client registered", logger.String("client_id", c.id))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.messages)
			}
			h.mu.Unlock()
			h.log.Debug("progress client unregistered", logger.String("client_id", c.id))

		case ev := <-h.broadcast:
			data, err := ev.marshal()
			if err != nil {
				h.log.Error("failed to marshal progress event", logger.Error(err))
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.messages <- data:
				default:
					h.log.Warn("progress client buffer full, skipping", logger.String("client_id", c.id))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.log.Info("progress hub shutting down")
			h.mu.Lock()
			for c := range h.clients {
				close(c.messages)
			}
			h.clients = make(map[*client]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Publish implements clone.Publisher: it forwards p to every connected
// client, best-effort, dropping the event if the broadcast channel is
// saturated rather than blocking the caller (the clone reader/writer).
func (h *Hub) Publish(p clone.Progress) {
	ev := Event{Timestamp: time.Now(), Fraction: p.Fraction, Phase: p.Phase}
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn("progress broadcast channel full, dropping event", logger.String("phase", p.Phase))
	}
}

// ClientCount returns the number of currently connected observers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler returns an HTTP handler that upgrades to a WebSocket connection
// and streams progress events to it.
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
		c := &client{id: r.RemoteAddr, conn: conn, messages: make(chan []byte, 256)}
		h.register <- c

		go func() {
			defer func() {
				h.unregister <- c
				_ = c.conn.Close()
			}()
			c.conn.SetReadLimit(1024)
			for {
				if _, _, err := c.conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		go func() {
			for msg := range c.messages {
				_ = c.conn.WriteMessage(websocket.TextMessage, msg)
			}
		}()
	})
}
