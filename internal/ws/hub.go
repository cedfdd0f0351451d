package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"nuestra-historia/internal/gallery"
	"nuestra-historia/internal/upload"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Client is one connected browser and the gallery view it drives.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	view *gallery.View
}

// Hub tracks connected clients. Each client owns its own gallery view and
// subscription; nothing is shared between clients except the store.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex

	store     gallery.Store
	widget    upload.Widget
	widgetCfg upload.Config
	logger    *slog.Logger
}

func NewHub(store gallery.Store, widget upload.Widget, widgetCfg upload.Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		store:      store,
		widget:     widget,
		widgetCfg:  widgetCfg,
		logger:     logger,
	}
}

// Run serves registrations until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client registered")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("websocket client unregistered")
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.conn.Close()
			}
			h.mu.Unlock()
			return
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

type WSEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(readLimit(h.widgetCfg))

	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}
	view, err := gallery.New(r.Context(), h.store, h.widget, h.widgetCfg,
		gallery.WithLogger(h.logger),
		gallery.WithRenderer(func(s gallery.Screen) { client.push("view", s) }),
	)
	if err != nil {
		h.logger.Warn("gallery view failed to start", "error", err)
		payload, _ := json.Marshal(WSEvent{Type: "error", Data: H{"message": err.Error()}})
		conn.WriteMessage(websocket.TextMessage, payload)
		conn.Close()
		return
	}
	client.view = view

	select {
	case h.register <- client:
	case <-h.done:
		view.Close()
		conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()
}

// readLimit leaves room for a base64 encoded file of the maximum size.
func readLimit(cfg upload.Config) int64 {
	const overhead = 64 << 10
	if cfg.MaxFileSizeBytes <= 0 {
		return 32<<20 + overhead
	}
	return cfg.MaxFileSizeBytes/3*4 + 4 + overhead
}

// push queues an event. When the queue is full the oldest pending event is
// dropped; every view event carries the whole screen.
func (c *Client) push(eventType string, data interface{}) {
	payload, err := json.Marshal(WSEvent{Type: eventType, Data: data})
	if err != nil {
		c.hub.logger.Error("marshal websocket event", "type", eventType, "error", err)
		return
	}

	select {
	case c.send <- payload:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		// the view must stop rendering before the hub closes c.send
		c.view.Close()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
			close(c.send)
		}
		c.conn.Close()
	}()

	c.dispatch(Command{Type: "refresh"})
	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			var (
				syntaxErr *json.SyntaxError
				typeErr   *json.UnmarshalTypeError
			)
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.push("error", H{"message": "malformed command"})
				continue
			}
			break
		}
		c.dispatch(cmd)
	}
}

func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
