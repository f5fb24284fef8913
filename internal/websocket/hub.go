// Package websocket pushes queue, search, health and log events to
// connected clients.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 4096
	sendBuffer     = 256
)

// MsgSubscribe limits which topics a client receives. Its payload is
// {"topics": ["queue", "health"]}; an empty list restores every topic.
const MsgSubscribe = "subscribe"

var (
	// ErrBufferFull is returned by Broadcast when the hub cannot keep up.
	ErrBufferFull = errors.New("websocket broadcast buffer full")
	// ErrClosed is returned once the hub has stopped.
	ErrClosed = errors.New("websocket hub closed")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the JSON frame exchanged with clients.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

type outgoing struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp string      `json:"timestamp"`
}

type subscribePayload struct {
	Topics []string `json:"topics"`
}

// Topic returns the part of a message type before the first colon, so
// "queue:updated" belongs to "queue".
func Topic(msgType string) string {
	topic, _, _ := strings.Cut(msgType, ":")
	return topic
}

type frame struct {
	topic string
	data  []byte
}

type inbound struct {
	client *client
	msg    Message
}

// Hub fans messages out to connected clients.
type Hub struct {
	logger zerolog.Logger

	broadcast  chan frame
	register   chan *client
	unregister chan *client
	incoming   chan inbound
	done       chan struct{}
	closeOnce  sync.Once

	mu      sync.RWMutex
	clients map[*client]struct{}

	handlersMu sync.RWMutex
	handlers   map[string]func()
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	// topics is nil when the client receives everything. Only Run touches it.
	topics map[string]bool
}

func (c *client) wants(topic string) bool {
	return c.topics == nil || c.topics[topic]
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:     logger.With().Str("component", "websocket").Logger(),
		broadcast:  make(chan frame, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		incoming:   make(chan inbound, sendBuffer),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
		handlers:   make(map[string]func()),
	}
}

// Handle registers fn to run when a client sends a message of msgType, for
// example "queue:refresh".
func (h *Hub) Handle(msgType string, fn func()) {
	h.handlersMu.Lock()
	defer h.handlersMu.Unlock()
	h.handlers[msgType] = fn
}

// Run delivers messages until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeOnce.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug().Int("clients", h.ClientCount()).Msg("Client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
			h.mu.Unlock()

		case f := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if !c.wants(f.topic) {
					continue
				}
				select {
				case c.send <- f.data:
				default:
					h.logger.Debug().Msg("Dropping slow client")
					h.drop(c)
				}
			}
			h.mu.Unlock()

		case in := <-h.incoming:
			h.handleIncoming(in)
		}
	}
}

// drop is called with h.mu held.
func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) handleIncoming(in inbound) {
	if in.msg.Type == MsgSubscribe {
		var p subscribePayload
		if len(in.msg.Payload) > 0 {
			if err := json.Unmarshal(in.msg.Payload, &p); err != nil {
				return
			}
		}
		var topics map[string]bool
		if len(p.Topics) > 0 {
			topics = make(map[string]bool, len(p.Topics))
			for _, t := range p.Topics {
				topics[t] = true
			}
		}
		h.mu.Lock()
		in.client.topics = topics
		h.mu.Unlock()
		return
	}

	h.handlersMu.RLock()
	fn, ok := h.handlers[in.msg.Type]
	h.handlersMu.RUnlock()
	if ok {
		fn()
	}
}

// Broadcast queues a message for every client subscribed to its topic. It
// never blocks; when the buffer is full the message is dropped.
func (h *Hub) Broadcast(msgType string, payload interface{}) error {
	data, err := json.Marshal(outgoing{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}

	select {
	case <-h.done:
		return ErrClosed
	default:
	}
	select {
	case h.broadcast <- frame{topic: Topic(msgType), data: data}:
		return nil
	default:
		return ErrBufferFull
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and attaches the connection.
func (h *Hub) HandleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- cl:
	case <-h.done:
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		return conn.Close()
	}

	go cl.writePump()
	go cl.readPump()
	return nil
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Msg("WebSocket closed unexpectedly")
			}
			return
		}

		select {
		case c.hub.incoming <- inbound{client: c, msg: msg}:
		case <-c.hub.done:
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
