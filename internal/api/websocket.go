package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/vicare-bridge/internal/infrastructure/config"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// ChannelStateChanged carries every published entity state.
const ChannelStateChanged = "entity.state_changed"

// sendQueue is the per-client outbound buffer. A full queue drops events.
const sendQueue = 256

// WSMessage is the envelope for every frame in either direction.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	EventType string          `json:"event_type,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe frames.
// EntityIDs narrows delivery to those entities; empty means all.
type WSSubscribePayload struct {
	Channels  []string `json:"channels"`
	EntityIDs []string `json:"entity_ids,omitempty"`
}

// entityScoped is implemented by broadcast payloads that belong to one
// entity, so clients can filter them.
type entityScoped interface {
	entityID() string
}

func encodeWS(msgType, id, event string, payload any) ([]byte, error) {
	msg := WSMessage{
		Type:      msgType,
		ID:        id,
		EventType: event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = body
	}
	return json.Marshal(msg)
}

// wsFilter is what one client has asked to receive.
type wsFilter struct {
	mu       sync.RWMutex
	channels map[string]bool
	entities map[string]bool
}

func (f *wsFilter) add(sub WSSubscribePayload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.channels == nil {
		f.channels = make(map[string]bool)
		f.entities = make(map[string]bool)
	}
	for _, ch := range sub.Channels {
		f.channels[ch] = true
	}
	for _, id := range sub.EntityIDs {
		f.entities[id] = true
	}
}

// remove drops channels; the entity filter goes with the last channel.
func (f *wsFilter) remove(sub WSSubscribePayload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range sub.Channels {
		delete(f.channels, ch)
	}
	if len(f.channels) == 0 {
		clear(f.entities)
	}
}

func (f *wsFilter) match(channel, entityID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.channels[channel] {
		return false
	}
	return entityID == "" || len(f.entities) == 0 || f.entities[entityID]
}

// wsClient is one WebSocket connection.
type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	filter wsFilter

	closeOnce sync.Once
	mu        sync.Mutex // guards closed against concurrent queue
	closed    bool
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{conn: conn, send: make(chan []byte, sendQueue)}
}

// queue hands data to the write loop without blocking.
func (c *wsClient) queue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// shutdown closes the send queue, which makes the write loop send a close
// frame and exit.
func (c *wsClient) shutdown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}

func (c *wsClient) reply(msgType, id string, payload any) {
	if data, err := encodeWS(msgType, id, "", payload); err == nil {
		c.queue(data)
	}
}

func (c *wsClient) replyError(id, message string) {
	c.reply(WSTypeError, id, map[string]string{"message": message})
}

// Hub tracks WebSocket clients and fans events out to them.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewHub creates a hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{cfg: cfg, logger: logger, clients: make(map[*wsClient]struct{})}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
	}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.shutdown()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends payload as an event on channel to every client whose
// filter accepts it.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encodeWS(WSTypeEvent, "", channel, payload)
	if err != nil {
		h.logger.Error("failed to encode broadcast", "channel", channel, "error", err)
		return
	}

	var entityID string
	if sc, ok := payload.(entityScoped); ok {
		entityID = sc.entityID()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.filter.match(channel, entityID) {
			c.queue(data)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are filtered by the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebSocket upgrades to a WebSocket. With a JWT secret configured a
// ticket from POST /auth/ws-ticket must be passed as ?ticket=.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.cfg.JWT.Secret != "" {
		switch ticket := r.URL.Query().Get("ticket"); {
		case ticket == "":
			writeUnauthorized(w, "ticket query parameter is required")
			return
		case !s.tickets.consume(ticket):
			writeUnauthorized(w, "invalid or expired ticket")
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newWSClient(conn)
	s.hub.add(c)
	go s.hub.writeLoop(c)
	go s.hub.readLoop(c)
}

func (h *Hub) readLoop(c *wsClient) {
	defer h.remove(c)

	alive := time.Duration(h.cfg.PingInterval+h.cfg.PongTimeout) * time.Second
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(alive)) }

	c.conn.SetReadLimit(int64(h.cfg.MaxMessageSize))
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		_ = extend("")
		h.handleFrame(c, data)
	}
}

func (h *Hub) writeLoop(c *wsClient) {
	ping := time.NewTicker(time.Duration(h.cfg.PingInterval) * time.Second)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	grace := time.Duration(h.cfg.PongTimeout) * time.Second
	write := func(kind int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(grace))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = write(websocket.CloseMessage, nil)
				return
			}
			if write(websocket.TextMessage, data) != nil {
				return
			}
		case <-ping.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

func (h *Hub) handleFrame(c *wsClient, data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.replyError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypePing:
		c.reply(WSTypePong, msg.ID, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if err := json.Unmarshal(msg.Payload, &sub); err != nil || len(sub.Channels) == 0 {
			c.replyError(msg.ID, "invalid "+msg.Type+" payload")
			return
		}
		if msg.Type == WSTypeSubscribe {
			c.filter.add(sub)
			c.reply(WSTypeResponse, msg.ID, map[string]any{"subscribed": sub.Channels, "entity_ids": sub.EntityIDs})
			return
		}
		c.filter.remove(sub)
		c.reply(WSTypeResponse, msg.ID, map[string]any{"unsubscribed": sub.Channels})
	default:
		c.replyError(msg.ID, "unknown message type: "+msg.Type)
	}
}
