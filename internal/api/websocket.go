package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-gateway/internal/auth"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gateway/internal/notify"
)

// Frame types exchanged with WebSocket clients.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	wsSendBufferSize = 256
)

// Channel names a client can subscribe to besides the bus event types.
const (
	// WSChannelAll receives every bus event.
	WSChannelAll = "*"
	// WSChannelThingPrefix followed by a thing ID receives every event
	// about that thing, e.g. "thing:Th1".
	WSChannelThingPrefix = "thing:"
)

// WSMessage is the frame written to clients and the shape clients send.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload lists the channels of a subscribe or unsubscribe frame.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsInbound is a client frame with its payload left undecoded until the
// frame type is known.
type wsInbound struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

var errEmptyChannel = errors.New("channel names must not be empty")

// Hub fans bus events out to WebSocket clients by channel.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient is one connected, ticket-authenticated WebSocket session.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	done          chan struct{}
	closeOnce     sync.Once
	subscriptions map[string]struct{}
	mu            sync.RWMutex
	principal     auth.Principal
}

// CORS middleware already decides which origins reach the upgrade.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// NewHub creates a hub with no clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.stop()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *WSClient) {
	if c.done == nil {
		c.done = make(chan struct{})
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client and stops its writer. Safe to call twice.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.stop()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify implements notify.Observer. An event reaches clients subscribed
// to its type, to the thing it concerns, or to everything.
func (h *Hub) Notify(_ context.Context, e notify.Event) error {
	channels := []string{string(e.Type), WSChannelAll}
	if e.ThingID != "" {
		channels = append(channels, WSChannelThingPrefix+e.ThingID)
	}
	h.publish(string(e.Type), e, channels)
	return nil
}

// String names the hub in bus logs.
func (h *Hub) String() string {
	return "websocket-hub"
}

// publish encodes one event frame and queues it for every client matching
// any of channels. The hub lock is released before client locks are taken.
func (h *Hub) publish(eventType string, payload any, channels []string) {
	frame, err := encodeFrame(WSMessage{Type: WSTypeEvent, EventType: eventType, Payload: payload})
	if err != nil {
		h.logger.Error("encoding websocket event", "event_type", eventType, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.subscribedToAny(channels) && c.queue(frame) {
			delivered++
		}
	}
	if delivered > 0 {
		h.logger.Debug("websocket event delivered", "event_type", eventType, "recipients", delivered)
	}
}

func encodeFrame(msg WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	return json.Marshal(msg)
}

// handleWebSocket redeems the ticket query parameter issued by
// POST /auth/ws-ticket and upgrades the connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		s.writeProblem(w, r, problemFor(ErrIDMissingToken, "ticket query parameter is required"))
		return
	}
	principal, ok := s.tickets.redeem(ticket)
	if !ok {
		s.writeProblem(w, r, problemFor(ErrIDInvalidToken, "invalid or expired ticket"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "username", principal.Username, "error", err)
		return
	}

	c := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		principal:     principal,
	}
	s.hub.Register(c)
	s.logger.Info("websocket session opened", "username", principal.Username, "scope", principal.Scope)

	go c.writeLoop()
	go c.readLoop()
}

func (c *WSClient) readLoop() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	idle := c.hub.cfg.ReadDeadline()
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }

	c.conn.SetReadLimit(int64(c.hub.cfg.MaxMessageSize))
	//nolint:errcheck // a failed deadline surfaces as a read error
	extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "username", c.principal.Username, "error", err)
			}
			return
		}
		// Browsers do not always answer protocol pings, so application
		// frames count as liveness too.
		//nolint:errcheck // a failed deadline surfaces as a read error
		extend()
		c.dispatch(data)
	}
}

func (c *WSClient) writeLoop() {
	ping := time.NewTicker(c.hub.cfg.PingPeriod())
	writeWait := c.hub.cfg.WriteWait()
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // a failed deadline surfaces as a write error
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case <-c.done:
			//nolint:errcheck // the peer may already be gone
			write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case frame := <-c.send:
			if err := write(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch handles one client frame.
func (c *WSClient) dispatch(data []byte) {
	var in wsInbound
	if err := json.Unmarshal(data, &in); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch in.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		channels, err := decodeChannels(in.Payload)
		if err != nil {
			c.reply(in.ID, WSTypeError, map[string]string{"message": in.Type + ": " + err.Error()})
			return
		}
		if in.Type == WSTypeSubscribe {
			c.subscribe(channels)
			c.reply(in.ID, WSTypeResponse, map[string]any{"subscribed": channels})
		} else {
			c.unsubscribe(channels)
			c.reply(in.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
		}
	case WSTypePing:
		c.reply(in.ID, WSTypePong, nil)
	default:
		c.reply(in.ID, WSTypeError, map[string]string{"message": "unknown message type: " + in.Type})
	}
}

func decodeChannels(raw json.RawMessage) ([]string, error) {
	var p WSSubscribePayload
	if len(raw) == 0 {
		return nil, errors.New("payload is required")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errors.New("payload must be {\"channels\": [...]}")
	}
	for _, ch := range p.Channels {
		if strings.TrimPrefix(ch, WSChannelThingPrefix) == "" {
			return nil, errEmptyChannel
		}
	}
	return p.Channels, nil
}

func (c *WSClient) subscribe(channels []string) {
	c.mu.Lock()
	for _, ch := range channels {
		c.subscriptions[ch] = struct{}{}
	}
	c.mu.Unlock()
	c.hub.logger.Info("websocket subscribed", "username", c.principal.Username, "channels", channels)
}

func (c *WSClient) unsubscribe(channels []string) {
	c.mu.Lock()
	for _, ch := range channels {
		delete(c.subscriptions, ch)
	}
	c.mu.Unlock()
}

func (c *WSClient) subscribedToAny(channels []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range channels {
		if _, ok := c.subscriptions[ch]; ok {
			return true
		}
	}
	return false
}

// queue hands a frame to the writer without blocking. Frames for a
// stopped or backed-up client are dropped.
func (c *WSClient) queue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.hub.logger.Warn("websocket send buffer full, dropping frame", "username", c.principal.Username)
		return false
	}
}

func (c *WSClient) reply(id, kind string, payload any) {
	frame, err := encodeFrame(WSMessage{Type: kind, ID: id, Payload: payload})
	if err != nil {
		return
	}
	c.queue(frame)
}

func (c *WSClient) stop() {
	c.closeOnce.Do(func() {
		if c.done != nil {
			close(c.done)
		}
	})
}
