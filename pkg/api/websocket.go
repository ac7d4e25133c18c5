package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ethpandaops/specviewer/pkg/session"
	"github.com/ethpandaops/specviewer/pkg/store"
	"github.com/ethpandaops/specviewer/pkg/viewer"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// createUpgrader creates a WebSocket upgrader with origin validation.
func createUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"

	originSet := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originSet[origin] = true
	}

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowAll || originSet[origin] {
				return true
			}

			// Same-origin pages are always allowed.
			u, err := url.Parse(origin)

			return err == nil && u.Host == r.Host
		},
	}
}

// MessageType represents the type of WebSocket message.
type MessageType string

const (
	// Server -> Client messages.
	MessageTypeState     MessageType = "state"
	MessageTypePushState MessageType = "push_state"
	MessageTypeDemos     MessageType = "demos"
	MessageTypeError     MessageType = "error"
	MessageTypePong      MessageType = "pong"

	// Client -> Server messages.
	MessageTypeSelectSpec MessageType = "select_spec"
	MessageTypeToggleCORS MessageType = "toggle_cors"
	MessageTypeThemeColor MessageType = "theme_color"
	MessageTypePopState   MessageType = "popstate"
	MessageTypePing       MessageType = "ping"
)

// Message is a server to client WebSocket message.
type Message struct {
	Type   MessageType   `json:"type"`
	View   *viewer.View  `json:"view,omitempty"`
	Search string        `json:"search,omitempty"`
	Index  int           `json:"index"`
	Demos  []*store.Demo `json:"demos,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// ClientMessage is a client to server WebSocket message.
type ClientMessage struct {
	Type    MessageType `json:"type"`
	Value   string      `json:"value,omitempty"`
	Checked bool        `json:"checked,omitempty"`
	Search  string      `json:"search,omitempty"`
	Index   *int        `json:"index,omitempty"`
}

func messageFromEvent(e session.Event) *Message {
	switch e.Type {
	case session.EventPushState:
		return &Message{Type: MessageTypePushState, Search: e.Search, Index: e.Index}
	default:
		return &Message{Type: MessageTypeState, View: e.View, Index: e.Index}
	}
}

// Hub maintains the set of active clients and broadcasts catalog changes.
type Hub struct {
	log logrus.FieldLogger

	// Registered clients.
	clients map[*Client]bool

	// Register requests from clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Broadcast messages to all clients.
	broadcast chan *Message

	// Closed when Run returns.
	done chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		log:        log.WithField("component", "websocket"),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("Starting WebSocket hub")

	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Stopping WebSocket hub")

			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()

			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

			h.log.WithField("client", client.id).Debug("Client registered")

		case client := <-h.unregister:
			h.mu.Lock()

			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}

			h.mu.Unlock()

			h.log.WithField("client", client.id).Debug("Client unregistered")

		case msg := <-h.broadcast:
			h.mu.Lock()

			for client := range h.clients {
				if !client.deliver(msg) {
					client.close()
					delete(h.clients, client)
				}
			}

			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg *Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("Broadcast channel full, dropping message")
	}
}

// BroadcastDemos sends the current catalog to all connected clients.
func (h *Hub) BroadcastDemos(demos []*store.Demo) {
	h.Broadcast(&Message{Type: MessageTypeDemos, Demos: demos})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Client is one browser tab connected over WebSocket.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	session *session.Session
	send    chan *Message

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient creates a new WebSocket client. The connection and session are
// attached once the upgrade succeeds.
func NewClient(hub *Hub, id string) *Client {
	return &Client{
		id:     id,
		hub:    hub,
		send:   make(chan *Message, 256),
		closed: make(chan struct{}),
	}
}

// deliver queues msg without blocking. It reports false when the client's
// buffer is full.
func (c *Client) deliver(msg *Message) bool {
	select {
	case <-c.closed:
		return true
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// sink forwards session events to the client.
func (c *Client) sink(e session.Event) {
	if !c.deliver(messageFromEvent(e)) {
		c.hub.log.WithField("client", c.id).Warn("Client buffer full, dropping connection")
		c.close()
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// ReadPump pumps messages from the websocket connection to the session.
func (c *Client) ReadPump() {
	defer func() {
		c.session.Close()
		c.hub.remove(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Warn("WebSocket read error")
			}

			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.log.WithError(err).Warn("Failed to parse WebSocket message")
			c.deliver(&Message{Type: MessageTypeError, Error: "invalid message"})

			continue
		}

		c.handleMessage(&msg)
	}
}

// WritePump pumps messages from the session to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}

		case <-c.closed:
			c.writeClose()

			return

		case <-c.session.Done():
			c.hub.log.WithField("client", c.id).Debug("Session ended, closing connection")
			c.close()
			c.writeClose()

			return

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeClose() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *Client) write(msg *Message) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.log.WithError(err).Warn("Failed to marshal WebSocket message")

		return nil
	}

	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// handleMessage handles incoming messages from the client.
func (c *Client) handleMessage(msg *ClientMessage) {
	switch msg.Type {
	case MessageTypeSelectSpec:
		c.session.SelectSpec(msg.Value)

	case MessageTypeToggleCORS:
		c.session.ToggleCORS(msg.Checked)

	case MessageTypeThemeColor:
		c.session.ThemeColor(msg.Value)

	case MessageTypePopState:
		index := -1
		if msg.Index != nil {
			index = *msg.Index
		}

		c.session.PopState(index, msg.Search)

	case MessageTypePing:
		// A tab that is only being read still pings.
		c.session.Touch()
		c.deliver(&Message{Type: MessageTypePong})

	default:
		c.hub.log.WithField("type", msg.Type).Warn("Unknown message type")
		c.deliver(&Message{Type: MessageTypeError, Error: "unknown message type"})
	}
}

// ServeWs opens a session for the tab and upgrades the connection.
func ServeWs(hub *Hub, sessions session.Manager, allowedOrigins []string, w http.ResponseWriter, r *http.Request) {
	upgrader := createUpgrader(allowedOrigins)
	if !upgrader.CheckOrigin(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)

		return
	}

	client := NewClient(hub, r.Header.Get("X-Request-ID"))

	pageURL, search := tabOf(r)

	sess, err := sessions.Open(pageURL, search, client.sink)
	if err != nil {
		if errors.Is(err, session.ErrTooManySessions) {
			http.Error(w, "Too many sessions", http.StatusServiceUnavailable)

			return
		}

		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.WithError(err).Error("Failed to upgrade WebSocket")
		sess.Close()

		return
	}

	client.conn = conn
	client.session = sess

	if client.id == "" {
		client.id = sess.ID().String()
	}

	if !hub.add(client) {
		sess.Close()
		conn.Close()

		return
	}

	// Sync the tab with the server-side state before any transition.
	view := sess.View()
	client.deliver(&Message{Type: MessageTypeState, View: &view})

	// Start pumps.
	go client.WritePump()
	go client.ReadPump()
}

// pageParam carries the address of the page that opened the socket.
// Browsers rarely send Referer on the handshake, so the page passes its own
// location.
const pageParam = "page"

// tabOf returns the address and search string of the page that opened the
// socket. Relative spec sources are resolved against the address. Without a
// page parameter the Referer, or the site root, stands in for the page and
// the request's own query is the search.
func tabOf(r *http.Request) (pageURL, search string) {
	if page := pageOf(r); page != nil {
		if page.RawQuery != "" {
			search = "?" + page.RawQuery
		}

		return page.String(), search
	}

	if ref := r.Referer(); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.IsAbs() {
			return ref, searchOf(r)
		}
	}

	return requestBaseURL(r) + "/", searchOf(r)
}

func searchOf(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return ""
	}

	return "?" + r.URL.RawQuery
}

// pageOf parses the page parameter. It must be an absolute http(s) URL.
func pageOf(r *http.Request) *url.URL {
	raw := r.URL.Query().Get(pageParam)
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return nil
	}

	u.Fragment = ""
	u.RawFragment = ""

	return u
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}

	return scheme + "://" + r.Host
}
