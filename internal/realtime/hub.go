package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/devtrackhq/devtrack/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Authorizer decides whether a user may join a channel. The hub consults it
// for project channels; a user's personal channel is always their own.
type Authorizer func(userID uint64, channel string) bool

// Client is one connected websocket session.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uint64
	send   chan []byte
}

// Hub tracks connected clients and their channel membership, and delivers
// published events to every member of a channel. A slow client's buffer
// filling up drops that client rather than blocking the publisher.
type Hub struct {
	log       *zap.Logger
	authorize Authorizer

	mu       sync.RWMutex
	clients  map[*Client]struct{}
	channels map[string]map[*Client]struct{}
}

// NewHub creates a hub. A nil authorizer allows joining any channel.
func NewHub(log *zap.Logger, authorize Authorizer) *Hub {
	return &Hub{
		log:       log,
		authorize: authorize,
		clients:   make(map[*Client]struct{}),
		channels:  make(map[string]map[*Client]struct{}),
	}
}

// Publish implements Publisher by delivering to locally connected clients.
func (h *Hub) Publish(channel, event string, payload any) error {
	frame, err := json.Marshal(map[string]any{
		"event":   event,
		"payload": payload,
	})
	if err != nil {
		return err
	}
	h.deliver(channel, frame)
	return nil
}

// deliver sends while holding the read lock. remove closes a client's send
// queue under the write lock, so a send can never race the close.
func (h *Hub) deliver(channel string, frame []byte) {
	var slow []*Client

	h.mu.RLock()
	for c := range h.channels[channel] {
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow websocket client", zap.Uint64("user_id", c.userID))
		h.remove(c)
	}
}

// Serve upgrades the request and runs the connection until it closes.
// The client is implicitly subscribed to its own user channel.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uint64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 64),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.join(client, UserChannel(userID))
	metrics.WSConnections.Inc()

	go client.writePump()
	go client.readPump()
}

// join ignores clients the hub has already removed, so a slow-client drop
// racing a join frame cannot resurrect a closed connection.
func (h *Hub) join(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][c] = struct{}{}
}

func (h *Hub) leave(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.channels[channel], c)
	if len(h.channels[channel]) == 0 {
		delete(h.channels, channel)
	}
}

// remove detaches the client from every channel and closes its send queue.
// Lifecycle is keyed on the client registry, not channel membership, so a
// client that left all its channels before disconnecting is still torn down.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)

	for channel, members := range h.channels {
		if _, ok := members[c]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.channels, channel)
			}
		}
	}

	close(c.send)
	metrics.WSConnections.Dec()
}

// clientFrame is what clients send to manage their subscriptions.
type clientFrame struct {
	Action  string `json:"action"` // "join" or "leave"
	Channel string `json:"channel"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if !validChannel(frame.Channel) {
			continue
		}

		switch frame.Action {
		case "join":
			if c.hub.authorize != nil && !c.hub.authorize(c.userID, frame.Channel) {
				c.hub.log.Warn("channel join denied",
					zap.Uint64("user_id", c.userID),
					zap.String("channel", frame.Channel))
				continue
			}
			c.hub.join(c, frame.Channel)
		case "leave":
			c.hub.leave(c, frame.Channel)
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for frame := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func validChannel(channel string) bool {
	return strings.HasPrefix(channel, "project:") || strings.HasPrefix(channel, "user:")
}
