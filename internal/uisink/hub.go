package uisink

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"chainstate/internal/logging"
)

const (
	writeTimeout = 5 * time.Second
	pongWait     = 60 * time.Second
	pingEvery    = pongWait * 9 / 10
)

// Hub fans messages out to websocket clients. New clients first receive the
// latest message of every state id. Post never blocks: messages queued for a
// slow client are coalesced per state id, so it skips intermediate payloads
// but always ends on the newest one.
type Hub struct {
	upgrader websocket.Upgrader
	log      *logrus.Entry

	mu      sync.Mutex
	clients map[*client]struct{}
	last    map[string]Message
	order   []string
	closed  bool
}

type client struct {
	conn *websocket.Conn
	wake chan struct{}
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	pending map[string]Message
	order   []string
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn:    conn,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		pending: make(map[string]Message),
	}
}

// enqueue replaces any undelivered message for the same state id.
func (c *client) enqueue(msg Message) {
	c.mu.Lock()
	if _, queued := c.pending[msg.StateID]; !queued {
		c.order = append(c.order, msg.StateID)
	}
	c.pending[msg.StateID] = msg
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// take returns the queued messages in first-queued order and empties the
// queue.
func (c *client) take() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.pending[id])
	}
	c.order = nil
	clear(c.pending)
	return out
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// NewHub returns a hub. A nil log discards.
func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     logging.OrDiscard(log),
		clients: make(map[*client]struct{}),
		last:    make(map[string]Message),
	}
}

// Post records msg as the latest for its state id and queues it for every
// connected client.
func (h *Hub) Post(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if _, seen := h.last[msg.StateID]; !seen {
		h.order = append(h.order, msg.StateID)
	}
	h.last[msg.StateID] = msg
	for c := range h.clients {
		c.enqueue(msg)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams messages until the client goes
// away or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	c := newClient(conn)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	for _, id := range h.order {
		c.enqueue(h.last[id])
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.WithField("remote", r.RemoteAddr).Debug("ui client connected")

	go h.readLoop(c)
	h.writeLoop(c)
}

// readLoop discards inbound frames and detects disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.wake:
			for _, msg := range c.take() {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := c.conn.WriteJSON(msg); err != nil {
					h.drop(c)
					return
				}
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(c)
				return
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// Close disconnects every client. Later posts are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
}
