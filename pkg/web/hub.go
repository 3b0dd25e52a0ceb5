package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/lisanmuaddib/allowance-go/pkg/approval"
	"github.com/lisanmuaddib/allowance-go/pkg/wallet"
)

const (
	maxMessageSize  = 512
	maxMessageQueue = 16
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = 54 * time.Second
)

// Event types pushed over the websocket feed.
const (
	EventSnapshot = "snapshot"
	EventReceipt  = "receipt"
)

var errClientBufferFull = errors.New("client buffer is full")

// upgrader keeps the default origin check, so only same-host pages can open the feed.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Event is one message on the websocket feed.
type Event struct {
	Type     string                    `json:"type"`
	Snapshot *approval.Snapshot        `json:"snapshot,omitempty"`
	Receipt  *wallet.TransactionStatus `json:"receipt,omitempty"`
}

// Hub fans events out to connected websocket clients.
type Hub struct {
	clients map[*wsClient]struct{}
	mu      sync.RWMutex
	log     *logrus.Logger
}

// NewHub creates an empty hub.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		log:     log,
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast encodes ev once and queues it for every client. Clients whose
// queue is full miss the event.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Error("Failed to encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if err := c.sendPreEncoded(data); err != nil {
			h.log.WithError(err).WithField("event", ev.Type).Debug("Dropped event for client")
		}
	}
}

// ServeWS upgrades the request and registers the connection. initial, if not
// nil, is sent before any broadcast.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, initial *Event) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("Failed to upgrade websocket connection")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &wsClient{
		conn: conn,
		send: make(chan []byte, maxMessageQueue),
		hub:  h,
	}

	if initial != nil {
		if data, err := json.Marshal(initial); err == nil {
			c.send <- data
		}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.log.WithField("clients", h.ClientCount()).Debug("Websocket client connected")

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// wsClient is one websocket connection with its own writer goroutine.
type wsClient struct {
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	closed  bool
	closeMu sync.Mutex
}

func (c *wsClient) sendPreEncoded(data []byte) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return errors.New("client is closed")
	}

	select {
	case c.send <- data:
		return nil
	default:
		return errClientBufferFull
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.log.WithError(err).Debug("Websocket write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only handles control frames; the feed is one way.
func (c *wsClient) readPump() {
	defer c.close()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.WithError(err).Debug("Unexpected websocket close")
			}
			return
		}
	}
}

// close may run from either pump. Broadcast holds the hub lock while taking
// closeMu, so the hub lock must not be taken under closeMu here.
func (c *wsClient) close() {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.closeMu.Unlock()

	c.hub.remove(c)
	c.conn.Close()
}
