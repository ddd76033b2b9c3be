package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"streampay/internal/core/domain"
)

var ErrHubClosed = errors.New("feed hub closed")

type Config struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	// MaxClients caps concurrent connections; 0 means unlimited.
	MaxClients     int
	SendBuffer     int
	AllowedOrigins []string
}

func DefaultConfig() Config {
	return Config{
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     64,
	}
}

// Filter narrows the events a client receives. Empty fields match everything.
type Filter struct {
	Types   []domain.EventType `json:"types,omitempty"`
	Address string             `json:"address,omitempty"`
	Signer  string             `json:"signer,omitempty"`
	Key     string             `json:"key,omitempty"`
}

func (f Filter) Match(e *domain.TransitionEvent) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if t == e.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Address != "" && f.Address != e.Address.String() {
		return false
	}
	if f.Signer != "" && f.Signer != e.Signer.String() {
		return false
	}
	if f.Key != "" && f.Key != e.Key {
		return false
	}
	return true
}

func filterFromQuery(r *http.Request) Filter {
	q := r.URL.Query()
	f := Filter{
		Address: q.Get("address"),
		Signer:  q.Get("signer"),
		Key:     q.Get("key"),
	}
	if types := q.Get("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			f.Types = append(f.Types, domain.EventType(strings.TrimSpace(t)))
		}
	}
	return f
}

// Message is the envelope of every frame sent or received.
type Message struct {
	Type   string                  `json:"type"`
	Event  *domain.TransitionEvent `json:"event,omitempty"`
	Filter *Filter                 `json:"filter,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu     sync.RWMutex
	filter Filter
}

func (c *client) matches(e *domain.TransitionEvent) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter.Match(e)
}

func (c *client) setFilter(f Filter) {
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub pushes committed transition events to websocket subscribers. It
// implements ports.EventPublisher.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger

	mu       sync.RWMutex
	clients  map[*client]struct{}
	closed   bool
	onChange func(clients int)
}

func NewHub(cfg Config, logger *zap.SugaredLogger) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultConfig().SendBuffer
	}
	h := &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// OnClientsChanged registers fn, called with the client count after every
// connect and disconnect.
func (h *Hub) OnClientsChanged(fn func(clients int)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = fn
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (h *Hub) register(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	if h.cfg.MaxClients > 0 && len(h.clients) >= h.cfg.MaxClients {
		return fmt.Errorf("feed is full (%d clients)", h.cfg.MaxClients)
	}
	h.clients[c] = struct{}{}
	if h.onChange != nil {
		h.onChange(len(h.clients))
	}
	return nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.close()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if h.onChange != nil {
		h.onChange(len(h.clients))
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish fans event out to every matching client. A client whose buffer is
// full is disconnected rather than allowed to stall the others.
func (h *Hub) Publish(ctx context.Context, event *domain.TransitionEvent) error {
	data, err := json.Marshal(Message{Type: "event", Event: event})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrHubClosed
	}
	var slow []*client
	for c := range h.clients {
		if !c.matches(event) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warnw("dropping slow feed client", "remote", c.conn.RemoteAddr().String())
		h.unregister(c)
	}
	return nil
}

// HandleWebSocket upgrades the request and streams events until the client
// goes away. Filters come from the query string and can be replaced by
// sending {"type":"subscribe","filter":{...}}.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := &client{
		conn:   conn,
		send:   make(chan []byte, h.cfg.SendBuffer),
		done:   make(chan struct{}),
		filter: filterFromQuery(r),
	}
	if err := h.register(c); err != nil {
		h.writeClose(conn, websocket.CloseTryAgainLater, err.Error())
		return
	}
	defer h.unregister(c)

	remote := conn.RemoteAddr().String()
	h.logger.Infow("feed client connected", "remote", remote)
	go h.readLoop(c)
	h.writeLoop(c)
	h.logger.Infow("feed client disconnected", "remote", remote)
}

func (h *Hub) readLoop(c *client) {
	defer c.close()

	if h.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(h.cfg.MaxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debugw("feed read failed", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))

		reply := Message{Type: "subscribed"}
		switch {
		case msg.Type != "subscribe":
			reply = Message{Type: "error", Error: fmt.Sprintf("unknown message type %q", msg.Type)}
		case msg.Filter == nil:
			c.setFilter(Filter{})
			reply.Filter = &Filter{}
		default:
			c.setFilter(*msg.Filter)
			reply.Filter = msg.Filter
		}
		data, err := json.Marshal(reply)
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
		case <-c.done:
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ping := time.NewTicker(h.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-c.done:
			h.writeClose(c.conn, websocket.CloseNormalClosure, "")
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) writeClose(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.cfg.WriteTimeout))
}

// Close disconnects every client and rejects further publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
	if h.onChange != nil {
		h.onChange(0)
	}
}
