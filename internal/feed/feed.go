// Package feed pushes recomputed dashboard summaries to websocket clients
// whenever subscription data changes.
package feed

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// SummarySource computes the dashboard summary for a search text.
type SummarySource interface {
	Summary(search string) models.DashboardSummary
}

// Message is the frame sent to clients.
type Message struct {
	Type    string                  `json:"type"`
	Search  string                  `json:"search"`
	Summary models.DashboardSummary `json:"summary"`
}

// clientMessage is the frame clients send to change their search text.
type clientMessage struct {
	Type   string `json:"type"`
	Search string `json:"search"`
}

// Config holds configuration for the Feed.
type Config struct {
	// PingInterval is how often to send ping messages to clients.
	PingInterval time.Duration
	// WriteTimeout is the timeout for writing to a client.
	WriteTimeout time.Duration
	// ReadTimeout is the timeout for reading from a client.
	ReadTimeout time.Duration
	// MaxMessageSize is the maximum size of a message from a client.
	MaxMessageSize int64
	// SendBufferSize is the size of the send buffer per client.
	SendBufferSize int
	// AllowedOrigins restricts the Origin header; empty allows any origin.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PingInterval:   30 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		MaxMessageSize: 512,
		SendBufferSize: 16,
	}
}

// Client is a connected websocket subscriber.
type Client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	feed *Feed

	mu     sync.Mutex
	search string
}

func (c *Client) searchText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.search
}

// Feed fans dashboard summaries out to connected clients.
type Feed struct {
	config   Config
	source   SummarySource
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	onCount  func(int)

	clientsMu sync.RWMutex
	clients   map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client
	resync     chan *Client
	changed    chan struct{}

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewFeed creates a new Feed over source.
func NewFeed(source SummarySource, cfg Config, logger zerolog.Logger) *Feed {
	f := &Feed{
		config:     cfg,
		source:     source,
		logger:     logger.With().Str("component", "dashboard_feed").Logger(),
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		resync:     make(chan *Client, 16),
		changed:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	f.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     f.checkOrigin,
	}
	return f
}

// OnClientCount registers fn to receive the client count after each change.
func (f *Feed) OnClientCount(fn func(int)) {
	f.onCount = fn
}

func (f *Feed) checkOrigin(r *http.Request) bool {
	if len(f.config.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(f.config.AllowedOrigins, origin)
}

// Start begins processing notifications and client management.
func (f *Feed) Start() {
	f.wg.Add(1)
	go f.run()
	f.logger.Info().Msg("dashboard feed started")
}

// Stop stops the feed and closes all client connections.
func (f *Feed) Stop() {
	f.stopOnce.Do(func() {
		close(f.done)
		f.wg.Wait()
		f.logger.Info().Msg("dashboard feed stopped")
	})
}

// Notify signals that subscription data changed. Bursts of notifications
// are coalesced into a single push.
func (f *Feed) Notify() {
	select {
	case f.changed <- struct{}{}:
	default:
	}
}

func (f *Feed) run() {
	defer f.wg.Done()

	for {
		select {
		case <-f.done:
			f.closeAllClients()
			return

		case client := <-f.register:
			f.addClient(client)
			f.push(client, "snapshot", nil)

		case client := <-f.unregister:
			f.removeClient(client)

		case client := <-f.resync:
			f.clientsMu.RLock()
			_, live := f.clients[client.id]
			f.clientsMu.RUnlock()
			if live {
				f.push(client, "snapshot", nil)
			}

		case <-f.changed:
			f.broadcast()
		}
	}
}

func (f *Feed) addClient(client *Client) {
	f.clientsMu.Lock()
	f.clients[client.id] = client
	n := len(f.clients)
	f.clientsMu.Unlock()

	f.reportCount(n)
	f.logger.Debug().Str("client_id", client.id.String()).Msg("client connected")
}

func (f *Feed) removeClient(client *Client) {
	f.clientsMu.Lock()
	if _, ok := f.clients[client.id]; !ok {
		f.clientsMu.Unlock()
		return
	}
	delete(f.clients, client.id)
	close(client.send)
	n := len(f.clients)
	f.clientsMu.Unlock()

	f.reportCount(n)
	f.logger.Debug().Str("client_id", client.id.String()).Msg("client disconnected")
}

func (f *Feed) closeAllClients() {
	f.clientsMu.Lock()
	for _, client := range f.clients {
		close(client.send)
	}
	f.clients = make(map[uuid.UUID]*Client)
	f.clientsMu.Unlock()

	f.reportCount(0)
}

func (f *Feed) reportCount(n int) {
	if f.onCount != nil {
		f.onCount(n)
	}
}

// broadcast pushes a fresh summary to every client, computing it once per
// distinct search text.
func (f *Feed) broadcast() {
	f.clientsMu.RLock()
	clients := make([]*Client, 0, len(f.clients))
	for _, c := range f.clients {
		clients = append(clients, c)
	}
	f.clientsMu.RUnlock()

	frames := make(map[string][]byte)
	for _, c := range clients {
		f.push(c, "update", frames)
	}
}

// push sends the client its current summary. It runs on the feed goroutine,
// which is the only place send channels are closed.
func (f *Feed) push(c *Client, kind string, frames map[string][]byte) {
	search := c.searchText()

	data, ok := frames[search]
	if !ok {
		var err error
		data, err = json.Marshal(Message{Type: kind, Search: search, Summary: f.source.Summary(search)})
		if err != nil {
			f.logger.Error().Err(err).Msg("failed to encode dashboard summary")
			return
		}
		if frames != nil {
			frames[search] = data
		}
	}

	select {
	case c.send <- data:
	default:
		f.logger.Warn().Str("client_id", c.id.String()).Msg("client send buffer full, dropping update")
	}
}

// HandleWebSocket upgrades the connection and registers the client. The
// initial search text comes from the "search" query parameter.
func (f *Feed) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	client := &Client{
		id:     uuid.New(),
		conn:   conn,
		send:   make(chan []byte, f.config.SendBufferSize),
		feed:   f,
		search: r.URL.Query().Get("search"),
	}

	select {
	case f.register <- client:
	case <-f.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of connected clients.
func (f *Feed) ClientCount() int {
	f.clientsMu.RLock()
	defer f.clientsMu.RUnlock()
	return len(f.clients)
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.feed.unregister <- c:
		case <-c.feed.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.feed.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.feed.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.feed.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.feed.logger.Debug().Err(err).Msg("websocket read error")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type != "search" {
			continue
		}

		c.mu.Lock()
		c.search = msg.Search
		c.mu.Unlock()

		select {
		case c.feed.resync <- c:
		case <-c.feed.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.feed.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.feed.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.feed.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
