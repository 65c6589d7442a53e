package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/antcolony/internal/engine"
)

const (
	maxStreamClients = 16
	writeTimeout     = 5 * time.Second
)

// Frame is one message on the live stream.
type Frame struct {
	Type       string             `json:"type"` // "hello" or "tick"
	Tick       uint64             `json:"tick"`
	Width      int                `json:"w,omitempty"`
	Height     int                `json:"h,omitempty"`
	Remaining  int                `json:"remaining"`
	Collected  int                `json:"collected"`
	Throughput float64            `json:"throughput"`
	Agents     []engine.AgentView `json:"agents,omitempty"`
}

// NewFrame builds a tick frame from a status.
func NewFrame(st engine.Status) Frame {
	return Frame{
		Type:       "tick",
		Tick:       st.Tick,
		Remaining:  st.Remaining,
		Collected:  st.Collected,
		Throughput: st.Throughput,
		Agents:     st.Agents,
	}
}

type streamClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *streamClient) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// Stream fans frames out to websocket clients.
type Stream struct {
	upgrader websocket.Upgrader
	hello    func() Frame

	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

// NewStream creates a stream. hello, if set, builds the first frame each
// new client receives.
func NewStream(hello func() Frame) *Stream {
	return &Stream{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		hello:    hello,
		clients:  make(map[*streamClient]struct{}),
	}
}

// Clients returns the number of connected clients.
func (st *Stream) Clients() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.clients)
}

// ServeHTTP upgrades the connection and holds it until the client leaves.
// Incoming messages are ignored.
func (st *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st.mu.Lock()
	full := len(st.clients) >= maxStreamClients
	st.mu.Unlock()
	if full {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := st.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	c := &streamClient{conn: conn}

	if st.hello != nil {
		if err := c.send(st.hello()); err != nil {
			conn.Close()
			return
		}
	}

	st.mu.Lock()
	st.clients[c] = struct{}{}
	st.mu.Unlock()
	slog.Info("stream client connected", "remote", r.RemoteAddr, "clients", st.Clients())

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	st.drop(c)
	slog.Info("stream client disconnected", "remote", r.RemoteAddr)
}

// Broadcast sends v to every client. Clients that fail are dropped.
func (st *Stream) Broadcast(v any) {
	st.mu.Lock()
	list := make([]*streamClient, 0, len(st.clients))
	for c := range st.clients {
		list = append(list, c)
	}
	st.mu.Unlock()

	for _, c := range list {
		if err := c.send(v); err != nil {
			slog.Debug("stream send failed", "error", err)
			st.drop(c)
		}
	}
}

func (st *Stream) drop(c *streamClient) {
	st.mu.Lock()
	delete(st.clients, c)
	st.mu.Unlock()
	c.conn.Close()
}

// Close disconnects every client.
func (st *Stream) Close() {
	st.mu.Lock()
	list := make([]*streamClient, 0, len(st.clients))
	for c := range st.clients {
		list = append(list, c)
	}
	st.clients = make(map[*streamClient]struct{})
	st.mu.Unlock()

	for _, c := range list {
		c.mu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		c.conn.Close()
	}
}
