package stream

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nfc-kiosk/internal/scan"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultURL     = "ws://localhost:5000/ws/scan"
	ReconnectDelay = 3000 * time.Millisecond
)

type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Listener receives status changes and decoded scans in the order they were
// applied to the client. Callbacks may read Status and LastScan but must not
// call Connect, Reconnect or Close.
type Listener interface {
	OnStatus(status Status)
	OnScan(event scan.Event)
}

type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

type Config struct {
	URL      string
	Dialer   Dialer
	Clock    clockwork.Clock
	Listener Listener
}

// Client keeps one receive-only connection to a scan event source alive,
// reconnecting at a fixed interval for as long as it is not closed.
type Client struct {
	url      string
	dialer   Dialer
	clock    clockwork.Clock
	listener Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	notifyMu  sync.Mutex
	status    Status
	lastScan  *scan.Event
	conn      *websocket.Conn
	dialing   bool
	gen       uint64
	reconnect clockwork.Timer
	closed    bool
}

func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:      cfg.URL,
		dialer:   cfg.Dialer,
		clock:    cfg.Clock,
		listener: cfg.Listener,
		ctx:      ctx,
		cancel:   cancel,
		status:   StatusConnecting,
	}
}

func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastScan returns the most recent scan event, if any.
func (c *Client) LastScan() (scan.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastScan == nil {
		return scan.Event{}, false
	}
	return *c.lastScan, true
}

// Connect opens a connection unless one is open or being dialed.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.closed || c.conn != nil || c.dialing {
		c.mu.Unlock()
		return
	}
	c.dialing = true
	gen := c.gen
	c.wg.Add(1)
	c.notifyLocked(func(l Listener) { l.OnStatus(StatusConnecting) }, func() { c.status = StatusConnecting })

	go func() {
		defer c.wg.Done()
		c.dial(gen)
	}()
}

// Reconnect drops any current or pending connection and dials immediately.
func (c *Client) Reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.dropLocked()
	c.mu.Unlock()
	c.Connect()
}

// Close tears the client down. It blocks until the connection goroutines exit.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.dropLocked()
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Client) dial(gen uint64) {
	conn, _, err := c.dialer.DialContext(c.ctx, c.url, nil)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	c.dialing = false
	if err != nil {
		slog.ErrorContext(c.ctx, "Failed to connect to scan stream", "url", c.url, "error", err)
		c.disconnectedLocked()
		return
	}
	c.conn = conn
	c.notifyLocked(func(l Listener) { l.OnStatus(StatusConnected) }, func() { c.status = StatusConnected })
	slog.InfoContext(c.ctx, "Scan stream connected", "url", c.url)

	c.readLoop(gen, conn)
}

func (c *Client) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if gen != c.gen {
				c.mu.Unlock()
				return
			}
			slog.InfoContext(c.ctx, "Scan stream disconnected, reconnecting...", "error", err)
			conn.Close()
			c.conn = nil
			c.disconnectedLocked()
			return
		}
		c.handleMessage(gen, data)
	}
}

func (c *Client) handleMessage(gen uint64, data []byte) {
	ev, err := scan.Decode(data)
	if err != nil {
		slog.ErrorContext(c.ctx, "Failed to parse scan stream message", "error", err)
		return
	}
	if ev.Type != scan.EventScan {
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.notifyLocked(func(l Listener) { l.OnScan(ev) }, func() { c.lastScan = &ev })
}

// disconnectedLocked marks the transport down and arms the retry. It releases c.mu.
func (c *Client) disconnectedLocked() {
	c.scheduleReconnectLocked()
	c.notifyLocked(func(l Listener) { l.OnStatus(StatusDisconnected) }, func() { c.status = StatusDisconnected })
}

func (c *Client) scheduleReconnectLocked() {
	if c.closed {
		return
	}
	if c.reconnect != nil {
		c.reconnect.Stop()
	}
	c.reconnect = c.clock.AfterFunc(ReconnectDelay, c.Connect)
}

// dropLocked invalidates the current generation so in-flight dials and read
// loops discard their results, and closes the open connection.
func (c *Client) dropLocked() {
	c.gen++
	c.dialing = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// notifyLocked applies a state change and delivers the matching callback.
// The notify lock is taken before c.mu is released so callbacks observe
// changes in the order they were applied. It releases c.mu.
func (c *Client) notifyLocked(deliver func(Listener), apply func()) {
	apply()
	if c.listener == nil {
		c.mu.Unlock()
		return
	}
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()
	deliver(c.listener)
}
