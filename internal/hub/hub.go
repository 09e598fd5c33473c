package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nfc-kiosk/internal/scan"

	"github.com/gorilla/websocket"
)

var (
	ErrEncode = errors.New("error encoding event")
	ErrWrite  = errors.New("error writing to client")
)

const writeTimeout = 5 * time.Second

// Peer is one connected kiosk. gorilla connections allow a single
// concurrent writer, so writes go through the peer lock.
type Peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *Peer) write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans scan events out to every connected kiosk.
type Hub struct {
	mu    sync.Mutex
	peers map[*Peer]struct{}
}

func New() *Hub {
	return &Hub{peers: make(map[*Peer]struct{})}
}

func (h *Hub) Register(conn *websocket.Conn) *Peer {
	p := &Peer{conn: conn}
	h.mu.Lock()
	h.peers[p] = struct{}{}
	n := len(h.peers)
	h.mu.Unlock()
	slog.Info("Kiosk connected", "remote", conn.RemoteAddr().String(), "clients", n)
	return p
}

// Unregister drops the peer and closes its connection. Safe to call twice.
func (h *Hub) Unregister(p *Peer) {
	h.mu.Lock()
	_, ok := h.peers[p]
	delete(h.peers, p)
	h.mu.Unlock()
	if ok {
		p.conn.Close()
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Send writes one event to a single peer.
func (h *Hub) Send(p *Peer, ev scan.Event) error {
	const fn = "Hub:Send"
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrEncode, err)
	}
	if err := p.write(data); err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrWrite, err)
	}
	return nil
}

// Broadcast writes the event to all peers. Peers that fail the write are
// disconnected; that is not an error for the caller.
func (h *Hub) Broadcast(ctx context.Context, ev scan.Event) error {
	const fn = "Hub:Broadcast"
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrEncode, err)
	}

	h.mu.Lock()
	peers := make([]*Peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		if err := p.write(data); err != nil {
			slog.WarnContext(ctx, "Dropping kiosk after failed write", "remote", p.conn.RemoteAddr().String(), "error", err)
			h.Unregister(p)
		}
	}
	return nil
}
