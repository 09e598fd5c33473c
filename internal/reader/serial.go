package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"
)

// MaxFrameSize bounds one buffered line. A longer line is dropped up to its
// newline.
const MaxFrameSize = 4 << 10

type SerialConfig struct {
	Port        string
	Baud        int
	PollTimeout time.Duration
}

// Serial reads newline-delimited frames from a UART/USB reader bridge.
type Serial struct {
	mu      sync.Mutex
	port    io.ReadCloser
	buf     []byte
	discard bool
}

func OpenSerial(cfg SerialConfig) (*Serial, error) {
	const fn = "Serial:Open"
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("%s:%w:%w", fn, ErrReadCard, err)
	}
	if err := port.SetReadTimeout(cfg.PollTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("%s:%w:%w", fn, ErrReadCard, err)
	}
	slog.Info("Serial NFC reader opened", "port", cfg.Port, "baud", cfg.Baud)
	return newSerial(port), nil
}

func newSerial(port io.ReadCloser) *Serial {
	return &Serial{port: port}
}

// ReadCard returns the next well-formed frame. A read that times out with no
// bytes ends the poll window with ErrNoCard; malformed lines are skipped.
func (s *Serial) ReadCard(ctx context.Context) (Card, error) {
	const fn = "Serial:ReadCard"
	s.mu.Lock()
	defer s.mu.Unlock()

	chunk := make([]byte, 256)
	for {
		if line, ok := s.nextLine(); ok {
			card, err := ParseFrame(line)
			if err != nil {
				slog.WarnContext(ctx, "Skipping reader frame", "error", err)
				continue
			}
			return card, nil
		}
		if err := ctx.Err(); err != nil {
			return Card{}, err
		}
		n, err := s.port.Read(chunk)
		if err != nil {
			return Card{}, fmt.Errorf("%s:%w:%w", fn, ErrReadCard, err)
		}
		if n == 0 {
			return Card{}, ErrNoCard
		}
		s.buf = append(s.buf, chunk[:n]...)
		if len(s.buf) > MaxFrameSize && bytes.IndexByte(s.buf, '\n') < 0 {
			slog.WarnContext(ctx, "Dropping oversized reader frame", "bytes", len(s.buf))
			s.buf = s.buf[:0]
			s.discard = true
		}
	}
}

func (s *Serial) Close() error {
	return s.port.Close()
}

func (s *Serial) nextLine() ([]byte, bool) {
	for {
		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			return nil, false
		}
		line := bytes.TrimSpace(s.buf[:i])
		s.buf = s.buf[i+1:]
		if s.discard {
			s.discard = false
			continue
		}
		if len(line) > 0 {
			return line, true
		}
	}
}
