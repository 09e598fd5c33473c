package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nfc-kiosk/internal/cache"
	"nfc-kiosk/internal/reader"
	"nfc-kiosk/internal/scan"
	"nfc-kiosk/internal/worker"

	"github.com/jonboulle/clockwork"
)

var (
	ErrReadCard      = errors.New("error reading card")
	ErrDuplicateScan = errors.New("duplicate scan")
	ErrReaderState   = errors.New("error accessing reader state")
	ErrBroadcast     = errors.New("error broadcasting scan")
	ErrSave          = errors.New("error saving scan")
	ErrTimeout       = errors.New("no card detected within timeout")
)

const (
	PollInterval = 300 * time.Millisecond
	// DebounceWindow suppresses a card left resting on the reader.
	DebounceWindow = 3 * time.Second
)

type verifier interface {
	Verify(ctx context.Context, card reader.Card) scan.Event
}

type broadcaster interface {
	Broadcast(ctx context.Context, ev scan.Event) error
}

type sink interface {
	Save(ctx context.Context, rec scan.Record) error
}

type Config struct {
	ReaderID string
	Reader   reader.Reader
	Verifier verifier
	Cache    cache.Cache
	Hub      broadcaster
	// Sink is optional; without it scans are only broadcast.
	Sink  sink
	Clock clockwork.Clock
}

type Scanner struct {
	worker   *worker.Worker
	readerID string
	// mu keeps the loop and manual reads off the reader at the same time.
	mu       sync.Mutex
	reader   reader.Reader
	verifier verifier
	cache    cache.Cache
	hub      broadcaster
	sink     sink
	clock    clockwork.Clock
}

func New(cfg Config) *Scanner {
	s := &Scanner{
		readerID: cfg.ReaderID,
		reader:   cfg.Reader,
		verifier: cfg.Verifier,
		cache:    cfg.Cache,
		hub:      cfg.Hub,
		sink:     cfg.Sink,
		clock:    cfg.Clock,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	s.worker = worker.New(worker.Config{
		Name:      "scanner-worker",
		Processor: s,
		Interval:  PollInterval,
	})
	return s
}

func (s *Scanner) Run(ctx context.Context) {
	s.worker.Run(ctx)
}

func (s *Scanner) Close(ctx context.Context) error {
	slog.InfoContext(ctx, "Closing scanner resources...", "reader_id", s.readerID)
	return s.reader.Close()
}

// ProcessMessage handles one poll of the reader: debounce, verify, stamp and
// fan out.
func (s *Scanner) ProcessMessage(ctx context.Context) error {
	const fn = "Scanner:ProcessMessage"
	card, err := s.read(ctx)
	if errors.Is(err, reader.ErrNoCard) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrReadCard, err)
	}

	now := s.clock.Now()
	if err := s.validateScan(ctx, card.UID, now); err != nil {
		if errors.Is(err, ErrDuplicateScan) {
			slog.DebugContext(ctx, "Debounced card", "uid", card.UID, "reader_id", s.readerID)
			return nil
		}
		return fmt.Errorf("%s:%w", fn, err)
	}
	err = s.cache.Set(ctx, cache.ReaderID(s.readerID), cache.ReaderState{
		LastUID:    card.UID,
		LastScanAt: now.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrReaderState, err)
	}

	ev := s.process(ctx, card)
	slog.InfoContext(ctx, "Scan result",
		"uid", ev.UID,
		"verified", ev.IsVerified(),
		"student_id", ev.StudentID,
		"error", ev.Error,
	)
	return s.publish(ctx, ev)
}

// ReadOnce waits up to timeout for a card and returns its verification
// result. It neither debounces nor broadcasts.
func (s *Scanner) ReadOnce(ctx context.Context, timeout time.Duration) (scan.Event, error) {
	const fn = "Scanner:ReadOnce"
	readCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		card, err := s.read(readCtx)
		if err == nil {
			return s.process(ctx, card), nil
		}
		if !errors.Is(err, reader.ErrNoCard) && readCtx.Err() == nil {
			slog.WarnContext(ctx, "Card read failed, retrying", "reader_id", s.readerID, "error", err)
		}
		select {
		case <-readCtx.Done():
			if ctx.Err() != nil {
				return scan.Event{}, ctx.Err()
			}
			return scan.Event{}, fmt.Errorf("%s:%w", fn, ErrTimeout)
		case <-time.After(PollInterval):
		}
	}
}

func (s *Scanner) read(ctx context.Context) (reader.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reader.ReadCard(ctx)
}

func (s *Scanner) validateScan(ctx context.Context, uid string, now time.Time) error {
	state, exists, err := s.cache.Get(ctx, cache.ReaderID(s.readerID))
	if err != nil {
		return fmt.Errorf("%w:%w", ErrReaderState, err)
	}
	if exists && state.LastUID == uid && now.UnixMilli()-state.LastScanAt < DebounceWindow.Milliseconds() {
		return ErrDuplicateScan
	}
	return nil
}

func (s *Scanner) process(ctx context.Context, card reader.Card) scan.Event {
	ev := s.verifier.Verify(ctx, card)
	ev.UID = card.UID
	ev.Timestamp = s.clock.Now().Format(time.RFC3339Nano)
	return ev
}

func (s *Scanner) publish(ctx context.Context, ev scan.Event) error {
	const fn = "Scanner:publish"
	if err := s.hub.Broadcast(ctx, ev); err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrBroadcast, err)
	}
	if s.sink == nil {
		return nil
	}
	rec, err := scan.NewRecord(s.readerID, ev)
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrSave, err)
	}
	if err := s.sink.Save(ctx, rec); err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrSave, err)
	}
	return nil
}
