package archiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"nfc-kiosk/internal/db"
	"nfc-kiosk/internal/worker"

	k "nfc-kiosk/internal/kafka"

	"github.com/segmentio/kafka-go"
)

var (
	ErrReadMessage  = errors.New("error reading message")
	ErrJSONParse    = errors.New("error parsing message")
	ErrWriteMessage = errors.New("error writing message")
)

type store interface {
	CreateTimeline(ctx context.Context, events []db.ScanEvent) error
}

type Config struct {
	Brokers         []string
	ConsumerGroupID string
	ConsumerTopic   string
	Store           store
}

// Archiver moves published scan records into the history store.
type Archiver struct {
	worker *worker.Worker
	reader k.Reader
	store  store
}

func New(cfg Config) *Archiver {
	archiver := &Archiver{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Brokers,
			GroupID: cfg.ConsumerGroupID,
			Topic:   cfg.ConsumerTopic,
		}),
		store: cfg.Store,
	}

	archiver.worker = worker.New(worker.Config{
		Name:      "archiver-worker",
		Processor: archiver,
	})
	return archiver
}

func (a *Archiver) Run(ctx context.Context) {
	a.worker.Run(ctx)
}

func (a *Archiver) Close(ctx context.Context) {
	slog.InfoContext(ctx, "Closing archiver resources...")
	a.reader.Close()
}

// Auto-commit active
func (a *Archiver) ProcessMessage(ctx context.Context) error {
	const fn = "Archiver:ProcessMessage"
	m, err := a.reader.ReadMessage(ctx)
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrReadMessage, err)
	}
	var record k.StructuredConnectRecord
	if err := json.Unmarshal(m.Value, &record); err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrJSONParse, err)
	}
	if record.Payload.ID == "" {
		return fmt.Errorf("%s:%w: record without id", fn, ErrJSONParse)
	}
	if err := a.store.CreateTimeline(ctx, []db.ScanEvent{db.FromRecord(record.Payload)}); err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrWriteMessage, err)
	}
	slog.InfoContext(ctx, "Archived scan record", "uid", record.Payload.UID, "id", record.Payload.ID)
	return nil
}
