package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"nfc-kiosk/internal/scan"

	"github.com/segmentio/kafka-go"
)

var (
	ErrMarshal      = errors.New("error marshalling record")
	ErrWriteMessage = errors.New("error writing message")
)

type PublisherConfig struct {
	Brokers []string
	Topic   string
}

// Publisher writes scan records keyed by card UID, so every scan of one card
// lands on the same partition in order.
type Publisher struct {
	writer Writer
}

func NewPublisher(cfg PublisherConfig) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafka.Hash{},
		},
	}
}

func (p *Publisher) Save(ctx context.Context, rec scan.Record) error {
	const fn = "Publisher:Save"
	out, err := json.Marshal(StructuredConnectRecord{
		Schema:  StructuredSchema,
		Payload: rec,
	})
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrMarshal, err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(rec.UID), Value: out}); err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrWriteMessage, err)
	}
	slog.InfoContext(ctx, "Published scan record", "uid", rec.UID, "id", rec.ID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
