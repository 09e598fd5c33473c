package worker

import (
	"context"
	"log/slog"
	"time"
)

type Config struct {
	Name      string
	Processor Processor
	// Interval is the pause between iterations. Zero runs back to back, which
	// suits processors that block on their own source.
	Interval time.Duration
}

type Processor interface {
	ProcessMessage(ctx context.Context) error
}

type Worker struct {
	name      string
	processor Processor
	interval  time.Duration
}

func New(cfg Config) *Worker {
	return &Worker{
		name:      cfg.Name,
		processor: cfg.Processor,
		interval:  cfg.Interval,
	}
}

func (w *Worker) Run(ctx context.Context) {
	slog.InfoContext(ctx, "Worker started...", "worker", w.name)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Worker stopped...", "worker", w.name)
			return
		default:
		}

		if err := w.processor.ProcessMessage(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "Error processing message", "worker", w.name, "error", err)
		}

		if w.interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(w.interval):
			}
		}
	}
}
