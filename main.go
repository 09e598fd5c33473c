package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"nfc-kiosk/internal/api"
	"nfc-kiosk/internal/blockfrost"
	"nfc-kiosk/internal/cache"
	"nfc-kiosk/internal/config"
	"nfc-kiosk/internal/db"
	"nfc-kiosk/internal/hub"
	"nfc-kiosk/internal/kafka"
	"nfc-kiosk/internal/kiosk"
	"nfc-kiosk/internal/processors/archiver"
	"nfc-kiosk/internal/processors/scanner"
	"nfc-kiosk/internal/reader"
	"nfc-kiosk/internal/stream"
	"nfc-kiosk/internal/trace"
	"nfc-kiosk/internal/verify"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a config file (yaml, json or toml)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [--config file] [serve|kiosk]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mode := flag.Arg(0)
	switch mode {
	case "", "serve":
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
		err = serve(ctx, cfg)
	case "kiosk":
		// stdout belongs to the display
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
		err = runKiosk(ctx, cfg)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Exiting with error", "mode", mode, "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	slog.InfoContext(ctx, "Starting service...", "addr", cfg.Server.Addr)
	for _, w := range cfg.Warnings() {
		slog.WarnContext(ctx, "Configuration warning", "warning", w)
	}

	h := hub.New()
	apiCfg := api.Config{
		Hub:            h,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}

	chain := blockfrost.New(blockfrost.Config{
		ProjectID: cfg.Blockfrost.ProjectID,
		BaseURL:   cfg.Blockfrost.BaseURL,
	})
	if cfg.Blockfrost.ProjectID != "" {
		apiCfg.Chain = chain
		apiCfg.Tracker = trace.New(chain)
	}

	var store *db.DB
	if cfg.Postgres.URL != "" {
		var err error
		store, err = db.Init(ctx, db.Config{
			ConnString:     cfg.Postgres.URL,
			MigrationsPath: cfg.Postgres.MigrationsPath,
		})
		if err != nil {
			return err
		}
		defer store.Close()
		apiCfg.DB = store
	}

	wg := sync.WaitGroup{}

	var publisher *kafka.Publisher
	brokers := splitList(cfg.Kafka.Brokers)
	if len(brokers) > 0 {
		publisher = kafka.NewPublisher(kafka.PublisherConfig{Brokers: brokers, Topic: cfg.Kafka.Topic})
		defer publisher.Close()
		if store != nil {
			wArchiver := archiver.New(archiver.Config{
				Brokers:         brokers,
				ConsumerGroupID: cfg.Kafka.GroupID,
				ConsumerTopic:   cfg.Kafka.Topic,
				Store:           store,
			})
			wg.Add(1)
			go func() {
				defer wg.Done()
				wArchiver.Run(ctx)
				wArchiver.Close(context.Background())
			}()
		}
	}

	nfc, readerErr := openReader(cfg.Reader)
	if readerErr != nil {
		slog.WarnContext(ctx, "NFC reader not available", "kind", cfg.Reader.Kind, "error", readerErr)
	}
	if nfc != nil {
		readerState, closeState, err := openReaderState(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer closeState()

		scanCfg := scanner.Config{
			ReaderID: cfg.Reader.ID,
			Reader:   nfc,
			Verifier: verify.New(chain),
			Cache:    readerState,
			Hub:      h,
		}
		switch {
		case publisher != nil:
			scanCfg.Sink = publisher
		case store != nil:
			scanCfg.Sink = store
		}
		wScanner := scanner.New(scanCfg)
		apiCfg.Scanner = wScanner
		wg.Add(1)
		go func() {
			defer wg.Done()
			wScanner.Run(ctx)
			wScanner.Close(context.Background())
		}()
		slog.InfoContext(ctx, "NFC reader: OK", "kind", cfg.Reader.Kind, "reader_id", cfg.Reader.ID)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.New(apiCfg).Routes(),
	}
	srvErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "HTTP server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-srvErr:
	}
	slog.InfoContext(ctx, "Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	wg.Wait()
	return err
}

func openReader(cfg config.Reader) (reader.Reader, error) {
	switch cfg.Kind {
	case config.ReaderSerial:
		s, err := reader.OpenSerial(reader.SerialConfig{Port: cfg.Serial.Port, Baud: cfg.Serial.Baud})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.ReaderMQTT:
		m, err := reader.ConnectMQTT(reader.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, nil
}

// openReaderState shares debounce state through Redis when configured so
// several server instances can watch one reader.
func openReaderState(ctx context.Context, cfg config.Redis) (cache.Cache, func(), error) {
	if cfg.Addr == "" {
		return cache.New(), func() {}, nil
	}
	rc, err := cache.NewRedis(ctx, cache.RedisConfig{Addr: cfg.Addr})
	if err != nil {
		return nil, nil, err
	}
	return rc, func() { rc.Close() }, nil
}

func runKiosk(ctx context.Context, cfg config.Config) error {
	slog.InfoContext(ctx, "Starting kiosk...", "url", cfg.Kiosk.URL)

	boundary := kiosk.NewBoundary(kiosk.NewTerminal(os.Stdout), os.Stdout)
	k := kiosk.New(kiosk.Config{View: boundary})
	client := stream.New(stream.Config{
		URL:      cfg.Kiosk.URL,
		Listener: k,
	})
	k.Refresh()
	client.Connect()

	go watchReload(ctx, os.Stdin, func() {
		slog.InfoContext(ctx, "Reload requested")
		boundary.Reload()
		client.Reconnect()
	})

	<-ctx.Done()
	client.Close()
	k.Close()
	return nil
}

// watchReload calls reload for every line read from in.
func watchReload(ctx context.Context, in io.Reader, reload func()) {
	lines := bufio.NewScanner(in)
	for lines.Scan() {
		if ctx.Err() != nil {
			return
		}
		reload()
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
