package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, "ws://localhost:5000/ws/scan", cfg.Kiosk.URL)
	assert.Equal(t, ReaderNone, cfg.Reader.Kind)
	assert.Equal(t, 115200, cfg.Reader.Serial.Baud)
	assert.Equal(t, "kiosk-scans", cfg.Kafka.Topic)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.ElementsMatch(t, []string{"BLOCKFROST_PROJECT_ID not set", "no NFC reader configured"}, cfg.Warnings())
}

func Test_LoadEnvironment(t *testing.T) {
	t.Setenv("BLOCKFROST_PROJECT_ID", "preprodABC")
	t.Setenv("NEXT_PUBLIC_WS_URL", "ws://kiosk.local:5000/ws/scan")
	t.Setenv("KIOSK_READER_KIND", "serial")
	t.Setenv("KIOSK_READER_SERIAL_PORT", "/dev/ttyACM0")
	t.Setenv("KIOSK_READER_SERIAL_BAUD", "9600")
	t.Setenv("KIOSK_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "preprodABC", cfg.Blockfrost.ProjectID)
	assert.Equal(t, "ws://kiosk.local:5000/ws/scan", cfg.Kiosk.URL)
	assert.Equal(t, ReaderSerial, cfg.Reader.Kind)
	assert.Equal(t, "/dev/ttyACM0", cfg.Reader.Serial.Port)
	assert.Equal(t, 9600, cfg.Reader.Serial.Baud)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Empty(t, cfg.Warnings())
}

func Test_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiosk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":8080"
reader:
  kind: mqtt
  mqtt:
    broker: tcp://mqtt:1883
    topic: readers/+/cards
kafka:
  brokers: kafka:29092
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ReaderMQTT, cfg.Reader.Kind)
	assert.Equal(t, "readers/+/cards", cfg.Reader.MQTT.Topic)
	assert.Equal(t, "kafka:29092", cfg.Kafka.Brokers)
	assert.Equal(t, "kiosk-scans", cfg.Kafka.Topic)
}

func Test_Validate(t *testing.T) {
	cases := []struct {
		name        string
		mutate      func(*Config)
		expectedErr error
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown reader", mutate: func(c *Config) { c.Reader.Kind = "usb" }, expectedErr: ErrInvalidConfig},
		{name: "serial without port", mutate: func(c *Config) {
			c.Reader.Kind = ReaderSerial
			c.Reader.Serial.Port = ""
		}, expectedErr: ErrInvalidConfig},
		{name: "mqtt without topic", mutate: func(c *Config) {
			c.Reader.Kind = ReaderMQTT
			c.Reader.MQTT.Topic = ""
		}, expectedErr: ErrInvalidConfig},
		{name: "kafka without topic", mutate: func(c *Config) {
			c.Kafka.Brokers = "kafka:29092"
			c.Kafka.Topic = ""
		}, expectedErr: ErrInvalidConfig},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(&cfg)
			err = cfg.Validate()
			if tt.expectedErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func Test_LoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
