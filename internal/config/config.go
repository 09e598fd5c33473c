package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	ReaderNone   = "none"
	ReaderSerial = "serial"
	ReaderMQTT   = "mqtt"
)

type Config struct {
	LogLevel string `mapstructure:"log_level"`

	Server     Server     `mapstructure:"server"`
	Kiosk      Kiosk      `mapstructure:"kiosk"`
	Blockfrost Blockfrost `mapstructure:"blockfrost"`
	Reader     Reader     `mapstructure:"reader"`
	Postgres   Postgres   `mapstructure:"postgres"`
	Kafka      Kafka      `mapstructure:"kafka"`
	Redis      Redis      `mapstructure:"redis"`
}

type Server struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type Kiosk struct {
	URL string `mapstructure:"url"`
}

type Blockfrost struct {
	ProjectID string `mapstructure:"project_id"`
	// BaseURL overrides the network picked from the project ID, version
	// path included (.../api/v0).
	BaseURL string `mapstructure:"base_url"`
}

type Reader struct {
	ID     string       `mapstructure:"id"`
	Kind   string       `mapstructure:"kind"`
	Serial SerialReader `mapstructure:"serial"`
	MQTT   MQTTReader   `mapstructure:"mqtt"`
}

type SerialReader struct {
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

type MQTTReader struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
}

type Postgres struct {
	URL            string `mapstructure:"url"`
	MigrationsPath string `mapstructure:"migrations"`
}

type Kafka struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

type Redis struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("kiosk.url", "ws://localhost:5000/ws/scan")
	v.SetDefault("blockfrost.project_id", "")
	v.SetDefault("blockfrost.base_url", "")
	v.SetDefault("reader.id", "reader-1")
	v.SetDefault("reader.kind", ReaderNone)
	v.SetDefault("reader.serial.port", "/dev/ttyUSB0")
	v.SetDefault("reader.serial.baud", 115200)
	v.SetDefault("reader.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("reader.mqtt.topic", "nfc/reads")
	v.SetDefault("reader.mqtt.client_id", "nfc-kiosk")
	v.SetDefault("postgres.url", "")
	v.SetDefault("postgres.migrations", "internal/db/migrations")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "kiosk-scans")
	v.SetDefault("kafka.group_id", "kiosk-archiver")
	v.SetDefault("redis.addr", "")
}

// Load reads defaults, an optional config file and the environment, in
// increasing order of precedence. Environment keys use the KIOSK_ prefix with
// underscores for dots, e.g. KIOSK_READER_KIND.
func Load(path string) (Config, error) {
	const fn = "Config:Load"
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("KIOSK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("blockfrost.project_id", "KIOSK_BLOCKFROST_PROJECT_ID", "BLOCKFROST_PROJECT_ID")
	v.BindEnv("kiosk.url", "KIOSK_KIOSK_URL", "KIOSK_WS_URL", "NEXT_PUBLIC_WS_URL")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%s:%w:%w", fn, ErrInvalidConfig, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%s:%w:%w", fn, ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s:%w", fn, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Reader.Kind {
	case ReaderNone, ReaderSerial, ReaderMQTT:
	default:
		return fmt.Errorf("%w: unknown reader kind %q", ErrInvalidConfig, c.Reader.Kind)
	}
	if c.Reader.Kind == ReaderSerial && c.Reader.Serial.Port == "" {
		return fmt.Errorf("%w: reader.serial.port is required", ErrInvalidConfig)
	}
	if c.Reader.Kind == ReaderMQTT && (c.Reader.MQTT.Broker == "" || c.Reader.MQTT.Topic == "") {
		return fmt.Errorf("%w: reader.mqtt.broker and reader.mqtt.topic are required", ErrInvalidConfig)
	}
	if c.Kafka.Brokers != "" && c.Kafka.Topic == "" {
		return fmt.Errorf("%w: kafka.topic is required with kafka.brokers", ErrInvalidConfig)
	}
	return nil
}

// Warnings lists settings that leave the server degraded but runnable.
func (c Config) Warnings() []string {
	var out []string
	if c.Blockfrost.ProjectID == "" {
		out = append(out, "BLOCKFROST_PROJECT_ID not set")
	}
	if c.Reader.Kind == ReaderNone {
		out = append(out, "no NFC reader configured")
	}
	return out
}

func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
