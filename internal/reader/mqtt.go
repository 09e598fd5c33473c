package reader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type MQTTConfig struct {
	Broker      string
	Topic       string
	ClientID    string
	PollTimeout time.Duration
}

// MQTT receives frames published by networked readers.
type MQTT struct {
	client      mqtt.Client
	topic       string
	pollTimeout time.Duration
	cards       chan Card
}

func ConnectMQTT(cfg MQTTConfig) (*MQTT, error) {
	const fn = "MQTT:Connect"
	m := newMQTT(cfg)

	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	// Subscriptions are lost with the session, so subscribe on every (re)connect.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if token := c.Subscribe(m.topic, 1, m.handle); token.Wait() && token.Error() != nil {
			slog.Error("MQTT subscribe failed", "topic", m.topic, "error", token.Error())
			return
		}
		slog.Info("Listening for NFC reads", "topic", m.topic)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("MQTT connection lost", "error", err)
	})

	m.client = mqtt.NewClient(opts)
	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("%s:%w:%w", fn, ErrReadCard, token.Error())
	}
	return m, nil
}

func newMQTT(cfg MQTTConfig) *MQTT {
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	return &MQTT{
		topic:       cfg.Topic,
		pollTimeout: cfg.PollTimeout,
		cards:       make(chan Card, 16),
	}
}

func (m *MQTT) handle(_ mqtt.Client, msg mqtt.Message) {
	card, err := ParseFrame(msg.Payload())
	if err != nil {
		slog.Warn("Ignoring reader message", "topic", msg.Topic(), "error", err)
		return
	}
	select {
	case m.cards <- card:
	default:
		slog.Warn("Reader backlog full, dropping card", "uid", card.UID)
	}
}

func (m *MQTT) ReadCard(ctx context.Context) (Card, error) {
	timer := time.NewTimer(m.pollTimeout)
	defer timer.Stop()
	select {
	case card := <-m.cards:
		return card, nil
	case <-ctx.Done():
		return Card{}, ctx.Err()
	case <-timer.C:
		return Card{}, ErrNoCard
	}
}

func (m *MQTT) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}
