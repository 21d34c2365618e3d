// Package notify publishes committed attendance records to an MQTT broker.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/kozaktomas/attendance/internal/config"
	"github.com/kozaktomas/attendance/internal/constants"
	"github.com/kozaktomas/attendance/internal/ledger"
	"github.com/kozaktomas/attendance/internal/metrics"
)

const (
	connectTimeout = 30 * time.Second
	publishTimeout = 10 * time.Second
)

// ErrQueueFull is returned when events arrive faster than they can be published.
var ErrQueueFull = errors.New("notification queue full")

// Publisher sends attendance events to a topic from a background goroutine,
// so a slow broker never stalls the kiosk loop.
type Publisher struct {
	client  mqtt.Client
	topic   string
	queue   chan ledger.Event
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Connect dials the broker from cfg and returns a publisher.
func Connect(cfg config.MQTTConfig, m *metrics.Metrics, logger *slog.Logger) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("MQTT broker is not configured")
	}

	client := mqtt.NewClient(clientOptions(cfg, logger))
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connection timeout (%s)", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection error: %w", err)
	}

	return New(client, cfg.Topic, m, logger), nil
}

func clientOptions(cfg config.MQTTConfig, logger *slog.Logger) *mqtt.ClientOptions {
	if logger == nil {
		logger = slog.Default()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", cfg.Broker, "error", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker)
	})

	return opts
}

// New wraps an existing client.
func New(client mqtt.Client, topic string, m *metrics.Metrics, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:  client,
		topic:   topic,
		queue:   make(chan ledger.Event, constants.EventChannelBuffer),
		metrics: m,
		logger:  logger,
	}
}

// Notify queues an event for publishing. It never blocks.
func (p *Publisher) Notify(ctx context.Context, event ledger.Event) error {
	select {
	case p.queue <- event:
		return nil
	default:
		p.metrics.RecordNotification(false)
		return ErrQueueFull
	}
}

// Run publishes queued events until ctx is canceled, then disconnects.
func (p *Publisher) Run(ctx context.Context) error {
	defer p.client.Disconnect(250)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-p.queue:
			err := p.publish(event)
			p.metrics.RecordNotification(err == nil)
			if err != nil {
				p.logger.Warn("publishing attendance failed", "topic", p.topic, "student_id", event.StudentID, "error", err)
			}
		}
	}
}

func (p *Publisher) publish(event ledger.Event) error {
	if !p.client.IsConnected() {
		return errors.New("not connected to MQTT broker")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	token := p.client.Publish(p.topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

var _ ledger.Notifier = (*Publisher)(nil)
