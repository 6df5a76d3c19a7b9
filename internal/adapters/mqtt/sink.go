// Package mqtt publishes interval reports to an MQTT broker.
package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/bft-labs/asdustat/internal/ports"
	"github.com/bft-labs/asdustat/internal/report"
)

// Sink defaults.
const (
	DefaultTopic          = "asdustat/report"
	DefaultConnectTimeout = 5 * time.Second
	DefaultPublishTimeout = 2 * time.Second

	disconnectGraceMS = 250
)

// Config configures the broker connection.
type Config struct {
	// Broker is host:port or a full URL such as tcp://host:1883.
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
	Format   report.Format

	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// Client is the subset of paho's client the sink uses.
type Client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Sink implements ports.ReportSink over MQTT.
type Sink struct {
	cfg    Config
	client Client
	logger ports.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

// Dial creates a paho client with auto-reconnect and connects to the broker.
func Dial(cfg Config, logger ports.Logger) (*Sink, error) {
	cfg = withDefaults(cfg)
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker))
	if cfg.ClientID != "" {
		opts.SetClientID(cfg.ClientID)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(paho.Client) {
		logger.Info("mqtt connection established", ports.String("broker", cfg.Broker))
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", ports.String("broker", cfg.Broker), ports.Err(err))
	}

	return Connect(cfg, paho.NewClient(opts), logger)
}

// Connect attaches the sink to client and waits for the connection.
func Connect(cfg Config, client Client, logger ports.Logger) (*Sink, error) {
	cfg = withDefaults(cfg)
	logger.Info("connecting to mqtt broker", ports.String("broker", cfg.Broker), ports.String("topic", cfg.Topic))

	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connection timeout after %s", cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	return &Sink{cfg: cfg, client: client, logger: logger}, nil
}

// Name identifies the sink.
func (s *Sink) Name() string { return "mqtt" }

// Publish encodes r and publishes it to the configured topic.
func (s *Sink) Publish(ctx context.Context, r *report.Report) error {
	if !s.client.IsConnected() {
		s.failed.Add(1)
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := report.Encode(s.cfg.Format, r)
	if err != nil {
		s.failed.Add(1)
		return err
	}

	timeout := s.cfg.PublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	token := s.client.Publish(s.cfg.Topic, s.cfg.QoS, false, payload)
	if !token.WaitTimeout(timeout) {
		s.failed.Add(1)
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		s.failed.Add(1)
		return fmt.Errorf("publish failed: %w", err)
	}

	s.published.Add(1)
	s.logger.Debug("report published",
		ports.String("topic", s.cfg.Topic),
		ports.Int("size", len(payload)),
	)
	return nil
}

// Published returns the number of successful publishes.
func (s *Sink) Published() uint64 { return s.published.Load() }

// Failed returns the number of failed publishes.
func (s *Sink) Failed() uint64 { return s.failed.Load() }

// Close disconnects from the broker.
func (s *Sink) Close() error {
	if s.client.IsConnected() {
		s.client.Disconnect(disconnectGraceMS)
		s.logger.Info("mqtt disconnected")
	}
	return nil
}

func withDefaults(cfg Config) Config {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Format == "" {
		cfg.Format = report.FormatJSON
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	return cfg
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

var _ ports.ReportSink = (*Sink)(nil)
