package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/logging"
	"github.com/clinlink/clinlink/pkg/errors"
)

// ProducerConfig holds writer configuration.
type ProducerConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`
}

// writer abstracts kafka.Writer for testing.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes event envelopes.  Messages are keyed so that all events
// for a record land on the same partition and keep their relative order.
type Producer struct {
	w      writer
	logger logging.Logger
	mu     sync.Mutex
	closed bool
}

// NewProducer constructs a Producer over a real kafka writer.
func NewProducer(cfg ProducerConfig, logger logging.Logger) *Producer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
	}
	return &Producer{w: w, logger: logger}
}

// NewProducerWithWriter wires a Producer over an existing writer.
func NewProducerWithWriter(w writer, logger logging.Logger) *Producer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Producer{w: w, logger: logger}
}

// Publish sends one envelope to the topic, keyed by the given partition key.
func (p *Producer) Publish(ctx context.Context, topic, key string, env *EventEnvelope) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New(errors.ErrCodeInternal, "producer is closed")
	}
	p.mu.Unlock()

	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cannot encode event envelope")
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "cannot publish event").
			WithDetail("topic: " + topic)
	}

	p.logger.Debug("event published",
		logging.String("topic", topic),
		logging.String("event_type", env.EventType),
		logging.String("event_id", env.EventID))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.w.Close()
}
