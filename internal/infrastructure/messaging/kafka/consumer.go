package kafka

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/logging"
	"github.com/clinlink/clinlink/pkg/errors"
)

// ConsumerConfig holds reader configuration.
type ConsumerConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	GroupID        string        `mapstructure:"group_id"`
	Topic          string        `mapstructure:"topic"`
	MinBytes       int           `mapstructure:"min_bytes"`
	MaxBytes       int           `mapstructure:"max_bytes"`
	CommitInterval time.Duration `mapstructure:"commit_interval"`
}

// reader abstracts kafka.Reader for testing.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one decoded envelope.  Returning an error stops the run
// with the message uncommitted, so the consumer group resumes from it.
// Handlers must absorb permanent per-message failures themselves and return
// nil, or the message blocks the partition.
type Handler func(ctx context.Context, env *EventEnvelope) error

// Consumer runs a fetch/handle/commit loop over one topic.
type Consumer struct {
	r      reader
	logger logging.Logger
}

// NewConsumer constructs a Consumer over a real kafka reader.
func NewConsumer(cfg ConsumerConfig, logger logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	maxBytes := cfg.MaxBytes
	if maxBytes == 0 {
		maxBytes = 10 << 20
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       cfg.MinBytes,
		MaxBytes:       maxBytes,
		CommitInterval: cfg.CommitInterval,
	})
	return &Consumer{r: r, logger: logger}
}

// NewConsumerWithReader wires a Consumer over an existing reader.
func NewConsumerWithReader(r reader, logger logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Consumer{r: r, logger: logger}
}

// Run fetches messages and passes them to the handler until the context is
// canceled or the reader is closed.  Undecodable messages are committed and
// skipped; they would poison the partition otherwise.  A handler failure
// stops the run with the offset uncommitted: committing any later offset
// would advance the consumer group past the failed message, so continuing
// would silently drop it.  The restarted consumer resumes from the failure.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if stderrors.Is(err, context.Canceled) || stderrors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, errors.ErrCodeExternalService, "cannot fetch message")
		}

		env, err := DecodeEnvelope(msg.Value)
		if err != nil {
			c.logger.Warn("skipping undecodable message",
				logging.String("topic", msg.Topic),
				logging.Int64("offset", msg.Offset),
				logging.Err(err))
			if err := c.r.CommitMessages(ctx, msg); err != nil {
				return errors.Wrap(err, errors.ErrCodeExternalService, "cannot commit message")
			}
			continue
		}

		if err := handle(ctx, env); err != nil {
			c.logger.Error("event handling failed; stopping with offset uncommitted",
				logging.String("topic", msg.Topic),
				logging.Int64("offset", msg.Offset),
				logging.String("event_id", env.EventID),
				logging.Err(err))
			return err
		}

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, "cannot commit message")
		}
	}
}

// Close closes the underlying reader, which also unblocks Run.
func (c *Consumer) Close() error {
	return c.r.Close()
}

type registration struct {
	eventType string
	h         Handler
}

// Dispatcher routes envelopes to handlers by event type.
type Dispatcher struct {
	routes []registration
	logger logging.Logger
}

// NewDispatcher constructs an empty Dispatcher.
func NewDispatcher(logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Dispatcher{logger: logger}
}

// On registers a handler for an event type.
func (d *Dispatcher) On(eventType string, h Handler) *Dispatcher {
	d.routes = append(d.routes, registration{eventType: eventType, h: h})
	return d
}

// Handle routes one envelope.  Unrouted event types are logged and dropped.
func (d *Dispatcher) Handle(ctx context.Context, env *EventEnvelope) error {
	for _, r := range d.routes {
		if r.eventType == env.EventType {
			return r.h(ctx, env)
		}
	}
	d.logger.Warn("no handler for event type",
		logging.String("event_type", env.EventType))
	return nil
}
