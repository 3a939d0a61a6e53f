// Package broker publishes generated records to Kafka, one topic per
// entity kind, keyed by entity id so downstream consumers get per-entity
// ordering. Publishing is best-effort; a broker outage never stalls a
// stream.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/example/clickstream/datagen/internal/model"
)

// Producer fans generated records out to per-entity Kafka topics.
type Producer struct {
	writers map[model.EntityKind]*kafka.Writer
	log     *zap.Logger
}

// Options configures a Producer.
type Options struct {
	// Brokers lists bootstrap broker addresses.
	Brokers []string

	// TopicPrefix is prepended to the per-entity topic names, joined with
	// a dot.
	TopicPrefix string

	// BatchTimeout bounds how long writes are batched before flushing.
	BatchTimeout time.Duration

	// Logger receives publish failure logs. Default: no-op.
	Logger *zap.Logger
}

// Topic returns the topic name for an entity kind under the given prefix.
func Topic(prefix string, kind model.EntityKind) string {
	if prefix == "" {
		return string(kind)
	}
	return fmt.Sprintf("%s.%s", prefix, kind)
}

// NewProducer creates a producer with one writer per entity kind.
func NewProducer(opts Options) *Producer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	batchTimeout := opts.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = time.Second
	}

	writers := make(map[model.EntityKind]*kafka.Writer)
	for _, kind := range model.EntityKinds() {
		writers[kind] = &kafka.Writer{
			Addr:         kafka.TCP(opts.Brokers...),
			Topic:        Topic(opts.TopicPrefix, kind),
			Balancer:     &kafka.Hash{},
			BatchTimeout: batchTimeout,
			Async:        true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					logger.Warn("kafka publish failed",
						zap.Int("messages", len(messages)),
						zap.Error(err),
					)
				}
			},
		}
	}

	return &Producer{writers: writers, log: logger}
}

// Publish enqueues one serialized record on the kind's topic, keyed by the
// entity id. Async writers make this non-blocking; failures surface through
// the completion callback as log lines only.
func (p *Producer) Publish(ctx context.Context, kind model.EntityKind, key string, value []byte) {
	w, ok := p.writers[kind]
	if !ok {
		return
	}
	err := w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		p.log.Warn("kafka enqueue failed",
			zap.String("topic", w.Topic),
			zap.Error(err),
		)
	}
}

// Close flushes and closes all writers.
func (p *Producer) Close() error {
	var first error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
