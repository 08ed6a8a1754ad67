// Package kafka adapts the resolution event stream and match-request
// stream to a Kafka broker.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/linkrx/formident/internal/application/resolution"
	"github.com/linkrx/formident/internal/config"
	"github.com/linkrx/formident/internal/infrastructure/monitoring/logging"
	"github.com/linkrx/formident/pkg/errors"
)

// Producer publishes resolution run events, keyed by run id so that all
// events of one run land in one partition in order.
type Producer struct {
	writer *kafka.Writer
	log    logging.Logger
}

// NewProducer builds a producer for the configured event topic.
func NewProducer(cfg config.KafkaConfig, log logging.Logger) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.EventTopic,
			Balancer:     &kafka.Hash{},
			MaxAttempts:  cfg.ProducerRetries,
			BatchSize:    cfg.BatchSize,
			RequiredAcks: kafka.RequireOne,
		},
		log: log.Named("kafka.producer"),
	}
}

// Publish delivers one run event.  Implements resolution.EventPublisher.
func (p *Producer) Publish(ctx context.Context, ev resolution.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode run event")
	}
	msg := kafka.Message{
		Key:   []byte(ev.RunID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, errors.CodeMessageQueueError, "failed to publish run event").
			WithDetail(string(ev.Type))
	}
	p.log.Debug("run event published",
		logging.String("run_id", ev.RunID), logging.String("type", string(ev.Type)))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		return errors.Wrap(err, errors.CodeMessageQueueError, "failed to close kafka writer")
	}
	return nil
}
