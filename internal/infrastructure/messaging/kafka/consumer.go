package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/linkrx/formident/internal/config"
	"github.com/linkrx/formident/internal/domain/matching"
	"github.com/linkrx/formident/internal/infrastructure/monitoring/logging"
	"github.com/linkrx/formident/pkg/errors"
)

// RecordHandler processes one match-request record from the stream.
type RecordHandler func(ctx context.Context, rec matching.Record) error

// Consumer reads JSON-encoded match requests from the record topic and
// hands them to a handler.  A message that fails to decode is logged and
// committed; a handler error stops the loop so the message is redelivered.
type Consumer struct {
	reader *kafka.Reader
	log    logging.Logger
}

// NewConsumer builds a group consumer for the configured record topic.
func NewConsumer(cfg config.KafkaConfig, log logging.Logger) *Consumer {
	offset := kafka.LastOffset
	if cfg.AutoOffsetReset == "earliest" {
		offset = kafka.FirstOffset
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			Topic:       cfg.RecordTopic,
			StartOffset: offset,
		}),
		log: log.Named("kafka.consumer"),
	}
}

// Run consumes until ctx is canceled, which returns nil.
func (c *Consumer) Run(ctx context.Context, handler RecordHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, errors.CodeMessageQueueError, "failed to fetch message")
		}

		var rec matching.Record
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			c.log.Warn("skipping undecodable match request",
				logging.Int64("offset", msg.Offset), logging.Err(err))
		} else if err := handler(ctx, rec); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, errors.CodeMessageQueueError, "failed to commit offset")
		}
	}
}

// Close releases the reader's group membership.
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return errors.Wrap(err, errors.CodeMessageQueueError, "failed to close kafka reader")
	}
	return nil
}
