package mbp

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes rows as JSON messages. Every row carries the same key so
// the whole run lands on one partition in capture order; the row timestamp travels
// in the "ts" header.
type KafkaPublisher struct {
	writer messageWriter
	key    []byte
	log    *zap.Logger
	failed int
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		// rows are produced from the book goroutine; batching happens in the background
		Async: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("publish rows", zap.Int("count", len(messages)), zap.Error(err))
			}
		},
	}
	return newKafkaPublisher(w, topic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		key:    []byte(topic),
		log:    logger.With(zap.String("topic", topic)),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, r Row) error {
	b, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encode row")
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     p.key,
		Value:   b,
		Headers: []kafka.Header{{Key: "ts", Value: strconv.AppendUint(nil, r.Timestamp, 10)}},
	})
	if err != nil {
		p.failed++
		return errors.Wrapf(err, "publish row %d", r.Timestamp)
	}
	return nil
}

// Failed is the number of rows that could not be handed to the writer.
func (p *KafkaPublisher) Failed() int { return p.failed }

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
