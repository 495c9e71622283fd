package feed

import (
	"context"
	"encoding/json"
	"io"
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"mbp-reconstructor/internal/mbo"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// messageReader is the part of *kafka.Reader the feed uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaFeed consumes JSON encoded actions from a topic. A single partition keeps
// arrival order. With a group id, messages are committed once handed to the consumer
// of Actions.
type KafkaFeed struct {
	reader  messageReader
	commit  bool
	retry   func() backoff.BackOff
	log     *zap.Logger
	out     chan mbo.Action
	skipped atomic.Int64
}

func NewKafkaFeed(cfg KafkaConfig, logger *zap.Logger) *KafkaFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return newKafkaFeed(reader, cfg.GroupID != "", logger.With(zap.String("topic", cfg.Topic)))
}

func newKafkaFeed(reader messageReader, commit bool, logger *zap.Logger) *KafkaFeed {
	return &KafkaFeed{
		reader: reader,
		commit: commit,
		retry:  func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		log:    logger,
		out:    make(chan mbo.Action, 1024),
	}
}

func (f *KafkaFeed) Actions() <-chan mbo.Action { return f.out }
func (f *KafkaFeed) Skipped() int               { return int(f.skipped.Load()) }

// Run consumes until ctx is cancelled, which ends the feed without error.
func (f *KafkaFeed) Run(ctx context.Context) error {
	defer close(f.out)
	defer f.reader.Close()

	policy := backoff.WithContext(f.retry(), ctx)
	for {
		var msg kafka.Message
		err := backoff.Retry(func() error {
			m, err := f.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					return backoff.Permanent(err)
				}
				f.log.Warn("fetch message", zap.Error(err))
				return err
			}
			msg = m
			return nil
		}, policy)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "fetch message")
		}

		a, err := DecodeMessage(msg.Value)
		if err != nil {
			f.skipped.Add(1)
			f.log.Warn("skipping undecodable message",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		} else {
			select {
			case f.out <- a:
			case <-ctx.Done():
				return nil
			}
		}

		if !f.commit {
			continue
		}
		if err := f.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			f.log.Warn("commit message", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// DecodeMessage decodes the JSON form of an action.
func DecodeMessage(b []byte) (mbo.Action, error) {
	var a mbo.Action
	if err := json.Unmarshal(b, &a); err != nil {
		return mbo.Action{}, errors.Wrap(err, "decode message")
	}
	return a, nil
}
