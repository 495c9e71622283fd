package feed

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"mbp-reconstructor/internal/config"
	"mbp-reconstructor/internal/mbo"
)

var (
	ErrNoInput       = errors.New("no input path")
	ErrUnknownSource = errors.New("unknown action source")
)

// ActionFeed produces MBO actions in arrival order. Run blocks until the feed is
// exhausted, fails or ctx is cancelled, and closes Actions before returning.
type ActionFeed interface {
	Run(ctx context.Context) error
	Actions() <-chan mbo.Action
	// Skipped is the number of malformed records dropped so far.
	Skipped() int
}

// Open builds the feed named by cfg.Source.
func Open(cfg config.Config, logger *zap.Logger) (ActionFeed, error) {
	switch cfg.Source {
	case config.SourceCSV:
		if cfg.InputPath == "" {
			return nil, ErrNoInput
		}
		return NewCSVFeed(cfg.InputPath, logger), nil
	case config.SourceKafka:
		return NewKafkaFeed(KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.ActionsTopic,
			GroupID: cfg.Kafka.GroupID,
		}, logger), nil
	}
	return nil, errors.Wrap(ErrUnknownSource, cfg.Source)
}

// ---------- In-memory feed (tests, embedding) ----------

type SliceFeed struct {
	actions []mbo.Action
	out     chan mbo.Action
	err     error
}

func NewSliceFeed(actions ...mbo.Action) *SliceFeed {
	return &SliceFeed{actions: actions, out: make(chan mbo.Action, 64)}
}

// FailWith makes Run return err after every action has been emitted.
func (f *SliceFeed) FailWith(err error) *SliceFeed {
	f.err = err
	return f
}

func (f *SliceFeed) Run(ctx context.Context) error {
	defer close(f.out)
	for _, a := range f.actions {
		select {
		case f.out <- a:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *SliceFeed) Actions() <-chan mbo.Action { return f.out }
func (f *SliceFeed) Skipped() int               { return 0 }
