package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mbp-reconstructor/internal/mbo"
)

type fetchResult struct {
	msg kafka.Message
	err error
}

// fakeReader hands out scripted fetch results, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	results   []fetchResult
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.results) > 0 {
		next := r.results[0]
		r.results = r.results[1:]
		r.mu.Unlock()
		return next.msg, next.err
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func actionMsg(offset int64, id uint64) fetchResult {
	return fetchResult{msg: kafka.Message{
		Offset: offset,
		Value:  []byte(fmt.Sprintf(`{"ts":%d,"action":"A","side":"B","price":99.5,"size":10,"order_id":%d}`, offset, id)),
	}}
}

func newTestKafkaFeed(r *fakeReader, commit bool) *KafkaFeed {
	f := newKafkaFeed(r, commit, zap.NewNop())
	f.retry = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return f
}

func TestKafkaFeed_Run(t *testing.T) {
	tests := []struct {
		name          string
		results       []fetchResult
		commit        bool
		wantIDs       []uint64
		wantSkipped   int
		wantCommitted []int64
	}{
		{
			name:          "undecodable messages are skipped and still committed",
			results:       []fetchResult{actionMsg(0, 1), {msg: kafka.Message{Offset: 1, Value: []byte("garbage")}}, actionMsg(2, 3)},
			commit:        true,
			wantIDs:       []uint64{1, 3},
			wantSkipped:   1,
			wantCommitted: []int64{0, 1, 2},
		},
		{
			name:    "no commits without a consumer group",
			results: []fetchResult{actionMsg(0, 1), actionMsg(1, 2)},
			wantIDs: []uint64{1, 2},
		},
		{
			name:          "transient fetch errors are retried",
			results:       []fetchResult{{err: errors.New("broker down")}, {err: errors.New("broker down")}, actionMsg(5, 9)},
			commit:        true,
			wantIDs:       []uint64{9},
			wantCommitted: []int64{5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeReader{results: tt.results}
			f := newTestKafkaFeed(r, tt.commit)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			errc := make(chan error, 1)
			go func() { errc <- f.Run(ctx) }()

			var got []uint64
			for len(got) < len(tt.wantIDs) {
				select {
				case a := <-f.Actions():
					assert.Equal(t, mbo.ActionAdd, a.Kind)
					got = append(got, a.OrderID)
				case <-time.After(2 * time.Second):
					t.Fatalf("timed out after %d actions", len(got))
				}
			}
			cancel()
			for range f.Actions() {
			}

			require.NoError(t, <-errc, "cancellation ends the feed cleanly")
			assert.Equal(t, tt.wantIDs, got)
			assert.Equal(t, tt.wantSkipped, f.Skipped())
			assert.Equal(t, tt.wantCommitted, r.committed)
			assert.True(t, r.closed)
		})
	}
}

func TestKafkaFeed_EOFEndsWithError(t *testing.T) {
	r := &fakeReader{results: []fetchResult{{err: io.EOF}}}
	f := newTestKafkaFeed(r, true)

	errc := make(chan error, 1)
	go func() { errc <- f.Run(context.Background()) }()
	for range f.Actions() {
	}

	err := <-errc
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, r.closed)
}

func TestKafkaFeed_CancelledBeforeStart(t *testing.T) {
	f := newTestKafkaFeed(&fakeReader{}, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, f.Run(ctx))
	_, open := <-f.Actions()
	assert.False(t, open)
}
