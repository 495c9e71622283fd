package reconstruct

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"mbp-reconstructor/internal/mbo"
	"mbp-reconstructor/internal/state"
)

const progressEvery = 4096

// Source produces MBO actions in arrival order. Run must close the Actions channel
// before it returns.
type Source interface {
	Run(ctx context.Context) error
	Actions() <-chan mbo.Action
}

// Result is the artifact of one reconstruction run.
type Result struct {
	RunID   string
	Depth   int
	Bids    []Snapshot
	Asks    []Snapshot
	Stats   Stats
	Elapsed time.Duration
	// State is the book and pending legs as left by the last action.
	State *state.State
}

// Reconstructor drives a Source through the correlator, one action at a time.
type Reconstructor struct {
	levels    int
	log       *zap.Logger
	observers []func(bid, ask Snapshot)

	running  atomic.Bool
	progress atomic.Pointer[Stats]
}

func New(levels int, logger *zap.Logger) *Reconstructor {
	if levels <= 0 {
		levels = DefaultDepth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconstructor{levels: levels, log: logger}
}

// OnCapture registers fn with the capturer of every subsequent run.
func (r *Reconstructor) OnCapture(fn func(bid, ask Snapshot)) {
	r.observers = append(r.observers, fn)
}

// Running reports whether a run is in progress.
func (r *Reconstructor) Running() bool { return r.running.Load() }

// Progress returns the stats of the current or last run, refreshed periodically.
func (r *Reconstructor) Progress() Stats {
	if s := r.progress.Load(); s != nil {
		return *s
	}
	return Stats{}
}

func (r *Reconstructor) publish(s Stats) { r.progress.Store(&s) }

// Run consumes src to the end. A source failure fails the whole run and no result is
// returned.
func (r *Reconstructor) Run(ctx context.Context, src Source) (*Result, error) {
	r.running.Store(true)
	defer r.running.Store(false)

	runID := ulid.Make().String()
	log := r.log.With(zap.String("run_id", runID))
	start := time.Now()

	st := state.NewState()
	capturer := NewCapturer(r.levels)
	for _, fn := range r.observers {
		capturer.OnCapture(fn)
	}
	corr := NewCorrelator(capturer, log)
	r.publish(Stats{})

	log.Info("reconstruction starting", zap.Int("depth", r.levels))

	errc := make(chan error, 1)
	go func() { errc <- src.Run(ctx) }()

	n := 0
	for a := range src.Actions() {
		corr.Dispatch(st, a)
		n++
		if n%progressEvery == 0 {
			r.publish(corr.Stats())
		}
	}
	stats := corr.Stats()
	r.publish(stats)

	if err := <-errc; err != nil {
		log.Error("reconstruction aborted", zap.Error(err), zap.Int("actions", n))
		return nil, errors.Wrap(err, "read actions")
	}

	elapsed := time.Since(start)
	log.Info("reconstruction completed",
		zap.Int64("elapsed_us", elapsed.Microseconds()),
		zap.Int("snapshots", capturer.Len()),
		zap.Int("actions", stats.Actions),
		zap.Int("unrecognized", stats.Unrecognized),
		zap.Int("unmatched", stats.Unmatched),
		zap.Int("pending_trades", st.PendingCount()),
	)

	return &Result{
		RunID:   runID,
		Depth:   capturer.Depth(),
		Bids:    capturer.Bids(),
		Asks:    capturer.Asks(),
		Stats:   stats,
		Elapsed: elapsed,
		State:   st,
	}, nil
}
