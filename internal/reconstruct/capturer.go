package reconstruct

import (
	"mbp-reconstructor/internal/depth"
)

// DefaultDepth is the number of levels per side kept in a snapshot.
const DefaultDepth = 10

// Snapshot is one side's top levels right after a book-mutating action.
type Snapshot struct {
	Timestamp uint64
	Levels    []depth.Level
}

// Capturer records a bid and an ask Snapshot for every book mutation. Both sequences
// always have the same length and share timestamps position by position.
type Capturer struct {
	levels    int
	bids      []Snapshot
	asks      []Snapshot
	observers []func(bid, ask Snapshot)
}

func NewCapturer(levels int) *Capturer {
	if levels <= 0 {
		levels = DefaultDepth
	}
	return &Capturer{levels: levels}
}

// OnCapture registers fn to be called after each capture, on the capturing goroutine.
func (c *Capturer) OnCapture(fn func(bid, ask Snapshot)) {
	c.observers = append(c.observers, fn)
}

func (c *Capturer) Capture(ts uint64, l *depth.Ledger) {
	bid := Snapshot{Timestamp: ts, Levels: l.TopLevels(depth.SideBid, c.levels)}
	ask := Snapshot{Timestamp: ts, Levels: l.TopLevels(depth.SideAsk, c.levels)}
	c.bids = append(c.bids, bid)
	c.asks = append(c.asks, ask)
	for _, fn := range c.observers {
		fn(bid, ask)
	}
}

func (c *Capturer) Depth() int       { return c.levels }
func (c *Capturer) Len() int         { return len(c.bids) }
func (c *Capturer) Bids() []Snapshot { return c.bids }
func (c *Capturer) Asks() []Snapshot { return c.asks }
