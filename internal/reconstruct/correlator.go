package reconstruct

import (
	"go.uber.org/zap"

	"mbp-reconstructor/internal/depth"
	"mbp-reconstructor/internal/mbo"
	"mbp-reconstructor/internal/state"
)

// Outcome says what Dispatch did with an action.
type Outcome uint8

const (
	// OutcomeIgnored: reset markers, no book change.
	OutcomeIgnored Outcome = iota
	OutcomeAdded
	OutcomeCancelled
	// OutcomeTradeApplied: a cancel finalized buffered trade and fill legs.
	OutcomeTradeApplied
	// OutcomeBuffered: a trade or fill leg was stored for later.
	OutcomeBuffered
	// OutcomeDropped: a trade leg without a resolved side.
	OutcomeDropped
	OutcomeUnrecognized
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeAdded:
		return "added"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeTradeApplied:
		return "trade_applied"
	case OutcomeBuffered:
		return "buffered"
	case OutcomeDropped:
		return "dropped"
	case OutcomeUnrecognized:
		return "unrecognized"
	default:
		return "invalid"
	}
}

// Snapshotted reports whether the outcome mutated the book and produced a snapshot.
func (o Outcome) Snapshotted() bool {
	return o == OutcomeAdded || o == OutcomeCancelled || o == OutcomeTradeApplied
}

// Stats counts dispatch outcomes over a run.
type Stats struct {
	Actions      int `json:"actions"`
	Ignored      int `json:"ignored"`
	Added        int `json:"added"`
	Cancelled    int `json:"cancelled"`
	TradeApplied int `json:"tradeApplied"`
	Buffered     int `json:"buffered"`
	Dropped      int `json:"dropped"`
	Unrecognized int `json:"unrecognized"`
	// Unmatched counts cancels and trade reductions that named an unknown order.
	Unmatched int `json:"unmatched"`
	Snapshots int `json:"snapshots"`
}

func (s *Stats) record(o Outcome) {
	s.Actions++
	switch o {
	case OutcomeIgnored:
		s.Ignored++
	case OutcomeAdded:
		s.Added++
	case OutcomeCancelled:
		s.Cancelled++
	case OutcomeTradeApplied:
		s.TradeApplied++
	case OutcomeBuffered:
		s.Buffered++
	case OutcomeDropped:
		s.Dropped++
	case OutcomeUnrecognized:
		s.Unrecognized++
	}
	if o.Snapshotted() {
		s.Snapshots++
	}
}

// Correlator routes MBO actions to the ledger. Trade and fill legs are held per order
// id until the cancel that finalizes them, which then applies a single size reduction.
type Correlator struct {
	capturer *Capturer
	log      *zap.Logger
	stats    Stats
}

func NewCorrelator(capturer *Capturer, logger *zap.Logger) *Correlator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Correlator{capturer: capturer, log: logger}
}

// Dispatch applies one action to st. It never fails: unknown tags and references to
// unknown orders are logged and absorbed.
func (c *Correlator) Dispatch(st *state.State, a mbo.Action) Outcome {
	out := c.dispatch(st, a)
	c.stats.record(out)
	if out.Snapshotted() {
		c.capturer.Capture(a.Timestamp, st.Ledger)
	}
	return out
}

func (c *Correlator) dispatch(st *state.State, a mbo.Action) Outcome {
	switch a.Kind {
	case mbo.ActionReset:
		return OutcomeIgnored

	case mbo.ActionAdd:
		st.Ledger.AddOrder(a.Side, a.Price, a.Size, a.OrderID)
		return OutcomeAdded

	case mbo.ActionCancel:
		if p, ok := st.Pending(a.OrderID); ok && p.Complete() {
			c.finalizeTrade(st, p, a)
			st.Resolve(a.OrderID)
			return OutcomeTradeApplied
		}
		if !st.Ledger.CancelOrder(a.OrderID) {
			c.stats.Unmatched++
		}
		return OutcomeCancelled

	case mbo.ActionTrade:
		if a.Side == depth.SideNone {
			return OutcomeDropped
		}
		st.BufferTrade(a)
		return OutcomeBuffered

	case mbo.ActionFill:
		st.BufferFill(a)
		return OutcomeBuffered

	case mbo.ActionUnknown:
		c.log.Warn("unknown action",
			zap.String("tag", string(a.Tag)),
			zap.Uint64("ts", a.Timestamp),
			zap.Uint64("order_id", a.OrderID),
		)
		return OutcomeUnrecognized
	}

	c.log.Warn("unknown action kind", zap.Uint8("kind", uint8(a.Kind)))
	return OutcomeUnrecognized
}

// finalizeTrade reduces the resting order by the buffered trade leg's size. The fill
// leg's size is not used.
func (c *Correlator) finalizeTrade(st *state.State, p *state.PendingTrade, cancel mbo.Action) {
	o, ok := st.Ledger.Order(cancel.OrderID)
	if !ok {
		c.stats.Unmatched++
		return
	}
	if o.Side != cancel.Side {
		c.log.Debug("cancel side differs from resting order",
			zap.Uint64("order_id", cancel.OrderID),
			zap.Stringer("cancel_side", cancel.Side),
			zap.Stringer("order_side", o.Side),
		)
	}
	st.Ledger.ApplyTradeReduction(cancel.OrderID, p.Trade.Size)
}

// Stats returns the outcome counters so far.
func (c *Correlator) Stats() Stats { return c.stats }
