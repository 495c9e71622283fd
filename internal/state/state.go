package state

import (
	"mbp-reconstructor/internal/depth"
	"mbp-reconstructor/internal/mbo"
)

// PendingTrade buffers the trade and fill legs seen for one order id until the
// cancel that finalizes them arrives.
type PendingTrade struct {
	Trade    mbo.Action
	Fill     mbo.Action
	HasTrade bool
	HasFill  bool
}

// Complete reports whether both legs have been buffered.
func (p *PendingTrade) Complete() bool { return p.HasTrade && p.HasFill }

// State is all mutable state of one reconstruction run: the price-level ledger and
// the pending trade legs keyed by order id. It has a single owner and no locking.
type State struct {
	Ledger *depth.Ledger

	pending map[uint64]*PendingTrade
}

func NewState() *State {
	return &State{
		Ledger:  depth.NewLedger(),
		pending: make(map[uint64]*PendingTrade),
	}
}

func (s *State) entry(orderID uint64) *PendingTrade {
	p, ok := s.pending[orderID]
	if !ok {
		p = &PendingTrade{}
		s.pending[orderID] = p
	}
	return p
}

// BufferTrade stores a as the trade leg for its order id, replacing any earlier one.
func (s *State) BufferTrade(a mbo.Action) {
	p := s.entry(a.OrderID)
	p.Trade = a
	p.HasTrade = true
}

// BufferFill stores a as the fill leg for its order id, replacing any earlier one.
func (s *State) BufferFill(a mbo.Action) {
	p := s.entry(a.OrderID)
	p.Fill = a
	p.HasFill = true
}

func (s *State) Pending(orderID uint64) (*PendingTrade, bool) {
	p, ok := s.pending[orderID]
	return p, ok
}

// Resolve drops the pending entry for orderID.
func (s *State) Resolve(orderID uint64) {
	delete(s.pending, orderID)
}

func (s *State) PendingCount() int { return len(s.pending) }
