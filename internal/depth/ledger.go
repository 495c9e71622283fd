package depth

import (
	"fmt"
	"strings"

	"github.com/google/btree"
)

const priceLevelsBTreeDegree = 32

type priceLevel struct {
	price float64
	size  int64
}

// Ledger aggregates live orders into price levels on both sides of one instrument.
//
// Every level held by the ledger has a strictly positive size; a level whose size drops
// to zero or below is removed. There is at most one Order per order id.
//
// A Ledger is not safe for concurrent use.
type Ledger struct {
	bids   *btree.BTreeG[*priceLevel]
	asks   *btree.BTreeG[*priceLevel]
	orders map[uint64]*Order
}

func NewLedger() *Ledger {
	return &Ledger{
		// best bid is highest price first (descending)
		bids: btree.NewG[*priceLevel](priceLevelsBTreeDegree, func(a, b *priceLevel) bool { return a.price > b.price }),
		// best ask is lowest price first (ascending)
		asks:   btree.NewG[*priceLevel](priceLevelsBTreeDegree, func(a, b *priceLevel) bool { return a.price < b.price }),
		orders: make(map[uint64]*Order),
	}
}

func (l *Ledger) levels(side Side) *btree.BTreeG[*priceLevel] {
	switch side {
	case SideBid:
		return l.bids
	case SideAsk:
		return l.asks
	default:
		return nil
	}
}

// AddOrder registers an order and adds its size to the level at price on side.
// Non-positive sizes are ignored. Re-adding a live order id overwrites the record
// without removing the previous contribution from its level.
func (l *Ledger) AddOrder(side Side, price float64, size int64, orderID uint64) {
	if size <= 0 {
		return
	}
	l.orders[orderID] = &Order{Side: side, Price: price, Size: size, OrderID: orderID}

	tree := l.levels(side)
	if tree == nil {
		return
	}
	if lvl, ok := tree.Get(&priceLevel{price: price}); ok {
		lvl.size += size
		return
	}
	tree.ReplaceOrInsert(&priceLevel{price: price, size: size})
}

// CancelOrder removes an order and its remaining size from the book. Unknown ids are
// a no-op; it reports whether an order was removed.
func (l *Ledger) CancelOrder(orderID uint64) bool {
	o, ok := l.orders[orderID]
	if !ok {
		return false
	}
	l.reduceLevel(o.Side, o.Price, o.Size)
	delete(l.orders, orderID)
	return true
}

// ApplyTradeReduction takes reduceBy off a resting order and off the level it rests on.
// The level is located through the order record. The order is removed once it is fully
// consumed. Unknown ids are a no-op; it reports whether an order was found.
func (l *Ledger) ApplyTradeReduction(orderID uint64, reduceBy int64) bool {
	o, ok := l.orders[orderID]
	if !ok {
		return false
	}
	l.reduceLevel(o.Side, o.Price, reduceBy)

	if o.Size <= reduceBy {
		delete(l.orders, orderID)
	} else {
		o.Size -= reduceBy
	}
	return true
}

func (l *Ledger) reduceLevel(side Side, price float64, by int64) {
	tree := l.levels(side)
	if tree == nil {
		return
	}
	lvl, ok := tree.Get(&priceLevel{price: price})
	if !ok {
		return
	}
	lvl.size -= by
	if lvl.size <= 0 {
		tree.Delete(lvl)
	}
}

// TopLevels returns exactly depth levels for side, best price first, padded with zero
// Levels when the side holds fewer than depth levels.
func (l *Ledger) TopLevels(side Side, depth int) []Level {
	if depth <= 0 {
		return []Level{}
	}
	out := make([]Level, 0, depth)
	if tree := l.levels(side); tree != nil {
		tree.Ascend(func(lvl *priceLevel) bool {
			if lvl.size > 0 {
				out = append(out, Level{Price: lvl.price, Size: lvl.size})
			}
			return len(out) < depth
		})
	}
	for len(out) < depth {
		out = append(out, Level{})
	}
	return out
}

// Order returns a copy of the live order registered under orderID.
func (l *Ledger) Order(orderID uint64) (Order, bool) {
	o, ok := l.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

func (l *Ledger) OrderCount() int { return len(l.orders) }

func (l *Ledger) LevelCount(side Side) int {
	if tree := l.levels(side); tree != nil {
		return tree.Len()
	}
	return 0
}

// Clear drops every level and order.
func (l *Ledger) Clear() {
	l.bids.Clear(false)
	l.asks.Clear(false)
	clear(l.orders)
}

// String renders the whole book, best levels first on each side.
func (l *Ledger) String() string {
	var sb strings.Builder
	sb.WriteString("=== ORDER BOOK ===\nBIDS:\n")
	l.bids.Ascend(func(lvl *priceLevel) bool {
		fmt.Fprintf(&sb, "  %.2f : %d\n", lvl.price, lvl.size)
		return true
	})
	sb.WriteString("ASKS:\n")
	l.asks.Ascend(func(lvl *priceLevel) bool {
		fmt.Fprintf(&sb, "  %.2f : %d\n", lvl.price, lvl.size)
		return true
	})
	sb.WriteString("==================\n")
	return sb.String()
}
