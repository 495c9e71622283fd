package depth

import "fmt"

// Side is the book side an order rests on.
type Side uint8

const (
	SideNone Side = iota
	SideBid
	SideAsk
)

func (s Side) String() string {
	switch s {
	case SideBid:
		return "BID"
	case SideAsk:
		return "ASK"
	default:
		return "NONE"
	}
}

// Order is a live resting order tracked by the ledger.
type Order struct {
	Side    Side
	Price   float64
	Size    int64
	OrderID uint64
}

// Level is one aggregated price level of an MBP view. The zero Level is the padding
// value used when a side has fewer real levels than the requested depth.
type Level struct {
	Price float64 `json:"price"`
	Size  int64   `json:"size"`
}

func (l Level) IsZero() bool { return l.Price == 0 && l.Size == 0 }

func (l Level) String() string { return fmt.Sprintf("%.2f x %d", l.Price, l.Size) }
