package mbo

import (
	"fmt"

	"github.com/pkg/errors"

	"mbp-reconstructor/internal/depth"
)

// ActionKind is the closed set of MBO actions understood by the reconstructor.
type ActionKind uint8

const (
	ActionUnknown ActionKind = iota
	ActionReset
	ActionAdd
	ActionTrade
	ActionFill
	ActionCancel
)

func (k ActionKind) String() string {
	switch k {
	case ActionReset:
		return "reset"
	case ActionAdd:
		return "add"
	case ActionTrade:
		return "trade"
	case ActionFill:
		return "fill"
	case ActionCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// ParseActionTag maps a feed action tag (R, A, T, F, C) to its kind. Any other tag
// yields ActionUnknown.
func ParseActionTag(tag byte) ActionKind {
	switch tag {
	case 'R':
		return ActionReset
	case 'A':
		return ActionAdd
	case 'T':
		return ActionTrade
	case 'F':
		return ActionFill
	case 'C':
		return ActionCancel
	default:
		return ActionUnknown
	}
}

// ParseSideTag maps a feed side tag (B, A, N) to a book side.
func ParseSideTag(tag byte) (depth.Side, error) {
	switch tag {
	case 'B':
		return depth.SideBid, nil
	case 'A':
		return depth.SideAsk, nil
	case 'N':
		return depth.SideNone, nil
	default:
		return depth.SideNone, errors.Errorf("unknown side tag %q", tag)
	}
}

// SideTag is the inverse of ParseSideTag.
func SideTag(s depth.Side) byte {
	switch s {
	case depth.SideBid:
		return 'B'
	case depth.SideAsk:
		return 'A'
	default:
		return 'N'
	}
}

// Action is one market-by-order event.
type Action struct {
	Timestamp uint64
	Kind      ActionKind
	// Tag is the action tag as it appeared in the source feed.
	Tag     byte
	Side    depth.Side
	Price   float64
	Size    int64
	OrderID uint64
}

// NewAction builds an Action from its feed tags. Unknown action tags are kept as
// ActionUnknown so the dispatcher can report them.
func NewAction(ts uint64, actionTag, sideTag byte, price float64, size int64, orderID uint64) (Action, error) {
	side, err := ParseSideTag(sideTag)
	if err != nil {
		return Action{}, err
	}
	return Action{
		Timestamp: ts,
		Kind:      ParseActionTag(actionTag),
		Tag:       actionTag,
		Side:      side,
		Price:     price,
		Size:      size,
		OrderID:   orderID,
	}, nil
}

func (a Action) String() string {
	return fmt.Sprintf("%d %c %c %.2f %d %d", a.Timestamp, a.Tag, SideTag(a.Side), a.Price, a.Size, a.OrderID)
}
