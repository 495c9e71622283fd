package mbo

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// wireAction is the JSON form used on message buses.
type wireAction struct {
	Timestamp uint64  `json:"ts"`
	Action    string  `json:"action"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Size      int64   `json:"size"`
	OrderID   uint64  `json:"order_id"`
}

func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireAction{
		Timestamp: a.Timestamp,
		Action:    string(a.Tag),
		Side:      string(SideTag(a.Side)),
		Price:     a.Price,
		Size:      a.Size,
		OrderID:   a.OrderID,
	})
}

func (a *Action) UnmarshalJSON(b []byte) error {
	var w wireAction
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if len(w.Action) != 1 || len(w.Side) != 1 {
		return errors.Errorf("action and side tags must be one character, got %q and %q", w.Action, w.Side)
	}
	parsed, err := NewAction(w.Timestamp, w.Action[0], w.Side[0], w.Price, w.Size, w.OrderID)
	if err != nil {
		return errors.Wrap(err, "decode action")
	}
	*a = parsed
	return nil
}
