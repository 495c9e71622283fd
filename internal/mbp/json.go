package mbp

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"mbp-reconstructor/internal/depth"
)

type jsonLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  int64           `json:"size"`
}

type jsonRow struct {
	Timestamp uint64      `json:"ts"`
	Bids      []jsonLevel `json:"bids"`
	Asks      []jsonLevel `json:"asks"`
}

func toJSONLevels(levels []depth.Level) []jsonLevel {
	out := make([]jsonLevel, len(levels))
	for i, lvl := range levels {
		out[i] = jsonLevel{Price: decimal.NewFromFloat(lvl.Price).Round(2), Size: lvl.Size}
	}
	return out
}

func fromJSONLevels(levels []jsonLevel) []depth.Level {
	out := make([]depth.Level, len(levels))
	for i, lvl := range levels {
		out[i] = depth.Level{Price: lvl.Price.InexactFloat64(), Size: lvl.Size}
	}
	return out
}

// MarshalJSON encodes prices as decimal strings rounded to cents.
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonRow{
		Timestamp: r.Timestamp,
		Bids:      toJSONLevels(r.Bids),
		Asks:      toJSONLevels(r.Asks),
	})
}

func (r *Row) UnmarshalJSON(b []byte) error {
	var j jsonRow
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*r = Row{Timestamp: j.Timestamp, Bids: fromJSONLevels(j.Bids), Asks: fromJSONLevels(j.Asks)}
	return nil
}
