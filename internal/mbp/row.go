package mbp

import (
	"math"

	"mbp-reconstructor/internal/depth"
	"mbp-reconstructor/internal/reconstruct"
)

// Row is one line of MBP output: the book on both sides as of Timestamp.
type Row struct {
	Timestamp uint64
	Bids      []depth.Level
	Asks      []depth.Level
}

// RowFromCapture builds the row produced by a single capture.
func RowFromCapture(bid, ask reconstruct.Snapshot) Row {
	return Row{Timestamp: bid.Timestamp, Bids: bid.Levels, Asks: ask.Levels}
}

// Merge joins the bid and ask snapshot sequences into rows ordered by timestamp. At
// each step the smallest head timestamp is taken and every head carrying it is
// consumed; the side that did not snapshot at that timestamp carries its last known
// levels forward. Both sides start out as zero padding.
func Merge(bids, asks []reconstruct.Snapshot, levels int) []Row {
	rows := make([]Row, 0, max(len(bids), len(asks)))
	curBids := make([]depth.Level, levels)
	curAsks := make([]depth.Level, levels)

	bi, ai := 0, 0
	for bi < len(bids) || ai < len(asks) {
		next := uint64(math.MaxUint64)
		if bi < len(bids) {
			next = min(next, bids[bi].Timestamp)
		}
		if ai < len(asks) {
			next = min(next, asks[ai].Timestamp)
		}

		if bi < len(bids) && bids[bi].Timestamp == next {
			curBids = bids[bi].Levels
			bi++
		}
		if ai < len(asks) && asks[ai].Timestamp == next {
			curAsks = asks[ai].Levels
			ai++
		}
		rows = append(rows, Row{Timestamp: next, Bids: curBids, Asks: curAsks})
	}
	return rows
}
