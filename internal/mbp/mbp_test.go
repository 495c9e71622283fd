package mbp

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mbp-reconstructor/internal/depth"
	"mbp-reconstructor/internal/reconstruct"
)

func snap(ts uint64, levels ...depth.Level) reconstruct.Snapshot {
	padded := make([]depth.Level, 2)
	copy(padded, levels)
	return reconstruct.Snapshot{Timestamp: ts, Levels: padded}
}

func TestMerge(t *testing.T) {
	t.Run("aligned sequences give one row per capture", func(t *testing.T) {
		bids := []reconstruct.Snapshot{snap(1, depth.Level{Price: 99.5, Size: 100}), snap(2, depth.Level{Price: 99.5, Size: 100})}
		asks := []reconstruct.Snapshot{snap(1), snap(2, depth.Level{Price: 100.5, Size: 200})}

		rows := Merge(bids, asks, 2)
		require.Len(t, rows, 2)
		assert.Equal(t, uint64(1), rows[0].Timestamp)
		assert.Equal(t, depth.Level{Price: 99.5, Size: 100}, rows[0].Bids[0])
		assert.True(t, rows[0].Asks[0].IsZero())
		assert.Equal(t, depth.Level{Price: 100.5, Size: 200}, rows[1].Asks[0])
	})

	t.Run("one-sided timestamps carry the other side forward", func(t *testing.T) {
		bids := []reconstruct.Snapshot{snap(1, depth.Level{Price: 10, Size: 1}), snap(3, depth.Level{Price: 11, Size: 1})}
		asks := []reconstruct.Snapshot{snap(2, depth.Level{Price: 12, Size: 5})}

		rows := Merge(bids, asks, 2)
		require.Len(t, rows, 3)
		assert.Equal(t, []uint64{1, 2, 3}, []uint64{rows[0].Timestamp, rows[1].Timestamp, rows[2].Timestamp})
		assert.True(t, rows[0].Asks[0].IsZero(), "ask side starts as padding")
		assert.Equal(t, depth.Level{Price: 10, Size: 1}, rows[1].Bids[0])
		assert.Equal(t, depth.Level{Price: 12, Size: 5}, rows[2].Asks[0])
		assert.Equal(t, depth.Level{Price: 11, Size: 1}, rows[2].Bids[0])
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Merge(nil, nil, 10))
	})
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := NewCSVWriter(&buf, 2)
	require.NoError(t, cw.WriteHeader())
	require.NoError(t, cw.WriteRow(Row{
		Timestamp: 1003,
		Bids:      []depth.Level{{Price: 99.45, Size: 150}, {}},
		Asks:      []depth.Level{{Price: 100.5, Size: 200}},
	}))
	require.NoError(t, cw.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "timestamp,bid_price_1,bid_size_1,bid_price_2,bid_size_2,ask_price_1,ask_size_1,ask_price_2,ask_size_2", lines[0])
	assert.Equal(t, "1003,99.45,150,0.00,0,100.50,200,0.00,0", lines[1])
}

func TestWriteCSVFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mbp_output.csv")
	rows := []Row{{Timestamp: 1, Bids: make([]depth.Level, 10), Asks: make([]depth.Level, 10)}}

	require.NoError(t, WriteCSVFile(path, rows, 10))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)
	assert.Len(t, strings.Split(lines[0], ","), 41)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	err = WriteCSVFile(filepath.Join(dir, "missing", "out.csv"), rows, 10)
	assert.Error(t, err)
}

func TestRowJSON(t *testing.T) {
	r := Row{Timestamp: 5, Bids: []depth.Level{{Price: 99.5, Size: 10}}, Asks: []depth.Level{{Price: 100.25, Size: 3}}}
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ts":5,"bids":[{"price":"99.5","size":10}],"asks":[{"price":"100.25","size":3}]}`, string(b))

	var back Row
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, r, back)
}

func TestRowFromCapture(t *testing.T) {
	r := RowFromCapture(snap(9, depth.Level{Price: 1, Size: 1}), snap(9, depth.Level{Price: 2, Size: 2}))
	assert.Equal(t, uint64(9), r.Timestamp)
	assert.Equal(t, depth.Level{Price: 2, Size: 2}, r.Asks[0])
}
