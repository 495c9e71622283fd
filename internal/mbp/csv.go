package mbp

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"mbp-reconstructor/internal/depth"
)

// CSVWriter renders rows as
//
//	timestamp,bid_price_1,bid_size_1,...,ask_price_N,ask_size_N
//
// with prices fixed to two fractional digits.
type CSVWriter struct {
	w      *bufio.Writer
	levels int
	buf    []byte
}

func NewCSVWriter(w io.Writer, levels int) *CSVWriter {
	return &CSVWriter{w: bufio.NewWriter(w), levels: levels}
}

func (c *CSVWriter) WriteHeader() error {
	b := append(c.buf[:0], "timestamp"...)
	for _, side := range []string{"bid", "ask"} {
		for i := 1; i <= c.levels; i++ {
			b = append(b, ',')
			b = append(b, side...)
			b = append(b, "_price_"...)
			b = strconv.AppendInt(b, int64(i), 10)
			b = append(b, ',')
			b = append(b, side...)
			b = append(b, "_size_"...)
			b = strconv.AppendInt(b, int64(i), 10)
		}
	}
	b = append(b, '\n')
	c.buf = b
	_, err := c.w.Write(b)
	return err
}

func (c *CSVWriter) WriteRow(r Row) error {
	b := strconv.AppendUint(c.buf[:0], r.Timestamp, 10)
	b = c.appendLevels(b, r.Bids)
	b = c.appendLevels(b, r.Asks)
	b = append(b, '\n')
	c.buf = b
	_, err := c.w.Write(b)
	return err
}

func (c *CSVWriter) appendLevels(b []byte, levels []depth.Level) []byte {
	for i := 0; i < c.levels; i++ {
		var lvl depth.Level
		if i < len(levels) {
			lvl = levels[i]
		}
		b = append(b, ',')
		b = strconv.AppendFloat(b, lvl.Price, 'f', 2, 64)
		b = append(b, ',')
		b = strconv.AppendInt(b, lvl.Size, 10)
	}
	return b
}

func (c *CSVWriter) Flush() error { return c.w.Flush() }

// WriteCSVFile writes the header and rows to path. The output is staged in a
// temporary file next to path and renamed into place, so a failed write leaves no
// partial file behind.
func WriteCSVFile(path string, rows []Row, levels int) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".mbp-*.csv")
	if err != nil {
		return errors.Wrapf(err, "create output for %s", path)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	cw := NewCSVWriter(tmp, levels)
	if err = cw.WriteHeader(); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, r := range rows {
		if err = cw.WriteRow(r); err != nil {
			return errors.Wrapf(err, "write row %d", r.Timestamp)
		}
	}
	if err = cw.Flush(); err != nil {
		return errors.Wrap(err, "flush output")
	}
	if err = tmp.Chmod(0o644); err != nil {
		return errors.Wrap(err, "chmod output")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "close output")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "rename output to %s", path)
	}
	return nil
}
