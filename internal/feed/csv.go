package feed

import (
	"bufio"
	"context"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"mbp-reconstructor/internal/mbo"
)

const (
	minFields    = 6
	maxLineBytes = 1 << 20
)

// CSVFeed reads MBO actions from a delimited file laid out as
//
//	timestamp,action,side,price,size,order_id[,...]
//
// Records are one per line and split on commas; quotes have no meaning. The first
// line is a header. Malformed records are logged and skipped.
type CSVFeed struct {
	path    string
	log     *zap.Logger
	out     chan mbo.Action
	skipped atomic.Int64
}

func NewCSVFeed(path string, logger *zap.Logger) *CSVFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVFeed{
		path: path,
		log:  logger.With(zap.String("input", path)),
		out:  make(chan mbo.Action, 1024),
	}
}

func (f *CSVFeed) Actions() <-chan mbo.Action { return f.out }
func (f *CSVFeed) Skipped() int               { return int(f.skipped.Load()) }

func (f *CSVFeed) Run(ctx context.Context) error {
	defer close(f.out)
	if f.path == "" {
		return ErrNoInput
	}
	fh, err := os.Open(f.path)
	if err != nil {
		return errors.Wrapf(err, "open %s", f.path)
	}
	defer fh.Close()

	if err := f.decode(ctx, fh); err != nil {
		return err
	}
	f.log.Debug("input exhausted", zap.Int("skipped", f.Skipped()))
	return nil
}

func (f *CSVFeed) decode(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for sc.Scan() {
		line++
		if line == 1 {
			continue // header
		}
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		a, err := ParseRecord(strings.Split(text, ","))
		if err != nil {
			f.skip(line, err)
			continue
		}

		select {
		case f.out <- a:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrapf(err, "read %s line %d", f.path, line+1)
	}
	return nil
}

func (f *CSVFeed) skip(line int, err error) {
	f.skipped.Add(1)
	f.log.Warn("skipping malformed record", zap.Int("line", line), zap.Error(err))
}

// ParseRecord converts one split record into an Action. Fields beyond the sixth are
// ignored; surrounding spaces are trimmed.
func ParseRecord(rec []string) (mbo.Action, error) {
	if len(rec) < minFields {
		return mbo.Action{}, errors.Errorf("expected at least %d fields, got %d", minFields, len(rec))
	}
	field := func(i int) string { return strings.Trim(rec[i], " ") }

	ts, err := strconv.ParseUint(field(0), 10, 64)
	if err != nil {
		return mbo.Action{}, errors.Wrap(err, "timestamp")
	}
	actionTag, sideTag := field(1), field(2)
	if len(actionTag) != 1 || len(sideTag) != 1 {
		return mbo.Action{}, errors.Errorf("action and side tags must be one character, got %q and %q", actionTag, sideTag)
	}
	price, err := strconv.ParseFloat(field(3), 64)
	if err != nil {
		return mbo.Action{}, errors.Wrap(err, "price")
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return mbo.Action{}, errors.Errorf("price %q is not finite", field(3))
	}
	size, err := strconv.ParseInt(field(4), 10, 64)
	if err != nil {
		return mbo.Action{}, errors.Wrap(err, "size")
	}
	orderID, err := strconv.ParseUint(field(5), 10, 64)
	if err != nil {
		return mbo.Action{}, errors.Wrap(err, "order_id")
	}

	return mbo.NewAction(ts, actionTag[0], sideTag[0], price, size, orderID)
}
