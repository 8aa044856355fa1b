package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"
)

// ErrCancelled is returned by Reader.Read once its context is done.
var ErrCancelled = errors.New("transfer cancelled")

// Reader wraps an io.Reader, refuses to read once ctx is done and reports progress
// via a callback at most once per interval.
type Reader struct {
	ctx        context.Context
	reader     io.Reader
	total      int64
	totalRead  int64
	report     *rate.Sometimes
	OnProgress func(read int64, total int64)
}

func NewReader(ctx context.Context, r io.Reader, total int64, interval time.Duration, cb func(read int64, total int64)) *Reader {
	return &Reader{
		ctx:        ctx,
		reader:     r,
		total:      total,
		report:     &rate.Sometimes{Interval: interval},
		OnProgress: cb,
	}
}

// Read checks for cancellation before every chunk.
func (pr *Reader) Read(p []byte) (int, error) {
	if pr.ctx.Err() != nil {
		return 0, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(pr.ctx))
	}

	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.totalRead += int64(n)

		if pr.OnProgress != nil {
			pr.report.Do(func() {
				pr.OnProgress(pr.totalRead, pr.total)
			})
		}
	}

	return n, err
}

// TotalRead returns the bytes read so far.
func (pr *Reader) TotalRead() int64 {
	return pr.totalRead
}
