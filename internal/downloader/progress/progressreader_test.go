package progress_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/italolelis/batchdl/internal/downloader/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderReadsEverything(t *testing.T) {
	src := strings.Repeat("abcdef", 1000)

	var calls int

	pr := progress.NewReader(context.Background(), strings.NewReader(src), int64(len(src)), time.Hour, func(read, total int64) {
		calls++

		assert.Equal(t, int64(len(src)), total)
	})

	got, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, src, string(got))
	assert.Equal(t, int64(len(src)), pr.TotalRead())
	assert.Equal(t, 1, calls, "reports are throttled to one per interval")
}

func TestReaderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())

	pr := progress.NewReader(ctx, strings.NewReader("0123456789"), 10, time.Hour, nil)

	buf := make([]byte, 4)
	n, err := pr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	cause := errors.New("sibling failed")
	cancel(cause)

	n, err = pr.Read(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, progress.ErrCancelled)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, int64(4), pr.TotalRead())
}
