// Package presenter contains the presentations a batch can be rendered to: structured
// logs, the status endpoint and the sqlite outcome ledger.
package presenter

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/batchdl/internal/downloader"
	"github.com/italolelis/batchdl/internal/transfer"
	"golang.org/x/time/rate"
)

const defaultLogInterval = 5 * time.Second

// Log writes batch progress to a slog logger. Progress lines are throttled to one per
// interval; starts and outcomes are always logged.
type Log struct {
	ctx      context.Context
	logger   *slog.Logger
	interval time.Duration
	batch    *rate.Sometimes
}

func NewLog(ctx context.Context, logger *slog.Logger, interval time.Duration) *Log {
	if interval <= 0 {
		interval = defaultLogInterval
	}

	return &Log{
		ctx:      ctx,
		logger:   logger,
		interval: interval,
		batch:    &rate.Sometimes{Interval: interval},
	}
}

func (l *Log) TaskStarted(spec transfer.Spec) downloader.TaskHandle {
	l.logger.InfoContext(l.ctx, "transfer started", "name", spec.Name(), "source", spec.Source)

	return &logHandle{
		log:    l,
		name:   spec.Name(),
		report: &rate.Sometimes{Interval: l.interval},
	}
}

func (l *Log) BatchProgress(s downloader.BatchSnapshot) {
	l.batch.Do(func() {
		l.logger.InfoContext(l.ctx, "batch progress",
			"completed", s.Completed,
			"files", s.Total,
			"running", s.Running,
			"downloaded", humanize.Bytes(uint64(s.Done)),
			"declared", humanize.Bytes(uint64(s.Declared)),
			"percent", humanize.FtoaWithDigits(s.Percent(), 2),
			"speed", s.SpeedText)
	})
}

type logHandle struct {
	log    *Log
	name   string
	last   downloader.TaskSnapshot
	report *rate.Sometimes
}

func (h *logHandle) Progress(s downloader.TaskSnapshot) {
	h.last = s

	h.report.Do(func() {
		attrs := []any{"name", h.name, "downloaded", humanize.Bytes(uint64(s.Done)), "speed", s.SpeedText}
		if s.Total != transfer.UnknownSize {
			attrs = append(attrs, "total", humanize.Bytes(uint64(s.Total)), "percent", humanize.FtoaWithDigits(s.Percent(), 2))
		}

		h.log.logger.DebugContext(h.log.ctx, "transfer progress", attrs...)
	})
}

func (h *logHandle) Terminal(success bool, message string) {
	size := humanize.Bytes(uint64(h.last.Done))

	switch {
	case success:
		h.log.logger.InfoContext(h.log.ctx, "transfer completed", "name", h.name, "size", size)
	case message == downloader.MessageCancelled:
		h.log.logger.InfoContext(h.log.ctx, "transfer cancelled", "name", h.name, "downloaded", size)
	default:
		h.log.logger.ErrorContext(h.log.ctx, "transfer failed", "name", h.name, "downloaded", size, "err", message)
	}
}
