package downloader

import (
	"github.com/italolelis/batchdl/internal/transfer"
)

// TaskSnapshot is the progress of one transfer at a sampling instant.
type TaskSnapshot struct {
	Name      string
	Done      int64
	Total     int64 // transfer.UnknownSize when the source did not declare a length
	Speed     float64
	SpeedText string
}

// Percent returns the completed share in [0, 100], or 0 when the total is unknown.
func (s TaskSnapshot) Percent() float64 {
	return percent(s.Done, s.Total)
}

// BatchSnapshot is the aggregate progress of a batch at a sampling instant.
type BatchSnapshot struct {
	BatchID   string
	Done      int64
	Declared  int64
	Completed int
	Total     int
	Running   int
	Speed     float64
	SpeedText string
}

// Percent returns the completed share of the declared bytes. Transfers whose length is
// unknown never contribute to Declared, and an empty Declared yields 0.
func (s BatchSnapshot) Percent() float64 {
	return percent(s.Done, s.Declared)
}

func percent(done, total int64) float64 {
	if total <= 0 {
		return 0
	}

	p := float64(done) * 100 / float64(total)
	if p > 100 {
		return 100
	}

	return p
}

// Presenter receives progress for a batch. Every method is called from a single
// goroutine, so implementations need no locking of their own.
type Presenter interface {
	// TaskStarted is called once a transfer has been admitted.
	TaskStarted(spec transfer.Spec) TaskHandle
	BatchProgress(snapshot BatchSnapshot)
}

// TaskHandle is the presentation of one admitted transfer.
type TaskHandle interface {
	Progress(snapshot TaskSnapshot)
	// Terminal is called exactly once. On success the presentation should drop the transfer.
	Terminal(success bool, message string)
}

type nopPresenter struct{}

func (nopPresenter) TaskStarted(transfer.Spec) TaskHandle { return nopHandle{} }
func (nopPresenter) BatchProgress(BatchSnapshot) {}

type nopHandle struct{}

func (nopHandle) Progress(TaskSnapshot) {}
func (nopHandle) Terminal(bool, string) {}
