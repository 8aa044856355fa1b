package transfer

import (
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// UnknownSize is reported by State.Total when the source did not declare a length.
const UnknownSize int64 = -1

// Spec is a single file to download: where it comes from and where it lands.
type Spec struct {
	Source      string
	Destination string
}

// Name returns the display name of the transfer.
func (s Spec) Name() string {
	return filepath.Base(s.Destination)
}

// Validate checks that the spec can be handed to a task.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Source) == "" {
		return &ConfigError{Field: "source", Reason: "must not be empty"}
	}

	if strings.TrimSpace(s.Destination) == "" {
		return &ConfigError{Field: "destination", Reason: "must not be empty for " + s.Source}
	}

	u, err := url.Parse(s.Source)
	if err != nil {
		return &ConfigError{Field: "source", Reason: "malformed URI " + s.Source, Err: err}
	}

	if u.Scheme == "" {
		return &ConfigError{Field: "source", Reason: "missing scheme in " + s.Source}
	}

	return nil
}

type Status int32

const (
	StatusQueued Status = iota
	StatusConnecting
	StatusTransferring
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusConnecting:
		return "connecting"
	case StatusTransferring:
		return "transferring"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsActive reports whether the transfer holds an admission slot.
func (s Status) IsActive() bool {
	return s == StatusConnecting || s == StatusTransferring
}

// IsTerminal reports whether the transfer has finished, one way or another.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// State is the mutable progress of one transfer. Only the owning task writes it;
// samplers and presenters read it concurrently.
type State struct {
	transferred atomic.Int64
	total       atomic.Int64
	status      atomic.Int32

	mu     sync.Mutex
	reason string
}

func NewState() *State {
	s := &State{}
	s.total.Store(UnknownSize)

	return s
}

// Transferred returns the number of bytes written to the destination so far.
func (s *State) Transferred() int64 {
	return s.transferred.Load()
}

// Total returns the declared length, or UnknownSize.
func (s *State) Total() int64 {
	return s.total.Load()
}

func (s *State) Status() Status {
	return Status(s.status.Load())
}

// Reason returns the failure reason of a Failed transfer.
func (s *State) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reason
}

// Add records n more bytes written and returns the new count.
func (s *State) Add(n int64) int64 {
	return s.transferred.Add(n)
}

// SetTotal records the declared length. Only the first call has an effect.
func (s *State) SetTotal(n int64) bool {
	if n < 0 {
		return false
	}

	return s.total.CompareAndSwap(UnknownSize, n)
}

func (s *State) SetStatus(st Status) {
	s.status.Store(int32(st))
}

// Fail moves the transfer to Failed with the given reason.
func (s *State) Fail(reason string) {
	s.mu.Lock()
	s.reason = reason
	s.mu.Unlock()

	s.SetStatus(StatusFailed)
}
