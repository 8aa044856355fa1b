package presenter

import (
	"sort"
	"sync"

	"github.com/italolelis/batchdl/internal/downloader"
	"github.com/italolelis/batchdl/internal/transfer"
)

// TaskView is the JSON form of one active transfer.
type TaskView struct {
	Name    string  `json:"name"`
	Done    int64   `json:"done"`
	Total   int64   `json:"total"`
	Percent float64 `json:"percent"`
	Speed   string  `json:"speed"`
}

// FailureView is the JSON form of a transfer that ended in error.
type FailureView struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// StatusView is the JSON form of the latest batch progress.
type StatusView struct {
	BatchID   string        `json:"batch_id"`
	Done      int64         `json:"done"`
	Declared  int64         `json:"declared"`
	Percent   float64       `json:"percent"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Running   int           `json:"running"`
	Speed     string        `json:"speed"`
	Active    []TaskView    `json:"active"`
	Failures  []FailureView `json:"failures,omitempty"`
}

// Status keeps the latest snapshot for readers on other goroutines, such as the status
// endpoint. Successful transfers disappear from the active list; failures stay listed.
type Status struct {
	mu       sync.RWMutex
	batch    downloader.BatchSnapshot
	seen     bool
	active   map[*statusHandle]downloader.TaskSnapshot
	failures []FailureView
}

func NewStatus() *Status {
	return &Status{active: make(map[*statusHandle]downloader.TaskSnapshot)}
}

func (s *Status) TaskStarted(spec transfer.Spec) downloader.TaskHandle {
	h := &statusHandle{status: s, name: spec.Name()}

	s.mu.Lock()
	s.active[h] = downloader.TaskSnapshot{Name: h.name, Total: transfer.UnknownSize}
	s.mu.Unlock()

	return h
}

func (s *Status) BatchProgress(snapshot downloader.BatchSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batch = snapshot
	s.seen = true
}

// View returns the latest progress. ok is false until the first batch snapshot arrives.
func (s *Status) View() (StatusView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.seen {
		return StatusView{}, false
	}

	v := StatusView{
		BatchID:   s.batch.BatchID,
		Done:      s.batch.Done,
		Declared:  s.batch.Declared,
		Percent:   s.batch.Percent(),
		Completed: s.batch.Completed,
		Total:     s.batch.Total,
		Running:   s.batch.Running,
		Speed:     s.batch.SpeedText,
		Active:    make([]TaskView, 0, len(s.active)),
		Failures:  append([]FailureView(nil), s.failures...),
	}

	for _, t := range s.active {
		v.Active = append(v.Active, TaskView{
			Name:    t.Name,
			Done:    t.Done,
			Total:   t.Total,
			Percent: t.Percent(),
			Speed:   t.SpeedText,
		})
	}

	sort.Slice(v.Active, func(i, j int) bool { return v.Active[i].Name < v.Active[j].Name })

	return v, true
}

type statusHandle struct {
	status *Status
	name   string
}

func (h *statusHandle) Progress(snapshot downloader.TaskSnapshot) {
	h.status.mu.Lock()
	defer h.status.mu.Unlock()

	if _, ok := h.status.active[h]; ok {
		h.status.active[h] = snapshot
	}
}

func (h *statusHandle) Terminal(success bool, message string) {
	h.status.mu.Lock()
	defer h.status.mu.Unlock()

	delete(h.status.active, h)

	if !success && message != downloader.MessageCancelled {
		h.status.failures = append(h.status.failures, FailureView{Name: h.name, Message: message})
	}
}
