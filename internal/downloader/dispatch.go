package downloader

import (
	"github.com/italolelis/batchdl/internal/transfer"
)

type eventKind int

const (
	eventTaskStarted eventKind = iota
	eventTaskProgress
	eventTaskTerminal
	eventBatchProgress
)

// event is an immutable message from a task or the sampler to the presenter.
type event struct {
	kind    eventKind
	index   int
	spec    transfer.Spec
	task    TaskSnapshot
	batch   BatchSnapshot
	success bool
	message string
}

// dispatcher owns the presenter: every presenter call happens on its goroutine,
// in the order the events were sent. Task progress never moves backwards: a sample
// taken before a task's final update may arrive after it and is dropped.
type dispatcher struct {
	presenter Presenter
	events    chan event
	handles   map[int]TaskHandle
	lastDone  map[int]int64
	done      chan struct{}
}

func newDispatcher(p Presenter, buffer int) *dispatcher {
	if p == nil {
		p = nopPresenter{}
	}

	d := &dispatcher{
		presenter: p,
		events:    make(chan event, buffer),
		handles:   make(map[int]TaskHandle),
		lastDone:  make(map[int]int64),
		done:      make(chan struct{}),
	}

	go d.run()

	return d
}

func (d *dispatcher) run() {
	defer close(d.done)

	for ev := range d.events {
		switch ev.kind {
		case eventTaskStarted:
			d.handles[ev.index] = d.presenter.TaskStarted(ev.spec)
		case eventTaskProgress:
			h, ok := d.handles[ev.index]
			if !ok || ev.task.Done < d.lastDone[ev.index] {
				continue
			}

			d.lastDone[ev.index] = ev.task.Done
			h.Progress(ev.task)
		case eventTaskTerminal:
			if h, ok := d.handles[ev.index]; ok {
				h.Terminal(ev.success, ev.message)
				delete(d.handles, ev.index)
				delete(d.lastDone, ev.index)
			}
		case eventBatchProgress:
			d.presenter.BatchProgress(ev.batch)
		}
	}
}

func (d *dispatcher) taskStarted(index int, spec transfer.Spec) {
	d.events <- event{kind: eventTaskStarted, index: index, spec: spec}
}

func (d *dispatcher) taskProgress(index int, snapshot TaskSnapshot) {
	d.events <- event{kind: eventTaskProgress, index: index, task: snapshot}
}

func (d *dispatcher) taskTerminal(index int, success bool, message string) {
	d.events <- event{kind: eventTaskTerminal, index: index, success: success, message: message}
}

func (d *dispatcher) batchProgress(snapshot BatchSnapshot) {
	d.events <- event{kind: eventBatchProgress, batch: snapshot}
}

// close stops accepting events and waits until the presenter has seen all of them.
func (d *dispatcher) close() {
	close(d.events)
	<-d.done
}
