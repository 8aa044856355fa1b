package presenter

import (
	"github.com/italolelis/batchdl/internal/downloader"
	"github.com/italolelis/batchdl/internal/transfer"
)

// Multi fans every call out to all presenters in order.
type Multi []downloader.Presenter

func (m Multi) TaskStarted(spec transfer.Spec) downloader.TaskHandle {
	handles := make(multiHandle, 0, len(m))
	for _, p := range m {
		handles = append(handles, p.TaskStarted(spec))
	}

	return handles
}

func (m Multi) BatchProgress(s downloader.BatchSnapshot) {
	for _, p := range m {
		p.BatchProgress(s)
	}
}

type multiHandle []downloader.TaskHandle

func (h multiHandle) Progress(s downloader.TaskSnapshot) {
	for _, t := range h {
		t.Progress(s)
	}
}

func (h multiHandle) Terminal(success bool, message string) {
	for _, t := range h {
		t.Terminal(success, message)
	}
}
