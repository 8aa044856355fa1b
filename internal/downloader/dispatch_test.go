package downloader

import (
	"testing"

	"github.com/italolelis/batchdl/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherDropsStaleTaskProgress(t *testing.T) {
	p := newRecordingPresenter()
	d := newDispatcher(p, 16)

	spec := transfer.Spec{Source: "http://x/a.bin", Destination: "/d/a.bin"}

	d.taskStarted(0, spec)
	d.taskProgress(0, TaskSnapshot{Name: "a.bin", Done: 40})
	// final update from the task, then a sample read before the last chunk landed
	d.taskProgress(0, TaskSnapshot{Name: "a.bin", Done: 100})
	d.taskProgress(0, TaskSnapshot{Name: "a.bin", Done: 60})
	d.taskTerminal(0, true, "")
	// a sample arriving after the outcome has no handle to go to
	d.taskProgress(0, TaskSnapshot{Name: "a.bin", Done: 70})
	d.close()

	snaps := p.progress["a.bin"]
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(40), snaps[0].Done)
	assert.Equal(t, int64(100), snaps[1].Done)
	assert.Len(t, p.terminals["a.bin"], 1)
}

func TestDispatcherKeepsEqualProgress(t *testing.T) {
	p := newRecordingPresenter()
	d := newDispatcher(p, 4)

	d.taskStarted(3, transfer.Spec{Source: "http://x/b.bin", Destination: "/d/b.bin"})
	d.taskProgress(3, TaskSnapshot{Name: "b.bin", Done: 0})
	d.taskProgress(3, TaskSnapshot{Name: "b.bin", Done: 0})
	d.close()

	assert.Len(t, p.progress["b.bin"], 2)
}
