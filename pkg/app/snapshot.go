package app

import (
	"time"

	"github.com/quocson95/sftpane/pkg/transfer"
	"github.com/quocson95/sftpane/pkg/vfs"
)

// Snapshot is a read-only copy of everything the renderer draws.
type Snapshot struct {
	Panes     [2]PaneView
	Active    Side
	Lifecycle Lifecycle
	ShowHelp  bool
	Batches   []BatchView

	Message        string
	MessageIsError bool
	Fatal          error

	Stats transfer.Stats
}

// PaneView describes one pane.
type PaneView struct {
	Label      string
	Location   string
	Entries    []vfs.Entry // visible entries only
	Selected   int         // -1 when nothing is selected
	ShowHidden bool
	Loading    bool
	Err        error
}

// BatchState summarizes a batch for display.
type BatchState int

const (
	BatchPlanning BatchState = iota
	BatchTransferring
	BatchCompleted
	BatchPartiallyFailed
	BatchFailed
	BatchCancelled
)

func (s BatchState) String() string {
	switch s {
	case BatchPlanning:
		return "planning"
	case BatchTransferring:
		return "transferring"
	case BatchCompleted:
		return "completed"
	case BatchPartiallyFailed:
		return "completed with errors"
	case BatchFailed:
		return "failed"
	case BatchCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Finished reports whether the batch will not change any more.
func (s BatchState) Finished() bool {
	return s >= BatchCompleted
}

type BatchView struct {
	ID        transfer.BatchID
	Direction transfer.Direction
	Name      string
	State     BatchState

	TotalTasks int
	Completed  int
	Failed     int
	Cancelled  int
	Skipped    int

	TransferredBytes int64
	TotalBytes       int64
	Rate             float64       // bytes per second
	ETA              time.Duration // zero when unknown

	Running      []TaskView
	Failures     []error
	PartialFiles []string // destinations left incomplete by cancellation

	Started  time.Time
	Finished time.Time
}

// Fraction returns the completed share of the batch's bytes.
func (v BatchView) Fraction() float64 {
	if v.TotalBytes <= 0 {
		if v.State.Finished() {
			return 1
		}
		return 0
	}
	f := float64(v.TransferredBytes) / float64(v.TotalBytes)
	if f > 1 {
		return 1
	}
	return f
}

type TaskView struct {
	ID               transfer.TaskID
	SourcePath       string
	DestinationPath  string
	State            transfer.State
	TransferredBytes int64
	TotalBytes       int64
}
