// Package transfer turns a selected entry into per-file copy tasks and runs
// them with bounded concurrency.
package transfer

import (
	"errors"
	"fmt"
)

// Direction definitions
type Direction int

const (
	Upload Direction = iota
	Download
)

func (d Direction) String() string {
	if d == Upload {
		return "upload"
	}
	return "download"
}

// State definitions
type State int

const (
	Queued State = iota
	Running
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further events follow this state.
func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

type (
	TaskID  uint64
	BatchID uint64
)

// Task is one file-level copy.
type Task struct {
	ID              TaskID
	Batch           BatchID
	Direction       Direction
	SourcePath      string
	DestinationPath string
	TotalBytes      int64
}

// Event reports a task's progress or its terminal state. Err is set for
// Failed events.
type Event struct {
	Task             TaskID
	Batch            BatchID
	State            State
	TransferredBytes int64
	TotalBytes       int64
	Err              error

	// DestinationOpened is set on Cancelled events when the destination
	// file had already been created or truncated.
	DestinationOpened bool
}

// ErrUnsafeName is reported for names that would escape the destination.
var ErrUnsafeName = errors.New("unsafe file name")

// TransferError records why one task failed.
type TransferError struct {
	Task Task
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Task.Direction, e.Task.SourcePath, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// PlanningError records a path the planner could not expand.
type PlanningError struct {
	Path string
	Err  error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *PlanningError) Unwrap() error { return e.Err }
