package app

import (
	"context"
	"time"

	"github.com/quocson95/sftpane/pkg/transfer"
)

// rateWindow is how much history the bitrate estimate looks at.
const rateWindow = 5 * time.Second

type taskState struct {
	task        transfer.Task
	state       transfer.State
	transferred int64
	total       int64
}

type rateSample struct {
	at    time.Time
	bytes int64
}

// batch aggregates the tasks of one user request. Only the control
// goroutine touches it.
type batch struct {
	id        transfer.BatchID
	direction transfer.Direction
	name      string
	destSide  Side
	destDir   string
	cancel    context.CancelFunc

	planned         bool
	done            bool
	cancelRequested bool
	planErr         error

	tasks map[transfer.TaskID]*taskState
	order []transfer.TaskID

	completed, failed, cancelled int
	transferred, totalBytes      int64
	skipped                      int
	failures                     []error
	partial                      []string

	samples  []rateSample
	started  time.Time
	finished time.Time
}

func newBatch(id transfer.BatchID, dir transfer.Direction, name string, dest Side, destDir string, cancel context.CancelFunc, now time.Time) *batch {
	return &batch{
		id:        id,
		direction: dir,
		name:      name,
		destSide:  dest,
		destDir:   destDir,
		cancel:    cancel,
		tasks:     make(map[transfer.TaskID]*taskState),
		started:   now,
	}
}

func (b *batch) addPlan(plan *transfer.Plan) {
	for _, t := range plan.Tasks {
		b.tasks[t.ID] = &taskState{task: t, state: transfer.Queued, total: t.TotalBytes}
		b.order = append(b.order, t.ID)
	}
	b.totalBytes += plan.TotalBytes
	b.skipped += len(plan.Skipped)
	for _, f := range plan.Failures {
		b.failures = append(b.failures, f)
	}
	b.planned = true
}

// apply folds one engine event and reports whether it ended a task.
func (b *batch) apply(ev transfer.Event) bool {
	t, ok := b.tasks[ev.Task]
	if !ok || t.state.Terminal() {
		return false
	}
	if ev.TotalBytes != t.total {
		b.totalBytes += ev.TotalBytes - t.total
		t.total = ev.TotalBytes
	}
	if delta := ev.TransferredBytes - t.transferred; delta > 0 {
		t.transferred = ev.TransferredBytes
		b.transferred += delta
	}
	t.state = ev.State

	switch ev.State {
	case transfer.Completed:
		b.completed++
	case transfer.Failed:
		b.failed++
		b.failures = append(b.failures, ev.Err)
	case transfer.Cancelled:
		b.cancelled++
		if ev.DestinationOpened || t.transferred > 0 {
			b.partial = append(b.partial, t.task.DestinationPath)
		}
	default:
		return false
	}
	return true
}

func (b *batch) finishedTasks() int {
	return b.completed + b.failed + b.cancelled
}

// complete reports whether every planned task has reached a terminal state.
func (b *batch) complete() bool {
	return b.planned && b.finishedTasks() >= len(b.tasks)
}

func (b *batch) sample(now time.Time) {
	b.samples = append(b.samples, rateSample{at: now, bytes: b.transferred})
	cutoff := now.Add(-rateWindow)
	i := 0
	for i < len(b.samples)-1 && b.samples[i].at.Before(cutoff) {
		i++
	}
	b.samples = b.samples[i:]
}

// rate returns bytes per second over the sample window.
func (b *batch) rate() float64 {
	if len(b.samples) < 2 {
		return 0
	}
	first, last := b.samples[0], b.samples[len(b.samples)-1]
	span := last.at.Sub(first.at).Seconds()
	if span <= 0 {
		return 0
	}
	return float64(last.bytes-first.bytes) / span
}

func (b *batch) eta(rate float64) time.Duration {
	remaining := b.totalBytes - b.transferred
	if rate <= 0 || remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining) / rate * float64(time.Second))
}

func (b *batch) state() BatchState {
	switch {
	case !b.planned:
		return BatchPlanning
	case b.planErr != nil:
		return BatchFailed
	case !b.done:
		return BatchTransferring
	case b.cancelRequested:
		return BatchCancelled
	case b.failed > 0 || len(b.failures) > 0:
		return BatchPartiallyFailed
	}
	return BatchCompleted
}

func (b *batch) view() BatchView {
	rate := b.rate()
	v := BatchView{
		ID:               b.id,
		Direction:        b.direction,
		Name:             b.name,
		State:            b.state(),
		TotalTasks:       len(b.tasks),
		Completed:        b.completed,
		Failed:           b.failed,
		Cancelled:        b.cancelled,
		Skipped:          b.skipped,
		TransferredBytes: b.transferred,
		TotalBytes:       b.totalBytes,
		Rate:             rate,
		ETA:              b.eta(rate),
		PartialFiles:     append([]string(nil), b.partial...),
		Started:          b.started,
		Finished:         b.finished,
	}
	if b.planErr != nil {
		v.Failures = append(v.Failures, b.planErr)
	}
	v.Failures = append(v.Failures, b.failures...)
	for _, id := range b.order {
		t := b.tasks[id]
		if t.state != transfer.Running {
			continue
		}
		v.Running = append(v.Running, TaskView{
			ID:               t.task.ID,
			SourcePath:       t.task.SourcePath,
			DestinationPath:  t.task.DestinationPath,
			State:            t.state,
			TransferredBytes: t.transferred,
			TotalBytes:       t.total,
		})
	}
	return v
}
