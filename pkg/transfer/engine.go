package transfer

import (
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/quocson95/sftpane/pkg/vfs"
)

const (
	DefaultConcurrency = 4
	DefaultChunkSize   = 1 << 20

	eventBuffer = 256
)

var errCancelled = errors.New("transfer cancelled")

// Options tune an Engine. Zero values select the defaults.
type Options struct {
	Concurrency int
	ChunkSize   int
}

// Stats is a point-in-time view of the engine's queue.
type Stats struct {
	Pending    int
	Running    int
	Unobserved int // tasks whose terminal event has not been polled yet
}

type job struct {
	task        Task
	cancelled   atomic.Bool
	transferred atomic.Int64
	total       atomic.Int64

	terminal bool // guarded by Engine.mu
	opened   bool // guarded by Engine.mu
}

func (j *job) event(state State, err error) Event {
	ev := Event{
		Task:             j.task.ID,
		Batch:            j.task.Batch,
		State:            state,
		TransferredBytes: j.transferred.Load(),
		TotalBytes:       j.total.Load(),
		Err:              err,
	}
	if state == Cancelled {
		// Cancelled events are built under Engine.mu.
		ev.DestinationOpened = j.opened
	}
	return ev
}

type batchQueue struct {
	id   BatchID
	jobs []*job
}

// Engine runs tasks between the local and remote filesystems. Tasks of one
// batch start in FIFO order; batches take turns for free worker slots.
type Engine struct {
	local       vfs.FileSystem
	remote      vfs.FileSystem
	concurrency int
	chunkSize   int

	taskSeq  atomic.Uint64
	batchSeq atomic.Uint64

	mu        sync.Mutex
	queues    []*batchQueue // batches with pending tasks, in turn order
	next      int           // index into queues of the batch whose turn it is
	running   map[TaskID]*job
	jobs      map[TaskID]*job
	cancelled map[BatchID]bool
	outbox    []Event // terminal events produced outside the workers
	closed    bool

	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewEngine creates an idle engine.
func NewEngine(local, remote vfs.FileSystem, opts Options) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Engine{
		local:       local,
		remote:      remote,
		concurrency: opts.Concurrency,
		chunkSize:   opts.ChunkSize,
		running:     make(map[TaskID]*job),
		jobs:        make(map[TaskID]*job),
		cancelled:   make(map[BatchID]bool),
		events:      make(chan Event, eventBuffer),
		done:        make(chan struct{}),
	}
}

// NewBatch allocates a batch id.
func (e *Engine) NewBatch() BatchID {
	return BatchID(e.batchSeq.Add(1))
}

func (e *Engine) nextTaskID() TaskID {
	return TaskID(e.taskSeq.Add(1))
}

// Enqueue queues tasks without blocking. Tasks of an already cancelled
// batch are cancelled on arrival.
func (e *Engine) Enqueue(tasks []Task) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, t := range tasks {
		j := &job{task: t}
		j.total.Store(t.TotalBytes)
		e.jobs[t.ID] = j

		if e.closed || e.cancelled[t.Batch] {
			j.terminal = true
			e.outbox = append(e.outbox, j.event(Cancelled, nil))
			continue
		}
		e.queueLocked(j)
	}
	e.dispatchLocked()
}

func (e *Engine) queueLocked(j *job) {
	for _, q := range e.queues {
		if q.id == j.task.Batch {
			q.jobs = append(q.jobs, j)
			return
		}
	}
	e.queues = append(e.queues, &batchQueue{id: j.task.Batch, jobs: []*job{j}})
}

// dispatchLocked starts pending tasks round-robin across batches until all
// worker slots are busy.
func (e *Engine) dispatchLocked() {
	if e.closed {
		return
	}
	for len(e.running) < e.concurrency && len(e.queues) > 0 {
		if e.next >= len(e.queues) {
			e.next = 0
		}
		q := e.queues[e.next]
		j := q.jobs[0]
		q.jobs = q.jobs[1:]
		if len(q.jobs) == 0 {
			e.queues = append(e.queues[:e.next], e.queues[e.next+1:]...)
		} else {
			e.next++
		}

		e.running[j.task.ID] = j
		e.wg.Add(1)
		go e.run(j)
	}
}

func (e *Engine) run(j *job) {
	defer e.wg.Done()
	e.finish(j, e.copy(j))
}

func (e *Engine) sides(d Direction) (src, dst vfs.FileSystem) {
	if d == Upload {
		return e.local, e.remote
	}
	return e.remote, e.local
}

// copy streams the source into the destination chunk by chunk, checking
// for cancellation before each chunk.
func (e *Engine) copy(j *job) (err error) {
	t := j.task
	src, dst := e.sides(t.Direction)
	log.Printf("[INFO] Task %d (batch %d) started: %s -> %s", t.ID, t.Batch, t.SourcePath, t.DestinationPath)

	r, err := src.Open(t.SourcePath)
	if err != nil {
		return err
	}
	defer r.Close()
	j.total.Store(r.Size())

	if !e.beginWrite(j) {
		return errCancelled
	}
	w, err := dst.Create(t.DestinationPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	e.progress(j)

	buf := make([]byte, e.chunkSize)
	for {
		if j.cancelled.Load() {
			return errCancelled
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			j.transferred.Add(int64(n))
			e.progress(j)
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

// beginWrite marks j as about to touch its destination, unless it was
// cancelled first. Either way a Cancelled event for j tells the truth about
// the destination.
func (e *Engine) beginWrite(j *job) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if j.cancelled.Load() {
		return false
	}
	j.opened = true
	return true
}

// progress reports a Running event, dropping it when the controller is
// behind. Later events carry the larger count.
func (e *Engine) progress(j *job) {
	if j.cancelled.Load() {
		return
	}
	select {
	case e.events <- j.event(Running, nil):
	default:
	}
}

// finish publishes the terminal event, unless a cancellation already did,
// and only then hands the worker slot to the next task.
func (e *Engine) finish(j *job, err error) {
	e.mu.Lock()
	emit := !j.terminal
	var ev Event
	if emit {
		j.terminal = true
		switch {
		case err == nil:
			ev = j.event(Completed, nil)
			log.Printf("[INFO] Task %d (batch %d) completed: %d bytes", j.task.ID, j.task.Batch, ev.TransferredBytes)
		case errors.Is(err, errCancelled):
			ev = j.event(Cancelled, nil)
		default:
			ev = j.event(Failed, &TransferError{Task: j.task, Err: err})
			log.Printf("[ERROR] Task %d (batch %d) failed: %v", j.task.ID, j.task.Batch, err)
		}
	}
	e.mu.Unlock()

	if emit {
		select {
		case e.events <- ev:
		case <-e.done:
		}
	}

	e.mu.Lock()
	delete(e.running, j.task.ID)
	e.dispatchLocked()
	e.mu.Unlock()
}

// PollEvents returns the events produced since the last call without
// blocking. Each task's terminal event is returned exactly once and no
// event for that task follows it.
func (e *Engine) PollEvents() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Event
drain:
	for {
		select {
		case ev := <-e.events:
			out = e.observeLocked(out, ev)
		default:
			break drain
		}
	}
	for _, ev := range e.outbox {
		out = e.observeLocked(out, ev)
	}
	e.outbox = nil
	return out
}

func (e *Engine) observeLocked(out []Event, ev Event) []Event {
	j, ok := e.jobs[ev.Task]
	if !ok {
		return out
	}
	if ev.State.Terminal() {
		delete(e.jobs, ev.Task)
	} else if j.cancelled.Load() {
		return out
	}
	return append(out, ev)
}

// Cancel cancels every task of batch: pending ones at once, running ones
// after their current chunk. Their Cancelled events are available from the
// next PollEvents. It returns the number of tasks cancelled.
func (e *Engine) Cancel(batch BatchID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelLocked(batch)
}

func (e *Engine) cancelLocked(batch BatchID) int {
	e.cancelled[batch] = true
	n := 0

	for i, q := range e.queues {
		if q.id != batch {
			continue
		}
		for _, j := range q.jobs {
			j.terminal = true
			e.outbox = append(e.outbox, j.event(Cancelled, nil))
			n++
		}
		e.queues = append(e.queues[:i], e.queues[i+1:]...)
		if e.next > i {
			e.next--
		}
		break
	}

	for _, j := range e.running {
		if j.task.Batch != batch || j.terminal {
			continue
		}
		j.cancelled.Store(true)
		j.terminal = true
		e.outbox = append(e.outbox, j.event(Cancelled, nil))
		n++
	}

	if n > 0 {
		log.Printf("[INFO] Batch %d cancelled (%d tasks)", batch, n)
	}
	return n
}

// CancelAll cancels every pending and running task.
func (e *Engine) CancelAll() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelAllLocked()
}

func (e *Engine) cancelAllLocked() int {
	batches := make(map[BatchID]bool)
	for _, q := range e.queues {
		batches[q.id] = true
	}
	for _, j := range e.running {
		batches[j.task.Batch] = true
	}
	n := 0
	for b := range batches {
		n += e.cancelLocked(b)
	}
	return n
}

// Stats reports queue sizes.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{Running: len(e.running), Unobserved: len(e.jobs)}
	for _, q := range e.queues {
		s.Pending += len(q.jobs)
	}
	return s
}

// Idle reports whether nothing is queued, running or waiting to be polled.
func (e *Engine) Idle() bool {
	s := e.Stats()
	return s.Pending == 0 && s.Running == 0 && s.Unobserved == 0
}

// Close cancels everything and releases workers blocked on event delivery.
// Events already produced can still be polled.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.cancelAllLocked()
	e.closed = true
	e.mu.Unlock()
	close(e.done)
}

// Wait blocks until every started worker has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}
