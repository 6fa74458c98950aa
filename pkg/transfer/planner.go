package transfer

import (
	"context"
	"fmt"
	"log"

	"github.com/quocson95/sftpane/pkg/vfs"
)

// Request describes one user-initiated transfer.
type Request struct {
	Batch     BatchID
	Direction Direction

	Source    vfs.FileSystem
	SourceDir string
	Entry     vfs.Entry

	Destination    vfs.FileSystem
	DestinationDir string
}

// Plan is the expansion of a Request.
type Plan struct {
	Batch       BatchID
	Direction   Direction
	Name        string
	Tasks       []Task
	TotalBytes  int64
	Directories []string // created on the destination, parents first
	Failures    []*PlanningError
	Skipped     []string // symbolic links to directories and special files
}

// Planner expands requests into tasks. NextID must hand out unique ids and
// be safe for concurrent use.
type Planner struct {
	NextID func() TaskID
}

// NewPlanner returns a planner drawing task ids from e.
func NewPlanner(e *Engine) *Planner {
	return &Planner{NextID: e.nextTaskID}
}

// Plan walks the request's source depth-first. Directories are created on
// the destination before any file beneath them becomes a task. Unreadable
// directories are recorded in Failures and the walk goes on. The returned
// error is non-nil only when nothing could be planned.
func (p *Planner) Plan(ctx context.Context, req Request) (*Plan, error) {
	if !vfs.ValidName(req.Entry.Name) {
		return nil, fmt.Errorf("%w: %q", ErrUnsafeName, req.Entry.Name)
	}

	plan := &Plan{
		Batch:     req.Batch,
		Direction: req.Direction,
		Name:      req.Entry.Name,
	}
	w := &walker{
		planner: p,
		req:     req,
		plan:    plan,
		ctx:     ctx,
	}

	src := req.Source.Join(req.SourceDir, req.Entry.Name)
	dst := req.Destination.Join(req.DestinationDir, req.Entry.Name)
	if !req.Destination.Within(req.DestinationDir, dst) || dst == req.DestinationDir {
		return nil, fmt.Errorf("%w: %q", ErrUnsafeName, req.Entry.Name)
	}

	switch {
	case req.Entry.IsDir:
		w.dir(src, dst)
	case req.Entry.Regular():
		w.file(src, dst, req.Entry.Size)
	default:
		return nil, fmt.Errorf("%s is not a regular file or directory", src)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Printf("[INFO] Planned batch %d (%s %s): %d files, %d bytes, %d directories, %d failures",
		plan.Batch, plan.Direction, plan.Name, len(plan.Tasks), plan.TotalBytes, len(plan.Directories), len(plan.Failures))
	return plan, nil
}

type walker struct {
	planner *Planner
	req     Request
	plan    *Plan
	ctx     context.Context
}

func (w *walker) fail(path string, err error) {
	log.Printf("[WARN] Batch %d: cannot plan %s: %v", w.plan.Batch, path, err)
	w.plan.Failures = append(w.plan.Failures, &PlanningError{Path: path, Err: err})
}

func (w *walker) file(src, dst string, size int64) {
	w.plan.Tasks = append(w.plan.Tasks, Task{
		ID:              w.planner.NextID(),
		Batch:           w.plan.Batch,
		Direction:       w.plan.Direction,
		SourcePath:      src,
		DestinationPath: dst,
		TotalBytes:      size,
	})
	w.plan.TotalBytes += size
}

func (w *walker) dir(src, dst string) {
	if w.ctx.Err() != nil {
		return
	}

	// Without the directory nothing beneath it can be written.
	if err := w.req.Destination.Mkdir(dst); err != nil {
		w.fail(dst, err)
		return
	}
	w.plan.Directories = append(w.plan.Directories, dst)

	entries, err := w.req.Source.ReadDir(src)
	if err != nil {
		w.fail(src, err)
		return
	}
	vfs.SortEntries(entries)

	for _, e := range entries {
		if w.ctx.Err() != nil {
			return
		}
		if !vfs.ValidName(e.Name) {
			w.fail(w.req.Source.Join(src, e.Name), fmt.Errorf("%w: %q", ErrUnsafeName, e.Name))
			continue
		}

		childSrc := w.req.Source.Join(src, e.Name)
		childDst := w.req.Destination.Join(dst, e.Name)
		if !w.req.Destination.Within(w.req.DestinationDir, childDst) {
			w.fail(childSrc, fmt.Errorf("%w: %q", ErrUnsafeName, e.Name))
			continue
		}

		switch {
		case e.IsDir && e.Symlink:
			// Following links to directories can loop forever.
			w.plan.Skipped = append(w.plan.Skipped, childSrc)
		case e.IsDir:
			w.dir(childSrc, childDst)
		case e.Regular():
			w.file(childSrc, childDst, e.Size)
		default:
			w.plan.Skipped = append(w.plan.Skipped, childSrc)
		}
	}
}
