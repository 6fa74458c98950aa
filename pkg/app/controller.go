// Package app holds the application state machine: two panes, the transfer
// engine and the lifecycle. The renderer feeds it keys and ticks and draws
// the snapshots it returns.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/quocson95/sftpane/pkg/pane"
	"github.com/quocson95/sftpane/pkg/transfer"
	"github.com/quocson95/sftpane/pkg/vfs"
)

const (
	defaultPageSize = 10
	resultBuffer    = 64
)

// Options configure a Controller.
type Options struct {
	Local  vfs.FileSystem
	Remote vfs.FileSystem

	LocalDir string
	// RemoteDirs are tried in order until one can be listed.
	RemoteDirs []string

	ShowHidden bool
	Transfer   transfer.Options

	// Watcher, when set, triggers local pane refreshes. The controller
	// takes ownership of it.
	Watcher DirWatcher
	// Alive reports whether the remote session is still up. Optional.
	Alive func() bool
	// HiddenToggled is called with the new value whenever a pane's
	// hidden-file filter is flipped. Optional.
	HiddenToggled func(show bool)

	Now func() time.Time
}

// DirWatcher reports changes to one watched directory at a time.
// *vfs.Watcher implements it.
type DirWatcher interface {
	Watch(dir string) error
	Changes() <-chan string
	Close() error
}

// Controller owns all mutable state. Its methods must be called from a
// single goroutine; background work reports back through Tick.
type Controller struct {
	fs     [2]vfs.FileSystem
	panes  [2]*pane.Pane
	active Side

	lifecycle Lifecycle
	showHelp  bool
	pageSize  int

	engine   *transfer.Engine
	planner  *transfer.Planner
	batches  map[transfer.BatchID]*batch
	order    []transfer.BatchID
	planning int

	results chan func()
	listSeq [2]uint64
	// navPending is set while a navigation listing is in flight. Refreshes
	// requested meanwhile are held back in refreshHeld.
	navPending  [2]bool
	refreshHeld [2]bool

	watcher       DirWatcher
	alive         func() bool
	hiddenToggled func(bool)

	message    string
	messageErr bool
	fatal      error

	now       func() time.Time
	done      chan struct{}
	closeOnce sync.Once
}

type listRequest struct {
	side       Side
	dir        string
	selectName string
	refresh    bool
	fallbacks  []string
}

// New creates a controller and starts listing both panes.
func New(opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	remoteDirs := opts.RemoteDirs
	if len(remoteDirs) == 0 {
		remoteDirs = []string{"/"}
	}

	engine := transfer.NewEngine(opts.Local, opts.Remote, opts.Transfer)
	c := &Controller{
		fs: [2]vfs.FileSystem{opts.Local, opts.Remote},
		panes: [2]*pane.Pane{
			pane.New(opts.Local, opts.LocalDir, opts.ShowHidden),
			pane.New(opts.Remote, remoteDirs[0], opts.ShowHidden),
		},
		active:        LocalSide,
		pageSize:      defaultPageSize,
		engine:        engine,
		planner:       transfer.NewPlanner(engine),
		batches:       make(map[transfer.BatchID]*batch),
		results:       make(chan func(), resultBuffer),
		watcher:       opts.Watcher,
		alive:         opts.Alive,
		hiddenToggled: opts.HiddenToggled,
		now:           opts.Now,
		done:          make(chan struct{}),
	}

	c.list(listRequest{side: LocalSide, dir: opts.LocalDir})
	c.list(listRequest{side: RemoteSide, dir: remoteDirs[0], fallbacks: remoteDirs[1:]})
	return c
}

// post hands f to the control goroutine.
func (c *Controller) post(f func()) {
	select {
	case c.results <- f:
	case <-c.done:
	}
}

func (c *Controller) setMessage(format string, args ...any) {
	c.message = fmt.Sprintf(format, args...)
	c.messageErr = false
}

func (c *Controller) setError(format string, args ...any) {
	c.message = fmt.Sprintf(format, args...)
	c.messageErr = true
}

func (c *Controller) setLifecycle(l Lifecycle) {
	if c.lifecycle == l {
		return
	}
	slog.Info("lifecycle changed", "from", c.lifecycle.String(), "to", l.String())
	c.lifecycle = l
}

// list fetches a directory in the background. Results of older requests
// for the same pane are dropped. Only navigation may supersede a pending
// navigation; see refresh.
func (c *Controller) list(req listRequest) {
	if !req.refresh {
		c.navPending[req.side] = true
	}
	c.listSeq[req.side]++
	seq := c.listSeq[req.side]
	fs := c.fs[req.side]
	c.panes[req.side].SetLoading(true)

	go func() {
		entries, err := fs.ReadDir(req.dir)
		c.post(func() { c.applyListing(req, seq, entries, err) })
	}()
}

func (c *Controller) applyListing(req listRequest, seq uint64, entries []vfs.Entry, err error) {
	if seq != c.listSeq[req.side] {
		return
	}
	p := c.panes[req.side]
	if !req.refresh {
		c.navPending[req.side] = false
	}

	if err != nil {
		if errors.Is(err, vfs.ErrConnectionLost) {
			p.SetError(&NavigationError{Path: req.dir, Err: err})
			c.sessionLost(err)
			return
		}
		if len(req.fallbacks) > 0 {
			log.Printf("[WARN] Cannot list %s, trying %s: %v", req.dir, req.fallbacks[0], err)
			next := req
			next.dir, next.fallbacks = req.fallbacks[0], req.fallbacks[1:]
			c.list(next)
			return
		}
		p.SetError(&NavigationError{Path: req.dir, Err: err})
		if !req.refresh && c.refreshHeld[req.side] {
			// The pane stays where it was; catch up on the held refresh
			// but keep the failure visible.
			c.refreshHeld[req.side] = false
			c.setError("%v", &NavigationError{Path: req.dir, Err: err})
			c.refresh(req.side)
		}
		return
	}

	if req.refresh {
		if req.dir != p.Location() {
			p.SetLoading(false)
			return
		}
		p.ApplyListing(entries)
		if req.selectName != "" {
			p.SelectName(req.selectName)
		}
		return
	}

	c.refreshHeld[req.side] = false
	p.SetLocation(req.dir, entries, req.selectName)
	if req.side == LocalSide && c.watcher != nil {
		if err := c.watcher.Watch(req.dir); err != nil {
			log.Printf("[WARN] Cannot watch %s: %v", req.dir, err)
		}
	}
}

// refresh re-lists a pane's current location. While a navigation is in
// flight the refresh is held: the navigation's own listing is fresh if it
// succeeds, and the held refresh runs if it fails.
func (c *Controller) refresh(side Side) {
	c.refreshSelecting(side, "")
}

func (c *Controller) refreshSelecting(side Side, name string) {
	if c.navPending[side] {
		c.refreshHeld[side] = true
		return
	}
	c.list(listRequest{side: side, dir: c.panes[side].Location(), selectName: name, refresh: true})
}

// SetPageSize sets how far page up and page down move.
func (c *Controller) SetPageSize(n int) {
	if n < 1 {
		n = 1
	}
	c.pageSize = n
}

// HandleKey applies one key press.
func (c *Controller) HandleKey(k Key) {
	if c.lifecycle == Terminated {
		return
	}
	if k == KeyForceQuit {
		c.forceQuit()
		return
	}

	p := c.panes[c.active]
	switch k {
	case KeyUp:
		p.MoveSelection(-1)
	case KeyDown:
		p.MoveSelection(1)
	case KeyPageUp:
		p.MoveSelection(-c.pageSize)
	case KeyPageDown:
		p.MoveSelection(c.pageSize)
	case KeyTop:
		p.Top()
	case KeyBottom:
		p.Bottom()
	case KeyEnter:
		c.enter()
	case KeyParent:
		c.goUp()
	case KeySwitchPane:
		c.active = c.active.Other()
	case KeyTransfer:
		c.startTransfer()
	case KeyToggleHidden:
		p.ToggleHidden()
		if c.hiddenToggled != nil {
			c.hiddenToggled(p.ShowHidden())
		}
	case KeyHelp:
		c.showHelp = !c.showHelp
	case KeyRefresh:
		c.refresh(c.active)
	case KeyCancelBatch:
		c.cancelNewest()
	case KeyDismiss:
		c.dismissFinished()
	case KeyQuit:
		c.quit()
	}
}

func (c *Controller) enter() {
	p := c.panes[c.active]
	e, ok := p.Selected()
	if !ok {
		c.setMessage("No directory selected.")
		return
	}
	loc, ok := p.EnterSelected()
	if !ok {
		c.setError("Cannot enter %q because it is not a directory!", e.Name)
		return
	}
	c.list(listRequest{side: c.active, dir: loc})
}

func (c *Controller) goUp() {
	p := c.panes[c.active]
	loc, ok := p.GoUp()
	if !ok {
		return
	}
	c.list(listRequest{side: c.active, dir: loc, selectName: c.fs[c.active].Base(p.Location())})
}

// MakeDirectory creates name inside the active pane's location.
func (c *Controller) MakeDirectory(name string) {
	if c.lifecycle == Terminated {
		return
	}
	if !vfs.ValidName(name) {
		c.setError("Invalid directory name %q.", name)
		return
	}
	side := c.active
	fs := c.fs[side]
	loc := c.panes[side].Location()
	dir := fs.Join(loc, name)

	go func() {
		err := fs.Mkdir(dir)
		c.post(func() {
			if err != nil {
				log.Printf("[ERROR] Failed to create directory %s: %v", dir, err)
				c.setError("Error: Unable to create %q: %v", name, err)
				if errors.Is(err, vfs.ErrConnectionLost) {
					c.sessionLost(err)
				}
				return
			}
			c.setMessage("Created directory %q.", name)
			if c.panes[side].Location() == loc {
				c.refreshSelecting(side, name)
			}
		})
	}()
}

func (c *Controller) startTransfer() {
	if c.lifecycle != Running {
		c.setError("Cannot start a transfer while quitting.")
		return
	}
	src := c.active
	dst := src.Other()
	e, ok := c.panes[src].Selected()
	if !ok {
		c.setMessage("No file selected.")
		return
	}

	direction := transfer.Upload
	if src == RemoteSide {
		direction = transfer.Download
	}
	id := c.engine.NewBatch()
	ctx, cancel := context.WithCancel(context.Background())
	destDir := c.panes[dst].Location()
	b := newBatch(id, direction, e.Name, dst, destDir, cancel, c.now())
	c.batches[id] = b
	c.order = append(c.order, id)
	c.planning++

	req := transfer.Request{
		Batch:          id,
		Direction:      direction,
		Source:         c.fs[src],
		SourceDir:      c.panes[src].Location(),
		Entry:          e,
		Destination:    c.fs[dst],
		DestinationDir: destDir,
	}
	log.Printf("[INFO] Batch %d: %s %s -> %s", id, direction, c.fs[src].Join(req.SourceDir, e.Name), destDir)
	c.setMessage("Preparing to %s %q...", direction, e.Name)

	go func() {
		plan, err := c.planner.Plan(ctx, req)
		c.post(func() { c.planned(b, plan, err) })
	}()
}

// planned folds a planning result and queues its tasks.
func (c *Controller) planned(b *batch, plan *transfer.Plan, err error) {
	c.planning--
	if err != nil {
		b.planned = true
		if !b.cancelRequested {
			b.planErr = err
			log.Printf("[ERROR] Batch %d: planning failed: %v", b.id, err)
			c.setError("Error: Unable to %s %q: %v", b.direction, b.name, err)
			if errors.Is(err, vfs.ErrConnectionLost) {
				c.sessionLost(err)
			}
		}
		c.checkBatch(b)
		return
	}

	b.addPlan(plan)
	for _, f := range plan.Failures {
		if errors.Is(f, vfs.ErrConnectionLost) {
			c.sessionLost(f)
			break
		}
	}
	// A batch cancelled while planning still goes through the engine,
	// which cancels its tasks on arrival.
	c.engine.Enqueue(plan.Tasks)
	c.checkBatch(b)
}

// checkBatch marks b done once all its tasks are terminal and refreshes
// the pane it wrote into.
func (c *Controller) checkBatch(b *batch) {
	if b.done || !b.complete() {
		return
	}
	b.done = true
	b.finished = c.now()
	b.cancel()

	verb := "uploading"
	if b.direction == transfer.Download {
		verb = "downloading"
	}
	switch b.state() {
	case BatchCancelled:
		c.setMessage("Cancelled %s %q.", verb, b.name)
	case BatchFailed:
		// planned already reported it
	case BatchPartiallyFailed:
		c.setError("Finished %s %q with %d errors.", verb, b.name, len(b.failures))
	default:
		c.setMessage("Finished %s %q.", verb, b.name)
	}
	log.Printf("[INFO] Batch %d done: %d completed, %d failed, %d cancelled, %d bytes",
		b.id, b.completed, b.failed, b.cancelled, b.transferred)

	if b.destSide == RemoteSide && c.fatal != nil {
		return
	}
	c.refresh(b.destSide)
}

func (c *Controller) cancelBatch(b *batch) {
	if b.done || b.cancelRequested {
		return
	}
	b.cancelRequested = true
	b.cancel()
	c.engine.Cancel(b.id)
}

func (c *Controller) cancelNewest() {
	for i := len(c.order) - 1; i >= 0; i-- {
		b := c.batches[c.order[i]]
		if b.done || b.cancelRequested {
			continue
		}
		c.cancelBatch(b)
		c.setMessage("Cancelling %s of %q...", b.direction, b.name)
		return
	}
	c.setMessage("No active transfer to cancel.")
}

func (c *Controller) dismissFinished() {
	kept := c.order[:0]
	for _, id := range c.order {
		if c.batches[id].done {
			delete(c.batches, id)
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
}

func (c *Controller) busy() bool {
	return c.planning > 0 || !c.engine.Idle()
}

func (c *Controller) quit() {
	if c.lifecycle != Running {
		return
	}
	c.setLifecycle(Quitting)
	c.checkQuit()
	if c.lifecycle == Quitting {
		c.setMessage("Waiting for %d transfers to finish. Press Q to force quit.", c.outstanding())
	}
}

func (c *Controller) outstanding() int {
	s := c.engine.Stats()
	return s.Pending + s.Running
}

func (c *Controller) checkQuit() {
	if c.lifecycle == Quitting && !c.busy() {
		c.terminate()
	}
}

func (c *Controller) forceQuit() {
	if c.lifecycle == Terminated {
		return
	}
	c.setLifecycle(ForceQuitting)
	for _, id := range c.order {
		c.cancelBatch(c.batches[id])
	}
	c.engine.Close()
	c.terminate()
}

func (c *Controller) terminate() {
	c.setLifecycle(Terminated)
}

// sessionLost records the first fatal session error, stops all transfers
// and starts shutting down.
func (c *Controller) sessionLost(err error) {
	if c.fatal != nil {
		return
	}
	c.fatal = &SessionError{Err: err}
	log.Printf("[ERROR] %v", c.fatal)
	c.setError("%v", c.fatal)
	for _, id := range c.order {
		c.cancelBatch(c.batches[id])
	}
	if c.lifecycle == Running {
		c.setLifecycle(Quitting)
	}
}

// Tick folds everything that happened in the background since the last
// call. It never blocks.
func (c *Controller) Tick() {
	if c.lifecycle == Terminated {
		return
	}

	for drained := false; !drained; {
		select {
		case f := <-c.results:
			f()
		default:
			drained = true
		}
	}

	for _, ev := range c.engine.PollEvents() {
		b, ok := c.batches[ev.Batch]
		if !ok {
			continue
		}
		if !b.apply(ev) {
			continue
		}
		if ev.State == transfer.Failed && errors.Is(ev.Err, vfs.ErrConnectionLost) {
			c.sessionLost(ev.Err)
		}
		c.checkBatch(b)
	}

	if c.watcher != nil {
		select {
		case dir := <-c.watcher.Changes():
			if dir == filepath.Clean(c.panes[LocalSide].Location()) {
				c.refresh(LocalSide)
			}
		default:
		}
	}

	if c.alive != nil && c.fatal == nil && !c.alive() {
		c.sessionLost(vfs.ErrConnectionLost)
	}

	now := c.now()
	for _, id := range c.order {
		if b := c.batches[id]; b.planned && !b.done {
			b.sample(now)
		}
	}

	c.checkQuit()
}

// Snapshot returns a copy of the state for rendering.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Active:         c.active,
		Lifecycle:      c.lifecycle,
		ShowHelp:       c.showHelp,
		Message:        c.message,
		MessageIsError: c.messageErr,
		Fatal:          c.fatal,
		Stats:          c.engine.Stats(),
	}
	for i, p := range c.panes {
		s.Panes[i] = PaneView{
			Label:      c.fs[i].Label(),
			Location:   p.Location(),
			Entries:    p.Visible(),
			Selected:   p.SelectedIndex(),
			ShowHidden: p.ShowHidden(),
			Loading:    p.Loading(),
			Err:        p.Err(),
		}
	}
	for _, id := range c.order {
		s.Batches = append(s.Batches, c.batches[id].view())
	}
	return s
}

// Location returns the current directory of a pane.
func (c *Controller) Location(side Side) string {
	return c.panes[side].Location()
}

// Lifecycle returns the current run state.
func (c *Controller) Lifecycle() Lifecycle { return c.lifecycle }

// Err returns the fatal session error, if any.
func (c *Controller) Err() error { return c.fatal }

// Close stops background work. Workers still copying are cancelled; use
// Wait to block until they have returned.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.engine.Close()
		if c.watcher != nil {
			if err := c.watcher.Close(); err != nil {
				log.Printf("[WARN] Failed to close watcher: %v", err)
			}
		}
	})
}

// Wait blocks until every transfer worker has returned.
func (c *Controller) Wait() {
	c.engine.Wait()
}
