package vfs

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of filesystem events into one change.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reports changes to a single local directory. Retargeting it with
// Watch drops the previous directory.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	changes  chan string

	mu    sync.Mutex
	dir   string
	timer *time.Timer

	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher starts an idle watcher. Call Watch to pick a directory.
func NewWatcher(debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		watcher:  fw,
		debounce: debounce,
		changes:  make(chan string, 1),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Watch switches the watched directory to dir.
func (w *Watcher) Watch(dir string) error {
	dir = filepath.Clean(dir)

	w.mu.Lock()
	defer w.mu.Unlock()

	if dir == w.dir {
		return nil
	}
	if w.dir != "" {
		if err := w.watcher.Remove(w.dir); err != nil {
			log.Printf("[WARN] Failed to stop watching %s: %v", w.dir, err)
		}
		w.dir = ""
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.dir = dir
	return nil
}

// Changes delivers the directory that changed, at most one pending value.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			w.schedule(filepath.Dir(event.Name))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[WARN] Directory watcher error: %v", err)
		}
	}
}

func (w *Watcher) schedule(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if dir != w.dir {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if dir != w.dir {
			return
		}
		// Replace whatever is pending; it may name a directory that is no
		// longer watched.
		select {
		case <-w.changes:
		default:
		}
		select {
		case w.changes <- dir:
		case <-w.done:
		default:
		}
	})
}
