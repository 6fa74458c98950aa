// Package vfstest provides an in-memory vfs.FileSystem with fault
// injection for tests.
package vfstest

import (
	"bytes"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quocson95/sftpane/pkg/vfs"
)

// MemFS is a slash-separated in-memory filesystem rooted at "/".
type MemFS struct {
	vfs.SlashPaths

	label string

	mu         sync.Mutex
	files      map[string][]byte
	dirs       map[string]bool
	readDirErr map[string]error
	openErr    map[string]error
	createErr  map[string]error
	writeErr   map[string]error
	gates      map[string]chan struct{}
	mkdirs     []string
	readDirs   int
}

// New returns an empty filesystem containing only the root directory.
func New(label string) *MemFS {
	return &MemFS{
		label:      label,
		files:      make(map[string][]byte),
		dirs:       map[string]bool{"/": true},
		readDirErr: make(map[string]error),
		openErr:    make(map[string]error),
		createErr:  make(map[string]error),
		writeErr:   make(map[string]error),
		gates:      make(map[string]chan struct{}),
	}
}

// AddDir creates p and its parents.
func (m *MemFS) AddDir(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addDirLocked(path.Clean(p))
}

// AddFile stores data at p, creating parent directories.
func (m *MemFS) AddFile(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	m.addDirLocked(path.Dir(p))
	m.files[p] = append([]byte(nil), data...)
}

func (m *MemFS) addDirLocked(p string) {
	for p != "/" && !m.dirs[p] {
		m.dirs[p] = true
		p = path.Dir(p)
	}
}

// File returns the current content of p.
func (m *MemFS) File(p string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path.Clean(p)]
	return append([]byte(nil), data...), ok
}

// IsDir reports whether p exists as a directory.
func (m *MemFS) IsDir(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirs[path.Clean(p)]
}

// Mkdirs returns every path passed to Mkdir, in call order.
func (m *MemFS) Mkdirs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.mkdirs...)
}

// ReadDirCalls returns how many times ReadDir was called.
func (m *MemFS) ReadDirCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readDirs
}

// FailReadDir makes ReadDir(p) return err.
func (m *MemFS) FailReadDir(p string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readDirErr[path.Clean(p)] = err
}

// FailOpen makes Open(p) return err.
func (m *MemFS) FailOpen(p string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr[path.Clean(p)] = err
}

// FailCreate makes Create(p) return err.
func (m *MemFS) FailCreate(p string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr[path.Clean(p)] = err
}

// FailWrite makes every Write to a file created at p return err.
func (m *MemFS) FailWrite(p string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr[path.Clean(p)] = err
}

// Gate makes every Read of p wait for a value on (or the close of) the
// returned channel.
func (m *MemFS) Gate(p string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.gates[path.Clean(p)] = ch
	return ch
}

func (m *MemFS) Label() string { return m.label }

func (m *MemFS) ReadDir(dir string) ([]vfs.Entry, error) {
	dir = path.Clean(dir)
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readDirs++
	if err, ok := m.readDirErr[dir]; ok {
		return nil, &vfs.PathError{Op: "readdir", Path: dir, Kind: kindOf(err), Err: err}
	}
	if !m.dirs[dir] {
		return nil, &vfs.PathError{Op: "readdir", Path: dir, Kind: vfs.ErrNotFound, Err: os.ErrNotExist}
	}

	var entries []vfs.Entry
	for p := range m.dirs {
		if p != "/" && path.Dir(p) == dir {
			entries = append(entries, vfs.NewEntry(path.Base(p), true, 0, time.Time{}))
		}
	}
	for p, data := range m.files {
		if path.Dir(p) == dir {
			entries = append(entries, vfs.NewEntry(path.Base(p), false, int64(len(data)), time.Time{}))
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (m *MemFS) Stat(p string) (vfs.Entry, error) {
	p = path.Clean(p)
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dirs[p] {
		return vfs.NewEntry(path.Base(p), true, 0, time.Time{}), nil
	}
	if data, ok := m.files[p]; ok {
		return vfs.NewEntry(path.Base(p), false, int64(len(data)), time.Time{}), nil
	}
	return vfs.Entry{}, &vfs.PathError{Op: "stat", Path: p, Kind: vfs.ErrNotFound, Err: os.ErrNotExist}
}

func (m *MemFS) Open(p string) (vfs.Reader, error) {
	p = path.Clean(p)
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.openErr[p]; ok {
		return nil, &vfs.PathError{Op: "open", Path: p, Kind: kindOf(err), Err: err}
	}
	data, ok := m.files[p]
	if !ok {
		return nil, &vfs.PathError{Op: "open", Path: p, Kind: vfs.ErrNotFound, Err: os.ErrNotExist}
	}
	return &memReader{
		r:    bytes.NewReader(append([]byte(nil), data...)),
		size: int64(len(data)),
		gate: m.gates[p],
	}, nil
}

func (m *MemFS) Create(p string) (io.WriteCloser, error) {
	p = path.Clean(p)
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.createErr[p]; ok {
		return nil, &vfs.PathError{Op: "create", Path: p, Kind: kindOf(err), Err: err}
	}
	if !m.dirs[path.Dir(p)] {
		return nil, &vfs.PathError{Op: "create", Path: p, Kind: vfs.ErrNotFound, Err: os.ErrNotExist}
	}
	if m.dirs[p] {
		return nil, &vfs.PathError{Op: "create", Path: p, Err: os.ErrExist}
	}
	m.files[p] = nil
	return &memWriter{fs: m, path: p}, nil
}

func (m *MemFS) Mkdir(p string) error {
	p = path.Clean(p)
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mkdirs = append(m.mkdirs, p)
	if m.dirs[p] {
		return nil
	}
	if _, ok := m.files[p]; ok {
		return &vfs.PathError{Op: "mkdir", Path: p, Kind: vfs.ErrAlreadyExistsAsFile, Err: os.ErrExist}
	}
	if !m.dirs[path.Dir(p)] {
		return &vfs.PathError{Op: "mkdir", Path: p, Kind: vfs.ErrNotFound, Err: os.ErrNotExist}
	}
	m.dirs[p] = true
	return nil
}

func kindOf(err error) error {
	for _, kind := range []error{vfs.ErrNotFound, vfs.ErrPermission, vfs.ErrConnectionLost, vfs.ErrDiskFull} {
		if err == kind || strings.Contains(err.Error(), kind.Error()) {
			return kind
		}
	}
	return nil
}

type memReader struct {
	r    *bytes.Reader
	size int64
	gate chan struct{}
}

func (r *memReader) Read(b []byte) (int, error) {
	if r.gate != nil {
		<-r.gate
	}
	return r.r.Read(b)
}

func (r *memReader) Size() int64  { return r.size }
func (r *memReader) Close() error { return nil }

type memWriter struct {
	fs   *MemFS
	path string
}

func (w *memWriter) Write(b []byte) (int, error) {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	if err, ok := w.fs.writeErr[w.path]; ok {
		return 0, &vfs.PathError{Op: "write", Path: w.path, Kind: kindOf(err), Err: err}
	}
	w.fs.files[w.path] = append(w.fs.files[w.path], b...)
	return len(b), nil
}

func (w *memWriter) Close() error { return nil }
