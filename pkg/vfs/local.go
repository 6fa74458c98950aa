package vfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
)

// Local is the FileSystem of the machine the browser runs on.
type Local struct {
	NativePaths
}

// NewLocal returns the local filesystem.
func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Label() string { return "Local" }

// ReadDir lists dir. Symbolic links are resolved so that links to
// directories can be entered; dangling links are reported as-is.
func (l *Local) ReadDir(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, Wrap("readdir", dir, err, ClassifyLocal)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, d := range dirEntries {
		info, err := d.Info()
		if err != nil {
			// Removed between readdir and lstat.
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			if target, err := os.Stat(filepath.Join(dir, d.Name())); err == nil {
				e := FromFileInfo(d.Name(), target)
				e.Symlink = true
				entries = append(entries, e)
				continue
			}
		}
		entries = append(entries, FromFileInfo(d.Name(), info))
	}
	return entries, nil
}

func (l *Local) Stat(p string) (Entry, error) {
	info, err := os.Stat(p)
	if err != nil {
		return Entry{}, Wrap("stat", p, err, ClassifyLocal)
	}
	return FromFileInfo(filepath.Base(p), info), nil
}

func (l *Local) Open(p string) (Reader, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, Wrap("open", p, err, ClassifyLocal)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Wrap("stat", p, err, ClassifyLocal)
	}
	if info.IsDir() {
		f.Close()
		return nil, &PathError{Op: "open", Path: p, Err: fmt.Errorf("is a directory")}
	}
	return &localReader{File: f, size: info.Size()}, nil
}

func (l *Local) Create(p string) (io.WriteCloser, error) {
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, Wrap("create", p, err, ClassifyLocal)
	}
	return &localWriter{File: f}, nil
}

func (l *Local) Mkdir(p string) error {
	err := os.Mkdir(p, 0755)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		info, statErr := os.Stat(p)
		if statErr == nil && info.IsDir() {
			return nil
		}
		log.Printf("[WARN] Cannot create directory %s: a file is in the way", p)
		return &PathError{Op: "mkdir", Path: p, Kind: ErrAlreadyExistsAsFile, Err: err}
	}
	return Wrap("mkdir", p, err, ClassifyLocal)
}

type localReader struct {
	*os.File
	size int64
}

func (r *localReader) Size() int64 { return r.size }

func (r *localReader) Read(b []byte) (int, error) {
	n, err := r.File.Read(b)
	if err != nil && err != io.EOF {
		err = Wrap("read", r.Name(), err, ClassifyLocal)
	}
	return n, err
}

type localWriter struct {
	*os.File
}

func (w *localWriter) Write(b []byte) (int, error) {
	n, err := w.File.Write(b)
	if err != nil {
		err = Wrap("write", w.Name(), err, ClassifyLocal)
	}
	return n, err
}

func (w *localWriter) Close() error {
	return Wrap("close", w.Name(), w.File.Close(), ClassifyLocal)
}
