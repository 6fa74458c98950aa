package vfs

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Error kinds reported by FileSystem implementations. Match them with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrPermission          = errors.New("permission denied")
	ErrConnectionLost      = errors.New("connection lost")
	ErrDiskFull            = errors.New("disk full")
	ErrAlreadyExistsAsFile = errors.New("already exists as a file")
)

// PathError records the operation and path that failed, the classified
// kind (may be nil) and the underlying collaborator error.
type PathError struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *PathError) Error() string {
	if e.Kind != nil && !errors.Is(e.Err, e.Kind) {
		return fmt.Sprintf("%s %s: %v (%v)", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}

// Wrap classifies err and wraps it in a PathError. It returns nil for a nil err.
func Wrap(op, path string, err error, classify func(error) error) error {
	if err == nil {
		return nil
	}
	var kind error
	if classify != nil {
		kind = classify(err)
	}
	return &PathError{Op: op, Path: path, Kind: kind, Err: err}
}

// ClassifyLocal maps operating system errors onto the error kinds.
func ClassifyLocal(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermission
	case errors.Is(err, syscall.ENOSPC):
		return ErrDiskFull
	}
	return nil
}
