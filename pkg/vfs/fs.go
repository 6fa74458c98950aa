package vfs

import (
	"io"
	"path"
	"path/filepath"
	"strings"
)

// Reader is an open source file whose total length is known up front.
type Reader interface {
	io.ReadCloser
	Size() int64
}

// Paths is the path arithmetic of one side of the browser.
type Paths interface {
	Join(elem ...string) string
	Dir(p string) string
	Base(p string) string
	// Within reports whether p is base or lies beneath it.
	Within(base, p string) bool
}

// FileSystem is the capability set both panes and the transfer engine work
// against. Implementations must be safe for concurrent use.
type FileSystem interface {
	Paths

	Label() string
	ReadDir(dir string) ([]Entry, error)
	Stat(p string) (Entry, error)
	Open(p string) (Reader, error)
	// Create truncates or creates p for writing.
	Create(p string) (io.WriteCloser, error)
	// Mkdir succeeds if p already is a directory and fails with
	// ErrAlreadyExistsAsFile if it is something else.
	Mkdir(p string) error
}

// SlashPaths uses forward-slash separated paths regardless of platform.
type SlashPaths struct{}

func (SlashPaths) Join(elem ...string) string { return path.Join(elem...) }
func (SlashPaths) Dir(p string) string        { return path.Dir(p) }
func (SlashPaths) Base(p string) string       { return path.Base(p) }

func (SlashPaths) Within(base, p string) bool {
	base, p = path.Clean(base), path.Clean(p)
	if base == p || base == "/" && strings.HasPrefix(p, "/") {
		return true
	}
	return strings.HasPrefix(p, base+"/")
}

// NativePaths uses the host operating system's path rules.
type NativePaths struct{}

func (NativePaths) Join(elem ...string) string { return filepath.Join(elem...) }
func (NativePaths) Dir(p string) string        { return filepath.Dir(p) }
func (NativePaths) Base(p string) string       { return filepath.Base(p) }

func (NativePaths) Within(base, p string) bool {
	rel, err := filepath.Rel(base, p)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// IsRoot reports whether p is its own parent.
func IsRoot(paths Paths, p string) bool {
	return paths.Dir(p) == p
}
