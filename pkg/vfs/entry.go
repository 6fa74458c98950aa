// Package vfs defines the filesystem capability shared by the local and
// remote sides of the browser, and the local implementation of it.
package vfs

import (
	"os"
	"sort"
	"strings"
	"time"
)

// HiddenPrefix marks hidden entries.
const HiddenPrefix = "."

// Entry is an immutable snapshot of one filesystem object.
type Entry struct {
	Name     string
	IsDir    bool
	Size     int64 // always 0 for directories
	Modified time.Time
	Mode     os.FileMode
	Symlink  bool // the listing resolved a symbolic link to produce this entry
}

// NewEntry builds an entry, dropping the size of directories.
func NewEntry(name string, isDir bool, size int64, modified time.Time) Entry {
	e := Entry{
		Name:     name,
		IsDir:    isDir,
		Size:     size,
		Modified: modified,
	}
	if isDir {
		e.Size = 0
		e.Mode = os.ModeDir
	}
	return e
}

// FromFileInfo converts an os.FileInfo using name as the entry name.
func FromFileInfo(name string, info os.FileInfo) Entry {
	e := NewEntry(name, info.IsDir(), info.Size(), info.ModTime())
	e.Mode = info.Mode()
	return e
}

// Hidden reports whether the entry name carries the hidden-file marker.
func (e Entry) Hidden() bool {
	return strings.HasPrefix(e.Name, HiddenPrefix)
}

// Regular reports whether the entry can be copied as a plain file.
func (e Entry) Regular() bool {
	return !e.IsDir && e.Mode.IsRegular()
}

// ValidName reports whether name is a single path element that cannot be
// used to escape the directory it is joined to.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

// Less orders directories before files, then by case-insensitive name. The
// case-sensitive name breaks ties so the order is total.
func Less(a, b Entry) bool {
	if a.IsDir != b.IsDir {
		return a.IsDir
	}
	la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if la != lb {
		return la < lb
	}
	return a.Name < b.Name
}

// SortEntries sorts entries in place with Less.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return Less(entries[i], entries[j])
	})
}
