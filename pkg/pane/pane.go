// Package pane holds the navigation and selection state of one side of the
// browser. A Pane never performs I/O: it computes the locations to list and
// applies listings handed back to it.
package pane

import (
	"github.com/quocson95/sftpane/pkg/vfs"
)

// Pane is a directory view with a cursor. It is not safe for concurrent use.
type Pane struct {
	paths      vfs.Paths
	location   string
	entries    []vfs.Entry // sorted, including hidden
	visible    []int       // indexes into entries
	selected   int         // index into visible, -1 when nothing is selected
	showHidden bool
	err        error
	loading    bool
}

// New creates an empty pane at location. The location is listed by the
// caller and applied with ApplyListing.
func New(paths vfs.Paths, location string, showHidden bool) *Pane {
	return &Pane{
		paths:      paths,
		location:   location,
		selected:   -1,
		showHidden: showHidden,
		loading:    true,
	}
}

func (p *Pane) Location() string  { return p.location }
func (p *Pane) ShowHidden() bool  { return p.showHidden }
func (p *Pane) Err() error        { return p.err }
func (p *Pane) Loading() bool     { return p.loading }
func (p *Pane) SetLoading(b bool) { p.loading = b }

// SetError records a failed listing. The current entries stay in place.
func (p *Pane) SetError(err error) {
	p.err = err
	p.loading = false
}

// Visible returns the entries shown to the user, in display order.
func (p *Pane) Visible() []vfs.Entry {
	out := make([]vfs.Entry, len(p.visible))
	for i, idx := range p.visible {
		out[i] = p.entries[idx]
	}
	return out
}

// Len returns the number of visible entries.
func (p *Pane) Len() int { return len(p.visible) }

// SelectedIndex returns the cursor position within Visible, or -1.
func (p *Pane) SelectedIndex() int { return p.selected }

// Selected returns the entry under the cursor.
func (p *Pane) Selected() (vfs.Entry, bool) {
	if p.selected < 0 || p.selected >= len(p.visible) {
		return vfs.Entry{}, false
	}
	return p.entries[p.visible[p.selected]], true
}

// MoveSelection moves the cursor by delta, clamped to the visible entries.
func (p *Pane) MoveSelection(delta int) {
	if len(p.visible) == 0 {
		return
	}
	p.selectIndex(p.selected + delta)
}

// Top moves the cursor to the first entry.
func (p *Pane) Top() { p.MoveSelection(-len(p.visible)) }

// Bottom moves the cursor to the last entry.
func (p *Pane) Bottom() { p.MoveSelection(len(p.visible)) }

func (p *Pane) selectIndex(i int) {
	if len(p.visible) == 0 {
		p.selected = -1
		return
	}
	if i < 0 {
		i = 0
	}
	if i > len(p.visible)-1 {
		i = len(p.visible) - 1
	}
	p.selected = i
}

// SelectName moves the cursor to the visible entry called name.
func (p *Pane) SelectName(name string) bool {
	for i, idx := range p.visible {
		if p.entries[idx].Name == name {
			p.selected = i
			return true
		}
	}
	return false
}

// EnterSelected returns the location of the selected directory.
func (p *Pane) EnterSelected() (string, bool) {
	e, ok := p.Selected()
	if !ok || !e.IsDir {
		return "", false
	}
	return p.paths.Join(p.location, e.Name), true
}

// GoUp returns the parent location, or false at the root.
func (p *Pane) GoUp() (string, bool) {
	if vfs.IsRoot(p.paths, p.location) {
		return "", false
	}
	return p.paths.Dir(p.location), true
}

// ToggleHidden flips hidden-entry visibility, keeping the selected entry
// when it stays visible.
func (p *Pane) ToggleHidden() {
	prev, ok := p.Selected()
	p.showHidden = !p.showHidden
	p.refilter(prev.Name, ok, 0)
}

// ApplyListing replaces the entries of the current location.
func (p *Pane) ApplyListing(entries []vfs.Entry) {
	prev, ok := p.Selected()
	p.entries = sorted(entries)
	p.err = nil
	p.loading = false
	p.refilter(prev.Name, ok, p.selected)
}

// SetLocation moves the pane to location with its freshly fetched listing.
// When selectName is visible it gets the cursor, otherwise the first entry.
func (p *Pane) SetLocation(location string, entries []vfs.Entry, selectName string) {
	p.location = location
	p.entries = sorted(entries)
	p.err = nil
	p.loading = false
	p.refilter(selectName, selectName != "", 0)
}

// refilter rebuilds the visible index. The entry called keep gets the
// cursor when still visible; otherwise fallback is clamped.
func (p *Pane) refilter(keep string, hasKeep bool, fallback int) {
	p.visible = p.visible[:0]
	for i, e := range p.entries {
		if p.showHidden || !e.Hidden() {
			p.visible = append(p.visible, i)
		}
	}

	if hasKeep {
		for i, idx := range p.visible {
			if p.entries[idx].Name == keep {
				p.selected = i
				return
			}
		}
	}
	p.selectIndex(fallback)
}

func sorted(entries []vfs.Entry) []vfs.Entry {
	out := make([]vfs.Entry, len(entries))
	copy(out, entries)
	vfs.SortEntries(out)
	return out
}
