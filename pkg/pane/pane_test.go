package pane

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/quocson95/sftpane/pkg/vfs"
)

func file(name string, size int64) vfs.Entry { return vfs.NewEntry(name, false, size, time.Time{}) }
func dir(name string) vfs.Entry              { return vfs.NewEntry(name, true, 0, time.Time{}) }

func names(entries []vfs.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func newPane(entries ...vfs.Entry) *Pane {
	p := New(vfs.SlashPaths{}, "/home/u", false)
	p.ApplyListing(entries)
	return p
}

func TestApplyListingSortsDirectoriesFirst(t *testing.T) {
	p := newPane(file("photo.png", 10), dir("docs"), file("Alpha.txt", 1), dir("Zoo"))

	want := []string{"docs", "Zoo", "Alpha.txt", "photo.png"}
	if got := names(p.Visible()); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if p.SelectedIndex() != 0 {
		t.Errorf("expected first entry selected, got %d", p.SelectedIndex())
	}
}

func TestEmptyPaneHasNoSelection(t *testing.T) {
	p := newPane()
	if _, ok := p.Selected(); ok || p.SelectedIndex() != -1 {
		t.Fatal("empty pane must have no selection")
	}
	p.MoveSelection(3)
	if p.SelectedIndex() != -1 {
		t.Fatal("MoveSelection on empty pane must be a no-op")
	}
	if _, ok := p.EnterSelected(); ok {
		t.Fatal("EnterSelected on empty pane must be a no-op")
	}
}

func TestMoveSelectionStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		var entries []vfs.Entry
		n := rng.Intn(8)
		for i := 0; i < n; i++ {
			name := string(rune('a' + i))
			if rng.Intn(3) == 0 {
				name = "." + name
			}
			entries = append(entries, file(name, 1))
		}
		p := newPane(entries...)

		for step := 0; step < 40; step++ {
			switch rng.Intn(5) {
			case 0:
				p.ToggleHidden()
			case 1:
				p.Top()
			case 2:
				p.Bottom()
			default:
				p.MoveSelection(rng.Intn(11) - 5)
			}

			visible := p.Len()
			sel := p.SelectedIndex()
			if visible == 0 && sel != -1 {
				t.Fatalf("round %d step %d: selection %d on empty view", round, step, sel)
			}
			if visible > 0 && (sel < 0 || sel >= visible) {
				t.Fatalf("round %d step %d: selection %d outside [0,%d)", round, step, sel, visible)
			}
		}
	}
}

func TestEnterSelected(t *testing.T) {
	p := newPane(dir("docs"), file("photo.png", 10))

	loc, ok := p.EnterSelected()
	if !ok || loc != "/home/u/docs" {
		t.Fatalf("EnterSelected = %q, %v", loc, ok)
	}

	p.MoveSelection(1)
	if _, ok := p.EnterSelected(); ok {
		t.Fatal("entering a file must not navigate")
	}
	if p.Location() != "/home/u" {
		t.Fatal("EnterSelected must not change the location by itself")
	}
}

func TestGoUp(t *testing.T) {
	p := New(vfs.SlashPaths{}, "/home/u", false)
	loc, ok := p.GoUp()
	if !ok || loc != "/home" {
		t.Fatalf("GoUp = %q, %v", loc, ok)
	}

	root := New(vfs.SlashPaths{}, "/", false)
	if _, ok := root.GoUp(); ok {
		t.Fatal("GoUp at root must be a no-op")
	}
}

func TestSetLocationSelectsChildWhenGoingUp(t *testing.T) {
	p := New(vfs.SlashPaths{}, "/home/u/docs", false)
	p.ApplyListing([]vfs.Entry{file("a.txt", 1)})

	parent, _ := p.GoUp()
	p.SetLocation(parent, []vfs.Entry{dir("docs"), dir("music"), file("x", 1)}, "docs")

	if p.Location() != "/home/u" {
		t.Fatalf("location = %q", p.Location())
	}
	if e, _ := p.Selected(); e.Name != "docs" {
		t.Errorf("expected the directory we left to be selected, got %q", e.Name)
	}

	p.SetLocation("/home/u/music", []vfs.Entry{file("song.mp3", 1)}, "")
	if p.SelectedIndex() != 0 {
		t.Errorf("expected first entry selected after entering, got %d", p.SelectedIndex())
	}
}

func TestToggleHiddenTwiceRestoresView(t *testing.T) {
	p := newPane(file(".cache", 1), file("b", 1), file("a", 1), dir(".git"), dir("src"))
	p.MoveSelection(1)
	before := names(p.Visible())
	selBefore, _ := p.Selected()

	p.ToggleHidden()
	p.ToggleHidden()

	if got := names(p.Visible()); !reflect.DeepEqual(got, before) {
		t.Fatalf("visible order changed: %v -> %v", before, got)
	}
	if sel, _ := p.Selected(); sel.Name != selBefore.Name {
		t.Errorf("selection changed: %q -> %q", selBefore.Name, sel.Name)
	}
}

func TestToggleHiddenRevealsCacheInPlace(t *testing.T) {
	p := newPane(file("zeta", 1), file(".cache", 1), file("alpha", 1), dir("docs"))

	hidden := names(p.Visible())
	if want := []string{"docs", "alpha", "zeta"}; !reflect.DeepEqual(hidden, want) {
		t.Fatalf("hidden view = %v, want %v", hidden, want)
	}

	p.MoveSelection(2) // zeta
	p.ToggleHidden()

	shown := names(p.Visible())
	if want := []string{"docs", ".cache", "alpha", "zeta"}; !reflect.DeepEqual(shown, want) {
		t.Fatalf("shown view = %v, want %v", shown, want)
	}
	if sel, _ := p.Selected(); sel.Name != "zeta" {
		t.Errorf("selection should stay on zeta, got %q", sel.Name)
	}
}

func TestToggleHiddenFallsBackToFirst(t *testing.T) {
	p := newPane(file(".env", 1), file("main.go", 1))
	p.ToggleHidden()
	if !p.SelectName(".env") {
		t.Fatal(".env should be selectable once shown")
	}
	p.ToggleHidden()
	if sel, _ := p.Selected(); sel.Name != "main.go" || p.SelectedIndex() != 0 {
		t.Errorf("expected fallback to first row, got %q at %d", sel.Name, p.SelectedIndex())
	}
}

func TestApplyListingKeepsSelection(t *testing.T) {
	p := newPane(file("a", 1), file("b", 1), file("c", 1))
	p.SelectName("b")

	p.ApplyListing([]vfs.Entry{file("0", 1), file("a", 1), file("b", 1), file("c", 1)})
	if sel, _ := p.Selected(); sel.Name != "b" {
		t.Errorf("selection should follow b, got %q", sel.Name)
	}

	p.SelectName("c")
	p.ApplyListing([]vfs.Entry{file("a", 1)})
	if p.SelectedIndex() != 0 {
		t.Errorf("selection should clamp to 0 when c vanished, got %d", p.SelectedIndex())
	}

	p.ApplyListing(nil)
	if p.SelectedIndex() != -1 {
		t.Error("selection must be absent for an empty listing")
	}
}

func TestSetErrorKeepsEntries(t *testing.T) {
	p := newPane(file("a", 1))
	p.SetError(vfs.ErrPermission)
	if p.Err() == nil || p.Len() != 1 {
		t.Fatal("error should be recorded without dropping the listing")
	}
	p.ApplyListing([]vfs.Entry{file("a", 1)})
	if p.Err() != nil {
		t.Error("a successful listing clears the error")
	}
}
