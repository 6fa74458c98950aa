package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/quocson95/sftpane/pkg/app"
	"github.com/quocson95/sftpane/pkg/vfs/vfstest"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T) (*Model, *vfstest.MemFS, *vfstest.MemFS) {
	t.Helper()
	local := vfstest.New("Local")
	remote := vfstest.New("Remote")
	local.AddFile("/home/u/report.pdf", make([]byte, 2048))
	local.AddDir("/home/u/photos")
	remote.AddFile("/srv/backup.tar", make([]byte, 10))

	ctrl := app.New(app.Options{
		Local:      local,
		Remote:     remote,
		LocalDir:   "/home/u",
		RemoteDirs: []string{"/srv"},
	})
	t.Cleanup(ctrl.Close)

	m := NewModel(ctrl, "tester@example.com")
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	waitFor(t, m, func(s app.Snapshot) bool {
		return !s.Panes[app.LocalSide].Loading && !s.Panes[app.RemoteSide].Loading
	})
	return m, local, remote
}

func waitFor(t *testing.T, m *Model, cond func(app.Snapshot) bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond(m.snap) {
		if time.Now().After(deadline) {
			t.Fatalf("timed out; snapshot: %+v", m.snap)
		}
		m.Update(tickMsg(time.Now()))
		time.Sleep(time.Millisecond)
	}
}

func TestResolve(t *testing.T) {
	keys := DefaultKeyMap()
	tests := []struct {
		name string
		msg  tea.KeyMsg
		want app.Key
	}{
		{"j moves down", runes("j"), app.KeyDown},
		{"arrow up", tea.KeyMsg{Type: tea.KeyUp}, app.KeyUp},
		{"tab switches", tea.KeyMsg{Type: tea.KeyTab}, app.KeySwitchPane},
		{"space transfers", tea.KeyMsg{Type: tea.KeySpace}, app.KeyTransfer},
		{"q quits", runes("q"), app.KeyQuit},
		{"Q forces", runes("Q"), app.KeyForceQuit},
		{"ctrl+c forces", tea.KeyMsg{Type: tea.KeyCtrlC}, app.KeyForceQuit},
		{"backspace goes up", tea.KeyMsg{Type: tea.KeyBackspace}, app.KeyParent},
		{"dot toggles hidden", runes("."), app.KeyToggleHidden},
		{"unbound", runes("z"), app.KeyNone},
		{"mkdir is handled by the model", runes("n"), app.KeyNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keys.Resolve(tt.msg); got != tt.want {
				t.Errorf("Resolve(%q) = %v, want %v", tt.msg.String(), got, tt.want)
			}
		})
	}
}

func TestModelView(t *testing.T) {
	m, _, _ := newTestModel(t)

	view := m.View()
	for _, want := range []string{"tester@example.com", "Local", "Remote", "report.pdf", "photos", "backup.tar", "/home/u", "/srv"} {
		if !strings.Contains(view, want) {
			t.Errorf("view is missing %q", want)
		}
	}

	m.Update(runes("?"))
	if !m.snap.ShowHelp {
		t.Fatal("? should open the help overlay")
	}
	if !strings.Contains(m.View(), "force quit") {
		t.Error("full help should list force quit")
	}
}

func TestModelTransfer(t *testing.T) {
	m, _, remote := newTestModel(t)

	// photos sorts first; move to the file.
	m.Update(runes("j"))
	m.Update(tea.KeyMsg{Type: tea.KeySpace})
	waitFor(t, m, func(s app.Snapshot) bool {
		return len(s.Batches) == 1 && s.Batches[0].State == app.BatchCompleted
	})

	if data, ok := remote.File("/srv/report.pdf"); !ok || len(data) != 2048 {
		t.Fatalf("upload did not complete: %d bytes", len(data))
	}
	if !strings.Contains(m.View(), "completed") {
		t.Error("view should show the finished batch")
	}
}

func TestModelMakeDirectory(t *testing.T) {
	m, local, _ := newTestModel(t)

	m.Update(runes("n"))
	if !m.creatingFolder {
		t.Fatal("n should open the folder prompt")
	}
	m.Update(runes("drafts"))
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.creatingFolder {
		t.Fatal("enter should close the folder prompt")
	}

	waitFor(t, m, func(s app.Snapshot) bool {
		for _, e := range s.Panes[app.LocalSide].Entries {
			if e.Name == "drafts" {
				return true
			}
		}
		return false
	})
	if !local.IsDir("/home/u/drafts") {
		t.Error("directory was not created")
	}
}

func TestModelForceQuit(t *testing.T) {
	m, _, _ := newTestModel(t)

	_, cmd := m.Update(runes("Q"))
	if cmd == nil {
		t.Fatal("force quit should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("force quit should quit the program")
	}
	if m.snap.Lifecycle != app.Terminated {
		t.Errorf("expected Terminated, got %v", m.snap.Lifecycle)
	}
}

func TestModelQuit(t *testing.T) {
	m, _, _ := newTestModel(t)

	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("an idle quit should terminate at once")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit should quit the program")
	}
}

func TestPasswordPrompt(t *testing.T) {
	t.Run("submit", func(t *testing.T) {
		m := NewPasswordPromptModel("Password", "tester@example.com's password:")
		m.Update(runes("s3cret"))
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if cmd == nil {
			t.Fatal("enter should end the prompt")
		}
		got, err := m.Result()
		if err != nil || got != "s3cret" {
			t.Errorf("Result() = %q, %v", got, err)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		m := NewPasswordPromptModel("Password", "")
		m.Update(runes("abc"))
		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if _, err := m.Result(); !errors.Is(err, ErrPromptCancelled) {
			t.Errorf("expected ErrPromptCancelled, got %v", err)
		}
	})
}

func TestConfirmPrompt(t *testing.T) {
	yes := NewConfirmModel("Unknown host", "Add it?")
	yes.Update(runes("y"))
	if !yes.Accepted() {
		t.Error("y should accept")
	}

	no := NewConfirmModel("Unknown host", "Add it?")
	no.Update(runes("x"))
	no.Update(runes("n"))
	if no.Accepted() {
		t.Error("n should decline")
	}
}
