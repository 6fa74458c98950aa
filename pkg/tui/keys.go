package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/quocson95/sftpane/pkg/app"
)

// KeyMap defines keybindings for the browser
type KeyMap struct {
	Up           key.Binding
	Down         key.Binding
	PageUp       key.Binding
	PageDown     key.Binding
	Top          key.Binding
	Bottom       key.Binding
	Enter        key.Binding
	Parent       key.Binding
	Switch       key.Binding
	Transfer     key.Binding
	ToggleHidden key.Binding
	Refresh      key.Binding
	MakeDir      key.Binding
	CancelBatch  key.Binding
	Dismiss      key.Binding
	Help         key.Binding
	Quit         key.Binding
	ForceQuit    key.Binding
}

// DefaultKeyMap returns the default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "page down"),
		),
		Top: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("home/g", "go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("end/G", "go to bottom"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open directory"),
		),
		Parent: key.NewBinding(
			key.WithKeys("backspace", "-"),
			key.WithHelp("backspace", "parent directory"),
		),
		Switch: key.NewBinding(
			key.WithKeys("tab", "left", "right", "h", "l"),
			key.WithHelp("tab", "switch pane"),
		),
		Transfer: key.NewBinding(
			key.WithKeys(" ", "t"),
			key.WithHelp("space/t", "transfer"),
		),
		ToggleHidden: key.NewBinding(
			key.WithKeys("."),
			key.WithHelp(".", "hidden files"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r", "f5"),
			key.WithHelp("r", "refresh"),
		),
		MakeDir: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new folder"),
		),
		CancelBatch: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cancel transfer"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "clear finished"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("Q", "ctrl+c"),
			key.WithHelp("Q", "force quit"),
		),
	}
}

// ShortHelp returns keybindings for the mini help view
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Switch, k.Enter, k.Transfer, k.CancelBatch, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom},
		{k.Enter, k.Parent, k.Switch, k.ToggleHidden, k.Refresh},
		{k.Transfer, k.MakeDir, k.CancelBatch, k.Dismiss},
		{k.Help, k.Quit, k.ForceQuit},
	}
}

// Resolve maps a key press to a controller key. MakeDir is handled by the
// model and resolves to KeyNone.
func (k KeyMap) Resolve(msg tea.KeyMsg) app.Key {
	bindings := []struct {
		binding key.Binding
		key     app.Key
	}{
		{k.ForceQuit, app.KeyForceQuit},
		{k.Quit, app.KeyQuit},
		{k.Up, app.KeyUp},
		{k.Down, app.KeyDown},
		{k.PageUp, app.KeyPageUp},
		{k.PageDown, app.KeyPageDown},
		{k.Top, app.KeyTop},
		{k.Bottom, app.KeyBottom},
		{k.Enter, app.KeyEnter},
		{k.Parent, app.KeyParent},
		{k.Switch, app.KeySwitchPane},
		{k.Transfer, app.KeyTransfer},
		{k.ToggleHidden, app.KeyToggleHidden},
		{k.Refresh, app.KeyRefresh},
		{k.CancelBatch, app.KeyCancelBatch},
		{k.Dismiss, app.KeyDismiss},
		{k.Help, app.KeyHelp},
	}
	for _, b := range bindings {
		if key.Matches(msg, b.binding) {
			return b.key
		}
	}
	return app.KeyNone
}
