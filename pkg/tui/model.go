package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/quocson95/sftpane/pkg/app"
)

// frameInterval paces controller ticks, about 30 per second.
const frameInterval = time.Second / 30

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model adapts an app.Controller to bubbletea. All controller calls happen
// inside Update.
type Model struct {
	ctrl  *app.Controller
	title string
	keys  KeyMap

	help     help.Model
	progress progress.Model
	spinner  spinner.Model

	// Input state
	creatingFolder bool
	input          textinput.Model

	snap   app.Snapshot
	width  int
	height int
}

// NewModel creates the browser model for ctrl.
func NewModel(ctrl *app.Controller, title string) *Model {
	ti := textinput.New()
	ti.Placeholder = "New Folder Name"
	ti.CharLimit = 255
	ti.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		ctrl:     ctrl,
		title:    title,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		spinner:  sp,
		input:    ti,
		snap:     ctrl.Snapshot(),
		width:    80,
		height:   24,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(tick(), m.spinner.Tick)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.progress.Width = progressWidth(msg.Width)
		m.ctrl.SetPageSize(m.listHeight())
		return m, nil

	case tickMsg:
		m.ctrl.Tick()
		return m, m.sync(tick())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.creatingFolder {
			return m, m.updateInput(msg)
		}
		if key.Matches(msg, m.keys.MakeDir) && m.snap.Lifecycle != app.Terminated {
			m.creatingFolder = true
			m.input.Reset()
			m.input.Focus()
			return m, textinput.Blink
		}
		m.ctrl.HandleKey(m.keys.Resolve(msg))
		return m, m.sync(nil)
	}
	return m, nil
}

func (m *Model) updateInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		name := m.input.Value()
		m.creatingFolder = false
		m.input.Blur()
		if name != "" {
			m.ctrl.MakeDirectory(name)
		}
		return m.sync(nil)
	case "esc":
		m.creatingFolder = false
		m.input.Blur()
		m.input.Reset()
		return nil
	case "ctrl+c":
		m.creatingFolder = false
		m.ctrl.HandleKey(app.KeyForceQuit)
		return m.sync(nil)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// sync takes a fresh snapshot and quits once the controller terminated.
func (m *Model) sync(next tea.Cmd) tea.Cmd {
	m.snap = m.ctrl.Snapshot()
	if m.snap.Lifecycle == app.Terminated {
		return tea.Quit
	}
	return next
}

// listHeight is the number of entry rows a pane shows.
func (m *Model) listHeight() int {
	// title, panes' border and header, batches, message and help
	h := m.height - 16
	if h < 5 {
		h = 5
	}
	return h
}

func progressWidth(total int) int {
	w := total / 3
	if w < 10 {
		w = 10
	}
	if w > 60 {
		w = 60
	}
	return w
}
