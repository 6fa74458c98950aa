package tui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrPromptCancelled is returned when the user dismisses a prompt.
var ErrPromptCancelled = errors.New("prompt cancelled")

var (
	promptTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	promptDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	promptHelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	promptBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)
)

func renderPrompt(title, description, body, hint string) string {
	var b strings.Builder
	b.WriteString(promptTitleStyle.Render(title))
	b.WriteString("\n\n")
	if description != "" {
		b.WriteString(promptDescStyle.Render(description))
		b.WriteString("\n\n")
	}
	if body != "" {
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	b.WriteString(promptHelpStyle.Render(hint))
	return promptBoxStyle.Render(b.String())
}

// PasswordPromptModel is a reusable password input component
type PasswordPromptModel struct {
	input       textinput.Model
	title       string
	description string
	submitted   bool
	cancelled   bool
}

// NewPasswordPromptModel creates a new password prompt
func NewPasswordPromptModel(title, description string) *PasswordPromptModel {
	input := textinput.New()
	input.Placeholder = "Enter password"
	input.EchoMode = textinput.EchoPassword
	input.EchoCharacter = '•'
	input.CharLimit = 256
	input.Width = 50
	input.Prompt = "> "
	input.Focus()

	return &PasswordPromptModel{
		input:       input,
		title:       title,
		description: description,
	}
}

func (m *PasswordPromptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *PasswordPromptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			m.submitted = true
			return m, tea.Quit
		case "esc", "ctrl+c":
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *PasswordPromptModel) View() string {
	if m.submitted || m.cancelled {
		return ""
	}
	return renderPrompt(m.title, m.description, m.input.View(), "enter: submit • esc: cancel")
}

// Result returns the entered password, or ErrPromptCancelled.
func (m *PasswordPromptModel) Result() (string, error) {
	if !m.submitted {
		return "", ErrPromptCancelled
	}
	return m.input.Value(), nil
}

// ConfirmModel asks a yes/no question.
type ConfirmModel struct {
	title       string
	description string
	answered    bool
	accepted    bool
}

// NewConfirmModel creates a yes/no prompt.
func NewConfirmModel(title, description string) *ConfirmModel {
	return &ConfirmModel{title: title, description: description}
}

func (m *ConfirmModel) Init() tea.Cmd { return nil }

func (m *ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "y", "Y":
			m.answered, m.accepted = true, true
			return m, tea.Quit
		case "n", "N", "esc", "ctrl+c":
			m.answered = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *ConfirmModel) View() string {
	if m.answered {
		return ""
	}
	return renderPrompt(m.title, m.description, "", "y: yes • n: no")
}

// Accepted reports whether the user answered yes.
func (m *ConfirmModel) Accepted() bool {
	return m.accepted
}

// Prompter shows each prompt as its own short-lived program. It is used
// before the browser starts, while the session is being established.
type Prompter struct {
	Input  io.Reader
	Output io.Writer
}

func (p *Prompter) run(model tea.Model) error {
	var opts []tea.ProgramOption
	if p.Input != nil {
		opts = append(opts, tea.WithInput(p.Input))
	}
	if p.Output != nil {
		opts = append(opts, tea.WithOutput(p.Output))
	}
	if _, err := tea.NewProgram(model, opts...).Run(); err != nil {
		return fmt.Errorf("failed to run prompt: %w", err)
	}
	return nil
}

// Password asks for a secret.
func (p *Prompter) Password(title, description string) (string, error) {
	m := NewPasswordPromptModel(title, description)
	if err := p.run(m); err != nil {
		return "", err
	}
	return m.Result()
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(title, description string) (bool, error) {
	m := NewConfirmModel(title, description)
	if err := p.run(m); err != nil {
		return false, err
	}
	return m.Accepted(), nil
}
