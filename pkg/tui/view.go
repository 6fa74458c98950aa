package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/quocson95/sftpane/pkg/app"
	"github.com/quocson95/sftpane/pkg/transfer"
	"github.com/quocson95/sftpane/pkg/vfs"
)

// maxFailureLines caps how many failure reasons a batch lists.
const maxFailureLines = 3

func (m *Model) View() string {
	s := m.snap
	var b strings.Builder

	b.WriteString(titleStyle.Render("📁 " + m.title))
	b.WriteString("\n")

	if s.Fatal != nil {
		b.WriteString(bannerStyle.Render(fmt.Sprintf("⚠ %v", s.Fatal)))
		b.WriteString("\n")
	}

	paneWidth := (m.width - 6) / 2 // borders, padding and the gap
	if paneWidth < 30 {
		paneWidth = 30
	}
	rows := m.listHeight()

	panes := [2]string{}
	for i := range s.Panes {
		side := app.Side(i)
		content := m.renderPane(side, s.Panes[i], paneWidth, rows)
		style := inactivePaneStyle
		if side == s.Active {
			style = activePaneStyle
		}
		panes[i] = style.Width(paneWidth).Render(content)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, panes[0], "  ", panes[1]))
	b.WriteString("\n")

	for _, bv := range s.Batches {
		b.WriteString(m.renderBatch(bv))
	}

	if s.Message != "" {
		if s.MessageIsError {
			b.WriteString(errorStyle.Render(s.Message))
		} else {
			b.WriteString(successStyle.Render(s.Message))
		}
		b.WriteString("\n")
	}

	if m.creatingFolder {
		b.WriteString(popupStyle.Render(fmt.Sprintf("Create New Folder\n\n%s", m.input.View())))
		b.WriteString("\n")
	}

	m.help.ShowAll = s.ShowHelp
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

func (m *Model) renderPane(side app.Side, p app.PaneView, width, rows int) string {
	var b strings.Builder

	title := localTitleStyle.Render("💻 " + p.Label)
	if side == app.RemoteSide {
		title = remoteTitleStyle.Render("🌐 " + p.Label)
	}
	if p.ShowHidden {
		title += dimItemStyle.Render("  (hidden shown)")
	}
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(pathStyle.Render(truncateLeft(p.Location, width)))
	b.WriteString("\n")

	switch {
	case p.Loading:
		b.WriteString(m.spinner.View() + " Loading...")
		b.WriteString("\n")
	case p.Err != nil:
		b.WriteString(errorStyle.Render(runewidth.Truncate(fmt.Sprintf("Error: %v", p.Err), width, "…")))
		b.WriteString("\n")
	}

	if len(p.Entries) == 0 && !p.Loading {
		b.WriteString(dimItemStyle.Render("(empty)"))
		return b.String()
	}

	start, end := visibleRange(p.Selected, len(p.Entries), rows)
	for i := start; i < end; i++ {
		b.WriteString(renderEntry(p.Entries[i], i == p.Selected, width))
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// visibleRange keeps the cursor roughly centered in a window of rows.
func visibleRange(cursor, n, rows int) (int, int) {
	start := 0
	if cursor > rows/2 && n > rows {
		start = cursor - rows/2
	}
	if start+rows > n {
		start = n - rows
	}
	if start < 0 {
		start = 0
	}
	end := start + rows
	if end > n {
		end = n
	}
	return start, end
}

func renderEntry(e vfs.Entry, selected bool, width int) string {
	cursor := "  "
	style := itemStyle
	if selected {
		cursor = "→ "
		style = selectedItemStyle
	}

	icon := "📄"
	size := humanize.Bytes(uint64(e.Size))
	if e.IsDir {
		icon = "📁"
		size = ""
	}
	if e.Symlink {
		icon = "🔗"
	}

	// cursor, icon and a space on the left; the size column on the right
	nameWidth := width - 4 - runewidth.StringWidth(icon) - 9
	if nameWidth < 8 {
		nameWidth = 8
	}
	name := runewidth.FillRight(runewidth.Truncate(e.Name, nameWidth, "…"), nameWidth)
	line := fmt.Sprintf("%s %s %8s", icon, name, size)
	if e.Hidden() && !selected {
		style = dimItemStyle
	}
	return cursor + style.Render(line)
}

func (m *Model) renderBatch(v app.BatchView) string {
	var b strings.Builder

	arrow := "⬆"
	if v.Direction == transfer.Download {
		arrow = "⬇"
	}
	header := fmt.Sprintf("%s %s %s", arrow, v.Direction, runewidth.Truncate(v.Name, 30, "…"))

	switch v.State {
	case app.BatchPlanning:
		b.WriteString(fmt.Sprintf("%s %s scanning...", header, m.spinner.View()))
	case app.BatchTransferring:
		b.WriteString(fmt.Sprintf("%s %s %s / %s  %d/%d files",
			header,
			m.progress.ViewAs(v.Fraction()),
			humanize.Bytes(uint64(v.TransferredBytes)),
			humanize.Bytes(uint64(v.TotalBytes)),
			v.Completed+v.Failed+v.Cancelled,
			v.TotalTasks))
		if v.Rate > 0 {
			b.WriteString(fmt.Sprintf("  %s/s", humanize.Bytes(uint64(v.Rate))))
		}
		if v.ETA > 0 {
			b.WriteString(fmt.Sprintf("  ETA %s", v.ETA.Round(time.Second)))
		}
	default:
		summary := fmt.Sprintf("%s: %s, %d/%d files, %s", header, v.State,
			v.Completed, v.TotalTasks, humanize.Bytes(uint64(v.TransferredBytes)))
		if v.State == app.BatchCompleted {
			b.WriteString(successStyle.Render("✓ " + summary))
		} else {
			b.WriteString(errorStyle.Render("✗ " + summary))
		}
	}
	b.WriteString("\n")

	for _, t := range v.Running {
		b.WriteString(dimItemStyle.Render(fmt.Sprintf("    %s  %s / %s",
			runewidth.Truncate(t.SourcePath, 50, "…"),
			humanize.Bytes(uint64(t.TransferredBytes)),
			humanize.Bytes(uint64(t.TotalBytes)))))
		b.WriteString("\n")
	}
	for i, err := range v.Failures {
		if i == maxFailureLines {
			b.WriteString(errorStyle.Render(fmt.Sprintf("    ... and %d more", len(v.Failures)-i)))
			b.WriteString("\n")
			break
		}
		b.WriteString(errorStyle.Render("    " + runewidth.Truncate(err.Error(), m.width-6, "…")))
		b.WriteString("\n")
	}
	if len(v.PartialFiles) > 0 {
		b.WriteString(dimItemStyle.Render(fmt.Sprintf("    %d incomplete file(s) left behind, e.g. %s",
			len(v.PartialFiles), v.PartialFiles[0])))
		b.WriteString("\n")
	}
	return b.String()
}

// truncateLeft keeps the end of a path, which is the informative part.
func truncateLeft(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && runewidth.StringWidth(string(r))+1 > width {
		r = r[1:]
	}
	return "…" + string(r)
}
