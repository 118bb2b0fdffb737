package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/canopyhq/canopy/pkg/document"
	"github.com/canopyhq/canopy/pkg/sync"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// ConflictPickerModel - Interactive conflict resolution
// =============================================================================

// conflictChoice pairs a menu label with the resolution it stands for.
type conflictChoice struct {
	label string
	res   sync.Resolution
}

var conflictChoices = []conflictChoice{
	{"Keep local (upload this copy)", sync.ResolutionLocal},
	{"Keep server (download remote copy)", sync.ResolutionServer},
	{"Keep both (duplicate local under a conflict name)", sync.ResolutionKeepBoth},
	{"Skip (decide on the next pass)", sync.ResolutionSkip},
}

// ConflictPickerModel is the bubbletea model for settling one sync conflict.
type ConflictPickerModel struct {
	Conflict sync.Conflict
	Cursor   int
	Choice   *sync.Resolution
}

// NewConflictPickerModel creates a picker for the given conflict.
func NewConflictPickerModel(c sync.Conflict) ConflictPickerModel {
	return ConflictPickerModel{Conflict: c}
}

func (m ConflictPickerModel) Init() tea.Cmd {
	return nil
}

func (m ConflictPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(conflictChoices)-1 {
				m.Cursor++
			}
		case "enter":
			res := conflictChoices[m.Cursor].res
			m.Choice = &res
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m ConflictPickerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Sync Conflict"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q skip"))
	b.WriteString("\n\n")

	b.WriteString("  " + StyleValue.Render(m.Conflict.Path))
	b.WriteString("\n")
	b.WriteString("  " + listDimStyle.Render(fmt.Sprintf("local %s · server %s",
		formatRelativeTime(m.Conflict.LocalModified),
		formatRelativeTime(m.Conflict.RemoteModified))))
	b.WriteString("\n\n")

	for i, choice := range conflictChoices {
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		line := cursor + choice.label
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// =============================================================================
// DocListModel - Interactive document selection
// =============================================================================

// DocListModel is the bubbletea model for interactive document selection.
type DocListModel struct {
	Docs     []document.Meta
	Cursor   int
	Selected *document.Meta
	Height   int
	Offset   int
}

// NewDocListModel creates a new document list model.
func NewDocListModel(docs []document.Meta) DocListModel {
	return DocListModel{
		Docs:   docs,
		Cursor: 0,
		Height: 15,
		Offset: 0,
	}
}

func (m DocListModel) Init() tea.Cmd {
	return nil
}

func (m DocListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Docs)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			doc := m.Docs[m.Cursor]
			m.Selected = &doc
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m DocListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Document"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Docs) {
		end = len(m.Docs)
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		d := m.Docs[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		rows = append(rows, []string{cursor, d.Name, string(d.Status), formatRelativeTime(d.Modified)})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Document", "Status", "Modified").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}

			actualIdx := m.Offset + row
			if actualIdx >= len(m.Docs) {
				return lipgloss.NewStyle()
			}
			d := m.Docs[actualIdx]

			base := lipgloss.NewStyle()
			if col == 2 {
				base = base.Foreground(statusColor(d.Status))
			}
			if col == 3 {
				base = base.Foreground(colorDim)
			}
			if actualIdx == m.Cursor {
				return base.Bold(true)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Docs))))

	return b.String()
}

// statusColor maps a sync status to its display color.
func statusColor(s document.SyncStatus) lipgloss.Color {
	switch s {
	case document.StatusSynced:
		return colorGreen
	case document.StatusPending:
		return colorYellow
	case document.StatusError:
		return colorRed
	}
	return colorGray
}

// =============================================================================
// Helpers
// =============================================================================

func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "—"
	}

	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
