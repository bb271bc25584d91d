package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/incidentlab/topograph/pkg/incident"
)

var listDimStyle = lipgloss.NewStyle().Foreground(colorDim)

// =============================================================================
// EntityPickerModel - Interactive entity selection
// =============================================================================

// EntityPickerModel is the bubbletea model for choosing the entity whose
// closure is extracted. Typing filters by id, name or type.
type EntityPickerModel struct {
	Entities []*incident.Entity
	Filter   string
	Cursor   int
	Offset   int
	Height   int
	Selected *incident.Entity

	visible []*incident.Entity
}

// NewEntityPickerModel lists entities anomalous first, then by id.
func NewEntityPickerModel(entities []*incident.Entity) EntityPickerModel {
	sorted := make([]*incident.Entity, 0, len(entities))
	for _, e := range entities {
		if e.IsAnomaly {
			sorted = append(sorted, e)
		}
	}
	for _, e := range entities {
		if !e.IsAnomaly {
			sorted = append(sorted, e)
		}
	}
	m := EntityPickerModel{Entities: sorted, Height: 15}
	m.visible = sorted
	return m
}

func (m EntityPickerModel) Init() tea.Cmd {
	return nil
}

func (m EntityPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case tea.KeyDown:
			if m.Cursor < len(m.visible)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case tea.KeyEnter:
			if len(m.visible) == 0 {
				return m, nil
			}
			m.Selected = m.visible[m.Cursor]
			return m, tea.Quit
		case tea.KeyBackspace:
			if m.Filter != "" {
				r := []rune(m.Filter)
				m.Filter = string(r[:len(r)-1])
				m.applyFilter()
			}
		case tea.KeyRunes:
			m.Filter += string(msg.Runes)
			m.applyFilter()
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

func (m *EntityPickerModel) applyFilter() {
	q := strings.ToLower(m.Filter)
	m.visible = m.visible[:0:0]
	for _, e := range m.Entities {
		if q == "" || strings.Contains(strings.ToLower(e.ID+" "+e.Name+" "+e.Type), q) {
			m.visible = append(m.visible, e)
		}
	}
	m.Cursor, m.Offset = 0, 0
}

func (m EntityPickerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Entity"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  type to filter  esc quit"))
	b.WriteString("\n")
	if m.Filter != "" {
		b.WriteString(StyleValue.Render("filter: " + m.Filter))
	}
	b.WriteString("\n")

	end := min(m.Offset+m.Height, len(m.visible))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		e := m.visible[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		flag := ""
		switch {
		case e.IsRoot:
			flag = iconRoot
		case e.IsAnomaly:
			flag = iconWarning
		}
		rows = append(rows, []string{cursor, flag, e.ID, e.Name, e.Type, rankLabel(e.Rank)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "", "Entity", "Name", "Type", "Rank").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			idx := m.Offset + row
			if idx >= len(m.visible) {
				return lipgloss.NewStyle()
			}
			base := lipgloss.NewStyle()
			if m.visible[idx].IsAnomaly {
				base = base.Foreground(colorRed)
			}
			if idx == m.Cursor {
				return base.Bold(true)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", min(m.Cursor+1, len(m.visible)), len(m.visible))))

	return b.String()
}
