package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/incidentlab/topograph/pkg/incident"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors, anomalies
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleAnomaly for anomalous entities and counts.
	StyleAnomaly = lipgloss.NewStyle().Foreground(colorRed)

	// StyleSuccess for success messages.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleHeader      = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	styleKey         = lipgloss.NewStyle().Foreground(colorGray).Width(16)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconRoot    = "◆"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconWarning.Render(iconWarning)+" "+StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

// printDetail prints an indented detail line.
func printDetail(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a file output line.
func printFile(w io.Writer, path string) {
	fmt.Fprintln(w, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

func printKeyValue(w io.Writer, key, value string) {
	fmt.Fprintln(w, styleKey.Render(key)+" "+StyleValue.Render(value))
}

// =============================================================================
// Snapshot Display
// =============================================================================

// printStats prints snapshot counts on a single line.
func printStats(w io.Writer, st incident.Stats) {
	parts := []string{
		fmt.Sprintf("%d entities", st.Entities),
		fmt.Sprintf("%d edges", st.Edges),
		fmt.Sprintf("%d alerts", st.Alerts),
	}
	if st.AggregatedPeers > 0 {
		parts = append(parts, fmt.Sprintf("%d aggregated", st.AggregatedPeers))
	}
	line := StyleDim.Render(strings.Join(parts, " · "))
	if st.AnomalousEntities > 0 {
		line += StyleDim.Render(" · ") + StyleAnomaly.Render(fmt.Sprintf("%d anomalous", st.AnomalousEntities))
	}
	fmt.Fprintln(w, "  "+line)
}

// rankTable renders rank rows as a bordered table. Sub-rank rows leave the
// rank columns blank.
func rankTable(rows []incident.RankRow) string {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		name, total, anomalies := "", "", ""
		if !r.IsSubRank {
			name = rankLabel(r.Rank)
			total = fmt.Sprint(r.Total)
			anomalies = fmt.Sprint(r.AnomalyCount)
		}
		data = append(data, []string{name, fmt.Sprint(r.Depth), entityList(r.Entities), total, anomalies})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Rank", "Depth", "Entities", "Total", "Anomalous").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			if col == 4 && rows[row].AnomalyCount > 0 && !rows[row].IsSubRank {
				return StyleAnomaly
			}
			return lipgloss.NewStyle()
		}).
		Render()
}

// entityList joins entity ids, marking roots and aggregated peers.
func entityList(entities []*incident.Entity) string {
	const maxShown = 6
	parts := make([]string, 0, len(entities))
	for i, e := range entities {
		if i == maxShown {
			parts = append(parts, fmt.Sprintf("+%d more", len(entities)-maxShown))
			break
		}
		s := e.ID
		if e.IsRoot {
			s = iconRoot + " " + s
		}
		if n := len(e.AggregatedEntities); n > 0 {
			s += fmt.Sprintf(" (+%d)", n)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

func rankLabel(r *incident.Rank) string {
	if r == nil {
		return "-"
	}
	if r.Alias != "" {
		return r.Alias
	}
	return r.Name
}
