package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vulnverified/surveyor/internal/engine"
)

var tableHeaders = []string{"Host", "IP", "Ports", "Findings"}

// WriteTable renders one row per subdomain with its open ports and findings.
func WriteTable(w io.Writer, subs []engine.Subdomain, noColor bool) {
	if len(subs) == 0 {
		fmt.Fprintln(w, "\nNo live subdomains discovered.")
		return
	}

	rows := tableRows(subs)
	fmt.Fprintln(w)

	if noColor {
		writeSimpleTable(w, rows)
		return
	}

	t := table.New().
		Headers(tableHeaders...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
			}
			if col == 3 && row >= 0 && row < len(rows) && rows[row][3] != "" {
				return lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
			}
			return lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
		})

	for _, row := range rows {
		t.Row(row...)
	}

	fmt.Fprintln(w, t.Render())
}

// tableRows keeps the order of subs. Findings are listed as kind@port.
func tableRows(subs []engine.Subdomain) [][]string {
	rows := make([][]string, 0, len(subs))
	for _, sub := range subs {
		var ports, findings []string
		for _, p := range sub.OpenPorts {
			ports = append(ports, strconv.Itoa(int(p.Port)))
			for _, f := range p.Findings {
				findings = append(findings, fmt.Sprintf("%s@%d", f.Kind, p.Port))
			}
		}
		rows = append(rows, []string{
			sub.Domain,
			sub.ResolvedIP,
			truncate(strings.Join(ports, ","), 40),
			truncate(strings.Join(findings, ", "), 60),
		})
	}
	return rows
}

func writeSimpleTable(w io.Writer, rows [][]string) {
	widths := make([]int, len(tableHeaders))
	for i, h := range tableHeaders {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}
			fmt.Fprintf(w, "%-*s", widths[i], cell)
		}
		fmt.Fprintln(w)
	}

	writeRow(tableHeaders)
	for i, width := range widths {
		if i > 0 {
			fmt.Fprint(w, "-+-")
		}
		fmt.Fprint(w, strings.Repeat("-", width))
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		writeRow(row)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
