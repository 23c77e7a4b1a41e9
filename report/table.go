package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/weiihann/hostbench/bench"
)

var (
	colorAccent = lipgloss.Color("#20B9B4")
	colorBorder = lipgloss.Color("#16858E")
	colorMuted  = lipgloss.Color("#7A8C94")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	labelStyle  = cellStyle.Foreground(colorAccent)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
)

// GenerateTable writes bordered, styled tables meant for a terminal.
func GenerateTable(w io.Writer, results *bench.Results) error {
	if results == nil {
		return fmt.Errorf("no results to report")
	}

	fmt.Fprintln(w, titleStyle.Render("Benchmark Results"))
	fmt.Fprintln(w, mutedStyle.Render(hostLine(results.Host)))

	for _, s := range sections(results) {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render(s.title))

		if s.skipped {
			fmt.Fprintln(w, mutedStyle.Render("skipped"))

			continue
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
			Headers(s.headers...).
			Rows(s.rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				switch {
				case row == table.HeaderRow:
					return headerStyle
				case col == 0:
					return labelStyle
				default:
					return cellStyle
				}
			})

		fmt.Fprintln(w, t.Render())

		for _, note := range s.notes {
			fmt.Fprintln(w, mutedStyle.Render(note))
		}
	}

	return nil
}
