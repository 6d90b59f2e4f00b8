package cmd

import (
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/pterm/pterm"
)

var headingStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("63"))

// PrintTableNoPad renders rows with pterm's default table, optionally treating
// the first row as a header.
func PrintTableNoPad(rows pterm.TableData, hasHeader bool) {
	table := pterm.DefaultTable.WithData(rows)
	if hasHeader {
		table = table.WithHasHeader()
	}
	_ = table.Render()
}

// printHeading prints a styled section heading.
func printHeading(text string) {
	pterm.Println(headingStyle.Render(text))
}
