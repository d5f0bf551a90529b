package commands

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ade80"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f87171")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#D4A017"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	boldStyle  = lipgloss.NewStyle().Bold(true)
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
