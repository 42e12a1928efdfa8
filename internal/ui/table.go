package ui

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// Table wraps tablewriter with the borderless layout used by negctl.
type Table struct {
	writer *tablewriter.Table
}

// NewTable creates a table with headers writing to w.
func NewTable(w io.Writer, headers []string) *Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetColumnSeparator("  ")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	if Enabled() {
		colors := make([]tablewriter.Colors, len(headers))
		for i := range colors {
			colors[i] = tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor}
		}
		table.SetHeaderColor(colors...)
	}
	return &Table{writer: table}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(row ...string) {
	t.writer.Append(row)
}

// Render writes the table.
func (t *Table) Render() {
	t.writer.Render()
}
