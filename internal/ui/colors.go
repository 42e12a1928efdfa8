// Package ui renders negctl output.
package ui

import (
	"github.com/fatih/color"
)

var (
	Green  = color.New(color.FgGreen).SprintFunc()
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Cyan   = color.New(color.FgCyan).SprintFunc()
	Bold   = color.New(color.Bold).SprintFunc()
	Dim    = color.New(color.Faint).SprintFunc()
)

// Enabled reports whether colored output is active.
func Enabled() bool {
	return !color.NoColor
}

// SetEnabled forces colored output on or off.
func SetEnabled(enabled bool) {
	color.NoColor = !enabled
}
