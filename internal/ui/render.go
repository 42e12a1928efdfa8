package ui

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/negwm/negwm/internal/control"
	"github.com/negwm/negwm/internal/engine"
	"github.com/negwm/negwm/internal/metrics"
)

const argsWidth = 32

// RenderModule writes the list payload of a module as a table.
func RenderModule(w io.Writer, info engine.ModuleInfo) {
	fmt.Fprintf(w, "%s\n", Bold(info.Module))
	if info.Autosave {
		fmt.Fprintf(w, "  autosave: %s\n", Green("on"))
	}
	if info.Pending != "" {
		fmt.Fprintf(w, "  waiting for subtag: %s\n", Yellow(info.Pending))
	}
	if len(info.Fullscreen) > 0 {
		fmt.Fprintf(w, "  fullscreen to restore: %s\n", joinIDs(info.Fullscreen))
	}
	if len(info.Tags) == 0 {
		fmt.Fprintln(w, "  (no tags)")
		return
	}
	table := NewTable(w, []string{"Tag", "Windows", "Counter", "Geometry", "Subtags"})
	for _, tag := range info.Tags {
		windows := joinIDs(tag.Windows)
		if windows == "" {
			windows = Dim("-")
		}
		geom := tag.Geom
		if geom == "" {
			geom = "-"
		}
		subtags := strings.Join(tag.Subtags, ", ")
		if subtags == "" {
			subtags = "-"
		}
		table.AddRow(tag.Tag, windows, strconv.Itoa(tag.Counter), geom, subtags)
	}
	table.Render()
}

// RenderStatus writes the daemon status: running modules, verb counters and
// recent jobs.
func RenderStatus(w io.Writer, report control.StatusReport) {
	modules := strings.Join(report.Modules, ", ")
	if modules == "" {
		modules = "(none)"
	}
	fmt.Fprintf(w, "Modules: %s\n", modules)
	renderMetrics(w, report.Metrics)
	renderHistory(w, report.History)
}

func renderMetrics(w io.Writer, snap metrics.Snapshot) {
	if !snap.Enabled {
		fmt.Fprintf(w, "Metrics: %s\n", Dim("disabled"))
		return
	}
	uptime := "-"
	if !snap.Started.IsZero() {
		uptime = time.Since(snap.Started).Truncate(time.Second).String()
	}
	fmt.Fprintf(w, "Metrics: %d calls, %s, %d events (up %s)\n",
		snap.Totals.Calls, errorCount(snap.Totals.Errors), snap.Totals.Events, uptime)
	if len(snap.Verbs) > 0 {
		table := NewTable(w, []string{"Module", "Verb", "Calls", "Errors"})
		for _, verb := range snap.Verbs {
			errs := strconv.FormatUint(verb.Errors, 10)
			if verb.Errors > 0 {
				errs = Red(errs)
			}
			table.AddRow(verb.Module, verb.Verb, strconv.FormatUint(verb.Calls, 10), errs)
		}
		table.Render()
	}
	if len(snap.Events) > 0 {
		kinds := make([]string, 0, len(snap.Events))
		for kind := range snap.Events {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		parts := make([]string, 0, len(kinds))
		for _, kind := range kinds {
			parts = append(parts, fmt.Sprintf("%s=%d", kind, snap.Events[kind]))
		}
		fmt.Fprintf(w, "Events: %s\n", strings.Join(parts, " "))
	}
}

func renderHistory(w io.Writer, history []engine.JobRecord) {
	if len(history) == 0 {
		return
	}
	fmt.Fprintln(w, "Recent jobs:")
	table := NewTable(w, []string{"Time", "Module", "Verb", "Args", "Status", "Took"})
	for i := len(history) - 1; i >= 0; i-- {
		rec := history[i]
		status := Green(string(rec.Status))
		if rec.Status == engine.JobStatusError {
			status = Red(rec.Error)
		}
		table.AddRow(
			rec.Timestamp.Format("15:04:05"),
			rec.Module,
			rec.Verb,
			truncate(strings.Join(rec.Args, " "), argsWidth),
			status,
			rec.Duration.String(),
		)
	}
	table.Render()
}

func errorCount(n uint64) string {
	s := fmt.Sprintf("%d errors", n)
	if n > 0 {
		return Red(s)
	}
	return s
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, " ")
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
