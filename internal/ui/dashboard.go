package ui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/negwm/negwm/internal/control"
	"github.com/negwm/negwm/internal/engine"
)

const defaultRefresh = 500 * time.Millisecond

// Source is the daemon as seen by the dashboard.
type Source interface {
	Status(ctx context.Context) (control.StatusReport, error)
	List(ctx context.Context, module string) (engine.ModuleInfo, error)
}

// Dashboard periodically polls the daemon and redraws its state.
type Dashboard struct {
	Source  Source
	Writer  io.Writer
	Refresh time.Duration
}

// NewDashboard returns a dashboard with the default refresh interval.
func NewDashboard(src Source, w io.Writer) *Dashboard {
	return &Dashboard{Source: src, Writer: w, Refresh: defaultRefresh}
}

// Run redraws until the context is cancelled.
func (d *Dashboard) Run(ctx context.Context) error {
	if d.Writer == nil {
		d.Writer = os.Stdout
	}
	if d.Source == nil {
		return fmt.Errorf("dashboard requires a control client")
	}
	refresh := d.Refresh
	if refresh <= 0 {
		refresh = defaultRefresh
	}
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	fmt.Fprint(d.Writer, "\033[?25l")
	defer fmt.Fprint(d.Writer, "\033[?25h")

	d.draw(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.draw(ctx)
		}
	}
}

func (d *Dashboard) draw(ctx context.Context) {
	var buf bytes.Buffer
	buf.WriteString("\033[H\033[2J")
	d.Frame(ctx, &buf)
	fmt.Fprint(d.Writer, buf.String())
}

// Frame renders one dashboard frame into w.
func (d *Dashboard) Frame(ctx context.Context, w io.Writer) {
	fmt.Fprintf(w, "%s (Ctrl+C to exit)\n", Bold("negwm"))
	fmt.Fprintf(w, "%s\n\n", time.Now().Format(time.RFC1123))

	report, err := d.Source.Status(ctx)
	if err != nil {
		fmt.Fprintf(w, "%s %v\n", Red("error:"), err)
		return
	}
	for _, module := range report.Modules {
		info, err := d.Source.List(ctx, module)
		if err != nil {
			fmt.Fprintf(w, "%s %s: %v\n\n", Red("error:"), module, err)
			continue
		}
		RenderModule(w, info)
		fmt.Fprintln(w)
	}
	RenderStatus(w, report)
}
