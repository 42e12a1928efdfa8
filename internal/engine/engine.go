package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/negwm/negwm/internal/config"
	"github.com/negwm/negwm/internal/ipc"
	"github.com/negwm/negwm/internal/layout"
	"github.com/negwm/negwm/internal/metrics"
	"github.com/negwm/negwm/internal/state"
	"github.com/negwm/negwm/internal/util"
)

var (
	errUnknownTag    = errors.New("unknown tag")
	errUnknownSubtag = errors.New("unknown subtag")
	errStaleWindow   = errors.New("window no longer exists")
)

// WM is the window manager connection the engines drive.
type WM interface {
	state.DataSource
	layout.Dispatcher
}

// Module is an engine that reacts to window events and owns a tag registry.
type Module interface {
	Name() string
	Init(ctx context.Context) error
	HandleEvent(ctx context.Context, ev ipc.Event) error
	Reload(ctx context.Context, cfg *config.Config) error
}

// Job is a unit of work executed on the loop goroutine.
type Job struct {
	Module string
	Verb   string
	Args   []string
	Run    func(ctx context.Context) (any, error)
}

type jobResult struct {
	data any
	err  error
}

type jobRequest struct {
	job   Job
	reply chan jobResult
}

type reloadRequest struct {
	cfg     *config.Config
	modules []string
	reply   chan error
}

type subscribeFunc func(ctx context.Context, logger *util.Logger) (<-chan ipc.Event, error)

// Loop is the single owner of every module: WM events, control jobs and
// config reloads are applied one at a time, in arrival order.
type Loop struct {
	modules   []Module
	logger    *util.Logger
	metrics   *metrics.Collector
	history   *jobLog
	subscribe subscribeFunc

	jobs    chan jobRequest
	reloads chan reloadRequest
}

// NewLoop creates a loop driving the provided modules.
func NewLoop(logger *util.Logger, collector *metrics.Collector, modules ...Module) *Loop {
	return &Loop{
		modules:   modules,
		logger:    logger,
		metrics:   collector,
		history:   newJobLog(0),
		subscribe: ipc.Subscribe,
		jobs:      make(chan jobRequest),
		reloads:   make(chan reloadRequest),
	}
}

// Modules returns the names of the driven modules.
func (l *Loop) Modules() []string {
	names := make([]string, 0, len(l.modules))
	for _, m := range l.modules {
		names = append(names, m.Name())
	}
	return names
}

// Run subscribes to window events, initializes every module and serves until
// the context is cancelled or the event stream ends.
func (l *Loop) Run(ctx context.Context) error {
	events, err := l.subscribe(ctx, l.logger)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	for _, m := range l.modules {
		if err := m.Init(ctx); err != nil {
			l.logger.Errorf("%s init failed: %v", m.Name(), err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("event stream closed")
			}
			l.applyEvent(ctx, ev)
		case req := <-l.jobs:
			req.reply <- l.runJob(ctx, req.job)
		case req := <-l.reloads:
			req.reply <- l.applyReload(ctx, req.cfg, req.modules)
		}
	}
}

func (l *Loop) applyEvent(ctx context.Context, ev ipc.Event) {
	l.logger.Tracef("event %s window %d", ev.Kind, ev.Window.ID)
	l.metrics.RecordEvent(ev.Kind.String())
	for _, m := range l.modules {
		if err := m.HandleEvent(ctx, ev); err != nil {
			l.logger.Errorf("%s: handling %s event for window %d failed: %v", m.Name(), ev.Kind, ev.Window.ID, err)
		}
	}
}

func (l *Loop) runJob(ctx context.Context, job Job) jobResult {
	started := time.Now()
	data, err := job.Run(ctx)
	record := JobRecord{
		Timestamp: started,
		Module:    job.Module,
		Verb:      job.Verb,
		Args:      append([]string(nil), job.Args...),
		Status:    JobStatusOK,
		Duration:  time.Since(started),
	}
	if err != nil {
		record.Status = JobStatusError
		record.Error = err.Error()
		l.logger.Warnf("%s %s %s failed: %v", job.Module, job.Verb, strings.Join(job.Args, " "), err)
	} else {
		l.logger.Debugf("%s %s %s done in %s", job.Module, job.Verb, strings.Join(job.Args, " "), record.Duration)
	}
	l.history.record(record)
	return jobResult{data: data, err: err}
}

func (l *Loop) applyReload(ctx context.Context, cfg *config.Config, modules []string) error {
	var errs []error
	for _, m := range l.modules {
		if len(modules) > 0 && !containsString(modules, m.Name()) {
			continue
		}
		if err := m.Reload(ctx, cfg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
			continue
		}
		l.logger.Infof("%s reloaded", m.Name())
	}
	return errors.Join(errs...)
}

// Submit runs job on the loop goroutine and waits for its result.
func (l *Loop) Submit(ctx context.Context, job Job) (any, error) {
	req := jobRequest{job: job, reply: make(chan jobResult, 1)}
	select {
	case l.jobs <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reload hands a validated config to the named modules, or to all of them.
// A module that fails keeps its previous definitions.
func (l *Loop) Reload(ctx context.Context, cfg *config.Config, modules ...string) error {
	req := reloadRequest{cfg: cfg, modules: modules, reply: make(chan error, 1)}
	select {
	case l.reloads <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// History returns the most recent jobs, oldest first.
func (l *Loop) History() []JobRecord {
	return l.history.snapshot()
}

func spawnPlan(prog, spawn, spawner string) (layout.Plan, bool) {
	var cmd string
	switch {
	case prog != "":
		cmd = prog
	case spawn != "":
		cmd = strings.TrimSpace(spawner + " " + spawn)
	default:
		return layout.Plan{}, false
	}
	return layout.Exec(expandHome(cmd)), true
}

func expandHome(cmd string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return cmd
	}
	if strings.HasPrefix(cmd, "~/") {
		cmd = home + cmd[1:]
	}
	return strings.ReplaceAll(cmd, " ~/", " "+home+"/")
}

func containsString(values []string, v string) bool {
	for _, item := range values {
		if item == v {
			return true
		}
	}
	return false
}
