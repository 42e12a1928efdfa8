package control

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/negwm/negwm/internal/config"
	"github.com/negwm/negwm/internal/engine"
	"github.com/negwm/negwm/internal/metrics"
)

var (
	ErrUnknownModule = errors.New("unknown module")
	ErrUnknownVerb   = errors.New("unknown verb")
	ErrArity         = errors.New("wrong number of arguments")
)

// Verb is a control verb.
type Verb int

const (
	VerbToggle Verb = iota + 1
	VerbShow
	VerbHideCurrent
	VerbNext
	VerbSubtag
	VerbDialog
	VerbGeomSave
	VerbGeomDump
	VerbGeomRestore
	VerbGeomAutosave
	VerbAddProp
	VerbDelProp
	VerbReload
	VerbList
	VerbStatus
)

var verbNames = map[Verb]string{
	VerbToggle:       "toggle",
	VerbShow:         "show",
	VerbHideCurrent:  "hide_current",
	VerbNext:         "next",
	VerbSubtag:       "subtag",
	VerbDialog:       "dialog",
	VerbGeomSave:     "geom_save",
	VerbGeomDump:     "geom_dump",
	VerbGeomRestore:  "geom_restore",
	VerbGeomAutosave: "geom_autosave",
	VerbAddProp:      "add_prop",
	VerbDelProp:      "del_prop",
	VerbReload:       "reload",
	VerbList:         "list",
	VerbStatus:       "status",
}

func (v Verb) String() string {
	if name, ok := verbNames[v]; ok {
		return name
	}
	return fmt.Sprintf("verb(%d)", int(v))
}

// ParseVerb resolves a verb name.
func ParseVerb(name string) (Verb, error) {
	for v, n := range verbNames {
		if n == name {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownVerb, name)
}

type arity struct {
	min, max int
}

// moduleVerbs lists the verbs each module accepts with their argument counts.
var moduleVerbs = map[string]map[Verb]arity{
	config.ModuleScratchpad: {
		VerbToggle:       {1, 1},
		VerbShow:         {1, 1},
		VerbHideCurrent:  {0, 0},
		VerbNext:         {0, 1},
		VerbSubtag:       {2, 2},
		VerbDialog:       {0, 0},
		VerbGeomSave:     {0, 0},
		VerbGeomDump:     {0, 0},
		VerbGeomRestore:  {0, 0},
		VerbGeomAutosave: {0, 0},
		VerbAddProp:      {2, 2},
		VerbDelProp:      {2, 2},
		VerbReload:       {0, 0},
		VerbList:         {0, 0},
	},
	config.ModuleCircle: {
		VerbNext:    {1, 1},
		VerbSubtag:  {2, 2},
		VerbAddProp: {2, 2},
		VerbDelProp: {2, 2},
		VerbReload:  {0, 0},
		VerbList:    {0, 0},
	},
	ModuleDaemon: {
		VerbReload: {0, 0},
		VerbStatus: {0, 0},
	},
}

// VerbSpec describes a verb accepted by a module.
type VerbSpec struct {
	Verb     Verb
	Min, Max int
}

// ModuleVerbs returns the verbs module accepts in declaration order.
func ModuleVerbs(module string) []VerbSpec {
	verbs := moduleVerbs[module]
	out := make([]VerbSpec, 0, len(verbs))
	for v, ar := range verbs {
		out = append(out, VerbSpec{Verb: v, Min: ar.min, Max: ar.max})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Verb < out[j].Verb })
	return out
}

// ScratchpadTarget is the scratchpad engine as seen by the dispatcher.
type ScratchpadTarget interface {
	Toggle(ctx context.Context, tag string) error
	Show(ctx context.Context, tag string) error
	HideCurrent(ctx context.Context) error
	Next(ctx context.Context, tag string) error
	Subtag(ctx context.Context, tag, subtag string) error
	Dialog(ctx context.Context) error
	GeomSave(ctx context.Context) error
	GeomDump(ctx context.Context) error
	GeomRestore(ctx context.Context) error
	GeomAutosave() bool
	AddProp(ctx context.Context, tag, selector string) error
	DelProp(ctx context.Context, tag, selector string) error
	List() engine.ModuleInfo
}

// CircleTarget is the circle engine as seen by the dispatcher.
type CircleTarget interface {
	Next(ctx context.Context, tag string) error
	Subtag(ctx context.Context, tag, subtag string) error
	AddProp(ctx context.Context, tag, selector string) error
	DelProp(ctx context.Context, tag, selector string) error
	List() engine.ModuleInfo
}

// Executor serializes jobs with window events.
type Executor interface {
	Submit(ctx context.Context, job engine.Job) (any, error)
	History() []engine.JobRecord
	Modules() []string
}

// ReloadFunc reloads the configuration for module, or for every module when
// module is empty.
type ReloadFunc func(ctx context.Context, module string) error

// Dispatcher routes parsed requests to the engines.
type Dispatcher struct {
	exec       Executor
	scratchpad ScratchpadTarget
	circle     CircleTarget
	reload     ReloadFunc
	metrics    *metrics.Collector
}

// DispatcherOptions wires the targets of a Dispatcher. Nil targets disable
// their module.
type DispatcherOptions struct {
	Scratchpad ScratchpadTarget
	Circle     CircleTarget
	Reload     ReloadFunc
	Metrics    *metrics.Collector
}

// NewDispatcher creates a dispatcher submitting engine work to exec.
func NewDispatcher(exec Executor, opts DispatcherOptions) *Dispatcher {
	return &Dispatcher{
		exec:       exec,
		scratchpad: opts.Scratchpad,
		circle:     opts.Circle,
		reload:     opts.Reload,
		metrics:    opts.Metrics,
	}
}

// Dispatch validates req and runs it. Engine verbs run on the loop; reload
// and status run on the caller's goroutine.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (any, error) {
	verbs, ok := moduleVerbs[req.Module]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownModule, req.Module)
	}
	verb, err := ParseVerb(req.Verb)
	if err != nil {
		return nil, err
	}
	ar, ok := verbs[verb]
	if !ok {
		return nil, fmt.Errorf("%w %q for %s", ErrUnknownVerb, req.Verb, req.Module)
	}
	if n := len(req.Args); n < ar.min || n > ar.max {
		if ar.min == ar.max {
			return nil, fmt.Errorf("%w: %s %s takes %d, got %d", ErrArity, req.Module, verb, ar.min, n)
		}
		return nil, fmt.Errorf("%w: %s %s takes %d to %d, got %d", ErrArity, req.Module, verb, ar.min, ar.max, n)
	}
	d.metrics.RecordCall(req.Module, verb.String())
	data, err := d.dispatch(ctx, req.Module, verb, req.Args)
	if err != nil {
		d.metrics.RecordError(req.Module, verb.String())
	}
	return data, err
}

func (d *Dispatcher) dispatch(ctx context.Context, module string, verb Verb, args []string) (any, error) {
	switch verb {
	case VerbReload:
		if d.reload == nil {
			return nil, errors.New("reload not supported")
		}
		if module == ModuleDaemon {
			module = ""
		}
		return nil, d.reload(ctx, module)
	case VerbStatus:
		return StatusReport{
			Modules: d.exec.Modules(),
			Metrics: d.metrics.Snapshot(),
			History: d.exec.History(),
		}, nil
	}
	var (
		run func(context.Context) (any, error)
		err error
	)
	switch module {
	case config.ModuleScratchpad:
		run, err = d.scratchpadJob(verb, args)
	case config.ModuleCircle:
		run, err = d.circleJob(verb, args)
	default:
		err = fmt.Errorf("%w %q for %s", ErrUnknownVerb, verb, module)
	}
	if err != nil {
		return nil, err
	}
	return d.exec.Submit(ctx, engine.Job{Module: module, Verb: verb.String(), Args: args, Run: run})
}

func optional(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func (d *Dispatcher) scratchpadJob(verb Verb, args []string) (func(context.Context) (any, error), error) {
	sp := d.scratchpad
	if sp == nil {
		return nil, fmt.Errorf("%s module is not running", config.ModuleScratchpad)
	}
	switch verb {
	case VerbToggle:
		return func(ctx context.Context) (any, error) { return nil, sp.Toggle(ctx, args[0]) }, nil
	case VerbShow:
		return func(ctx context.Context) (any, error) { return nil, sp.Show(ctx, args[0]) }, nil
	case VerbHideCurrent:
		return func(ctx context.Context) (any, error) { return nil, sp.HideCurrent(ctx) }, nil
	case VerbNext:
		return func(ctx context.Context) (any, error) { return nil, sp.Next(ctx, optional(args)) }, nil
	case VerbSubtag:
		return func(ctx context.Context) (any, error) { return nil, sp.Subtag(ctx, args[0], args[1]) }, nil
	case VerbDialog:
		return func(ctx context.Context) (any, error) { return nil, sp.Dialog(ctx) }, nil
	case VerbGeomSave:
		return func(ctx context.Context) (any, error) { return nil, sp.GeomSave(ctx) }, nil
	case VerbGeomDump:
		return func(ctx context.Context) (any, error) { return nil, sp.GeomDump(ctx) }, nil
	case VerbGeomRestore:
		return func(ctx context.Context) (any, error) { return nil, sp.GeomRestore(ctx) }, nil
	case VerbGeomAutosave:
		return func(context.Context) (any, error) {
			return map[string]bool{"autosave": sp.GeomAutosave()}, nil
		}, nil
	case VerbAddProp:
		return func(ctx context.Context) (any, error) { return nil, sp.AddProp(ctx, args[0], args[1]) }, nil
	case VerbDelProp:
		return func(ctx context.Context) (any, error) { return nil, sp.DelProp(ctx, args[0], args[1]) }, nil
	case VerbList:
		return func(context.Context) (any, error) { return sp.List(), nil }, nil
	}
	return nil, fmt.Errorf("%w %q for %s", ErrUnknownVerb, verb, config.ModuleScratchpad)
}

func (d *Dispatcher) circleJob(verb Verb, args []string) (func(context.Context) (any, error), error) {
	c := d.circle
	if c == nil {
		return nil, fmt.Errorf("%s module is not running", config.ModuleCircle)
	}
	switch verb {
	case VerbNext:
		return func(ctx context.Context) (any, error) { return nil, c.Next(ctx, args[0]) }, nil
	case VerbSubtag:
		return func(ctx context.Context) (any, error) { return nil, c.Subtag(ctx, args[0], args[1]) }, nil
	case VerbAddProp:
		return func(ctx context.Context) (any, error) { return nil, c.AddProp(ctx, args[0], args[1]) }, nil
	case VerbDelProp:
		return func(ctx context.Context) (any, error) { return nil, c.DelProp(ctx, args[0], args[1]) }, nil
	case VerbList:
		return func(context.Context) (any, error) { return c.List(), nil }, nil
	}
	return nil, fmt.Errorf("%w %q for %s", ErrUnknownVerb, verb, config.ModuleCircle)
}
