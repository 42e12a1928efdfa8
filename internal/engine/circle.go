package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/negwm/negwm/internal/config"
	"github.com/negwm/negwm/internal/ipc"
	"github.com/negwm/negwm/internal/layout"
	"github.com/negwm/negwm/internal/rules"
	"github.com/negwm/negwm/internal/state"
	"github.com/negwm/negwm/internal/util"
)

// CircleOptions carries the optional collaborators of a Circle.
type CircleOptions struct {
	Logger *util.Logger
}

// Circle cycles focus through the windows of a tag, running its program when
// none exists. It never moves windows.
type Circle struct {
	wm      WM
	logger  *util.Logger
	reg     *Registry
	spawner string
}

// NewCircle builds the circle engine from the circle section of cfg.
func NewCircle(wm WM, cfg *config.Config, opts CircleOptions) *Circle {
	return &Circle{
		wm:      wm,
		logger:  opts.Logger,
		reg:     NewRegistry(rules.Compile(cfg.Circle, opts.Logger)),
		spawner: cfg.Spawner,
	}
}

// Name implements Module.
func (c *Circle) Name() string {
	return config.ModuleCircle
}

// Init implements Module.
func (c *Circle) Init(ctx context.Context) error {
	world, err := c.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	c.reg.RebuildAll(world)
	return nil
}

// HandleEvent implements Module.
func (c *Circle) HandleEvent(ctx context.Context, ev ipc.Event) error {
	switch ev.Kind {
	case ipc.WindowNew:
		world, err := c.wm.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		win := ev.Window
		if w := world.FindWindow(win.ID); w != nil {
			win = *w
		}
		if tags := c.reg.OnWindowNew(win); len(tags) > 0 {
			c.logger.Debugf("circle: window %d joined %v", win.ID, tags)
		}
	case ipc.WindowClose:
		c.reg.OnWindowClose(ev.Window.ID)
	case ipc.FullscreenModeChanged:
		c.reg.fullscreen.observe(ev.Window.ID, ev.Window.Fullscreen)
	}
	return nil
}

// Reload implements Module.
func (c *Circle) Reload(ctx context.Context, cfg *config.Config) error {
	world, err := c.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	c.reg.Replace(rules.Compile(cfg.Circle, c.logger), world)
	c.spawner = cfg.Spawner
	return nil
}

// windows returns the live windows of tag ordered by their parent container,
// insertion order breaking ties.
func (c *Circle) windows(world *state.World, tag string) []state.Window {
	ids := c.reg.Tagged(tag)
	wins := make([]state.Window, 0, len(ids))
	for _, id := range ids {
		if win := world.FindWindow(id); win != nil {
			wins = append(wins, *win)
		}
	}
	sort.SliceStable(wins, func(i, j int) bool {
		return wins[i].ParentOrder < wins[j].ParentOrder
	})
	return wins
}

// Next focuses the next window of tag.
func (c *Circle) Next(ctx context.Context, tag string) error {
	def := c.reg.Definition(tag)
	if def == nil {
		return fmt.Errorf("%w %q", errUnknownTag, tag)
	}
	world, err := c.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	wins := c.windows(world, tag)
	st := c.reg.state(tag)
	switch len(wins) {
	case 0:
		return c.spawn(ctx, def.Prog, def.Spawn, tag)
	case 1:
		return c.switchTo(ctx, world, tag, wins[0].ID)
	}
	st.counter %= len(wins)
	idx := st.counter
	focused := world.Focused()
	if def.Priority != "" && (focused == nil || !c.reg.Contains(tag, focused.ID)) {
		for _, win := range wins {
			if win.Class == def.Priority {
				return c.switchTo(ctx, world, tag, win.ID)
			}
		}
		return c.spawn(ctx, def.Prog, def.Spawn, tag)
	}
	if focused != nil && wins[idx].ID == focused.ID {
		st.counter++
		idx = st.counter % len(wins)
	}
	if err := c.switchTo(ctx, world, tag, wins[idx].ID); err != nil {
		return err
	}
	st.counter++
	return nil
}

// switchTo focuses id, moving fullscreen out of the way when the focused
// window belongs to tag and restoring it on id when it was suspended.
func (c *Circle) switchTo(ctx context.Context, world *state.World, tag string, id int64) error {
	if focused := world.Focused(); focused != nil && focused.ID != id && focused.Fullscreen && c.reg.Contains(tag, focused.ID) {
		if err := c.reg.fullscreen.suspend(ctx, c.wm, focused.ID); err != nil {
			return err
		}
	}
	if err := layout.Focus(id).Execute(ctx, c.wm); err != nil {
		return err
	}
	return c.reg.fullscreen.restore(ctx, c.wm, id)
}

func (c *Circle) spawn(ctx context.Context, prog, spawn, what string) error {
	plan, ok := spawnPlan(prog, spawn, c.spawner)
	if !ok {
		c.logger.Infof("circle %s: nothing tagged and nothing to spawn", what)
		return nil
	}
	c.logger.Debugf("circle %s: spawning", what)
	return plan.Execute(ctx, c.wm)
}

// Subtag focuses the next window of tag whose class belongs to subtag,
// running the subtag program when there is none.
func (c *Circle) Subtag(ctx context.Context, tag, subtag string) error {
	def := c.reg.Definition(tag)
	if def == nil {
		return fmt.Errorf("%w %q", errUnknownTag, tag)
	}
	sub, ok := def.Subtag(subtag)
	if !ok {
		return fmt.Errorf("%w %q in %s", errUnknownSubtag, subtag, tag)
	}
	world, err := c.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	var matching []state.Window
	for _, win := range c.windows(world, tag) {
		if sub.HasClass(win.Class) {
			matching = append(matching, win)
		}
	}
	if len(matching) == 0 {
		return c.spawn(ctx, sub.Prog, "", tag+"/"+subtag)
	}
	target := matching[0]
	if focused := world.Focused(); focused != nil {
		for i, win := range matching {
			if win.ID == focused.ID {
				target = matching[(i+1)%len(matching)]
				break
			}
		}
	}
	return c.switchTo(ctx, world, tag, target.ID)
}

// AddProp attaches windows described by selector to tag, detaching them from
// every other circle tag.
func (c *Circle) AddProp(ctx context.Context, tag, selector string) error {
	world, err := c.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return c.reg.MoveProp(tag, selector, world)
}

// DelProp detaches windows described by selector from tag.
func (c *Circle) DelProp(ctx context.Context, tag, selector string) error {
	world, err := c.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return c.reg.DelProp(tag, selector, world)
}

// List describes every circle tag.
func (c *Circle) List() ModuleInfo {
	return c.reg.info(c.Name())
}
