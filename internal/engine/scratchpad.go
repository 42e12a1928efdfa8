package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/negwm/negwm/internal/config"
	"github.com/negwm/negwm/internal/display"
	"github.com/negwm/negwm/internal/ipc"
	"github.com/negwm/negwm/internal/layout"
	"github.com/negwm/negwm/internal/rules"
	"github.com/negwm/negwm/internal/state"
	"github.com/negwm/negwm/internal/util"
)

// TransientsTag is the scratchpad tag whose windows are shown together.
const TransientsTag = "transients"

// ScratchpadOptions carries the optional collaborators of a Scratchpad.
type ScratchpadOptions struct {
	Logger *util.Logger
	// Store persists saved geometry. Nil keeps geometry in memory only.
	Store config.GeometryStore
	// Resolve builds the geometry converter for a config. Defaults to the
	// configured reference and resolution.
	Resolve func(cfg *config.Config) layout.Converter
	// Windows recognizes dialogs and modals, which go to the transients tag.
	// Nil leaves them to the configured rules.
	Windows WindowClassifier
	Now     func() time.Time
}

// WindowClassifier tells dialog and modal windows apart from ordinary ones.
type WindowClassifier interface {
	Kind(win state.Window) display.WindowKind
}

type markKey struct {
	tag string
	id  int64
}

type pendingSubtag struct {
	tag   string
	armed time.Time
}

// Scratchpad hides and shows groups of tagged floating windows.
type Scratchpad struct {
	wm      WM
	logger  *util.Logger
	store   config.GeometryStore
	resolve func(cfg *config.Config) layout.Converter
	windows WindowClassifier
	now     func() time.Time

	reg          *Registry
	converter    layout.Converter
	marks        map[markKey]string
	geoms        map[string]string
	applied      map[string]layout.Rect
	autosave     bool
	lastFocused  int64
	pending      *pendingSubtag
	spawner      string
	spawnTimeout time.Duration
}

// NewScratchpad builds the scratchpad engine from the scratchpad section of cfg.
func NewScratchpad(wm WM, cfg *config.Config, opts ScratchpadOptions) *Scratchpad {
	s := &Scratchpad{
		wm:      wm,
		logger:  opts.Logger,
		store:   opts.Store,
		resolve: opts.Resolve,
		windows: opts.Windows,
		now:     opts.Now,
		marks:   make(map[markKey]string),
	}
	if s.resolve == nil {
		s.resolve = func(c *config.Config) layout.Converter {
			return layout.NewConverter(c.Reference, c.Resolution)
		}
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.reg = NewRegistry(rules.Compile(cfg.Scratchpad, s.logger))
	s.applySettings(cfg)
	return s
}

// applySettings takes the scratchpad settings of cfg. The last applied rect of
// a tag survives when neither its geometry nor the converter changed.
func (s *Scratchpad) applySettings(cfg *config.Config) {
	converter := s.resolve(cfg)
	geoms := make(map[string]string)
	for _, tag := range cfg.Scratchpad {
		if tag.Geom != "" {
			geoms[tag.Name] = tag.Geom
		}
	}
	applied := make(map[string]layout.Rect)
	if converter == s.converter {
		for tag, r := range s.applied {
			if geom := geoms[tag]; geom != "" && geom == s.geoms[tag] {
				applied[tag] = r
			}
		}
	}
	s.converter = converter
	s.spawner = cfg.Spawner
	s.spawnTimeout = cfg.SpawnWaitTimeout
	s.geoms = geoms
	s.applied = applied
}

// Name implements Module.
func (s *Scratchpad) Name() string {
	return config.ModuleScratchpad
}

// Init classifies the current tree, marks every tagged window and moves it to
// the scratchpad.
func (s *Scratchpad) Init(ctx context.Context) error {
	world, err := s.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	s.reg.RebuildAll(world)
	s.pinTransients(world)
	return s.reconcile(ctx, world)
}

// transientKind reports whether win belongs in the transients tag, or needs
// to be floated again because it is a modal the tag does not accept.
func (s *Scratchpad) transientKind(win state.Window) (pin, refloat bool) {
	def := s.reg.Definition(TransientsTag)
	if s.windows == nil || def == nil {
		return false, false
	}
	switch s.windows.Kind(win) {
	case display.KindDialog:
		return true, false
	case display.KindModal:
		matched := rules.Match(win, def)
		return matched, !matched
	}
	return false, false
}

// pinTransients pins the dialogs of world into the transients tag.
func (s *Scratchpad) pinTransients(world *state.World) {
	for _, win := range world.Windows {
		if pin, _ := s.transientKind(win); pin {
			if err := s.reg.Pin(TransientsTag, win.ID); err != nil {
				s.logger.Warnf("scratchpad: pin window %d: %v", win.ID, err)
			}
		}
	}
}

// reconcile marks and hides windows that joined a tag and unmarks windows
// that left one.
func (s *Scratchpad) reconcile(ctx context.Context, world *state.World) error {
	var errs []error
	for key, mark := range s.marks {
		if s.reg.Contains(key.tag, key.id) {
			continue
		}
		delete(s.marks, key)
		if world.FindWindow(key.id) == nil {
			continue
		}
		if err := layout.Unmark(mark).Execute(ctx, s.wm); err != nil {
			errs = append(errs, err)
		}
	}
	for _, tag := range s.reg.Names() {
		for _, id := range s.reg.Tagged(tag) {
			if _, ok := s.marks[markKey{tag, id}]; ok {
				continue
			}
			win := world.FindWindow(id)
			if win == nil {
				continue
			}
			if err := s.adopt(ctx, tag, *win); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", tag, err))
			}
		}
	}
	return errors.Join(errs...)
}

// adopt marks win for tag and hides it at the tag's geometry.
func (s *Scratchpad) adopt(ctx context.Context, tag string, win state.Window) error {
	var p layout.Plan
	mark := existingMark(win, tag)
	if mark == "" {
		mark = newMark(tag)
		p.Merge(layout.Mark(win.ID, mark))
	}
	s.marks[markKey{tag, win.ID}] = mark
	p.Merge(layout.Hide(win.ID, s.placement(tag)))
	return p.Execute(ctx, s.wm)
}

func newMark(tag string) string {
	return fmt.Sprintf("%s-%d", tag, uuid.New().ID())
}

// existingMark returns a mark left on win by a previous run, if any.
func existingMark(win state.Window, tag string) string {
	for _, m := range win.Marks {
		suffix, ok := strings.CutPrefix(m, tag+"-")
		if !ok {
			continue
		}
		if _, err := strconv.ParseUint(suffix, 10, 32); err == nil {
			return m
		}
	}
	return ""
}

func (s *Scratchpad) placement(tag string) *layout.Rect {
	geom := s.geoms[tag]
	if geom == "" {
		return nil
	}
	r, err := s.converter.Convert(geom)
	if err != nil {
		s.logger.Warnf("scratchpad %s: ignoring geometry %q: %v", tag, geom, err)
		return nil
	}
	s.applied[tag] = r
	return &r
}

// HandleEvent implements Module.
func (s *Scratchpad) HandleEvent(ctx context.Context, ev ipc.Event) error {
	switch ev.Kind {
	case ipc.WindowNew:
		return s.onWindowNew(ctx, ev.Window)
	case ipc.WindowClose:
		return s.onWindowClose(ctx, ev.Window)
	case ipc.WindowFocus:
		s.lastFocused = ev.Window.ID
	case ipc.FullscreenModeChanged:
		if s.reg.fullscreen.observe(ev.Window.ID, ev.Window.Fullscreen) {
			s.logger.Tracef("scratchpad: own fullscreen transition on %d", ev.Window.ID)
		}
	}
	return nil
}

func (s *Scratchpad) onWindowNew(ctx context.Context, win state.Window) error {
	world, err := s.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if w := world.FindWindow(win.ID); w != nil {
		win = *w
	}
	switch pin, refloat := s.transientKind(win); {
	case refloat:
		s.logger.Debugf("scratchpad: refloating modal window %d", win.ID)
		return layout.Refloat(win.ID).Execute(ctx, s.wm)
	case pin:
		return s.adoptTransient(ctx, world, win)
	}
	tags := s.reg.OnWindowNew(win)
	var errs []error
	for _, tag := range tags {
		if err := s.adopt(ctx, tag, win); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tag, err))
			continue
		}
		s.reg.state(tag).promote(win.ID)
		if err := s.show(ctx, world, tag, true); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tag, err))
		}
	}
	if s.pending != nil && len(tags) > 0 {
		p := s.pending
		s.pending = nil
		switch {
		case s.spawnTimeout > 0 && s.now().Sub(p.armed) > s.spawnTimeout:
			s.logger.Infof("scratchpad: dropping subtag wait for %s armed %s ago", p.tag, s.now().Sub(p.armed).Round(time.Millisecond))
		case containsString(tags, p.tag):
			// shown above
		case s.reg.Definition(p.tag) != nil && len(s.reg.Tagged(p.tag)) > 0:
			if err := s.show(ctx, world, p.tag, true); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.tag, err))
			}
		}
	}
	return errors.Join(errs...)
}

// adoptTransient hides win with the other transients and shows all of them,
// win first.
func (s *Scratchpad) adoptTransient(ctx context.Context, world *state.World, win state.Window) error {
	if err := s.reg.Pin(TransientsTag, win.ID); err != nil {
		return err
	}
	if err := s.adopt(ctx, TransientsTag, win); err != nil {
		return fmt.Errorf("%s: %w", TransientsTag, err)
	}
	s.reg.state(TransientsTag).promote(win.ID)
	return s.show(ctx, world, TransientsTag, false)
}

func (s *Scratchpad) onWindowClose(ctx context.Context, win state.Window) error {
	tags := s.reg.OnWindowClose(win.ID)
	for _, tag := range tags {
		delete(s.marks, markKey{tag, win.ID})
	}
	if len(tags) == 0 && !win.Fullscreen {
		return nil
	}
	world, err := s.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	var errs []error
	if win.ID == s.lastFocused {
		s.lastFocused = 0
		for _, tag := range tags {
			if len(s.reg.Tagged(tag)) == 0 {
				continue
			}
			if err := s.show(ctx, world, tag, true); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", tag, err))
			}
		}
	}
	if win.Fullscreen {
		if err := s.HideCurrent(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reload replaces the scratchpad definitions. On failure the previous
// definitions stay in place.
func (s *Scratchpad) Reload(ctx context.Context, cfg *config.Config) error {
	world, err := s.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	defs := rules.Compile(cfg.Scratchpad, s.logger)
	s.applySettings(cfg)
	s.reg.Replace(defs, world)
	return s.reconcile(ctx, world)
}

func (s *Scratchpad) definition(tag string) (*rules.TagDefinition, error) {
	def := s.reg.Definition(tag)
	if def == nil {
		return nil, fmt.Errorf("%w %q", errUnknownTag, tag)
	}
	return def, nil
}

func (s *Scratchpad) visible(world *state.World, tag string) bool {
	for _, win := range world.Visible() {
		if s.reg.Contains(tag, win.ID) {
			return true
		}
	}
	return false
}

// Toggle hides tag when any of its windows is visible and shows it otherwise,
// spawning its program when nothing is tagged yet.
func (s *Scratchpad) Toggle(ctx context.Context, tag string) error {
	def, err := s.definition(tag)
	if err != nil {
		return err
	}
	if len(s.reg.Tagged(tag)) == 0 {
		return s.spawn(ctx, def)
	}
	world, err := s.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if s.visible(world, tag) {
		return s.hideTag(ctx, world, tag)
	}
	if err := s.suspendOutsider(ctx, world, tag); err != nil {
		return err
	}
	return s.show(ctx, world, tag, true)
}

// Show displays the head of tag, hiding its other windows.
func (s *Scratchpad) Show(ctx context.Context, tag string) error {
	if _, err := s.definition(tag); err != nil {
		return err
	}
	world, err := s.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := s.suspendOutsider(ctx, world, tag); err != nil {
		return err
	}
	return s.show(ctx, world, tag, true)
}

func (s *Scratchpad) spawn(ctx context.Context, def *rules.TagDefinition) error {
	plan, ok := spawnPlan(def.Prog, def.Spawn, s.spawner)
	if !ok {
		s.logger.Infof("scratchpad %s: nothing tagged and nothing to spawn", def.Name)
		return nil
	}
	s.logger.Debugf("scratchpad %s: spawning %s", def.Name, strings.Join(plan.Commands, "; "))
	return plan.Execute(ctx, s.wm)
}

// suspendOutsider takes the focused window out of fullscreen when it does
// not belong to tag, so the shown window is not hidden behind it.
func (s *Scratchpad) suspendOutsider(ctx context.Context, world *state.World, tag string) error {
	focused := world.Focused()
	if focused == nil || !focused.Fullscreen || s.reg.Contains(tag, focused.ID) {
		return nil
	}
	return s.reg.fullscreen.suspend(ctx, s.wm, focused.ID)
}

// show moves the head of tag to the current workspace and focuses it. With
// hide set, every other visible window of the tag goes back to the
// scratchpad; without it they are brought along.
func (s *Scratchpad) show(ctx context.Context, world *state.World, tag string, hide bool) error {
	ids := s.reg.Tagged(tag)
	if len(ids) == 0 {
		return nil
	}
	head := world.FindWindow(ids[0])
	if head == nil {
		return fmt.Errorf("window %d: %w", ids[0], errStaleWindow)
	}
	var p layout.Plan
	if tag == TransientsTag {
		hide = false
		if head.TransientFor != 0 {
			p.Merge(layout.FocusWindow(head.TransientFor))
		}
	}
	for _, id := range ids[1:] {
		win := world.FindWindow(id)
		if win == nil {
			continue
		}
		if !hide {
			p.Merge(layout.Bring(id))
			continue
		}
		if win.Workspace != world.CurrentWorkspace {
			continue
		}
		if win.Fullscreen && !s.reg.fullscreen.has(id) {
			if err := s.reg.fullscreen.suspend(ctx, s.wm, id); err != nil {
				return err
			}
		}
		p.Merge(layout.Hide(id, nil))
	}
	p.Merge(layout.Show(head.ID))
	if err := p.Execute(ctx, s.wm); err != nil {
		return err
	}
	s.lastFocused = head.ID
	return s.reg.fullscreen.restore(ctx, s.wm, head.ID)
}

// hideTag sends every visible window of tag to the scratchpad and restores
// the fullscreen state of windows displaced by it.
func (s *Scratchpad) hideTag(ctx context.Context, world *state.World, tag string) error {
	if s.autosave {
		if err := s.geomSave(world, tag); err != nil {
			s.logger.Warnf("scratchpad %s: autosave geometry: %v", tag, err)
		}
	}
	own := make(map[int64]bool)
	var p layout.Plan
	for _, id := range s.reg.Tagged(tag) {
		own[id] = true
		if win := world.FindWindow(id); win != nil && win.Workspace == world.CurrentWorkspace {
			p.Merge(layout.Hide(id, nil))
		}
	}
	if err := p.Execute(ctx, s.wm); err != nil {
		return err
	}
	return s.reg.fullscreen.restoreAll(ctx, s.wm, own)
}

// currentTag returns the tag of the focused window.
func (s *Scratchpad) currentTag(world *state.World) string {
	focused := world.Focused()
	if focused == nil {
		return ""
	}
	return s.reg.TagOf(focused.ID)
}

// Next rotates tag so the focused window goes to the back and shows the new
// head. An empty tag means the tag of the focused window.
func (s *Scratchpad) Next(ctx context.Context, tag string) error {
	world, err := s.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if tag == "" {
		if tag = s.currentTag(world); tag == "" {
			return nil
		}
	} else if _, err := s.definition(tag); err != nil {
		return err
	}
	st := s.reg.state(tag)
	if len(st.windows) == 0 {
		return nil
	}
	if cur := s.current(world, tag); cur != 0 {
		st.rotateAfter(cur)
	}
	return s.show(ctx, world, tag, true)
}

// current returns the focused window of tag, or its head when that is
// visible, or zero.
func (s *Scratchpad) current(world *state.World, tag string) int64 {
	if focused := world.Focused(); focused != nil && s.reg.Contains(tag, focused.ID) {
		return focused.ID
	}
	ids := s.reg.Tagged(tag)
	if len(ids) == 0 {
		return 0
	}
	if head := world.FindWindow(ids[0]); head != nil && head.Workspace == world.CurrentWorkspace {
		return head.ID
	}
	return 0
}

// HideCurrent hides the tag of the focused window.
func (s *Scratchpad) HideCurrent(ctx context.Context) error {
	world, err := s.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	tag := s.currentTag(world)
	if tag == "" {
		return nil
	}
	return s.hideTag(ctx, world, tag)
}

// Subtag shows the windows of subtag inside tag, spawning its program when
// none is tagged. An unknown subtag toggles the whole tag.
func (s *Scratchpad) Subtag(ctx context.Context, tag, subtag string) error {
	def, err := s.definition(tag)
	if err != nil {
		return err
	}
	sub, ok := def.Subtag(subtag)
	if !ok {
		return s.Toggle(ctx, tag)
	}
	world, err := s.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if !s.hasSubtagWindow(world, tag, sub) {
		plan, ok := spawnPlan(sub.Prog, "", "")
		if !ok {
			return fmt.Errorf("subtag %s/%s: no program configured", tag, subtag)
		}
		if err := plan.Execute(ctx, s.wm); err != nil {
			return err
		}
		s.pending = &pendingSubtag{tag: tag, armed: s.now()}
		return nil
	}
	if err := s.suspendOutsider(ctx, world, tag); err != nil {
		return err
	}
	if focused := world.Focused(); focused != nil && s.reg.Contains(tag, focused.ID) && sub.HasClass(focused.Class) {
		return nil
	}
	st := s.reg.state(tag)
	for range st.windows {
		if head := world.FindWindow(st.windows[0]); head != nil && sub.HasClass(head.Class) {
			break
		}
		st.rotateAfter(st.windows[0])
	}
	return s.show(ctx, world, tag, true)
}

func (s *Scratchpad) hasSubtagWindow(world *state.World, tag string, sub rules.SubtagDefinition) bool {
	for _, id := range s.reg.Tagged(tag) {
		if win := world.FindWindow(id); win != nil && sub.HasClass(win.Class) {
			return true
		}
	}
	return false
}

// Dialog shows every window of the transients tag.
func (s *Scratchpad) Dialog(ctx context.Context) error {
	if _, err := s.definition(TransientsTag); err != nil {
		return err
	}
	world, err := s.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return s.show(ctx, world, TransientsTag, false)
}

// GeomSave records the focused window's geometry for its tag when it changed
// since it was last applied or saved.
func (s *Scratchpad) GeomSave(ctx context.Context) error {
	world, err := s.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	tag := s.currentTag(world)
	if tag == "" {
		return nil
	}
	return s.geomSave(world, tag)
}

func (s *Scratchpad) geomSave(world *state.World, tag string) error {
	focused := world.Focused()
	if focused == nil || !s.reg.Contains(tag, focused.ID) {
		return nil
	}
	if prev, ok := s.applied[tag]; ok && prev == focused.Rect {
		return nil
	}
	return s.persist(tag, focused.Rect)
}

// GeomDump stores the focused window's geometry for its tag unconditionally.
func (s *Scratchpad) GeomDump(ctx context.Context) error {
	world, err := s.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	tag := s.currentTag(world)
	if tag == "" {
		return nil
	}
	return s.persist(tag, world.Focused().Rect)
}

func (s *Scratchpad) persist(tag string, r layout.Rect) error {
	s.applied[tag] = r
	geom := s.converter.Unscale(r).String()
	s.geoms[tag] = geom
	s.logger.Debugf("scratchpad %s: geometry %s", tag, geom)
	if s.store == nil {
		return nil
	}
	if err := s.store.SaveGeometry(config.ModuleScratchpad, tag, geom); err != nil {
		return fmt.Errorf("save geometry for %s: %w", tag, err)
	}
	return nil
}

// GeomRestore re-applies the configured geometry to every window of the
// focused tag, replacing their marks, and shows the tag again.
func (s *Scratchpad) GeomRestore(ctx context.Context) error {
	world, err := s.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	tag := s.currentTag(world)
	if tag == "" {
		return nil
	}
	st := s.reg.state(tag)
	for _, id := range append([]int64(nil), st.windows...) {
		key := markKey{tag, id}
		var p layout.Plan
		if old, ok := s.marks[key]; ok {
			p.Merge(layout.Unmark(old))
		}
		mark := newMark(tag)
		p.Merge(layout.Mark(id, mark))
		p.Merge(layout.Hide(id, s.placement(tag)))
		if err := p.Execute(ctx, s.wm); err != nil {
			return err
		}
		s.marks[key] = mark
		st.remove(id)
		st.windows = append(st.windows, id)
	}
	world, err = s.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return s.show(ctx, world, tag, true)
}

// GeomAutosave flips geometry autosave on hide and returns the new setting.
func (s *Scratchpad) GeomAutosave() bool {
	s.autosave = !s.autosave
	s.logger.Infof("scratchpad: geometry autosave %t", s.autosave)
	return s.autosave
}

// AddProp attaches windows described by selector to tag, detaching them from
// every other scratchpad tag.
func (s *Scratchpad) AddProp(ctx context.Context, tag, selector string) error {
	world, err := s.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := s.reg.MoveProp(tag, selector, world); err != nil {
		return err
	}
	return s.reconcile(ctx, world)
}

// DelProp detaches windows described by selector from tag.
func (s *Scratchpad) DelProp(ctx context.Context, tag, selector string) error {
	world, err := s.wm.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := s.reg.DelProp(tag, selector, world); err != nil {
		return err
	}
	return s.reconcile(ctx, world)
}

// List describes every scratchpad tag.
func (s *Scratchpad) List() ModuleInfo {
	info := s.reg.info(s.Name())
	info.Autosave = s.autosave
	if s.pending != nil {
		info.Pending = s.pending.tag
	}
	for i := range info.Tags {
		info.Tags[i].Geom = s.geoms[info.Tags[i].Tag]
	}
	return info
}
