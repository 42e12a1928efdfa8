package engine

import (
	"fmt"

	"github.com/negwm/negwm/internal/rules"
	"github.com/negwm/negwm/internal/state"
)

type tagState struct {
	windows []int64
	counter int
}

func (t *tagState) index(id int64) int {
	for i, w := range t.windows {
		if w == id {
			return i
		}
	}
	return -1
}

func (t *tagState) remove(id int64) bool {
	idx := t.index(id)
	if idx < 0 {
		return false
	}
	t.windows = append(t.windows[:idx], t.windows[idx+1:]...)
	return true
}

// promote moves id to the head of the list.
func (t *tagState) promote(id int64) {
	idx := t.index(id)
	if idx <= 0 {
		return
	}
	copy(t.windows[1:idx+1], t.windows[:idx])
	t.windows[0] = id
}

// rotateAfter makes the element following id the new head; id ends up last.
func (t *tagState) rotateAfter(id int64) {
	idx := t.index(id)
	if idx < 0 || len(t.windows) < 2 {
		return
	}
	rotated := make([]int64, 0, len(t.windows))
	rotated = append(rotated, t.windows[idx+1:]...)
	rotated = append(rotated, t.windows[:idx+1]...)
	t.windows = rotated
}

// Registry owns the per-tag window lists of one module.
type Registry struct {
	defs       []rules.TagDefinition
	tags       map[string]*tagState
	fullscreen *fullscreenSet
	// pins holds windows placed into a tag by Pin rather than by its rule.
	pins map[int64]string
}

// NewRegistry creates an empty registry for the given definitions.
func NewRegistry(defs []rules.TagDefinition) *Registry {
	r := &Registry{fullscreen: newFullscreenSet(), pins: make(map[int64]string)}
	r.setDefinitions(defs)
	return r
}

func (r *Registry) setDefinitions(defs []rules.TagDefinition) {
	prev := r.tags
	r.defs = make([]rules.TagDefinition, len(defs))
	r.tags = make(map[string]*tagState, len(defs))
	for i, def := range defs {
		r.defs[i] = def.Clone()
		st := &tagState{}
		if old, ok := prev[def.Name]; ok {
			st.windows = old.windows
			st.counter = old.counter
		}
		r.tags[def.Name] = st
	}
}

// Names lists the tag names in definition order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for _, def := range r.defs {
		names = append(names, def.Name)
	}
	return names
}

// Definition returns the definition for tag, or nil.
func (r *Registry) Definition(tag string) *rules.TagDefinition {
	for i := range r.defs {
		if r.defs[i].Name == tag {
			return &r.defs[i]
		}
	}
	return nil
}

func (r *Registry) state(tag string) *tagState {
	return r.tags[tag]
}

// Tagged returns a copy of the ordered window ids for tag.
func (r *Registry) Tagged(tag string) []int64 {
	st := r.tags[tag]
	if st == nil {
		return nil
	}
	return append([]int64(nil), st.windows...)
}

// Contains reports whether id is tagged with tag.
func (r *Registry) Contains(tag string, id int64) bool {
	st := r.tags[tag]
	return st != nil && st.index(id) >= 0
}

// TagOf returns the first tag, in definition order, holding id.
func (r *Registry) TagOf(id int64) string {
	for _, def := range r.defs {
		if r.tags[def.Name].index(id) >= 0 {
			return def.Name
		}
	}
	return ""
}

// RebuildAll reclassifies every window of the snapshot. Windows that stay in a
// tag keep their relative order; newly matched ones follow in tree order.
func (r *Registry) RebuildAll(world *state.World) {
	if world == nil {
		world = &state.World{}
	}
	present := make(map[int64]bool, len(world.Windows))
	for _, win := range world.Windows {
		present[win.ID] = true
	}
	for i := range r.defs {
		def := &r.defs[i]
		st := r.tags[def.Name]
		matched := make(map[int64]bool)
		for _, win := range world.Windows {
			if rules.Match(win, def) || r.pins[win.ID] == def.Name {
				matched[win.ID] = true
			}
		}
		next := make([]int64, 0, len(matched))
		for _, id := range st.windows {
			if matched[id] {
				next = append(next, id)
				delete(matched, id)
			}
		}
		for _, win := range world.Windows {
			if matched[win.ID] {
				next = append(next, win.ID)
			}
		}
		st.windows = next
	}
	for id := range r.pins {
		if !present[id] {
			delete(r.pins, id)
		}
	}
	r.fullscreen.retain(present)
}

// Pin places id into tag and keeps it there across reclassification until
// the window closes or a prop edit releases it.
func (r *Registry) Pin(tag string, id int64) error {
	st, ok := r.tags[tag]
	if !ok {
		return fmt.Errorf("%w %q", errUnknownTag, tag)
	}
	r.pins[id] = tag
	if st.index(id) < 0 {
		st.windows = append(st.windows, id)
	}
	return nil
}

// unpin releases the pinned windows of world described by sel. With tag set
// only pins into tag are released, otherwise pins into any other tag.
func (r *Registry) unpin(sel rules.Selector, world *state.World, tag string, others bool) {
	var only rules.TagDefinition
	only.AddSelector(sel)
	for _, win := range world.Windows {
		pinned, ok := r.pins[win.ID]
		if !ok || (pinned == tag) == others {
			continue
		}
		if rules.Match(win, &only) {
			delete(r.pins, win.ID)
		}
	}
}

// OnWindowNew appends win to every tag that accepts it and returns those tags.
func (r *Registry) OnWindowNew(win state.Window) []string {
	var matched []string
	for i := range r.defs {
		def := &r.defs[i]
		if !rules.Match(win, def) {
			continue
		}
		st := r.tags[def.Name]
		if st.index(win.ID) < 0 {
			st.windows = append(st.windows, win.ID)
		}
		matched = append(matched, def.Name)
	}
	return matched
}

// OnWindowClose removes id from every tag and from the fullscreen restore set,
// returning the tags it was removed from.
func (r *Registry) OnWindowClose(id int64) []string {
	var removed []string
	for _, def := range r.defs {
		if r.tags[def.Name].remove(id) {
			removed = append(removed, def.Name)
		}
	}
	delete(r.pins, id)
	r.fullscreen.forget(id)
	return removed
}

// AddProp merges the selector into tag and reclassifies.
func (r *Registry) AddProp(tag, selector string, world *state.World) error {
	return r.editProps(tag, selector, world, false)
}

// MoveProp merges the selector into tag, drops it from every other tag and
// reclassifies.
func (r *Registry) MoveProp(tag, selector string, world *state.World) error {
	return r.editProps(tag, selector, world, true)
}

func (r *Registry) editProps(tag, selector string, world *state.World, exclusive bool) error {
	sel, err := rules.ParseSelector(selector)
	if err != nil {
		return err
	}
	def := r.Definition(tag)
	if def == nil {
		return fmt.Errorf("%w %q", errUnknownTag, tag)
	}
	def.AddSelector(sel)
	if exclusive {
		for i := range r.defs {
			if r.defs[i].Name != tag {
				r.defs[i].RemoveSelector(sel)
			}
		}
		r.unpin(sel, world, tag, true)
	}
	r.RebuildAll(world)
	return nil
}

// DelProp removes the selector from tag and reclassifies.
func (r *Registry) DelProp(tag, selector string, world *state.World) error {
	sel, err := rules.ParseSelector(selector)
	if err != nil {
		return err
	}
	def := r.Definition(tag)
	if def == nil {
		return fmt.Errorf("%w %q", errUnknownTag, tag)
	}
	def.RemoveSelector(sel)
	r.unpin(sel, world, tag, false)
	r.RebuildAll(world)
	return nil
}

// Replace swaps the definitions and reclassifies the snapshot.
func (r *Registry) Replace(defs []rules.TagDefinition, world *state.World) {
	r.setDefinitions(defs)
	r.RebuildAll(world)
}

// TagInfo describes one tag for introspection.
type TagInfo struct {
	Tag     string   `json:"tag"`
	Windows []int64  `json:"windows"`
	Counter int      `json:"counter,omitempty"`
	Geom    string   `json:"geom,omitempty"`
	Subtags []string `json:"subtags,omitempty"`
}

// ModuleInfo is the payload of the list verb.
type ModuleInfo struct {
	Module     string    `json:"module"`
	Autosave   bool      `json:"autosave,omitempty"`
	Pending    string    `json:"pending,omitempty"`
	Tags       []TagInfo `json:"tags"`
	Fullscreen []int64   `json:"fullscreen,omitempty"`
}

func (r *Registry) info(module string) ModuleInfo {
	out := ModuleInfo{Module: module, Fullscreen: r.fullscreen.ids()}
	for _, def := range r.defs {
		st := r.tags[def.Name]
		out.Tags = append(out.Tags, TagInfo{
			Tag:     def.Name,
			Windows: append([]int64{}, st.windows...),
			Counter: st.counter,
			Geom:    def.Geom,
			Subtags: def.SubtagNames(),
		})
	}
	return out
}
