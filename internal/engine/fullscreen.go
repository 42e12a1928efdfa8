package engine

import (
	"context"

	"github.com/negwm/negwm/internal/layout"
)

// fullscreenSet tracks windows forced out of fullscreen so they can be put
// back exactly once, and the transitions dispatched by the engine itself so
// their events are not mistaken for user changes.
type fullscreenSet struct {
	order    []int64
	expected map[int64]int
}

func newFullscreenSet() *fullscreenSet {
	return &fullscreenSet{expected: make(map[int64]int)}
}

func (f *fullscreenSet) has(id int64) bool {
	for _, v := range f.order {
		if v == id {
			return true
		}
	}
	return false
}

func (f *fullscreenSet) ids() []int64 {
	return append([]int64(nil), f.order...)
}

func (f *fullscreenSet) forget(id int64) {
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	delete(f.expected, id)
}

func (f *fullscreenSet) retain(present map[int64]bool) {
	for _, id := range f.ids() {
		if !present[id] {
			f.forget(id)
		}
	}
}

// suspend leaves fullscreen on id and records it.
func (f *fullscreenSet) suspend(ctx context.Context, d layout.Dispatcher, id int64) error {
	if err := layout.Fullscreen(id, false).Execute(ctx, d); err != nil {
		return err
	}
	f.expected[id]++
	if !f.has(id) {
		f.order = append(f.order, id)
	}
	return nil
}

// restore re-enables fullscreen on id if, and only if, it was suspended.
func (f *fullscreenSet) restore(ctx context.Context, d layout.Dispatcher, id int64) error {
	if !f.has(id) {
		return nil
	}
	f.forget(id)
	if err := layout.Fullscreen(id, true).Execute(ctx, d); err != nil {
		return err
	}
	f.expected[id]++
	return nil
}

// restoreAll restores every recorded window except those in skip.
func (f *fullscreenSet) restoreAll(ctx context.Context, d layout.Dispatcher, skip map[int64]bool) error {
	for _, id := range f.ids() {
		if skip[id] {
			continue
		}
		if err := f.restore(ctx, d, id); err != nil {
			return err
		}
	}
	return nil
}

// observe consumes a fullscreen_mode event. It returns true when the event was
// caused by the engine. A user entering fullscreen on a suspended window
// clears the pending restore.
func (f *fullscreenSet) observe(id int64, fullscreen bool) bool {
	if n := f.expected[id]; n > 0 {
		if n == 1 {
			delete(f.expected, id)
		} else {
			f.expected[id] = n - 1
		}
		return true
	}
	if fullscreen {
		f.forget(id)
	}
	return false
}
