package state

import (
	"context"

	"github.com/negwm/negwm/internal/layout"
)

// ScratchWorkspace is the workspace i3 keeps scratchpad windows on.
const ScratchWorkspace = "__i3_scratch"

// Window describes a managed i3 window leaf.
type Window struct {
	ID           int64
	XID          int64
	Class        string
	Instance     string
	Role         string
	Name         string
	Rect         layout.Rect
	Fullscreen   bool
	Focused      bool
	Workspace    string
	Parents      []int64
	ParentOrder  int
	TransientFor int64
	Marks        []string
}

// Hidden reports whether the window currently sits in the scratchpad.
func (w Window) Hidden() bool {
	return w.Workspace == ScratchWorkspace
}

// World represents the current snapshot of the i3 window tree.
type World struct {
	Windows          []Window
	FocusedID        int64
	CurrentWorkspace string
}

// DataSource abstracts the query required to build the world snapshot.
type DataSource interface {
	Snapshot(ctx context.Context) (*World, error)
}

// FindWindow returns the window with id, or nil.
func (w *World) FindWindow(id int64) *Window {
	if w == nil {
		return nil
	}
	for i := range w.Windows {
		if w.Windows[i].ID == id {
			return &w.Windows[i]
		}
	}
	return nil
}

// Focused returns the focused window if present.
func (w *World) Focused() *Window {
	if w == nil || w.FocusedID == 0 {
		return nil
	}
	return w.FindWindow(w.FocusedID)
}

// Visible returns the windows placed on the current workspace.
func (w *World) Visible() []Window {
	if w == nil {
		return nil
	}
	var out []Window
	for _, win := range w.Windows {
		if win.Workspace == w.CurrentWorkspace && !win.Hidden() {
			out = append(out, win)
		}
	}
	return out
}

// CloneWorld returns a deep copy of the provided world snapshot.
func CloneWorld(src *World) *World {
	if src == nil {
		return nil
	}
	copyWorld := *src
	if len(src.Windows) > 0 {
		copyWorld.Windows = make([]Window, len(src.Windows))
		for i, win := range src.Windows {
			win.Parents = append([]int64(nil), win.Parents...)
			win.Marks = append([]string(nil), win.Marks...)
			copyWorld.Windows[i] = win
		}
	}
	return &copyWorld
}
