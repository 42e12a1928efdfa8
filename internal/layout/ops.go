package layout

import (
	"context"
	"fmt"
	"strings"
)

// Dispatcher executes i3 commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, command string) error
}

// Plan is a collection of sequential i3 commands.
type Plan struct {
	Commands []string
}

// Add appends a command.
func (p *Plan) Add(command string) {
	p.Commands = append(p.Commands, command)
}

// Merge merges other plan into this one.
func (p *Plan) Merge(other Plan) {
	p.Commands = append(p.Commands, other.Commands...)
}

// Empty reports whether the plan has no commands.
func (p Plan) Empty() bool {
	return len(p.Commands) == 0
}

func target(id int64, cmd string) string {
	return fmt.Sprintf("[con_id=%d] %s", id, cmd)
}

// Focus focuses the provided container.
func Focus(id int64) Plan {
	var p Plan
	p.Add(target(id, "focus"))
	return p
}

// Hide moves the container to the scratchpad, optionally placing it first so
// the next show restores the geometry.
func Hide(id int64, place *Rect) Plan {
	var p Plan
	if place != nil {
		p.Add(target(id, "floating enable, "+PlaceCommand(*place)))
	}
	p.Add(target(id, "move scratchpad"))
	return p
}

// Show brings a container to the current workspace and focuses it.
func Show(id int64) Plan {
	var p Plan
	p.Add(target(id, "move window to workspace current"))
	p.Add(target(id, "focus"))
	return p
}

// Bring moves a container to the current workspace without focusing it.
func Bring(id int64) Plan {
	var p Plan
	p.Add(target(id, "move window to workspace current"))
	return p
}

// Refloat focuses a container and floats it again, so i3 re-centers it.
func Refloat(id int64) Plan {
	var p Plan
	p.Add(target(id, "focus, floating disable, floating enable"))
	return p
}

// FocusWindow focuses an X11 window by id rather than by container.
func FocusWindow(xid int64) Plan {
	var p Plan
	p.Add(fmt.Sprintf("[id=%d] focus", xid))
	return p
}

// Fullscreen toggles fullscreen state for a container.
func Fullscreen(id int64, enable bool) Plan {
	var p Plan
	if enable {
		p.Add(target(id, "fullscreen enable"))
	} else {
		p.Add(target(id, "fullscreen disable"))
	}
	return p
}

// Mark adds a mark to the container without dropping existing ones.
func Mark(id int64, mark string) Plan {
	var p Plan
	p.Add(target(id, fmt.Sprintf("mark --add %s", quote(mark))))
	return p
}

// Unmark removes a mark from whichever container carries it.
func Unmark(mark string) Plan {
	var p Plan
	p.Add(fmt.Sprintf("unmark %s", quote(mark)))
	return p
}

// Exec runs a program through i3.
func Exec(command string) Plan {
	var p Plan
	p.Add(fmt.Sprintf("exec --no-startup-id %s", command))
	return p
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// Execute applies the plan sequentially using dispatcher.
func (p Plan) Execute(ctx context.Context, d Dispatcher) error {
	for _, cmd := range p.Commands {
		if err := d.Dispatch(ctx, cmd); err != nil {
			return fmt.Errorf("dispatch %s: %w", cmd, err)
		}
	}
	return nil
}
