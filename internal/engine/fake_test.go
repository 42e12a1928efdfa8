package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/negwm/negwm/internal/config"
	"github.com/negwm/negwm/internal/layout"
	"github.com/negwm/negwm/internal/state"
	"github.com/negwm/negwm/internal/util"
)

const currentWorkspace = "1"

// fakeWM interprets the commands the engines emit against an in-memory tree.
type fakeWM struct {
	world    *state.World
	commands []string
	execs    []string
	focusedX []int64
	failOn   string
}

func newFakeWM(wins ...state.Window) *fakeWM {
	world := &state.World{CurrentWorkspace: currentWorkspace}
	for i, win := range wins {
		if win.Workspace == "" {
			win.Workspace = currentWorkspace
		}
		if win.ParentOrder == 0 {
			win.ParentOrder = i + 1
		}
		world.Windows = append(world.Windows, win)
	}
	return &fakeWM{world: world}
}

func (f *fakeWM) Snapshot(context.Context) (*state.World, error) {
	world := state.CloneWorld(f.world)
	for i := range world.Windows {
		world.Windows[i].Focused = world.Windows[i].ID == world.FocusedID
	}
	return world, nil
}

func (f *fakeWM) Dispatch(_ context.Context, command string) error {
	if f.failOn != "" && strings.Contains(command, f.failOn) {
		return errors.New("command failed")
	}
	f.commands = append(f.commands, command)
	switch {
	case strings.HasPrefix(command, "exec "):
		f.execs = append(f.execs, strings.TrimPrefix(command, "exec --no-startup-id "))
		return nil
	case strings.HasPrefix(command, "unmark "):
		mark := strings.Trim(strings.TrimPrefix(command, "unmark "), `"`)
		for i := range f.world.Windows {
			f.world.Windows[i].Marks = without(f.world.Windows[i].Marks, mark)
		}
		return nil
	case strings.HasPrefix(command, "[id="):
		end := strings.Index(command, "]")
		xid, _ := strconv.ParseInt(command[len("[id="):end], 10, 64)
		f.focusedX = append(f.focusedX, xid)
		return nil
	}
	if !strings.HasPrefix(command, "[con_id=") {
		return fmt.Errorf("unexpected command %q", command)
	}
	end := strings.Index(command, "]")
	id, err := strconv.ParseInt(command[len("[con_id="):end], 10, 64)
	if err != nil {
		return err
	}
	win := f.world.FindWindow(id)
	if win == nil {
		return fmt.Errorf("no container %d", id)
	}
	for _, sub := range strings.Split(command[end+2:], ", ") {
		switch {
		case sub == "move scratchpad":
			win.Workspace = state.ScratchWorkspace
			if f.world.FocusedID == id {
				f.world.FocusedID = 0
			}
		case sub == "move window to workspace current":
			win.Workspace = f.world.CurrentWorkspace
		case sub == "focus":
			f.world.FocusedID = id
		case sub == "fullscreen enable":
			win.Fullscreen = true
		case sub == "fullscreen disable":
			win.Fullscreen = false
		case strings.HasPrefix(sub, "mark --add "):
			win.Marks = append(win.Marks, strings.Trim(strings.TrimPrefix(sub, "mark --add "), `"`))
		case strings.HasPrefix(sub, "move absolute position "):
			fmt.Sscanf(sub, "move absolute position %d %d", &win.Rect.X, &win.Rect.Y)
		case strings.HasPrefix(sub, "resize set "):
			fmt.Sscanf(sub, "resize set %d %d", &win.Rect.Width, &win.Rect.Height)
		case sub == "floating enable", sub == "floating disable":
		default:
			return fmt.Errorf("unexpected subcommand %q", sub)
		}
	}
	return nil
}

func (f *fakeWM) add(win state.Window) {
	if win.Workspace == "" {
		win.Workspace = f.world.CurrentWorkspace
	}
	if win.ParentOrder == 0 {
		win.ParentOrder = len(f.world.Windows) + 1
	}
	f.world.Windows = append(f.world.Windows, win)
}

func (f *fakeWM) remove(id int64) {
	for i, win := range f.world.Windows {
		if win.ID == id {
			f.world.Windows = append(f.world.Windows[:i], f.world.Windows[i+1:]...)
			break
		}
	}
	if f.world.FocusedID == id {
		f.world.FocusedID = 0
	}
}

func (f *fakeWM) window(id int64) state.Window {
	if win := f.world.FindWindow(id); win != nil {
		return *win
	}
	return state.Window{}
}

func (f *fakeWM) visible() []int64 {
	var ids []int64
	for _, win := range f.world.Windows {
		if win.Workspace == f.world.CurrentWorkspace {
			ids = append(ids, win.ID)
		}
	}
	return ids
}

func (f *fakeWM) reset() {
	f.commands = nil
	f.execs = nil
}

func without(values []string, v string) []string {
	var out []string
	for _, item := range values {
		if item != v {
			out = append(out, item)
		}
	}
	return out
}

type memoryStore struct {
	saved map[string]string
	err   error
}

func (m *memoryStore) SaveGeometry(module, tag, geom string) error {
	if m.err != nil {
		return m.err
	}
	if m.saved == nil {
		m.saved = make(map[string]string)
	}
	m.saved[module+"/"+tag] = geom
	return nil
}

func testLogger() *util.Logger {
	return util.NewLoggerWithWriter(util.LevelError, &strings.Builder{})
}

func win(id int64, class string) state.Window {
	return state.Window{ID: id, Class: class, Instance: strings.ToLower(class), Rect: layout.Rect{Width: 100, Height: 100}}
}

func mustParse(t interface{ Fatalf(string, ...any) }, doc string) *config.Config {
	cfg, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }
