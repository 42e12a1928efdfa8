package ipc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.i3wm.org/i3/v4"

	"github.com/negwm/negwm/internal/layout"
	"github.com/negwm/negwm/internal/state"
	"github.com/negwm/negwm/internal/util"
)

// Client talks to i3 over its IPC socket.
type Client struct {
	logger     *util.Logger
	getTree    func() (i3.Tree, error)
	runCommand func(string) ([]i3.CommandResult, error)
}

// NewClient returns a client bound to the running i3 instance.
func NewClient(logger *util.Logger) *Client {
	return &Client{logger: logger, getTree: i3.GetTree, runCommand: i3.RunCommand}
}

// Snapshot implements state.DataSource.
func (c *Client) Snapshot(ctx context.Context) (*state.World, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tree, err := c.getTree()
	if err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}
	return WorldFromTree(tree.Root), nil
}

// Dispatch implements layout.Dispatcher.
func (c *Client) Dispatch(ctx context.Context, command string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.logger.Tracef("i3 command: %s", command)
	results, err := c.runCommand(command)
	if err != nil {
		return fmt.Errorf("run command: %w", err)
	}
	var errs []string
	for _, r := range results {
		if !r.Success {
			errs = append(errs, r.Error)
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

type walker struct {
	world     *state.World
	order     int
	parents   []int64
	orders    []int
	workspace string
}

// WorldFromTree flattens the i3 layout tree into window leaves in tree order.
func WorldFromTree(root *i3.Node) *state.World {
	w := &walker{world: &state.World{}}
	if root != nil {
		w.visit(root)
	}
	return w.world
}

func (w *walker) visit(n *i3.Node) {
	w.order++
	prevWorkspace := w.workspace
	if n.Type == i3.WorkspaceNode {
		w.workspace = n.Name
	}
	if n.Focused {
		w.world.CurrentWorkspace = w.workspace
	}
	if n.Window != 0 {
		win := windowFromNode(n)
		win.Workspace = w.workspace
		win.Parents = reversed(w.parents)
		if len(w.orders) > 0 {
			win.ParentOrder = w.orders[len(w.orders)-1]
		}
		if win.Focused {
			w.world.FocusedID = win.ID
		}
		w.world.Windows = append(w.world.Windows, win)
	}

	w.parents = append(w.parents, int64(n.ID))
	w.orders = append(w.orders, w.order)
	for _, child := range n.Nodes {
		w.visit(child)
	}
	for _, child := range n.FloatingNodes {
		w.visit(child)
	}
	w.parents = w.parents[:len(w.parents)-1]
	w.orders = w.orders[:len(w.orders)-1]
	w.workspace = prevWorkspace
}

func windowFromNode(n *i3.Node) state.Window {
	return state.Window{
		ID:       int64(n.ID),
		XID:      n.Window,
		Class:    n.WindowProperties.Class,
		Instance: n.WindowProperties.Instance,
		Role:     n.WindowProperties.Role,
		Name:     n.Name,
		Rect: layout.Rect{
			X:      int(n.Rect.X),
			Y:      int(n.Rect.Y),
			Width:  int(n.Rect.Width),
			Height: int(n.Rect.Height),
		},
		Fullscreen:   n.FullscreenMode != 0,
		Focused:      n.Focused,
		TransientFor: int64(n.WindowProperties.TransientFor),
		Marks:        append([]string(nil), n.Marks...),
	}
}

func reversed(ids []int64) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
