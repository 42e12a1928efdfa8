package display

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"

	"github.com/negwm/negwm/internal/state"
	"github.com/negwm/negwm/internal/util"
)

const (
	typeDialog = "_NET_WM_WINDOW_TYPE_DIALOG"
	stateModal = "_NET_WM_STATE_MODAL"
)

// Hints reads EWMH properties of client windows.
type Hints interface {
	WindowTypes(xid int64) ([]string, error)
	States(xid int64) ([]string, error)
}

// X11Hints reads EWMH properties over an X connection opened on first use.
type X11Hints struct {
	mu sync.Mutex
	xu *xgbutil.XUtil
}

func (h *X11Hints) conn() (*xgbutil.XUtil, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.xu != nil {
		return h.xu, nil
	}
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect to X server: %w", err)
	}
	h.xu = xu
	return xu, nil
}

// WindowTypes implements Hints.
func (h *X11Hints) WindowTypes(xid int64) ([]string, error) {
	xu, err := h.conn()
	if err != nil {
		return nil, err
	}
	return ewmh.WmWindowTypeGet(xu, xproto.Window(xid))
}

// States implements Hints.
func (h *X11Hints) States(xid int64) ([]string, error) {
	xu, err := h.conn()
	if err != nil {
		return nil, err
	}
	return ewmh.WmStateGet(xu, xproto.Window(xid))
}

// Close drops the X connection, if one was opened.
func (h *X11Hints) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.xu != nil {
		h.xu.Conn().Close()
		h.xu = nil
	}
}

// WindowKind is the role a window plays for the transients tag.
type WindowKind int

const (
	KindNormal WindowKind = iota
	KindDialog
	KindModal
)

func (k WindowKind) String() string {
	switch k {
	case KindDialog:
		return "dialog"
	case KindModal:
		return "modal"
	default:
		return "normal"
	}
}

var dialogRoles = map[string]bool{
	"GtkFileChooserDialog": true,
	"confirmEx":            true,
	"gimp-file-open":       true,
}

// Classifier recognizes dialog and modal windows.
type Classifier struct {
	hints  Hints
	logger *util.Logger
}

// NewClassifier returns a classifier reading EWMH hints from hints. A nil
// hints source limits detection to well-known roles and classes.
func NewClassifier(hints Hints, logger *util.Logger) *Classifier {
	return &Classifier{hints: hints, logger: logger}
}

// Kind classifies win. A modal state wins over every other signal; known
// dialog roles and classes are recognized before the window type is read.
func (c *Classifier) Kind(win state.Window) WindowKind {
	canQuery := c.hints != nil && win.XID != 0
	if canQuery && c.has(win, "state", c.hints.States, stateModal) {
		return KindModal
	}
	if win.Instance == "Places" || win.Class == "Dialog" || dialogRoles[win.Role] {
		return KindDialog
	}
	if canQuery && c.has(win, "type", c.hints.WindowTypes, typeDialog) {
		return KindDialog
	}
	return KindNormal
}

func (c *Classifier) has(win state.Window, what string, read func(int64) ([]string, error), atom string) bool {
	values, err := read(win.XID)
	if err != nil {
		c.logger.Tracef("window %d: no %s hints: %v", win.ID, what, err)
		return false
	}
	for _, v := range values {
		if v == atom {
			return true
		}
	}
	return false
}
