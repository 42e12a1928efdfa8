package ipc

import (
	"context"
	"sync"

	"go.i3wm.org/i3/v4"

	"github.com/negwm/negwm/internal/state"
	"github.com/negwm/negwm/internal/util"
)

// EventKind enumerates the window events the engine reacts to.
type EventKind int

const (
	WindowNew EventKind = iota + 1
	WindowClose
	WindowFocus
	FullscreenModeChanged
)

var eventKindNames = map[EventKind]string{
	WindowNew:             "new",
	WindowClose:           "close",
	WindowFocus:           "focus",
	FullscreenModeChanged: "fullscreen_mode",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is a typed i3 window event.
type Event struct {
	Kind   EventKind
	Window state.Window
}

// EventFromWindowEvent converts an i3 window event, reporting false for
// changes the engine does not track.
func EventFromWindowEvent(ev *i3.WindowEvent) (Event, bool) {
	if ev == nil {
		return Event{}, false
	}
	for kind, name := range eventKindNames {
		if ev.Change == name {
			return Event{Kind: kind, Window: windowFromNode(&ev.Container)}, true
		}
	}
	return Event{}, false
}

// Subscribe streams i3 window events in emission order until ctx is cancelled.
func Subscribe(ctx context.Context, logger *util.Logger) (<-chan Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recv := i3.Subscribe(i3.WindowEventType)
	var once sync.Once
	var closeErr error
	closeRecv := func() error {
		once.Do(func() { closeErr = recv.Close() })
		return closeErr
	}
	go func() {
		<-ctx.Done()
		closeRecv()
	}()

	events := make(chan Event)
	go func() {
		defer close(events)
		for recv.Next() {
			wev, ok := recv.Event().(*i3.WindowEvent)
			if !ok {
				continue
			}
			ev, ok := EventFromWindowEvent(wev)
			if !ok {
				logger.Tracef("ignoring window event %q", wev.Change)
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
		if err := closeRecv(); err != nil && ctx.Err() == nil {
			logger.Warnf("event stream error: %v", err)
		}
	}()
	return events, nil
}
