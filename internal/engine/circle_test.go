package engine

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/negwm/negwm/internal/ipc"
	"github.com/negwm/negwm/internal/state"
)

const circleDoc = `
spawner: st -e
circle:
  T:
    class: [Foo]
  web:
    class: [firefox, chromium]
    priority: firefox
    prog: firefox
  term:
    class: [Alacritty]
    spawn: tmux
  chat:
    class: [TelegramDesktop, Kotatogram]
    subtags:
      kot: {class: [Kotatogram], prog: kotatogram-desktop}
`

func newCircleFixture(t *testing.T, focused int64, wins ...state.Window) (*fakeWM, *Circle) {
	t.Helper()
	wm := newFakeWM(wins...)
	wm.world.FocusedID = focused
	c := NewCircle(wm, mustParse(t, circleDoc), CircleOptions{Logger: testLogger()})
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return wm, c
}

func TestCircleTwoWindowScenario(t *testing.T) {
	ctx := context.Background()
	wm, c := newCircleFixture(t, 9, win(1, "Foo"), win(2, "Foo"), win(9, "Bar"))
	var focused []int64
	for i := 0; i < 3; i++ {
		if err := c.Next(ctx, "T"); err != nil {
			t.Fatalf("Next: %v", err)
		}
		focused = append(focused, wm.world.FocusedID)
		if i == 0 && c.reg.state("T").counter != 1 {
			t.Fatalf("expected counter 1 after first next, got %d", c.reg.state("T").counter)
		}
	}
	if diff := cmp.Diff([]int64{1, 2, 1}, focused); diff != "" {
		t.Fatalf("unexpected focus order (-want +got):\n%s", diff)
	}
}

func TestCircleRotationVisitsEveryWindow(t *testing.T) {
	for start := 0; start < 6; start++ {
		wm, c := newCircleFixture(t, 9, win(1, "Foo"), win(2, "Foo"), win(3, "Foo"), win(9, "Bar"))
		c.reg.state("T").counter = start
		seen := map[int64]int{}
		for i := 0; i < 3; i++ {
			if err := c.Next(context.Background(), "T"); err != nil {
				t.Fatalf("Next: %v", err)
			}
			seen[wm.world.FocusedID]++
		}
		if diff := cmp.Diff(map[int64]int{1: 1, 2: 1, 3: 1}, seen); diff != "" {
			t.Fatalf("start %d: unexpected visits (-want +got):\n%s", start, diff)
		}
	}
}

func TestCircleSingleWindowDoesNotCount(t *testing.T) {
	wm, c := newCircleFixture(t, 9, win(1, "Foo"), win(9, "Bar"))
	for i := 0; i < 2; i++ {
		if err := c.Next(context.Background(), "T"); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if wm.world.FocusedID != 1 || c.reg.state("T").counter != 0 {
		t.Fatalf("focused %d counter %d", wm.world.FocusedID, c.reg.state("T").counter)
	}
}

func TestCircleSpawnsWhenEmpty(t *testing.T) {
	ctx := context.Background()
	wm, c := newCircleFixture(t, 9, win(9, "Bar"))
	if err := c.Next(ctx, "web"); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := c.Next(ctx, "term"); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if diff := cmp.Diff([]string{"firefox", "st -e tmux"}, wm.execs); diff != "" {
		t.Fatalf("unexpected spawns (-want +got):\n%s", diff)
	}
}

func TestCirclePriority(t *testing.T) {
	ctx := context.Background()
	wm, c := newCircleFixture(t, 9, win(1, "chromium"), win(2, "firefox"), win(9, "Bar"))
	if err := c.Next(ctx, "web"); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if wm.world.FocusedID != 2 || c.reg.state("web").counter != 0 {
		t.Fatalf("expected priority window without counting, focused %d counter %d", wm.world.FocusedID, c.reg.state("web").counter)
	}
	if err := c.Next(ctx, "web"); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if wm.world.FocusedID != 1 {
		t.Fatalf("expected cycling once inside the tag, focused %d", wm.world.FocusedID)
	}
}

func TestCirclePrioritySpawnsWhenMissing(t *testing.T) {
	wm, c := newCircleFixture(t, 9, win(1, "chromium"), win(3, "chromium"), win(9, "Bar"))
	if err := c.Next(context.Background(), "web"); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if diff := cmp.Diff([]string{"firefox"}, wm.execs); diff != "" {
		t.Fatalf("unexpected spawns (-want +got):\n%s", diff)
	}
	if wm.world.FocusedID != 9 {
		t.Fatalf("focus should not move, got %d", wm.world.FocusedID)
	}
}

func TestCircleSortsByParentOrder(t *testing.T) {
	w1, w2 := win(1, "Foo"), win(2, "Foo")
	w1.ParentOrder, w2.ParentOrder = 7, 3
	wm, c := newCircleFixture(t, 9, w1, w2, win(9, "Bar"))
	if err := c.Next(context.Background(), "T"); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if wm.world.FocusedID != 2 {
		t.Fatalf("expected window in the earlier container first, got %d", wm.world.FocusedID)
	}
}

func TestCircleFullscreenPairing(t *testing.T) {
	ctx := context.Background()
	w1 := win(1, "Foo")
	w1.Fullscreen = true
	wm, c := newCircleFixture(t, 1, w1, win(2, "Foo"))

	if err := c.Next(ctx, "T"); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if wm.world.FocusedID != 2 || wm.window(1).Fullscreen {
		t.Fatalf("expected switch to 2 with 1 out of fullscreen")
	}
	if err := c.HandleEvent(ctx, ipc.Event{Kind: ipc.FullscreenModeChanged, Window: state.Window{ID: 1}}); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if err := c.Next(ctx, "T"); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if wm.world.FocusedID != 1 || !wm.window(1).Fullscreen {
		t.Fatalf("expected 1 focused and fullscreen again")
	}
	if n := countCommand(wm.commands, "[con_id=1] fullscreen enable"); n != 1 {
		t.Fatalf("expected exactly one restore, got %d", n)
	}
	if ids := c.reg.fullscreen.ids(); len(ids) != 0 {
		t.Fatalf("restore set should be empty, got %v", ids)
	}
}

func TestCircleSubtag(t *testing.T) {
	ctx := context.Background()
	wm, c := newCircleFixture(t, 9, win(1, "TelegramDesktop"), win(9, "Bar"))
	if err := c.Subtag(ctx, "chat", "kot"); err != nil {
		t.Fatalf("Subtag: %v", err)
	}
	if diff := cmp.Diff([]string{"kotatogram-desktop"}, wm.execs); diff != "" {
		t.Fatalf("unexpected spawns (-want +got):\n%s", diff)
	}

	wm.add(win(4, "Kotatogram"))
	wm.add(win(5, "Kotatogram"))
	for _, id := range []int64{4, 5} {
		if err := c.HandleEvent(ctx, ipc.Event{Kind: ipc.WindowNew, Window: state.Window{ID: id}}); err != nil {
			t.Fatalf("HandleEvent: %v", err)
		}
	}
	var focused []int64
	for i := 0; i < 3; i++ {
		if err := c.Subtag(ctx, "chat", "kot"); err != nil {
			t.Fatalf("Subtag: %v", err)
		}
		focused = append(focused, wm.world.FocusedID)
	}
	if diff := cmp.Diff([]int64{4, 5, 4}, focused); diff != "" {
		t.Fatalf("unexpected subtag cycle (-want +got):\n%s", diff)
	}
	if err := c.Subtag(ctx, "chat", "nope"); err == nil {
		t.Fatalf("expected unknown subtag error")
	}
}

func TestCircleCloseConsistency(t *testing.T) {
	ctx := context.Background()
	w1 := win(1, "Foo")
	w1.Fullscreen = true
	wm, c := newCircleFixture(t, 1, w1, win(2, "Foo"))
	if err := c.Next(ctx, "T"); err != nil {
		t.Fatalf("Next: %v", err)
	}
	wm.remove(1)
	if err := c.HandleEvent(ctx, ipc.Event{Kind: ipc.WindowClose, Window: state.Window{ID: 1}}); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	for _, tag := range c.reg.Names() {
		if c.reg.Contains(tag, 1) {
			t.Fatalf("window 1 still in %s", tag)
		}
	}
	if c.reg.fullscreen.has(1) {
		t.Fatalf("window 1 still in the restore set")
	}
}

func TestCircleAddProp(t *testing.T) {
	ctx := context.Background()
	_, c := newCircleFixture(t, 9, win(1, "Foo"), win(9, "Bar"))
	if err := c.AddProp(ctx, "T", "[class=Bar]"); err != nil {
		t.Fatalf("AddProp: %v", err)
	}
	if diff := cmp.Diff([]int64{1, 9}, c.reg.Tagged("T")); diff != "" {
		t.Fatalf("unexpected list (-want +got):\n%s", diff)
	}
	if err := c.DelProp(ctx, "T", "[class=Bar]"); err != nil {
		t.Fatalf("DelProp: %v", err)
	}
	if diff := cmp.Diff([]int64{1}, c.reg.Tagged("T")); diff != "" {
		t.Fatalf("unexpected list (-want +got):\n%s", diff)
	}
	info := c.List()
	if info.Module != "circle" || len(info.Tags) != 4 {
		t.Fatalf("unexpected list payload %+v", info)
	}
}

var _ Module = (*Circle)(nil)
