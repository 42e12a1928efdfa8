package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/negwm/negwm/internal/rules"
	"github.com/negwm/negwm/internal/state"
)

func testRegistry(t *testing.T, doc string) *Registry {
	t.Helper()
	cfg := mustParse(t, doc)
	return NewRegistry(rules.Compile(cfg.Scratchpad, testLogger()))
}

const registryDoc = `
scratchpad:
  im:
    class: [Slack, TelegramDesktop]
  web:
    class_r: ['^fire']
  all:
    match_all: true
`

func TestRebuildAllIsIdempotent(t *testing.T) {
	reg := testRegistry(t, registryDoc)
	world := &state.World{Windows: []state.Window{win(1, "Slack"), win(2, "firefox"), win(3, "TelegramDesktop")}}
	reg.RebuildAll(world)
	first := map[string][]int64{}
	for _, tag := range reg.Names() {
		first[tag] = reg.Tagged(tag)
	}
	reg.RebuildAll(world)
	second := map[string][]int64{}
	for _, tag := range reg.Names() {
		second[tag] = reg.Tagged(tag)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("rebuild changed the lists (-first +second):\n%s", diff)
	}
	want := map[string][]int64{"im": {1, 3}, "web": {2}, "all": {1, 2, 3}}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Fatalf("unexpected classification (-want +got):\n%s", diff)
	}
}

func TestRebuildAllKeepsOrderOfRetainedWindows(t *testing.T) {
	reg := testRegistry(t, registryDoc)
	world := &state.World{Windows: []state.Window{win(1, "Slack"), win(3, "TelegramDesktop")}}
	reg.RebuildAll(world)
	reg.state("im").promote(3)
	world.Windows = append(world.Windows, win(4, "Slack"))
	reg.RebuildAll(world)
	if diff := cmp.Diff([]int64{3, 1, 4}, reg.Tagged("im")); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestOnWindowCloseRemovesEverywhere(t *testing.T) {
	reg := testRegistry(t, registryDoc)
	world := &state.World{Windows: []state.Window{win(1, "Slack"), win(2, "firefox")}}
	reg.RebuildAll(world)
	reg.fullscreen.order = append(reg.fullscreen.order, 1)
	reg.fullscreen.expected[1] = 1

	removed := reg.OnWindowClose(1)
	if diff := cmp.Diff([]string{"im", "all"}, removed); diff != "" {
		t.Fatalf("unexpected tags (-want +got):\n%s", diff)
	}
	for _, tag := range reg.Names() {
		if reg.Contains(tag, 1) {
			t.Fatalf("window 1 still tagged with %s", tag)
		}
	}
	if reg.fullscreen.has(1) || reg.fullscreen.expected[1] != 0 {
		t.Fatalf("window 1 still tracked for fullscreen")
	}
}

func TestOnWindowNewAppends(t *testing.T) {
	reg := testRegistry(t, registryDoc)
	world := &state.World{Windows: []state.Window{win(1, "Slack")}}
	reg.RebuildAll(world)
	tags := reg.OnWindowNew(win(5, "TelegramDesktop"))
	if diff := cmp.Diff([]string{"im", "all"}, tags); diff != "" {
		t.Fatalf("unexpected tags (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{1, 5}, reg.Tagged("im")); diff != "" {
		t.Fatalf("unexpected im list (-want +got):\n%s", diff)
	}
}

func TestRotateAfter(t *testing.T) {
	st := &tagState{windows: []int64{1, 2, 3}}
	st.rotateAfter(1)
	if diff := cmp.Diff([]int64{2, 3, 1}, st.windows); diff != "" {
		t.Fatalf("unexpected ring (-want +got):\n%s", diff)
	}
	st.rotateAfter(3)
	if diff := cmp.Diff([]int64{1, 2, 3}, st.windows); diff != "" {
		t.Fatalf("unexpected ring (-want +got):\n%s", diff)
	}
	st.rotateAfter(42)
	if diff := cmp.Diff([]int64{1, 2, 3}, st.windows); diff != "" {
		t.Fatalf("unknown id should not rotate (-want +got):\n%s", diff)
	}
}

func TestMovePropIsExclusive(t *testing.T) {
	reg := testRegistry(t, `
scratchpad:
  im:
    class: [Slack]
  chat:
    class: [Slack, Element]
`)
	world := &state.World{Windows: []state.Window{win(1, "Slack"), win(2, "Element")}}
	reg.RebuildAll(world)
	if err := reg.MoveProp("im", "[class=Element]", world); err != nil {
		t.Fatalf("MoveProp: %v", err)
	}
	if diff := cmp.Diff([]int64{1, 2}, reg.Tagged("im")); diff != "" {
		t.Fatalf("unexpected im (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{1}, reg.Tagged("chat")); diff != "" {
		t.Fatalf("unexpected chat (-want +got):\n%s", diff)
	}
}

func TestPropErrorsAreNoOps(t *testing.T) {
	reg := testRegistry(t, registryDoc)
	world := &state.World{Windows: []state.Window{win(1, "Slack")}}
	reg.RebuildAll(world)
	before := append([]string(nil), reg.Definition("im").Class...)

	if err := reg.AddProp("im", "class=Foo", world); err == nil {
		t.Fatalf("expected selector error")
	}
	if err := reg.DelProp("missing", "[class=Slack]", world); !errors.Is(err, errUnknownTag) {
		t.Fatalf("expected unknown tag, got %v", err)
	}
	if diff := cmp.Diff(before, reg.Definition("im").Class); diff != "" {
		t.Fatalf("tag im changed (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{1}, reg.Tagged("im")); diff != "" {
		t.Fatalf("tagged windows changed (-want +got):\n%s", diff)
	}
}

func TestDelPropReclassifies(t *testing.T) {
	reg := testRegistry(t, registryDoc)
	world := &state.World{Windows: []state.Window{win(1, "Slack"), win(3, "TelegramDesktop")}}
	reg.RebuildAll(world)
	if err := reg.DelProp("im", "[class=Slack]", world); err != nil {
		t.Fatalf("DelProp: %v", err)
	}
	if diff := cmp.Diff([]int64{3}, reg.Tagged("im")); diff != "" {
		t.Fatalf("unexpected im (-want +got):\n%s", diff)
	}
}

func TestPinSurvivesRebuild(t *testing.T) {
	reg := testRegistry(t, registryDoc)
	world := &state.World{Windows: []state.Window{win(1, "Slack"), win(4, "Gimp")}}
	reg.RebuildAll(world)
	if err := reg.Pin("im", 4); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	reg.RebuildAll(world)
	if diff := cmp.Diff([]int64{1, 4}, reg.Tagged("im")); diff != "" {
		t.Fatalf("pinned window lost (-want +got):\n%s", diff)
	}
	if err := reg.MoveProp("web", "[class=Gimp]", world); err != nil {
		t.Fatalf("MoveProp: %v", err)
	}
	if reg.Contains("im", 4) || !reg.Contains("web", 4) {
		t.Fatalf("expected move to release the pin, im=%v web=%v", reg.Tagged("im"), reg.Tagged("web"))
	}

	if err := reg.Pin("im", 4); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	reg.OnWindowClose(4)
	reg.RebuildAll(&state.World{Windows: []state.Window{win(1, "Slack"), win(4, "Mpv")}})
	if reg.Contains("im", 4) {
		t.Fatalf("pin must not outlive the window")
	}
	if err := reg.Pin("missing", 1); !errors.Is(err, errUnknownTag) {
		t.Fatalf("expected unknown tag, got %v", err)
	}
}
