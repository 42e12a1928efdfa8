package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/negwm/negwm/internal/layout"
)

const sampleConfig = `
spawner: "negterm -e"
spawnWaitTimeout: 5s
scratchpad:
  im:
    class: [Slack, TelegramDesktop]
    geom: 1304x2109+2536+2
    prog: telegram-desktop
    subtags:
      tel:
        class: KotatogramDesktop
        prog: kotatogram-desktop
  term:
    instance: [scratch-term]
    spawn: scratch-term
circle:
  web:
    class: firefox
    priority: firefox
    prog: firefox
`

func TestParseSample(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Reference != layout.DefaultReference {
		t.Fatalf("expected default reference, got %+v", cfg.Reference)
	}
	if cfg.SpawnWaitTimeout != 5*time.Second {
		t.Fatalf("expected 5s spawn wait timeout, got %s", cfg.SpawnWaitTimeout)
	}
	if diff := cmp.Diff([]string{"im", "term"}, cfg.Scratchpad.Names()); diff != "" {
		t.Fatalf("unexpected scratchpad tag order (-want +got):\n%s", diff)
	}
	im := cfg.Scratchpad.Lookup("im")
	if im == nil {
		t.Fatalf("expected im tag")
	}
	if diff := cmp.Diff(StringList{"KotatogramDesktop"}, im.Subtags["tel"].Class); diff != "" {
		t.Fatalf("unexpected subtag classes (-want +got):\n%s", diff)
	}
	web := cfg.Circle.Lookup("web")
	if web == nil || web.Priority != "firefox" || len(web.Class) != 1 {
		t.Fatalf("unexpected circle tag %+v", web)
	}
}

func TestTagsDuplicateDetection(t *testing.T) {
	data := []byte(`
scratchpad:
  im:
    class: Slack
  im:
    class: Discord
`)
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err == nil {
		t.Fatalf("expected duplicate tag error during unmarshal")
	}
}

func TestValidateRejectsBrokenTags(t *testing.T) {
	cases := map[string]string{
		"no tags":       "spawner: x\n",
		"no rule":       "circle:\n  web:\n    prog: firefox\n",
		"bad geometry":  "scratchpad:\n  im:\n    class: Slack\n    geom: wide\n",
		"subtag class":  "scratchpad:\n  im:\n    class: Slack\n    subtags:\n      tel: {prog: tg}\n",
		"bad reference": "reference: {width: -1, height: 10}\ncircle:\n  web:\n    class: firefox\n",
	}
	for name, data := range cases {
		if _, err := Parse([]byte(data)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
