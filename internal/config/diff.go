package config

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// DiffTags describes what changed between two configurations: the top-level
// settings, then every added, removed or edited tag as module/tag. It
// returns an empty string when both are equivalent.
func DiffTags(previous, current *Config) string {
	if previous == nil {
		previous = &Config{}
	}
	if current == nil {
		current = &Config{}
	}
	var b strings.Builder
	if diff := cmp.Diff(*previous, *current, cmpopts.IgnoreFields(Config{}, "Scratchpad", "Circle")); diff != "" {
		fmt.Fprintf(&b, "settings changed (-previous +current):\n%s\n", strings.TrimRight(diff, "\n"))
	}
	for _, module := range []string{ModuleScratchpad, ModuleCircle} {
		prev, _ := previous.Module(module)
		cur, _ := current.Module(module)
		for _, tag := range prev {
			next := cur.Lookup(tag.Name)
			if next == nil {
				fmt.Fprintf(&b, "%s/%s removed\n", module, tag.Name)
				continue
			}
			if diff := cmp.Diff(tag, *next, cmpopts.EquateEmpty()); diff != "" {
				fmt.Fprintf(&b, "%s/%s changed (-previous +current):\n%s\n", module, tag.Name, strings.TrimRight(diff, "\n"))
			}
		}
		for _, tag := range cur {
			if prev.Lookup(tag.Name) == nil {
				fmt.Fprintf(&b, "%s/%s added\n", module, tag.Name)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
