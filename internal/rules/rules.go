package rules

import (
	"regexp"
	"sort"

	"github.com/negwm/negwm/internal/config"
	"github.com/negwm/negwm/internal/util"
)

// SubtagDefinition is a secondary classification nested under a tag.
type SubtagDefinition struct {
	Name  string
	Class []string
	Prog  string
}

// HasClass reports whether class belongs to the subtag.
func (s SubtagDefinition) HasClass(class string) bool {
	return contains(s.Class, class)
}

// TagDefinition is a compiled tag ready for matching.
type TagDefinition struct {
	Name          string
	Class         []string
	Instance      []string
	Role          []string
	ClassRegex    []*regexp.Regexp
	InstanceRegex []*regexp.Regexp
	RoleRegex     []*regexp.Regexp
	NameRegex     []*regexp.Regexp
	MatchAll      bool
	Geom          string
	Prog          string
	Spawn         string
	Priority      string
	Subtags       map[string]SubtagDefinition
}

// Subtag looks up a subtag by name.
func (d *TagDefinition) Subtag(name string) (SubtagDefinition, bool) {
	sub, ok := d.Subtags[name]
	return sub, ok
}

// SubtagNames returns subtag names sorted alphabetically.
func (d *TagDefinition) SubtagNames() []string {
	names := make([]string, 0, len(d.Subtags))
	for name := range d.Subtags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy that can be mutated without touching d.
func (d TagDefinition) Clone() TagDefinition {
	out := d
	out.Class = append([]string(nil), d.Class...)
	out.Instance = append([]string(nil), d.Instance...)
	out.Role = append([]string(nil), d.Role...)
	out.ClassRegex = append([]*regexp.Regexp(nil), d.ClassRegex...)
	out.InstanceRegex = append([]*regexp.Regexp(nil), d.InstanceRegex...)
	out.RoleRegex = append([]*regexp.Regexp(nil), d.RoleRegex...)
	out.NameRegex = append([]*regexp.Regexp(nil), d.NameRegex...)
	if d.Subtags != nil {
		out.Subtags = make(map[string]SubtagDefinition, len(d.Subtags))
		for name, sub := range d.Subtags {
			sub.Class = append([]string(nil), sub.Class...)
			out.Subtags[name] = sub
		}
	}
	return out
}

// Compile turns the configured tags of a module into definitions. Malformed
// regexes are logged and dropped so one bad pattern never disables a tag.
func Compile(tags config.Tags, logger *util.Logger) []TagDefinition {
	defs := make([]TagDefinition, 0, len(tags))
	for _, tag := range tags {
		defs = append(defs, CompileTag(tag, logger))
	}
	return defs
}

// CompileTag compiles a single tag configuration.
func CompileTag(tag config.TagConfig, logger *util.Logger) TagDefinition {
	def := TagDefinition{
		Name:     tag.Name,
		Class:    compact(tag.Class),
		Instance: compact(tag.Instance),
		Role:     compact(tag.Role),
		MatchAll: tag.MatchAll,
		Geom:     tag.Geom,
		Prog:     tag.Prog,
		Spawn:    tag.Spawn,
		Priority: tag.Priority,
	}
	def.ClassRegex = compileAll(tag.Name, "class_r", tag.ClassRegex, logger)
	def.InstanceRegex = compileAll(tag.Name, "instance_r", tag.InstanceRegex, logger)
	def.RoleRegex = compileAll(tag.Name, "role_r", tag.RoleRegex, logger)
	def.NameRegex = compileAll(tag.Name, "name_r", tag.NameRegex, logger)
	if len(tag.Subtags) > 0 {
		def.Subtags = make(map[string]SubtagDefinition, len(tag.Subtags))
		for name, sub := range tag.Subtags {
			def.Subtags[name] = SubtagDefinition{Name: name, Class: compact(sub.Class), Prog: sub.Prog}
		}
	}
	return def
}

func compileAll(tag, factor string, patterns []string, logger *util.Logger) []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, pattern := range patterns {
		if pattern == "" {
			logger.Warnf("tag %s: empty %s pattern skipped", tag, factor)
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			logger.Warnf("tag %s: skipping %s pattern %q: %v", tag, factor, pattern, err)
			continue
		}
		out = append(out, re)
	}
	return out
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v == "" || contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func contains(values []string, v string) bool {
	for _, item := range values {
		if item == v {
			return true
		}
	}
	return false
}
