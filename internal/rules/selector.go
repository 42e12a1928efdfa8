package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidSelector = errors.New("invalid selector")

// Selector is a parsed `[attr=value@attr=value]` property string.
type Selector struct {
	Class    string `json:"class,omitempty"`
	Instance string `json:"instance,omitempty"`
	Role     string `json:"role,omitempty"`
	Title    string `json:"title,omitempty"`
}

// Empty reports whether no attribute was given.
func (s Selector) Empty() bool {
	return s == Selector{}
}

// ParseSelector parses the property-string grammar used by add_prop and del_prop.
func ParseSelector(raw string) (Selector, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 2 || raw[0] != '[' || raw[len(raw)-1] != ']' {
		return Selector{}, fmt.Errorf("%w %q: expected [attr=value@...]", ErrInvalidSelector, raw)
	}
	var sel Selector
	for _, token := range strings.Split(raw[1:len(raw)-1], "@") {
		if token == "" {
			continue
		}
		attr, value, ok := strings.Cut(token, "=")
		if !ok {
			return Selector{}, fmt.Errorf("%w %q: token %q has no value", ErrInvalidSelector, raw, token)
		}
		value = unquote(strings.TrimSpace(value))
		if value == "" {
			return Selector{}, fmt.Errorf("%w %q: empty value for %s", ErrInvalidSelector, raw, attr)
		}
		switch strings.TrimSpace(attr) {
		case "class":
			sel.Class = value
		case "instance":
			sel.Instance = value
		case "role":
			sel.Role = value
		case "title":
			sel.Title = value
		default:
			return Selector{}, fmt.Errorf("%w %q: unknown attribute %q", ErrInvalidSelector, raw, attr)
		}
	}
	if sel.Empty() {
		return Selector{}, fmt.Errorf("%w %q: no attributes", ErrInvalidSelector, raw)
	}
	return sel, nil
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == v[len(v)-1] && (v[0] == '"' || v[0] == '\'') {
		return v[1 : len(v)-1]
	}
	return v
}

// AddSelector merges the selector into the exact-match sets. A title becomes
// an anchored name pattern.
func (d *TagDefinition) AddSelector(sel Selector) {
	if sel.Class != "" && !contains(d.Class, sel.Class) {
		d.Class = append(d.Class, sel.Class)
	}
	if sel.Instance != "" && !contains(d.Instance, sel.Instance) {
		d.Instance = append(d.Instance, sel.Instance)
	}
	if sel.Role != "" && !contains(d.Role, sel.Role) {
		d.Role = append(d.Role, sel.Role)
	}
	if sel.Title != "" {
		pattern := "^" + regexp.QuoteMeta(sel.Title) + "$"
		for _, re := range d.NameRegex {
			if re.String() == pattern {
				return
			}
		}
		d.NameRegex = append(d.NameRegex, regexp.MustCompile(pattern))
	}
}

// RemoveSelector drops the selector's values from the exact-match sets and
// every pattern that accepts one of them.
func (d *TagDefinition) RemoveSelector(sel Selector) {
	if sel.Class != "" {
		d.Class = without(d.Class, sel.Class)
		d.ClassRegex = withoutMatching(d.ClassRegex, sel.Class)
	}
	if sel.Instance != "" {
		d.Instance = without(d.Instance, sel.Instance)
		d.InstanceRegex = withoutMatching(d.InstanceRegex, sel.Instance)
	}
	if sel.Role != "" {
		d.Role = without(d.Role, sel.Role)
		d.RoleRegex = withoutMatching(d.RoleRegex, sel.Role)
	}
	if sel.Title != "" {
		d.NameRegex = withoutMatching(d.NameRegex, sel.Title)
	}
}

func without(values []string, v string) []string {
	out := values[:0]
	for _, item := range values {
		if item != v {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func withoutMatching(patterns []*regexp.Regexp, v string) []*regexp.Regexp {
	out := patterns[:0]
	for _, re := range patterns {
		if !re.MatchString(v) {
			out = append(out, re)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
