package rules

import (
	"regexp"

	"github.com/negwm/negwm/internal/state"
)

// Factor names a classification rule kind, in evaluation order.
type Factor int

const (
	FactorNone Factor = iota
	FactorClass
	FactorInstance
	FactorRole
	FactorClassRegex
	FactorInstanceRegex
	FactorRoleRegex
	FactorNameRegex
	FactorMatchAll
)

var factorNames = map[Factor]string{
	FactorNone:          "none",
	FactorClass:         "class",
	FactorInstance:      "instance",
	FactorRole:          "role",
	FactorClassRegex:    "class_r",
	FactorInstanceRegex: "instance_r",
	FactorRoleRegex:     "role_r",
	FactorNameRegex:     "name_r",
	FactorMatchAll:      "match_all",
}

func (f Factor) String() string {
	return factorNames[f]
}

type attribute func(state.Window) string

func classOf(w state.Window) string    { return w.Class }
func instanceOf(w state.Window) string { return w.Instance }
func roleOf(w state.Window) string     { return w.Role }
func nameOf(w state.Window) string     { return w.Name }

// Match reports whether win belongs to the tag described by def. Regex factors
// test the window's own attribute; an empty attribute never matches.
func Match(win state.Window, def *TagDefinition) bool {
	return MatchFactor(win, def) != FactorNone
}

// MatchFactor returns the first factor that accepted win, or FactorNone.
func MatchFactor(win state.Window, def *TagDefinition) Factor {
	if def == nil {
		return FactorNone
	}
	if len(def.Class) > 0 && contains(def.Class, win.Class) {
		return FactorClass
	}
	if len(def.Instance) > 0 && contains(def.Instance, win.Instance) {
		return FactorInstance
	}
	if len(def.Role) > 0 && contains(def.Role, win.Role) {
		return FactorRole
	}
	if len(def.ClassRegex) > 0 && matchPattern(win, def.ClassRegex, classOf) {
		return FactorClassRegex
	}
	if len(def.InstanceRegex) > 0 && matchPattern(win, def.InstanceRegex, instanceOf) {
		return FactorInstanceRegex
	}
	if len(def.RoleRegex) > 0 && matchPattern(win, def.RoleRegex, roleOf) {
		return FactorRoleRegex
	}
	if len(def.NameRegex) > 0 && matchPattern(win, def.NameRegex, nameOf) {
		return FactorNameRegex
	}
	if def.MatchAll {
		return FactorMatchAll
	}
	return FactorNone
}

func matchPattern(win state.Window, patterns []*regexp.Regexp, attr attribute) bool {
	value := attr(win)
	if value == "" {
		return false
	}
	for _, re := range patterns {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}
