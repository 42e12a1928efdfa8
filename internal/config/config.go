package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/negwm/negwm/internal/layout"
)

// Module names as they appear in the configuration document.
const (
	ModuleScratchpad = "scratchpad"
	ModuleCircle     = "circle"
)

// Config is the top-level configuration document.
type Config struct {
	Reference        layout.Resolution `yaml:"reference"`
	Resolution       layout.Resolution `yaml:"resolution"`
	Spawner          string            `yaml:"spawner"`
	SpawnWaitTimeout time.Duration     `yaml:"spawnWaitTimeout"`
	Scratchpad       Tags              `yaml:"scratchpad"`
	Circle           Tags              `yaml:"circle"`
}

// StringList accepts either a single scalar or a sequence of scalars.
type StringList []string

// UnmarshalYAML allows `class: firefox` as shorthand for `class: [firefox]`.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value == "" {
			*s = nil
			return nil
		}
		*s = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*s = items
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list of strings", value.Line)
	}
}

// SubtagConfig describes a secondary classification nested under a tag.
type SubtagConfig struct {
	Class StringList `yaml:"class"`
	Prog  string     `yaml:"prog"`
}

// TagConfig describes one tag: its classification rule and what to run when
// no window is tagged yet.
type TagConfig struct {
	Name          string                  `yaml:"-"`
	Class         StringList              `yaml:"class"`
	Instance      StringList              `yaml:"instance"`
	Role          StringList              `yaml:"role"`
	ClassRegex    StringList              `yaml:"class_r"`
	InstanceRegex StringList              `yaml:"instance_r"`
	RoleRegex     StringList              `yaml:"role_r"`
	NameRegex     StringList              `yaml:"name_r"`
	MatchAll      bool                    `yaml:"match_all"`
	Geom          string                  `yaml:"geom"`
	Prog          string                  `yaml:"prog"`
	Spawn         string                  `yaml:"spawn"`
	Priority      string                  `yaml:"priority"`
	Subtags       map[string]SubtagConfig `yaml:"subtags"`
}

// Tags is the per-module list of tags in document order.
type Tags []TagConfig

// UnmarshalYAML keeps document order and rejects duplicate tag names.
func (t *Tags) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind == 0 {
		*t = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: tags must be a mapping", value.Line)
	}
	result := make(Tags, 0, len(value.Content)/2)
	seen := map[string]struct{}{}
	for i := 0; i < len(value.Content); i += 2 {
		keyNode := value.Content[i]
		valNode := value.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: tag name must be a string", keyNode.Line)
		}
		name := keyNode.Value
		if _, exists := seen[name]; exists {
			return fmt.Errorf("duplicate tag %q", name)
		}
		seen[name] = struct{}{}
		var cfg TagConfig
		if err := valNode.Decode(&cfg); err != nil {
			return fmt.Errorf("tag %q: %w", name, err)
		}
		cfg.Name = name
		result = append(result, cfg)
	}
	*t = result
	return nil
}

// Lookup returns the tag with name, or nil.
func (t Tags) Lookup(name string) *TagConfig {
	for i := range t {
		if t[i].Name == name {
			return &t[i]
		}
	}
	return nil
}

// Names lists the tag names in document order.
func (t Tags) Names() []string {
	names := make([]string, 0, len(t))
	for _, tag := range t {
		names = append(names, tag.Name)
	}
	return names
}

// Module returns the tags configured for the named module.
func (c *Config) Module(name string) (Tags, error) {
	switch name {
	case ModuleScratchpad:
		return c.Scratchpad, nil
	case ModuleCircle:
		return c.Circle, nil
	default:
		return nil, fmt.Errorf("unknown module %q", name)
	}
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration payload.
func Parse(data []byte) (*Config, error) {
	cfg, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode decodes a configuration payload and applies defaults without
// validating it.
func Decode(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Reference.Width == 0 && c.Reference.Height == 0 {
		c.Reference = layout.DefaultReference
	}
}

// Validate performs basic sanity checks.
func (c *Config) Validate() error {
	if !c.Reference.Valid() {
		return fmt.Errorf("reference resolution must be positive, got %dx%d", c.Reference.Width, c.Reference.Height)
	}
	if c.Resolution.Width < 0 || c.Resolution.Height < 0 {
		return fmt.Errorf("resolution cannot be negative")
	}
	if c.SpawnWaitTimeout < 0 {
		return fmt.Errorf("spawnWaitTimeout cannot be negative")
	}
	if len(c.Scratchpad) == 0 && len(c.Circle) == 0 {
		return fmt.Errorf("config must define at least one scratchpad or circle tag")
	}
	for _, module := range []string{ModuleScratchpad, ModuleCircle} {
		tags, _ := c.Module(module)
		for _, tag := range tags {
			if err := tag.Validate(); err != nil {
				return fmt.Errorf("%s tag %q: %w", module, tag.Name, err)
			}
		}
	}
	return nil
}

// Validate ensures the tag can be classified and, if declared, placed.
func (t TagConfig) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("tag name cannot be empty")
	}
	if !t.HasRule() {
		return fmt.Errorf("must define at least one of class, instance, role, class_r, instance_r, role_r, name_r or match_all")
	}
	if t.Geom != "" {
		if _, err := layout.ParseGeometry(t.Geom); err != nil {
			return err
		}
	}
	for name, sub := range t.Subtags {
		if len(sub.Class) == 0 {
			return fmt.Errorf("subtag %q must define class", name)
		}
		if sub.Prog == "" {
			return fmt.Errorf("subtag %q must define prog", name)
		}
	}
	return nil
}

// HasRule reports whether any classification factor is configured.
func (t TagConfig) HasRule() bool {
	return t.MatchAll || len(t.Class) > 0 || len(t.Instance) > 0 || len(t.Role) > 0 ||
		len(t.ClassRegex) > 0 || len(t.InstanceRegex) > 0 || len(t.RoleRegex) > 0 || len(t.NameRegex) > 0
}
