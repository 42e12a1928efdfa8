package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/negwm/negwm/internal/config"
	"github.com/negwm/negwm/internal/util"
)

// reloadTarget applies a validated configuration to the running modules.
type reloadTarget interface {
	Reload(ctx context.Context, cfg *config.Config, modules ...string) error
}

type configReloader struct {
	path   string
	logger *util.Logger
	target reloadTarget

	// mu serializes reloads. last guards lastConfig and lastSerialized and is
	// never held while waiting on the target, so the loop can report its own
	// writes through noteWrite during a reload.
	mu             sync.Mutex
	last           sync.Mutex
	lastConfig     *config.Config
	lastSerialized []byte
}

func newConfigReloader(path string, logger *util.Logger, target reloadTarget, cfg *config.Config, serialized []byte) *configReloader {
	return &configReloader{
		path:           path,
		logger:         logger,
		target:         target,
		lastConfig:     cfg,
		lastSerialized: append([]byte(nil), serialized...),
	}
}

// Reload re-reads the config file and hands it to module, or to every module
// when module is empty. A rejected file leaves the running definitions alone.
func (r *configReloader) Reload(ctx context.Context, reason, module string) error {
	return r.reload(ctx, reason, module, false)
}

// ReloadIfChanged reloads every module unless the file still holds the last
// applied or self-written content.
func (r *configReloader) ReloadIfChanged(ctx context.Context, reason string) error {
	return r.reload(ctx, reason, "", true)
}

func (r *configReloader) reload(ctx context.Context, reason, module string, onlyChanged bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	previous, serialized := r.snapshot()
	if onlyChanged && bytes.Equal(raw, serialized) {
		r.logger.Debugf("%s, content unchanged", reason)
		return nil
	}
	r.logger.Infof("%s, reloading config", reason)
	cfg, err := config.Parse(raw)
	if err != nil {
		r.logRejected(previous, raw, err)
		return err
	}
	var modules []string
	if module != "" {
		modules = append(modules, module)
	}
	if err := r.target.Reload(ctx, cfg, modules...); err != nil {
		return fmt.Errorf("apply config: %w", err)
	}
	if diff := config.DiffTags(previous, cfg); diff != "" {
		r.logger.Debugf("config changes:\n%s", diff)
	}
	r.remember(cfg, raw)
	r.logger.Infof("config reloaded")
	return nil
}

// noteWrite records content the daemon wrote to the config file itself, so
// the watcher event it triggers does not reload the modules.
func (r *configReloader) noteWrite(data []byte) {
	cfg, err := config.Parse(data)
	if err != nil {
		r.logger.Warnf("written config does not parse: %v", err)
		return
	}
	r.remember(cfg, data)
}

func (r *configReloader) snapshot() (*config.Config, []byte) {
	r.last.Lock()
	defer r.last.Unlock()
	return r.lastConfig, r.lastSerialized
}

func (r *configReloader) remember(cfg *config.Config, raw []byte) {
	r.last.Lock()
	defer r.last.Unlock()
	r.lastConfig = cfg
	r.lastSerialized = append([]byte(nil), raw...)
}

// ForModule adapts the reloader to the control dispatcher.
func (r *configReloader) ForModule(ctx context.Context, module string) error {
	reason := "reload requested"
	if module != "" {
		reason = fmt.Sprintf("reload of %s requested", module)
	}
	return r.Reload(ctx, reason, module)
}

func (r *configReloader) logRejected(previous *config.Config, raw []byte, cause error) {
	current, err := config.Decode(raw)
	if err != nil || previous == nil {
		r.logger.Warnf("config change rejected: %v", cause)
		return
	}
	diff := config.DiffTags(previous, current)
	if diff == "" {
		r.logger.Warnf("config change rejected: %v; nothing differs from the last valid config", cause)
		return
	}
	r.logger.Warnf("config change rejected: %v; changes vs last valid config:\n%s", cause, diff)
}
