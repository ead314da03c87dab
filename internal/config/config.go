package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/careorg/rosteraccess/pkg/models"
	"gopkg.in/yaml.v3"
)

// Holder owns the current RBACConfig. Swaps are whole-object and versioned;
// an evaluation that took a snapshot keeps it for its entire run, so a config
// change is never partially applied mid-decision.
type Holder struct {
	mu      sync.RWMutex
	cfg     models.RBACConfig
	version int
}

// NewHolder validates and installs the initial configuration.
func NewHolder(cfg models.RBACConfig) (*Holder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &Holder{}
	h.install(cfg)
	return h, nil
}

// Current returns a snapshot of the active configuration. The role slices
// are copied so the snapshot never aliases the installed value.
func (h *Holder) Current() models.RBACConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cfg := h.cfg
	cfg.AllowedRoles = append([]string(nil), cfg.AllowedRoles...)
	cfg.ExcludedRoles = append([]string(nil), cfg.ExcludedRoles...)
	return cfg
}

// Swap validates and installs a new configuration, bumping the version.
// On validation failure the previous configuration stays active.
func (h *Holder) Swap(cfg models.RBACConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.install(cfg)
	return nil
}

func (h *Holder) install(cfg models.RBACConfig) {
	h.version++
	cfg.Version = h.version
	// Copy the slices so a caller holding the old value can't alias them.
	cfg.AllowedRoles = append([]string(nil), cfg.AllowedRoles...)
	cfg.ExcludedRoles = append([]string(nil), cfg.ExcludedRoles...)
	h.cfg = cfg
}

// Load reads an RBACConfig from a YAML file.
func Load(path string) (models.RBACConfig, error) {
	cfg := models.DefaultRBACConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading rbac config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &models.ConfigError{Msg: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
