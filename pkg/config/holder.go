package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-yaml"
)

// Holder owns the live configuration. Readers take immutable snapshots; the admin
// update path is the only writer.
type Holder struct {
	mu      sync.RWMutex
	current *AppConfig
}

// NewHolder wraps a loaded configuration
func NewHolder(cfg *AppConfig) *Holder {
	return &Holder{current: cfg.clone()}
}

// Snapshot returns a copy that later updates never modify
func (h *Holder) Snapshot() *AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.clone()
}

// Update applies fn to a copy of the current config, validates it and swaps it in.
// The mutable sections are persisted to the overrides file when one is configured.
func (h *Holder) Update(fn func(*AppConfig)) (*AppConfig, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.current.clone()
	fn(next)
	if err := next.Validate(); err != nil {
		return nil, err
	}

	if path := next.App.OverridesFile; path != "" {
		if err := writeOverrides(path, next); err != nil {
			return nil, err
		}
	}

	h.current = next
	return next.clone(), nil
}

// overrides is the subset of the config the admin path can change
type overrides struct {
	Failover     Failover     `yaml:"failover"`
	Freshness    Freshness    `yaml:"freshness"`
	Learning     Learning     `yaml:"learning"`
	Interactions Interactions `yaml:"interactions"`
}

func writeOverrides(path string, cfg *AppConfig) error {
	data, err := yaml.Marshal(overrides{
		Failover:     cfg.Failover,
		Freshness:    cfg.Freshness,
		Learning:     cfg.Learning,
		Interactions: cfg.Interactions,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal config overrides: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create overrides directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config overrides: %w", err)
	}
	return os.Rename(tmp, path)
}

func (c *AppConfig) clone() *AppConfig {
	out := *c
	out.Backends = append([]Backend(nil), c.Backends...)
	out.APIServer.Auth.APIKeys = append([]string(nil), c.APIServer.Auth.APIKeys...)
	out.APIServer.Auth.BasicUsers = append([]BasicUser(nil), c.APIServer.Auth.BasicUsers...)
	out.APIServer.CORS.AllowedOrigins = append([]string(nil), c.APIServer.CORS.AllowedOrigins...)
	out.APIServer.CORS.AllowedMethods = append([]string(nil), c.APIServer.CORS.AllowedMethods...)
	out.APIServer.CORS.AllowedHeaders = append([]string(nil), c.APIServer.CORS.AllowedHeaders...)
	if c.Cache.InMemory != nil {
		inMemory := *c.Cache.InMemory
		out.Cache.InMemory = &inMemory
	}
	if c.Cache.Redis != nil {
		redis := *c.Cache.Redis
		out.Cache.Redis = &redis
	}
	return &out
}
