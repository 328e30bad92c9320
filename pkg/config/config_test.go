package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xzinc/IPL/pkg/types"
)

const baseYAML = `
app:
  name: iplstore
backends:
  - name: primary
    kind: remote-document
    enabled: true
    uri: ${TEST_MONGO_URI}
    database: ipl
    capacity_mb: 500
  - name: cache
    kind: remote-key-value
    enabled: true
    uri: ""
  - name: local
    kind: local-file
    enabled: true
learning:
  rate: fast
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TEST_MONGO_URI", "mongodb://localhost:27017")
	dir := writeConfig(t, baseYAML)

	cfg, err := LoadConfig(dir, "test")
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Environment)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Backends[0].URI)
	assert.Equal(t, "data", cfg.Backends[2].Path)
	assert.Equal(t, 30*24*time.Hour, cfg.Backends[1].KeyTTL)
	assert.Equal(t, 0.95, cfg.Failover.HighWaterMark)
	assert.Equal(t, 3*time.Second, cfg.Failover.HealthCheckTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Freshness.TTL)

	usable, skipped := cfg.UsableBackends()
	require.Len(t, usable, 2)
	assert.Equal(t, "primary", usable[0].Name)
	assert.Equal(t, []string{"cache"}, skipped)

	profile := cfg.LearningProfile()
	assert.Equal(t, 7*24*time.Hour, profile.Retention)
	assert.Equal(t, 50, profile.MaxPerUser)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("IPLSTORE_FAILOVER_HIGH_WATER_MARK", "0.9")
	dir := writeConfig(t, baseYAML)

	cfg, err := LoadConfig(dir, "test")
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Failover.HighWaterMark)
}

func TestValidate(t *testing.T) {
	valid := func() *AppConfig {
		return &AppConfig{
			Backends:  []Backend{{Name: "local", Kind: "local-file", Enabled: true, Path: "data"}},
			Failover:  Failover{HighWaterMark: 0.95, PruneThreshold: 0.85, FailureThreshold: 3, RecoveryThreshold: 2},
			Freshness: Freshness{TTL: time.Hour},
			Learning:  Learning{Rate: LearningNormal},
		}
	}

	tests := []struct {
		name        string
		mutate      func(c *AppConfig)
		errContains string
	}{
		{name: "valid", mutate: func(c *AppConfig) {}},
		{
			name:        "prune threshold above failover threshold",
			mutate:      func(c *AppConfig) { c.Failover.PruneThreshold = 0.97 },
			errContains: "prune_threshold",
		},
		{
			name:        "unknown learning rate",
			mutate:      func(c *AppConfig) { c.Learning.Rate = "turbo" },
			errContains: "learning rate",
		},
		{
			name:        "unknown backend kind",
			mutate:      func(c *AppConfig) { c.Backends[0].Kind = "sqlite" },
			errContains: "unknown backend kind",
		},
		{
			name: "no backend with connection info",
			mutate: func(c *AppConfig) {
				c.Backends = []Backend{{Name: "primary", Kind: "remote-document", Enabled: true}}
			},
			errContains: "no enabled backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
			assert.True(t, errors.Is(err, types.ErrConfiguration))
		})
	}
}

func TestHolder_UpdatePersistsOverrides(t *testing.T) {
	t.Setenv("TEST_MONGO_URI", "mongodb://localhost:27017")
	dir := writeConfig(t, baseYAML+"\n  enabled: true\n")
	overridesPath := filepath.Join(t.TempDir(), "overrides.yaml")

	cfg, err := LoadConfig(dir, "test")
	require.NoError(t, err)
	cfg.App.OverridesFile = overridesPath

	holder := NewHolder(cfg)
	before := holder.Snapshot()

	_, err = holder.Update(func(c *AppConfig) {
		c.Learning.Rate = LearningSlow
		c.Freshness.TTL = 2 * time.Hour
	})
	require.NoError(t, err)

	assert.Equal(t, LearningFast, before.Learning.Rate, "earlier snapshots are immutable")
	assert.Equal(t, LearningSlow, holder.Snapshot().Learning.Rate)
	assert.FileExists(t, overridesPath)

	_, err = holder.Update(func(c *AppConfig) { c.Learning.Rate = "turbo" })
	assert.Error(t, err)
	assert.Equal(t, LearningSlow, holder.Snapshot().Learning.Rate, "rejected updates are not applied")

	t.Setenv("IPLSTORE_APP_OVERRIDES_FILE", overridesPath)
	reloaded, err := LoadConfig(dir, "test")
	require.NoError(t, err)
	assert.Equal(t, LearningSlow, reloaded.Learning.Rate)
	assert.Equal(t, 2*time.Hour, reloaded.Freshness.TTL)
}
