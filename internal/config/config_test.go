package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromEnvWithDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
	t.Setenv("DATABASE_DSN", "postgres://localhost:5432/studypath")

	// CONFIG_PATH points at a missing file, which is an error when set
	// explicitly.
	_, err := Load()
	require.Error(t, err)

	// clear it and load from ENV + defaults
	t.Setenv("CONFIG_PATH", "")
	os.Unsetenv("CONFIG_PATH")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/studypath", cfg.Database.DSN)
	assert.Equal(t, int32(25), cfg.Database.MaxConns)
	assert.Equal(t, 70, cfg.Migration.IntegrityThreshold)
	assert.Equal(t, 24*time.Hour, cfg.Migration.CheckpointRetention)
	assert.Equal(t, "merge_with_preference", cfg.Migration.DefaultStrategy)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
database:
  dsn: postgres://localhost:5432/studypath
migration:
  integrity_threshold: 85
  sample_size: 10
guest_store:
  path: /tmp/guest.db
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 85, cfg.Migration.IntegrityThreshold)
	assert.Equal(t, 10, cfg.Migration.SampleSize)
	assert.Equal(t, "/tmp/guest.db", cfg.GuestStore.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	// values absent from the file keep their defaults
	assert.Equal(t, 500, cfg.Migration.WriteBatchSize)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
database:
  dsn: postgres://localhost:5432/studypath
migration:
  integrity_threshold: 85
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("MIGRATION_INTEGRITY_THRESHOLD", "90")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90, cfg.Migration.IntegrityThreshold)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			GuestStore: GuestStoreConfig{Path: "./guest.db"},
			Migration: MigrationConfig{
				IntegrityThreshold:  70,
				CheckpointRetention: 24 * time.Hour,
				StoreTimeout:        30 * time.Second,
				WriteBatchSize:      500,
				SampleSize:          20,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "threshold above 100",
			mutate:  func(c *Config) { c.Migration.IntegrityThreshold = 101 },
			wantErr: "integrity_threshold",
		},
		{
			name:    "negative threshold",
			mutate:  func(c *Config) { c.Migration.IntegrityThreshold = -1 },
			wantErr: "integrity_threshold",
		},
		{
			name:    "zero retention",
			mutate:  func(c *Config) { c.Migration.CheckpointRetention = 0 },
			wantErr: "checkpoint_retention",
		},
		{
			name:    "zero store timeout",
			mutate:  func(c *Config) { c.Migration.StoreTimeout = 0 },
			wantErr: "store_timeout",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.Migration.WriteBatchSize = 0 },
			wantErr: "write_batch_size",
		},
		{
			name:    "zero sample size",
			mutate:  func(c *Config) { c.Migration.SampleSize = 0 },
			wantErr: "sample_size",
		},
		{
			name:    "empty guest store path",
			mutate:  func(c *Config) { c.GuestStore.Path = "" },
			wantErr: "guest_store.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
