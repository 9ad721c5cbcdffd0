package config

import "fmt"

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if err := c.Migration.validate(); err != nil {
		return fmt.Errorf("migration: %w", err)
	}
	if c.GuestStore.Path == "" {
		return fmt.Errorf("guest_store.path must not be empty")
	}
	return nil
}

func (m *MigrationConfig) validate() error {
	if m.IntegrityThreshold < 0 || m.IntegrityThreshold > 100 {
		return fmt.Errorf("integrity_threshold must be within [0,100] (got %d)", m.IntegrityThreshold)
	}
	if m.CheckpointRetention <= 0 {
		return fmt.Errorf("checkpoint_retention must be > 0 (got %v)", m.CheckpointRetention)
	}
	if m.StoreTimeout <= 0 {
		return fmt.Errorf("store_timeout must be > 0 (got %v)", m.StoreTimeout)
	}
	if m.WriteBatchSize <= 0 {
		return fmt.Errorf("write_batch_size must be > 0 (got %d)", m.WriteBatchSize)
	}
	if m.SampleSize <= 0 {
		return fmt.Errorf("sample_size must be > 0 (got %d)", m.SampleSize)
	}
	return nil
}
