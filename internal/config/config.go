package config

import "time"

// Config is the root application configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	GuestStore GuestStoreConfig `yaml:"guest_store"`
	Migration  MigrationConfig  `yaml:"migration"`
	Log        LogConfig        `yaml:"log"`
}

// DatabaseConfig holds PostgreSQL connection settings for the account store.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// GuestStoreConfig holds the SQLite-backed guest-local store settings.
type GuestStoreConfig struct {
	Path        string        `yaml:"path"         env:"GUEST_STORE_PATH"         env-default:"./guest.db"`
	BusyTimeout time.Duration `yaml:"busy_timeout" env:"GUEST_STORE_BUSY_TIMEOUT" env-default:"5s"`
}

// MigrationConfig holds the migration engine knobs.
type MigrationConfig struct {
	// IntegrityThreshold is the minimum post-migration integrity score;
	// anything below it triggers rollback.
	IntegrityThreshold  int           `yaml:"integrity_threshold"  env:"MIGRATION_INTEGRITY_THRESHOLD"  env-default:"70"`
	CheckpointRetention time.Duration `yaml:"checkpoint_retention" env:"MIGRATION_CHECKPOINT_RETENTION" env-default:"24h"`
	// StoreTimeout bounds every individual external store call.
	StoreTimeout    time.Duration `yaml:"store_timeout"     env:"MIGRATION_STORE_TIMEOUT"     env-default:"30s"`
	WriteBatchSize  int           `yaml:"write_batch_size"  env:"MIGRATION_WRITE_BATCH_SIZE"  env-default:"500"`
	SampleSize      int           `yaml:"sample_size"       env:"MIGRATION_SAMPLE_SIZE"       env-default:"20"`
	DefaultStrategy string        `yaml:"default_strategy"  env:"MIGRATION_DEFAULT_STRATEGY"  env-default:"merge_with_preference"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}
