package config

import "time"

// Storage drivers. The memory driver keeps the stores in memory and, when a
// DSN is set, snapshots them to that file as JSON.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Built-in values used when no source sets a field.
const (
	DefaultDriver         = DriverSQLite
	DefaultDSN            = "spirit-connect.db"
	DefaultRequestTimeout = 10 * time.Second
	DefaultSyncInterval   = 30 * time.Second
	DefaultProbeInterval  = 15 * time.Second
	DefaultRecordTimeout  = 15 * time.Second
	DefaultBackoffBase    = 5 * time.Second
	DefaultBackoffCap     = 30 * time.Minute
	DefaultMaxAttempts    = 8
	DefaultGuidelineTTL   = 7 * 24 * time.Hour
	DefaultVersion        = "dev"
)

func defaultConfig() *StructuredConfig {
	return &StructuredConfig{
		App: App{
			Version: DefaultVersion,
		},
		Storage: Storage{
			DB: DB{
				DSN:    DefaultDSN,
				Driver: DefaultDriver,
			},
		},
		Adapter: Adapter{
			RequestTimeout: DefaultRequestTimeout,
		},
		Workers: Workers{
			SyncInterval:  DefaultSyncInterval,
			ProbeInterval: DefaultProbeInterval,
		},
		Sync: Sync{
			RecordTimeout: DefaultRecordTimeout,
			BackoffBase:   DefaultBackoffBase,
			BackoffCap:    DefaultBackoffCap,
			MaxAttempts:   DefaultMaxAttempts,
		},
		Cache: Cache{
			GuidelineTTL: DefaultGuidelineTTL,
		},
	}
}
