package config

import (
	"fmt"
	"time"
)

// ClientApp holds client-side application settings derived from the shared
// structured config.
type ClientApp struct {
	// HashKey is the HMAC key used by the client for payload integrity checks.
	HashKey string
	// Version is reported by the control API.
	Version string
	// LogFile is the rotated log file path; empty logs to stdout.
	LogFile string
}

// ClientAdapter holds network settings used by the client transport layer.
type ClientAdapter struct {
	// HTTPAddress is the HTTP endpoint address of the remote backend.
	HTTPAddress string
	// RequestTimeout is the default timeout for outbound client requests.
	RequestTimeout time.Duration
	// Token is the initial bearer token.
	Token string
}

// ClientDB contains local database connection settings for the client.
type ClientDB struct {
	// DSN is the SQLite file path used by the client.
	DSN string
	// Driver is "sqlite" or "memory".
	Driver string
}

// ClientStorage groups client storage backend settings.
type ClientStorage struct {
	// DB holds local database settings.
	DB ClientDB
}

// ClientWorkers contains client background worker settings.
type ClientWorkers struct {
	// SyncInterval defines how often the auto-sync job runs.
	SyncInterval time.Duration
	// ProbeInterval defines how often connectivity is probed.
	ProbeInterval time.Duration
	// WatchStore enables the database file watcher.
	WatchStore bool
}

// ClientSync is the reconciler retry policy.
type ClientSync struct {
	RecordTimeout time.Duration
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	MaxAttempts   int
}

// ClientCache holds cache freshness windows.
type ClientCache struct {
	GuidelineTTL time.Duration
}

// ClientControl holds the control API listener settings.
type ClientControl struct {
	Address string
}

// ClientConfig is the top-level client configuration assembled from
// [StructuredConfig].
type ClientConfig struct {
	App     ClientApp
	Adapter ClientAdapter
	Storage ClientStorage
	Workers ClientWorkers
	Sync    ClientSync
	Cache   ClientCache
	Control ClientControl
}

// GetClientConfig builds and validates a client-specific config view from the
// merged structured configuration.
func GetClientConfig() (*ClientConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	clientCfg := newClientConfig(cfg)

	return clientCfg, clientCfg.validate()
}

func newClientConfig(cfg *StructuredConfig) *ClientConfig {
	return &ClientConfig{
		App: ClientApp{
			HashKey: cfg.App.HashKey,
			Version: cfg.App.Version,
			LogFile: cfg.App.LogFile,
		},
		Adapter: ClientAdapter{
			HTTPAddress:    cfg.Adapter.HTTPAddress,
			RequestTimeout: cfg.Adapter.RequestTimeout,
			Token:          cfg.Adapter.Token,
		},
		Storage: ClientStorage{
			DB: ClientDB{
				DSN:    cfg.Storage.DB.DSN,
				Driver: cfg.Storage.DB.Driver,
			},
		},
		Workers: ClientWorkers{
			SyncInterval:  cfg.Workers.SyncInterval,
			ProbeInterval: cfg.Workers.ProbeInterval,
			WatchStore:    cfg.Workers.WatchStore,
		},
		Sync: ClientSync{
			RecordTimeout: cfg.Sync.RecordTimeout,
			BackoffBase:   cfg.Sync.BackoffBase,
			BackoffCap:    cfg.Sync.BackoffCap,
			MaxAttempts:   cfg.Sync.MaxAttempts,
		},
		Cache: ClientCache{
			GuidelineTTL: cfg.Cache.GuidelineTTL,
		},
		Control: ClientControl{
			Address: cfg.Control.Address,
		},
	}
}
