// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the
// spirit-connect sync agent. It aggregates all sub-configurations and is
// populated by merging values from environment variables, command-line flags,
// an optional JSON file and finally the built-in defaults.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds application-level settings such as the request hash key,
	// the version string and the log file location.
	App App `envPrefix:"APP_"`

	// Storage holds configuration for the local offline store.
	Storage Storage `envPrefix:"STORAGE_"`

	// Adapter holds the remote backend address, timeout and session token.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Workers holds configuration for background jobs (periodic sync,
	// connectivity probe, store watcher).
	Workers Workers `envPrefix:"WORKERS_"`

	// Sync holds the upload retry policy of the reconciler.
	Sync Sync `envPrefix:"SYNC_"`

	// Cache holds freshness windows of cached reference data.
	Cache Cache `envPrefix:"CACHE_"`

	// Control holds the local control API listener settings.
	Control Control `envPrefix:"CONTROL_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level configuration values.
type App struct {
	// HashKey is the HMAC key used to sign outbound payloads
	// (HashSHA256 header). Empty disables signing.
	// Env: APP_HASH_KEY
	HashKey string `env:"HASH_KEY"`

	// Version is the semantic version string of the running agent.
	// Env: APP_VERSION
	Version string `env:"VERSION"`

	// LogFile is the path of the rotated client log file. Empty means stdout.
	// Env: APP_LOG_FILE
	LogFile string `env:"LOG_FILE"`
}

// Storage groups the configuration of the local store.
type Storage struct {
	// DB holds the local database settings.
	DB DB `envPrefix:"DB_"`
}

// DB holds connection settings for the local database.
type DB struct {
	// DSN is the SQLite file path (or a JSON snapshot path for the memory
	// driver).
	// Env: STORAGE_DB_DATABASE_URI
	DSN string `env:"DATABASE_URI"`

	// Driver selects the backend: "sqlite" (default) or "memory".
	// Env: STORAGE_DB_DRIVER
	Driver string `env:"DRIVER"`
}

// Adapter holds settings of the outbound connection to the remote backend.
type Adapter struct {
	// HTTPAddress is the remote backend address in "host:port" format or a
	// full base URL.
	// Env: ADAPTER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout bounds a single outbound request (e.g. "10s").
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// Token is the bearer token attached to every request.
	// Env: ADAPTER_TOKEN
	Token string `env:"TOKEN"`
}

// Workers holds configuration for background worker processes.
type Workers struct {
	// SyncInterval is the auto-sync period while online with pending work.
	// Env: WORKERS_SYNC_INTERVAL
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`

	// ProbeInterval is the connectivity probe period.
	// Env: WORKERS_PROBE_INTERVAL
	ProbeInterval time.Duration `env:"PROBE_INTERVAL"`

	// WatchStore enables the file watcher on the local database directory.
	// Env: WORKERS_WATCH_STORE
	WatchStore bool `env:"WATCH_STORE"`
}

// Sync holds the reconciler retry policy.
type Sync struct {
	// RecordTimeout bounds the upload of a single pending row.
	// Env: SYNC_RECORD_TIMEOUT
	RecordTimeout time.Duration `env:"RECORD_TIMEOUT"`

	// BackoffBase is the first retry delay after a failed upload.
	// Env: SYNC_BACKOFF_BASE
	BackoffBase time.Duration `env:"BACKOFF_BASE"`

	// BackoffCap is the upper bound of the retry delay.
	// Env: SYNC_BACKOFF_CAP
	BackoffCap time.Duration `env:"BACKOFF_CAP"`

	// MaxAttempts is the number of failed uploads after which a row is
	// moved to the dead-letter state.
	// Env: SYNC_MAX_ATTEMPTS
	MaxAttempts int `env:"MAX_ATTEMPTS"`
}

// Cache holds freshness windows of cached reference data.
type Cache struct {
	// GuidelineTTL is how long a cached guideline is served without a
	// network refresh.
	// Env: CACHE_GUIDELINE_TTL
	GuidelineTTL time.Duration `env:"GUIDELINE_TTL"`
}

// Control holds settings of the local control API.
type Control struct {
	// Address is the listen address of the control API. Empty disables it.
	// Env: CONTROL_ADDRESS
	Address string `env:"ADDRESS"`
}

// GetStructuredConfig loads and merges the configuration from all available
// sources in the following priority order (first non-zero value wins):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//  4. Built-in defaults
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}
