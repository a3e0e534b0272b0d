package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetAddress_Set(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    NetAddress
		wantErr string
	}{
		{name: "localhost", input: "localhost:8080", want: NetAddress{Host: "localhost", Port: 8080}},
		{name: "ipv4", input: "127.0.0.1:7070", want: NetAddress{Host: "127.0.0.1", Port: 7070}},
		{name: "any interface", input: ":7070", want: NetAddress{Port: 7070}},
		{name: "no colon", input: "localhost8080", wantErr: "need address in a form `host:port`"},
		{name: "extra colon", input: "a:b:c", wantErr: "need address in a form `host:port`"},
		{name: "text port", input: "localhost:http", wantErr: "invalid syntax"},
		{name: "zero port", input: "localhost:0", wantErr: "port number is a positive integer"},
		{name: "hostname", input: "backend.local:8080", wantErr: "incorrect IP-address provided"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var addr NetAddress
			err := addr.Set(tt.input)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr)
		})
	}
}

func TestNetAddress_String(t *testing.T) {
	assert.Equal(t, "", (&NetAddress{}).String())
	assert.Equal(t, "localhost:8080", (&NetAddress{Host: "localhost", Port: 8080}).String())
	assert.Equal(t, ":7070", (&NetAddress{Port: 7070}).String())
}

// TestParseFlags tests the ParseFlags function
func TestParseFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		validate func(t *testing.T, cfg *StructuredConfig)
	}{
		{
			name: "all flags set",
			args: []string{
				"-a", "localhost:8080",
				"-control-address", "127.0.0.1:7070",
				"-d", "/tmp/offline.db",
				"-driver", "memory",
				"-c", "/path/to/config.json",
				"-hash-key", "security_hash",
				"-token", "bearer",
				"-log-file", "/tmp/spirit.log",
				"-request-timeout", "10s",
				"-sync-interval", "30s",
				"-probe-interval", "15s",
				"-watch-store",
				"-record-timeout", "5s",
				"-backoff-base", "1s",
				"-backoff-cap", "1m",
				"-max-attempts", "4",
				"-guideline-ttl", "168h",
			},
			validate: func(t *testing.T, cfg *StructuredConfig) {
				assert.Equal(t, "localhost:8080", cfg.Adapter.HTTPAddress)
				assert.Equal(t, "127.0.0.1:7070", cfg.Control.Address)
				assert.Equal(t, "/tmp/offline.db", cfg.Storage.DB.DSN)
				assert.Equal(t, "memory", cfg.Storage.DB.Driver)
				assert.Equal(t, "/path/to/config.json", cfg.JSONFilePath)
				assert.Equal(t, "security_hash", cfg.App.HashKey)
				assert.Equal(t, "bearer", cfg.Adapter.Token)
				assert.Equal(t, "/tmp/spirit.log", cfg.App.LogFile)
				assert.Equal(t, 10*time.Second, cfg.Adapter.RequestTimeout)
				assert.Equal(t, 30*time.Second, cfg.Workers.SyncInterval)
				assert.Equal(t, 15*time.Second, cfg.Workers.ProbeInterval)
				assert.True(t, cfg.Workers.WatchStore)
				assert.Equal(t, 5*time.Second, cfg.Sync.RecordTimeout)
				assert.Equal(t, time.Second, cfg.Sync.BackoffBase)
				assert.Equal(t, time.Minute, cfg.Sync.BackoffCap)
				assert.Equal(t, 4, cfg.Sync.MaxAttempts)
				assert.Equal(t, 168*time.Hour, cfg.Cache.GuidelineTTL)
			},
		},
		{
			name: "config alias flag",
			args: []string{
				"-config", "/path/to/config.json",
			},
			validate: func(t *testing.T, cfg *StructuredConfig) {
				assert.Equal(t, "/path/to/config.json", cfg.JSONFilePath)
			},
		},
		{
			name: "no flags",
			args: []string{},
			validate: func(t *testing.T, cfg *StructuredConfig) {
				assert.Empty(t, cfg.Adapter.HTTPAddress)
				assert.Empty(t, cfg.Control.Address)
				assert.Empty(t, cfg.Storage.DB.DSN)
				assert.Empty(t, cfg.JSONFilePath)
				assert.Zero(t, cfg.Sync.MaxAttempts)
				assert.False(t, cfg.Workers.WatchStore)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset flag.CommandLine for each test
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

			oldArgs := os.Args
			os.Args = append([]string{"cmd"}, tt.args...)
			defer func() { os.Args = oldArgs }()

			cfg := ParseFlags()
			require.NotNil(t, cfg)
			tt.validate(t, cfg)
		})
	}
}

// TestNetAddress_SetAndString tests the round-trip of Set and String
func TestNetAddress_SetAndString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"localhost:8080", "localhost:8080"},
		{"127.0.0.1:9090", "127.0.0.1:9090"},
		{":7070", ":7070"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var addr NetAddress
			require.NoError(t, addr.Set(tt.input))
			assert.Equal(t, tt.expected, addr.String())
		})
	}
}
