package config

import (
	"errors"
	"flag"
	"net"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-a remote backend address in format [host]:[port]
//	-control-address control API listen address in format [host]:[port]
//	-d local database DSN
//	-driver local store driver (sqlite|memory)
//	-c/-config json file path with configs
//	-hash-key payload signing key
//	-token bearer token for the remote backend
//	-log-file rotated log file path
//	-request-timeout outbound request timeout (e.g., "10s")
//	-sync-interval auto-sync period (e.g., "30s")
//	-probe-interval connectivity probe period (e.g., "15s")
//	-watch-store watch the local database for writes by other processes
//	-record-timeout per-row upload timeout
//	-backoff-base first retry delay after a failed upload
//	-backoff-cap maximum retry delay
//	-max-attempts failed uploads before a row is dead-lettered
//	-guideline-ttl freshness window of cached guidelines
func ParseFlags() *StructuredConfig {
	var adapterAddress, controlAddress NetAddress
	var databaseDSN, driver string
	var jsonConfigPath string
	var hashKey, token, logFile string
	var requestTimeout, syncInterval, probeInterval time.Duration
	var recordTimeout, backoffBase, backoffCap, guidelineTTL time.Duration
	var maxAttempts int
	var watchStore bool

	flag.Var(&adapterAddress, "a", "Remote backend address host:port")
	flag.Var(&controlAddress, "control-address", "Control API address host:port")
	flag.StringVar(&databaseDSN, "d", "", "Local database DSN")
	flag.StringVar(&driver, "driver", "", "Local store driver (sqlite|memory)")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.StringVar(&hashKey, "hash-key", "", "Payload signing key")
	flag.StringVar(&token, "token", "", "Bearer token for the remote backend")
	flag.StringVar(&logFile, "log-file", "", "Log file path")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 10s)")
	flag.DurationVar(&syncInterval, "sync-interval", 0, "Auto-sync period (e.g., 30s)")
	flag.DurationVar(&probeInterval, "probe-interval", 0, "Connectivity probe period (e.g., 15s)")
	flag.BoolVar(&watchStore, "watch-store", false, "Watch the local database for external writes")
	flag.DurationVar(&recordTimeout, "record-timeout", 0, "Per-row upload timeout")
	flag.DurationVar(&backoffBase, "backoff-base", 0, "First retry delay")
	flag.DurationVar(&backoffCap, "backoff-cap", 0, "Maximum retry delay")
	flag.IntVar(&maxAttempts, "max-attempts", 0, "Failed uploads before dead letter")
	flag.DurationVar(&guidelineTTL, "guideline-ttl", 0, "Guideline cache TTL")

	flag.Parse()

	return &StructuredConfig{
		App: App{
			HashKey: hashKey,
			LogFile: logFile,
		},
		Storage: Storage{
			DB: DB{
				DSN:    databaseDSN,
				Driver: driver,
			},
		},
		Adapter: Adapter{
			HTTPAddress:    adapterAddress.String(),
			RequestTimeout: requestTimeout,
			Token:          token,
		},
		Workers: Workers{
			SyncInterval:  syncInterval,
			ProbeInterval: probeInterval,
			WatchStore:    watchStore,
		},
		Sync: Sync{
			RecordTimeout: recordTimeout,
			BackoffBase:   backoffBase,
			BackoffCap:    backoffCap,
			MaxAttempts:   maxAttempts,
		},
		Cache: Cache{
			GuidelineTTL: guidelineTTL,
		},
		Control: Control{
			Address: controlAddress.String(),
		},
		JSONFilePath: jsonConfigPath,
	}
}

// String returns a canonical host:port string for a NetAddress.
// If neither Host nor Port are set, it returns an empty string.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is "localhost",
// and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 {
		return errors.New("port number is a positive integer")
	}

	if host != "localhost" && host != "" {
		ip := net.ParseIP(host)
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
