package workers

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/MKhiriev/go-spirit-connect/internal/logger"
)

const (
	defaultProbeInterval = 15 * time.Second
	probeRetries         = 2
	probeRetryDelay      = 500 * time.Millisecond
)

// ConnectivityProbe pings the backend periodically and reports the outcome
// as the connectivity state. A probe is retried a few times before the
// backend is declared unreachable.
type ConnectivityProbe struct {
	pinger     Pinger
	sink       ConnectivitySink
	interval   time.Duration
	retryDelay time.Duration

	logger *logger.Logger
}

// NewConnectivityProbe creates a probe. A non-positive interval defaults to
// 15 seconds.
func NewConnectivityProbe(pinger Pinger, sink ConnectivitySink, interval time.Duration, log *logger.Logger) *ConnectivityProbe {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	return &ConnectivityProbe{
		pinger:     pinger,
		sink:       sink,
		interval:   interval,
		retryDelay: probeRetryDelay,
		logger:     log,
	}
}

// Run probes once immediately, then every interval, until ctx is cancelled.
func (p *ConnectivityProbe) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		p.Probe(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// Probe checks the backend once and forwards the result to the sink.
func (p *ConnectivityProbe) Probe(ctx context.Context) bool {
	backoff := retry.WithMaxRetries(probeRetries, retry.NewConstant(p.retryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := p.pinger.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if ctx.Err() != nil {
		return false
	}

	online := err == nil
	if !online {
		p.logger.Debug().Err(err).Str("func", "*ConnectivityProbe.Probe").Msg("backend unreachable")
	}
	p.sink.SetOnline(ctx, online)
	return online
}
