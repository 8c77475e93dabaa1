package ingest

import (
	"log/slog"
	"time"

	"github.com/sig-0/fxquote/metrics"
)

type Option func(o *Orchestrator)

// WithLogger specifies the logger for the orchestrator
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithMetrics specifies the metrics sink for the orchestrator
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithQueryInterval specifies query interval for the orchestrator's jobs.
// Defaults to 1s
func WithQueryInterval(q time.Duration) Option {
	return func(o *Orchestrator) {
		o.queryInterval = q
	}
}

// WithRetryBackoff specifies the delay before the first retry of a failed
// fetch. Consecutive failures double it, up to the provider interval.
// Defaults to 10s
func WithRetryBackoff(b time.Duration) Option {
	return func(o *Orchestrator) {
		if b > 0 {
			o.retryBackoff = b
		}
	}
}
