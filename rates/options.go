package rates

import (
	"log/slog"
	"time"

	"github.com/sig-0/fxquote/metrics"
	"github.com/sig-0/fxquote/quote"
)

type Option func(p *Provider)

// WithLogger specifies the logger for the rate provider
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// WithMetrics specifies the metrics sink for the rate provider
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Provider) {
		p.metrics = m
	}
}

// WithTTL specifies how long fetched rates are considered fresh.
// Defaults to 60s
func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithFetchTimeout specifies the upper bound of a single refresh.
// Defaults to 10s
func WithFetchTimeout(timeout time.Duration) Option {
	return func(p *Provider) {
		if timeout > 0 {
			p.fetchTimeout = timeout
		}
	}
}

// WithStaticRates specifies the rate pair used when no rates were ever fetched
func WithStaticRates(r quote.Rates) Option {
	return func(p *Provider) {
		p.static = r
	}
}
