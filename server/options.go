package server

import (
	"log/slog"

	"github.com/sig-0/fxquote/metrics"
	"github.com/sig-0/fxquote/quote"
	"github.com/sig-0/fxquote/server/config"
)

type Option func(s *Server)

// WithLogger specifies the logger for the server
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithConfig specifies the config for the server
func WithConfig(c *config.Config) Option {
	return func(s *Server) {
		s.config = c
	}
}

// WithRateProvider specifies the spot rate provider.
// Defaults to a provider over the ingested observations
func WithRateProvider(p RateProvider) Option {
	return func(s *Server) {
		s.rates = p
	}
}

// WithCalculator specifies the calculator used for issued quotes.
// Defaults to the local engine
func WithCalculator(c quote.Calculator) Option {
	return func(s *Server) {
		s.calculator = c
	}
}

// WithPayments specifies the payment link issuer
func WithPayments(p PaymentIssuer) Option {
	return func(s *Server) {
		s.payments = p
	}
}

// WithNotifier specifies the operator notifier
func WithNotifier(n Notifier) Option {
	return func(s *Server) {
		s.notifier = n
	}
}

// WithMetrics specifies the metrics sink, and exposes it on /metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithWebhookSecret requires payment webhooks to carry the secret
func WithWebhookSecret(secret string) Option {
	return func(s *Server) {
		s.webhookSecret = secret
	}
}
