package quote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sig-0/fxquote/metrics"
)

// Calculator computes quotes
type Calculator interface {
	// Name returns the human-readable name of the calculator
	Name() string

	// Calculate computes a full quote for the request
	Calculate(context.Context, *Request) (*Result, error)
}

// Local is the in-process quote engine
type Local struct {
	policy *Policy
}

// NewLocal creates a local calculator with the given policy
func NewLocal(policy *Policy) *Local {
	if policy == nil {
		policy = DefaultPolicy()
	}

	return &Local{
		policy: policy,
	}
}

func (l *Local) Name() string {
	return "local"
}

// Policy returns the commission policy of the calculator
func (l *Local) Policy() *Policy {
	return l.policy
}

func (l *Local) Calculate(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return Compute(req, l.policy)
}

var errNoCalculators = errors.New("no calculators configured")

type FallbackOption func(f *Fallback)

// WithFallbackLogger specifies the logger for the fallback chain
func WithFallbackLogger(l *slog.Logger) FallbackOption {
	return func(f *Fallback) {
		f.logger = l
	}
}

// WithFallbackMetrics specifies the metrics sink for the fallback chain
func WithFallbackMetrics(m *metrics.Metrics) FallbackOption {
	return func(f *Fallback) {
		f.metrics = m
	}
}

// Fallback evaluates an ordered list of calculators,
// returning the first successful result
type Fallback struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	calculators []Calculator
}

// NewFallback creates a fallback chain over the given calculators, in order
func NewFallback(calculators []Calculator, opts ...FallbackOption) *Fallback {
	f := &Fallback{
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		calculators: calculators,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

func (f *Fallback) Name() string {
	return "fallback"
}

// Calculate runs the calculators in order. Invalid input stops the chain,
// since no other calculator can produce a quote for it. When every
// calculator fails, the joined errors are returned
func (f *Fallback) Calculate(ctx context.Context, req *Request) (*Result, error) {
	if len(f.calculators) == 0 {
		return nil, errNoCalculators
	}

	errs := make([]error, 0, len(f.calculators))

	for _, calc := range f.calculators {
		result, err := calc.Calculate(ctx, req)
		if err == nil {
			f.metrics.QuoteComputed(
				req.Method.String(),
				req.Scenario.String(),
				req.Direction.String(),
				calc.Name(),
			)

			return result, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", calc.Name(), err))

		if errors.Is(err, ErrInvalidInput) {
			f.metrics.QuoteFailed("invalid_input")

			return nil, errors.Join(errs...)
		}

		f.logger.Warn(
			"calculator failed, falling back",
			"calculator", calc.Name(),
			"err", err,
		)

		f.metrics.CalculatorFallback(calc.Name())
	}

	f.metrics.QuoteFailed("upstream_unavailable")

	return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, errors.Join(errs...))
}
