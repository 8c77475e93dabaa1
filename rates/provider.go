package rates

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/sig-0/fxquote/metrics"
	"github.com/sig-0/fxquote/quote"
)

const (
	DefaultTTL          = 60 * time.Second
	DefaultFetchTimeout = 10 * time.Second

	// DefaultUsdtThb and DefaultRubUsdt are the static fallback pair
	DefaultUsdtThb = 31.16
	DefaultRubUsdt = 84.23

	// StaticSourceName labels snapshots built from the static fallback pair
	StaticSourceName = "static"

	snapshotKey = "rates"
)

// Snapshot is a rate pair together with its provenance
type Snapshot struct {
	FetchedAt time.Time   `json:"fetched_at"`
	Source    string      `json:"source"`
	Rates     quote.Rates `json:"rates"`

	// Stale is set when the rates could not be refreshed
	// and the last known rates were served instead
	Stale bool `json:"stale"`

	// Fallback is set when the static fallback pair was served
	Fallback bool `json:"fallback"`
}

// Provider serves spot rates from a source, with a TTL cache,
// a single outstanding refresh and a fail-closed fallback
type Provider struct {
	source  Source
	logger  *slog.Logger
	metrics *metrics.Metrics

	cache *cache.Cache
	group singleflight.Group

	lastKnown *Snapshot
	lastMux   sync.RWMutex

	static       quote.Rates
	ttl          time.Duration
	fetchTimeout time.Duration
}

// NewProvider creates a new rate provider over the given source
func NewProvider(source Source, opts ...Option) *Provider {
	p := &Provider{
		source:       source,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		ttl:          DefaultTTL,
		fetchTimeout: DefaultFetchTimeout,
		static: quote.Rates{
			UsdtThb: DefaultUsdtThb,
			RubUsdt: DefaultRubUsdt,
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	p.cache = cache.New(p.ttl, p.ttl*2)

	return p
}

// Fetch returns the current rates. It never fails: fresh rates are served
// from cache, stale rates are refreshed first, and when the refresh fails
// or ctx is done the last known rates (or the static pair) are returned
func (p *Provider) Fetch(ctx context.Context) Snapshot {
	if cached, ok := p.cache.Get(snapshotKey); ok {
		return cached.(Snapshot)
	}

	return p.refresh(ctx)
}

// Refresh drops the cached rates and fetches new ones
func (p *Provider) Refresh(ctx context.Context) Snapshot {
	p.cache.Delete(snapshotKey)

	return p.refresh(ctx)
}

// WithRates runs fn against a single snapshot, refreshing stale rates first.
// Last known rates get one more refresh attempt before fn runs.
// fn always observes a complete pair, never one mid-refresh
func (p *Provider) WithRates(ctx context.Context, fn func(Snapshot) error) error {
	snap := p.Fetch(ctx)
	if snap.Stale && !snap.Fallback {
		snap = p.Refresh(ctx)
	}

	return fn(snap)
}

// refresh fetches from the source. Concurrent callers share a single
// outstanding fetch, which outlives a caller canceling its ctx
func (p *Provider) refresh(ctx context.Context) Snapshot {
	resCh := p.group.DoChan(snapshotKey, func() (any, error) {
		fetchCtx, cancelFn := context.WithTimeout(
			context.WithoutCancel(ctx),
			p.fetchTimeout,
		)
		defer cancelFn()

		start := time.Now()

		r, err := p.source.Fetch(fetchCtx)
		if err == nil && !valid(r) {
			err = errInvalidRates
		}

		if err != nil {
			p.metrics.RateFetched(p.source.Name(), metrics.OutcomeFailure, time.Since(start))

			return nil, err
		}

		p.metrics.RateFetched(p.source.Name(), metrics.OutcomeSuccess, time.Since(start))

		snap := Snapshot{
			Rates:     r,
			FetchedAt: time.Now().UTC(),
			Source:    p.source.Name(),
		}

		p.cache.SetDefault(snapshotKey, snap)

		p.lastMux.Lock()
		p.lastKnown = &snap
		p.lastMux.Unlock()

		return snap, nil
	})

	select {
	case <-ctx.Done():
		p.logger.Warn(
			"rate fetch abandoned, serving fallback rates",
			"source", p.source.Name(),
			"err", ctx.Err(),
		)

		return p.fallback()
	case res := <-resCh:
		if res.Err != nil {
			p.logger.Error(
				"unable to fetch rates, serving fallback rates",
				"source", p.source.Name(),
				"err", res.Err,
			)

			return p.fallback()
		}

		return res.Val.(Snapshot)
	}
}

// fallback returns the last known rates, or the static pair
func (p *Provider) fallback() Snapshot {
	p.lastMux.RLock()
	defer p.lastMux.RUnlock()

	if p.lastKnown != nil {
		snap := *p.lastKnown
		snap.Stale = true

		return snap
	}

	return Snapshot{
		Rates:     p.static,
		FetchedAt: time.Now().UTC(),
		Source:    StaticSourceName,
		Stale:     true,
		Fallback:  true,
	}
}
