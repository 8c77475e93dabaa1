package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sig-0/iq"

	"github.com/sig-0/fxquote/metrics"
	"github.com/sig-0/fxquote/storage"
	"github.com/sig-0/fxquote/storage/types"
)

const (
	defaultRetryBackoff = 10 * time.Second
	saveTimeout         = 10 * time.Second
	collectorSize       = 100
)

var (
	errInvalidProvider = errors.New("invalid provider")
	errInvalidInterval = errors.New("invalid interval")
)

// Orchestrator is the main job scheduler for registered providers
type Orchestrator struct {
	storage storage.Storage
	logger  *slog.Logger
	metrics *metrics.Metrics

	registeredProviders sync.Map

	// failures counts consecutive failed fetches per provider.
	// Only accessed from the Start loop
	failures map[xid.ID]int

	q             iq.Queue[scheduledIngest]
	queryInterval time.Duration
	retryBackoff  time.Duration
	qMux          sync.Mutex
}

// New creates a new Orchestrator instance
func New(storage storage.Storage, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		storage:       storage,
		failures:      make(map[xid.ID]int),
		q:             iq.NewQueue[scheduledIngest](),
		queryInterval: time.Second,
		retryBackoff:  defaultRetryBackoff,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Register registers a new provider with the orchestrator.
// The provider is immediately queued up for execution
func (o *Orchestrator) Register(p Provider) error {
	if p == nil || p.Name() == "" {
		return errInvalidProvider
	}

	if p.Interval() <= 0 {
		return errInvalidInterval
	}

	id := xid.New()
	o.registeredProviders.Store(id, p)

	o.logger.Info(
		"registered new provider",
		"name", p.Name(),
		"interval", p.Interval().String(),
	)

	o.scheduleIngest(
		time.Now().UTC(),
		id,
		p,
	)

	return nil
}

// Start starts the provider orchestration service loop [BLOCKING]
func (o *Orchestrator) Start(ctx context.Context) error {
	collectorCh := make(chan *workerResponse, collectorSize)

	ticker := time.NewTicker(o.queryInterval)
	defer ticker.Stop()

	// handleIngest spawns workers for all due jobs
	handleIngest := func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				nextSI := o.nextIngest()
				if nextSI == nil {
					return
				}

				o.logger.Debug(
					"scheduling ingest",
					"name", nextSI.provider.Name(),
				)

				info := &workerInfo{
					provider:   nextSI.provider,
					providerID: nextSI.providerID,
					resCh:      collectorCh,
				}

				go handleJob(ctx, info)
			}
		}
	}

	// Initialize the first set of due jobs (on boot)
	handleIngest()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator service shut down")

			return nil
		case <-ticker.C:
			handleIngest()
		case response := <-collectorCh:
			o.handleResponse(ctx, response)
		}
	}
}

// handleResponse persists a worker's observations and reschedules its provider
func (o *Orchestrator) handleResponse(ctx context.Context, response *workerResponse) {
	now := time.Now().UTC()

	rpRaw, ok := o.registeredProviders.Load(response.providerID)
	if !ok {
		o.logger.Error(
			"unable to load registered provider",
			"id", response.providerID.String(),
		)

		return
	}

	rp, _ := rpRaw.(Provider)

	if response.error != nil {
		o.failures[response.providerID]++

		delay := o.backoff(o.failures[response.providerID], rp.Interval())

		o.logger.Error(
			"error encountered during rate fetch",
			"name", rp.Name(),
			"attempt", o.failures[response.providerID],
			"retry_in", delay.String(),
			"err", response.error,
		)

		o.metrics.Ingested(rp.Name(), metrics.OutcomeFailure)

		o.scheduleIngest(now.Add(delay), response.providerID, rp)

		return
	}

	delete(o.failures, response.providerID)

	o.metrics.Ingested(rp.Name(), metrics.OutcomeSuccess)

	for _, rate := range response.rates {
		o.save(ctx, rp, rate)
	}

	o.logger.Info(
		"ingest complete",
		"name", rp.Name(),
		"rates", len(response.rates),
		"took", response.took.String(),
	)

	o.scheduleIngest(now.Add(rp.Interval()), response.providerID, rp)
}

// save persists a single observation, skipping unusable rates
func (o *Orchestrator) save(ctx context.Context, rp Provider, rate *types.ExchangeRate) {
	if rate == nil || rate.Rate <= 0 || math.IsInf(rate.Rate, 0) || math.IsNaN(rate.Rate) {
		o.logger.Warn(
			"dropping unusable exchange rate",
			"name", rp.Name(),
		)

		return
	}

	saveCtx, cancelFn := context.WithTimeout(ctx, saveTimeout)
	defer cancelFn()

	if err := o.storage.SaveExchangeRate(saveCtx, rate); err != nil {
		o.logger.Error(
			"unable to save exchange rate",
			"base", rate.Base,
			"target", rate.Target,
			"source", rate.Source,
			"err", err,
		)

		return
	}

	o.logger.Debug(
		"saved exchange rate",
		"base", rate.Base,
		"target", rate.Target,
		"source", rate.Source,
		"rate", rate.Rate,
		"rate_type", rate.RateType,
		"effective_date", rate.AsOf.String(),
	)
}

// backoff returns the retry delay after the given number of consecutive
// failures. The delay doubles per failure and never exceeds the interval
func (o *Orchestrator) backoff(failures int, interval time.Duration) time.Duration {
	delay := o.retryBackoff

	for i := 1; i < failures && delay < interval; i++ {
		delay *= 2
	}

	return min(delay, interval)
}

// scheduleIngest schedules a new provider ingest
func (o *Orchestrator) scheduleIngest(
	at time.Time,
	providerID xid.ID,
	provider Provider,
) {
	o.qMux.Lock()
	defer o.qMux.Unlock()

	o.q.Push(scheduledIngest{
		at:         at,
		providerID: providerID,
		provider:   provider,
	})
}

// nextIngest fetches the next due ingest job, as of the moment of calling
func (o *Orchestrator) nextIngest() *scheduledIngest {
	o.qMux.Lock()
	defer o.qMux.Unlock()

	if o.q.Len() == 0 {
		return nil // all jobs are running
	}

	if o.q.Index(0).at.After(time.Now().UTC()) {
		return nil // the earliest job is in the future
	}

	return o.q.PopFront()
}
