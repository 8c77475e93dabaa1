package ingest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/fxquote/metrics"
	"github.com/sig-0/fxquote/provider/currencies"
	"github.com/sig-0/fxquote/storage/memory"
	"github.com/sig-0/fxquote/storage/mock"
	"github.com/sig-0/fxquote/storage/types"
)

const testProviderName = "test-provider"

// observation returns a USDT based mid-rate observation
func observation(target types.Currency, source types.Source, rate float64) *types.ExchangeRate {
	now := time.Now().UTC()

	return &types.ExchangeRate{
		Base:      currencies.USDT,
		Target:    target,
		Rate:      rate,
		RateType:  types.RateTypeMID,
		Source:    source,
		AsOf:      now,
		FetchedAt: now,
	}
}

// runOrchestrator starts the orchestrator and returns its shutdown func
func runOrchestrator(t *testing.T, o *Orchestrator) func() {
	t.Helper()

	var (
		ctx, cancelFn = context.WithCancel(context.Background())
		errCh         = make(chan error, 1)
	)

	go func() {
		errCh <- o.Start(ctx)
	}()

	return func() {
		cancelFn()

		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("orchestrator did not shut down in time")
		}
	}
}

// latest returns the latest stored USDT rate toward the target, if any
func latest(store *memory.Storage, target types.Currency) float64 {
	page, err := store.RateAsOf(
		context.Background(),
		&types.RateQuery{
			Base:   currencies.USDT,
			Target: &target,
		},
		time.Now().UTC(),
	)
	if err != nil || len(page.Results) == 0 {
		return 0
	}

	return page.Results[0].Rate
}

func TestOrchestrator_New(t *testing.T) {
	t.Parallel()

	o := New(&mock.Storage{})

	require.NotNil(t, o.logger)
	assert.Equal(t, time.Second, o.queryInterval)
	assert.Equal(t, defaultRetryBackoff, o.retryBackoff)

	o = New(
		&mock.Storage{},
		WithQueryInterval(time.Minute),
		WithRetryBackoff(time.Millisecond),
	)

	assert.Equal(t, time.Minute, o.queryInterval)
	assert.Equal(t, time.Millisecond, o.retryBackoff)
}

func TestOrchestrator_Register(t *testing.T) {
	t.Parallel()

	testTable := []struct {
		provider    Provider
		expectedErr error
		name        string
	}{
		{
			name:        "nil provider",
			provider:    nil,
			expectedErr: errInvalidProvider,
		},
		{
			name:        "empty name",
			provider:    newMockProvider("", time.Hour, nil),
			expectedErr: errInvalidProvider,
		},
		{
			name:        "zero interval",
			provider:    newMockProvider(testProviderName, 0, nil),
			expectedErr: errInvalidInterval,
		},
		{
			name:        "negative interval",
			provider:    newMockProvider(testProviderName, -time.Minute, nil),
			expectedErr: errInvalidInterval,
		},
		{
			name:     "valid provider",
			provider: newMockProvider(testProviderName, time.Hour, nil),
		},
	}

	for _, testCase := range testTable {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			o := New(&mock.Storage{})

			err := o.Register(testCase.provider)
			if testCase.expectedErr != nil {
				assert.ErrorIs(t, err, testCase.expectedErr)
				assert.Equal(t, 0, o.q.Len())

				return
			}

			require.NoError(t, err)

			// queued up for immediate execution
			next := o.nextIngest()
			require.NotNil(t, next)
			assert.Equal(t, testProviderName, next.provider.Name())
		})
	}
}

func TestOrchestrator_NextIngest(t *testing.T) {
	t.Parallel()

	var (
		o   = New(&mock.Storage{})
		now = time.Now().UTC()

		later  = newMockProvider("later", time.Hour, nil)
		sooner = newMockProvider("sooner", time.Hour, nil)
		future = newMockProvider("future", time.Hour, nil)
	)

	o.scheduleIngest(now.Add(-time.Second), xid.New(), later)
	o.scheduleIngest(now.Add(-time.Minute), xid.New(), sooner)
	o.scheduleIngest(now.Add(time.Hour), xid.New(), future)

	first := o.nextIngest()
	require.NotNil(t, first)
	assert.Equal(t, "sooner", first.provider.Name())

	second := o.nextIngest()
	require.NotNil(t, second)
	assert.Equal(t, "later", second.provider.Name())

	// the remaining job is not due yet
	assert.Nil(t, o.nextIngest())
	assert.Equal(t, 1, o.q.Len())
}

func TestOrchestrator_Start(t *testing.T) {
	t.Parallel()

	t.Run("ingests into storage", func(t *testing.T) {
		t.Parallel()

		var (
			store = memory.NewStorage()
			reg   = prometheus.NewRegistry()
			o     = New(
				store,
				WithQueryInterval(10*time.Millisecond),
				WithMetrics(metrics.NewWithRegistry(reg)),
			)
		)

		require.NoError(t, o.Register(newMockProvider(
			"Binance",
			time.Hour,
			returning(observation(currencies.THB, types.SourceBinance, 31.16)),
		)))

		require.NoError(t, o.Register(newMockProvider(
			"Doverka",
			time.Hour,
			returning(observation(currencies.RUB, types.SourceDoverka, 84.23)),
		)))

		stop := runOrchestrator(t, o)

		require.Eventually(t, func() bool {
			return latest(store, currencies.THB) == 31.16 && latest(store, currencies.RUB) == 84.23
		}, 5*time.Second, 10*time.Millisecond)

		stop()

		families, err := reg.Gather()
		require.NoError(t, err)

		var ingests float64

		for _, family := range families {
			if family.GetName() != "fxquote_ingests_total" {
				continue
			}

			for _, m := range family.GetMetric() {
				ingests += m.GetCounter().GetValue()
			}
		}

		assert.Equal(t, 2.0, ingests)
	})

	t.Run("reschedules after the interval", func(t *testing.T) {
		t.Parallel()

		var (
			fetches atomic.Int32
			o       = New(memory.NewStorage(), WithQueryInterval(10*time.Millisecond))
		)

		require.NoError(t, o.Register(newMockProvider(
			testProviderName,
			50*time.Millisecond,
			func(context.Context) ([]*types.ExchangeRate, error) {
				fetches.Add(1)

				return []*types.ExchangeRate{observation(currencies.THB, types.SourceBinance, 31.16)}, nil
			},
		)))

		stop := runOrchestrator(t, o)
		defer stop()

		require.Eventually(t, func() bool {
			return fetches.Load() >= 3
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("retries failed fetches", func(t *testing.T) {
		t.Parallel()

		var (
			fetches atomic.Int32
			store   = memory.NewStorage()
			o       = New(
				store,
				WithQueryInterval(10*time.Millisecond),
				WithRetryBackoff(20*time.Millisecond),
			)
		)

		// fails twice, then recovers well before the hourly interval
		require.NoError(t, o.Register(newMockProvider(
			testProviderName,
			time.Hour,
			func(context.Context) ([]*types.ExchangeRate, error) {
				if fetches.Add(1) <= 2 {
					return nil, errors.New("upstream unavailable")
				}

				return []*types.ExchangeRate{observation(currencies.THB, types.SourceBinance, 31.2)}, nil
			},
		)))

		stop := runOrchestrator(t, o)
		defer stop()

		require.Eventually(t, func() bool {
			return latest(store, currencies.THB) == 31.2
		}, 5*time.Second, 10*time.Millisecond)

		assert.Equal(t, int32(3), fetches.Load())
	})

	t.Run("save errors do not stop ingestion", func(t *testing.T) {
		t.Parallel()

		var (
			attempts atomic.Int32
			store    = &mock.Storage{
				SaveExchangeRateFn: func(context.Context, *types.ExchangeRate) error {
					attempts.Add(1)

					return errors.New("disk full")
				},
			}
			o = New(store, WithQueryInterval(10*time.Millisecond))
		)

		require.NoError(t, o.Register(newMockProvider(
			testProviderName,
			30*time.Millisecond,
			returning(observation(currencies.THB, types.SourceBinance, 31.16)),
		)))

		stop := runOrchestrator(t, o)
		defer stop()

		require.Eventually(t, func() bool {
			return attempts.Load() >= 2
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("drops unusable rates", func(t *testing.T) {
		t.Parallel()

		var (
			store = memory.NewStorage()
			o     = New(store, WithQueryInterval(10*time.Millisecond))
		)

		require.NoError(t, o.Register(newMockProvider(
			testProviderName,
			time.Hour,
			returning(
				observation(currencies.THB, types.SourceBinance, 0),
				nil,
				observation(currencies.THB, types.SourceCBR, -1),
				observation(currencies.RUB, types.SourceDoverka, 84.23),
			),
		)))

		stop := runOrchestrator(t, o)

		require.Eventually(t, func() bool {
			return latest(store, currencies.RUB) == 84.23
		}, 5*time.Second, 10*time.Millisecond)

		stop()

		assert.Zero(t, latest(store, currencies.THB))

		sources, err := store.ListSources(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []types.Source{types.SourceDoverka}, sources)
	})
}

func TestOrchestrator_Backoff(t *testing.T) {
	t.Parallel()

	o := New(&mock.Storage{})

	testTable := []struct {
		name     string
		failures int
		interval time.Duration
		expected time.Duration
	}{
		{"first failure", 1, time.Hour, 10 * time.Second},
		{"second failure", 2, time.Hour, 20 * time.Second},
		{"fifth failure", 5, time.Hour, 160 * time.Second},
		{"capped at interval", 20, time.Hour, time.Hour},
		{"short interval", 1, 5 * time.Second, 5 * time.Second},
	}

	for _, testCase := range testTable {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(
				t,
				testCase.expected,
				o.backoff(testCase.failures, testCase.interval),
			)
		})
	}
}

func TestSafeFetch(t *testing.T) {
	t.Parallel()

	p := newMockProvider(testProviderName, time.Hour, func(context.Context) ([]*types.ExchangeRate, error) {
		panic("malformed ticker")
	})

	rates, err := safeFetch(context.Background(), p)

	assert.Nil(t, rates)
	assert.ErrorIs(t, err, errProviderPanic)
	assert.Contains(t, err.Error(), "malformed ticker")
}
