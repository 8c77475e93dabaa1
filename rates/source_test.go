package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/fxquote/provider/currencies"
	"github.com/sig-0/fxquote/quote"
	"github.com/sig-0/fxquote/storage/mock"
	"github.com/sig-0/fxquote/storage/types"
)

func TestHTTPSource_Fetch(t *testing.T) {
	t.Parallel()

	newServer := func(t *testing.T, status int, body string) *httptest.Server {
		t.Helper()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rates", r.URL.Path)
			assert.Equal(t, http.MethodGet, r.Method)

			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))

		t.Cleanup(srv.Close)

		return srv
	}

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t, http.StatusOK, `{"usdt_thb": 31.16, "rub_usdt": 84.23}`)

		r, err := NewHTTPSource(srv.URL+"/", time.Second).Fetch(context.Background())
		require.NoError(t, err)

		assert.Equal(t, quote.Rates{UsdtThb: 31.16, RubUsdt: 84.23}, r)
	})

	t.Run("non-200 status", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t, http.StatusBadGateway, `{}`)

		_, err := NewHTTPSource(srv.URL, time.Second).Fetch(context.Background())

		assert.ErrorIs(t, err, errUnexpectedCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t, http.StatusOK, `<html>`)

		_, err := NewHTTPSource(srv.URL, time.Second).Fetch(context.Background())

		assert.Error(t, err)
	})

	t.Run("missing rate", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t, http.StatusOK, `{"usdt_thb": 31.16}`)

		_, err := NewHTTPSource(srv.URL, time.Second).Fetch(context.Background())

		assert.ErrorIs(t, err, errInvalidRates)
	})
}

func TestStorageSource_Fetch(t *testing.T) {
	t.Parallel()

	observed := func(target types.Currency, rate float64, asOf time.Time) *types.Page[*types.ExchangeRate] {
		return &types.Page[*types.ExchangeRate]{
			Results: []*types.ExchangeRate{{
				Base:     currencies.USDT,
				Target:   target,
				Rate:     rate,
				RateType: types.RateTypeMID,
				AsOf:     asOf,
			}},
			Total: 1,
		}
	}

	t.Run("latest observations", func(t *testing.T) {
		t.Parallel()

		var sources []types.Source

		store := &mock.Storage{
			RateAsOfFn: func(
				_ context.Context,
				query *types.RateQuery,
				_ time.Time,
			) (*types.Page[*types.ExchangeRate], error) {
				sources = append(sources, *query.Source)

				assert.Equal(t, currencies.USDT, query.Base)

				if *query.Target == currencies.THB {
					return observed(currencies.THB, 31.16, time.Now()), nil
				}

				return observed(currencies.RUB, 84.23, time.Now()), nil
			},
		}

		r, err := NewStorageSource(
			store,
			types.SourceBinance,
			types.SourceDoverka,
			time.Hour,
		).Fetch(context.Background())
		require.NoError(t, err)

		assert.Equal(t, quote.Rates{UsdtThb: 31.16, RubUsdt: 84.23}, r)
		assert.Equal(t, []types.Source{types.SourceBinance, types.SourceDoverka}, sources)
	})

	t.Run("missing observation", func(t *testing.T) {
		t.Parallel()

		s := NewStorageSource(&mock.Storage{}, types.SourceBinance, types.SourceDoverka, 0)

		_, err := s.Fetch(context.Background())

		assert.ErrorIs(t, err, errMissingRate)
	})

	t.Run("outdated observation", func(t *testing.T) {
		t.Parallel()

		store := &mock.Storage{
			RateAsOfFn: func(
				_ context.Context,
				query *types.RateQuery,
				_ time.Time,
			) (*types.Page[*types.ExchangeRate], error) {
				return observed(*query.Target, 31, time.Now().Add(-2*time.Hour)), nil
			},
		}

		_, err := NewStorageSource(
			store,
			types.SourceBinance,
			types.SourceDoverka,
			time.Hour,
		).Fetch(context.Background())

		assert.ErrorIs(t, err, errOutdatedRate)
	})

	t.Run("storage error", func(t *testing.T) {
		t.Parallel()

		errStorage := errors.New("db down")

		store := &mock.Storage{
			RateAsOfFn: func(
				context.Context,
				*types.RateQuery,
				time.Time,
			) (*types.Page[*types.ExchangeRate], error) {
				return nil, errStorage
			},
		}

		_, err := NewStorageSource(store, types.SourceBinance, types.SourceDoverka, 0).
			Fetch(context.Background())

		assert.ErrorIs(t, err, errStorage)
	})
}
