package storage

import (
	"context"
	"time"

	"github.com/sig-0/fxquote/storage/types"
)

// Storage is an abstraction over observed exchange rate data
type Storage interface {
	// Ping checks the storage is reachable
	Ping(context.Context) error

	// SaveExchangeRate saves the given exchange rate observation.
	// Observations of the same series and effective date are overwritten
	SaveExchangeRate(context.Context, *types.ExchangeRate) error

	// RateAsOf fetches the latest observation of every matching series,
	// as of the given time
	RateAsOf(context.Context, *types.RateQuery, time.Time) (*types.Page[*types.ExchangeRate], error)

	// ListSources lists all present sources for fx rates
	ListSources(context.Context) ([]types.Source, error)

	// ListCurrencies lists all currencies present
	ListCurrencies(context.Context) ([]types.Currency, error)
}
