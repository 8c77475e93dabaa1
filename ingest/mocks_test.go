package ingest

import (
	"context"
	"time"

	"github.com/sig-0/fxquote/storage/types"
)

type fetchDelegate func(context.Context) ([]*types.ExchangeRate, error)

// mockProvider is a provider with a fixed name and interval
type mockProvider struct {
	fetchFn fetchDelegate

	name     string
	interval time.Duration
}

func newMockProvider(name string, interval time.Duration, fetchFn fetchDelegate) *mockProvider {
	return &mockProvider{
		fetchFn:  fetchFn,
		name:     name,
		interval: interval,
	}
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) Interval() time.Duration {
	return m.interval
}

func (m *mockProvider) Fetch(ctx context.Context) ([]*types.ExchangeRate, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx)
	}

	return nil, nil
}

// returning yields the given observations on every fetch
func returning(rates ...*types.ExchangeRate) fetchDelegate {
	return func(context.Context) ([]*types.ExchangeRate, error) {
		out := make([]*types.ExchangeRate, 0, len(rates))

		for _, r := range rates {
			if r == nil {
				out = append(out, nil)

				continue
			}

			c := *r
			out = append(out, &c)
		}

		return out, nil
	}
}
