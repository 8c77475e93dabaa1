package rates

import (
	"context"

	"github.com/sig-0/fxquote/quote"
)

type fetchDelegate func(context.Context) (quote.Rates, error)

type mockSource struct {
	fetchFn fetchDelegate
}

func (m *mockSource) Name() string {
	return "mock"
}

func (m *mockSource) Fetch(ctx context.Context) (quote.Rates, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx)
	}

	return quote.Rates{}, nil
}
