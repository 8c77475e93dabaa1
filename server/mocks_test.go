package server

import (
	"context"

	"github.com/sig-0/fxquote/payment"
	"github.com/sig-0/fxquote/quote"
	"github.com/sig-0/fxquote/rates"
)

type (
	fetchDelegate     func(context.Context) rates.Snapshot
	refreshDelegate   func(context.Context) rates.Snapshot
	withRatesDelegate func(context.Context, func(rates.Snapshot) error) error
)

type mockRateProvider struct {
	fetchFn     fetchDelegate
	refreshFn   refreshDelegate
	withRatesFn withRatesDelegate
}

func (m *mockRateProvider) Fetch(ctx context.Context) rates.Snapshot {
	if m.fetchFn != nil {
		return m.fetchFn(ctx)
	}

	return rates.Snapshot{}
}

func (m *mockRateProvider) Refresh(ctx context.Context) rates.Snapshot {
	if m.refreshFn != nil {
		return m.refreshFn(ctx)
	}

	return rates.Snapshot{}
}

func (m *mockRateProvider) WithRates(ctx context.Context, fn func(rates.Snapshot) error) error {
	if m.withRatesFn != nil {
		return m.withRatesFn(ctx, fn)
	}

	return fn(m.Fetch(ctx))
}

type calculateDelegate func(context.Context, *quote.Request) (*quote.Result, error)

type mockCalculator struct {
	calculateFn calculateDelegate
}

func (m *mockCalculator) Name() string {
	return "mock"
}

func (m *mockCalculator) Calculate(ctx context.Context, req *quote.Request) (*quote.Result, error) {
	if m.calculateFn != nil {
		return m.calculateFn(ctx, req)
	}

	return nil, nil
}

type issueDelegate func(context.Context, *payment.Request) (*payment.Link, error)

type mockPayments struct {
	issueFn  issueDelegate
	disabled bool
}

func (m *mockPayments) Enabled() bool {
	return !m.disabled
}

func (m *mockPayments) Issue(ctx context.Context, req *payment.Request) (*payment.Link, error) {
	if m.issueFn != nil {
		return m.issueFn(ctx, req)
	}

	return nil, nil
}

type notifyDelegate func(context.Context, string) error

type mockNotifier struct {
	notifyFn notifyDelegate
}

func (m *mockNotifier) Notify(ctx context.Context, text string) error {
	if m.notifyFn != nil {
		return m.notifyFn(ctx, text)
	}

	return nil
}
