package quote

import (
	"context"
)

type (
	calculatorNameDelegate func() string
	calculateDelegate      func(context.Context, *Request) (*Result, error)
)

type mockCalculator struct {
	nameFn      calculatorNameDelegate
	calculateFn calculateDelegate
}

func (m *mockCalculator) Name() string {
	if m.nameFn != nil {
		return m.nameFn()
	}

	return "mock"
}

func (m *mockCalculator) Calculate(ctx context.Context, req *Request) (*Result, error) {
	if m.calculateFn != nil {
		return m.calculateFn(ctx, req)
	}

	return nil, nil
}
