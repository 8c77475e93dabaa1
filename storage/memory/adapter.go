package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sig-0/fxquote/storage/types"
)

const (
	defaultLimit = 100
	maxLimit     = 500

	// DefaultRetention is the default number of observations kept per series
	DefaultRetention = 10_000
)

// seriesKey identifies a single observed rate series
type seriesKey struct {
	base     types.Currency
	target   types.Currency
	source   types.Source
	rateType types.RateType
}

type Option func(s *Storage)

// WithRetention caps the number of observations kept per series.
// The oldest observations are evicted first
func WithRetention(n int) Option {
	return func(s *Storage) {
		if n > 0 {
			s.retention = n
		}
	}
}

// Storage is an in-memory observation store.
// Each series is kept sorted by effective date
type Storage struct {
	series map[seriesKey][]types.ExchangeRate

	retention int
	mu        sync.RWMutex
}

func NewStorage(opts ...Option) *Storage {
	s := &Storage{
		series:    make(map[seriesKey][]types.ExchangeRate),
		retention: DefaultRetention,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Ping always succeeds for the in-memory store
func (s *Storage) Ping(_ context.Context) error {
	return nil
}

func (s *Storage) SaveExchangeRate(_ context.Context, r *types.ExchangeRate) error {
	k := seriesKey{
		base:     r.Base,
		target:   r.Target,
		source:   r.Source,
		rateType: r.RateType,
	}

	elem := *r
	elem.AsOf = elem.AsOf.UTC()
	elem.FetchedAt = elem.FetchedAt.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	points := s.series[k]

	i := sort.Search(len(points), func(i int) bool {
		return !points[i].AsOf.Before(elem.AsOf)
	})

	switch {
	case i < len(points) && points[i].AsOf.Equal(elem.AsOf):
		// same effective date, the latest fetch wins
		points[i] = elem
	default:
		points = append(points, types.ExchangeRate{})
		copy(points[i+1:], points[i:])
		points[i] = elem
	}

	if len(points) > s.retention {
		points = append([]types.ExchangeRate(nil), points[len(points)-s.retention:]...)
	}

	s.series[k] = points

	return nil
}

// RateAsOf returns the latest observation at or before asOf, for every
// series matching the query
func (s *Storage) RateAsOf(
	_ context.Context,
	query *types.RateQuery,
	asOf time.Time,
) (*types.Page[*types.ExchangeRate], error) {
	cutoff := asOf.UTC()

	s.mu.RLock()

	out := make([]*types.ExchangeRate, 0)

	for k, points := range s.series {
		if !matches(k, query) {
			continue
		}

		// first observation past the cutoff
		i := sort.Search(len(points), func(i int) bool {
			return points[i].AsOf.After(cutoff)
		})

		if i == 0 {
			continue
		}

		latest := points[i-1]
		out = append(out, &latest)
	}

	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Target != out[j].Target {
			return out[i].Target < out[j].Target
		}

		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}

		return out[i].RateType < out[j].RateType
	})

	return paginate(out, query.Limit, query.Offset), nil
}

func (s *Storage) ListSources(_ context.Context) ([]types.Source, error) {
	s.mu.RLock()

	seen := make(map[types.Source]struct{})

	for k := range s.series {
		seen[k.source] = struct{}{}
	}

	s.mu.RUnlock()

	out := make([]types.Source, 0, len(seen))

	for v := range seen {
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i] < out[j]
	})

	return out, nil
}

func (s *Storage) ListCurrencies(_ context.Context) ([]types.Currency, error) {
	s.mu.RLock()

	seen := make(map[types.Currency]struct{})

	for k := range s.series {
		seen[k.base] = struct{}{}
		seen[k.target] = struct{}{}
	}

	s.mu.RUnlock()

	out := make([]types.Currency, 0, len(seen))

	for v := range seen {
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i] < out[j]
	})

	return out, nil
}

// matches returns true if the series satisfies the query filters
func matches(k seriesKey, query *types.RateQuery) bool {
	if k.base != query.Base {
		return false
	}

	if query.Target != nil && k.target != *query.Target {
		return false
	}

	if query.Source != nil && k.source != *query.Source {
		return false
	}

	return query.RateType == nil || k.rateType == *query.RateType
}

// paginate clamps the limit and slices the sorted results
func paginate(
	out []*types.ExchangeRate,
	limit int32,
	offset int64,
) *types.Page[*types.ExchangeRate] {
	total := int64(len(out))

	if limit <= 0 {
		limit = defaultLimit
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	if total == 0 || offset >= total || offset < 0 {
		return &types.Page[*types.ExchangeRate]{
			Results: nil,
			Total:   total,
		}
	}

	end := offset + int64(limit)
	if end > total {
		end = total
	}

	return &types.Page[*types.ExchangeRate]{
		Results: out[offset:end],
		Total:   total,
	}
}
