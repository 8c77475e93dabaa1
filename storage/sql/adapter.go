package sql

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sig-0/fxquote/storage/types"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

const saveExchangeRate = `
INSERT INTO exchange_rates (base, target, rate, rate_type, source, as_of, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (base, target, source, rate_type, as_of)
DO UPDATE SET rate = EXCLUDED.rate, fetched_at = EXCLUDED.fetched_at`

// rateAsOf selects the latest observation per series at or before the cutoff
const rateAsOf = `
WITH latest AS (
    SELECT DISTINCT ON (target, source, rate_type)
        base, target, rate, rate_type, source, as_of, fetched_at
    FROM exchange_rates
    WHERE base = $1
      AND ($2::text IS NULL OR target = $2)
      AND ($3::text IS NULL OR source = $3)
      AND ($4::text IS NULL OR rate_type = $4)
      AND as_of <= $5
    ORDER BY target, source, rate_type, as_of DESC, fetched_at DESC
)
SELECT base, target, rate, rate_type, source, as_of, fetched_at, COUNT(*) OVER () AS total
FROM latest
ORDER BY target, source, rate_type
LIMIT $6 OFFSET $7`

const listSources = `SELECT DISTINCT source FROM exchange_rates ORDER BY source`

const listCurrencies = `
SELECT base AS code FROM exchange_rates
UNION
SELECT target AS code FROM exchange_rates
ORDER BY code`

// DB is the subset of the pgx API the storage uses.
// Both *pgx.Conn and *pgxpool.Pool satisfy it
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

type Storage struct {
	db DB
}

func NewStorage(db DB) *Storage {
	return &Storage{
		db: db,
	}
}

func (s *Storage) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("unable to ping DB: %w", err)
	}

	return nil
}

func (s *Storage) SaveExchangeRate(
	ctx context.Context,
	rate *types.ExchangeRate,
) error {
	_, err := s.db.Exec(
		ctx,
		saveExchangeRate,
		rate.Base.String(),
		rate.Target.String(),
		floatToNumeric(rate.Rate),
		rate.RateType.String(),
		rate.Source.String(),
		timeToTimestamptz(rate.AsOf),
		timeToTimestamptz(rate.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("unable to save exchange rate: %w", err)
	}

	return nil
}

func (s *Storage) RateAsOf(
	ctx context.Context,
	query *types.RateQuery,
	asOf time.Time,
) (*types.Page[*types.ExchangeRate], error) {
	var target, source, rateType *string

	if query.Target != nil {
		v := query.Target.String()
		target = &v
	}

	if query.Source != nil {
		v := query.Source.String()
		source = &v
	}

	if query.RateType != nil {
		v := query.RateType.String()
		rateType = &v
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset := max(query.Offset, 0)

	rows, err := s.db.Query(
		ctx,
		rateAsOf,
		query.Base.String(),
		target,
		source,
		rateType,
		timeToTimestamptz(asOf),
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch rates: %w", err)
	}

	defer rows.Close()

	var (
		items = make([]*types.ExchangeRate, 0)
		total int64
	)

	for rows.Next() {
		var r rateRow

		if err = rows.Scan(
			&r.base,
			&r.target,
			&r.rate,
			&r.rateType,
			&r.source,
			&r.asOf,
			&r.fetchedAt,
			&total,
		); err != nil {
			return nil, fmt.Errorf("unable to scan rate: %w", err)
		}

		if parsed := r.parse(); parsed != nil {
			items = append(items, parsed)
		}
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to fetch rates: %w", err)
	}

	if len(items) == 0 {
		return &types.Page[*types.ExchangeRate]{
			Results: nil,
			Total:   total,
		}, nil // valid case
	}

	return &types.Page[*types.ExchangeRate]{
		Results: items,
		Total:   total,
	}, nil
}

func (s *Storage) ListSources(ctx context.Context) ([]types.Source, error) {
	values, err := s.listStrings(ctx, listSources)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch sources: %w", err)
	}

	out := make([]types.Source, 0, len(values))

	for _, src := range values {
		out = append(out, types.Source(src))
	}

	return out, nil
}

func (s *Storage) ListCurrencies(ctx context.Context) ([]types.Currency, error) {
	values, err := s.listStrings(ctx, listCurrencies)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch currencies: %w", err)
	}

	out := make([]types.Currency, 0, len(values))

	for _, code := range values {
		out = append(out, types.Currency(code))
	}

	return out, nil
}

// listStrings runs a single text column query
func (s *Storage) listStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// rateRow is a single exchange_rates row
type rateRow struct {
	base, target, rateType, source string

	rate      pgtype.Numeric
	asOf      pgtype.Timestamptz
	fetchedAt pgtype.Timestamptz
}

// parse converts the postgres row to the common Go type
func (r rateRow) parse() *types.ExchangeRate {
	if !r.rate.Valid || r.rate.Int == nil {
		return nil
	}

	return &types.ExchangeRate{
		Base:      types.Currency(r.base),
		Target:    types.Currency(r.target),
		Rate:      numericToFloat(r.rate),
		RateType:  types.RateType(r.rateType),
		Source:    types.Source(r.source),
		AsOf:      timestamptzToTime(r.asOf),
		FetchedAt: timestamptzToTime(r.fetchedAt),
	}
}

// floatToNumeric converts the float value to postgres numeric, at 8dp
func floatToNumeric(value float64) pgtype.Numeric {
	i := int64(math.Round(value * 1e8))

	return pgtype.Numeric{
		Int:   big.NewInt(i),
		Exp:   -8,
		Valid: true,
	}
}

// numericToFloat converts the postgres value to float
func numericToFloat(value pgtype.Numeric) float64 {
	f, _ := new(big.Rat).SetInt(value.Int).Float64()

	if value.Exp > 0 {
		f *= math.Pow10(int(value.Exp))
	} else if value.Exp < 0 {
		f /= math.Pow10(int(-value.Exp))
	}

	return f
}

func timeToTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{
		Time:  t.UTC(),
		Valid: true,
	}
}

func timestamptzToTime(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}

	return ts.Time.UTC()
}
