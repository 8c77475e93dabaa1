package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sig-0/fxquote/storage/types"
)

const (
	defaultLimit = int32(100)
	maxLimit     = int32(500)
)

var (
	errUnableToFetchRates      = errors.New("unable to fetch rates")
	errUnableToFetchCurrencies = errors.New("unable to fetch currencies")
	errUnableToFetchSources    = errors.New("unable to fetch sources")
	errStorageUnreachable      = errors.New("storage unreachable")

	errInvalidLimit  = errors.New("invalid limit")
	errInvalidOffset = errors.New("invalid offset")
	errInvalidType   = errors.New("invalid type")
	errInvalidAsOf   = errors.New("invalid as_of (must be RFC3339 UTC)")

	errInvalidCurrencyLength = errors.New("invalid currency (must be 3 or 4 letters)")
	errInvalidCurrencyChars  = errors.New("invalid currency (must be A-Z)")
)

// Health reports whether the server and its storage are reachable
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.Ping(r.Context()); err != nil {
		s.logger.Warn(
			"storage unreachable",
			"err", err,
		)

		writeError(w, http.StatusServiceUnavailable, errStorageUnreachable)

		return
	}

	w.WriteHeader(http.StatusOK)
}

// RatesForPair serves the observation history of a single pair, as of a date
func (s *Server) RatesForPair(w http.ResponseWriter, r *http.Request) {
	q, asOf, err := parseRateQuery(r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	s.rateHistory(w, r, q, asOf)
}

// RatesForBase serves the observation history of every pair of a base, as of a date
func (s *Server) RatesForBase(w http.ResponseWriter, r *http.Request) {
	q, asOf, err := parseRateQuery(r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	s.rateHistory(w, r, q, asOf)
}

func (s *Server) rateHistory(
	w http.ResponseWriter,
	r *http.Request,
	q *types.RateQuery,
	asOf time.Time,
) {
	page, err := s.storage.RateAsOf(r.Context(), q, asOf)
	if err != nil {
		s.logger.Debug(
			"unable to fetch rates",
			"base", q.Base,
			"err", err,
		)

		writeError(
			w,
			http.StatusInternalServerError,
			errUnableToFetchRates,
		)

		return
	}

	writeJSON(w, http.StatusOK, page)
}

// parseRateQuery parses the route and query params of a rate history request
func parseRateQuery(r *http.Request, withTarget bool) (*types.RateQuery, time.Time, error) {
	var (
		query = r.URL.Query()
		q     = &types.RateQuery{}
		err   error
	)

	// Parse the base currency
	if q.Base, err = parseCurrencySymbol(chi.URLParam(r, "base")); err != nil {
		return nil, time.Time{}, err
	}

	// Parse the target currency
	if withTarget {
		target, err := parseCurrencySymbol(chi.URLParam(r, "target"))
		if err != nil {
			return nil, time.Time{}, err
		}

		q.Target = &target
	}

	// Parse the effective date (defaults to now)
	asOf, err := parseAsOf(query.Get("as_of"))
	if err != nil {
		return nil, time.Time{}, err
	}

	// Parse the pagination settings
	if q.Limit, q.Offset, err = parseLimitOffset(query.Get("limit"), query.Get("offset")); err != nil {
		return nil, time.Time{}, err
	}

	// Parse the source and rate type (optional)
	if q.Source, q.RateType, err = parseSourceAndType(query.Get("source"), query.Get("type")); err != nil {
		return nil, time.Time{}, err
	}

	return q, asOf, nil
}

func (s *Server) Sources(w http.ResponseWriter, r *http.Request) {
	items, err := s.storage.ListSources(r.Context())
	if err != nil {
		s.logger.Debug(
			"unable to fetch sources",
			"err", err,
		)

		writeError(
			w,
			http.StatusInternalServerError,
			errUnableToFetchSources,
		)

		return
	}

	resp := &SourcesResponse{
		Results: items,
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) Currencies(w http.ResponseWriter, r *http.Request) {
	items, err := s.storage.ListCurrencies(r.Context())
	if err != nil {
		s.logger.Debug(
			"unable to fetch currencies",
			"err", err,
		)

		writeError(
			w,
			http.StatusInternalServerError,
			errUnableToFetchCurrencies,
		)

		return
	}

	resp := &CurrenciesResponse{
		Results: items,
	}

	writeJSON(w, http.StatusOK, resp)
}

func parseAsOf(asOfRaw string) (time.Time, error) {
	v := strings.TrimSpace(asOfRaw)
	if v == "" {
		return time.Now().UTC(), nil // default is now
	}

	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, errInvalidAsOf
	}

	return t.UTC(), nil
}

func parseLimitOffset(limitRaw, offsetRaw string) (int32, int64, error) {
	limit := defaultLimit

	if v := strings.TrimSpace(limitRaw); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, 0, errInvalidLimit
		}

		limit = int32(n) //nolint:gosec // Fine to clamp
	}

	if limit <= 0 {
		limit = defaultLimit
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	var offset int64

	if v := strings.TrimSpace(offsetRaw); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return 0, 0, errInvalidOffset
		}

		offset = n
	}

	return limit, offset, nil
}

func parseSourceAndType(sourceRaw, typeRaw string) (*types.Source, *types.RateType, error) {
	var src *types.Source

	if v := strings.TrimSpace(sourceRaw); v != "" {
		s := types.Source(strings.ToUpper(v))

		src = &s
	}

	var rt *types.RateType

	if v := strings.TrimSpace(typeRaw); v != "" {
		t := types.RateType(strings.ToUpper(v))

		switch t {
		case types.RateTypeMID, types.RateTypeBUY, types.RateTypeSELL:
			rt = &t
		default:
			return nil, nil, errInvalidType
		}
	}

	return src, rt, nil
}

func parseCurrencySymbol(v string) (types.Currency, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	if len(s) < 3 || len(s) > 4 {
		return "", errInvalidCurrencyLength
	}

	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return "", errInvalidCurrencyChars
		}
	}

	return types.Currency(s), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // Fine to ignore
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := &ErrorResponse{
		Error: err.Error(),
	}

	writeJSON(w, status, resp)
}
