package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sig-0/fxquote/provider/currencies"
	"github.com/sig-0/fxquote/quote"
	"github.com/sig-0/fxquote/storage"
	"github.com/sig-0/fxquote/storage/types"
)

var (
	errInvalidRates   = errors.New("source returned non-positive rates")
	errUnexpectedCode = errors.New("unexpected status code")
	errMissingRate    = errors.New("no observation for pair")
	errOutdatedRate   = errors.New("latest observation is outdated")
)

// Source yields the current spot rate pair
type Source interface {
	// Name returns the human-readable name of the source
	Name() string

	// Fetch fetches the current spot rates
	Fetch(context.Context) (quote.Rates, error)
}

// HTTPSource fetches the rate pair from a remote rates service (GET /rates)
type HTTPSource struct {
	client  *http.Client
	baseURL string
}

// NewHTTPSource creates a new remote rates source
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *HTTPSource) Name() string {
	return "http"
}

func (s *HTTPSource) Fetch(ctx context.Context) (quote.Rates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/rates", http.NoBody)
	if err != nil {
		return quote.Rates{}, fmt.Errorf("unable to create request, %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return quote.Rates{}, fmt.Errorf("unable to fetch rates, %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return quote.Rates{}, fmt.Errorf("%w: %d", errUnexpectedCode, resp.StatusCode)
	}

	var r quote.Rates
	if err = json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return quote.Rates{}, fmt.Errorf("unable to decode rates, %w", err)
	}

	if !valid(r) {
		return quote.Rates{}, errInvalidRates
	}

	return r, nil
}

// StorageSource reads the latest ingested USDT/THB and USDT/RUB observations
type StorageSource struct {
	storage storage.Storage

	usdtThbSource types.Source
	rubUsdtSource types.Source

	maxAge time.Duration
}

// NewStorageSource creates a storage-backed source. Observations older than
// maxAge are rejected, a zero maxAge accepts any observation
func NewStorageSource(
	store storage.Storage,
	usdtThbSource,
	rubUsdtSource types.Source,
	maxAge time.Duration,
) *StorageSource {
	return &StorageSource{
		storage:       store,
		usdtThbSource: usdtThbSource,
		rubUsdtSource: rubUsdtSource,
		maxAge:        maxAge,
	}
}

func (s *StorageSource) Name() string {
	return "storage"
}

func (s *StorageSource) Fetch(ctx context.Context) (quote.Rates, error) {
	now := time.Now().UTC()

	usdtThb, err := s.latest(ctx, currencies.THB, s.usdtThbSource, now)
	if err != nil {
		return quote.Rates{}, err
	}

	rubUsdt, err := s.latest(ctx, currencies.RUB, s.rubUsdtSource, now)
	if err != nil {
		return quote.Rates{}, err
	}

	r := quote.Rates{
		UsdtThb: usdtThb,
		RubUsdt: rubUsdt,
	}

	if !valid(r) {
		return quote.Rates{}, errInvalidRates
	}

	return r, nil
}

// latest fetches the latest USDT/target mid rate of the given source
func (s *StorageSource) latest(
	ctx context.Context,
	target types.Currency,
	source types.Source,
	now time.Time,
) (float64, error) {
	rateType := types.RateTypeMID

	page, err := s.storage.RateAsOf(ctx, &types.RateQuery{
		Base:     currencies.USDT,
		Target:   &target,
		Source:   &source,
		RateType: &rateType,
		Limit:    1,
	}, now)
	if err != nil {
		return 0, fmt.Errorf("unable to fetch USDT/%s rate, %w", target, err)
	}

	if page == nil || len(page.Results) == 0 {
		return 0, fmt.Errorf("%w: USDT/%s (%s)", errMissingRate, target, source)
	}

	latest := page.Results[0]

	if s.maxAge > 0 && now.Sub(latest.AsOf) > s.maxAge {
		return 0, fmt.Errorf(
			"%w: USDT/%s as of %s",
			errOutdatedRate,
			target,
			latest.AsOf.Format(time.RFC3339),
		)
	}

	return latest.Rate, nil
}

// valid returns true if both rates are usable for a quote
func valid(r quote.Rates) bool {
	return positive(r.UsdtThb) && positive(r.RubUsdt)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
