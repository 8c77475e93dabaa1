package spot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sig-0/fxquote/provider/currencies"
	"github.com/sig-0/fxquote/storage/types"
)

const (
	binanceSymbol = "USDTTHB"

	// BinanceGlobalURL is the global ticker endpoint
	BinanceGlobalURL = "https://api.binance.com/api/v3/ticker/price"

	// BinanceThailandURL is the Binance TH ticker endpoint
	BinanceThailandURL = "https://api.binance.th/api/v1/ticker/price"
)

var errNoEndpoints = errors.New("no ticker endpoints configured")

// binanceTicker is the response from the ticker price API
type binanceTicker struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// BinanceProvider fetches the USDT/THB ticker price from Binance
type BinanceProvider struct {
	client    *http.Client
	endpoints []string
}

// NewBinanceProvider creates a new instance of the Binance ticker provider.
// The endpoints are tried in order, and default to the global and TH APIs
func NewBinanceProvider(timeout time.Duration, endpoints ...string) *BinanceProvider {
	if len(endpoints) == 0 {
		endpoints = []string{BinanceGlobalURL, BinanceThailandURL}
	}

	return &BinanceProvider{
		client: &http.Client{
			Timeout: timeout,
		},
		endpoints: endpoints,
	}
}

func (p *BinanceProvider) Name() string {
	return "Binance (USDT/THB)"
}

func (p *BinanceProvider) Interval() time.Duration {
	return time.Minute
}

func (p *BinanceProvider) Fetch(ctx context.Context) ([]*types.ExchangeRate, error) {
	if len(p.endpoints) == 0 {
		return nil, errNoEndpoints
	}

	errs := make([]error, 0, len(p.endpoints))

	for _, endpoint := range p.endpoints {
		price, err := p.fetchPrice(ctx, endpoint)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", endpoint, err))

			if ctx.Err() != nil {
				break
			}

			continue
		}

		fetchTime := time.Now().UTC()

		return []*types.ExchangeRate{
			{
				AsOf:      fetchTime,
				FetchedAt: fetchTime,
				Base:      currencies.USDT,
				Target:    currencies.THB,
				RateType:  types.RateTypeMID,
				Source:    types.SourceBinance,
				Rate:      price,
			},
		}, nil
	}

	return nil, fmt.Errorf("unable to fetch ticker price: %w", errors.Join(errs...))
}

// fetchPrice queries a single ticker endpoint
func (p *BinanceProvider) fetchPrice(ctx context.Context, endpoint string) (float64, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return 0, fmt.Errorf("unable to parse endpoint: %w", err)
	}

	q := u.Query()
	q.Set("symbol", binanceSymbol)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("unable to create new GET request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("unable to execute GET request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("invalid status code received: %d", resp.StatusCode)
	}

	var ticker binanceTicker
	if err = json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return 0, fmt.Errorf("unable to decode ticker: %w", err)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse price %q: %w", ticker.Price, err)
	}

	if price <= 0 {
		return 0, errInvalidRate
	}

	return roundRate(price), nil
}
