//nolint:tagliatelle // partner API uses snake case
package spot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sig-0/fxquote/provider/currencies"
	"github.com/sig-0/fxquote/storage/types"
)

// DoverkaURL is the default partner API base URL
const DoverkaURL = "https://api.doverkapay.com"

// rateFromRUBFloor separates a RUB per USDT price from its inverse
const rateFromRUBFloor = 80

var (
	errMissingAPIKey = errors.New("missing partner API key")
	errNoUSDRate     = errors.New("no USD or USDT rate in currency list")
)

// doverkaCurrency is a single entry of the partner currency list
type doverkaCurrency struct {
	Symbol      string    `json:"symbol"`
	RateToRUB   flexFloat `json:"rate_to_rub"`
	RateFromRUB flexFloat `json:"rate_from_rub"`
}

// DoverkaProvider fetches the RUB/USDT rate from the payment partner
type DoverkaProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewDoverkaProvider creates a new instance of the partner currency provider
func NewDoverkaProvider(baseURL, apiKey string, timeout time.Duration) *DoverkaProvider {
	if baseURL == "" {
		baseURL = DoverkaURL
	}

	return &DoverkaProvider{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (p *DoverkaProvider) Name() string {
	return "Doverka (RUB/USDT)"
}

func (p *DoverkaProvider) Interval() time.Duration {
	return time.Minute
}

func (p *DoverkaProvider) Fetch(ctx context.Context) ([]*types.ExchangeRate, error) {
	if p.apiKey == "" {
		return nil, errMissingAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/currencies", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("unable to create new GET request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to execute GET request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("invalid status code received: %d", resp.StatusCode)
	}

	list, err := decodeCurrencies(resp.Body)
	if err != nil {
		return nil, err
	}

	rate, err := pickRUBRate(list)
	if err != nil {
		return nil, err
	}

	fetchTime := time.Now().UTC()

	return []*types.ExchangeRate{
		{
			AsOf:      fetchTime,
			FetchedAt: fetchTime,
			Base:      currencies.USDT,
			Target:    currencies.RUB,
			RateType:  types.RateTypeMID,
			Source:    types.SourceDoverka,
			Rate:      roundRate(rate),
		},
	}, nil
}

// decodeCurrencies decodes the currency list, which may also
// be returned as a single object
func decodeCurrencies(body io.Reader) ([]doverkaCurrency, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("unable to decode currencies: %w", err)
	}

	var list []doverkaCurrency
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var single doverkaCurrency
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("unable to decode currencies: %w", err)
	}

	return []doverkaCurrency{single}, nil
}

// pickRUBRate selects the RUB per USDT price from the currency list
func pickRUBRate(list []doverkaCurrency) (float64, error) {
	for _, c := range list {
		symbol := strings.ToUpper(strings.TrimSpace(c.Symbol))
		if symbol != currencies.USD.String() && symbol != currencies.USDT.String() {
			continue
		}

		if float64(c.RateFromRUB) > rateFromRUBFloor {
			return float64(c.RateFromRUB), nil
		}

		if c.RateToRUB > 0 {
			return float64(c.RateToRUB), nil
		}
	}

	return 0, errNoUSDRate
}
