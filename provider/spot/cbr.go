package spot

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sig-0/fxquote/provider/currencies"
	"github.com/sig-0/fxquote/storage/types"
)

// CBRURL is the daily reference rate table of the Bank of Russia
const CBRURL = "https://www.cbr.ru/currency_base/daily/"

// cbrDateLayout is the date format used by the page date filter
const cbrDateLayout = "02.01.2006"

// CBRProvider is the Bank of Russia website scraping provider
type CBRProvider struct {
	client *http.Client
	url    string
}

// NewCBRProvider creates a new instance of the CBR website provider
func NewCBRProvider(url string, timeout time.Duration) *CBRProvider {
	if url == "" {
		url = CBRURL
	}

	return &CBRProvider{
		client: &http.Client{
			Timeout: timeout,
		},
		url: url,
	}
}

func (p *CBRProvider) Name() string {
	return "CBR"
}

func (p *CBRProvider) Interval() time.Duration {
	return time.Hour * 6 // the table is published once per business day
}

func (p *CBRProvider) Fetch(ctx context.Context) ([]*types.ExchangeRate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("unable to create new GET request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to execute GET request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("invalid status code received: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to construct query doc: %w", err)
	}

	var (
		fetchTime     = time.Now().UTC()
		effectiveDate = fetchTime
		wanted        = map[string]types.Currency{
			"USD": currencies.USD,
			"THB": currencies.THB,
		}

		exchangeRates = make([]*types.ExchangeRate, 0, len(wanted))
	)

	if parsed := parseCBRDate(doc); parsed != nil {
		effectiveDate = *parsed
	}

	doc.Find("table.data tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 5 {
			return // header row
		}

		code := strings.TrimSpace(cells.Eq(1).Text())

		base, ok := wanted[code]
		if !ok {
			return
		}

		nominal, err := strconv.Atoi(strings.TrimSpace(cells.Eq(2).Text()))
		if err != nil || nominal <= 0 {
			return
		}

		value, err := parseRUNumber(cells.Eq(4).Text())
		if err != nil || value <= 0 {
			return
		}

		exchangeRates = append(exchangeRates, &types.ExchangeRate{
			AsOf:      effectiveDate,
			FetchedAt: fetchTime,
			Base:      base,
			Target:    currencies.RUB,
			RateType:  types.RateTypeMID,
			Source:    types.SourceCBR,
			Rate:      roundRate(value / float64(nominal)),
		})
	})

	if len(exchangeRates) == 0 {
		return nil, fmt.Errorf("no reference rates found: %w", errInvalidRate)
	}

	return exchangeRates, nil
}

// parseCBRDate parses the effective date from the page date filter
func parseCBRDate(doc *goquery.Document) *time.Time {
	sel := doc.Find(".datepicker-filter_button").First()
	if sel.Length() == 0 {
		return nil
	}

	t, err := time.Parse(cbrDateLayout, strings.TrimSpace(sel.Text()))
	if err != nil {
		return nil
	}

	u := t.UTC()

	return &u
}
