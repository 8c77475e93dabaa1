//nolint:tagliatelle // partner API uses snake case
package payment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leekchan/accounting"

	"github.com/sig-0/fxquote/provider/currencies"
	"github.com/sig-0/fxquote/quote"
	"github.com/sig-0/fxquote/storage/types"
)

var (
	// ErrNotPayable is returned for quotes the partner cannot collect
	ErrNotPayable = errors.New("quote is not payable")

	errInvalidAmount = errors.New("invalid payment amount")
)

// Metadata is attached to an issued payment and echoed back by the webhook
type Metadata struct {
	QuoteID             string         `json:"quote_id"`
	DestinationCurrency types.Currency `json:"destination_currency"`
	Comment             string         `json:"comment,omitempty"`
	DestinationAmount   float64        `json:"destination_amount"`
	ProfitUSDT          float64        `json:"profit_usdt"`
	FinalRate           float64        `json:"final_rate"`
}

// Request is a single payment link request
type Request struct {
	Metadata    Metadata `json:"metadata"`
	Description string   `json:"description"`
	AmountRUB   float64  `json:"amount"`
}

// Link is an issued payment link
type Link struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status,omitempty"`
}

// NewRequest builds the payment request for a computed quote.
// Only trusted-partner quotes paid in RUB can be collected
func NewRequest(quoteID string, res *quote.Result, comment string) (*Request, error) {
	if res == nil {
		return nil, ErrNotPayable
	}

	if res.Method != quote.MethodTrustedPartner || res.SourceCurrency != currencies.RUB {
		return nil, fmt.Errorf(
			"%w: %s quotes paid in %s",
			ErrNotPayable,
			res.Method,
			res.SourceCurrency,
		)
	}

	if res.SourceAmount <= 0 {
		return nil, errInvalidAmount
	}

	md := Metadata{
		QuoteID:             quoteID,
		DestinationCurrency: res.DestinationCurrency,
		Comment:             strings.TrimSpace(comment),
		DestinationAmount:   res.DestinationAmount,
		FinalRate:           res.FinalRate,
	}

	if res.Profit != nil {
		md.ProfitUSDT = res.Profit.ProfitUSDT
	}

	return &Request{
		Metadata: md,
		Description: fmt.Sprintf(
			"Exchange %s RUB to %s %s",
			FormatAmount(res.SourceAmount, currencies.RUB),
			FormatAmount(res.DestinationAmount, res.DestinationCurrency),
			res.DestinationCurrency,
		),
		AmountRUB: res.SourceAmount,
	}, nil
}

// FormatAmount formats the amount with thousands separators,
// at the precision of the currency
func FormatAmount(amount float64, currency types.Currency) string {
	precision := 2
	if currency == currencies.USDT {
		precision = 4
	}

	ac := accounting.Accounting{
		Symbol:    "",
		Precision: precision,
		Thousand:  ",",
		Decimal:   ".",
	}

	return ac.FormatMoneyFloat64(amount)
}
