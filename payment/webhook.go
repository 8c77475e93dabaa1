//nolint:tagliatelle // partner API uses snake case
package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/sig-0/fxquote/provider/currencies"
	"github.com/sig-0/fxquote/storage/types"
)

// StatusPaid is the webhook status of a collected payment
const StatusPaid = "PAID"

var errInvalidWebhook = errors.New("invalid webhook payload")

// Amount is a JSON number that may be encoded as a string
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("unable to parse amount %q: %w", raw, err)
	}

	*a = Amount(v)

	return nil
}

// webhookMetadata is the echoed payment metadata
type webhookMetadata struct {
	QuoteID             string         `json:"quote_id"`
	DestinationCurrency types.Currency `json:"destination_currency"`
	Comment             string         `json:"comment"`
	DestinationAmount   Amount         `json:"destination_amount"`
	THBAmount           Amount         `json:"thb_amount"`
	ProfitUSDT          Amount         `json:"profit_usdt"`
	FinalRate           Amount         `json:"final_rate"`
}

// webhookPayload is the raw partner notification
type webhookPayload struct {
	Metadata           *webhookMetadata `json:"metadata"`
	Status             string           `json:"status"`
	OrderTransactionID string           `json:"order_transaction_id"`
	OrderID            string           `json:"order_id"`
	CurrencySymbol     string           `json:"currency_symbol"`
	PayerName          string           `json:"payer_name"`
	Date               string           `json:"date"`
	AmountFrom         Amount           `json:"amount_from"`
}

// Webhook is a parsed payment status notification
type Webhook struct {
	Metadata  Metadata
	Status    string
	OrderID   string
	Currency  types.Currency
	PayerName string
	Date      string
	Amount    float64
}

// Paid returns true if the payment was collected
func (w *Webhook) Paid() bool {
	return strings.EqualFold(w.Status, StatusPaid)
}

// ParseWebhook decodes a partner payment notification
func ParseWebhook(r io.Reader) (*Webhook, error) {
	var p webhookPayload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidWebhook, err)
	}

	if strings.TrimSpace(p.Status) == "" {
		return nil, fmt.Errorf("%w: missing status", errInvalidWebhook)
	}

	w := &Webhook{
		Status:    strings.ToUpper(strings.TrimSpace(p.Status)),
		OrderID:   p.OrderTransactionID,
		Currency:  types.Currency(strings.ToUpper(p.CurrencySymbol)),
		PayerName: p.PayerName,
		Date:      p.Date,
		Amount:    float64(p.AmountFrom),
	}

	if w.OrderID == "" {
		w.OrderID = p.OrderID
	}

	if w.Currency == "" {
		w.Currency = currencies.RUB
	}

	if md := p.Metadata; md != nil {
		w.Metadata = Metadata{
			QuoteID:             md.QuoteID,
			DestinationCurrency: md.DestinationCurrency,
			Comment:             md.Comment,
			DestinationAmount:   float64(md.DestinationAmount),
			ProfitUSDT:          float64(md.ProfitUSDT),
			FinalRate:           float64(md.FinalRate),
		}

		if w.Metadata.DestinationAmount == 0 && md.THBAmount > 0 {
			w.Metadata.DestinationAmount = float64(md.THBAmount)
			w.Metadata.DestinationCurrency = currencies.THB
		}
	}

	return w, nil
}

// Message renders the operator notification for a collected payment (HTML)
func (w *Webhook) Message() string {
	var (
		sb   strings.Builder
		dash = "-"
	)

	payout := dash
	if w.Metadata.DestinationAmount > 0 {
		payout = fmt.Sprintf(
			"%s %s",
			FormatAmount(w.Metadata.DestinationAmount, w.Metadata.DestinationCurrency),
			html.EscapeString(w.Metadata.DestinationCurrency.String()),
		)
	}

	orNone := func(v string) string {
		if strings.TrimSpace(v) == "" {
			return dash
		}

		return html.EscapeString(v)
	}

	sb.WriteString("<b>Payment received</b>\n\n")
	fmt.Fprintf(&sb, "Amount: <b>%s %s</b>\n", FormatAmount(w.Amount, w.Currency), html.EscapeString(w.Currency.String()))
	fmt.Fprintf(&sb, "Pay out: <b>%s</b>\n", payout)
	fmt.Fprintf(&sb, "Profit: <b>%s USDT</b>\n", FormatAmount(w.Metadata.ProfitUSDT, currencies.USDT))
	fmt.Fprintf(&sb, "Payer: %s\n", orNone(w.PayerName))
	fmt.Fprintf(&sb, "Date: %s\n", orNone(w.Date))
	fmt.Fprintf(&sb, "Order: <code>%s</code>\n", orNone(w.OrderID))

	if w.Metadata.QuoteID != "" {
		fmt.Fprintf(&sb, "Quote: <code>%s</code>\n", html.EscapeString(w.Metadata.QuoteID))
	}

	fmt.Fprintf(&sb, "Comment: %s", orNone(w.Metadata.Comment))

	return sb.String()
}
