package server

import (
	"time"

	"github.com/sig-0/fxquote/payment"
	"github.com/sig-0/fxquote/quote"
	"github.com/sig-0/fxquote/rates"
	"github.com/sig-0/fxquote/storage/types"
)

type SourcesResponse struct {
	Results []types.Source `json:"results"`
}

type CurrenciesResponse struct {
	Results []types.Currency `json:"results"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// QuoteRequest is a quote request against the current spot rates
type QuoteRequest struct {
	CustomRubUsdt *float64 `json:"custom_rub_usdt,omitempty"`
	Margin        *float64 `json:"margin,omitempty"`

	Method    string  `json:"method"`
	Scenario  string  `json:"scenario"`
	Direction string  `json:"direction"`
	Amount    float64 `json:"amount"`
}

// QuoteResponse is an issued quote, payable until it expires
type QuoteResponse struct {
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	Result    *quote.Result  `json:"result"`
	ID        string         `json:"id"`
	Rates     rates.Snapshot `json:"rates"`
}

// PaymentRequest requests a payment link for an issued quote
type PaymentRequest struct {
	QuoteID string `json:"quote_id"`
	Comment string `json:"comment"`
}

// PaymentResponse is an issued payment link
type PaymentResponse struct {
	Link    *payment.Link `json:"link"`
	QuoteID string        `json:"quote_id"`
}

// StatusResponse acknowledges a request with no other payload
type StatusResponse struct {
	Status string `json:"status"`
}
