package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultTimeout = 10 * time.Second

	// maxErrorBody caps how much of an error response is kept
	maxErrorBody = 512
)

var (
	errMissingAPIKey  = errors.New("missing partner API key")
	errUnexpectedCode = errors.New("unexpected status code")
	errEmptyLink      = errors.New("partner returned no payment link")
)

type Option func(c *Client)

// WithHTTPClient specifies the HTTP client used for requests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithRateLimit caps outgoing requests at rps, with the given burst
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// Client issues payment links through the partner API (POST /v1/payments)
type Client struct {
	client  *http.Client
	limiter *rate.Limiter

	baseURL string
	apiKey  string
}

// New creates a new partner payment client
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Enabled returns true if the client has credentials configured
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != "" && c.baseURL != ""
}

// issueRequest is the partner API request body
type issueRequest struct {
	Metadata    Metadata `json:"metadata"`
	Currency    string   `json:"currency"`
	Description string   `json:"description"`
	Amount      float64  `json:"amount"`
}

// issueResponse is the partner API response body
type issueResponse struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	PaymentURL string `json:"payment_url"`
	Status     string `json:"status"`
}

// Issue creates a new payment link for the request
func (c *Client) Issue(ctx context.Context, req *Request) (*Link, error) {
	if !c.Enabled() {
		return nil, errMissingAPIKey
	}

	if req == nil || req.AmountRUB <= 0 {
		return nil, errInvalidAmount
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("unable to issue payment, %w", err)
	}

	body, err := json.Marshal(issueRequest{
		Metadata:    req.Metadata,
		Currency:    "RUB",
		Description: req.Description,
		Amount:      req.AmountRUB,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to encode payment request, %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/v1/payments",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create request, %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("unable to issue payment, %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return nil, fmt.Errorf(
			"%w: %d %s",
			errUnexpectedCode,
			resp.StatusCode,
			strings.TrimSpace(string(msg)),
		)
	}

	var res issueResponse
	if err = json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("unable to decode payment response, %w", err)
	}

	link := &Link{
		ID:     res.ID,
		URL:    res.URL,
		Status: res.Status,
	}

	if link.URL == "" {
		link.URL = res.PaymentURL
	}

	if link.URL == "" {
		return nil, errEmptyLink
	}

	return link, nil
}
