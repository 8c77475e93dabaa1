// Package remote is a quote.Calculator backed by a remote quote service
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sig-0/fxquote/quote"
)

const (
	DefaultTimeout = 5 * time.Second

	// maxErrorBody caps how much of an error response is kept
	maxErrorBody = 512
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

// Client calls POST {baseURL}/calculate
type Client struct {
	client  *http.Client
	limiter *rate.Limiter

	baseURL string
}

// New creates a new remote quote client
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Inf, 0),
		baseURL: strings.TrimRight(baseURL, "/"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) Name() string {
	return "remote"
}

// Calculate requests a quote from the remote service. Any transport failure,
// non-2xx status or unusable body is reported as quote.ErrUpstreamUnavailable
func (c *Client) Calculate(ctx context.Context, req *quote.Request) (*quote.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limited, %w", quote.ErrUpstreamUnavailable, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("unable to encode request, %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/calculate",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create request, %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", quote.ErrUpstreamUnavailable, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return nil, fmt.Errorf(
			"%w: status %d: %s",
			quote.ErrUpstreamUnavailable,
			resp.StatusCode,
			strings.TrimSpace(string(msg)),
		)
	}

	var result quote.Result
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: unable to decode result, %w", quote.ErrUpstreamUnavailable, err)
	}

	if result.SourceAmount <= 0 || result.DestinationAmount <= 0 {
		return nil, fmt.Errorf("%w: empty result", quote.ErrUpstreamUnavailable)
	}

	return &result, nil
}
