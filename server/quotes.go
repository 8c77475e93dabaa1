package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"
	"github.com/rs/xid"

	"github.com/sig-0/fxquote/metrics"
	"github.com/sig-0/fxquote/payment"
	"github.com/sig-0/fxquote/quote"
	"github.com/sig-0/fxquote/rates"
)

// maxBodySize caps request bodies
const maxBodySize = 64 << 10

// webhookSecretHeader carries the shared payment webhook secret
const webhookSecretHeader = "X-Webhook-Secret"

// notifyTimeout bounds a single operator notification
const notifyTimeout = 10 * time.Second

var (
	errInvalidBody         = errors.New("invalid request body")
	errQuoteNotFound       = errors.New("quote not found or expired")
	errPaymentsDisabled    = errors.New("payments are not configured")
	errUnableToIssueLink   = errors.New("unable to issue payment link")
	errUnableToCompute     = errors.New("unable to compute quote")
	errUpstreamUnavailable = errors.New("quote service unavailable")
	errUnauthorized        = errors.New("unauthorized")
)

// Rates serves the current spot rate snapshot.
// ?refresh=true drops the cached rates first
func (s *Server) Rates(w http.ResponseWriter, r *http.Request) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	if refresh {
		writeJSON(w, http.StatusOK, s.rates.Refresh(r.Context()))

		return
	}

	writeJSON(w, http.StatusOK, s.rates.Fetch(r.Context()))
}

// Tiers serves the active commission policy
func (s *Server) Tiers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.local.Policy())
}

// Calculate computes a bare quote with the local engine. Requests without
// rates are computed against the current snapshot.
// This is the endpoint remote calculators call
func (s *Server) Calculate(w http.ResponseWriter, r *http.Request) {
	var req quote.Request

	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	if req.Rates == (quote.Rates{}) {
		req.Rates = s.rates.Fetch(r.Context()).Rates
	}

	result, err := s.local.Calculate(r.Context(), &req)
	if err != nil {
		s.writeQuoteError(w, err)

		return
	}

	s.metrics.QuoteComputed(
		result.Method.String(),
		result.Scenario.String(),
		result.Direction.String(),
		s.local.Name(),
	)

	writeJSON(w, http.StatusOK, result.Rounded())
}

// CreateQuote computes a quote against the current spot rates, and keeps it
// payable until it expires
func (s *Server) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var body QuoteRequest

	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	req, err := body.toRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	var (
		snapshot rates.Snapshot
		result   *quote.Result
	)

	err = s.rates.WithRates(r.Context(), func(snap rates.Snapshot) error {
		req.Rates = snap.Rates

		res, calcErr := s.calculator.Calculate(r.Context(), req)
		if calcErr != nil {
			return calcErr
		}

		snapshot, result = snap, res

		return nil
	})
	if err != nil {
		s.writeQuoteError(w, err)

		return
	}

	now := time.Now().UTC()

	resp := &QuoteResponse{
		ID:        xid.New().String(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.quoteTTL),
		Rates:     snapshot,
		Result:    result.Rounded(),
	}

	s.quotes.Set(resp.ID, resp, cache.DefaultExpiration)

	s.logger.Debug(
		"quote issued",
		"id", resp.ID,
		"method", req.Method,
		"scenario", req.Scenario,
		"direction", req.Direction,
		"rates_source", snapshot.Source,
		"stale", snapshot.Stale,
	)

	writeJSON(w, http.StatusCreated, resp)
}

// GetQuote serves an issued quote, until it expires
func (s *Server) GetQuote(w http.ResponseWriter, r *http.Request) {
	resp, ok := s.quote(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, errQuoteNotFound)

		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreatePayment issues a payment link for an issued quote
func (s *Server) CreatePayment(w http.ResponseWriter, r *http.Request) {
	if s.payments == nil || !s.payments.Enabled() {
		writeError(w, http.StatusServiceUnavailable, errPaymentsDisabled)

		return
	}

	var body PaymentRequest

	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	issued, ok := s.quote(body.QuoteID)
	if !ok {
		writeError(w, http.StatusNotFound, errQuoteNotFound)

		return
	}

	req, err := payment.NewRequest(issued.ID, issued.Result, body.Comment)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	link, err := s.payments.Issue(r.Context(), req)
	if err != nil {
		s.logger.Error(
			"unable to issue payment link",
			"quote_id", issued.ID,
			"err", err,
		)

		s.metrics.PaymentIssued(metrics.OutcomeFailure)

		writeError(w, http.StatusBadGateway, errUnableToIssueLink)

		return
	}

	s.metrics.PaymentIssued(metrics.OutcomeSuccess)

	s.logger.Info(
		"payment link issued",
		"quote_id", issued.ID,
		"payment_id", link.ID,
		"amount_rub", req.AmountRUB,
	)

	writeJSON(w, http.StatusCreated, &PaymentResponse{
		QuoteID: issued.ID,
		Link:    link,
	})
}

// PaymentWebhook accepts partner payment notifications.
// Collected payments are forwarded to the operator
func (s *Server) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookSecret != "" {
		got := r.Header.Get(webhookSecretHeader)

		if subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, errUnauthorized)

			return
		}
	}

	hook, err := payment.ParseWebhook(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	s.logger.Info(
		"payment webhook received",
		"order_id", hook.OrderID,
		"status", hook.Status,
		"quote_id", hook.Metadata.QuoteID,
	)

	if hook.Paid() && s.notifier != nil {
		// the partner is acknowledged even if the operator cannot be reached
		ctx, cancelFn := context.WithTimeout(context.WithoutCancel(r.Context()), notifyTimeout)
		defer cancelFn()

		if err = s.notifier.Notify(ctx, hook.Message()); err != nil {
			s.logger.Error(
				"unable to notify operator",
				"order_id", hook.OrderID,
				"err", err,
			)

			s.metrics.Notified(metrics.OutcomeFailure)
		} else {
			s.metrics.Notified(metrics.OutcomeSuccess)
		}
	}

	writeJSON(w, http.StatusOK, &StatusResponse{Status: "ok"})
}

// quote fetches an issued quote from the cache
func (s *Server) quote(id string) (*QuoteResponse, bool) {
	if id == "" {
		return nil, false
	}

	raw, ok := s.quotes.Get(id)
	if !ok {
		return nil, false
	}

	resp, ok := raw.(*QuoteResponse)

	return resp, ok
}

// writeQuoteError maps engine and calculator errors to HTTP statuses
func (s *Server) writeQuoteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quote.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, quote.ErrUpstreamUnavailable):
		s.logger.Error(
			"every calculator failed",
			"err", err,
		)

		writeError(w, http.StatusBadGateway, errUpstreamUnavailable)
	default:
		s.logger.Error(
			"unable to compute quote",
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToCompute)
	}
}

// toRequest parses the quote request names
func (q *QuoteRequest) toRequest() (*quote.Request, error) {
	method, err := quote.ParseMethod(q.Method)
	if err != nil {
		return nil, err
	}

	scenario, err := quote.ParseScenario(q.Scenario)
	if err != nil {
		return nil, err
	}

	direction := quote.DirectionAmount
	if q.Direction != "" {
		if direction, err = quote.ParseDirection(q.Direction); err != nil {
			return nil, err
		}
	}

	return &quote.Request{
		CustomRubUsdt: q.CustomRubUsdt,
		Margin:        q.Margin,
		Method:        method,
		Scenario:      scenario,
		Direction:     direction,
		Amount:        q.Amount,
	}, nil
}

// decodeBody decodes a size-capped JSON request body
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return errInvalidBody
	}

	return nil
}
