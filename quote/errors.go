package quote

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for requests that cannot produce a quote
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnavailable is returned when a remote collaborator failed
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

var (
	errNonPositiveAmount = fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	errInvalidRates      = fmt.Errorf("%w: rates must be positive", ErrInvalidInput)
	errInvalidCustomRate = fmt.Errorf("%w: custom RUB/USDT rate must be positive", ErrInvalidInput)
	errInvalidMargin     = fmt.Errorf("%w: margin must be within [0, 100)", ErrInvalidInput)
	errAmountTooSmall    = fmt.Errorf("%w: amount does not cover the fees", ErrInvalidInput)
	errUnsupportedRoute  = fmt.Errorf("%w: unsupported scenario and direction", ErrInvalidInput)
)

var (
	errNoTiers            = errors.New("policy has no commission tiers")
	errTierGap            = errors.New("commission tiers must be contiguous")
	errTierOrder          = errors.New("commission tiers must be ascending")
	errTierStart          = errors.New("first commission tier must start at 0")
	errTierUnbounded      = errors.New("last commission tier must be unbounded")
	errTierCommission     = errors.New("tier commission must be within [0, 1) and non-increasing")
	errInvalidFee         = errors.New("withdrawal fees must be non-negative, percent below 1")
	errInvalidBonus       = errors.New("bonus percent must be within [0, 1)")
	errInvalidAnchors     = errors.New("margin anchors must be non-empty, sorted by margin, commission within (-1, 1)")
	errInvalidBrokerRange = errors.New("default broker margin must be within [0, 100)")
)
