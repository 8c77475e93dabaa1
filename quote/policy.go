package quote

import (
	"fmt"
	"math"
	"sort"
)

// Tier is a trusted-partner commission band, keyed by the RUB-equivalent
// transaction size. Bounds are half-open: [Min, Max). A zero Max is unbounded
type Tier struct {
	Name       string  `json:"name" toml:"name"`
	Min        float64 `json:"min" toml:"min"`
	Max        float64 `json:"max,omitempty" toml:"max"`
	Commission float64 `json:"usdt_thb_commission" toml:"usdt_thb_commission"`
}

// Unbounded returns true if the tier has no upper bound
func (t Tier) Unbounded() bool {
	return t.Max <= 0
}

// Contains returns true if the RUB-equivalent size falls inside the tier
func (t Tier) Contains(size float64) bool {
	if size < t.Min {
		return false
	}

	return t.Unbounded() || size < t.Max
}

// MarginAnchor maps an explicit trusted-partner margin override (percent)
// to the USDT/THB commission that yields it
type MarginAnchor struct {
	Margin     float64 `json:"margin" toml:"margin"`
	Commission float64 `json:"commission" toml:"commission"`
}

// Policy is the commission and margin configuration of both methods
type Policy struct {
	// Tiers are the trusted-partner commission bands, ascending
	Tiers []Tier `json:"tiers" toml:"tiers"`

	// MarginAnchors drive trusted-partner margin overrides, ascending by margin
	MarginAnchors []MarginAnchor `json:"margin_anchors" toml:"margin_anchors"`

	// WithdrawalPercent is the THB payout fee fraction (trusted-partner)
	WithdrawalPercent float64 `json:"withdrawal_percent" toml:"withdrawal_percent"`

	// WithdrawalFixed is the fixed THB payout fee (trusted-partner)
	WithdrawalFixed float64 `json:"withdrawal_fixed" toml:"withdrawal_fixed"`

	// USDTWithdrawalFixed is the fixed USDT payout fee (trusted-partner)
	USDTWithdrawalFixed float64 `json:"usdt_withdrawal_fixed" toml:"usdt_withdrawal_fixed"`

	// BonusPercent is the loyalty bonus credited on RUB payments (trusted-partner)
	BonusPercent float64 `json:"bonus_percent" toml:"bonus_percent"`

	// BrokerMargin is the broker margin (percent) used when a request has none
	BrokerMargin float64 `json:"broker_margin" toml:"broker_margin"`
}

// DefaultPolicy returns the standard commission policy
func DefaultPolicy() *Policy {
	return &Policy{
		Tiers: []Tier{
			{Name: "up-to-500k", Min: 0, Max: 500_000, Commission: 0.0272},
			{Name: "500k-1m", Min: 500_000, Max: 1_000_000, Commission: 0.0170},
			{Name: "from-1m", Min: 1_000_000, Commission: 0.0067},
		},
		MarginAnchors: []MarginAnchor{
			{Margin: 1.5, Commission: -0.007},
			{Margin: 2.0, Commission: -0.003},
			{Margin: 2.4, Commission: 0},
			{Margin: 3.0, Commission: 0.0067},
			{Margin: 3.5, Commission: 0.0120},
			{Margin: 4.0, Commission: 0.0170},
			{Margin: 4.5, Commission: 0.0225},
			{Margin: 5.0, Commission: 0.0272},
		},
		WithdrawalPercent:   0.0025,
		WithdrawalFixed:     20,
		USDTWithdrawalFixed: 1,
		BonusPercent:        0.024,
		BrokerMargin:        4.0,
	}
}

// Validate checks the policy invariants
func (p *Policy) Validate() error {
	if len(p.Tiers) == 0 {
		return errNoTiers
	}

	if p.Tiers[0].Min != 0 {
		return errTierStart
	}

	if !p.Tiers[len(p.Tiers)-1].Unbounded() {
		return errTierUnbounded
	}

	for i, tier := range p.Tiers {
		if tier.Commission < 0 || tier.Commission >= 1 {
			return fmt.Errorf("%w: tier %q", errTierCommission, tier.Name)
		}

		if i == len(p.Tiers)-1 {
			break
		}

		next := p.Tiers[i+1]

		if tier.Unbounded() || tier.Max <= tier.Min {
			return fmt.Errorf("%w: tier %q", errTierOrder, tier.Name)
		}

		if next.Min != tier.Max {
			return fmt.Errorf("%w: tier %q", errTierGap, tier.Name)
		}

		// commission is non-increasing in size
		if next.Commission > tier.Commission {
			return fmt.Errorf("%w: tier %q", errTierCommission, next.Name)
		}
	}

	if p.WithdrawalPercent < 0 || p.WithdrawalPercent >= 1 ||
		p.WithdrawalFixed < 0 || p.USDTWithdrawalFixed < 0 {
		return errInvalidFee
	}

	if p.BonusPercent < 0 || p.BonusPercent >= 1 {
		return errInvalidBonus
	}

	if len(p.MarginAnchors) == 0 {
		return errInvalidAnchors
	}

	if !sort.SliceIsSorted(p.MarginAnchors, func(i, j int) bool {
		return p.MarginAnchors[i].Margin < p.MarginAnchors[j].Margin
	}) {
		return errInvalidAnchors
	}

	for _, anchor := range p.MarginAnchors {
		if anchor.Commission <= -1 || anchor.Commission >= 1 {
			return errInvalidAnchors
		}
	}

	if p.BrokerMargin < 0 || p.BrokerMargin >= 100 {
		return errInvalidBrokerRange
	}

	return nil
}

// TierFor selects the tier whose bounds contain the RUB-equivalent size
func (p *Policy) TierFor(size float64) Tier {
	for _, tier := range p.Tiers {
		if tier.Contains(size) {
			return tier
		}
	}

	// sizes are never negative, the last tier is unbounded
	return p.Tiers[len(p.Tiers)-1]
}

// OverrideCommission maps an explicit margin (percent) to a USDT/THB commission.
// Margins between anchors are interpolated linearly, margins outside the
// anchor range are clamped to the nearest anchor
func (p *Policy) OverrideCommission(margin float64) float64 {
	anchors := p.MarginAnchors

	if margin <= anchors[0].Margin {
		return anchors[0].Commission
	}

	last := anchors[len(anchors)-1]
	if margin >= last.Margin {
		return last.Commission
	}

	for i := 0; i < len(anchors)-1; i++ {
		lo, hi := anchors[i], anchors[i+1]

		if margin < lo.Margin || margin > hi.Margin {
			continue
		}

		if hi.Margin == lo.Margin {
			return lo.Commission
		}

		weight := (margin - lo.Margin) / (hi.Margin - lo.Margin)

		return lo.Commission + (hi.Commission-lo.Commission)*weight
	}

	return last.Commission
}

// validMargin returns true if the margin percent is usable as a commission
func validMargin(margin float64) bool {
	return !math.IsNaN(margin) && !math.IsInf(margin, 0) && margin >= 0 && margin < 100
}
