package quote

import (
	"fmt"
	"math"

	"github.com/sig-0/fxquote/provider/currencies"
	"github.com/sig-0/fxquote/storage/types"
)

const (
	levelBroker         = "broker-margin"
	levelMarginOverride = "margin-override"
)

// route is a single scenario and direction pair
type route struct {
	scenario  Scenario
	direction Direction
}

// chain solves a conversion chain from the request amount
type chain func(p params, amount float64) flow

// chains is the dispatch table over every scenario and direction pair
var chains = map[route]chain{
	{ScenarioRUBToTHB, DirectionAmount}:  rubToTHBAmount,
	{ScenarioRUBToTHB, DirectionTarget}:  rubToTHBTarget,
	{ScenarioUSDTToTHB, DirectionAmount}: usdtToTHBAmount,
	{ScenarioUSDTToTHB, DirectionTarget}: usdtToTHBTarget,
	{ScenarioTHBToUSDT, DirectionAmount}: thbToUSDTAmount,
	{ScenarioTHBToUSDT, DirectionTarget}: thbToUSDTTarget,
	{ScenarioRUBToUSDT, DirectionAmount}: rubToUSDTAmount,
	{ScenarioRUBToUSDT, DirectionTarget}: rubToUSDTTarget,
}

// params are the resolved rates, commission and fees of a single quote
type params struct {
	usdtThb float64
	rubUsdt float64

	commission float64

	thbPercent float64
	thbFixed   float64
	usdtFixed  float64
	bonus      float64
}

// flow is the raw outcome of a conversion chain
type flow struct {
	withdrawal *Withdrawal
	legs       []Leg

	source      float64
	destination float64

	bonusUSDT    float64
	incomingUSDT float64
	outgoingUSDT float64
}

// Compute derives a full quote for the request under the given policy.
// A nil policy is the default policy
func Compute(req *Request, policy *Policy) (*Result, error) {
	if policy == nil {
		policy = DefaultPolicy()
	}

	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy, %w", err)
	}

	req, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	solve, ok := chains[route{req.Scenario, req.Direction}]
	if !ok {
		return nil, errUnsupportedRoute
	}

	var (
		p      params
		level  string
		margin float64
	)

	switch req.Method {
	case MethodBroker:
		margin = policy.BrokerMargin
		if req.Margin != nil {
			margin = *req.Margin
		}

		p = params{
			usdtThb:    req.Rates.UsdtThb,
			rubUsdt:    req.Rates.RubUsdt,
			commission: margin / 100,
		}

		if req.CustomRubUsdt != nil {
			p.rubUsdt = *req.CustomRubUsdt
		}

		level = levelBroker
	default:
		p = params{
			usdtThb:    req.Rates.UsdtThb,
			rubUsdt:    req.Rates.RubUsdt,
			thbPercent: policy.WithdrawalPercent,
			thbFixed:   policy.WithdrawalFixed,
			usdtFixed:  policy.USDTWithdrawalFixed,
			bonus:      policy.BonusPercent,
		}

		if req.Margin != nil {
			p.commission = policy.OverrideCommission(*req.Margin)
			level = levelMarginOverride

			break
		}

		tier := selectTier(req, policy, p, solve)

		p.commission = tier.Commission
		level = tier.Name
	}

	f := solve(p, req.Amount)

	if f.source <= 0 || f.destination <= 0 ||
		math.IsInf(f.source, 0) || math.IsInf(f.destination, 0) {
		return nil, errAmountTooSmall
	}

	if f.withdrawal != nil && f.withdrawal.Net <= 0 {
		return nil, errAmountTooSmall
	}

	result := &Result{
		Method:              req.Method,
		Scenario:            req.Scenario,
		Direction:           req.Direction,
		Level:               level,
		SourceCurrency:      req.Scenario.Source(),
		DestinationCurrency: req.Scenario.Destination(),
		Legs:                f.legs,
		SourceAmount:        f.source,
		DestinationAmount:   f.destination,
		FinalRate:           f.source / f.destination,
	}

	if crossesTHB(req.Scenario) {
		result.Commission = p.commission
	}

	if req.Method == MethodBroker {
		percent := 0.0
		if crossesTHB(req.Scenario) {
			percent = margin
		}

		result.Profit = &Profit{ProfitPercent: percent}

		return result, nil
	}

	result.Withdrawal = f.withdrawal

	profit := &Profit{
		BonusUSDT:    f.bonusUSDT,
		IncomingUSDT: f.incomingUSDT + f.bonusUSDT,
		OutgoingUSDT: f.outgoingUSDT,
	}

	profit.ProfitUSDT = profit.IncomingUSDT - profit.OutgoingUSDT
	profit.ProfitPercent = profit.ProfitUSDT / profit.OutgoingUSDT * 100

	if profit.ProfitUSDT < 0 {
		result.Warnings = append(result.Warnings, WarningNegativeProfit)
	}

	result.Profit = profit

	return result, nil
}

// normalizeRequest checks the request is computable and returns a copy
// carrying the canonical method, scenario and direction
func normalizeRequest(in *Request) (*Request, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidInput)
	}

	req := *in

	var err error

	if req.Method, err = ParseMethod(string(in.Method)); err != nil {
		return nil, err
	}

	if req.Scenario, err = ParseScenario(string(in.Scenario)); err != nil {
		return nil, err
	}

	if req.Direction, err = ParseDirection(string(in.Direction)); err != nil {
		return nil, err
	}

	if !positive(req.Amount) {
		return nil, errNonPositiveAmount
	}

	if !positive(req.Rates.UsdtThb) || !positive(req.Rates.RubUsdt) {
		return nil, errInvalidRates
	}

	if req.CustomRubUsdt != nil && !positive(*req.CustomRubUsdt) {
		return nil, errInvalidCustomRate
	}

	if req.Margin != nil && !validMargin(*req.Margin) {
		return nil, errInvalidMargin
	}

	return &req, nil
}

// selectTier picks the commission tier by the RUB-equivalent size of the
// source leg. Target requests are solved against every tier in ascending
// order, and the first tier containing its own solution is chosen. When the
// target falls in the output gap above a tier boundary, no tier is
// self-consistent and the lower-commission tier is chosen
func selectTier(req *Request, policy *Policy, p params, solve chain) Tier {
	if req.Direction == DirectionAmount {
		return policy.TierFor(sourceSize(req.Scenario.Source(), req.Amount, p))
	}

	for _, tier := range policy.Tiers {
		p.commission = tier.Commission

		size := sourceSize(req.Scenario.Source(), solve(p, req.Amount).source, p)

		if size < tier.Min {
			// the previous tier overshot its bound
			return tier
		}

		if tier.Contains(size) {
			return tier
		}
	}

	return policy.Tiers[len(policy.Tiers)-1]
}

// sourceSize converts a source amount to its RUB equivalent at spot rates
func sourceSize(source types.Currency, amount float64, p params) float64 {
	switch source {
	case currencies.USDT:
		return amount * p.rubUsdt
	case currencies.THB:
		return amount / p.usdtThb * p.rubUsdt
	default:
		return amount
	}
}

// crossesTHB returns true if the scenario has a USDT <-> THB hop
func crossesTHB(s Scenario) bool {
	return s.Source() == currencies.THB || s.Destination() == currencies.THB
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// sellRate is the USDT -> THB rate after commission
func (p params) sellRate() float64 {
	return p.usdtThb * (1 - p.commission)
}

// buyRate is the THB -> USDT rate after commission
func (p params) buyRate() float64 {
	return p.usdtThb * (1 + p.commission)
}

// thbPayout applies the THB withdrawal fees to a gross payout
func (p params) thbPayout(gross float64) *Withdrawal {
	percentFee := gross * p.thbPercent
	fee := percentFee + p.thbFixed

	return &Withdrawal{
		Currency:   currencies.THB,
		Gross:      gross,
		PercentFee: percentFee,
		FixedFee:   p.thbFixed,
		Fee:        fee,
		Net:        gross - fee,
	}
}

// thbGrossFor inverts thbPayout
func (p params) thbGrossFor(net float64) float64 {
	return (net + p.thbFixed) / (1 - p.thbPercent)
}

// usdtPayout applies the USDT withdrawal fee to a gross payout
func (p params) usdtPayout(gross float64) *Withdrawal {
	return &Withdrawal{
		Currency: currencies.USDT,
		Gross:    gross,
		FixedFee: p.usdtFixed,
		Fee:      p.usdtFixed,
		Net:      gross - p.usdtFixed,
	}
}

func (p params) rubLeg(rub, usdt float64) Leg {
	return Leg{
		From:        currencies.RUB,
		To:          currencies.USDT,
		AmountIn:    rub,
		AmountOut:   usdt,
		SpotRate:    p.rubUsdt,
		AppliedRate: p.rubUsdt,
	}
}

func (p params) sellLeg(usdt, thb float64) Leg {
	return Leg{
		From:        currencies.USDT,
		To:          currencies.THB,
		AmountIn:    usdt,
		AmountOut:   thb,
		SpotRate:    p.usdtThb,
		Commission:  p.commission,
		AppliedRate: p.sellRate(),
	}
}

func (p params) buyLeg(thb, usdt float64) Leg {
	return Leg{
		From:        currencies.THB,
		To:          currencies.USDT,
		AmountIn:    thb,
		AmountOut:   usdt,
		SpotRate:    p.usdtThb,
		Commission:  p.commission,
		AppliedRate: p.buyRate(),
	}
}

func rubToTHBAmount(p params, rub float64) flow {
	usdt := rub / p.rubUsdt
	gross := usdt * p.sellRate()
	w := p.thbPayout(gross)

	return flow{
		withdrawal:   w,
		legs:         []Leg{p.rubLeg(rub, usdt), p.sellLeg(usdt, gross)},
		source:       rub,
		destination:  w.Net,
		bonusUSDT:    usdt * p.bonus,
		incomingUSDT: usdt,
		outgoingUSDT: gross / p.usdtThb,
	}
}

func rubToTHBTarget(p params, thb float64) flow {
	gross := p.thbGrossFor(thb)
	usdt := gross / p.sellRate()
	rub := usdt * p.rubUsdt

	return flow{
		withdrawal:   p.thbPayout(gross),
		legs:         []Leg{p.rubLeg(rub, usdt), p.sellLeg(usdt, gross)},
		source:       rub,
		destination:  thb,
		bonusUSDT:    usdt * p.bonus,
		incomingUSDT: usdt,
		outgoingUSDT: gross / p.usdtThb,
	}
}

func usdtToTHBAmount(p params, usdt float64) flow {
	gross := usdt * p.sellRate()
	w := p.thbPayout(gross)

	return flow{
		withdrawal:   w,
		legs:         []Leg{p.sellLeg(usdt, gross)},
		source:       usdt,
		destination:  w.Net,
		incomingUSDT: usdt,
		outgoingUSDT: gross / p.usdtThb,
	}
}

func usdtToTHBTarget(p params, thb float64) flow {
	gross := p.thbGrossFor(thb)
	usdt := gross / p.sellRate()

	return flow{
		withdrawal:   p.thbPayout(gross),
		legs:         []Leg{p.sellLeg(usdt, gross)},
		source:       usdt,
		destination:  thb,
		incomingUSDT: usdt,
		outgoingUSDT: gross / p.usdtThb,
	}
}

func thbToUSDTAmount(p params, thb float64) flow {
	gross := thb / p.buyRate()
	w := p.usdtPayout(gross)

	return flow{
		withdrawal:   w,
		legs:         []Leg{p.buyLeg(thb, gross)},
		source:       thb,
		destination:  w.Net,
		incomingUSDT: thb / p.usdtThb,
		outgoingUSDT: gross,
	}
}

func thbToUSDTTarget(p params, usdt float64) flow {
	gross := usdt + p.usdtFixed
	thb := gross * p.buyRate()

	return flow{
		withdrawal:   p.usdtPayout(gross),
		legs:         []Leg{p.buyLeg(thb, gross)},
		source:       thb,
		destination:  usdt,
		incomingUSDT: thb / p.usdtThb,
		outgoingUSDT: gross,
	}
}

func rubToUSDTAmount(p params, rub float64) flow {
	gross := rub / p.rubUsdt
	w := p.usdtPayout(gross)

	return flow{
		withdrawal:   w,
		legs:         []Leg{p.rubLeg(rub, gross)},
		source:       rub,
		destination:  w.Net,
		bonusUSDT:    gross * p.bonus,
		incomingUSDT: gross,
		outgoingUSDT: gross,
	}
}

func rubToUSDTTarget(p params, usdt float64) flow {
	gross := usdt + p.usdtFixed
	rub := gross * p.rubUsdt

	return flow{
		withdrawal:   p.usdtPayout(gross),
		legs:         []Leg{p.rubLeg(rub, gross)},
		source:       rub,
		destination:  usdt,
		bonusUSDT:    gross * p.bonus,
		incomingUSDT: gross,
		outgoingUSDT: gross,
	}
}
