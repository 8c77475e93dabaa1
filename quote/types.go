package quote

import (
	"fmt"
	"strings"

	"github.com/sig-0/fxquote/provider/currencies"
	"github.com/sig-0/fxquote/storage/types"
)

// Method is the business channel a quote is computed for
type Method string

const (
	MethodTrustedPartner Method = "trusted-partner"
	MethodBroker         Method = "broker"
)

func (m Method) String() string {
	return string(m)
}

// ParseMethod parses the method name. The legacy partner name
// is accepted as an alias of the trusted-partner method
func ParseMethod(v string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "trusted-partner", "trusted_partner", "doverka":
		return MethodTrustedPartner, nil
	case "broker":
		return MethodBroker, nil
	default:
		return "", fmt.Errorf("%w: unknown method %q", ErrInvalidInput, v)
	}
}

// Scenario is the declared source -> destination conversion
type Scenario string

const (
	ScenarioRUBToTHB  Scenario = "rub-to-thb"
	ScenarioTHBToUSDT Scenario = "thb-to-usdt"
	ScenarioUSDTToTHB Scenario = "usdt-to-thb"
	ScenarioRUBToUSDT Scenario = "rub-to-usdt"
)

// Scenarios lists every supported scenario
var Scenarios = []Scenario{
	ScenarioRUBToTHB,
	ScenarioTHBToUSDT,
	ScenarioUSDTToTHB,
	ScenarioRUBToUSDT,
}

func (s Scenario) String() string {
	return string(s)
}

// Source returns the currency the client pays in
func (s Scenario) Source() types.Currency {
	switch s {
	case ScenarioRUBToTHB, ScenarioRUBToUSDT:
		return currencies.RUB
	case ScenarioTHBToUSDT:
		return currencies.THB
	case ScenarioUSDTToTHB:
		return currencies.USDT
	default:
		return ""
	}
}

// Destination returns the currency the client receives
func (s Scenario) Destination() types.Currency {
	switch s {
	case ScenarioRUBToTHB, ScenarioUSDTToTHB:
		return currencies.THB
	case ScenarioTHBToUSDT, ScenarioRUBToUSDT:
		return currencies.USDT
	default:
		return ""
	}
}

// ParseScenario parses the scenario name
func ParseScenario(v string) (Scenario, error) {
	s := Scenario(strings.ToLower(strings.TrimSpace(v)))

	for _, known := range Scenarios {
		if s == known {
			return s, nil
		}
	}

	return "", fmt.Errorf("%w: unknown scenario %q", ErrInvalidInput, v)
}

// Direction tells which leg the request amount belongs to
type Direction string

const (
	// DirectionAmount means the amount is what the client pays (amount-in)
	DirectionAmount Direction = "amount"

	// DirectionTarget means the amount is what the client wants to receive (target-out)
	DirectionTarget Direction = "target"
)

func (d Direction) String() string {
	return string(d)
}

// ParseDirection parses the direction name
func ParseDirection(v string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(v))) {
	case DirectionAmount:
		return DirectionAmount, nil
	case DirectionTarget:
		return DirectionTarget, nil
	default:
		return "", fmt.Errorf("%w: unknown direction %q", ErrInvalidInput, v)
	}
}

// Rates is the pair of spot rates every quote is computed against.
// Both rates are quoted in units of the fiat currency per 1 USDT
type Rates struct {
	UsdtThb float64 `json:"usdt_thb"`
	RubUsdt float64 `json:"rub_usdt"`
}

// Request is a single quote request
type Request struct {
	// CustomRubUsdt overrides Rates.RubUsdt for broker quotes
	CustomRubUsdt *float64 `json:"custom_rub_usdt,omitempty"`

	// Margin is a percentage (4.0 == 4%). It is the broker margin, or an
	// explicit override of the tier commission for trusted-partner quotes
	Margin *float64 `json:"margin,omitempty"`

	Method    Method    `json:"method"`
	Scenario  Scenario  `json:"scenario"`
	Direction Direction `json:"direction"`
	Rates     Rates     `json:"rates"`
	Amount    float64   `json:"amount"`
}

// Leg is a single currency-pair conversion step
type Leg struct {
	From types.Currency `json:"from"`
	To   types.Currency `json:"to"`

	AmountIn  float64 `json:"amount_in"`
	AmountOut float64 `json:"amount_out"`

	// SpotRate is the unmodified rate, fiat units per 1 USDT
	SpotRate float64 `json:"spot_rate"`

	// Commission is the fraction applied on this leg (0.0272 == 2.72%)
	Commission float64 `json:"commission"`

	// AppliedRate is the rate the conversion was executed at
	AppliedRate float64 `json:"applied_rate"`
}

// Withdrawal is the payout fee breakdown
type Withdrawal struct {
	Currency   types.Currency `json:"currency"`
	Gross      float64        `json:"gross"`
	PercentFee float64        `json:"percent_fee"`
	FixedFee   float64        `json:"fixed_fee"`
	Fee        float64        `json:"fee"`
	Net        float64        `json:"net"`
}

// Profit is the profitability decomposition, in USDT
type Profit struct {
	BonusUSDT     float64 `json:"bonus_usdt"`
	IncomingUSDT  float64 `json:"incoming_usdt"`
	OutgoingUSDT  float64 `json:"outgoing_usdt"`
	ProfitUSDT    float64 `json:"profit_usdt"`
	ProfitPercent float64 `json:"profit_percent"`
}

// Warning is a non-fatal condition detected while computing a quote
type Warning string

const (
	// WarningNegativeProfit means the policy is misconfigured for this quote
	WarningNegativeProfit Warning = "negative_profit"
)

// Result is a fully derived quote
type Result struct {
	Withdrawal *Withdrawal `json:"withdrawal,omitempty"`
	Profit     *Profit     `json:"profit,omitempty"`

	Method    Method    `json:"method"`
	Scenario  Scenario  `json:"scenario"`
	Direction Direction `json:"direction"`

	// Level names the tier or margin policy the commission came from
	Level string `json:"level"`

	SourceCurrency      types.Currency `json:"source_currency"`
	DestinationCurrency types.Currency `json:"destination_currency"`

	Legs     []Leg     `json:"legs"`
	Warnings []Warning `json:"warnings,omitempty"`

	// SourceAmount is what the client pays
	SourceAmount float64 `json:"source_amount"`

	// DestinationAmount is what the client receives, net of all fees
	DestinationAmount float64 `json:"destination_amount"`

	// FinalRate is source currency units per 1 unit of destination currency
	FinalRate float64 `json:"final_rate"`

	// Commission is the fraction applied on the USDT <-> THB hop, if any
	Commission float64 `json:"commission"`
}
