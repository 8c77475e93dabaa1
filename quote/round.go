package quote

import (
	"github.com/shopspring/decimal"

	"github.com/sig-0/fxquote/provider/currencies"
	"github.com/sig-0/fxquote/storage/types"
)

const (
	amountPlaces  = 2
	usdtPlaces    = 4
	ratePlaces    = 4
	finalPlaces   = 6
	percentPlaces = 4
)

// round rounds half away from zero at the given decimal places
func round(v float64, places int32) float64 {
	rounded, _ := decimal.NewFromFloat(v).Round(places).Float64()

	return rounded
}

// amountPlacesFor returns the presentation precision of an amount in the currency
func amountPlacesFor(c types.Currency) int32 {
	if c == currencies.USDT {
		return usdtPlaces
	}

	return amountPlaces
}

// Rounded returns a copy of the result rounded for presentation.
// Fiat amounts keep 2 places, USDT amounts and rates 4, the final rate 6.
// Rounding is never applied inside the computation itself
func (r *Result) Rounded() *Result {
	out := *r

	out.SourceAmount = round(r.SourceAmount, amountPlacesFor(r.SourceCurrency))
	out.DestinationAmount = round(r.DestinationAmount, amountPlacesFor(r.DestinationCurrency))
	out.FinalRate = round(r.FinalRate, finalPlaces)
	out.Commission = round(r.Commission, finalPlaces)

	out.Legs = make([]Leg, len(r.Legs))
	for i, leg := range r.Legs {
		out.Legs[i] = Leg{
			From:        leg.From,
			To:          leg.To,
			AmountIn:    round(leg.AmountIn, amountPlacesFor(leg.From)),
			AmountOut:   round(leg.AmountOut, amountPlacesFor(leg.To)),
			SpotRate:    round(leg.SpotRate, ratePlaces),
			Commission:  round(leg.Commission, finalPlaces),
			AppliedRate: round(leg.AppliedRate, ratePlaces),
		}
	}

	if r.Warnings != nil {
		out.Warnings = append([]Warning(nil), r.Warnings...)
	}

	if r.Withdrawal != nil {
		places := amountPlacesFor(r.Withdrawal.Currency)

		out.Withdrawal = &Withdrawal{
			Currency:   r.Withdrawal.Currency,
			Gross:      round(r.Withdrawal.Gross, places),
			PercentFee: round(r.Withdrawal.PercentFee, places),
			FixedFee:   round(r.Withdrawal.FixedFee, places),
			Fee:        round(r.Withdrawal.Fee, places),
			Net:        round(r.Withdrawal.Net, places),
		}
	}

	if r.Profit != nil {
		out.Profit = &Profit{
			BonusUSDT:     round(r.Profit.BonusUSDT, usdtPlaces),
			IncomingUSDT:  round(r.Profit.IncomingUSDT, usdtPlaces),
			OutgoingUSDT:  round(r.Profit.OutgoingUSDT, usdtPlaces),
			ProfitUSDT:    round(r.Profit.ProfitUSDT, usdtPlaces),
			ProfitPercent: round(r.Profit.ProfitPercent, percentPlaces),
		}
	}

	return &out
}
