// Package accounting reconstructs per address staking yield from the signed
// deposit and withdrawal history and the global exchange rate curve. Lots are
// never persisted; they are rebuilt FIFO on every call.
package accounting

import (
	"github.com/runestake/settlement/model"
	"github.com/shopspring/decimal"
)

// Value is one ledger movement. Positive amounts are deposits, negative amounts
// withdrawals.
type Value struct {
	Block  uint32
	Amount decimal.Decimal
}

type Earnings struct {
	Realized    decimal.Decimal
	Unrealized  decimal.Decimal
	Total       decimal.Decimal
	Invested    decimal.Decimal
	Percentage  decimal.Decimal
	CurrentRate decimal.Decimal
	OpenLots    []Lot
}

var hundred = decimal.NewFromInt(100)

// Compute matches withdrawals against deposits oldest first. Every value needs
// a rate sample at or before its block, otherwise ErrNoRateFound is returned.
func Compute(values []Value, rates []model.RateSample) (*Earnings, error) {
	var (
		lots     lotQueue
		realized = decimal.Zero
		invested = decimal.Zero
	)

	for _, v := range values {
		sample, err := RateAt(rates, v.Block)
		if err != nil {
			return nil, err
		}

		switch v.Amount.Sign() {
		case 1:
			lots.PushBack(Lot{Value: v.Amount, Block: v.Block, Rate: sample.Rate})
			invested = invested.Add(v.Amount.Mul(sample.Rate))

		case -1:
			remaining := v.Amount.Neg()

			for remaining.IsPositive() && lots.Len() > 0 {
				lot := lots.Front()
				consumed := decimal.Min(remaining, lot.Value)

				realized = realized.Add(consumed.Mul(sample.Rate.Sub(lot.Rate)))
				lot.Value = lot.Value.Sub(consumed)
				remaining = remaining.Sub(consumed)

				if !lot.Value.IsPositive() {
					lots.PopFront()
				}
			}
		}
	}

	earnings := &Earnings{
		Realized:   realized,
		Unrealized: decimal.Zero,
		Invested:   invested,
		Percentage: decimal.Zero,
		OpenLots:   lots.Slice(),
	}

	if len(rates) > 0 {
		earnings.CurrentRate = rates[len(rates)-1].Rate
	}

	open := decimal.Zero

	for _, lot := range earnings.OpenLots {
		earnings.Unrealized = earnings.Unrealized.Add(lot.Value.Mul(earnings.CurrentRate.Sub(lot.Rate)))
		open = open.Add(lot.Value)
	}

	earnings.Total = earnings.Realized.Add(earnings.Unrealized)

	if open.IsPositive() {
		earnings.Percentage = earnings.Total.Mul(hundred).Div(open)
	}

	return earnings, nil
}
