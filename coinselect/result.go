package coinselect

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/runestake/settlement/model"
)

// Result is a selection whose Total is never below the requested target.
type Result struct {
	Outputs    []model.Utxo
	Total      *uint256.Int
	InputCost  int64
	Change     *uint256.Int
	Efficiency float64
}

func newResult(cands []candidate, picked []int, opts Options) *Result {
	if len(picked) == 0 {
		return nil
	}

	total := new(uint256.Int)
	outputs := make([]model.Utxo, 0, len(picked))

	for _, i := range picked {
		total.Add(total, cands[i].value)
		outputs = append(outputs, cands[i].utxo)
	}

	if total.Lt(opts.Target) {
		return nil
	}

	return &Result{
		Outputs:    outputs,
		Total:      total,
		InputCost:  int64(len(picked)) * inputVSize * max(opts.FeeRate, 0),
		Change:     new(uint256.Int).Sub(total, opts.Target),
		Efficiency: ratio(opts.Target, total),
	}
}

// ratio returns a/b as a float, 0 when b is zero.
func ratio(a, b *uint256.Int) float64 {
	if b.IsZero() {
		return 0
	}

	r, _ := new(big.Float).Quo(new(big.Float).SetInt(a.ToBig()), new(big.Float).SetInt(b.ToBig())).Float64()

	return r
}

// mulFloat returns floor(a*f).
func mulFloat(a *uint256.Int, f float64) *uint256.Int {
	product := new(big.Float).Mul(new(big.Float).SetInt(a.ToBig()), big.NewFloat(f))
	i, _ := product.Int(nil)

	out, overflow := uint256.FromBig(i)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}

	return out
}
