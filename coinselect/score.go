package coinselect

import (
	"math"
)

const (
	weightEfficiency  = 0.35
	weightInputs      = 0.40
	weightChange      = 0.15
	weightSizeBalance = 0.10

	referenceInputs = 10
)

// Score rates a result in [0, 1]; higher is better.
func Score(r *Result, opts Options) float64 {
	if r == nil || len(r.Outputs) == 0 {
		return 0
	}

	efficiency := math.Min(1, r.Efficiency)

	n := float64(len(r.Outputs))
	inputScore := math.Exp(-5 * (n - 1) / referenceInputs)

	changeScore := math.Max(0, 1-ratio(r.Change, opts.Target))

	avgToTarget := ratio(r.Total, opts.Target) / n

	var sizeBalance float64

	switch {
	case avgToTarget < 0.5:
		sizeBalance = avgToTarget / 0.5
	case avgToTarget > 2:
		sizeBalance = math.Max(0, 1-(avgToTarget-2)/2)
	default:
		sizeBalance = 1
	}

	return efficiency*weightEfficiency +
		inputScore*weightInputs +
		changeScore*weightChange +
		sizeBalance*weightSizeBalance
}
