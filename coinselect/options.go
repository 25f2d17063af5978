package coinselect

import (
	"strings"

	"github.com/holiman/uint256"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/runes"
)

type Strategy int

const (
	StrategyBest Strategy = iota
	StrategyTargetAware
	StrategyBranchAndBound
	StrategyKnapsack
	StrategyLargestFirst
	StrategySmallestFirst
)

var strategyNames = map[Strategy]string{
	StrategyBest:           "best",
	StrategyTargetAware:    "target-aware",
	StrategyBranchAndBound: "branch-and-bound",
	StrategyKnapsack:       "knapsack",
	StrategyLargestFirst:   "largest-first",
	StrategySmallestFirst:  "smallest-first",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}

	return "unknown"
}

func ParseStrategy(s string) (Strategy, error) {
	for strategy, name := range strategyNames {
		if strings.EqualFold(name, s) {
			return strategy, nil
		}
	}

	return StrategyBest, errors.NewConfigurationError("unknown selection strategy %q", s)
}

const (
	DefaultMaxInputs = 10
	DefaultTolerance = 2.0

	// virtual sizes of a taproot key path input and a taproot output
	inputVSize        = 58
	changeOutputVSize = 43
)

// Options controls a selection. When Rune is set, candidates are valued by
// their balance of that rune, otherwise by their satoshi value.
type Options struct {
	Target       *uint256.Int
	Rune         *runes.RuneID
	FeeRate      int64
	Strategy     Strategy
	MaxInputs    int
	CostOfChange *uint256.Int
	Tolerance    float64
}

func (o Options) withDefaults() Options {
	if o.MaxInputs <= 0 {
		o.MaxInputs = DefaultMaxInputs
	}

	if o.Tolerance < 1 {
		o.Tolerance = DefaultTolerance
	}

	if o.CostOfChange == nil {
		if o.Rune != nil {
			// rune change rides on an output that exists anyway
			o.CostOfChange = new(uint256.Int)
		} else {
			o.CostOfChange = uint256.NewInt(uint64((changeOutputVSize + inputVSize) * max(o.FeeRate, 0)))
		}
	}

	return o
}
