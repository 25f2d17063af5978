package coinselect

import (
	"sort"

	"github.com/holiman/uint256"
	"github.com/runestake/settlement/model"
)

type candidate struct {
	utxo  model.Utxo
	value *uint256.Int
}

type strategyFunc func(cands []candidate, opts Options) []int

var strategies = []struct {
	strategy Strategy
	fn       strategyFunc
}{
	{StrategyTargetAware, targetAware},
	{StrategyBranchAndBound, branchAndBound},
	{StrategyKnapsack, knapsack},
	{StrategyLargestFirst, largestFirst},
	{StrategySmallestFirst, smallestFirst},
}

// Select picks outputs whose combined value reaches opts.Target. It returns nil
// when the candidates cannot reach the target, which callers treat as
// insufficient liquidity. outputs is not modified.
func Select(outputs []model.Utxo, opts Options) *Result {
	if opts.Target == nil || opts.Target.IsZero() || len(outputs) == 0 {
		return nil
	}

	opts = opts.withDefaults()

	cands := prepare(outputs, opts)
	if len(cands) == 0 {
		return nil
	}

	if opts.Strategy == StrategyBest {
		return bestOfAll(cands, opts)
	}

	for _, s := range strategies {
		if s.strategy == opts.Strategy {
			return run(s.fn, cands, opts)
		}
	}

	return nil
}

// prepare values the outputs, drops worthless ones and orders them by distance
// from the target, preferring confirmed outputs and then larger ones on ties.
func prepare(outputs []model.Utxo, opts Options) []candidate {
	cands := make([]candidate, 0, len(outputs))
	seen := make(map[string]struct{}, len(outputs))

	for _, u := range outputs {
		if _, dup := seen[u.Key()]; dup {
			continue
		}

		seen[u.Key()] = struct{}{}

		var value *uint256.Int
		if opts.Rune != nil {
			value = new(uint256.Int).Set(u.RuneAmount(*opts.Rune))
		} else {
			if u.Value <= 0 {
				continue
			}

			value = uint256.NewInt(uint64(u.Value))
		}

		if value.IsZero() {
			continue
		}

		cands = append(cands, candidate{utxo: u, value: value})
	}

	distance := func(v *uint256.Int) *uint256.Int {
		if v.Gt(opts.Target) {
			return new(uint256.Int).Sub(v, opts.Target)
		}

		return new(uint256.Int).Sub(opts.Target, v)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		di, dj := distance(cands[i].value), distance(cands[j].value)
		if !di.Eq(dj) {
			return di.Lt(dj)
		}

		hi, hj := cands[i].utxo.Height != nil, cands[j].utxo.Height != nil
		if hi != hj {
			return hi
		}

		return cands[i].value.Gt(cands[j].value)
	})

	return cands
}

func run(fn strategyFunc, cands []candidate, opts Options) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
		}
	}()

	return newResult(cands, fn(cands, opts), opts)
}

// bestOfAll runs every strategy and keeps the highest scoring result. Earlier
// strategies win ties.
func bestOfAll(cands []candidate, opts Options) *Result {
	var (
		best      *Result
		bestScore float64
	)

	for _, s := range strategies {
		result := run(s.fn, cands, opts)
		if result == nil {
			continue
		}

		if score := Score(result, opts); best == nil || score > bestScore {
			best = result
			bestScore = score
		}
	}

	return best
}

// sortedIndices returns candidate indices ordered by value.
func sortedIndices(cands []candidate, descending bool) []int {
	idx := make([]int, len(cands))
	for i := range idx {
		idx[i] = i
	}

	sort.SliceStable(idx, func(a, b int) bool {
		if descending {
			return cands[idx[a]].value.Gt(cands[idx[b]].value)
		}

		return cands[idx[a]].value.Lt(cands[idx[b]].value)
	})

	return idx
}
