package coinselect

import (
	"math"

	"github.com/holiman/uint256"
)

// targetAware prefers one output that covers the target within the tolerance,
// then greedily combines reasonably sized outputs topped up with small ones,
// and finally falls back to largest-first.
func targetAware(cands []candidate, opts Options) []int {
	upper := mulFloat(opts.Target, opts.Tolerance)

	// cands are ordered by distance, so the first hit is the closest
	for i, c := range cands {
		if !c.value.Lt(opts.Target) && !c.value.Gt(upper) {
			return []int{i}
		}
	}

	threshold := new(uint256.Int).Div(opts.Target, uint256.NewInt(uint64(2*opts.MaxInputs)))

	var reasonable, small []int

	for _, i := range sortedIndices(cands, true) {
		if cands[i].value.Lt(threshold) {
			small = append(small, i)
		} else {
			reasonable = append(reasonable, i)
		}
	}

	total := new(uint256.Int)
	picked := make([]int, 0, opts.MaxInputs)

	for _, group := range [][]int{reasonable, small} {
		for _, i := range group {
			if !total.Lt(opts.Target) || len(picked) >= opts.MaxInputs {
				break
			}

			picked = append(picked, i)
			total.Add(total, cands[i].value)
		}
	}

	if !total.Lt(opts.Target) {
		return picked
	}

	return largestFirst(cands, opts)
}

func largestFirst(cands []candidate, opts Options) []int {
	return greedy(cands, sortedIndices(cands, true), opts)
}

func smallestFirst(cands []candidate, opts Options) []int {
	return greedy(cands, sortedIndices(cands, false), opts)
}

func greedy(cands []candidate, order []int, opts Options) []int {
	total := new(uint256.Int)
	picked := make([]int, 0, opts.MaxInputs)

	for _, i := range order {
		if len(picked) >= opts.MaxInputs {
			break
		}

		picked = append(picked, i)
		total.Add(total, cands[i].value)

		if !total.Lt(opts.Target) {
			return picked
		}
	}

	return nil
}

const (
	bnbMaxTries = 100_000

	knapsackResolution    = 5_000
	knapsackMaxCandidates = 200
)

// waste is the cost of overshooting the target. An excess too small to pay for
// its own change output is charged the full change cost.
func waste(total *uint256.Int, opts Options) *uint256.Int {
	excess := new(uint256.Int).Sub(total, opts.Target)

	if !excess.IsZero() && excess.Lt(opts.CostOfChange) {
		return new(uint256.Int).Set(opts.CostOfChange)
	}

	return excess
}

// branchAndBound searches subsets of the largest-first ordering for the one with
// the least waste, stopping early on an exact match.
func branchAndBound(cands []candidate, opts Options) []int {
	order := sortedIndices(cands, true)
	n := len(order)

	suffix := make([]*uint256.Int, n+1)
	suffix[n] = new(uint256.Int)

	for i := n - 1; i >= 0; i-- {
		suffix[i] = new(uint256.Int).Add(suffix[i+1], cands[order[i]].value)
	}

	if suffix[0].Lt(opts.Target) {
		return nil
	}

	var (
		best      []int
		bestWaste *uint256.Int
		current   = make([]int, 0, opts.MaxInputs)
		tries     int
	)

	var search func(depth int, total *uint256.Int) bool

	search = func(depth int, total *uint256.Int) bool {
		tries++
		if tries > bnbMaxTries {
			return true
		}

		if !total.Lt(opts.Target) {
			if w := waste(total, opts); best == nil || w.Lt(bestWaste) {
				best = append(best[:0], current...)
				bestWaste = w
			}

			return bestWaste.IsZero()
		}

		if depth == n || len(current) >= opts.MaxInputs {
			return false
		}

		if new(uint256.Int).Add(total, suffix[depth]).Lt(opts.Target) {
			return false
		}

		current = append(current, order[depth])
		stop := search(depth+1, new(uint256.Int).Add(total, cands[order[depth]].value))
		current = current[:len(current)-1]

		if stop {
			return true
		}

		return search(depth+1, total)
	}

	search(0, new(uint256.Int))

	return best
}

// knapsack scales values down to a bounded grid and finds the fewest outputs
// whose scaled sum first reaches the scaled target.
func knapsack(cands []candidate, opts Options) []int {
	if len(cands) > knapsackMaxCandidates {
		cands = cands[:knapsackMaxCandidates]
	}

	scale := new(uint256.Int).Add(opts.Target, uint256.NewInt(knapsackResolution-1))
	scale.Div(scale, uint256.NewInt(knapsackResolution))

	scaledTarget := new(uint256.Int).Div(opts.Target, scale)
	if scaledTarget.IsZero() || !scaledTarget.IsUint64() {
		return largestFirst(cands, opts)
	}

	st := int(scaledTarget.Uint64())
	capacity := 2 * st

	weights := make([]int, len(cands))

	for i, c := range cands {
		w := new(uint256.Int).Div(c.value, scale)
		if w.IsUint64() && w.Uint64() < uint64(capacity) {
			weights[i] = int(w.Uint64())
		} else {
			weights[i] = capacity
		}
	}

	const unreachable = math.MaxInt32

	counts := make([]int32, capacity+1)
	for s := 1; s <= capacity; s++ {
		counts[s] = unreachable
	}

	taken := make([][]bool, len(cands))

	for i, w := range weights {
		taken[i] = make([]bool, capacity+1)
		if w == 0 {
			continue
		}

		for s := capacity; s >= w; s-- {
			if counts[s-w] != unreachable && counts[s-w]+1 < counts[s] {
				counts[s] = counts[s-w] + 1
				taken[i][s] = true
			}
		}
	}

	for s := st; s <= capacity; s++ {
		if counts[s] == unreachable || int(counts[s]) > opts.MaxInputs {
			continue
		}

		picked := make([]int, 0, counts[s])
		total := new(uint256.Int)

		for i, rem := len(cands)-1, s; i >= 0 && rem > 0; i-- {
			if taken[i][rem] {
				picked = append(picked, i)
				total.Add(total, cands[i].value)
				rem -= weights[i]
			}
		}

		// floor rounding can leave the real total short, try the next sum
		if total.Lt(opts.Target) {
			continue
		}

		return picked
	}

	return largestFirst(cands, opts)
}
