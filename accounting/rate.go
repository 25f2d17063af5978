package accounting

import (
	"sort"

	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
)

// Lookup returns the sample with the highest block not above block. Samples must
// be sorted by block. A block before the first sample clamps to the first
// sample, so the returned sample may be later than requested. ok is false only
// for an empty slice.
func Lookup(samples []model.RateSample, block uint32) (model.RateSample, bool) {
	if len(samples) == 0 {
		return model.RateSample{}, false
	}

	// index of the first sample after block
	i := sort.Search(len(samples), func(i int) bool {
		return samples[i].Block > block
	})

	if i == 0 {
		return samples[0], true
	}

	return samples[i-1], true
}

// RateAt is the strict form of Lookup: there must be a sample at or before block.
func RateAt(samples []model.RateSample, block uint32) (model.RateSample, error) {
	sample, ok := Lookup(samples, block)
	if !ok || sample.Block > block {
		return model.RateSample{}, errors.NewNoRateFoundError("no rate sample at or before block %d", block)
	}

	return sample, nil
}
