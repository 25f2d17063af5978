// Package ratehistory keeps the append-only curve of receipt redemption rates,
// one sample per block where the rate changed.
package ratehistory

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/runestake/settlement/model"
)

type Store interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	// AppendSample records balance/staked at block. It reports false when the
	// sample was skipped because the rate did not change or block is not newer
	// than the last sample.
	AppendSample(ctx context.Context, block uint32, balance, staked *uint256.Int) (bool, error)
	// HistoricSamples returns all samples sorted by block.
	HistoricSamples(ctx context.Context) ([]model.RateSample, error)
	Close() error
}
