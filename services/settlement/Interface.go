// Package settlement drives a stake, unstake or withdraw from an unsigned
// transaction to a broadcast and recorded one. It re-validates the protocol
// invariants against the signed transaction, obtains the custodian signature,
// broadcasts and keeps the ledger in step.
package settlement

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/runestake/settlement/model"
	"github.com/runestake/settlement/services/builder"
)

type Interface interface {
	Prepare(ctx context.Context, req *PrepareRequest) (*PrepareResult, error)
	Confirm(ctx context.Context, req *ConfirmRequest) (*ConfirmResult, error)
	ConfirmPending(ctx context.Context) (int, error)
}

// PrepareRequest asks for the unsigned transaction of an operation. Amount is
// the base rune to stake or the receipt rune to unstake; a withdraw claims the
// unstake row ClaimRowID instead.
type PrepareRequest struct {
	Operation  model.Operation
	Address    string
	PubKey     []byte
	Amount     *uint256.Int
	FeeRate    *int64
	ClaimRowID *int64
}

type PrepareResult struct {
	*builder.BuildResult
	// RowID is the pending ledger row of a stake or unstake, or the claimed
	// unstake row of a withdraw.
	RowID        int64
	Amount       *uint256.Int
	StakedAmount *uint256.Int
}

type ConfirmRequest struct {
	Operation  model.Operation
	PsbtBase64 string
	// RowExists is set when the ledger row was created while preparing.
	RowExists  bool
	ClaimRowID *int64
	// ExpectedAmount is the base rune an unstake pays out; the ledger row or
	// the current exchange rate is used when nil.
	ExpectedAmount *uint256.Int
}

type ConfirmResult struct {
	TxID             string  `json:"txid"`
	Fee              int64   `json:"fee"`
	FeeRate          float64 `json:"fee_rate"`
	TxHex            string  `json:"tx_hex"`
	SignedPsbtBase64 string  `json:"psbt"`
}
