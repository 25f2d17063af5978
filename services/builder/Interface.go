// Package builder assembles the unsigned settlement transaction between a
// user and the custodian: it selects and locks the outputs both sides spend,
// lays out the rune transfers in a runestone and funds the fee from the payer.
package builder

import (
	"context"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/runestake/settlement/model"
)

type Interface interface {
	Build(ctx context.Context, req *BuildRequest) (*BuildResult, error)
}

// BuildRequest describes one swap. Target is the side that must deliver
// Target.Amount of its rune, Source the side delivering Source.Amount of its
// rune, and Payer funds postage and fees with plain outputs.
type BuildRequest struct {
	Operation model.Operation
	Source    model.Party
	Target    model.Party
	Payer     model.Party
	// FeeRate in sat/vB; the indexer recommendation is used when nil.
	FeeRate *int64
}

// SignInput is an input the user's wallet has to sign.
type SignInput struct {
	Index   int    `json:"index"`
	Address string `json:"address"`
}

type BuildResult struct {
	Packet       *psbt.Packet
	PsbtBase64   string
	FeeRate      int64
	Fee          int64
	InputsToSign []SignInput
	// LockOwner holds the locks on every spent output until the settlement
	// completes; it is the unsigned txid.
	LockOwner string
	TxID      string
	// LockedKeys are the outpoints locked for this transaction.
	LockedKeys []string
}
