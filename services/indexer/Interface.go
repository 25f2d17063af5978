package indexer

import (
	"context"

	"github.com/runestake/settlement/model"
)

// Transaction is the confirmation status of a transaction.
type Transaction struct {
	TxID        string
	Confirmed   bool
	BlockHeight uint32
}

type ClientI interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	// RuneOutputs returns the spendable outputs of address that carry runes.
	RuneOutputs(ctx context.Context, address string) ([]model.Utxo, error)
	// PlainOutputs returns the spendable outputs of address without runes.
	PlainOutputs(ctx context.Context, address string) ([]model.Utxo, error)
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	TipHeight(ctx context.Context) (uint32, error)
	// RecommendedFeeRate is in sat/vB.
	RecommendedFeeRate(ctx context.Context) (int64, error)
	Broadcast(ctx context.Context, txHex string) (string, error)
}
