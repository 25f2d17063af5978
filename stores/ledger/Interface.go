// Package ledger persists stake and unstake settlements. A row is inserted
// when a transaction is built or broadcast and is patched as its transaction,
// and later its withdrawal claim, get mined.
package ledger

import (
	"context"

	"github.com/runestake/settlement/model"
)

type Store interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	Insert(ctx context.Context, row *model.LedgerRow) (int64, error)
	Update(ctx context.Context, ids []int64, patch model.LedgerPatch) error
	Remove(ctx context.Context, ids []int64) error
	// Claim sets the claim txid of unstake row id unless it already has one, in
	// which case ErrWithdrawNotAvailable is returned.
	Claim(ctx context.Context, id int64, claimTxID string) error
	GetByID(ctx context.Context, id int64) (*model.LedgerRow, error)
	FindByTxID(ctx context.Context, txID string) (*model.LedgerRow, error)
	// FindPendingOf returns rows of address with an unmined transaction or claim.
	FindPendingOf(ctx context.Context, address string) ([]*model.LedgerRow, error)
	// Pending returns every row with an unmined transaction or claim.
	Pending(ctx context.Context) ([]*model.LedgerRow, error)
	// HistoryOf returns all rows of address, oldest first.
	HistoryOf(ctx context.Context, address string) ([]*model.LedgerRow, error)
	Close() error
}
