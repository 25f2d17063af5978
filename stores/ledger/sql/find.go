package sql

import (
	"context"
	"database/sql"

	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
)

const pendingCondition = `(block IS NULL OR (claim_txid IS NOT NULL AND claim_block IS NULL))`

func (s *SQL) GetByID(ctx context.Context, id int64) (*model.LedgerRow, error) {
	row, err := scanRow(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("ledger row %d not found", id)
		}

		return nil, errors.NewStorageError("failed to get ledger row %d", id, err)
	}

	return row, nil
}

// FindByTxID matches either the settling transaction or the withdrawal claim.
func (s *SQL) FindByTxID(ctx context.Context, txID string) (*model.LedgerRow, error) {
	q := selectColumns + ` WHERE txid = $1 OR claim_txid = $1 ORDER BY id DESC LIMIT 1`

	row, err := scanRow(s.db.QueryRowContext(ctx, q, txID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("no ledger row for transaction %s", txID)
		}

		return nil, errors.NewStorageError("failed to find ledger row for %s", txID, err)
	}

	return row, nil
}

func (s *SQL) FindPendingOf(ctx context.Context, address string) ([]*model.LedgerRow, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE address = $1 AND `+pendingCondition+` ORDER BY id`, address)
	if err != nil {
		return nil, errors.NewStorageError("failed to find pending ledger rows of %s", address, err)
	}

	return scanRows(rows)
}

func (s *SQL) Pending(ctx context.Context) ([]*model.LedgerRow, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE `+pendingCondition+` ORDER BY id`)
	if err != nil {
		return nil, errors.NewStorageError("failed to find pending ledger rows", err)
	}

	return scanRows(rows)
}

func (s *SQL) HistoryOf(ctx context.Context, address string) ([]*model.LedgerRow, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE address = $1 ORDER BY id`, address)
	if err != nil {
		return nil, errors.NewStorageError("failed to read ledger history of %s", address, err)
	}

	return scanRows(rows)
}
