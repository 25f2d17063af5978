package sql

import (
	"context"
	"time"

	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
)

func (s *SQL) Insert(ctx context.Context, row *model.LedgerRow) (int64, error) {
	if row.Kind != model.LedgerKindStake && row.Kind != model.LedgerKindUnstake {
		return 0, errors.NewInvalidArgumentError("invalid ledger row kind %q", row.Kind)
	}

	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now().UTC()
	}

	q := `
		INSERT INTO ledger (
			 kind
			,address
			,amount
			,staked_amount
			,block
			,txid
			,psbt
			,claim_txid
			,claim_block
			,created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64

	if err := s.db.QueryRowContext(ctx, q,
		string(row.Kind),
		row.Address,
		decimalString(row.Amount),
		decimalString(row.StakedAmount),
		nullUint32(row.Block),
		row.TxID,
		row.Psbt,
		nullString(row.ClaimTxID),
		nullUint32(row.ClaimBlock),
		row.Timestamp.UnixMilli(),
	).Scan(&id); err != nil {
		return 0, errors.NewStorageError("failed to insert ledger row for %s", row.TxID, err)
	}

	row.ID = id

	return id, nil
}
