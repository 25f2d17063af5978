package sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
)

// idList renders "$n, $n+1, ..." placeholders for ids, starting after offset
// existing arguments.
func idList(ids []int64, offset int) (string, []interface{}) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))

	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", offset+i+1)
		args[i] = id
	}

	return strings.Join(placeholders, ", "), args
}

func (s *SQL) Update(ctx context.Context, ids []int64, patch model.LedgerPatch) error {
	if len(ids) == 0 {
		return nil
	}

	var (
		sets []string
		args []interface{}
	)

	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.TxID != nil {
		set("txid", *patch.TxID)
	}

	if patch.Block != nil {
		set("block", int64(*patch.Block))
	}

	if patch.Psbt != nil {
		set("psbt", patch.Psbt)
	}

	if patch.ClaimTxID != nil {
		set("claim_txid", *patch.ClaimTxID)
	}

	if patch.ClaimBlock != nil {
		set("claim_block", int64(*patch.ClaimBlock))
	}

	if len(sets) == 0 {
		return nil
	}

	in, idArgs := idList(ids, len(args))

	q := `UPDATE ledger SET ` + strings.Join(sets, ", ") + ` WHERE id IN (` + in + `)`

	res, err := s.db.ExecContext(ctx, q, append(args, idArgs...)...)
	if err != nil {
		return errors.NewStorageError("failed to update ledger rows %v", ids, err)
	}

	if n, err := res.RowsAffected(); err == nil && n != int64(len(ids)) {
		return errors.NewNotFoundError("updated %d of %d ledger rows %v", n, len(ids), ids)
	}

	return nil
}

func (s *SQL) Claim(ctx context.Context, id int64, claimTxID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE ledger SET claim_txid = $1
		WHERE id = $2 AND claim_txid IS NULL
	`, claimTxID, id)
	if err != nil {
		return errors.NewStorageError("failed to claim ledger row %d", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewStorageError("failed to claim ledger row %d", id, err)
	}

	if n == 0 {
		return errors.NewWithdrawNotAvailableError("unstake %d is missing or already claimed", id)
	}

	return nil
}

func (s *SQL) Remove(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	in, args := idList(ids, 0)

	if _, err := s.db.ExecContext(ctx, `DELETE FROM ledger WHERE id IN (`+in+`)`, args...); err != nil {
		return errors.NewStorageError("failed to remove ledger rows %v", ids, err)
	}

	return nil
}
