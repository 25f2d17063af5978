package sql

import (
	"database/sql"
	"time"

	"github.com/holiman/uint256"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
)

const selectColumns = `
	SELECT
		 id
		,kind
		,address
		,amount
		,staked_amount
		,block
		,txid
		,psbt
		,claim_txid
		,claim_block
		,created_at
	FROM ledger
`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(row scanner) (*model.LedgerRow, error) {
	var (
		r            model.LedgerRow
		kind         string
		amount       string
		stakedAmount string
		block        sql.NullInt64
		claimTxID    sql.NullString
		claimBlock   sql.NullInt64
		createdAt    int64
	)

	if err := row.Scan(
		&r.ID,
		&kind,
		&r.Address,
		&amount,
		&stakedAmount,
		&block,
		&r.TxID,
		&r.Psbt,
		&claimTxID,
		&claimBlock,
		&createdAt,
	); err != nil {
		return nil, err
	}

	var err error

	r.Kind = model.LedgerKind(kind)

	if r.Amount, err = uint256.FromDecimal(amount); err != nil {
		return nil, errors.NewStorageError("invalid amount %q in ledger row %d", amount, r.ID, err)
	}

	if r.StakedAmount, err = uint256.FromDecimal(stakedAmount); err != nil {
		return nil, errors.NewStorageError("invalid staked amount %q in ledger row %d", stakedAmount, r.ID, err)
	}

	if block.Valid {
		b := uint32(block.Int64)
		r.Block = &b
	}

	if claimTxID.Valid {
		r.ClaimTxID = &claimTxID.String
	}

	if claimBlock.Valid {
		b := uint32(claimBlock.Int64)
		r.ClaimBlock = &b
	}

	r.Timestamp = time.UnixMilli(createdAt).UTC()

	return &r, nil
}

func scanRows(rows *sql.Rows) ([]*model.LedgerRow, error) {
	defer rows.Close()

	result := make([]*model.LedgerRow, 0)

	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, errors.NewStorageError("failed to read ledger row", err)
		}

		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to read ledger rows", err)
	}

	return result, nil
}

func nullUint32(v *uint32) interface{} {
	if v == nil {
		return nil
	}

	return int64(*v)
}

func nullString(v *string) interface{} {
	if v == nil {
		return nil
	}

	return *v
}

func decimalString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}

	return v.Dec()
}
