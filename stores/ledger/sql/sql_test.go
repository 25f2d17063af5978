package sql

import (
	"context"
	"net/url"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/holiman/uint256"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
	"github.com/runestake/settlement/ulogger"
	"github.com/runestake/settlement/util"
	"github.com/runestake/settlement/util/test"
	"github.com/runestake/settlement/util/usql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQL {
	tSettings := test.CreateBaseTestSettings(t)

	storeURL, err := url.Parse("sqlitememory:///ledger")
	require.NoError(t, err)

	s, err := New(ulogger.TestLogger{}, storeURL, tSettings)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

func u32(v uint32) *uint32 {
	return &v
}

func str(v string) *string {
	return &v
}

func stakeRow(address, txID string) *model.LedgerRow {
	return &model.LedgerRow{
		Kind:         model.LedgerKindStake,
		Address:      address,
		Amount:       uint256.NewInt(1_000_000),
		StakedAmount: uint256.NewInt(950_000),
		TxID:         txID,
	}
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	big, err := uint256.FromDecimal("340282366920938463463374607431768211455")
	require.NoError(t, err)

	row := stakeRow("bcrt1paddr", "aa")
	row.Amount = big
	row.Psbt = []byte{0x70, 0x73, 0x62, 0x74}

	id, err := s.Insert(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, id, row.ID)

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, model.LedgerKindStake, got.Kind)
	assert.Equal(t, "bcrt1paddr", got.Address)
	assert.Equal(t, big, got.Amount)
	assert.Equal(t, uint64(950_000), got.StakedAmount.Uint64())
	assert.Equal(t, []byte{0x70, 0x73, 0x62, 0x74}, got.Psbt)
	assert.Nil(t, got.Block)
	assert.Nil(t, got.ClaimTxID)
	assert.False(t, got.Confirmed())
	assert.Equal(t, row.Timestamp.UnixMilli(), got.Timestamp.UnixMilli())

	_, err = s.GetByID(ctx, id+100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = s.Insert(ctx, &model.LedgerRow{Kind: "bogus"})
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestUpdateAndPending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	stakeID, err := s.Insert(ctx, stakeRow("alice", "s1"))
	require.NoError(t, err)

	unstake := stakeRow("alice", "u1")
	unstake.Kind = model.LedgerKindUnstake
	unstakeID, err := s.Insert(ctx, unstake)
	require.NoError(t, err)

	_, err = s.Insert(ctx, stakeRow("bob", "b1"))
	require.NoError(t, err)

	pending, err := s.FindPendingOf(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, stakeID, pending[0].ID)

	require.NoError(t, s.Update(ctx, []int64{stakeID, unstakeID}, model.LedgerPatch{Block: u32(100)}))

	pending, err = s.FindPendingOf(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := s.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "bob", all[0].Address)

	// a claim is pending until mined
	require.NoError(t, s.Update(ctx, []int64{unstakeID}, model.LedgerPatch{ClaimTxID: str("c1")}))

	pending, err = s.FindPendingOf(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Claimed())

	byClaim, err := s.FindByTxID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, unstakeID, byClaim.ID)

	require.NoError(t, s.Update(ctx, []int64{unstakeID}, model.LedgerPatch{ClaimBlock: u32(1200)}))

	got, err := s.GetByID(ctx, unstakeID)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), *got.Block)
	assert.Equal(t, uint32(1200), *got.ClaimBlock)

	err = s.Update(ctx, []int64{9999}, model.LedgerPatch{Block: u32(1)})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	require.NoError(t, s.Update(ctx, []int64{stakeID}, model.LedgerPatch{}))
	require.NoError(t, s.Update(ctx, nil, model.LedgerPatch{Block: u32(1)}))
}

func TestClaim(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	unstake := stakeRow("alice", "u1")
	unstake.Kind = model.LedgerKindUnstake
	id, err := s.Insert(ctx, unstake)
	require.NoError(t, err)

	require.NoError(t, s.Claim(ctx, id, "c1"))

	err = s.Claim(ctx, id, "c2")
	assert.True(t, errors.Is(err, errors.ErrWithdrawNotAvailable))

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.ClaimTxID)
	assert.Equal(t, "c1", *got.ClaimTxID)

	err = s.Claim(ctx, 9999, "c3")
	assert.True(t, errors.Is(err, errors.ErrWithdrawNotAvailable))
}

func TestRemoveAndHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.Insert(ctx, stakeRow("alice", "s1"))
	require.NoError(t, err)

	second, err := s.Insert(ctx, stakeRow("alice", "s2"))
	require.NoError(t, err)

	history, err := s.HistoryOf(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "s1", history[0].TxID)
	assert.Equal(t, "s2", history[1].TxID)

	require.NoError(t, s.Remove(ctx, []int64{first}))
	require.NoError(t, s.Remove(ctx, nil))

	_, err = s.FindByTxID(ctx, "s1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	found, err := s.FindByTxID(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, second, found.ID)

	history, err = s.HistoryOf(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestStorageFailures(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	s := NewWithDB(ulogger.TestLogger{}, usql.Wrap(db), util.Postgres)
	defer s.Close()

	mock.ExpectQuery(`INSERT INTO ledger(.+)RETURNING id`).WillReturnError(assert.AnError)

	_, err = s.Insert(ctx, stakeRow("alice", "s1"))
	assert.True(t, errors.Is(err, errors.ErrStorageError))

	mock.ExpectExec(`UPDATE ledger SET block = \$1 WHERE id IN \(\$2, \$3\)`).
		WithArgs(int64(7), int64(1), int64(2)).
		WillReturnError(assert.AnError)

	err = s.Update(ctx, []int64{1, 2}, model.LedgerPatch{Block: u32(7)})
	assert.True(t, errors.Is(err, errors.ErrStorageError))

	mock.ExpectExec(`DELETE FROM ledger WHERE id IN \(\$1\)`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Remove(ctx, []int64{5}))

	mock.ExpectQuery(`SELECT(.+)FROM ledger(.+)WHERE address = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "kind", "address", "amount", "staked_amount", "block",
			"txid", "psbt", "claim_txid", "claim_block", "created_at",
		}).AddRow(int64(1), "stake", "alice", "not-a-number", "1", nil, "s1", nil, nil, nil, int64(0)))

	_, err = s.HistoryOf(ctx, "alice")
	assert.True(t, errors.Is(err, errors.ErrStorageError))

	require.NoError(t, mock.ExpectationsWereMet())
}
