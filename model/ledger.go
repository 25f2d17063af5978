package model

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

type LedgerKind string

const (
	LedgerKindStake   LedgerKind = "stake"
	LedgerKindUnstake LedgerKind = "unstake"
)

// LedgerRow is a pending or settled stake/unstake. For stakes Amount is the
// base rune deposited and StakedAmount the receipt minted; for unstakes Amount
// is the base rune owed and StakedAmount the receipt burned.
type LedgerRow struct {
	ID           int64
	Kind         LedgerKind
	Address      string
	Amount       *uint256.Int
	StakedAmount *uint256.Int
	Block        *uint32
	TxID         string
	Psbt         []byte
	ClaimTxID    *string
	ClaimBlock   *uint32
	Timestamp    time.Time
}

func (r *LedgerRow) Confirmed() bool {
	return r.Block != nil
}

func (r *LedgerRow) Claimed() bool {
	return r.ClaimTxID != nil
}

// LedgerPatch lists the columns an update touches; nil fields are left alone.
type LedgerPatch struct {
	TxID       *string
	Block      *uint32
	Psbt       []byte
	ClaimTxID  *string
	ClaimBlock *uint32
}

// RateSample is the receipt redemption rate observed at a block.
type RateSample struct {
	Block uint32
	Rate  decimal.Decimal
}
