package model

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/holiman/uint256"
	"github.com/runestake/settlement/runes"
)

// Utxo is a spendable output as reported by the indexer. Rune balances are
// keyed by rune id; a plain output has none.
type Utxo struct {
	TxID     chainhash.Hash
	Vout     uint32
	Value    int64
	Address  string
	PkScript []byte
	PubKey   []byte
	Height   *uint32
	Runes    map[runes.RuneID]*uint256.Int
}

// Key is the lock store key of the output.
func (u *Utxo) Key() string {
	return OutpointKey(u.TxID, u.Vout)
}

func (u *Utxo) OutPoint() wire.OutPoint {
	return wire.OutPoint{Hash: u.TxID, Index: u.Vout}
}

// RuneAmount returns the balance of id held by the output, zero when absent.
func (u *Utxo) RuneAmount(id runes.RuneID) *uint256.Int {
	if amount, ok := u.Runes[id]; ok && amount != nil {
		return amount
	}

	return new(uint256.Int)
}

func (u *Utxo) HasRune(id runes.RuneID) bool {
	return !u.RuneAmount(id).IsZero()
}

func (u *Utxo) HasRunes() bool {
	for _, amount := range u.Runes {
		if amount != nil && !amount.IsZero() {
			return true
		}
	}

	return false
}

func OutpointKey(txID chainhash.Hash, vout uint32) string {
	return fmt.Sprintf("%s:%d", txID.String(), vout)
}

func UtxoKeys(utxos []Utxo) []string {
	keys := make([]string, len(utxos))
	for i := range utxos {
		keys[i] = utxos[i].Key()
	}

	return keys
}
