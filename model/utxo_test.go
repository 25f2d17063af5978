package model

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/holiman/uint256"
	"github.com/runestake/settlement/runes"
	"github.com/stretchr/testify/assert"
)

func TestUtxoKey(t *testing.T) {
	hash, _ := chainhash.NewHashFromStr("0b3f1a3a6f2d2b6f8a3bbcbd3c6d1e8fcdd2dc0f5b1a6f06c6e5b0c1f5b1b0a1")
	u := Utxo{TxID: *hash, Vout: 3}

	assert.Equal(t, hash.String()+":3", u.Key())
	assert.Equal(t, []string{hash.String() + ":3"}, UtxoKeys([]Utxo{u}))
	assert.Equal(t, uint32(3), u.OutPoint().Index)
}

func TestUtxoRunes(t *testing.T) {
	base := runes.RuneID{Block: 840000, Tx: 3}
	receipt := runes.RuneID{Block: 840000, Tx: 4}

	u := Utxo{Runes: map[runes.RuneID]*uint256.Int{base: uint256.NewInt(10), receipt: uint256.NewInt(0)}}

	assert.True(t, u.HasRune(base))
	assert.False(t, u.HasRune(receipt))
	assert.True(t, u.HasRunes())
	assert.Equal(t, uint64(10), u.RuneAmount(base).Uint64())

	plain := Utxo{}
	assert.False(t, plain.HasRunes())
	assert.True(t, plain.RuneAmount(base).IsZero())
}

func TestParty(t *testing.T) {
	p := Party{Address: "bc1puser"}
	assert.Equal(t, "bc1puser", p.ChangeAddress())
	assert.True(t, p.Allows("any:0"))
	assert.False(t, p.Owes())

	p.RetentionAddress = "bc1pretain"
	p.AllowedOutputs = map[string]struct{}{"a:1": {}}
	p.Amount = uint256.NewInt(1)
	assert.Equal(t, "bc1pretain", p.ChangeAddress())
	assert.True(t, p.Allows("a:1"))
	assert.False(t, p.Allows("a:2"))
	assert.True(t, p.Owes())

	assert.True(t, OperationWithdraw.Valid())
	assert.False(t, Operation("mint").Valid())
}
