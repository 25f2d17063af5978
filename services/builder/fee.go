package builder

import (
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
)

const (
	// witness item count, length prefix and a 64 byte schnorr signature
	taprootWitnessSize = 1 + 1 + 64
	// witness item count, a 72 byte DER signature and a 33 byte public key
	p2wpkhWitnessSize = 1 + 1 + 72 + 1 + 33
	// segwit marker and flag
	witnessHeaderSize = 2

	rbfSequence = wire.MaxTxInSequenceNum - 2
)

func witnessSize(pkScript []byte) (int, error) {
	switch {
	case txscript.IsPayToTaproot(pkScript):
		return taprootWitnessSize, nil
	case txscript.IsPayToWitnessPubKeyHash(pkScript):
		return p2wpkhWitnessSize, nil
	}

	return 0, errors.NewInvalidArgumentError("unsupported input script %x, only taproot and p2wpkh outputs can be spent", pkScript)
}

func unsignedTx(inputs []model.Utxo, outputs []*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(2)

	for i := range inputs {
		op := inputs[i].OutPoint()
		in := wire.NewTxIn(&op, nil, nil)
		in.Sequence = rbfSequence
		tx.AddTxIn(in)
	}

	for _, out := range outputs {
		tx.AddTxOut(out)
	}

	return tx
}

// virtualSize is the vsize tx will have once every input carries its
// witness: the stripped size weighs 3, the full size 1, rounded up.
func virtualSize(tx *wire.MsgTx, inputs []model.Utxo) (int64, error) {
	stripped := tx.SerializeSizeStripped()
	full := stripped + witnessHeaderSize

	for i := range inputs {
		w, err := witnessSize(inputs[i].PkScript)
		if err != nil {
			return 0, err
		}

		full += w
	}

	return int64(stripped*3+full+3) / 4, nil
}
