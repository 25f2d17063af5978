package custodian

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/runestake/settlement/errors"
)

// SignKeySpend adds a BIP86 key path signature to every input of p whose
// witness utxo pays pkScript and finalizes it. It returns the number of inputs
// signed.
func SignKeySpend(p *psbt.Packet, key *btcec.PrivateKey, pkScript []byte) (int, error) {
	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(p.Inputs))

	for i, in := range p.Inputs {
		if in.WitnessUtxo == nil {
			return 0, errors.NewProcessingError("input %d has no witness utxo", i)
		}

		prevOuts[p.UnsignedTx.TxIn[i].PreviousOutPoint] = in.WitnessUtxo
	}

	fetcher := txscript.NewMultiPrevOutFetcher(prevOuts)
	sigHashes := txscript.NewTxSigHashes(p.UnsignedTx, fetcher)

	signed := 0

	for i, in := range p.Inputs {
		if !bytes.Equal(in.WitnessUtxo.PkScript, pkScript) || in.FinalScriptWitness != nil {
			continue
		}

		sig, err := txscript.RawTxInTaprootSignature(
			p.UnsignedTx, sigHashes, i, in.WitnessUtxo.Value, in.WitnessUtxo.PkScript,
			nil, txscript.SigHashDefault, key,
		)
		if err != nil {
			return signed, errors.NewProcessingError("could not sign input %d", i, err)
		}

		p.Inputs[i].TaprootKeySpendSig = sig

		if _, err = psbt.MaybeFinalize(p, i); err != nil {
			return signed, errors.NewProcessingError("could not finalize input %d", i, err)
		}

		signed++
	}

	return signed, nil
}

// TaprootScript returns the BIP86 output script of key.
func TaprootScript(key *btcec.PublicKey) ([]byte, error) {
	return txscript.PayToTaprootScript(txscript.ComputeTaprootKeyNoScript(key))
}
