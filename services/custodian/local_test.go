package custodian

import (
	"context"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/runestake/settlement/chaincfg"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
	"github.com/runestake/settlement/ulogger"
	"github.com/runestake/settlement/util/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalSigner(t *testing.T) *LocalSigner {
	tSettings := test.CreateBaseTestSettings(t)
	tSettings.Custodian.Circulating = "1000"
	tSettings.Custodian.Balance = "1100"

	s, err := NewLocalSigner(ulogger.TestLogger{}, tSettings)
	require.NoError(t, err)

	return s
}

// twoPartyPacket spends one custodian output and one user output.
func twoPartyPacket(t *testing.T, custodianScript, userScript []byte) *psbt.Packet {
	inputs := []*wire.OutPoint{
		{Hash: chainhash.Hash{1}, Index: 0},
		{Hash: chainhash.Hash{2}, Index: 1},
	}
	outputs := []*wire.TxOut{
		wire.NewTxOut(546, custodianScript),
		wire.NewTxOut(20_000, userScript),
	}

	p, err := psbt.New(inputs, outputs, 2, 0, []uint32{wire.MaxTxInSequenceNum, wire.MaxTxInSequenceNum})
	require.NoError(t, err)

	p.Inputs[0].WitnessUtxo = wire.NewTxOut(10_000, custodianScript)
	p.Inputs[1].WitnessUtxo = wire.NewTxOut(12_000, userScript)

	return p
}

func verifyInputs(t *testing.T, tx *wire.MsgTx, prevOuts []*wire.TxOut) {
	fetcherMap := make(map[wire.OutPoint]*wire.TxOut)
	for i, in := range tx.TxIn {
		fetcherMap[in.PreviousOutPoint] = prevOuts[i]
	}

	fetcher := txscript.NewMultiPrevOutFetcher(fetcherMap)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for i := range tx.TxIn {
		vm, err := txscript.NewEngine(prevOuts[i].PkScript, tx, i, txscript.StandardVerifyFlags, nil, sigHashes, prevOuts[i].Value, fetcher)
		require.NoError(t, err)
		require.NoError(t, vm.Execute(), "input %d", i)
	}
}

func TestLocalSignerAddress(t *testing.T) {
	s := newLocalSigner(t)

	assert.True(t, strings.HasPrefix(s.Address(), "bcrt1p"))
	assert.Equal(t, s.Address(), s.RetentionAddress())

	// derived from the client name, so stable across instances
	assert.Equal(t, s.Address(), newLocalSigner(t).Address())
}

func TestLocalSignerFromWIF(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	wif, err := btcutil.NewWIF(key, chaincfg.RegressionNetParams.Params, true)
	require.NoError(t, err)

	tSettings := test.CreateBaseTestSettings(t)
	tSettings.Custodian.PrivateKeyWIF = wif.String()

	s, err := NewLocalSigner(ulogger.TestLogger{}, tSettings)
	require.NoError(t, err)

	script, err := TaprootScript(key.PubKey())
	require.NoError(t, err)
	assert.Equal(t, chaincfg.RegressionNetParams.AddressOf(script), s.Address())

	tSettings.Custodian.Address = "bcrt1pqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqs7r922v"
	_, err = NewLocalSigner(ulogger.TestLogger{}, tSettings)
	require.ErrorIs(t, err, errors.ErrConfiguration)

	tSettings.Custodian.PrivateKeyWIF = "not-a-wif"
	_, err = NewLocalSigner(ulogger.TestLogger{}, tSettings)
	require.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestLocalSignerNeedsKeyOnMainnet(t *testing.T) {
	tSettings := test.CreateBaseTestSettings(t)
	tSettings.ChainCfgParams = &chaincfg.MainNetParams

	_, err := NewLocalSigner(ulogger.TestLogger{}, tSettings)
	require.ErrorIs(t, err, errors.ErrConfiguration)

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	wif, err := btcutil.NewWIF(key, chaincfg.MainNetParams.Params, true)
	require.NoError(t, err)

	tSettings.Custodian.PrivateKeyWIF = wif.String()

	s, err := NewLocalSigner(ulogger.TestLogger{}, tSettings)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s.Address(), "bc1p"))
}

func TestLocalSignerComponents(t *testing.T) {
	s := newLocalSigner(t)

	c, err := s.ExchangeRateComponents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000", c.Circulating.Dec())
	assert.Equal(t, "1100", c.Balance.Dec())

	require.NoError(t, s.SetComponents("2000", "2500"))

	c, err = s.ExchangeRateComponents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2000", c.Circulating.Dec())
	assert.Equal(t, "2500", c.Balance.Dec())

	require.Error(t, s.SetComponents("x", "1"))
}

func TestCoSign(t *testing.T) {
	s := newLocalSigner(t)

	custodianScript, err := TaprootScript(s.PubKey())
	require.NoError(t, err)

	userKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	userScript, err := TaprootScript(userKey.PubKey())
	require.NoError(t, err)

	p := twoPartyPacket(t, custodianScript, userScript)

	signed, err := SignKeySpend(p, userKey, userScript)
	require.NoError(t, err)
	assert.Equal(t, 1, signed)

	b64, err := p.B64Encode()
	require.NoError(t, err)

	out, err := s.CoSign(context.Background(), model.OperationStake, b64)
	require.NoError(t, err)

	final, err := psbt.NewFromRawBytes(strings.NewReader(out), true)
	require.NoError(t, err)
	require.True(t, final.IsComplete())

	tx, err := psbt.Extract(final)
	require.NoError(t, err)

	verifyInputs(t, tx, []*wire.TxOut{p.Inputs[0].WitnessUtxo, p.Inputs[1].WitnessUtxo})
}

func TestCoSignRequiresUserSignature(t *testing.T) {
	s := newLocalSigner(t)

	custodianScript, err := TaprootScript(s.PubKey())
	require.NoError(t, err)

	userKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	userScript, err := TaprootScript(userKey.PubKey())
	require.NoError(t, err)

	b64, err := twoPartyPacket(t, custodianScript, userScript).B64Encode()
	require.NoError(t, err)

	_, err = s.CoSign(context.Background(), model.OperationStake, b64)
	require.ErrorIs(t, err, errors.ErrServiceError)
	assert.Contains(t, err.Error(), "Validation failed")

	_, err = s.CoSign(context.Background(), model.OperationStake, "garbage")
	require.ErrorIs(t, err, errors.ErrServiceError)

	_, err = s.CoSign(context.Background(), model.Operation("mint"), b64)
	require.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestSignKeySpendSkipsForeignInputs(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	script, err := TaprootScript(key.PubKey())
	require.NoError(t, err)

	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	otherScript, err := TaprootScript(other.PubKey())
	require.NoError(t, err)

	p := twoPartyPacket(t, otherScript, otherScript)

	signed, err := SignKeySpend(p, key, script)
	require.NoError(t, err)
	assert.Equal(t, 0, signed)

	p.Inputs[0].WitnessUtxo = nil

	_, err = SignKeySpend(p, key, script)
	require.Error(t, err)
}
