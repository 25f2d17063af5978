package chaincfg

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetChainParams(t *testing.T) {
	tests := []struct {
		network string
		name    string
	}{
		{"mainnet", "mainnet"},
		{"testnet", "testnet3"},
		{"signet", "signet"},
		{"regtest", "regtest"},
	}

	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			params, err := GetChainParams(tt.network)
			require.NoError(t, err)
			assert.Equal(t, tt.name, params.Name)
		})
	}

	_, err := GetChainParams("stn")
	require.Error(t, err)
}

func TestHasRecognizedPrefix(t *testing.T) {
	assert.True(t, MainNetParams.HasRecognizedPrefix("bc1pxyz"))
	assert.True(t, MainNetParams.HasRecognizedPrefix("1BoatSLRHtKNngkdXEeobR76b53LETtpyT"))
	assert.False(t, MainNetParams.HasRecognizedPrefix("tb1qxyz"))
	assert.True(t, RegressionNetParams.HasRecognizedPrefix("bcrt1q0"))
	assert.False(t, RegressionNetParams.HasRecognizedPrefix(""))
}

func TestPkScriptRoundTrip(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	outputKey := txscript.ComputeTaprootKeyNoScript(key.PubKey())
	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), RegressionNetParams.Params)
	require.NoError(t, err)

	script, err := RegressionNetParams.PkScript(addr.EncodeAddress())
	require.NoError(t, err)
	assert.Equal(t, addr.EncodeAddress(), RegressionNetParams.AddressOf(script))

	_, err = MainNetParams.PkScript(addr.EncodeAddress())
	require.Error(t, err)

	assert.Equal(t, "", RegressionNetParams.AddressOf([]byte{txscript.OP_RETURN, txscript.OP_13}))
}
