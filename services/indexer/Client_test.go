package indexer

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/runes"
	"github.com/runestake/settlement/ulogger"
	"github.com/runestake/settlement/util/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	baseURL     = "http://indexer.test"
	testAddress = "bcrt1pqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqs7r922v"
	testTxID    = "5e3bc5947f48cec766090aa17f309fd16259de029dcef5d306b514848c9687c7"
)

func newTestClient(t *testing.T) *Client {
	tSettings := test.CreateBaseTestSettings(t)
	tSettings.Indexer.URL, _ = url.Parse(baseURL + "/")
	tSettings.Indexer.FeeRateCacheTTL = time.Minute
	tSettings.Indexer.Timeout = 5 * time.Second

	c, err := NewClient(ulogger.TestLogger{}, tSettings)
	require.NoError(t, err)

	return c
}

func TestRuneOutputs(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, baseURL+"/address/"+testAddress+"/runes/utxo",
		httpmock.NewStringResponder(http.StatusOK, `[
			{"txid":"`+testTxID+`","vout":1,"value":546,"height":120,"runes":{"840000:3":"340282366920938463463374607431768211455","840000:4":"5"}},
			{"txid":"`+testTxID+`","vout":2,"value":546,"address":"`+testAddress+`","runes":{}}
		]`))

	c := newTestClient(t)

	utxos, err := c.RuneOutputs(context.Background(), testAddress)
	require.NoError(t, err)
	require.Len(t, utxos, 2)

	assert.Equal(t, testTxID, utxos[0].TxID.String())
	assert.Equal(t, uint32(1), utxos[0].Vout)
	assert.Equal(t, testAddress, utxos[0].Address)
	assert.NotEmpty(t, utxos[0].PkScript)
	require.NotNil(t, utxos[0].Height)
	assert.Equal(t, uint32(120), *utxos[0].Height)
	assert.Equal(t, "340282366920938463463374607431768211455", utxos[0].RuneAmount(runes.RuneID{Block: 840000, Tx: 3}).Dec())
	assert.Equal(t, uint64(5), utxos[0].RuneAmount(runes.RuneID{Block: 840000, Tx: 4}).Uint64())
	assert.Nil(t, utxos[1].Height)
	assert.False(t, utxos[1].HasRunes())
}

func TestRuneOutputsInvalid(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, baseURL+"/address/"+testAddress+"/runes/utxo",
		httpmock.NewStringResponder(http.StatusOK, `[{"txid":"`+testTxID+`","vout":1,"value":546,"runes":{"0:1":"5"}}]`))

	_, err := newTestClient(t).RuneOutputs(context.Background(), testAddress)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrServiceError))
}

func TestPlainOutputs(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, baseURL+"/address/"+testAddress+"/utxo",
		httpmock.NewStringResponder(http.StatusOK, `[
			{"txid":"`+testTxID+`","vout":0,"value":100000,"status":{"confirmed":true,"block_height":99}},
			{"txid":"`+testTxID+`","vout":3,"value":2500,"status":{"confirmed":false}}
		]`))

	utxos, err := newTestClient(t).PlainOutputs(context.Background(), testAddress)
	require.NoError(t, err)
	require.Len(t, utxos, 2)

	assert.Equal(t, int64(100_000), utxos[0].Value)
	require.NotNil(t, utxos[0].Height)
	assert.Equal(t, uint32(99), *utxos[0].Height)
	assert.Nil(t, utxos[1].Height)
	assert.Equal(t, testAddress, utxos[1].Address)
}

func TestGetTransaction(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, baseURL+"/tx/"+testTxID+"/status",
		httpmock.NewStringResponder(http.StatusOK, `{"confirmed":true,"block_height":840123}`))
	httpmock.RegisterResponder(http.MethodGet, baseURL+"/tx/unknown/status",
		httpmock.NewStringResponder(http.StatusNotFound, `Transaction not found`))

	c := newTestClient(t)

	tx, err := c.GetTransaction(context.Background(), testTxID)
	require.NoError(t, err)
	assert.True(t, tx.Confirmed)
	assert.Equal(t, uint32(840123), tx.BlockHeight)

	_, err = c.GetTransaction(context.Background(), "unknown")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestCachedLookups(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, baseURL+"/blocks/tip/height",
		httpmock.NewStringResponder(http.StatusOK, "840500\n"))
	httpmock.RegisterResponder(http.MethodGet, baseURL+"/v1/fees/recommended",
		httpmock.NewStringResponder(http.StatusOK, `{"fastestFee":12.4,"halfHourFee":9,"hourFee":7,"economyFee":3,"minimumFee":1}`))

	c := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		height, err := c.TipHeight(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint32(840500), height)

		feeRate, err := c.RecommendedFeeRate(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(13), feeRate)
	}

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["GET "+baseURL+"/blocks/tip/height"])
	assert.Equal(t, 1, info["GET "+baseURL+"/v1/fees/recommended"])

	status, _, err := c.Health(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestBroadcast(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, baseURL+"/tx",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "text/plain", req.Header.Get("Content-Type"))
			return httpmock.NewStringResponse(http.StatusOK, testTxID), nil
		})

	c := newTestClient(t)

	txID, err := c.Broadcast(context.Background(), "0200")
	require.NoError(t, err)
	assert.Equal(t, testTxID, txID)

	httpmock.RegisterResponder(http.MethodPost, baseURL+"/tx",
		httpmock.NewStringResponder(http.StatusBadRequest, `sendrawtransaction RPC error: {"code":-26,"message":"min relay fee not met"}`))

	_, err = c.Broadcast(context.Background(), "0200")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min relay fee not met")
}
