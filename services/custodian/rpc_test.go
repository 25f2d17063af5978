package custodian

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
	"github.com/runestake/settlement/ulogger"
	"github.com/runestake/settlement/util/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rpcURL           = "http://custodian.test/rpc"
	custodianAddress = "bcrt1pqgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqn4zdly"
)

func newRPCClient(t *testing.T, attempts int) *RPCClient {
	tSettings := test.CreateBaseTestSettings(t)
	tSettings.Custodian.Mode = "rpc"
	tSettings.Custodian.URL, _ = url.Parse(rpcURL)
	tSettings.Custodian.Address = custodianAddress
	tSettings.Custodian.RetryAttempts = attempts
	tSettings.Custodian.RetryBackoff = time.Millisecond
	tSettings.Custodian.Timeout = 5 * time.Second

	c, err := NewRPCClient(ulogger.TestLogger{}, tSettings)
	require.NoError(t, err)

	return c
}

// rpcResponder answers each call with the next body in turn, repeating the last.
func rpcResponder(t *testing.T, method string, bodies ...string) httpmock.Responder {
	call := 0

	return func(req *http.Request) (*http.Response, error) {
		b, err := io.ReadAll(req.Body)
		require.NoError(t, err)

		var r rpcRequest
		require.NoError(t, json.Unmarshal(b, &r))
		assert.Equal(t, "2.0", r.JSONRPC)
		assert.Equal(t, method, r.Method)

		body := bodies[min(call, len(bodies)-1)]
		call++

		return httpmock.NewStringResponse(http.StatusOK, body), nil
	}
}

func TestNewClientModes(t *testing.T) {
	tSettings := test.CreateBaseTestSettings(t)

	c, err := NewClient(ulogger.TestLogger{}, tSettings)
	require.NoError(t, err)
	assert.IsType(t, &LocalSigner{}, c)

	tSettings.Custodian.Mode = "rpc"
	tSettings.Custodian.Address = custodianAddress

	c, err = NewClient(ulogger.TestLogger{}, tSettings)
	require.NoError(t, err)
	assert.IsType(t, &RPCClient{}, c)
	assert.Equal(t, custodianAddress, c.RetentionAddress())

	tSettings.Custodian.Address = ""
	_, err = NewClient(ulogger.TestLogger{}, tSettings)
	require.ErrorIs(t, err, errors.ErrConfiguration)

	tSettings.Custodian.Mode = "hsm"
	_, err = NewClient(ulogger.TestLogger{}, tSettings)
	require.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestRPCCoSign(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, rpcURL,
		rpcResponder(t, "cosign", `{"jsonrpc":"2.0","id":1,"result":{"psbt":"c2lnbmVk"}}`))

	c := newRPCClient(t, 3)

	signed, err := c.CoSign(context.Background(), model.OperationStake, "cHNidP8=")
	require.NoError(t, err)
	assert.Equal(t, "c2lnbmVk", signed)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestRPCCoSignRetriesOutOfSync(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, rpcURL,
		rpcResponder(t, "cosign",
			`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"indexer out of sync"}}`,
			`{"jsonrpc":"2.0","id":2,"result":{"psbt":"c2lnbmVk"}}`,
		))

	c := newRPCClient(t, 3)

	signed, err := c.CoSign(context.Background(), model.OperationUnstake, "cHNidP8=")
	require.NoError(t, err)
	assert.Equal(t, "c2lnbmVk", signed)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestRPCCoSignGivesUpOutOfSync(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, rpcURL,
		rpcResponder(t, "cosign", `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"indexer out of sync"}}`))

	c := newRPCClient(t, 2)

	_, err := c.CoSign(context.Background(), model.OperationStake, "cHNidP8=")
	require.ErrorIs(t, err, errors.ErrServiceError)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestRPCCoSignDoesNotRetryOtherErrors(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, rpcURL,
		rpcResponder(t, "cosign", `{"jsonrpc":"2.0","id":1,"error":{"code":-32001,"message":"Validation failed: rate mismatch"}}`))

	c := newRPCClient(t, 3)

	_, err := c.CoSign(context.Background(), model.OperationStake, "cHNidP8=")
	require.ErrorIs(t, err, errors.ErrServiceError)
	assert.Contains(t, err.Error(), "Validation failed")
	assert.Equal(t, 1, httpmock.GetTotalCallCount())

	_, err = c.CoSign(context.Background(), model.Operation("mint"), "cHNidP8=")
	require.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestRPCCoSignEmptyResult(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, rpcURL,
		rpcResponder(t, "cosign", `{"jsonrpc":"2.0","id":1,"result":{}}`))

	_, err := newRPCClient(t, 1).CoSign(context.Background(), model.OperationStake, "cHNidP8=")
	require.ErrorIs(t, err, errors.ErrServiceError)
}

func TestRPCExchangeRateComponents(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, rpcURL,
		rpcResponder(t, "exchange_rate_components",
			`{"jsonrpc":"2.0","id":1,"result":{"circulating":"340282366920938463463374607431768211456","balance":"1100"}}`))

	c, err := newRPCClient(t, 1).ExchangeRateComponents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "340282366920938463463374607431768211456", c.Circulating.Dec())
	assert.Equal(t, "1100", c.Balance.Dec())
}

func TestRPCExchangeRateComponentsInvalid(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, rpcURL,
		rpcResponder(t, "exchange_rate_components", `{"jsonrpc":"2.0","id":1,"result":{"circulating":"abc","balance":"1"}}`))

	_, err := newRPCClient(t, 1).ExchangeRateComponents(context.Background())
	require.ErrorIs(t, err, errors.ErrServiceError)
}

func TestRPCHealth(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, rpcURL,
		rpcResponder(t, "health", `{"jsonrpc":"2.0","id":1,"result":"ok"}`))

	status, _, err := newRPCClient(t, 1).Health(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	httpmock.RegisterResponder(http.MethodPost, rpcURL, httpmock.NewStringResponder(http.StatusBadGateway, "down"))

	status, _, err = newRPCClient(t, 1).Health(context.Background(), true)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}
