package custodian

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"
	jsoniter "github.com/json-iterator/go"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
	"github.com/runestake/settlement/settings"
	"github.com/runestake/settlement/ulogger"
	"github.com/runestake/settlement/util"
	"github.com/runestake/settlement/util/retry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// outOfSync is the only custodian fault worth retrying; it clears once the
// custodian's own indexer catches up.
const outOfSync = "indexer out of sync"

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     int64               `json:"id"`
	Result jsoniter.RawMessage `json:"result"`
	Error  *rpcError           `json:"error"`
}

type RPCClient struct {
	logger           ulogger.Logger
	url              string
	address          string
	retentionAddress string
	attempts         int
	backoff          time.Duration
	timeout          time.Duration
	nextID           atomic.Int64
}

func NewRPCClient(logger ulogger.Logger, tSettings *settings.Settings) (*RPCClient, error) {
	initPrometheusMetrics()

	cs := tSettings.Custodian

	if cs.URL == nil {
		return nil, errors.NewConfigurationError("custodian_url is required in rpc mode")
	}

	if cs.Address == "" {
		return nil, errors.NewConfigurationError("custodian_address is required in rpc mode")
	}

	retention := cs.RetentionAddress
	if retention == "" {
		retention = cs.Address
	}

	return &RPCClient{
		logger:           logger.New("custodian"),
		url:              cs.URL.String(),
		address:          cs.Address,
		retentionAddress: retention,
		attempts:         max(cs.RetryAttempts, 1),
		backoff:          cs.RetryBackoff,
		timeout:          cs.Timeout,
	}, nil
}

func (c *RPCClient) Address() string {
	return c.address
}

func (c *RPCClient) RetentionAddress() string {
	return c.retentionAddress
}

func (c *RPCClient) Health(ctx context.Context, _ bool) (int, string, error) {
	if _, err := c.call(ctx, "health", struct{}{}); err != nil {
		return http.StatusServiceUnavailable, "Custodian unreachable", err
	}

	return http.StatusOK, "OK", nil
}

// call performs one JSON-RPC round trip.
func (c *RPCClient) call(ctx context.Context, method string, params interface{}) (jsoniter.RawMessage, error) {
	prometheusCustodianCalls.WithLabelValues(method).Inc()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, errors.NewProcessingError("[Custodian] could not encode %s request", method, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	b, err := util.DoHTTPRequest(ctx, c.url, body)
	if err != nil {
		prometheusCustodianErrors.WithLabelValues(method).Inc()
		return nil, err
	}

	var resp rpcResponse
	if err = json.Unmarshal(b, &resp); err != nil {
		prometheusCustodianErrors.WithLabelValues(method).Inc()
		return nil, errors.NewServiceError("[Custodian] invalid %s response", method, err)
	}

	if resp.Error != nil {
		prometheusCustodianErrors.WithLabelValues(method).Inc()
		return nil, errors.NewServiceError("[Custodian] %s failed (%d): %s", method, resp.Error.Code, resp.Error.Message)
	}

	return resp.Result, nil
}

// callWithRetry retries a call only while the custodian reports its indexer
// out of sync.
func (c *RPCClient) callWithRetry(ctx context.Context, method string, params interface{}) (jsoniter.RawMessage, error) {
	attempt := 0

	return retry.Retry(ctx, c.logger, func() (jsoniter.RawMessage, error) {
		if attempt > 0 {
			prometheusCustodianRetries.Inc()
		}

		attempt++

		return c.call(ctx, method, params)
	},
		retry.WithRetryCount(c.attempts),
		retry.WithFixedBackoff(c.backoff),
		retry.WithMessage("[Custodian] "+method+" waiting for custodian indexer"),
		retry.WithRetryIf(func(err error) bool {
			return strings.Contains(err.Error(), outOfSync)
		}),
	)
}

func (c *RPCClient) CoSign(ctx context.Context, op model.Operation, psbtB64 string) (string, error) {
	if !op.Valid() {
		return "", errors.NewInvalidArgumentError("unknown operation %q", op)
	}

	result, err := c.callWithRetry(ctx, "cosign", map[string]string{
		"operation": string(op),
		"psbt":      psbtB64,
	})
	if err != nil {
		return "", err
	}

	var signed struct {
		Psbt string `json:"psbt"`
	}

	if err = json.Unmarshal(result, &signed); err != nil {
		return "", errors.NewServiceError("[Custodian] invalid cosign response", err)
	}

	if signed.Psbt == "" {
		return "", errors.NewServiceError("[Custodian] cosign returned no psbt")
	}

	return signed.Psbt, nil
}

func (c *RPCClient) ExchangeRateComponents(ctx context.Context) (*Components, error) {
	result, err := c.callWithRetry(ctx, "exchange_rate_components", struct{}{})
	if err != nil {
		return nil, err
	}

	var raw struct {
		Circulating string `json:"circulating"`
		Balance     string `json:"balance"`
	}

	if err = json.Unmarshal(result, &raw); err != nil {
		return nil, errors.NewServiceError("[Custodian] invalid exchange rate components", err)
	}

	return parseComponents(raw.Circulating, raw.Balance)
}

func parseComponents(circulating, balance string) (*Components, error) {
	c, err := uint256.FromDecimal(circulating)
	if err != nil {
		return nil, errors.NewServiceError("invalid circulating supply %q", circulating, err)
	}

	b, err := uint256.FromDecimal(balance)
	if err != nil {
		return nil, errors.NewServiceError("invalid custodian balance %q", balance, err)
	}

	return &Components{Circulating: c, Balance: b}, nil
}
