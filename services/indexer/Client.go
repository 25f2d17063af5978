package indexer

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/holiman/uint256"
	"github.com/jellydator/ttlcache/v3"
	jsoniter "github.com/json-iterator/go"
	"github.com/runestake/settlement/chaincfg"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
	"github.com/runestake/settlement/runes"
	"github.com/runestake/settlement/settings"
	"github.com/runestake/settlement/ulogger"
	"github.com/runestake/settlement/util"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	cacheKeyTip     = "tip"
	cacheKeyFeeRate = "fee"
)

// Client talks to an esplora style indexer that also serves rune balances.
type Client struct {
	logger  ulogger.Logger
	baseURL string
	params  *chaincfg.Params
	timeout time.Duration
	limiter *rate.Limiter
	cache   *ttlcache.Cache[string, int64]
}

func NewClient(logger ulogger.Logger, tSettings *settings.Settings) (*Client, error) {
	initPrometheusMetrics()

	if tSettings.Indexer.URL == nil {
		return nil, errors.NewConfigurationError("indexer_url is required")
	}

	limit := rate.Inf
	if tSettings.Indexer.RequestsPerSec > 0 {
		limit = rate.Limit(tSettings.Indexer.RequestsPerSec)
	}

	return &Client{
		logger:  logger.New("indexer"),
		baseURL: strings.TrimSuffix(tSettings.Indexer.URL.String(), "/"),
		params:  tSettings.ChainCfgParams,
		timeout: tSettings.Indexer.Timeout,
		limiter: rate.NewLimiter(limit, max(tSettings.Indexer.Burst, 1)),
		cache: ttlcache.New[string, int64](
			ttlcache.WithTTL[string, int64](tSettings.Indexer.FeeRateCacheTTL),
			ttlcache.WithDisableTouchOnHit[string, int64](),
		),
	}, nil
}

func (c *Client) Health(ctx context.Context, _ bool) (int, string, error) {
	if _, err := c.TipHeight(ctx); err != nil {
		return http.StatusServiceUnavailable, "Indexer unreachable", err
	}

	return http.StatusOK, "OK", nil
}

func (c *Client) do(ctx context.Context, call string, path string, body ...[]byte) ([]byte, error) {
	prometheusIndexerRequests.WithLabelValues(call).Inc()

	if c.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		prometheusIndexerErrors.WithLabelValues(call).Inc()
		return nil, errors.NewContextCanceledError("[Indexer] %s rate limit wait aborted", call, err)
	}

	var (
		b   []byte
		err error
	)

	if len(body) > 0 {
		b, err = util.DoHTTPRequestWithContentType(ctx, c.baseURL+path, "text/plain", body...)
	} else {
		b, err = util.DoHTTPRequest(ctx, c.baseURL+path)
	}

	if err != nil {
		prometheusIndexerErrors.WithLabelValues(call).Inc()
		return nil, err
	}

	return b, nil
}

type runeOutput struct {
	TxID    string            `json:"txid"`
	Vout    uint32            `json:"vout"`
	Value   int64             `json:"value"`
	Address string            `json:"address"`
	Height  *uint32           `json:"height"`
	Runes   map[string]string `json:"runes"`
}

type plainOutput struct {
	TxID   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Value  int64  `json:"value"`
	Status struct {
		Confirmed   bool   `json:"confirmed"`
		BlockHeight uint32 `json:"block_height"`
	} `json:"status"`
}

func (c *Client) utxo(txID string, vout uint32, value int64, address string, height *uint32) (model.Utxo, error) {
	hash, err := chainhash.NewHashFromStr(txID)
	if err != nil {
		return model.Utxo{}, errors.NewServiceError("[Indexer] invalid txid %q", txID, err)
	}

	pkScript, err := c.params.PkScript(address)
	if err != nil {
		return model.Utxo{}, err
	}

	return model.Utxo{
		TxID:     *hash,
		Vout:     vout,
		Value:    value,
		Address:  address,
		PkScript: pkScript,
		Height:   height,
	}, nil
}

func (c *Client) RuneOutputs(ctx context.Context, address string) ([]model.Utxo, error) {
	b, err := c.do(ctx, "rune_outputs", "/address/"+url.PathEscape(address)+"/runes/utxo")
	if err != nil {
		return nil, err
	}

	var outputs []runeOutput
	if err = json.Unmarshal(b, &outputs); err != nil {
		return nil, errors.NewServiceError("[Indexer] invalid rune outputs of %s", address, err)
	}

	utxos := make([]model.Utxo, 0, len(outputs))

	for _, o := range outputs {
		if o.Address == "" {
			o.Address = address
		}

		u, err := c.utxo(o.TxID, o.Vout, o.Value, o.Address, o.Height)
		if err != nil {
			return nil, err
		}

		u.Runes = make(map[runes.RuneID]*uint256.Int, len(o.Runes))

		for id, amount := range o.Runes {
			runeID, err := runes.ParseRuneID(id)
			if err != nil {
				return nil, errors.NewServiceError("[Indexer] invalid rune id %q on %s:%d", id, o.TxID, o.Vout, err)
			}

			value, err := uint256.FromDecimal(amount)
			if err != nil {
				return nil, errors.NewServiceError("[Indexer] invalid rune amount %q on %s:%d", amount, o.TxID, o.Vout, err)
			}

			u.Runes[runeID] = value
		}

		utxos = append(utxos, u)
	}

	return utxos, nil
}

func (c *Client) PlainOutputs(ctx context.Context, address string) ([]model.Utxo, error) {
	b, err := c.do(ctx, "plain_outputs", "/address/"+url.PathEscape(address)+"/utxo")
	if err != nil {
		return nil, err
	}

	var outputs []plainOutput
	if err = json.Unmarshal(b, &outputs); err != nil {
		return nil, errors.NewServiceError("[Indexer] invalid outputs of %s", address, err)
	}

	utxos := make([]model.Utxo, 0, len(outputs))

	for _, o := range outputs {
		var height *uint32

		if o.Status.Confirmed {
			h := o.Status.BlockHeight
			height = &h
		}

		u, err := c.utxo(o.TxID, o.Vout, o.Value, address, height)
		if err != nil {
			return nil, err
		}

		utxos = append(utxos, u)
	}

	return utxos, nil
}

func (c *Client) GetTransaction(ctx context.Context, txID string) (*Transaction, error) {
	b, err := c.do(ctx, "get_transaction", "/tx/"+url.PathEscape(txID)+"/status")
	if err != nil {
		return nil, err
	}

	var status struct {
		Confirmed   bool   `json:"confirmed"`
		BlockHeight uint32 `json:"block_height"`
	}

	if err = json.Unmarshal(b, &status); err != nil {
		return nil, errors.NewServiceError("[Indexer] invalid status of %s", txID, err)
	}

	return &Transaction{
		TxID:        txID,
		Confirmed:   status.Confirmed,
		BlockHeight: status.BlockHeight,
	}, nil
}

func (c *Client) TipHeight(ctx context.Context) (uint32, error) {
	if item := c.cache.Get(cacheKeyTip); item != nil {
		prometheusIndexerCacheHits.WithLabelValues("tip_height").Inc()
		return uint32(item.Value()), nil
	}

	b, err := c.do(ctx, "tip_height", "/blocks/tip/height")
	if err != nil {
		return 0, err
	}

	height, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 32)
	if err != nil {
		return 0, errors.NewServiceError("[Indexer] invalid tip height %q", string(b), err)
	}

	c.cache.Set(cacheKeyTip, int64(height), ttlcache.DefaultTTL)

	return uint32(height), nil
}

func (c *Client) RecommendedFeeRate(ctx context.Context) (int64, error) {
	if item := c.cache.Get(cacheKeyFeeRate); item != nil {
		prometheusIndexerCacheHits.WithLabelValues("fee_rate").Inc()
		return item.Value(), nil
	}

	b, err := c.do(ctx, "fee_rate", "/v1/fees/recommended")
	if err != nil {
		return 0, err
	}

	var fees struct {
		FastestFee  float64 `json:"fastestFee"`
		HalfHourFee float64 `json:"halfHourFee"`
		MinimumFee  float64 `json:"minimumFee"`
	}

	if err = json.Unmarshal(b, &fees); err != nil {
		return 0, errors.NewServiceError("[Indexer] invalid fee estimate", err)
	}

	feeRate := int64(math.Ceil(max(fees.FastestFee, fees.MinimumFee, 1)))

	c.cache.Set(cacheKeyFeeRate, feeRate, ttlcache.DefaultTTL)

	return feeRate, nil
}

func (c *Client) Broadcast(ctx context.Context, txHex string) (string, error) {
	b, err := c.do(ctx, "broadcast", "/tx", []byte(txHex))
	if err != nil {
		return "", err
	}

	txID := strings.TrimSpace(string(b))
	if _, err = chainhash.NewHashFromStr(txID); err != nil {
		return "", errors.NewServiceError("[Indexer] unexpected broadcast response %q", txID)
	}

	c.logger.Infof("[Indexer] broadcast %s", txID)

	return txID, nil
}
