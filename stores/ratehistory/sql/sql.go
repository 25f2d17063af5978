package sql

import (
	"context"
	"database/sql"
	"net/http"
	"net/url"
	"time"

	"github.com/holiman/uint256"
	"github.com/patrickmn/go-cache"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
	"github.com/runestake/settlement/settings"
	"github.com/runestake/settlement/ulogger"
	"github.com/runestake/settlement/util"
	"github.com/runestake/settlement/util/usql"
	"github.com/shopspring/decimal"
)

const (
	samplesCacheKey = "samples"
	rateScale       = 18
)

type SQL struct {
	db     *usql.DB
	logger ulogger.Logger
	cache  *cache.Cache
}

func New(logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (*SQL, error) {
	logger = logger.New("rates")

	db, err := util.InitSQLDB(logger, storeURL, tSettings)
	if err != nil {
		return nil, errors.NewStorageError("failed to init sql db", err)
	}

	if err = createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return NewWithDB(logger, db, tSettings.Ledger.RateCacheTTL), nil
}

func NewWithDB(logger ulogger.Logger, db *usql.DB, cacheTTL time.Duration) *SQL {
	return &SQL{
		db:     db,
		logger: logger,
		cache:  cache.New(cacheTTL, 2*cacheTTL),
	}
}

func createSchema(db *usql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rate_history (
		 block          BIGINT PRIMARY KEY
		,rate           TEXT NOT NULL
		,balance        TEXT NOT NULL
		,staked         TEXT NOT NULL
		,created_at     BIGINT NOT NULL
		);
	`); err != nil {
		return errors.NewStorageError("could not create rate_history table", err)
	}

	return nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) Health(ctx context.Context, _ bool) (int, string, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return http.StatusServiceUnavailable, "Rate history DB unreachable", errors.NewStorageError("rate history ping failed", err)
	}

	return http.StatusOK, "OK", nil
}

// Rate is balance/staked. Nothing staked yet redeems one for one.
func Rate(balance, staked *uint256.Int) decimal.Decimal {
	if staked == nil || staked.IsZero() {
		return decimal.NewFromInt(1)
	}

	return decimal.NewFromBigInt(balance.ToBig(), 0).DivRound(decimal.NewFromBigInt(staked.ToBig(), 0), rateScale)
}

func (s *SQL) AppendSample(ctx context.Context, block uint32, balance, staked *uint256.Int) (bool, error) {
	if balance == nil || staked == nil {
		return false, errors.NewInvalidArgumentError("rate sample at block %d needs balance and staked amounts", block)
	}

	rate := Rate(balance, staked)

	var (
		lastBlock int64
		lastRate  string
	)

	err := s.db.QueryRowContext(ctx, `SELECT block, rate FROM rate_history ORDER BY block DESC LIMIT 1`).Scan(&lastBlock, &lastRate)

	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return false, errors.NewStorageError("failed to read last rate sample", err)
	default:
		if int64(block) <= lastBlock {
			return false, nil
		}

		if last, err := decimal.NewFromString(lastRate); err == nil && last.Equal(rate) {
			return false, nil
		}
	}

	if _, err = s.db.ExecContext(ctx, `
		INSERT INTO rate_history (block, rate, balance, staked, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (block) DO NOTHING
	`, int64(block), rate.String(), balance.Dec(), staked.Dec(), time.Now().UnixMilli()); err != nil {
		return false, errors.NewStorageError("failed to append rate sample at block %d", block, err)
	}

	s.cache.Delete(samplesCacheKey)

	s.logger.Debugf("[RateHistory] rate %s at block %d", rate, block)

	return true, nil
}

func (s *SQL) HistoricSamples(ctx context.Context) ([]model.RateSample, error) {
	if cached, ok := s.cache.Get(samplesCacheKey); ok {
		return cached.([]model.RateSample), nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT block, rate FROM rate_history ORDER BY block`)
	if err != nil {
		return nil, errors.NewStorageError("failed to read rate history", err)
	}

	defer rows.Close()

	samples := make([]model.RateSample, 0)

	for rows.Next() {
		var (
			block int64
			rate  string
		)

		if err = rows.Scan(&block, &rate); err != nil {
			return nil, errors.NewStorageError("failed to read rate sample", err)
		}

		d, err := decimal.NewFromString(rate)
		if err != nil {
			return nil, errors.NewStorageError("invalid rate %q at block %d", rate, block, err)
		}

		samples = append(samples, model.RateSample{Block: uint32(block), Rate: d})
	}

	if err = rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to read rate history", err)
	}

	s.cache.SetDefault(samplesCacheKey, samples)

	return samples, nil
}
