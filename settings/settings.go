package settings

import (
	"strconv"
	"time"

	"github.com/runestake/settlement/chaincfg"
)

func NewSettings() *Settings {
	params, err := chaincfg.GetChainParams(getString("network", "mainnet"))
	if err != nil {
		panic(err)
	}

	tolerance, err := strconv.ParseFloat(getString("builder_tolerance", "2.0"), 64)
	if err != nil {
		panic(err)
	}

	return &Settings{
		ClientName:     getString("clientName", "settlement"),
		DataFolder:     getString("dataFolder", "data"),
		LogLevel:       getString("logLevel", "INFO"),
		LoggerType:     getString("logger_type", "zerolog"),
		ChainCfgParams: params,
		Runes: RuneSettings{
			BaseRuneID:    getString("rune_base_id", "840000:3"),
			ReceiptRuneID: getString("rune_receipt_id", "840000:4"),
		},
		Builder: BuilderSettings{
			MaxInputs:          getInt("builder_maxInputs", 10),
			DesiredOutputCount: getInt("builder_desiredOutputCount", 10),
			PostageSats:        int64(getInt("builder_postageSats", 546)),
			DustLimitSats:      int64(getInt("builder_dustLimitSats", 546)),
			DefaultFeeRate:     int64(getInt("builder_defaultFeeRate", 0)), // 0 means ask the indexer
			Strategy:           getString("builder_strategy", "best"),
			LockTTL:            getDuration("builder_lockTTL", 180*time.Second),
			CostOfChange:       int64(getInt("builder_costOfChange", 0)),
			Tolerance:          tolerance,
		},
		Settlement: SettlementSettings{
			ExtendLockTTL:  getDuration("settlement_extendLockTTL", 180*time.Second),
			GraceLockTTL:   getDuration("settlement_graceLockTTL", 300*time.Second),
			CooldownBlocks: getInt("settlement_cooldownBlocks", 1008),
			Timeout:        getDuration("settlement_timeout", 60*time.Second),
		},
		Lock: LockSettings{
			StoreURL: getURL("lockstore", "memory://"),
			Prefix:   getString("lockstore_prefix", "utxo-lock:"),
		},
		Ledger: LedgerSettings{
			StoreURL:             getURL("ledgerstore", "sqlite:///settlement"),
			PostgresMaxIdleConns: getInt("ledgerstore_postgresMaxIdleConns", 10),
			PostgresMaxOpenConns: getInt("ledgerstore_postgresMaxOpenConns", 80),
			RateCacheTTL:         getDuration("ledgerstore_rateCacheTTL", 30*time.Second),
		},
		Indexer: IndexerSettings{
			URL:             getURL("indexer_url", "http://localhost:3000"),
			RequestsPerSec:  getInt("indexer_requestsPerSec", 20),
			Burst:           getInt("indexer_burst", 5),
			FeeRateCacheTTL: getDuration("indexer_feeRateCacheTTL", 30*time.Second),
			Timeout:         getDuration("indexer_timeout", 15*time.Second),
		},
		Custodian: CustodianSettings{
			Mode:             getString("custodian_mode", "rpc"),
			URL:              getURL("custodian_url", "http://localhost:8090"),
			Address:          getString("custodian_address", ""),
			RetentionAddress: getString("custodian_retentionAddress", ""),
			PrivateKeyWIF:    getString("custodian_privateKey", ""),
			Circulating:      getString("custodian_circulating", "1"),
			Balance:          getString("custodian_balance", "1"),
			RetryAttempts:    getInt("custodian_retryAttempts", 3),
			RetryBackoff:     getDuration("custodian_retryBackoff", 10*time.Second),
			Timeout:          getDuration("custodian_timeout", 30*time.Second),
		},
		RateTracker: RateTrackerSettings{
			Enabled:      getBool("ratetracker_enabled", true),
			PollInterval: getDuration("ratetracker_pollInterval", time.Minute),
		},
		API: APISettings{
			HTTPListenAddress: getString("api_httpListenAddress", ":8080"),
			ReadTimeout:       getDuration("api_readTimeout", 30*time.Second),
			WriteTimeout:      getDuration("api_writeTimeout", 90*time.Second),
		},
	}
}
