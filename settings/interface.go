package settings

import (
	"net/url"
	"time"

	"github.com/runestake/settlement/chaincfg"
)

type Settings struct {
	ClientName     string
	DataFolder     string
	LogLevel       string
	LoggerType     string
	ChainCfgParams *chaincfg.Params
	Runes          RuneSettings
	Builder        BuilderSettings
	Settlement     SettlementSettings
	Lock           LockSettings
	Ledger         LedgerSettings
	Indexer        IndexerSettings
	Custodian      CustodianSettings
	RateTracker    RateTrackerSettings
	API            APISettings
}

// RuneSettings names the two tokens of the protocol as "block:tx" rune ids.
type RuneSettings struct {
	BaseRuneID    string
	ReceiptRuneID string
}

type BuilderSettings struct {
	MaxInputs          int
	DesiredOutputCount int
	PostageSats        int64
	DustLimitSats      int64
	DefaultFeeRate     int64
	Strategy           string
	LockTTL            time.Duration
	CostOfChange       int64
	Tolerance          float64
}

type SettlementSettings struct {
	ExtendLockTTL  time.Duration
	GraceLockTTL   time.Duration
	CooldownBlocks int
	Timeout        time.Duration
}

type LockSettings struct {
	StoreURL *url.URL
	Prefix   string
}

type LedgerSettings struct {
	StoreURL             *url.URL
	PostgresMaxIdleConns int
	PostgresMaxOpenConns int
	RateCacheTTL         time.Duration
}

type IndexerSettings struct {
	URL             *url.URL
	RequestsPerSec  int
	Burst           int
	FeeRateCacheTTL time.Duration
	Timeout         time.Duration
}

type CustodianSettings struct {
	Mode             string
	URL              *url.URL
	Address          string
	RetentionAddress string
	PrivateKeyWIF    string
	Circulating      string
	Balance          string
	RetryAttempts    int
	RetryBackoff     time.Duration
	Timeout          time.Duration
}

type RateTrackerSettings struct {
	Enabled      bool
	PollInterval time.Duration
}

type APISettings struct {
	HTTPListenAddress string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}
