package sql

import (
	"context"
	"net/http"
	"net/url"

	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/settings"
	"github.com/runestake/settlement/ulogger"
	"github.com/runestake/settlement/util"
	"github.com/runestake/settlement/util/usql"
)

type SQL struct {
	db     *usql.DB
	engine util.SQLEngine
	logger ulogger.Logger
}

func New(logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (*SQL, error) {
	logger = logger.New("ledger")

	db, err := util.InitSQLDB(logger, storeURL, tSettings)
	if err != nil {
		return nil, errors.NewStorageError("failed to init sql db", err)
	}

	engine := util.Engine(storeURL)

	if err = createSchema(db, engine); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQL{
		db:     db,
		engine: engine,
		logger: logger,
	}, nil
}

// NewWithDB uses an already opened database whose schema is managed elsewhere.
func NewWithDB(logger ulogger.Logger, db *usql.DB, engine util.SQLEngine) *SQL {
	return &SQL{
		db:     db,
		engine: engine,
		logger: logger,
	}
}

func (s *SQL) DB() *usql.DB {
	return s.db
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) Health(ctx context.Context, _ bool) (int, string, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return http.StatusServiceUnavailable, "Ledger DB unreachable", errors.NewStorageError("ledger ping failed", err)
	}

	return http.StatusOK, "OK", nil
}

func createSchema(db *usql.DB, engine util.SQLEngine) error {
	id, blob := "INTEGER PRIMARY KEY AUTOINCREMENT", "BLOB"
	if engine == util.Postgres {
		id, blob = "BIGSERIAL PRIMARY KEY", "BYTEA"
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ledger (
		 id             ` + id + `
		,kind           VARCHAR(16) NOT NULL
		,address        VARCHAR(128) NOT NULL
		,amount         TEXT NOT NULL
		,staked_amount  TEXT NOT NULL
		,block          BIGINT NULL
		,txid           VARCHAR(64) NOT NULL
		,psbt           ` + blob + ` NULL
		,claim_txid     VARCHAR(64) NULL
		,claim_block    BIGINT NULL
		,created_at     BIGINT NOT NULL
		);
	`); err != nil {
		return errors.NewStorageError("could not create ledger table", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_ledger_address ON ledger (address, id);`); err != nil {
		return errors.NewStorageError("could not create idx_ledger_address index", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_ledger_txid ON ledger (txid);`); err != nil {
		return errors.NewStorageError("could not create idx_ledger_txid index", err)
	}

	return nil
}
