package ledger

import (
	"net/url"

	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/settings"
	"github.com/runestake/settlement/stores/ledger/sql"
	"github.com/runestake/settlement/ulogger"
)

func NewStore(logger ulogger.Logger, tSettings *settings.Settings, storeURL *url.URL) (Store, error) {
	if storeURL == nil {
		return nil, errors.NewConfigurationError("ledgerstore setting is missing")
	}

	switch storeURL.Scheme {
	case "postgres", "sqlite", "sqlitememory":
		return sql.New(logger, storeURL, tSettings)
	}

	return nil, errors.NewConfigurationError("unknown ledger store scheme: %s", storeURL.Scheme)
}
