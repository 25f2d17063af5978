package lock

import (
	"net/url"

	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/settings"
	"github.com/runestake/settlement/stores/lock/memory"
	"github.com/runestake/settlement/stores/lock/redis"
	"github.com/runestake/settlement/ulogger"
)

func NewStore(logger ulogger.Logger, tSettings *settings.Settings, storeURL *url.URL) (Store, error) {
	if storeURL == nil {
		return nil, errors.NewConfigurationError("lockstore setting is missing")
	}

	switch storeURL.Scheme {
	case "redis":
		return redis.New(logger, storeURL, tSettings.Lock.Prefix)
	case "memory":
		return memory.New(), nil
	}

	return nil, errors.NewConfigurationError("unknown lock store scheme: %s", storeURL.Scheme)
}
