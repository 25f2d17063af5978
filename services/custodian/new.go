package custodian

import (
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/settings"
	"github.com/runestake/settlement/ulogger"
)

func NewClient(logger ulogger.Logger, tSettings *settings.Settings) (ClientI, error) {
	switch tSettings.Custodian.Mode {
	case "rpc":
		return NewRPCClient(logger, tSettings)
	case "local":
		return NewLocalSigner(logger, tSettings)
	}

	return nil, errors.NewConfigurationError("unknown custodian mode %q", tSettings.Custodian.Mode)
}
