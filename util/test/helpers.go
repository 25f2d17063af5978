package test

import (
	"net/url"
	"testing"

	"github.com/runestake/settlement/chaincfg"
	"github.com/runestake/settlement/settings"
)

// CreateBaseTestSettings returns regtest settings with in-memory stores and a
// throwaway data folder.
func CreateBaseTestSettings(t *testing.T) *settings.Settings {
	tSettings := settings.NewSettings()
	tSettings.ChainCfgParams = &chaincfg.RegressionNetParams
	tSettings.DataFolder = t.TempDir()
	tSettings.Ledger.StoreURL = &url.URL{Scheme: "sqlitememory", Path: "/ledger"}
	tSettings.Lock.StoreURL = &url.URL{Scheme: "memory"}
	tSettings.Custodian.Mode = "local"

	return tSettings
}
