package main

import (
	"context"
	"fmt"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/ordishs/gocore"
	"github.com/runestake/settlement/daemon"
	"github.com/runestake/settlement/services/builder"
	"github.com/runestake/settlement/services/earnings"
	"github.com/runestake/settlement/services/settlement"
	"github.com/runestake/settlement/settings"
	"github.com/runestake/settlement/ulogger"
	"github.com/urfave/cli/v2"
)

// Name used by build script for the binaries. (Please keep on single line)
const progname = "settlement"

// Version & commit strings injected at build with -ldflags -X...
var (
	version string
	commit  string
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func init() {
	gocore.SetInfo(progname, version, commit)
}

func main() {
	app := &cli.App{
		Name:    progname,
		Usage:   "custodial staking settlement engine for rune tokens",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the rate tracker",
				Action: serve,
			},
			{
				Name:   "earnings",
				Usage:  "Print the staking earnings of an address",
				Action: printEarnings,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "address",
						Usage:    "Address of the staker",
						Required: true,
					},
				},
			},
			{
				Name:   "rates",
				Usage:  "Print the recorded exchange rate history",
				Action: printRates,
			},
			{
				Name:   "confirm-pending",
				Usage:  "Record the blocks of pending settlements that have been mined",
				Action: confirmPending,
			},
		},
		Action: serve,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func newLogger(tSettings *settings.Settings, service string) ulogger.Logger {
	return ulogger.New(service, ulogger.WithLevel(tSettings.LogLevel), ulogger.WithLoggerType(tSettings.LoggerType))
}

func serve(c *cli.Context) error {
	tSettings := settings.NewSettings()
	logger := newLogger(tSettings, progname)

	stats := gocore.Config().Stats()
	logger.Infof("STATS\n%s\nVERSION\n-------\n%s (%s)\n\n", stats, version, commit)

	d := daemon.New(
		daemon.WithContext(c.Context),
		daemon.WithLoggerFactory(func(service string) ulogger.Logger {
			return newLogger(tSettings, service)
		}),
	)

	return d.Start(logger, tSettings)
}

func printEarnings(c *cli.Context) error {
	tSettings := settings.NewSettings()
	logger := newLogger(tSettings, progname)

	stores := &daemon.Stores{}
	defer stores.Close(logger)

	ledgerStore, err := stores.GetLedgerStore(logger, tSettings)
	if err != nil {
		return err
	}

	rateStore, err := stores.GetRateStore(logger, tSettings)
	if err != nil {
		return err
	}

	e, err := earnings.New(logger, tSettings.ChainCfgParams, ledgerStore, rateStore).Earnings(c.Context, c.String("address"))
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{
		"realized":     e.Realized,
		"unrealized":   e.Unrealized,
		"total":        e.Total,
		"invested":     e.Invested,
		"percentage":   e.Percentage.Round(4),
		"current_rate": e.CurrentRate,
		"open_lots":    len(e.OpenLots),
	})
}

func printRates(c *cli.Context) error {
	tSettings := settings.NewSettings()
	logger := newLogger(tSettings, progname)

	stores := &daemon.Stores{}
	defer stores.Close(logger)

	rateStore, err := stores.GetRateStore(logger, tSettings)
	if err != nil {
		return err
	}

	samples, err := rateStore.HistoricSamples(c.Context)
	if err != nil {
		return err
	}

	for _, s := range samples {
		fmt.Printf("%d\t%s\n", s.Block, s.Rate)
	}

	return nil
}

func confirmPending(c *cli.Context) error {
	tSettings := settings.NewSettings()
	logger := newLogger(tSettings, progname)

	stores := &daemon.Stores{}
	defer stores.Close(logger)

	indexerClient, err := stores.GetIndexerClient(logger, tSettings)
	if err != nil {
		return err
	}

	custodianClient, err := stores.GetCustodianClient(logger, tSettings)
	if err != nil {
		return err
	}

	lockStore, err := stores.GetLockStore(logger, tSettings)
	if err != nil {
		return err
	}

	ledgerStore, err := stores.GetLedgerStore(logger, tSettings)
	if err != nil {
		return err
	}

	txBuilder, err := builder.New(logger, tSettings, indexerClient, lockStore)
	if err != nil {
		return err
	}

	s, err := settlement.New(logger, tSettings, txBuilder, indexerClient, custodianClient, lockStore, ledgerStore)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, 5*time.Minute)
	defer cancel()

	n, err := s.ConfirmPending(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%d settlements confirmed\n", n)

	return nil
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(b))

	return nil
}
