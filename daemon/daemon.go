// Package daemon assembles the settlement engine: it creates the shared
// clients and stores, registers the services with a service manager and runs
// them until the process is asked to stop.
package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/services/api"
	"github.com/runestake/settlement/services/builder"
	"github.com/runestake/settlement/services/earnings"
	"github.com/runestake/settlement/services/ratetracker"
	"github.com/runestake/settlement/services/settlement"
	"github.com/runestake/settlement/settings"
	"github.com/runestake/settlement/ulogger"
	"github.com/runestake/settlement/util/health"
	"github.com/runestake/settlement/util/servicemanager"
)

// Option is a functional option type for configuring the Daemon.
type Option func(*Daemon)

// WithLoggerFactory provides a custom logger factory for the Daemon and its services.
func WithLoggerFactory(factory func(serviceName string) ulogger.Logger) Option {
	return func(d *Daemon) {
		d.loggerFactory = factory
	}
}

func WithContext(ctx context.Context) Option {
	return func(d *Daemon) {
		d.Ctx = ctx
	}
}

// WithStores lets callers, mostly tests, hand in prepared clients and stores.
func WithStores(stores *Stores) Option {
	return func(d *Daemon) {
		d.stores = stores
	}
}

type Daemon struct {
	Ctx            context.Context
	ServiceManager *servicemanager.ServiceManager
	loggerFactory  func(serviceName string) ulogger.Logger
	stores         *Stores
	stopOnce       sync.Once
	stopCh         chan struct{}
}

func New(opts ...Option) *Daemon {
	d := &Daemon{
		Ctx: context.Background(),
		loggerFactory: func(serviceName string) ulogger.Logger {
			return ulogger.New(serviceName)
		},
		stores: &Stores{},
		stopCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.ServiceManager = servicemanager.NewServiceManager(d.Ctx, d.loggerFactory("ServiceManager"))

	return d
}

// Stores returns the clients and stores shared by the services.
func (d *Daemon) Stores() *Stores {
	return d.stores
}

// Start registers the services and blocks until they have all returned. An
// optional readyCh is closed once every service is ready.
func (d *Daemon) Start(logger ulogger.Logger, tSettings *settings.Settings, readyCh ...chan struct{}) error {
	defer d.stopOnce.Do(func() { close(d.stopCh) })
	defer d.stores.Close(logger)

	sm := d.ServiceManager

	if err := d.startServices(logger, tSettings, sm); err != nil {
		logger.Errorf("error starting services: %v", err)
		sm.ForceShutdown()

		_ = sm.Wait()

		return err
	}

	if len(readyCh) > 0 {
		go func() {
			sm.WaitForServiceToBeReady()
			close(readyCh[0])
		}()
	}

	return sm.Wait()
}

// Stop cancels all services and waits up to timeout for them to return.
func (d *Daemon) Stop(timeout time.Duration) error {
	d.ServiceManager.ForceShutdown()

	select {
	case <-d.stopCh:
		return nil
	case <-time.After(timeout):
		return errors.NewProcessingError("timeout waiting for services to stop after %v", timeout)
	}
}

func (d *Daemon) startServices(logger ulogger.Logger, tSettings *settings.Settings, sm *servicemanager.ServiceManager) error {
	createLogger := d.loggerFactory

	indexerClient, err := d.stores.GetIndexerClient(createLogger("indexer"), tSettings)
	if err != nil {
		return err
	}

	custodianClient, err := d.stores.GetCustodianClient(createLogger("custodian"), tSettings)
	if err != nil {
		return err
	}

	lockStore, err := d.stores.GetLockStore(createLogger("lockstore"), tSettings)
	if err != nil {
		return err
	}

	ledgerStore, err := d.stores.GetLedgerStore(createLogger("ledger"), tSettings)
	if err != nil {
		return err
	}

	rateStore, err := d.stores.GetRateStore(createLogger("rates"), tSettings)
	if err != nil {
		return err
	}

	txBuilder, err := builder.New(createLogger("builder"), tSettings, indexerClient, lockStore)
	if err != nil {
		return err
	}

	settlementService, err := settlement.New(createLogger("settlement"), tSettings, txBuilder, indexerClient, custodianClient, lockStore, ledgerStore)
	if err != nil {
		return err
	}

	earningsService := earnings.New(createLogger("earnings"), tSettings.ChainCfgParams, ledgerStore, rateStore)

	checks := []health.Check{
		{Name: "Indexer", Check: indexerClient.Health},
		{Name: "Custodian", Check: custodianClient.Health},
		{Name: "LockStore", Check: lockStore.Health},
		{Name: "LedgerStore", Check: ledgerStore.Health},
		{Name: "RateStore", Check: rateStore.Health},
	}

	if tSettings.RateTracker.Enabled {
		tracker := ratetracker.New(createLogger("ratetracker"), tSettings, indexerClient, custodianClient, rateStore, settlementService)

		if err = sm.AddService("RateTracker", tracker); err != nil {
			return err
		}

		checks = append(checks, health.Check{Name: "RateTracker", Check: tracker.Health})
	} else {
		logger.Infof("rate tracker is disabled, pending transactions are only confirmed on demand")
	}

	healthFunc := func(ctx context.Context, checkLiveness bool) (int, string, error) {
		return health.CheckAll(ctx, checkLiveness, checks)
	}

	return sm.AddService("API", api.New(createLogger("api"), tSettings, settlementService, earningsService, healthFunc))
}
