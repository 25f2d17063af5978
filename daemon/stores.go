package daemon

import (
	"sync"

	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/services/custodian"
	"github.com/runestake/settlement/services/indexer"
	"github.com/runestake/settlement/settings"
	"github.com/runestake/settlement/stores/ledger"
	"github.com/runestake/settlement/stores/lock"
	"github.com/runestake/settlement/stores/ratehistory"
	"github.com/runestake/settlement/ulogger"
)

// Stores holds the clients and stores shared by all services of a daemon.
// Each one is created on first use.
type Stores struct {
	mu          sync.Mutex
	indexer     indexer.ClientI
	custodian   custodian.ClientI
	lockStore   lock.Store
	ledgerStore ledger.Store
	rateStore   ratehistory.Store
}

func (s *Stores) GetIndexerClient(logger ulogger.Logger, tSettings *settings.Settings) (indexer.ClientI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexer != nil {
		return s.indexer, nil
	}

	client, err := indexer.NewClient(logger, tSettings)
	if err != nil {
		return nil, errors.NewServiceError("could not create indexer client", err)
	}

	s.indexer = client

	return s.indexer, nil
}

func (s *Stores) GetCustodianClient(logger ulogger.Logger, tSettings *settings.Settings) (custodian.ClientI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.custodian != nil {
		return s.custodian, nil
	}

	client, err := custodian.NewClient(logger, tSettings)
	if err != nil {
		return nil, err
	}

	s.custodian = client

	return s.custodian, nil
}

func (s *Stores) GetLockStore(logger ulogger.Logger, tSettings *settings.Settings) (lock.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lockStore != nil {
		return s.lockStore, nil
	}

	store, err := lock.NewStore(logger, tSettings, tSettings.Lock.StoreURL)
	if err != nil {
		return nil, err
	}

	s.lockStore = store

	return s.lockStore, nil
}

func (s *Stores) GetLedgerStore(logger ulogger.Logger, tSettings *settings.Settings) (ledger.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledgerStore != nil {
		return s.ledgerStore, nil
	}

	store, err := ledger.NewStore(logger, tSettings, tSettings.Ledger.StoreURL)
	if err != nil {
		return nil, err
	}

	s.ledgerStore = store

	return s.ledgerStore, nil
}

// GetRateStore shares the ledger database.
func (s *Stores) GetRateStore(logger ulogger.Logger, tSettings *settings.Settings) (ratehistory.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rateStore != nil {
		return s.rateStore, nil
	}

	store, err := ratehistory.NewStore(logger, tSettings, tSettings.Ledger.StoreURL)
	if err != nil {
		return nil, err
	}

	s.rateStore = store

	return s.rateStore, nil
}

// Close closes the ledger and rate stores. Errors are logged.
func (s *Stores) Close(logger ulogger.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledgerStore != nil {
		logger.Debugf("closing ledger store")

		if err := s.ledgerStore.Close(); err != nil {
			logger.Warnf("error closing ledger store: %v", err)
		}

		s.ledgerStore = nil
	}

	if s.rateStore != nil {
		logger.Debugf("closing rate store")

		if err := s.rateStore.Close(); err != nil {
			logger.Warnf("error closing rate store: %v", err)
		}

		s.rateStore = nil
	}
}
