package settlement

import (
	"context"
	"time"

	"github.com/holiman/uint256"
	"github.com/runestake/settlement/chaincfg"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
	"github.com/runestake/settlement/runes"
	"github.com/runestake/settlement/services/builder"
	"github.com/runestake/settlement/services/custodian"
	"github.com/runestake/settlement/services/indexer"
	"github.com/runestake/settlement/settings"
	"github.com/runestake/settlement/stores/ledger"
	"github.com/runestake/settlement/stores/lock"
	"github.com/runestake/settlement/ulogger"
)

type Service struct {
	logger      ulogger.Logger
	settings    *settings.Settings
	params      *chaincfg.Params
	builder     builder.Interface
	indexer     indexer.ClientI
	custodian   custodian.ClientI
	lockStore   lock.Store
	ledger      ledger.Store
	baseRune    runes.RuneID
	receiptRune runes.RuneID
	now         func() time.Time
}

func New(logger ulogger.Logger, tSettings *settings.Settings, txBuilder builder.Interface, indexerClient indexer.ClientI,
	custodianClient custodian.ClientI, lockStore lock.Store, ledgerStore ledger.Store) (*Service, error) {
	initPrometheusMetrics()

	baseRune, err := runes.ParseRuneID(tSettings.Runes.BaseRuneID)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid rune_base_id", err)
	}

	receiptRune, err := runes.ParseRuneID(tSettings.Runes.ReceiptRuneID)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid rune_receipt_id", err)
	}

	if baseRune == receiptRune {
		return nil, errors.NewConfigurationError("base and receipt rune must differ")
	}

	return &Service{
		logger:      logger.New("settlement"),
		settings:    tSettings,
		params:      tSettings.ChainCfgParams,
		builder:     txBuilder,
		indexer:     indexerClient,
		custodian:   custodianClient,
		lockStore:   lockStore,
		ledger:      ledgerStore,
		baseRune:    baseRune,
		receiptRune: receiptRune,
		now:         time.Now,
	}, nil
}

func (s *Service) custodianParty(id runes.RuneID, amount *uint256.Int) model.Party {
	return model.Party{
		Address:            s.custodian.Address(),
		Rune:               id,
		Amount:             amount,
		RetentionAddress:   s.custodian.RetentionAddress(),
		DesiredOutputCount: s.settings.Builder.DesiredOutputCount,
	}
}

// Prepare builds the unsigned transaction of req and, for a stake or unstake,
// records it as a pending ledger row keyed by its txid.
func (s *Service) Prepare(ctx context.Context, req *PrepareRequest) (*PrepareResult, error) {
	prometheusSettlementPrepare.WithLabelValues(string(req.Operation)).Inc()

	if !req.Operation.Valid() {
		return nil, errors.NewInvalidArgumentError("unknown operation %q", req.Operation)
	}

	if _, err := s.params.DecodeAddress(req.Address); err != nil {
		return nil, err
	}

	if s.isCustodian(req.Address) {
		return nil, errors.NewInvalidArgumentError("the custodian cannot settle with itself")
	}

	if err := s.checkPending(ctx, req.Address); err != nil {
		return nil, err
	}

	switch req.Operation {
	case model.OperationStake:
		return s.prepareStake(ctx, req)
	case model.OperationUnstake:
		return s.prepareUnstake(ctx, req)
	default:
		return s.prepareWithdraw(ctx, req)
	}
}

// checkPending refuses a new settlement while one of address is broadcast but
// not mined. Rows that were built but never broadcast block nothing and are
// dropped once their locks have expired.
func (s *Service) checkPending(ctx context.Context, address string) error {
	rows, err := s.ledger.FindPendingOf(ctx, address)
	if err != nil {
		return err
	}

	var stale []int64

	for _, row := range rows {
		if row.Block == nil && row.Psbt == nil {
			if s.now().Sub(row.Timestamp) > s.settings.Builder.LockTTL {
				stale = append(stale, row.ID)
			}

			continue
		}

		return errors.NewPendingTransactionsError("%s has transactions waiting for confirmation", address)
	}

	if len(stale) > 0 {
		if err = s.ledger.Remove(ctx, stale); err != nil {
			return err
		}

		s.logger.Infof("[Settlement] removed %d abandoned ledger rows of %s", len(stale), address)
	}

	return nil
}

func requireAmount(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return errors.NewInvalidArgumentError("amount must be positive")
	}

	return nil
}

func (s *Service) prepareStake(ctx context.Context, req *PrepareRequest) (*PrepareResult, error) {
	if err := requireAmount(req.Amount); err != nil {
		return nil, err
	}

	components, err := s.custodian.ExchangeRateComponents(ctx)
	if err != nil {
		return nil, err
	}

	receipt := receiptFor(req.Amount, components)
	if receipt.IsZero() {
		return nil, errors.NewInvalidArgumentError("staking %s mints no receipt at the current rate", req.Amount.Dec())
	}

	res, err := s.builder.Build(ctx, &builder.BuildRequest{
		Operation: model.OperationStake,
		Source:    model.Party{Address: req.Address, PubKey: req.PubKey, Rune: s.baseRune, Amount: req.Amount},
		Target:    s.custodianParty(s.receiptRune, receipt),
		Payer:     model.Party{Address: req.Address, PubKey: req.PubKey},
		FeeRate:   req.FeeRate,
	})
	if err != nil {
		return nil, err
	}

	return s.recordPending(ctx, res, &model.LedgerRow{
		Kind:         model.LedgerKindStake,
		Address:      req.Address,
		Amount:       req.Amount,
		StakedAmount: receipt,
	})
}

func (s *Service) prepareUnstake(ctx context.Context, req *PrepareRequest) (*PrepareResult, error) {
	if err := requireAmount(req.Amount); err != nil {
		return nil, err
	}

	components, err := s.custodian.ExchangeRateComponents(ctx)
	if err != nil {
		return nil, err
	}

	base := baseFor(req.Amount, components)

	res, err := s.builder.Build(ctx, &builder.BuildRequest{
		Operation: model.OperationUnstake,
		Source:    model.Party{Address: req.Address, PubKey: req.PubKey, Rune: s.receiptRune, Amount: req.Amount},
		Target:    s.custodianParty(s.baseRune, nil),
		Payer:     model.Party{Address: req.Address, PubKey: req.PubKey},
		FeeRate:   req.FeeRate,
	})
	if err != nil {
		return nil, err
	}

	return s.recordPending(ctx, res, &model.LedgerRow{
		Kind:         model.LedgerKindUnstake,
		Address:      req.Address,
		Amount:       base,
		StakedAmount: req.Amount,
	})
}

// prepareWithdraw pays out a confirmed unstake once its cooldown has passed.
func (s *Service) prepareWithdraw(ctx context.Context, req *PrepareRequest) (*PrepareResult, error) {
	if req.ClaimRowID == nil {
		return nil, errors.NewInvalidArgumentError("withdraw needs the unstake row to claim")
	}

	row, err := s.claimable(ctx, *req.ClaimRowID, req.Address)
	if err != nil {
		return nil, err
	}

	tip, err := s.indexer.TipHeight(ctx)
	if err != nil {
		return nil, err
	}

	availableAt := *row.Block + uint32(s.settings.Settlement.CooldownBlocks)
	if tip < availableAt {
		return nil, errors.NewWithdrawNotAvailableError("unstake %d can be withdrawn from block %d, tip is %d", row.ID, availableAt, tip)
	}

	res, err := s.builder.Build(ctx, &builder.BuildRequest{
		Operation: model.OperationWithdraw,
		Source:    model.Party{Address: req.Address, PubKey: req.PubKey},
		Target:    s.custodianParty(s.baseRune, row.Amount),
		Payer:     model.Party{Address: req.Address, PubKey: req.PubKey},
		FeeRate:   req.FeeRate,
	})
	if err != nil {
		return nil, err
	}

	return &PrepareResult{
		BuildResult:  res,
		RowID:        row.ID,
		Amount:       row.Amount,
		StakedAmount: row.StakedAmount,
	}, nil
}

// claimable returns unstake row id of address if it is confirmed and unclaimed.
func (s *Service) claimable(ctx context.Context, id int64, address string) (*model.LedgerRow, error) {
	row, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewWithdrawNotAvailableError("no unstake %d", id, err)
		}

		return nil, err
	}

	switch {
	case row.Kind != model.LedgerKindUnstake || row.Address != address:
		return nil, errors.NewWithdrawNotAvailableError("row %d is not an unstake of %s", id, address)
	case row.Claimed():
		return nil, errors.NewWithdrawNotAvailableError("unstake %d was already withdrawn in %s", id, *row.ClaimTxID)
	case !row.Confirmed():
		return nil, errors.NewWithdrawNotAvailableError("unstake %d is not confirmed yet", id)
	case row.Amount == nil || row.Amount.IsZero():
		return nil, errors.NewWithdrawNotAvailableError("unstake %d has nothing to withdraw", id)
	}

	return row, nil
}

// recordPending inserts the ledger row of a freshly built transaction. The
// build's locks are released if that fails.
func (s *Service) recordPending(ctx context.Context, res *builder.BuildResult, row *model.LedgerRow) (*PrepareResult, error) {
	row.TxID = res.TxID

	if _, err := s.ledger.Insert(ctx, row); err != nil {
		s.release(res.LockedKeys, res.LockOwner)
		return nil, err
	}

	return &PrepareResult{
		BuildResult:  res,
		RowID:        row.ID,
		Amount:       row.Amount,
		StakedAmount: row.StakedAmount,
	}, nil
}

// release frees keys on a context of its own so cleanup survives a
// cancelled request.
func (s *Service) release(keys []string, owner string) {
	if len(keys) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.lockStore.Free(ctx, keys, owner); err != nil {
		s.logger.Errorf("[Settlement] could not free %d locks of %s: %v", len(keys), owner, err)
	}
}
