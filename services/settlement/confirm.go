package settlement

import (
	"bytes"
	"context"
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"github.com/holiman/uint256"
	"github.com/looplab/fsm"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
	"github.com/runestake/settlement/runes"
)

// validationFailed is how the custodian reports that its view of the user's
// outputs is behind, usually because earlier settlements are unconfirmed.
const validationFailed = "Validation failed"

// attempt is the state of one Confirm call.
type attempt struct {
	req     *ConfirmRequest
	packet  *psbt.Packet
	view    *txView
	machine *fsm.FSM
	keys    []string
	row     *model.LedgerRow
	claim   *model.LedgerRow
	amount  *big.Int
	receipt *big.Int
}

// Confirm validates the user-signed transaction in req, has the custodian
// co-sign it, broadcasts it and records it. Any failure before the broadcast
// releases the transaction's locks and drops its unbroadcast ledger row.
func (s *Service) Confirm(ctx context.Context, req *ConfirmRequest) (result *ConfirmResult, err error) {
	start := time.Now()
	op := string(req.Operation)

	prometheusSettlementConfirm.WithLabelValues(op).Inc()

	defer func() {
		prometheusSettlementConfirmDuration.Observe(float64(time.Since(start).Microseconds()) / 1_000)

		if err != nil {
			prometheusSettlementConfirmErrors.WithLabelValues(op, errors.CodeOf(err).String()).Inc()
		}
	}()

	if !req.Operation.Valid() {
		return nil, errors.NewInvalidArgumentError("unknown operation %q", req.Operation)
	}

	if s.settings.Settlement.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.settings.Settlement.Timeout)
		defer cancel()
	}

	packet, err := psbt.NewFromRawBytes(strings.NewReader(req.PsbtBase64), true)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("invalid psbt", err)
	}

	a := &attempt{req: req, packet: packet}

	for _, in := range packet.UnsignedTx.TxIn {
		a.keys = append(a.keys, model.OutpointKey(in.PreviousOutPoint.Hash, in.PreviousOutPoint.Index))
	}

	txID := packet.UnsignedTx.TxHash().String()

	a.machine = newAttemptFSM(fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			s.logger.Debugf("[Settlement] %s %s: %s -> %s", op, txID, e.Src, e.Dst)
		},
	})

	if result, err = s.confirm(ctx, a); err != nil {
		return nil, s.fail(a, txID, err)
	}

	return result, nil
}

func (s *Service) confirm(ctx context.Context, a *attempt) (*ConfirmResult, error) {
	var err error

	if err = s.loadPrepared(ctx, a); err != nil {
		return nil, err
	}

	if a.view, err = s.inspect(a.packet); err != nil {
		return nil, err
	}

	if err = s.reserveClaim(ctx, a); err != nil {
		return nil, err
	}

	if err = s.extendCustodianLocks(ctx, a); err != nil {
		return nil, err
	}

	if err = a.machine.Event(ctx, EventLock); err != nil {
		return nil, errors.NewProcessingError("[Settlement] invalid transition", err)
	}

	if err = s.checkExchangeRate(ctx, a); err != nil {
		return nil, err
	}

	signed, err := s.coSign(ctx, a)
	if err != nil {
		return nil, err
	}

	if err = a.machine.Event(ctx, EventCoSign); err != nil {
		return nil, errors.NewProcessingError("[Settlement] invalid transition", err)
	}

	tx, err := s.extract(a.view.txID, signed)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err = tx.Serialize(&buf); err != nil {
		return nil, errors.NewProcessingError("[Settlement] could not serialize %s", a.view.txID, err)
	}

	txHex := hex.EncodeToString(buf.Bytes())

	if _, err = s.indexer.Broadcast(ctx, txHex); err != nil {
		prometheusSettlementBroadcastErrors.Inc()
		return nil, broadcastError(a.view.txID, err)
	}

	if err = a.machine.Event(ctx, EventBroadcast); err != nil {
		return nil, errors.NewProcessingError("[Settlement] invalid transition", err)
	}

	s.holdForGrace(ctx, a)

	signedB64, err := signed.B64Encode()
	if err != nil {
		return nil, errors.NewProcessingError("[Settlement] could not encode signed psbt", err)
	}

	if err = s.record(ctx, a, signed); err != nil {
		return nil, err
	}

	if err = a.machine.Event(ctx, EventRecord); err != nil {
		return nil, errors.NewProcessingError("[Settlement] invalid transition", err)
	}

	fee, feeRate := feeOf(signed, tx)

	s.logger.Infof("[Settlement] %s %s broadcast, fee %d (%.2f sat/vB)", a.req.Operation, a.view.txID, fee, feeRate)

	return &ConfirmResult{
		TxID:             a.view.txID,
		Fee:              fee,
		FeeRate:          feeRate,
		TxHex:            txHex,
		SignedPsbtBase64: signedB64,
	}, nil
}

// loadPrepared finds the ledger row written when the transaction was built.
// It is looked up by the psbt alone so compensation covers every later failure.
func (s *Service) loadPrepared(ctx context.Context, a *attempt) error {
	if a.req.Operation == model.OperationWithdraw || !a.req.RowExists {
		return nil
	}

	txID := a.packet.UnsignedTx.TxHash().String()

	row, err := s.ledger.FindByTxID(ctx, txID)
	if err != nil {
		return err
	}

	if row.Psbt != nil {
		return errors.NewPendingTransactionsError("%s was already broadcast", txID)
	}

	a.row = row

	return nil
}

func claimKey(id int64) string {
	return "claim:" + strconv.FormatInt(id, 10)
}

// reserveClaim checks the unstake a withdraw pays out and locks it for this
// transaction, so two withdraw builds of one unstake cannot both be co-signed.
func (s *Service) reserveClaim(ctx context.Context, a *attempt) error {
	if a.req.Operation != model.OperationWithdraw {
		return nil
	}

	if a.req.ClaimRowID == nil {
		return errors.NewInvalidArgumentError("withdraw needs the unstake row to claim")
	}

	claim, err := s.claimable(ctx, *a.req.ClaimRowID, a.view.sender)
	if err != nil {
		return err
	}

	key := claimKey(claim.ID)

	ok, err := s.lockStore.TryLock(ctx, key, a.view.txID, s.settings.Settlement.ExtendLockTTL)
	if err != nil {
		return errors.NewServiceError("could not reserve unstake %d", claim.ID, err)
	}

	if !ok {
		return errors.NewWithdrawNotAvailableError("unstake %d is being withdrawn by another transaction", claim.ID)
	}

	a.keys = append(a.keys, key)
	a.claim = claim

	return nil
}

// extendCustodianLocks proves the build's locks on the custodian outputs are
// still held and keeps them for the rest of the settlement.
func (s *Service) extendCustodianLocks(ctx context.Context, a *attempt) error {
	if len(a.view.custodianInputs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(a.view.custodianInputs))
	for _, i := range a.view.custodianInputs {
		keys = append(keys, a.keys[i])
	}

	if err := s.lockStore.Extend(ctx, keys, a.view.txID, s.settings.Settlement.ExtendLockTTL); err != nil {
		if errors.Is(err, errors.ErrTransactionExpired) {
			return err
		}

		return errors.NewTransactionExpiredError("could not extend the locks of %s", a.view.txID, err)
	}

	return nil
}

func (s *Service) checkExchangeRate(ctx context.Context, a *attempt) error {
	flow, err := s.userFlow(ctx, a)
	if err != nil {
		return err
	}

	switch a.req.Operation {
	case model.OperationWithdraw:
		paid := flow.of(s.baseRune)
		if paid.Cmp(a.claim.Amount.ToBig()) > 0 {
			return errors.NewInvalidExchangeRateError("withdraw pays %s, unstake %d owes %s", paid, a.claim.ID, a.claim.Amount.Dec())
		}

		return nil

	case model.OperationStake:
		components, err := s.custodian.ExchangeRateComponents(ctx)
		if err != nil {
			return err
		}

		a.amount = new(big.Int).Neg(flow.of(s.baseRune))
		a.receipt = new(big.Int).Set(flow.of(s.receiptRune))

		if a.amount.Sign() == 0 {
			return errors.NewInvalidExchangeRateError("stake %s hands over no %s", a.view.txID, s.baseRune)
		}

		return checkStake(a.amount, a.receipt, components)

	default:
		components, err := s.custodian.ExchangeRateComponents(ctx)
		if err != nil {
			return err
		}

		a.receipt = new(big.Int).Neg(flow.of(s.receiptRune))

		if a.receipt.Sign() == 0 {
			return errors.NewInvalidExchangeRateError("unstake %s burns no %s", a.view.txID, s.receiptRune)
		}

		switch {
		case a.req.ExpectedAmount != nil:
			a.amount = a.req.ExpectedAmount.ToBig()
		case a.row != nil && a.row.Amount != nil:
			a.amount = a.row.Amount.ToBig()
		case a.receipt.Sign() > 0:
			receipt, _ := uint256.FromBig(a.receipt)
			a.amount = baseFor(receipt, components).ToBig()
		default:
			a.amount = new(big.Int)
		}

		return checkUnstake(a.amount, a.receipt, components)
	}
}

// userFlow measures what the user side gains and gives up. The rune balances
// of every input come from the indexer, which still lists them as unspent.
func (s *Service) userFlow(ctx context.Context, a *attempt) (userFlow, error) {
	inputRunes := make(map[string]map[runes.RuneID]*uint256.Int)
	fetched := make(map[string]struct{})

	for _, owner := range a.view.inputOwners {
		if owner == "" {
			continue
		}

		if _, ok := fetched[owner]; ok {
			continue
		}

		fetched[owner] = struct{}{}

		utxos, err := s.indexer.RuneOutputs(ctx, owner)
		if err != nil {
			return nil, err
		}

		for i := range utxos {
			inputRunes[utxos[i].Key()] = utxos[i].Runes
		}
	}

	return a.view.flows(a.packet, inputRunes), nil
}

// coSign finalizes the user's inputs and has the custodian sign its own.
func (s *Service) coSign(ctx context.Context, a *attempt) (*psbt.Packet, error) {
	for i := range a.packet.Inputs {
		if s.isCustodian(a.view.inputOwners[i]) || a.packet.Inputs[i].FinalScriptWitness != nil {
			continue
		}

		if _, err := psbt.MaybeFinalize(a.packet, i); err != nil {
			return nil, errors.NewInvalidArgumentError("input %d of %s is not signed", i, a.view.txID, err)
		}
	}

	b64, err := a.packet.B64Encode()
	if err != nil {
		return nil, errors.NewProcessingError("[Settlement] could not encode %s", a.view.txID, err)
	}

	signedB64, err := s.custodian.CoSign(ctx, a.req.Operation, b64)
	if err != nil {
		if strings.Contains(err.Error(), validationFailed) {
			return nil, errors.NewPendingTransactionsError("the custodian rejected %s, wait for pending transactions to confirm", a.view.txID, err)
		}

		return nil, errors.NewBroadcastError(errors.BroadcastFailed, a.view.txID, "the custodian could not sign", err)
	}

	signed, err := psbt.NewFromRawBytes(strings.NewReader(signedB64), true)
	if err != nil {
		return nil, errors.NewServiceError("the custodian returned an invalid psbt for %s", a.view.txID, err)
	}

	return signed, nil
}

// extract finalizes the co-signed packet and checks the custodian did not
// alter the transaction.
func (s *Service) extract(txID string, signed *psbt.Packet) (*wire.MsgTx, error) {
	if err := psbt.MaybeFinalizeAll(signed); err != nil {
		return nil, errors.NewProcessingError("[Settlement] could not finalize %s", txID, err)
	}

	tx, err := psbt.Extract(signed)
	if err != nil {
		return nil, errors.NewProcessingError("[Settlement] could not extract %s", txID, err)
	}

	if got := tx.TxHash().String(); got != txID {
		return nil, errors.NewServiceError("the custodian changed the transaction from %s to %s", txID, got)
	}

	return tx, nil
}

// holdForGrace keeps every input locked past the broadcast so a rebuild cannot
// select outputs the indexer has not yet seen spent.
func (s *Service) holdForGrace(ctx context.Context, a *attempt) {
	ttl := s.settings.Settlement.GraceLockTTL

	if err := s.lockStore.Extend(ctx, a.keys, a.view.txID, ttl); err == nil {
		return
	}

	for _, key := range a.keys {
		if _, err := s.lockStore.TryLock(ctx, key, a.view.txID, ttl); err != nil {
			s.logger.Warnf("[Settlement] could not hold %s after broadcasting %s: %v", key, a.view.txID, err)
		}
	}
}

// record writes the broadcast transaction to the ledger.
func (s *Service) record(ctx context.Context, a *attempt, signed *psbt.Packet) error {
	var buf bytes.Buffer
	if err := signed.Serialize(&buf); err != nil {
		return errors.NewProcessingError("[Settlement] could not serialize the signed psbt", err)
	}

	txID := a.view.txID

	if a.req.Operation == model.OperationWithdraw {
		return s.ledger.Claim(ctx, a.claim.ID, txID)
	}

	if a.row != nil {
		return s.ledger.Update(ctx, []int64{a.row.ID}, model.LedgerPatch{TxID: &txID, Psbt: buf.Bytes()})
	}

	row := &model.LedgerRow{
		Address: a.view.sender,
		TxID:    txID,
		Psbt:    buf.Bytes(),
	}

	amount, overflow := uint256.FromBig(a.amount)
	if overflow {
		return errors.NewInvalidArgumentError("amount %s is out of range", a.amount)
	}

	receipt, overflow := uint256.FromBig(a.receipt)
	if overflow {
		return errors.NewInvalidArgumentError("receipt %s is out of range", a.receipt)
	}

	row.Amount, row.StakedAmount = amount, receipt

	if a.req.Operation == model.OperationStake {
		row.Kind = model.LedgerKindStake
	} else {
		row.Kind = model.LedgerKindUnstake
	}

	_, err := s.ledger.Insert(ctx, row)

	return err
}

// fail moves the attempt to failed and undoes what it holds, unless the
// transaction may already be on its way to a block.
func (s *Service) fail(a *attempt, txID string, cause error) error {
	prior := a.machine.Current()

	if err := a.machine.Event(context.Background(), EventFail); err != nil {
		s.logger.Debugf("[Settlement] %s: %v", txID, err)
	}

	var broadcastErr *errors.BroadcastErrData

	if prior == StateBroadcast || prior == StateRecorded ||
		(errors.AsData(cause, &broadcastErr) && broadcastErr.Code == errors.BroadcastAlreadyInMempool) {
		s.logger.Errorf("[Settlement] %s failed after it reached the network: %v", txID, cause)
		return cause
	}

	s.logger.Warnf("[Settlement] %s failed in state %s: %v", txID, prior, cause)

	s.release(a.keys, txID)

	if a.row != nil && a.row.Psbt == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.ledger.Remove(ctx, []int64{a.row.ID}); err != nil {
			s.logger.Errorf("[Settlement] could not remove ledger row %d of %s: %v", a.row.ID, txID, err)
		}
	}

	return cause
}

// feeOf returns the fee of tx and its rate in sat/vB.
func feeOf(p *psbt.Packet, tx *wire.MsgTx) (int64, float64) {
	var in, out int64

	for _, input := range p.Inputs {
		if input.WitnessUtxo != nil {
			in += input.WitnessUtxo.Value
		}
	}

	for _, o := range tx.TxOut {
		out += o.Value
	}

	fee := in - out
	vsize := (tx.SerializeSizeStripped()*3 + tx.SerializeSize() + 3) / 4

	if vsize == 0 {
		return fee, 0
	}

	return fee, float64(fee) / float64(vsize)
}
