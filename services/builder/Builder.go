package builder

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/runestake/settlement/chaincfg"
	"github.com/runestake/settlement/coinselect"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
	"github.com/runestake/settlement/services/indexer"
	"github.com/runestake/settlement/settings"
	"github.com/runestake/settlement/stores/lock"
	"github.com/runestake/settlement/ulogger"
)

const maxFundingRounds = 5

type Builder struct {
	logger    ulogger.Logger
	settings  *settings.Settings
	params    *chaincfg.Params
	indexer   indexer.ClientI
	lockStore lock.Store
	strategy  coinselect.Strategy
}

func New(logger ulogger.Logger, tSettings *settings.Settings, indexerClient indexer.ClientI, lockStore lock.Store) (*Builder, error) {
	initPrometheusMetrics()

	strategy, err := coinselect.ParseStrategy(tSettings.Builder.Strategy)
	if err != nil {
		return nil, err
	}

	return &Builder{
		logger:    logger.New("builder"),
		settings:  tSettings,
		params:    tSettings.ChainCfgParams,
		indexer:   indexerClient,
		lockStore: lockStore,
		strategy:  strategy,
	}, nil
}

// Build selects, locks and lays out the inputs and outputs of req. On success
// every spent output is locked under the unsigned txid; on failure no lock
// taken by the build survives.
func (b *Builder) Build(ctx context.Context, req *BuildRequest) (result *BuildResult, err error) {
	start := time.Now()
	op := string(req.Operation)

	prometheusBuilderBuild.WithLabelValues(op).Inc()

	defer func() {
		prometheusBuilderBuildDuration.Observe(float64(time.Since(start).Microseconds()) / 1_000)

		if err != nil {
			prometheusBuilderBuildErrors.WithLabelValues(op).Inc()
		}
	}()

	if err = b.validate(req); err != nil {
		return nil, err
	}

	feeRate, err := b.feeRate(ctx, req.FeeRate)
	if err != nil {
		return nil, err
	}

	c, err := b.fetchCandidates(ctx, req)
	if err != nil {
		return nil, err
	}

	var (
		owner   = uuid.NewString()
		txID    string
		locked  []string
		exclude = make(map[string]struct{})

		targetIns, sourceIns []model.Utxo
	)

	defer func() {
		if err != nil && len(locked) > 0 {
			b.release(locked, owner)

			if txID != "" {
				b.release(locked, txID)
			}
		}
	}()

	if req.Target.Owes() {
		picks, ok, selErr := b.selectAndLock(ctx, c.target, b.selectionOptions(req.Target.Amount, &req.Target.Rune, feeRate), owner, exclude)
		if selErr != nil {
			return nil, selErr
		}

		if !ok {
			return nil, errors.NewNotEnoughLiquidityError("custodian cannot deliver %s of %s", req.Target.Amount.Dec(), req.Target.Rune)
		}

		targetIns = picks
		locked = append(locked, model.UtxoKeys(picks)...)
	}

	if req.Source.Owes() {
		picks, ok, selErr := b.selectAndLock(ctx, c.source, b.selectionOptions(req.Source.Amount, &req.Source.Rune, feeRate), owner, exclude)
		if selErr != nil {
			return nil, selErr
		}

		if !ok {
			return nil, errors.NewNotEnoughBalanceError("%s cannot deliver %s of %s", req.Source.Address, req.Source.Amount.Dec(), req.Source.Rune)
		}

		sourceIns = picks
		locked = append(locked, model.UtxoKeys(picks)...)
	}

	plan, err := planOutputs(b.params, planInput{
		target:     req.Target,
		source:     req.Source,
		targetIns:  targetIns,
		sourceIns:  sourceIns,
		targetHeld: c.targetHeld,
		sourceHeld: c.sourceHeld,
		postage:    b.settings.Builder.PostageSats,
		desired:    b.settings.Builder.DesiredOutputCount,
	})
	if err != nil {
		return nil, err
	}

	spent := make([]model.Utxo, 0, len(targetIns)+len(sourceIns))
	spent = append(spent, targetIns...)
	spent = append(spent, sourceIns...)

	payerIns, fee, err := b.fund(ctx, plan, spent, c.payer, req.Payer, feeRate, owner, exclude, &locked)
	if err != nil {
		return nil, err
	}

	inputs := append(spent, payerIns...)

	packet, err := b.packet(inputs, plan.outputs)
	if err != nil {
		return nil, err
	}

	txID = packet.UnsignedTx.TxHash().String()

	if err = b.handover(ctx, locked, owner, txID); err != nil {
		return nil, err
	}

	b64, err := packet.B64Encode()
	if err != nil {
		return nil, errors.NewProcessingError("[Builder] could not encode psbt", err)
	}

	toSign := make([]SignInput, 0, len(inputs)-len(targetIns))

	for i := len(targetIns); i < len(inputs); i++ {
		address := inputs[i].Address
		if address == "" {
			address = b.params.AddressOf(inputs[i].PkScript)
		}

		toSign = append(toSign, SignInput{Index: i, Address: address})
	}

	prometheusBuilderInputs.Observe(float64(len(inputs)))

	b.logger.Infof("[Builder] built %s %s with %d inputs and %d outputs, fee %d at %d sat/vB", op, txID, len(inputs), len(plan.outputs), fee, feeRate)

	return &BuildResult{
		Packet:       packet,
		PsbtBase64:   b64,
		FeeRate:      feeRate,
		Fee:          fee,
		InputsToSign: toSign,
		LockOwner:    txID,
		TxID:         txID,
		LockedKeys:   locked,
	}, nil
}

func (b *Builder) validate(req *BuildRequest) error {
	if !req.Operation.Valid() {
		return errors.NewInvalidArgumentError("unknown operation %q", req.Operation)
	}

	if !req.Target.Owes() && !req.Source.Owes() {
		return errors.NewInvalidArgumentError("nothing to transfer")
	}

	for _, party := range []model.Party{req.Target, req.Source, req.Payer} {
		if _, err := b.params.DecodeAddress(party.Address); err != nil {
			return err
		}

		if party.RetentionAddress != "" {
			if _, err := b.params.DecodeAddress(party.RetentionAddress); err != nil {
				return err
			}
		}
	}

	if req.Target.Address == req.Source.Address {
		return errors.NewInvalidArgumentError("source and target must differ")
	}

	if req.Target.Owes() && req.Target.Rune.IsZero() {
		return errors.NewInvalidArgumentError("target rune is required")
	}

	if req.Source.Owes() && req.Source.Rune.IsZero() {
		return errors.NewInvalidArgumentError("source rune is required")
	}

	return nil
}

func (b *Builder) feeRate(ctx context.Context, requested *int64) (int64, error) {
	if requested != nil {
		if *requested <= 0 {
			return 0, errors.NewInvalidArgumentError("fee rate must be positive, got %d", *requested)
		}

		return *requested, nil
	}

	if b.settings.Builder.DefaultFeeRate > 0 {
		return b.settings.Builder.DefaultFeeRate, nil
	}

	rate, err := b.indexer.RecommendedFeeRate(ctx)
	if err != nil {
		return 0, errors.NewServiceError("[Builder] could not get fee rate", err)
	}

	return max(rate, 1), nil
}

// fund adds payer inputs until postage and fee are covered and appends the
// payer's change output when it is above dust. It returns the payer inputs
// and the fee paid.
func (b *Builder) fund(ctx context.Context, plan *outputPlan, spent []model.Utxo, payerCandidates []model.Utxo, payer model.Party,
	feeRate int64, owner string, exclude map[string]struct{}, locked *[]string) ([]model.Utxo, int64, error) {
	changeAddress := payer.ChangeAddress()

	changeScript, err := b.params.PkScript(changeAddress)
	if err != nil {
		return nil, 0, err
	}

	dust := b.settings.Builder.DustLimitSats

	var payerIns []model.Utxo

	for round := 0; round < maxFundingRounds; round++ {
		inputs := make([]model.Utxo, 0, len(spent)+len(payerIns))
		inputs = append(inputs, spent...)
		inputs = append(inputs, payerIns...)

		in := sumSats(inputs)
		out := plan.value()

		outputs := plan.outputs[:len(plan.outputs):len(plan.outputs)]

		vsize, err := virtualSize(unsignedTx(inputs, append(outputs, wire.NewTxOut(0, changeScript))), inputs)
		if err != nil {
			return nil, 0, err
		}

		fee := vsize * feeRate

		if change := in - out - fee; change >= dust {
			plan.add(changeAddress, changeScript, change)
			return payerIns, fee, nil
		}

		bareSize, err := virtualSize(unsignedTx(inputs, outputs), inputs)
		if err != nil {
			return nil, 0, err
		}

		if in-out-bareSize*feeRate >= 0 {
			// too little left for a change output, the rest goes to the miner
			return payerIns, in - out, nil
		}

		deficit := out + fee + dust - in

		picks, ok, err := b.selectAndLock(ctx, payerCandidates, b.selectionOptions(uint256.NewInt(uint64(deficit)), nil, feeRate), owner, exclude)
		if err != nil {
			return nil, 0, err
		}

		if !ok {
			return nil, 0, errors.NewNotEnoughBalanceError("%s cannot cover %d sats of postage and fees", payer.Address, deficit)
		}

		payerIns = append(payerIns, picks...)
		*locked = append(*locked, model.UtxoKeys(picks)...)
	}

	return nil, 0, errors.NewNotEnoughBalanceError("%s could not cover fees after %d funding rounds", payer.Address, maxFundingRounds)
}

func (b *Builder) packet(inputs []model.Utxo, outputs []*wire.TxOut) (*psbt.Packet, error) {
	p, err := psbt.NewFromUnsignedTx(unsignedTx(inputs, outputs))
	if err != nil {
		return nil, errors.NewProcessingError("[Builder] could not create psbt", err)
	}

	for i := range inputs {
		p.Inputs[i].WitnessUtxo = wire.NewTxOut(inputs[i].Value, inputs[i].PkScript)

		if txscript.IsPayToTaproot(inputs[i].PkScript) {
			if key := xOnly(inputs[i].PubKey); key != nil {
				p.Inputs[i].TaprootInternalKey = key
			}
		}
	}

	return p, nil
}

func xOnly(pubKey []byte) []byte {
	switch len(pubKey) {
	case 32:
		return pubKey
	case 33:
		return pubKey[1:]
	}

	return nil
}

// handover moves the locks from the build owner to the txid, which is all a
// later settlement step can derive from the transaction. The keys stay locked
// throughout.
func (b *Builder) handover(ctx context.Context, keys []string, from, to string) error {
	if err := b.lockStore.Transfer(ctx, keys, from, to, b.settings.Builder.LockTTL); err != nil {
		if errors.Is(err, errors.ErrTransactionExpired) {
			return err
		}

		return errors.NewServiceError("[Builder] could not hand over build locks", err)
	}

	return nil
}

// release frees keys on a context of its own so cleanup survives a
// cancelled request.
func (b *Builder) release(keys []string, owner string) {
	if len(keys) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := b.lockStore.Free(ctx, keys, owner); err != nil {
		b.logger.Errorf("[Builder] could not free %d locks of %s: %v", len(keys), owner, err)
	}
}
