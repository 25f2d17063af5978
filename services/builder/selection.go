package builder

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/runestake/settlement/coinselect"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
	"github.com/runestake/settlement/runes"
	"golang.org/x/sync/errgroup"
)

// maxLockRounds bounds how often a selection is redone after losing outputs
// to concurrent builds.
const maxLockRounds = 5

type candidates struct {
	target     []model.Utxo
	source     []model.Utxo
	payer      []model.Utxo
	targetHeld int
	sourceHeld int
}

func (b *Builder) fetchCandidates(ctx context.Context, req *BuildRequest) (*candidates, error) {
	c := &candidates{}

	g, gCtx := errgroup.WithContext(ctx)

	if req.Target.Owes() {
		g.Go(func() (err error) {
			c.target, err = b.indexer.RuneOutputs(gCtx, req.Target.Address)
			return err
		})
	}

	if req.Source.Owes() {
		g.Go(func() (err error) {
			c.source, err = b.indexer.RuneOutputs(gCtx, req.Source.Address)
			return err
		})
	}

	g.Go(func() (err error) {
		c.payer, err = b.indexer.PlainOutputs(gCtx, req.Payer.Address)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, errors.NewServiceError("[Builder] could not fetch spendable outputs", err)
	}

	c.targetHeld = len(c.target)
	c.sourceHeld = len(c.source)

	var err error

	if c.target, err = b.usable(c.target, req.Target, true); err != nil {
		return nil, err
	}

	if c.source, err = b.usable(c.source, req.Source, true); err != nil {
		return nil, err
	}

	if c.payer, err = b.usable(c.payer, req.Payer, false); err != nil {
		return nil, err
	}

	if err = b.dropLocked(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

// usable keeps the outputs the party may spend and fills in scripts and keys
// the indexer left out. Rune candidates must carry the party's rune.
func (b *Builder) usable(utxos []model.Utxo, party model.Party, withRune bool) ([]model.Utxo, error) {
	kept := make([]model.Utxo, 0, len(utxos))

	for _, u := range utxos {
		if !party.Allows(u.Key()) {
			continue
		}

		if withRune && !u.HasRune(party.Rune) {
			continue
		}

		if !withRune && u.HasRunes() {
			continue
		}

		if len(u.PkScript) == 0 {
			address := u.Address
			if address == "" {
				address = party.Address
			}

			script, err := b.params.PkScript(address)
			if err != nil {
				return nil, err
			}

			u.PkScript = script
		}

		if len(u.PubKey) == 0 {
			u.PubKey = party.PubKey
		}

		kept = append(kept, u)
	}

	return kept, nil
}

// dropLocked removes every candidate some build currently holds.
func (b *Builder) dropLocked(ctx context.Context, c *candidates) error {
	keys := make([]string, 0, len(c.target)+len(c.source)+len(c.payer))
	keys = append(keys, model.UtxoKeys(c.target)...)
	keys = append(keys, model.UtxoKeys(c.source)...)
	keys = append(keys, model.UtxoKeys(c.payer)...)

	if len(keys) == 0 {
		return nil
	}

	locked, err := b.lockStore.Exists(ctx, keys)
	if err != nil {
		return errors.NewServiceError("[Builder] could not read output locks", err)
	}

	filter := func(utxos []model.Utxo) []model.Utxo {
		kept := utxos[:0]

		for _, u := range utxos {
			if !locked[u.Key()] {
				kept = append(kept, u)
			}
		}

		return kept
	}

	c.target = filter(c.target)
	c.source = filter(c.source)
	c.payer = filter(c.payer)

	return nil
}

// selectAndLock selects from utxos and locks every pick for owner. Picks that
// another owner locked first are excluded and the selection redone. It
// returns false when the remaining outputs cannot reach the target.
func (b *Builder) selectAndLock(ctx context.Context, utxos []model.Utxo, opts coinselect.Options, owner string, exclude map[string]struct{}) ([]model.Utxo, bool, error) {
	for round := 0; round < maxLockRounds; round++ {
		available := make([]model.Utxo, 0, len(utxos))

		for _, u := range utxos {
			if _, skip := exclude[u.Key()]; !skip {
				available = append(available, u)
			}
		}

		result := coinselect.Select(available, opts)
		if result == nil {
			return nil, false, nil
		}

		lockedNow := make([]string, 0, len(result.Outputs))
		lost := false

		for i := range result.Outputs {
			key := result.Outputs[i].Key()

			ok, err := b.lockStore.TryLock(ctx, key, owner, b.settings.Builder.LockTTL)
			if err != nil {
				b.release(lockedNow, owner)
				return nil, false, errors.NewServiceError("[Builder] could not lock %s", key, err)
			}

			if !ok {
				exclude[key] = struct{}{}
				lost = true

				continue
			}

			lockedNow = append(lockedNow, key)
		}

		if !lost {
			for _, key := range lockedNow {
				exclude[key] = struct{}{}
			}

			return result.Outputs, true, nil
		}

		prometheusBuilderLockContention.Inc()
		b.logger.Debugf("[Builder] lost outputs to a concurrent build, reselecting (round %d)", round+1)

		b.release(lockedNow, owner)
	}

	return nil, false, nil
}

// selectionOptions values candidates by rune when id is given, by sats otherwise.
func (b *Builder) selectionOptions(target *uint256.Int, id *runes.RuneID, feeRate int64) coinselect.Options {
	opts := coinselect.Options{
		Target:    target,
		Rune:      id,
		FeeRate:   feeRate,
		Strategy:  b.strategy,
		MaxInputs: b.settings.Builder.MaxInputs,
		Tolerance: b.settings.Builder.Tolerance,
	}

	if b.settings.Builder.CostOfChange > 0 {
		opts.CostOfChange = uint256.NewInt(uint64(b.settings.Builder.CostOfChange))
	}

	return opts
}
