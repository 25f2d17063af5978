package builder

import (
	"sort"

	"github.com/btcsuite/btcd/wire"
	"github.com/holiman/uint256"
	"github.com/runestake/settlement/chaincfg"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
	"github.com/runestake/settlement/runes"
)

// balances holds rune amounts keyed by rune id.
type balances map[runes.RuneID]*uint256.Int

func runeBalances(utxos []model.Utxo) balances {
	b := make(balances)

	for i := range utxos {
		for id, amount := range utxos[i].Runes {
			if amount == nil || amount.IsZero() {
				continue
			}

			if existing, ok := b[id]; ok {
				existing.Add(existing, amount)
			} else {
				b[id] = amount.Clone()
			}
		}
	}

	return b
}

// leftover returns what remains of b after giving amount of id away.
func (b balances) leftover(id runes.RuneID, amount *uint256.Int) (balances, error) {
	left := make(balances, len(b))

	for k, v := range b {
		left[k] = v.Clone()
	}

	if amount == nil || amount.IsZero() {
		return left, nil
	}

	held, ok := left[id]
	if !ok || held.Lt(amount) {
		return nil, errors.NewProcessingError("inputs hold less %s than the %s to transfer", id, amount.Dec())
	}

	held.Sub(held, amount)

	if held.IsZero() {
		delete(left, id)
	}

	return left, nil
}

func (b balances) ids() []runes.RuneID {
	ids := make([]runes.RuneID, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Less(ids[j])
	})

	return ids
}

// splittable reports whether halving the balances leaves both halves non-empty.
func (b balances) splittable() bool {
	for _, amount := range b {
		if amount.GtUint64(1) {
			return true
		}
	}

	return false
}

func sumSats(utxos []model.Utxo) int64 {
	var total int64
	for i := range utxos {
		total += utxos[i].Value
	}

	return total
}

// outputPlan is the layout of the settlement outputs before funding. Output 0
// is always the custodian output the runestone points to.
type outputPlan struct {
	outputs   []*wire.TxOut
	addresses []string
	edicts    []runes.Edict
	runestone int
}

func (p *outputPlan) add(address string, pkScript []byte, value int64) uint32 {
	p.outputs = append(p.outputs, wire.NewTxOut(value, pkScript))
	p.addresses = append(p.addresses, address)

	return uint32(len(p.outputs) - 1)
}

func (p *outputPlan) transfer(id runes.RuneID, amount *uint256.Int, output uint32) {
	// a zero amount edict means "everything left" to the runes protocol
	if amount == nil || amount.IsZero() {
		return
	}

	p.edicts = append(p.edicts, runes.Edict{ID: id, Amount: amount.Clone(), Output: output})
}

// transferHalves sends b to one output, or half of every balance to each of
// two outputs, the odd unit going to the first.
func (p *outputPlan) transferHalves(b balances, first uint32, second *uint32) {
	for _, id := range b.ids() {
		amount := b[id]

		if second == nil {
			p.transfer(id, amount, first)
			continue
		}

		half := new(uint256.Int).Rsh(amount, 1)
		p.transfer(id, new(uint256.Int).Sub(amount, half), first)
		p.transfer(id, half, *second)
	}
}

func (p *outputPlan) value() int64 {
	var total int64
	for _, out := range p.outputs {
		total += out.Value
	}

	return total
}

type planInput struct {
	target     model.Party
	source     model.Party
	targetIns  []model.Utxo
	sourceIns  []model.Utxo
	targetHeld int
	sourceHeld int
	postage    int64
	desired    int
}

func desiredOutputs(p model.Party, fallback int) int {
	if p.DesiredOutputCount > 0 {
		return p.DesiredOutputCount
	}

	return fallback
}

// planOutputs lays out, in order: the custodian output (pointer), an optional
// second custodian output, the user's receiving output, the user's rune change
// and the runestone. The payer's sats change is appended when funding.
func planOutputs(params *chaincfg.Params, in planInput) (*outputPlan, error) {
	targetLeft, err := runeBalances(in.targetIns).leftover(in.target.Rune, in.target.Amount)
	if err != nil {
		return nil, errors.NewNotEnoughLiquidityError("custodian selection does not cover the transfer", err)
	}

	sourceLeft, err := runeBalances(in.sourceIns).leftover(in.source.Rune, in.source.Amount)
	if err != nil {
		return nil, errors.NewNotEnoughBalanceError("user selection does not cover the transfer", err)
	}

	custodianAddress := in.target.ChangeAddress()

	custodianScript, err := params.PkScript(custodianAddress)
	if err != nil {
		return nil, err
	}

	plan := &outputPlan{}

	splitCustodian := in.targetHeld < desiredOutputs(in.target, in.desired) && targetLeft.splittable()

	custodianSats := sumSats(in.targetIns)
	if splitCustodian {
		custodianSats -= in.postage
	}

	primary := plan.add(custodianAddress, custodianScript, max(in.postage, custodianSats))

	var custodianSplit *uint32

	if splitCustodian {
		split := plan.add(custodianAddress, custodianScript, in.postage)
		custodianSplit = &split
	}

	if in.source.Owes() {
		plan.transfer(in.source.Rune, in.source.Amount, primary)
	}

	plan.transferHalves(targetLeft, primary, custodianSplit)

	if in.target.Owes() {
		receiveScript, err := params.PkScript(in.source.Address)
		if err != nil {
			return nil, err
		}

		receive := plan.add(in.source.Address, receiveScript, in.postage)
		plan.transfer(in.target.Rune, in.target.Amount, receive)
	}

	if len(sourceLeft) > 0 {
		changeAddress := in.source.ChangeAddress()

		changeScript, err := params.PkScript(changeAddress)
		if err != nil {
			return nil, err
		}

		change := plan.add(changeAddress, changeScript, in.postage)

		var changeSplit *uint32

		if in.sourceHeld < desiredOutputs(in.source, in.desired) && sourceLeft.splittable() {
			split := plan.add(changeAddress, changeScript, in.postage)
			changeSplit = &split
		}

		plan.transferHalves(sourceLeft, change, changeSplit)
	}

	pointer := primary
	stone := runes.Runestone{Edicts: plan.edicts, Pointer: &pointer}

	script, err := stone.Encipher()
	if err != nil {
		return nil, err
	}

	plan.runestone = int(plan.add("", script, 0))

	return plan, nil
}
