package settlement

import (
	"math/big"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/holiman/uint256"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
	"github.com/runestake/settlement/runes"
	"github.com/runestake/settlement/services/custodian"
)

// txView is what the settlement learns about a transaction from the psbt
// alone: who owns each input and output and where the runestone sends runes.
type txView struct {
	txID             string
	inputOwners      []string
	outputOwners     []string
	custodianOutputs []bool
	custodianInputs  []int
	sender           string
	userAddress      string
	stone            *runes.Runestone
}

func (s *Service) isCustodian(address string) bool {
	return address != "" && (address == s.custodian.Address() || address == s.custodian.RetentionAddress())
}

// inspect decodes the runestone and identifies the parties of p.
func (s *Service) inspect(p *psbt.Packet) (*txView, error) {
	tx := p.UnsignedTx

	stone, err := runes.Decipher(tx)
	if err != nil {
		return nil, err
	}

	v := &txView{
		txID:             tx.TxHash().String(),
		outputOwners:     make([]string, len(tx.TxOut)),
		custodianOutputs: make([]bool, len(tx.TxOut)),
		inputOwners:      make([]string, len(tx.TxIn)),
		stone:            stone,
	}

	for i, out := range tx.TxOut {
		v.outputOwners[i] = s.params.AddressOf(out.PkScript)
		v.custodianOutputs[i] = s.isCustodian(v.outputOwners[i])
	}

	if stone.Pointer == nil || int(*stone.Pointer) >= len(tx.TxOut) || !v.custodianOutputs[*stone.Pointer] {
		return nil, errors.NewCanisterIsNotPointerError("runestone pointer of %s is not a custodian output", v.txID)
	}

	for i, address := range v.outputOwners {
		if address != "" && !v.custodianOutputs[i] && s.params.HasRecognizedPrefix(address) {
			v.sender = address
			break
		}
	}

	for i, in := range p.Inputs {
		if in.WitnessUtxo == nil {
			return nil, errors.NewInvalidArgumentError("input %d of %s has no witness utxo", i, v.txID)
		}

		owner := s.params.AddressOf(in.WitnessUtxo.PkScript)
		v.inputOwners[i] = owner

		if s.isCustodian(owner) {
			v.custodianInputs = append(v.custodianInputs, i)
			continue
		}

		if v.userAddress != "" && owner != v.userAddress {
			return nil, errors.NewOnlyOneSenderAllowedError("inputs of %s are owned by %s and %s", v.txID, v.userAddress, owner)
		}

		v.userAddress = owner
	}

	if v.sender == "" {
		v.sender = v.userAddress
	}

	if v.sender == "" {
		return nil, errors.NewNoSenderFoundError("no user output or input in %s", v.txID)
	}

	return v, nil
}

// userFlow is the net amount of each rune the user side gains (positive) or
// hands over (negative) in the transaction.
type userFlow map[runes.RuneID]*big.Int

func (f userFlow) add(id runes.RuneID, amount *uint256.Int, sign int) {
	v, ok := f[id]
	if !ok {
		v = new(big.Int)
		f[id] = v
	}

	delta := amount.ToBig()
	if sign < 0 {
		delta.Neg(delta)
	}

	v.Add(v, delta)
}

func (f userFlow) of(id runes.RuneID) *big.Int {
	if v, ok := f[id]; ok {
		return v
	}

	return new(big.Int)
}

// flows allocates the runes of the inputs, given as balances per outpoint key,
// the way the runes protocol does and nets what lands on non-custodian outputs
// against what the user's own inputs carry.
func (v *txView) flows(p *psbt.Packet, inputRunes map[string]map[runes.RuneID]*uint256.Int) userFlow {
	tx := p.UnsignedTx
	f := make(userFlow)

	inputs := make([]map[runes.RuneID]*uint256.Int, len(tx.TxIn))
	for i, in := range tx.TxIn {
		inputs[i] = inputRunes[model.OutpointKey(in.PreviousOutPoint.Hash, in.PreviousOutPoint.Index)]
	}

	for vout, perRune := range v.stone.Allocate(tx, inputs) {
		if int(vout) >= len(v.outputOwners) || v.outputOwners[vout] == "" || v.custodianOutputs[vout] {
			continue
		}

		for id, amount := range perRune {
			f.add(id, amount, 1)
		}
	}

	if v.userAddress == "" {
		return f
	}

	for i := range tx.TxIn {
		if v.inputOwners[i] != v.userAddress {
			continue
		}

		for id, amount := range inputs[i] {
			f.add(id, amount, -1)
		}
	}

	return f
}

// rateTerms returns circulating and balance, one to one while either is zero.
func rateTerms(c *custodian.Components) (*big.Int, *big.Int) {
	if c.Circulating.IsZero() || c.Balance.IsZero() {
		return big.NewInt(1), big.NewInt(1)
	}

	return c.Circulating.ToBig(), c.Balance.ToBig()
}

// checkStake requires amount*circulating >= receipt*balance.
func checkStake(amount, receipt *big.Int, c *custodian.Components) error {
	if amount.Sign() < 0 || receipt.Sign() < 0 {
		return errors.NewNegativeAmountError("stake moves %s base and %s receipt", amount, receipt)
	}

	circulating, balance := rateTerms(c)

	left := new(big.Int).Mul(amount, circulating)
	right := new(big.Int).Mul(receipt, balance)

	if left.Cmp(right) < 0 {
		return errors.NewInvalidExchangeRateError("%s receipt for %s base exceeds the exchange rate %s/%s", receipt, amount, c.Balance.Dec(), c.Circulating.Dec())
	}

	return nil
}

// checkUnstake requires amount*circulating <= receipt*balance.
func checkUnstake(amount, receipt *big.Int, c *custodian.Components) error {
	if receipt.Sign() < 0 || amount.Sign() < 0 {
		return errors.NewNegativeAmountError("unstake moves %s receipt for %s base", receipt, amount)
	}

	circulating, balance := rateTerms(c)

	left := new(big.Int).Mul(amount, circulating)
	right := new(big.Int).Mul(receipt, balance)

	if left.Cmp(right) > 0 {
		return errors.NewInvalidExchangeRateError("%s base for %s receipt exceeds the exchange rate %s/%s", amount, receipt, c.Balance.Dec(), c.Circulating.Dec())
	}

	return nil
}

// receiptFor is the receipt minted for amount base: amount*circulating/balance,
// one to one while the pool is empty.
func receiptFor(amount *uint256.Int, c *custodian.Components) *uint256.Int {
	if c.Circulating.IsZero() || c.Balance.IsZero() {
		return amount.Clone()
	}

	return mulDiv(amount, c.Circulating, c.Balance)
}

// baseFor is the base paid out for receipt: receipt*balance/circulating.
func baseFor(receipt *uint256.Int, c *custodian.Components) *uint256.Int {
	if c.Circulating.IsZero() || c.Balance.IsZero() {
		return receipt.Clone()
	}

	return mulDiv(receipt, c.Balance, c.Circulating)
}

func mulDiv(a, b, d *uint256.Int) *uint256.Int {
	q := new(big.Int).Mul(a.ToBig(), b.ToBig())
	q.Quo(q, d.ToBig())

	out, overflow := uint256.FromBig(q)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}

	return out
}
