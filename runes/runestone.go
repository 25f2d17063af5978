package runes

import (
	"sort"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/holiman/uint256"
	"github.com/runestake/settlement/errors"
)

const (
	tagBody        = 0
	tagFlags       = 2
	tagRune        = 4
	tagPremine     = 6
	tagCap         = 8
	tagAmount      = 10
	tagHeightStart = 12
	tagHeightEnd   = 14
	tagOffsetStart = 16
	tagOffsetEnd   = 18
	tagMint        = 20
	tagPointer     = 22
)

var knownEvenTags = map[uint64]struct{}{
	tagBody: {}, tagFlags: {}, tagRune: {}, tagPremine: {}, tagCap: {}, tagAmount: {},
	tagHeightStart: {}, tagHeightEnd: {}, tagOffsetStart: {}, tagOffsetEnd: {}, tagMint: {}, tagPointer: {},
}

// Edict moves Amount units of rune ID to the output at index Output.
type Edict struct {
	ID     RuneID
	Amount *uint256.Int
	Output uint32
}

// Runestone is the token transfer message carried in an OP_RETURN OP_13 output.
type Runestone struct {
	Edicts  []Edict
	Pointer *uint32
}

// Encipher returns the OP_RETURN OP_13 output script for the runestone.
func (r *Runestone) Encipher() ([]byte, error) {
	var payload []byte

	if r.Pointer != nil {
		payload = EncodeVarint(payload, uint256.NewInt(tagPointer))
		payload = EncodeVarint(payload, uint256.NewInt(uint64(*r.Pointer)))
	}

	if len(r.Edicts) > 0 {
		payload = EncodeVarint(payload, uint256.NewInt(tagBody))

		edicts := make([]Edict, len(r.Edicts))
		copy(edicts, r.Edicts)

		sort.SliceStable(edicts, func(i, j int) bool {
			return edicts[i].ID.Less(edicts[j].ID)
		})

		var previous RuneID

		for _, edict := range edicts {
			if edict.Amount == nil || edict.Amount.Gt(maxU128) {
				return nil, errors.NewInvalidRunestoneError("edict amount for %s out of range", edict.ID)
			}

			blockDelta := edict.ID.Block - previous.Block
			txDelta := uint64(edict.ID.Tx)

			if blockDelta == 0 {
				txDelta = uint64(edict.ID.Tx - previous.Tx)
			}

			payload = EncodeVarint(payload, uint256.NewInt(blockDelta))
			payload = EncodeVarint(payload, uint256.NewInt(txDelta))
			payload = EncodeVarint(payload, edict.Amount)
			payload = EncodeVarint(payload, uint256.NewInt(uint64(edict.Output)))

			previous = edict.ID
		}
	}

	builder := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddOp(txscript.OP_13)

	for len(payload) > 0 {
		chunk := payload
		if len(chunk) > txscript.MaxScriptElementSize {
			chunk = chunk[:txscript.MaxScriptElementSize]
		}

		// AddFullData keeps one byte payloads as data pushes instead of small int opcodes
		builder.AddFullData(chunk)
		payload = payload[len(chunk):]
	}

	script, err := builder.Script()
	if err != nil {
		return nil, errors.NewInvalidRunestoneError("failed to build runestone script", err)
	}

	return script, nil
}

// IsRunestoneScript reports whether the output script is an OP_RETURN OP_13 runestone output.
func IsRunestoneScript(pkScript []byte) bool {
	return len(pkScript) >= 2 && pkScript[0] == txscript.OP_RETURN && pkScript[1] == txscript.OP_13
}

// RunestoneOutput returns the index of the first runestone output, or -1.
func RunestoneOutput(tx *wire.MsgTx) int {
	for i, out := range tx.TxOut {
		if IsRunestoneScript(out.PkScript) {
			return i
		}
	}

	return -1
}

// Decipher decodes the runestone of tx. A transaction without one, or with a
// malformed one, is an InvalidRunestone error.
func Decipher(tx *wire.MsgTx) (*Runestone, error) {
	vout := RunestoneOutput(tx)
	if vout < 0 {
		return nil, errors.NewInvalidRunestoneError("transaction has no runestone output")
	}

	payload, err := runestonePayload(tx.TxOut[vout].PkScript)
	if err != nil {
		return nil, err
	}

	integers, err := decodeIntegers(payload)
	if err != nil {
		return nil, err
	}

	numOutputs := uint64(len(tx.TxOut))
	runestone := &Runestone{}

	for i := 0; i < len(integers); i += 2 {
		tag := integers[i]

		if tag.IsZero() {
			runestone.Edicts, err = decodeEdicts(integers[i+1:], numOutputs)
			if err != nil {
				return nil, err
			}

			break
		}

		if i+1 >= len(integers) {
			return nil, errors.NewInvalidRunestoneError("truncated field for tag %s", tag.Dec())
		}

		value := integers[i+1]

		if !tag.IsUint64() {
			return nil, errors.NewInvalidRunestoneError("unrecognized tag %s", tag.Dec())
		}

		t := tag.Uint64()

		if t%2 == 0 {
			if _, ok := knownEvenTags[t]; !ok {
				return nil, errors.NewInvalidRunestoneError("unrecognized even tag %d", t)
			}
		}

		if t == tagPointer {
			if !value.IsUint64() || value.Uint64() >= numOutputs {
				return nil, errors.NewInvalidRunestoneError("pointer %s out of range", value.Dec())
			}

			if runestone.Pointer != nil {
				return nil, errors.NewInvalidRunestoneError("duplicate pointer")
			}

			p := uint32(value.Uint64())
			runestone.Pointer = &p
		}
	}

	return runestone, nil
}

func runestonePayload(pkScript []byte) ([]byte, error) {
	var payload []byte

	tokenizer := txscript.MakeScriptTokenizer(0, pkScript[2:])
	for tokenizer.Next() {
		op := tokenizer.Opcode()
		if op > txscript.OP_PUSHDATA4 {
			return nil, errors.NewInvalidRunestoneError("runestone contains non push opcode %d", op)
		}

		payload = append(payload, tokenizer.Data()...)
	}

	if err := tokenizer.Err(); err != nil {
		return nil, errors.NewInvalidRunestoneError("malformed runestone script", err)
	}

	return payload, nil
}

func decodeIntegers(payload []byte) ([]*uint256.Int, error) {
	integers := make([]*uint256.Int, 0, len(payload))

	for len(payload) > 0 {
		n, size, err := DecodeVarint(payload)
		if err != nil {
			return nil, err
		}

		integers = append(integers, n)
		payload = payload[size:]
	}

	return integers, nil
}

func decodeEdicts(integers []*uint256.Int, numOutputs uint64) ([]Edict, error) {
	if len(integers)%4 != 0 {
		return nil, errors.NewInvalidRunestoneError("trailing integers in edicts")
	}

	edicts := make([]Edict, 0, len(integers)/4)

	var id RuneID

	for i := 0; i < len(integers); i += 4 {
		blockDelta, txDelta, amount, output := integers[i], integers[i+1], integers[i+2], integers[i+3]

		if !blockDelta.IsUint64() || !txDelta.IsUint64() || !output.IsUint64() {
			return nil, errors.NewInvalidRunestoneError("edict field overflow")
		}

		next, err := nextRuneID(id, blockDelta.Uint64(), txDelta.Uint64())
		if err != nil {
			return nil, err
		}

		// output == numOutputs splits the amount across all outputs
		if output.Uint64() > numOutputs {
			return nil, errors.NewInvalidRunestoneError("edict output %d out of range", output.Uint64())
		}

		id = next

		edicts = append(edicts, Edict{ID: id, Amount: amount, Output: uint32(output.Uint64())})
	}

	return edicts, nil
}

func nextRuneID(previous RuneID, blockDelta uint64, txDelta uint64) (RuneID, error) {
	if blockDelta == 0 {
		tx := uint64(previous.Tx) + txDelta
		if tx > uint64(^uint32(0)) {
			return RuneID{}, errors.NewInvalidRunestoneError("edict rune id tx overflow")
		}

		if previous.Block == 0 && tx != 0 {
			return RuneID{}, errors.NewInvalidRunestoneError("edict rune id 0:%d", tx)
		}

		return RuneID{Block: previous.Block, Tx: uint32(tx)}, nil
	}

	block := previous.Block + blockDelta
	if block < previous.Block {
		return RuneID{}, errors.NewInvalidRunestoneError("edict rune id block overflow")
	}

	if txDelta > uint64(^uint32(0)) {
		return RuneID{}, errors.NewInvalidRunestoneError("edict rune id tx overflow")
	}

	return RuneID{Block: block, Tx: uint32(txDelta)}, nil
}

// Transfers sums explicit edict amounts per output index and rune.
func (r *Runestone) Transfers() map[uint32]map[RuneID]*uint256.Int {
	transfers := make(map[uint32]map[RuneID]*uint256.Int)

	for _, edict := range r.Edicts {
		perRune, ok := transfers[edict.Output]
		if !ok {
			perRune = make(map[RuneID]*uint256.Int)
			transfers[edict.Output] = perRune
		}

		if existing, ok := perRune[edict.ID]; ok {
			existing.Add(existing, edict.Amount)
		} else {
			perRune[edict.ID] = new(uint256.Int).Set(edict.Amount)
		}
	}

	return transfers
}

func isOpReturn(pkScript []byte) bool {
	return len(pkScript) > 0 && pkScript[0] == txscript.OP_RETURN
}

// Allocate assigns the runes of tx's inputs, given per input in input order, to
// its outputs. Edicts apply in order and never move more than is left of a
// rune. A zero amount means everything left, and an output equal to the output
// count spreads the edict over every non OP_RETURN output. Whatever is left
// goes to the pointer, else to the first non OP_RETURN output, else it burns.
// Runes allocated to an OP_RETURN output are burned.
func (r *Runestone) Allocate(tx *wire.MsgTx, inputs []map[RuneID]*uint256.Int) map[uint32]map[RuneID]*uint256.Int {
	unallocated := make(map[RuneID]*uint256.Int)

	for _, perRune := range inputs {
		for id, amount := range perRune {
			if amount == nil || amount.IsZero() {
				continue
			}

			if existing, ok := unallocated[id]; ok {
				existing.Add(existing, amount)
			} else {
				unallocated[id] = amount.Clone()
			}
		}
	}

	allocated := make(map[uint32]map[RuneID]*uint256.Int)

	give := func(id RuneID, balance *uint256.Int, amount *uint256.Int, output uint32) {
		if amount.IsZero() {
			return
		}

		balance.Sub(balance, amount)

		perRune, ok := allocated[output]
		if !ok {
			perRune = make(map[RuneID]*uint256.Int)
			allocated[output] = perRune
		}

		if existing, ok := perRune[id]; ok {
			existing.Add(existing, amount)
		} else {
			perRune[id] = amount.Clone()
		}
	}

	var destinations []uint32

	for i, out := range tx.TxOut {
		if !isOpReturn(out.PkScript) {
			destinations = append(destinations, uint32(i))
		}
	}

	for _, edict := range r.Edicts {
		balance, ok := unallocated[edict.ID]
		if !ok {
			continue
		}

		amount := edict.Amount
		if amount == nil {
			amount = new(uint256.Int)
		}

		if int(edict.Output) == len(tx.TxOut) {
			if len(destinations) == 0 {
				continue
			}

			if amount.IsZero() {
				n := uint256.NewInt(uint64(len(destinations)))
				share := new(uint256.Int).Div(balance, n)
				remainder := new(uint256.Int).Mod(balance, n).Uint64()

				for i, output := range destinations {
					part := share.Clone()
					if uint64(i) < remainder {
						part.AddUint64(part, 1)
					}

					give(edict.ID, balance, part, output)
				}

				continue
			}

			for _, output := range destinations {
				give(edict.ID, balance, minAmount(amount, balance), output)
			}

			continue
		}

		if amount.IsZero() {
			give(edict.ID, balance, balance.Clone(), edict.Output)
		} else {
			give(edict.ID, balance, minAmount(amount, balance), edict.Output)
		}
	}

	var rest *uint32

	switch {
	case r.Pointer != nil && int(*r.Pointer) < len(tx.TxOut):
		rest = r.Pointer
	case len(destinations) > 0:
		rest = &destinations[0]
	}

	if rest != nil {
		for id, balance := range unallocated {
			give(id, balance, balance.Clone(), *rest)
		}
	}

	for vout := range allocated {
		if int(vout) < len(tx.TxOut) && isOpReturn(tx.TxOut[vout].PkScript) {
			delete(allocated, vout)
		}
	}

	return allocated
}

func minAmount(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a.Clone()
	}

	return b.Clone()
}
