package runes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/runestake/settlement/errors"
)

// RuneID identifies a rune by the block and transaction index of its etching.
type RuneID struct {
	Block uint64
	Tx    uint32
}

func (r RuneID) String() string {
	return fmt.Sprintf("%d:%d", r.Block, r.Tx)
}

func (r RuneID) IsZero() bool {
	return r.Block == 0 && r.Tx == 0
}

// Less orders rune ids by block, then tx. Edicts must be encoded in this order.
func (r RuneID) Less(other RuneID) bool {
	if r.Block != other.Block {
		return r.Block < other.Block
	}

	return r.Tx < other.Tx
}

// ParseRuneID parses the "block:tx" form.
func ParseRuneID(s string) (RuneID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return RuneID{}, errors.NewInvalidArgumentError("invalid rune id %q", s)
	}

	block, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return RuneID{}, errors.NewInvalidArgumentError("invalid rune id block %q", s, err)
	}

	tx, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return RuneID{}, errors.NewInvalidArgumentError("invalid rune id tx %q", s, err)
	}

	if block == 0 && tx != 0 {
		return RuneID{}, errors.NewInvalidArgumentError("invalid rune id %q", s)
	}

	return RuneID{Block: block, Tx: uint32(tx)}, nil
}

func MustParseRuneID(s string) RuneID {
	id, err := ParseRuneID(s)
	if err != nil {
		panic(err)
	}

	return id
}

func (r RuneID) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RuneID) UnmarshalText(text []byte) error {
	id, err := ParseRuneID(string(text))
	if err != nil {
		return err
	}

	*r = id

	return nil
}
