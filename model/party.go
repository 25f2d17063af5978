package model

import (
	"github.com/holiman/uint256"
	"github.com/runestake/settlement/runes"
)

type Operation string

const (
	OperationStake    Operation = "stake"
	OperationUnstake  Operation = "unstake"
	OperationWithdraw Operation = "withdraw"
)

func (o Operation) Valid() bool {
	switch o {
	case OperationStake, OperationUnstake, OperationWithdraw:
		return true
	}

	return false
}

// Party is one side of a swap. Amount is what the party must hand over in Rune;
// a zero amount means the party only contributes change or fees.
type Party struct {
	Address            string
	PubKey             []byte
	Rune               runes.RuneID
	Amount             *uint256.Int
	RetentionAddress   string
	DesiredOutputCount int
	AllowedOutputs     map[string]struct{}
}

// ChangeAddress is where leftovers of the party go.
func (p *Party) ChangeAddress() string {
	if p.RetentionAddress != "" {
		return p.RetentionAddress
	}

	return p.Address
}

func (p *Party) Owes() bool {
	return p.Amount != nil && !p.Amount.IsZero()
}

// Allows reports whether the output key may be spent by this party.
func (p *Party) Allows(key string) bool {
	if p.AllowedOutputs == nil {
		return true
	}

	_, ok := p.AllowedOutputs[key]

	return ok
}
