// Package custodian is the protocol side co-signer of every settlement. It is
// reached over JSON-RPC in production or replaced by a local taproot signer.
package custodian

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/runestake/settlement/model"
)

// Components are the two numbers behind the exchange rate: receipt tokens in
// circulation and base tokens held by the custodian.
type Components struct {
	Circulating *uint256.Int
	Balance     *uint256.Int
}

type ClientI interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	// CoSign signs the custodian inputs of a base64 PSBT and returns it.
	CoSign(ctx context.Context, op model.Operation, psbtB64 string) (string, error)
	ExchangeRateComponents(ctx context.Context) (*Components, error)
	Address() string
	RetentionAddress() string
}
