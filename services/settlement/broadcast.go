package settlement

import (
	"strings"

	"github.com/runestake/settlement/errors"
)

type broadcastPattern struct {
	substrings []string
	code       errors.BroadcastCode
	message    string
}

// broadcastPatterns maps relay rejections to what the user is told. The first
// matching entry wins.
var broadcastPatterns = []broadcastPattern{
	{
		substrings: []string{"min relay fee not met", "mempool min fee not met", "insufficient fee", "fee not met"},
		code:       errors.BroadcastInsufficientFee,
		message:    "the network fee is too low, build the transaction again with a higher fee rate",
	},
	{
		substrings: []string{"txn-already-in-mempool", "txn-already-known", "already in block chain"},
		code:       errors.BroadcastAlreadyInMempool,
		message:    "this transaction was already submitted",
	},
	{
		substrings: []string{"bad-txns-inputs-missingorspent", "missing-inputs", "missingorspent", "txn-mempool-conflict"},
		code:       errors.BroadcastMissingInputs,
		message:    "some inputs are already spent, build the transaction again",
	},
}

// broadcastError classifies a relay error of txID through broadcastPatterns.
func broadcastError(txID string, err error) error {
	reason := strings.ToLower(err.Error())

	for _, p := range broadcastPatterns {
		for _, s := range p.substrings {
			if strings.Contains(reason, s) {
				return errors.NewBroadcastError(p.code, txID, p.message, err)
			}
		}
	}

	return errors.NewBroadcastError(errors.BroadcastFailed, txID, "broadcast failed", err)
}
