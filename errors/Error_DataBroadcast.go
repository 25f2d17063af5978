package errors

import (
	"encoding/json"
	"fmt"
)

// BroadcastCode is the machine readable reason a relay rejected a transaction.
type BroadcastCode string

const (
	BroadcastInsufficientFee  BroadcastCode = "INSUFFICIENT_FEE"
	BroadcastAlreadyInMempool BroadcastCode = "ALREADY_IN_MEMPOOL"
	BroadcastMissingInputs    BroadcastCode = "MISSING_INPUTS"
	BroadcastFailed           BroadcastCode = "BROADCAST_FAILED"
)

type BroadcastErrData struct {
	Code BroadcastCode `json:"code"`
	TxID string        `json:"txid,omitempty"`
}

func (e *BroadcastErrData) Error() string {
	if e.TxID == "" {
		return fmt.Sprintf("broadcast rejected: %s", e.Code)
	}

	return fmt.Sprintf("broadcast of %s rejected: %s", e.TxID, e.Code)
}

func (e *BroadcastErrData) SetData(key string, value interface{}) {
	switch key {
	case "code":
		if s, ok := value.(string); ok {
			e.Code = BroadcastCode(s)
		}
	case "txid":
		if s, ok := value.(string); ok {
			e.TxID = s
		}
	}
}

func (e *BroadcastErrData) GetData(key string) interface{} {
	switch key {
	case "code":
		return string(e.Code)
	case "txid":
		return e.TxID
	}

	return nil
}

func (e *BroadcastErrData) EncodeErrorData() []byte {
	data, _ := json.Marshal(e)
	return data
}
