package errors

import "strconv"

// ERR is the numeric code carried by every *Error.
type ERR int32

const (
	ERR_UNKNOWN          ERR = 0
	ERR_INVALID_ARGUMENT ERR = 1
	ERR_NOT_FOUND        ERR = 2
	ERR_PROCESSING       ERR = 3
	ERR_CONFIGURATION    ERR = 4
	ERR_CONTEXT_CANCELED ERR = 5
	ERR_SERVICE_ERROR    ERR = 6
	ERR_STORAGE_ERROR    ERR = 7
	ERR_NETWORK_ERROR    ERR = 8

	// liquidity
	ERR_NOT_ENOUGH_LIQUIDITY ERR = 20
	ERR_NOT_ENOUGH_BALANCE   ERR = 21

	// protocol invariants
	ERR_INVALID_RUNESTONE       ERR = 30
	ERR_CANISTER_IS_NOT_POINTER ERR = 31
	ERR_INVALID_EXCHANGE_RATE   ERR = 32
	ERR_NEGATIVE_AMOUNT         ERR = 33
	ERR_ONLY_ONE_SENDER_ALLOWED ERR = 34
	ERR_NO_SENDER_FOUND         ERR = 35

	// coordination
	ERR_TRANSACTION_EXPIRED    ERR = 40
	ERR_PENDING_TRANSACTIONS   ERR = 41
	ERR_WITHDRAW_NOT_AVAILABLE ERR = 42

	// broadcast
	ERR_BROADCAST ERR = 50

	// accounting
	ERR_NO_RATE_FOUND ERR = 60
)

var ERR_name = map[int32]string{
	0:  "UNKNOWN",
	1:  "INVALID_ARGUMENT",
	2:  "NOT_FOUND",
	3:  "PROCESSING",
	4:  "CONFIGURATION",
	5:  "CONTEXT_CANCELED",
	6:  "SERVICE_ERROR",
	7:  "STORAGE_ERROR",
	8:  "NETWORK_ERROR",
	20: "NOT_ENOUGH_LIQUIDITY",
	21: "NOT_ENOUGH_BALANCE",
	30: "INVALID_RUNESTONE",
	31: "CANISTER_IS_NOT_POINTER",
	32: "INVALID_EXCHANGE_RATE",
	33: "NEGATIVE_AMOUNT",
	34: "ONLY_ONE_SENDER_ALLOWED",
	35: "NO_SENDER_FOUND",
	40: "TRANSACTION_EXPIRED",
	41: "PENDING_TRANSACTIONS",
	42: "WITHDRAW_NOT_AVAILABLE",
	50: "BROADCAST",
	60: "NO_RATE_FOUND",
}

var ERR_value = func() map[string]int32 {
	m := make(map[string]int32, len(ERR_name))
	for k, v := range ERR_name {
		m[v] = k
	}

	return m
}()

func (x ERR) Enum() *ERR {
	p := new(ERR)
	*p = x

	return p
}

func (x ERR) String() string {
	if name, ok := ERR_name[int32(x)]; ok {
		return name
	}

	return strconv.Itoa(int(x))
}

// Category groups codes the way callers react to them.
type Category int

const (
	CategoryInternal Category = iota
	CategoryLiquidity
	CategoryProtocol
	CategoryCoordination
	CategoryBroadcast
	CategoryInput
)

func (x ERR) Category() Category {
	switch x {
	case ERR_NOT_ENOUGH_LIQUIDITY, ERR_NOT_ENOUGH_BALANCE:
		return CategoryLiquidity
	case ERR_INVALID_RUNESTONE, ERR_CANISTER_IS_NOT_POINTER, ERR_INVALID_EXCHANGE_RATE,
		ERR_NEGATIVE_AMOUNT, ERR_ONLY_ONE_SENDER_ALLOWED, ERR_NO_SENDER_FOUND:
		return CategoryProtocol
	case ERR_TRANSACTION_EXPIRED, ERR_PENDING_TRANSACTIONS, ERR_WITHDRAW_NOT_AVAILABLE:
		return CategoryCoordination
	case ERR_BROADCAST:
		return CategoryBroadcast
	case ERR_INVALID_ARGUMENT, ERR_NOT_FOUND:
		return CategoryInput
	default:
		return CategoryInternal
	}
}
