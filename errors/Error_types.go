package errors

var (
	ErrUnknown              = New(ERR_UNKNOWN, "unknown error")
	ErrInvalidArgument      = New(ERR_INVALID_ARGUMENT, "invalid argument")
	ErrNotFound             = New(ERR_NOT_FOUND, "not found")
	ErrProcessing           = New(ERR_PROCESSING, "error processing")
	ErrConfiguration        = New(ERR_CONFIGURATION, "configuration error")
	ErrContextCanceled      = New(ERR_CONTEXT_CANCELED, "context canceled")
	ErrServiceError         = New(ERR_SERVICE_ERROR, "service error")
	ErrStorageError         = New(ERR_STORAGE_ERROR, "storage error")
	ErrNetworkError         = New(ERR_NETWORK_ERROR, "network error")
	ErrNotEnoughLiquidity   = New(ERR_NOT_ENOUGH_LIQUIDITY, "not enough liquidity")
	ErrNotEnoughBalance     = New(ERR_NOT_ENOUGH_BALANCE, "not enough balance")
	ErrInvalidRunestone     = New(ERR_INVALID_RUNESTONE, "invalid runestone")
	ErrCanisterIsNotPointer = New(ERR_CANISTER_IS_NOT_POINTER, "canister is not the pointer")
	ErrInvalidExchangeRate  = New(ERR_INVALID_EXCHANGE_RATE, "invalid exchange rate")
	ErrNegativeAmount       = New(ERR_NEGATIVE_AMOUNT, "negative amount")
	ErrOnlyOneSender        = New(ERR_ONLY_ONE_SENDER_ALLOWED, "only one sender allowed")
	ErrNoSenderFound        = New(ERR_NO_SENDER_FOUND, "no sender found")
	ErrTransactionExpired   = New(ERR_TRANSACTION_EXPIRED, "transaction expired")
	ErrPendingTransactions  = New(ERR_PENDING_TRANSACTIONS, "pending transactions")
	ErrWithdrawNotAvailable = New(ERR_WITHDRAW_NOT_AVAILABLE, "withdraw not available")
	ErrBroadcast            = New(ERR_BROADCAST, "broadcast error")
	ErrNoRateFound          = New(ERR_NO_RATE_FOUND, "no rate found")
)

// errors initialization functions

func NewUnknownError(message string, params ...interface{}) error {
	return New(ERR_UNKNOWN, message, params...)
}
func NewInvalidArgumentError(message string, params ...interface{}) error {
	return New(ERR_INVALID_ARGUMENT, message, params...)
}
func NewNotFoundError(message string, params ...interface{}) error {
	return New(ERR_NOT_FOUND, message, params...)
}
func NewProcessingError(message string, params ...interface{}) error {
	return New(ERR_PROCESSING, message, params...)
}
func NewConfigurationError(message string, params ...interface{}) error {
	return New(ERR_CONFIGURATION, message, params...)
}
func NewContextCanceledError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT_CANCELED, message, params...)
}
func NewServiceError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_ERROR, message, params...)
}
func NewStorageError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_ERROR, message, params...)
}
func NewNetworkError(message string, params ...interface{}) error {
	return New(ERR_NETWORK_ERROR, message, params...)
}
func NewNotEnoughLiquidityError(message string, params ...interface{}) error {
	return New(ERR_NOT_ENOUGH_LIQUIDITY, message, params...)
}
func NewNotEnoughBalanceError(message string, params ...interface{}) error {
	return New(ERR_NOT_ENOUGH_BALANCE, message, params...)
}
func NewInvalidRunestoneError(message string, params ...interface{}) error {
	return New(ERR_INVALID_RUNESTONE, message, params...)
}
func NewCanisterIsNotPointerError(message string, params ...interface{}) error {
	return New(ERR_CANISTER_IS_NOT_POINTER, message, params...)
}
func NewInvalidExchangeRateError(message string, params ...interface{}) error {
	return New(ERR_INVALID_EXCHANGE_RATE, message, params...)
}
func NewNegativeAmountError(message string, params ...interface{}) error {
	return New(ERR_NEGATIVE_AMOUNT, message, params...)
}
func NewOnlyOneSenderAllowedError(message string, params ...interface{}) error {
	return New(ERR_ONLY_ONE_SENDER_ALLOWED, message, params...)
}
func NewNoSenderFoundError(message string, params ...interface{}) error {
	return New(ERR_NO_SENDER_FOUND, message, params...)
}
func NewTransactionExpiredError(message string, params ...interface{}) error {
	return New(ERR_TRANSACTION_EXPIRED, message, params...)
}
func NewPendingTransactionsError(message string, params ...interface{}) error {
	return New(ERR_PENDING_TRANSACTIONS, message, params...)
}
func NewWithdrawNotAvailableError(message string, params ...interface{}) error {
	return New(ERR_WITHDRAW_NOT_AVAILABLE, message, params...)
}
func NewNoRateFoundError(message string, params ...interface{}) error {
	return New(ERR_NO_RATE_FOUND, message, params...)
}

// NewBroadcastError creates a broadcast error tagged with a relay code and, when known, the txid.
func NewBroadcastError(code BroadcastCode, txID string, message string, params ...interface{}) error {
	return NewWithData(ERR_BROADCAST, &BroadcastErrData{Code: code, TxID: txID}, message, params...)
}
