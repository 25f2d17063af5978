package errors

import (
	"context"
	"errors"
	"strings"
)

// IsRetryableError reports whether an error is transient and the operation could be retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var tErr *Error
	if As(err, &tErr) {
		switch tErr.Code() {
		case ERR_NETWORK_ERROR, ERR_STORAGE_ERROR, ERR_SERVICE_ERROR:
			return true
		}
	}

	return false
}

// IsNetworkError determines if an error is network-related.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var tErr *Error
	if As(err, &tErr) && tErr.Code() == ERR_NETWORK_ERROR {
		return true
	}

	errStr := strings.ToLower(err.Error())
	networkStrings := []string{
		"connection",
		"timeout",
		"dial tcp",
		"no such host",
		"connection reset",
		"broken pipe",
	}

	for _, s := range networkStrings {
		if strings.Contains(errStr, s) {
			return true
		}
	}

	return false
}

// IsContextError determines if an error is related to context cancellation or deadline.
func IsContextError(err error) bool {
	if err == nil {
		return false
	}

	if err == context.Canceled || err == context.DeadlineExceeded {
		return true
	}

	var tErr *Error
	if As(err, &tErr) && tErr.Code() == ERR_CONTEXT_CANCELED {
		return true
	}

	return Is(err, context.Canceled) || Is(err, context.DeadlineExceeded)
}

// CategoryOf returns the caller-facing category of err. Errors that are not *Error are internal.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryInternal
	}

	var tErr *Error
	if As(err, &tErr) {
		return tErr.Code().Category()
	}

	return CategoryInternal
}

// GetErrorCategory returns a string representing the category of the error, for logs and metrics.
func GetErrorCategory(err error) string {
	if err == nil {
		return "none"
	}

	if IsContextError(err) {
		return "context"
	}

	switch CategoryOf(err) {
	case CategoryLiquidity:
		return "liquidity"
	case CategoryProtocol:
		return "protocol"
	case CategoryCoordination:
		return "coordination"
	case CategoryBroadcast:
		return "broadcast"
	case CategoryInput:
		return "input"
	}

	if IsNetworkError(err) {
		return "network"
	}

	return "unknown"
}
