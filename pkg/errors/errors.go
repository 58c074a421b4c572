package apperrors

import "errors"

// Standardized exchange errors. Adapters map venue-specific codes onto these
// so that the engine can classify failures without knowing the venue.
var (
	ErrInvalidPrice         = errors.New("invalid order price")
	ErrExceedOrderLimit     = errors.New("exceed open order limit")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrOrderNotFound        = errors.New("order not found")
	ErrNetwork              = errors.New("network error")
	ErrRateLimitExceeded    = errors.New("rate limit exceeded")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrExchangeMaintenance  = errors.New("exchange maintenance")
)

// Transient is the recoverable subset: the current sync aborts cleanly and
// the next one retries.
func Transient(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrRateLimitExceeded) ||
		errors.Is(err, ErrAuthenticationFailed) ||
		errors.Is(err, ErrExchangeMaintenance)
}

// Rejection reports whether the error is a per-order rejection: the offending
// order is force-cancelled locally and the grid continues.
func Rejection(err error) bool {
	return errors.Is(err, ErrInvalidPrice) || errors.Is(err, ErrExceedOrderLimit)
}
