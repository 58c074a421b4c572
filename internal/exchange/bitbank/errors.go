package bitbank

import (
	"fmt"

	apperrors "grid_trader/pkg/errors"
)

// APIError carries the venue error code alongside the standardized error it
// unwraps to, so logs keep the raw code while the engine matches sentinels.
type APIError struct {
	Code   int
	mapped error
}

func (e *APIError) Error() string {
	if e.mapped != nil {
		return fmt.Sprintf("bitbank error %d: %v", e.Code, e.mapped)
	}
	return fmt.Sprintf("bitbank error %d", e.Code)
}

func (e *APIError) Unwrap() error {
	return e.mapped
}

// codeToError maps documented venue codes onto the standardized set.
// Unmapped codes stay bare APIErrors and are treated as unknown.
var codeToError = map[int]error{
	10000: apperrors.ErrExchangeMaintenance, // system error
	10009: apperrors.ErrRateLimitExceeded,

	20001: apperrors.ErrAuthenticationFailed, // auth header missing
	20003: apperrors.ErrAuthenticationFailed, // api key not found
	20004: apperrors.ErrAuthenticationFailed, // nonce missing
	20005: apperrors.ErrAuthenticationFailed, // invalid signature
	20014: apperrors.ErrAuthenticationFailed,

	50009: apperrors.ErrOrderNotFound,
	50010: apperrors.ErrOrderNotFound, // no cancellable order

	60001: apperrors.ErrInsufficientFunds,
	60003: apperrors.ErrExceedOrderLimit,
	60004: apperrors.ErrInvalidPrice, // amount or price under the allowed threshold
	60005: apperrors.ErrInvalidPrice,
	60006: apperrors.ErrInvalidPrice, // price outside the allowed band

	70001: apperrors.ErrExchangeMaintenance,
	70009: apperrors.ErrExchangeMaintenance, // orders temporarily not accepted
}

func newAPIError(code int) *APIError {
	return &APIError{Code: code, mapped: codeToError[code]}
}
