package server

import (
	"errors"
	"net/http"

	"lendhub/native/common"
	"lendhub/native/lending"
)

// statusForError maps engine sentinels onto HTTP status codes. Unknown errors
// surface as 500 so operational failures are never mistaken for user mistakes.
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, lending.ErrMarketNotFound),
		errors.Is(err, lending.ErrPositionNotFound),
		errors.Is(err, lending.ErrVaultNotFound):
		return http.StatusNotFound
	case errors.Is(err, lending.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, lending.ErrMarketExists),
		errors.Is(err, lending.ErrVaultExists),
		errors.Is(err, lending.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, lending.ErrMarketPaused),
		errors.Is(err, common.ErrModulePaused):
		return http.StatusConflict
	case errors.Is(err, lending.ErrInvalidAmount),
		errors.Is(err, lending.ErrBelowMinimum),
		errors.Is(err, lending.ErrInvalidLTV),
		errors.Is(err, lending.ErrInvalidLiquidationThreshold),
		errors.Is(err, lending.ErrThresholdTooLow),
		errors.Is(err, lending.ErrInvalidVaultStrategy),
		errors.Is(err, lending.ErrInvalidVaultAllocation),
		errors.Is(err, lending.ErrCollateralMismatch):
		return http.StatusBadRequest
	case errors.Is(err, lending.ErrInsufficientLiquidity),
		errors.Is(err, lending.ErrInsufficientShares),
		errors.Is(err, lending.ErrInsufficientCollateral),
		errors.Is(err, lending.ErrHealthFactorTooLow),
		errors.Is(err, lending.ErrLiquidationNotNeeded),
		errors.Is(err, lending.ErrSlippageExceeded),
		errors.Is(err, lending.ErrNoDebt),
		errors.Is(err, lending.ErrMarketLimit),
		errors.Is(err, lending.ErrMathOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lending.ErrStalePrice),
		errors.Is(err, lending.ErrInvalidPrice),
		errors.Is(err, lending.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
