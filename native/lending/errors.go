package lending

import "errors"

var (
	ErrNilState                    = errors.New("lending: state not configured")
	ErrMathOverflow                = errors.New("lending: math overflow")
	ErrInvalidAmount               = errors.New("lending: amount must be positive")
	ErrBelowMinimum                = errors.New("lending: amount below configured minimum")
	ErrInvalidLTV                  = errors.New("lending: ltv exceeds protocol bounds")
	ErrInvalidLiquidationThreshold = errors.New("lending: liquidation threshold outside protocol bounds")
	ErrThresholdTooLow             = errors.New("lending: liquidation threshold must exceed ltv")
	ErrMarketLimit                 = errors.New("lending: market limit reached")
	ErrMarketExists                = errors.New("lending: market already initialised")
	ErrMarketNotFound              = errors.New("lending: market not found")
	ErrMarketPaused                = errors.New("lending: market paused")
	ErrInsufficientLiquidity       = errors.New("lending: insufficient liquidity")
	ErrInsufficientShares          = errors.New("lending: insufficient supply shares")
	ErrInsufficientCollateral      = errors.New("lending: insufficient collateral")
	ErrCollateralMismatch          = errors.New("lending: position pledged a different collateral market")
	ErrNoDebt                      = errors.New("lending: no outstanding debt")
	ErrPositionNotFound            = errors.New("lending: borrow position not found")
	ErrHealthFactorTooLow          = errors.New("lending: health factor below 1")
	ErrLiquidationNotNeeded        = errors.New("lending: health factor is safe")
	ErrSlippageExceeded            = errors.New("lending: collateral payout below floor")
	ErrStalePrice                  = errors.New("lending: oracle price is stale")
	ErrInvalidPrice                = errors.New("lending: oracle price must be positive")
	ErrUnauthorized                = errors.New("lending: unauthorized")
	ErrClockRegression             = errors.New("lending: clock moved backwards")
	ErrNotInitialized              = errors.New("lending: protocol not initialised")
	ErrAlreadyInitialized          = errors.New("lending: protocol already initialised")
	ErrInvalidVaultStrategy        = errors.New("lending: unknown vault strategy")
	ErrInvalidVaultAllocation      = errors.New("lending: vault allocation exceeds 100%")
	ErrVaultNotFound               = errors.New("lending: vault not found")
	ErrVaultExists                 = errors.New("lending: vault already exists")
)
