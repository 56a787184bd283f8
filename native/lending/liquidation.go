package lending

import (
	"math"

	"github.com/holiman/uint256"
)

// HealthFactorMax is the sentinel returned for positions with no debt.
const HealthFactorMax uint64 = math.MaxUint64

// HealthFactor computes risk-adjusted collateral over borrowed value in basis
// points: collateralValue*threshold/borrowedValue. 10000 is exactly 1.0; a
// position with no debt saturates to HealthFactorMax.
func HealthFactor(collateralValue, liquidationThresholdBps, borrowedValue uint64) (uint64, error) {
	if borrowedValue == 0 {
		return HealthFactorMax, nil
	}
	adjusted := new(uint256.Int).Mul(
		new(uint256.Int).SetUint64(collateralValue),
		new(uint256.Int).SetUint64(liquidationThresholdBps),
	)
	adjusted.Div(adjusted, new(uint256.Int).SetUint64(borrowedValue))
	if !adjusted.IsUint64() {
		return HealthFactorMax, nil
	}
	return adjusted.Uint64(), nil
}

// Liquidatable reports whether a health factor permits liquidation.
func Liquidatable(healthFactorBps uint64) bool {
	return healthFactorBps < MinHealthFactorBps
}

// LiquidationBonus returns the collateral premium owed to a liquidator for
// repaying the given amount of debt.
func LiquidationBonus(repayAmount uint64) (uint64, error) {
	return mulDiv(repayAmount, LiquidationBonusBps, BpsScale)
}

// SeizeAmount converts a debt repayment into collateral units through both
// oracle prices and adds the liquidation bonus. With both assets priced 1:1
// this reduces to repayAmount plus the bonus.
func SeizeAmount(repayAmount, debtPrice, collateralPrice uint64) (uint64, error) {
	if debtPrice == 0 || collateralPrice == 0 {
		return 0, ErrInvalidPrice
	}
	converted, err := mulDiv(repayAmount, debtPrice, collateralPrice)
	if err != nil {
		return 0, err
	}
	bonus, err := mulDiv(converted, LiquidationBonusBps, BpsScale)
	if err != nil {
		return 0, err
	}
	return checkedAdd(converted, bonus)
}

// MaxBorrow returns the largest borrowable amount for the given collateral
// value, LTV and borrow-asset price.
func MaxBorrow(collateralValue, ltvBps, price uint64) (uint64, error) {
	if price == 0 {
		return 0, ErrInvalidPrice
	}
	limit, err := mulDiv(collateralValue, ltvBps, BpsScale)
	if err != nil {
		return 0, err
	}
	return limit / price, nil
}
