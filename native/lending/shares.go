package lending

import "github.com/holiman/uint256"

// Share bookkeeping: lender claims are redeemable shares priced by a floating
// exchange rate derived from market totals. Mint and burn use floor division
// everywhere so rounding dust always stays with the protocol, never the user.

// ExchangeRate returns totalSupplied*Scale/totalShares, or exactly 1.0 for an
// empty share supply. The rate only rises as interest accrues; minting or
// burning at the current rate leaves it unchanged.
func ExchangeRate(m *Market) *uint256.Int {
	if m == nil || m.TotalSupplyShares == 0 {
		return unitIndex()
	}
	rate := new(uint256.Int).Mul(
		new(uint256.Int).SetUint64(m.TotalSupplied),
		new(uint256.Int).SetUint64(Scale),
	)
	rate.Div(rate, new(uint256.Int).SetUint64(m.TotalSupplyShares))
	return rate
}

// MintShares credits a deposit to the market and returns the shares minted at
// the current exchange rate. Callers must have accrued the market first.
func MintShares(m *Market, amount uint64) (uint64, error) {
	if m == nil {
		return 0, ErrMarketNotFound
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	rate := ExchangeRate(m)
	scaled := new(uint256.Int).Mul(
		new(uint256.Int).SetUint64(amount),
		new(uint256.Int).SetUint64(Scale),
	)
	scaled.Div(scaled, rate)
	if !scaled.IsUint64() {
		return 0, ErrMathOverflow
	}
	shares := scaled.Uint64()

	totalSupplied, err := checkedAdd(m.TotalSupplied, amount)
	if err != nil {
		return 0, err
	}
	totalShares, err := checkedAdd(m.TotalSupplyShares, shares)
	if err != nil {
		return 0, err
	}
	m.TotalSupplied = totalSupplied
	m.TotalSupplyShares = totalShares
	return shares, nil
}

// BurnShares redeems shares for underlying at the current exchange rate. The
// redemption is bounded by the market's unlent liquidity; lent-out funds stay
// owed to the remaining suppliers.
func BurnShares(m *Market, shares uint64) (uint64, error) {
	if m == nil {
		return 0, ErrMarketNotFound
	}
	if shares == 0 {
		return 0, ErrInvalidAmount
	}
	if shares > m.TotalSupplyShares {
		return 0, ErrInsufficientShares
	}
	rate := ExchangeRate(m)
	scaled := new(uint256.Int).Mul(new(uint256.Int).SetUint64(shares), rate)
	scaled.Div(scaled, new(uint256.Int).SetUint64(Scale))
	if !scaled.IsUint64() {
		return 0, ErrMathOverflow
	}
	underlying := scaled.Uint64()
	if underlying > m.AvailableLiquidity() {
		return 0, ErrInsufficientLiquidity
	}

	totalSupplied, err := checkedSub(m.TotalSupplied, underlying)
	if err != nil {
		return 0, err
	}
	m.TotalSupplied = totalSupplied
	m.TotalSupplyShares -= shares
	if m.TotalSupplyShares == 0 && m.TotalBorrowed == 0 {
		// Sweep floor-rounding dust so zero claims means zero supplied value.
		m.TotalSupplied = 0
	}
	return underlying, nil
}
