package lending

// RateModel maps pool utilisation to per-second borrow and supply rates using
// a piecewise linear curve with a kink at OptimalUtilizationBps. All rates are
// scaled by Scale; the model carries no state.
type RateModel struct {
	// BaseRatePerSecond is the minimum borrow rate applied at zero utilisation.
	BaseRatePerSecond uint64
	// Slope1PerSecond is the rate increase across the region below the kink.
	Slope1PerSecond uint64
	// Slope2PerSecond is the steeper rate increase applied above the kink.
	Slope2PerSecond uint64
	// OptimalUtilizationBps is the kink position in basis points.
	OptimalUtilizationBps uint64
}

// DefaultRateModel returns the reference curve: ~2% APY base, ~10% APY slope
// to the 80% kink, ~100% APY slope beyond it.
func DefaultRateModel() RateModel {
	return RateModel{
		BaseRatePerSecond:     BaseRatePerSecond,
		Slope1PerSecond:       Slope1PerSecond,
		Slope2PerSecond:       Slope2PerSecond,
		OptimalUtilizationBps: OptimalUtilizationBps,
	}
}

// UtilizationRate computes borrowed/supplied in basis points. A pool with no
// supplied liquidity has zero utilisation by definition.
func UtilizationRate(totalBorrowed, totalSupplied uint64) (uint64, error) {
	if totalSupplied == 0 {
		return 0, nil
	}
	return mulDiv(totalBorrowed, BpsScale, totalSupplied)
}

// BorrowRate derives the per-second borrow rate for the given utilisation.
// Both branches meet at BaseRate+Slope1 when utilisation equals the kink, so
// the curve is continuous and non-decreasing over [0, 10000].
func (m RateModel) BorrowRate(utilizationBps uint64) (uint64, error) {
	optimal := m.OptimalUtilizationBps
	if optimal == 0 || optimal >= BpsScale {
		optimal = OptimalUtilizationBps
	}
	if utilizationBps <= optimal {
		step, err := mulDiv(m.Slope1PerSecond, utilizationBps, optimal)
		if err != nil {
			return 0, err
		}
		return checkedAdd(m.BaseRatePerSecond, step)
	}
	excess := utilizationBps - optimal
	step, err := mulDiv(m.Slope2PerSecond, excess, BpsScale-optimal)
	if err != nil {
		return 0, err
	}
	rate, err := checkedAdd(m.BaseRatePerSecond, m.Slope1PerSecond)
	if err != nil {
		return 0, err
	}
	return checkedAdd(rate, step)
}

// SupplyRate scales the borrow rate by utilisation and deducts the protocol
// fee: idle capital earns nothing and the protocol takes its cut of interest.
func (m RateModel) SupplyRate(borrowRate, utilizationBps, protocolFeeBps uint64) (uint64, error) {
	if protocolFeeBps > BpsScale {
		protocolFeeBps = BpsScale
	}
	rate, err := mulDiv(borrowRate, utilizationBps, BpsScale)
	if err != nil {
		return 0, err
	}
	return mulDiv(rate, BpsScale-protocolFeeBps, BpsScale)
}
