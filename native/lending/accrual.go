package lending

// Accrue advances a market's cumulative interest indices and aggregate
// balances to the supplied timestamp. It is the single state transition every
// balance-mutating operation runs first; callers must use post-accrual values
// for all subsequent checks.
//
// Compounding is simple interest per call (factor = 1 + rate*elapsed) applied
// multiplicatively across calls, which approximates continuous compounding
// for short accrual intervals.
func Accrue(m *Market, now int64, model RateModel, protocolFeeBps uint64) error {
	if m == nil {
		return ErrMarketNotFound
	}
	m.EnsureDefaults()

	// An empty market has nothing to compound; stamping the clock keeps the
	// first real accrual from covering the idle gap.
	if m.TotalSupplied == 0 && m.TotalBorrowed == 0 {
		m.LastAccrualTime = now
		return nil
	}

	if now < m.LastAccrualTime {
		return ErrClockRegression
	}
	elapsed := uint64(now - m.LastAccrualTime)
	if elapsed == 0 {
		// Idempotent: a second call in the same instant must not double-accrue.
		return nil
	}

	utilization, err := UtilizationRate(m.TotalBorrowed, m.TotalSupplied)
	if err != nil {
		return err
	}
	borrowRate, err := model.BorrowRate(utilization)
	if err != nil {
		return err
	}
	supplyRate, err := model.SupplyRate(borrowRate, utilization, protocolFeeBps)
	if err != nil {
		return err
	}

	borrowFactor, err := rateFactor(borrowRate, elapsed)
	if err != nil {
		return err
	}
	supplyFactor, err := rateFactor(supplyRate, elapsed)
	if err != nil {
		return err
	}

	borrowIndex, err := indexMul(m.BorrowIndex, borrowFactor)
	if err != nil {
		return err
	}
	supplyIndex, err := indexMul(m.SupplyIndex, supplyFactor)
	if err != nil {
		return err
	}

	// Aggregates are scaled once per call by the same period factors that
	// advanced the indices, never per position.
	totalBorrowed, err := mulDiv(m.TotalBorrowed, borrowFactor, Scale)
	if err != nil {
		return err
	}
	totalSupplied, err := mulDiv(m.TotalSupplied, supplyFactor, Scale)
	if err != nil {
		return err
	}

	m.BorrowIndex = borrowIndex
	m.SupplyIndex = supplyIndex
	m.TotalBorrowed = totalBorrowed
	m.TotalSupplied = totalSupplied
	m.LastAccrualTime = now
	return nil
}

// rateFactor converts a per-second rate and an elapsed duration into a
// Scale-scaled multiplicative period factor.
func rateFactor(ratePerSecond, elapsed uint64) (uint64, error) {
	growth, err := checkedMul(ratePerSecond, elapsed)
	if err != nil {
		return 0, err
	}
	return checkedAdd(Scale, growth)
}
