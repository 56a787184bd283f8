package lending

// Debt scaling for individual borrow positions. A position's principal is the
// debt realised at its last update; the market's borrow index has kept moving
// since, so the live figure is principal scaled by the index ratio.

// CurrentDebt returns the interest-inclusive debt of a position against the
// market's current borrow index. The result is never below the recorded
// principal because indices are monotonically non-decreasing.
func CurrentDebt(p *BorrowPosition, m *Market) (uint64, error) {
	if p == nil {
		return 0, ErrPositionNotFound
	}
	if m == nil {
		return 0, ErrMarketNotFound
	}
	p.EnsureDefaults()
	m.EnsureDefaults()
	if p.Principal == 0 {
		return 0, nil
	}
	return scaleByIndexRatio(p.Principal, m.BorrowIndex, p.BorrowIndexSnapshot)
}

// realizeDebt folds accrued interest into the principal and re-anchors the
// snapshot at the market's current index. Every position update must run this
// first; skipping the snapshot reset would double-count interest on the next
// read.
func realizeDebt(p *BorrowPosition, m *Market) error {
	debt, err := CurrentDebt(p, m)
	if err != nil {
		return err
	}
	p.Principal = debt
	p.BorrowIndexSnapshot = m.BorrowIndex.Clone()
	return nil
}

// ApplyBorrow realizes the position's debt and adds new principal.
func ApplyBorrow(p *BorrowPosition, m *Market, amount uint64, now int64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if err := realizeDebt(p, m); err != nil {
		return err
	}
	principal, err := checkedAdd(p.Principal, amount)
	if err != nil {
		return err
	}
	p.Principal = principal
	p.LastUpdated = now
	return nil
}

// ApplyRepay realizes the position's debt and pays it down, returning the
// amount actually applied (capped at the outstanding debt).
func ApplyRepay(p *BorrowPosition, m *Market, amount uint64, now int64) (uint64, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	if err := realizeDebt(p, m); err != nil {
		return 0, err
	}
	if p.Principal == 0 {
		return 0, ErrNoDebt
	}
	repaid := amount
	if repaid > p.Principal {
		repaid = p.Principal
	}
	p.Principal -= repaid
	p.LastUpdated = now
	return repaid, nil
}
