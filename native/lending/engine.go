package lending

import (
	"fmt"
	"time"

	"lendhub/events"
	nativecommon "lendhub/native/common"
)

const moduleName = "lending"

// Engine executes the balance-mutating operations of the lending protocol:
// supply, withdraw, collateral management, borrow, repay and liquidation. All
// value movement and token issuance is delegated to the wired collaborators;
// the engine itself only decides amounts and persists records.
//
// Every operation loads fresh copies from State, computes and validates the
// full outcome, performs the external effects, and only then persists. A
// failed check never leaves partial mutations behind.
type Engine struct {
	state   State
	clock   Clock
	mover   ValueMover
	shares  ShareToken
	oracle  PriceOracle
	auth    Authorizer
	emitter events.Emitter
	pauses  nativecommon.PauseView

	model RateModel

	// reserveAccount custodies pooled lending liquidity; collateralAccount
	// custodies pledged collateral. Keeping them separate means pool
	// accounting never nets against collateral custody.
	reserveAccount    string
	collateralAccount string

	minSupply   uint64
	minBorrow   uint64
	maxPriceAge int64
}

// NewEngine constructs an engine with default rate model and floors. The
// custody accounts receive and disburse value through the wired ValueMover.
func NewEngine(reserveAccount, collateralAccount string) *Engine {
	return &Engine{
		emitter:           events.NoopEmitter{},
		model:             DefaultRateModel(),
		reserveAccount:    reserveAccount,
		collateralAccount: collateralAccount,
		minSupply:         MinSupplyAmount,
		minBorrow:         MinBorrowAmount,
		maxPriceAge:       OracleStalenessThreshold,
	}
}

// SetState wires the record store.
func (e *Engine) SetState(state State) { e.state = state }

// SetClock overrides the timestamp source. Nil restores the system clock.
func (e *Engine) SetClock(clock Clock) { e.clock = clock }

// SetValueMover wires underlying-asset custody transfers.
func (e *Engine) SetValueMover(mover ValueMover) { e.mover = mover }

// SetShareToken wires share-token issuance.
func (e *Engine) SetShareToken(shares ShareToken) { e.shares = shares }

// SetOracle wires the price feed used for risk checks.
func (e *Engine) SetOracle(oracle PriceOracle) { e.oracle = oracle }

// SetAuthorizer wires capability checks. A nil authorizer is permissive.
func (e *Engine) SetAuthorizer(auth Authorizer) { e.auth = auth }

// SetEmitter wires the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetPauses wires the host's module pause switches.
func (e *Engine) SetPauses(pauses nativecommon.PauseView) { e.pauses = pauses }

// SetRateModel replaces the interest curve.
func (e *Engine) SetRateModel(model RateModel) { e.model = model }

// RateModel returns the interest curve in use.
func (e *Engine) RateModel() RateModel { return e.model }

// ApplyConfig installs operator-tunable parameters from a protocol config.
func (e *Engine) ApplyConfig(cfg Config) {
	cfg.Normalize()
	e.model = cfg.RateModel()
	e.minSupply = cfg.MinSupplyAmount
	e.minBorrow = cfg.MinBorrowAmount
	e.maxPriceAge = cfg.MaxPriceAgeSeconds
}

func systemNow() int64 { return time.Now().Unix() }

func (e *Engine) now() int64 {
	if e.clock != nil {
		return e.clock.Now()
	}
	return systemNow()
}

func (e *Engine) guard() error {
	return nativecommon.Guard(e.pauses, moduleName)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return e.guard()
}

func (e *Engine) globalConfig() (*GlobalConfig, error) {
	cfg, err := e.state.GlobalConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

func (e *Engine) market(asset string) (*Market, error) {
	market, err := e.state.Market(asset)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, ErrMarketNotFound
	}
	market.EnsureDefaults()
	return market, nil
}

// freshPrice fetches the market's oracle quote and rejects stale or
// non-positive readings before any risk math can consume them.
func (e *Engine) freshPrice(m *Market, now int64) (uint64, error) {
	if e.oracle == nil {
		return 0, ErrInvalidPrice
	}
	feed := m.Oracle
	if feed == "" {
		feed = m.Asset
	}
	price, asOf, err := e.oracle.PriceOf(feed)
	if err != nil {
		return 0, err
	}
	if price == 0 {
		return 0, ErrInvalidPrice
	}
	if now-asOf > e.maxPriceAge {
		return 0, ErrStalePrice
	}
	return price, nil
}

// Supply deposits underlying into a market and mints supply shares to the
// user at the post-accrual exchange rate.
func (e *Engine) Supply(user, asset string, amount uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if user == "" || amount == 0 {
		return 0, ErrInvalidAmount
	}
	if amount < e.minSupply {
		return 0, ErrBelowMinimum
	}
	cfg, err := e.globalConfig()
	if err != nil {
		return 0, err
	}
	market, err := e.market(asset)
	if err != nil {
		return 0, err
	}
	if market.Paused {
		return 0, ErrMarketPaused
	}
	now := e.now()
	if err := Accrue(market, now, e.model, cfg.ProtocolFeeBps); err != nil {
		return 0, err
	}
	minted, err := MintShares(market, amount)
	if err != nil {
		return 0, err
	}
	if minted == 0 {
		// Floor division priced the deposit at zero shares. Never take value
		// without issuing a claim on it.
		return 0, ErrInvalidAmount
	}
	if e.mover != nil {
		if err := e.mover.Move(asset, user, e.reserveAccount, amount); err != nil {
			return 0, err
		}
	}
	if e.shares != nil {
		if err := e.shares.Mint(market.ShareToken, user, minted); err != nil {
			return 0, err
		}
	}
	if err := e.state.PutMarket(market); err != nil {
		return 0, err
	}
	e.emitter.Emit(events.Supplied{
		Asset:         asset,
		User:          user,
		Amount:        amount,
		SharesMinted:  minted,
		TotalSupplied: market.TotalSupplied,
		Timestamp:     now,
	})
	return minted, nil
}

// Withdraw burns the user's supply shares and pays out underlying at the
// post-accrual exchange rate, bounded by the market's unlent liquidity. A
// paused market still honors redemptions; pause stops new exposure, never a
// lender's exit.
func (e *Engine) Withdraw(user, asset string, shares uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if user == "" || shares == 0 {
		return 0, ErrInvalidAmount
	}
	cfg, err := e.globalConfig()
	if err != nil {
		return 0, err
	}
	market, err := e.market(asset)
	if err != nil {
		return 0, err
	}
	now := e.now()
	if err := Accrue(market, now, e.model, cfg.ProtocolFeeBps); err != nil {
		return 0, err
	}
	amount, err := BurnShares(market, shares)
	if err != nil {
		return 0, err
	}
	if e.shares != nil {
		if err := e.shares.Burn(market.ShareToken, user, shares); err != nil {
			return 0, err
		}
	}
	if e.mover != nil && amount > 0 {
		if err := e.mover.Move(asset, e.reserveAccount, user, amount); err != nil {
			return 0, err
		}
	}
	if err := e.state.PutMarket(market); err != nil {
		return 0, err
	}
	e.emitter.Emit(events.Withdrawn{
		Asset:         asset,
		User:          user,
		SharesBurned:  shares,
		Amount:        amount,
		TotalSupplied: market.TotalSupplied,
		Timestamp:     now,
	})
	return amount, nil
}

// DepositCollateral pledges collateral against the user's position in the
// debt market, opening the position when none exists. A position is bound to
// one collateral market for its lifetime.
func (e *Engine) DepositCollateral(user, debtAsset, collateralAsset string, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if user == "" || amount == 0 {
		return ErrInvalidAmount
	}
	cfg, err := e.globalConfig()
	if err != nil {
		return err
	}
	market, err := e.market(debtAsset)
	if err != nil {
		return err
	}
	if market.Paused {
		return ErrMarketPaused
	}
	if _, err := e.market(collateralAsset); err != nil {
		return err
	}
	now := e.now()
	if err := Accrue(market, now, e.model, cfg.ProtocolFeeBps); err != nil {
		return err
	}

	position, err := e.state.Position(user, debtAsset)
	if err != nil {
		return err
	}
	if position == nil {
		position = &BorrowPosition{
			User:                user,
			Market:              debtAsset,
			CollateralMarket:    collateralAsset,
			BorrowIndexSnapshot: market.BorrowIndex.Clone(),
			CreatedAt:           now,
		}
	} else {
		position.EnsureDefaults()
		if position.CollateralMarket != collateralAsset {
			return ErrCollateralMismatch
		}
	}
	collateral, err := checkedAdd(position.Collateral, amount)
	if err != nil {
		return err
	}
	position.Collateral = collateral
	position.LastUpdated = now

	if e.mover != nil {
		if err := e.mover.Move(collateralAsset, user, e.collateralAccount, amount); err != nil {
			return err
		}
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	if err := e.state.PutMarket(market); err != nil {
		return err
	}
	e.emitter.Emit(events.CollateralDeposited{
		Asset:            debtAsset,
		CollateralMarket: collateralAsset,
		User:             user,
		Amount:           amount,
		Collateral:       position.Collateral,
		Timestamp:        now,
	})
	return nil
}

// WithdrawCollateral releases pledged collateral back to the user. When debt
// is outstanding the remaining collateral must keep the health factor at or
// above 1.
func (e *Engine) WithdrawCollateral(user, debtAsset string, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if user == "" || amount == 0 {
		return ErrInvalidAmount
	}
	cfg, err := e.globalConfig()
	if err != nil {
		return err
	}
	market, err := e.market(debtAsset)
	if err != nil {
		return err
	}
	now := e.now()
	if err := Accrue(market, now, e.model, cfg.ProtocolFeeBps); err != nil {
		return err
	}

	position, err := e.state.Position(user, debtAsset)
	if err != nil {
		return err
	}
	if position == nil {
		return ErrPositionNotFound
	}
	position.EnsureDefaults()
	if amount > position.Collateral {
		return ErrInsufficientCollateral
	}
	remaining := position.Collateral - amount

	debt, err := CurrentDebt(position, market)
	if err != nil {
		return err
	}
	if debt > 0 {
		collateralMarket, err := e.market(position.CollateralMarket)
		if err != nil {
			return err
		}
		debtPrice, err := e.freshPrice(market, now)
		if err != nil {
			return err
		}
		collateralPrice, err := e.freshPrice(collateralMarket, now)
		if err != nil {
			return err
		}
		collateralValue, err := checkedMul(remaining, collateralPrice)
		if err != nil {
			return err
		}
		borrowedValue, err := checkedMul(debt, debtPrice)
		if err != nil {
			return err
		}
		hf, err := HealthFactor(collateralValue, collateralMarket.LiquidationThresholdBps, borrowedValue)
		if err != nil {
			return err
		}
		if hf < MinHealthFactorBps {
			return ErrHealthFactorTooLow
		}
	}

	position.Collateral = remaining
	position.LastUpdated = now
	if e.mover != nil {
		if err := e.mover.Move(position.CollateralMarket, e.collateralAccount, user, amount); err != nil {
			return err
		}
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	if err := e.state.PutMarket(market); err != nil {
		return err
	}
	e.emitter.Emit(events.CollateralWithdrawn{
		Asset:      debtAsset,
		User:       user,
		Amount:     amount,
		Collateral: position.Collateral,
		Timestamp:  now,
	})
	return nil
}

// Borrow draws underlying from the market against the user's pledged
// collateral. The projected debt must stay within the collateral market's LTV
// at fresh oracle prices, and the pool must hold enough unlent liquidity.
func (e *Engine) Borrow(user, debtAsset string, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if user == "" || amount == 0 {
		return ErrInvalidAmount
	}
	if amount < e.minBorrow {
		return ErrBelowMinimum
	}
	cfg, err := e.globalConfig()
	if err != nil {
		return err
	}
	market, err := e.market(debtAsset)
	if err != nil {
		return err
	}
	if market.Paused {
		return ErrMarketPaused
	}
	now := e.now()
	if err := Accrue(market, now, e.model, cfg.ProtocolFeeBps); err != nil {
		return err
	}
	if amount > market.AvailableLiquidity() {
		return ErrInsufficientLiquidity
	}

	position, err := e.state.Position(user, debtAsset)
	if err != nil {
		return err
	}
	if position == nil || position.Collateral == 0 {
		return ErrInsufficientCollateral
	}
	position.EnsureDefaults()
	collateralMarket, err := e.market(position.CollateralMarket)
	if err != nil {
		return err
	}

	debtPrice, err := e.freshPrice(market, now)
	if err != nil {
		return err
	}
	collateralPrice, err := e.freshPrice(collateralMarket, now)
	if err != nil {
		return err
	}
	debt, err := CurrentDebt(position, market)
	if err != nil {
		return err
	}
	projected, err := checkedAdd(debt, amount)
	if err != nil {
		return err
	}
	borrowedValue, err := checkedMul(projected, debtPrice)
	if err != nil {
		return err
	}
	collateralValue, err := checkedMul(position.Collateral, collateralPrice)
	if err != nil {
		return err
	}
	limit, err := mulDiv(collateralValue, collateralMarket.LTVBps, BpsScale)
	if err != nil {
		return err
	}
	if borrowedValue > limit {
		return ErrHealthFactorTooLow
	}

	if err := ApplyBorrow(position, market, amount, now); err != nil {
		return err
	}
	totalBorrowed, err := checkedAdd(market.TotalBorrowed, amount)
	if err != nil {
		return err
	}
	market.TotalBorrowed = totalBorrowed

	if e.mover != nil {
		if err := e.mover.Move(debtAsset, e.reserveAccount, user, amount); err != nil {
			return err
		}
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	if err := e.state.PutMarket(market); err != nil {
		return err
	}
	utilization, _ := UtilizationRate(market.TotalBorrowed, market.TotalSupplied)
	e.emitter.Emit(events.Borrowed{
		Asset:          debtAsset,
		User:           user,
		Amount:         amount,
		TotalBorrowed:  market.TotalBorrowed,
		UtilizationBps: utilization,
		Timestamp:      now,
	})
	return nil
}

// Repay pays down the user's debt and returns the amount actually applied,
// capped at the interest-inclusive outstanding debt.
func (e *Engine) Repay(user, debtAsset string, amount uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if user == "" || amount == 0 {
		return 0, ErrInvalidAmount
	}
	cfg, err := e.globalConfig()
	if err != nil {
		return 0, err
	}
	market, err := e.market(debtAsset)
	if err != nil {
		return 0, err
	}
	now := e.now()
	if err := Accrue(market, now, e.model, cfg.ProtocolFeeBps); err != nil {
		return 0, err
	}

	position, err := e.state.Position(user, debtAsset)
	if err != nil {
		return 0, err
	}
	if position == nil {
		return 0, ErrPositionNotFound
	}
	position.EnsureDefaults()
	repaid, err := ApplyRepay(position, market, amount, now)
	if err != nil {
		return 0, err
	}
	reduceBorrowed(market, repaid)

	if e.mover != nil {
		if err := e.mover.Move(debtAsset, user, e.reserveAccount, repaid); err != nil {
			return 0, err
		}
	}
	if err := e.state.PutPosition(position); err != nil {
		return 0, err
	}
	if err := e.state.PutMarket(market); err != nil {
		return 0, err
	}
	e.emitter.Emit(events.Repaid{
		Asset:         debtAsset,
		User:          user,
		Amount:        repaid,
		TotalBorrowed: market.TotalBorrowed,
		Timestamp:     now,
	})
	return repaid, nil
}

// Liquidate lets the liquidator repay part of an unhealthy borrower's debt in
// exchange for discounted collateral. Both the debt and collateral markets are
// accrued first; the payout carries the liquidation bonus and is bounded by
// the pledged collateral. minCollateral is the liquidator's slippage floor.
func (e *Engine) Liquidate(liquidator, borrower, debtAsset string, repayAmount, minCollateral uint64) (repaid, seized uint64, err error) {
	if err := e.ready(); err != nil {
		return 0, 0, err
	}
	if liquidator == "" || borrower == "" || repayAmount == 0 {
		return 0, 0, ErrInvalidAmount
	}
	cfg, err := e.globalConfig()
	if err != nil {
		return 0, 0, err
	}
	market, err := e.market(debtAsset)
	if err != nil {
		return 0, 0, err
	}
	now := e.now()
	if err := Accrue(market, now, e.model, cfg.ProtocolFeeBps); err != nil {
		return 0, 0, err
	}

	position, err := e.state.Position(borrower, debtAsset)
	if err != nil {
		return 0, 0, err
	}
	if position == nil {
		return 0, 0, ErrPositionNotFound
	}
	position.EnsureDefaults()
	collateralMarket, err := e.market(position.CollateralMarket)
	if err != nil {
		return 0, 0, err
	}
	if err := Accrue(collateralMarket, now, e.model, cfg.ProtocolFeeBps); err != nil {
		return 0, 0, err
	}

	debt, err := CurrentDebt(position, market)
	if err != nil {
		return 0, 0, err
	}
	if debt == 0 {
		return 0, 0, ErrNoDebt
	}
	debtPrice, err := e.freshPrice(market, now)
	if err != nil {
		return 0, 0, err
	}
	collateralPrice, err := e.freshPrice(collateralMarket, now)
	if err != nil {
		return 0, 0, err
	}
	collateralValue, err := checkedMul(position.Collateral, collateralPrice)
	if err != nil {
		return 0, 0, err
	}
	borrowedValue, err := checkedMul(debt, debtPrice)
	if err != nil {
		return 0, 0, err
	}
	hf, err := HealthFactor(collateralValue, collateralMarket.LiquidationThresholdBps, borrowedValue)
	if err != nil {
		return 0, 0, err
	}
	if !Liquidatable(hf) {
		return 0, 0, ErrLiquidationNotNeeded
	}

	repaid = repayAmount
	if repaid > debt {
		repaid = debt
	}
	seized, err = SeizeAmount(repaid, debtPrice, collateralPrice)
	if err != nil {
		return 0, 0, err
	}
	if seized > position.Collateral {
		seized = position.Collateral
	}
	if seized < minCollateral {
		return 0, 0, ErrSlippageExceeded
	}

	if _, err := ApplyRepay(position, market, repaid, now); err != nil {
		return 0, 0, err
	}
	position.Collateral -= seized
	reduceBorrowed(market, repaid)

	if e.mover != nil {
		if err := e.mover.Move(debtAsset, liquidator, e.reserveAccount, repaid); err != nil {
			return 0, 0, err
		}
		if err := e.mover.Move(position.CollateralMarket, e.collateralAccount, liquidator, seized); err != nil {
			// The repayment is already custodied; hand it back so the aborted
			// liquidation nets to zero for the liquidator.
			if refundErr := e.mover.Move(debtAsset, e.reserveAccount, liquidator, repaid); refundErr != nil {
				return 0, 0, fmt.Errorf("lending: collateral payout failed (%v), repayment refund failed: %w", err, refundErr)
			}
			return 0, 0, err
		}
	}
	if err := e.state.PutPosition(position); err != nil {
		return 0, 0, err
	}
	if err := e.state.PutMarket(market); err != nil {
		return 0, 0, err
	}
	if err := e.state.PutMarket(collateralMarket); err != nil {
		return 0, 0, err
	}
	e.emitter.Emit(events.Liquidated{
		DebtAsset:        debtAsset,
		CollateralAsset:  position.CollateralMarket,
		Liquidator:       liquidator,
		Borrower:         borrower,
		RepayAmount:      repaid,
		CollateralSeized: seized,
		Timestamp:        now,
	})
	return repaid, seized, nil
}

// reduceBorrowed pays an amount off the market aggregate. Floor rounding in
// per-position scaling can leave the aggregate a hair behind the sum of
// positions, so the subtraction saturates instead of underflowing.
func reduceBorrowed(m *Market, amount uint64) {
	if amount >= m.TotalBorrowed {
		m.TotalBorrowed = 0
		return
	}
	m.TotalBorrowed -= amount
}
