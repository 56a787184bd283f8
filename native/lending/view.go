package lending

// Read-side queries. Snapshots accrue a private copy of the market to the
// current time so callers see live interest without a state write.

// MarketSnapshot is the query view of one market.
type MarketSnapshot struct {
	MarketID                uint8  `json:"marketId"`
	Asset                   string `json:"asset"`
	ShareToken              string `json:"shareToken"`
	LTVBps                  uint64 `json:"ltvBps"`
	LiquidationThresholdBps uint64 `json:"liquidationThresholdBps"`
	TotalSupplied           uint64 `json:"totalSupplied"`
	TotalBorrowed           uint64 `json:"totalBorrowed"`
	TotalSupplyShares       uint64 `json:"totalSupplyShares"`
	AvailableLiquidity      uint64 `json:"availableLiquidity"`
	UtilizationBps          uint64 `json:"utilizationBps"`
	BorrowRate              uint64 `json:"borrowRate"`
	SupplyRate              uint64 `json:"supplyRate"`
	ExchangeRate            string `json:"exchangeRate"`
	Paused                  bool   `json:"paused"`
	LastAccrualTime         int64  `json:"lastAccrualTime"`
}

// PositionSnapshot is the query view of one borrow position.
type PositionSnapshot struct {
	User             string `json:"user"`
	Market           string `json:"market"`
	CollateralMarket string `json:"collateralMarket"`
	Collateral       uint64 `json:"collateral"`
	CurrentDebt      uint64 `json:"currentDebt"`
	HealthFactorBps  uint64 `json:"healthFactorBps"`
	LastUpdated      int64  `json:"lastUpdated"`
}

// MarketView returns the live view of a market, with interest accrued to now
// on a private copy.
func (e *Engine) MarketView(asset string) (*MarketSnapshot, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	cfg, err := e.globalConfig()
	if err != nil {
		return nil, err
	}
	market, err := e.market(asset)
	if err != nil {
		return nil, err
	}
	if err := Accrue(market, e.now(), e.model, cfg.ProtocolFeeBps); err != nil {
		return nil, err
	}
	utilization, err := UtilizationRate(market.TotalBorrowed, market.TotalSupplied)
	if err != nil {
		return nil, err
	}
	borrowRate, err := e.model.BorrowRate(utilization)
	if err != nil {
		return nil, err
	}
	supplyRate, err := e.model.SupplyRate(borrowRate, utilization, cfg.ProtocolFeeBps)
	if err != nil {
		return nil, err
	}
	return &MarketSnapshot{
		MarketID:                market.MarketID,
		Asset:                   market.Asset,
		ShareToken:              market.ShareToken,
		LTVBps:                  market.LTVBps,
		LiquidationThresholdBps: market.LiquidationThresholdBps,
		TotalSupplied:           market.TotalSupplied,
		TotalBorrowed:           market.TotalBorrowed,
		TotalSupplyShares:       market.TotalSupplyShares,
		AvailableLiquidity:      market.AvailableLiquidity(),
		UtilizationBps:          utilization,
		BorrowRate:              borrowRate,
		SupplyRate:              supplyRate,
		ExchangeRate:            ExchangeRate(market).Dec(),
		Paused:                  market.Paused,
		LastAccrualTime:         market.LastAccrualTime,
	}, nil
}

// PositionView returns the live view of a user's borrow position, including
// the interest-inclusive debt and, when an oracle is wired, the health factor
// at fresh prices.
func (e *Engine) PositionView(user, debtAsset string) (*PositionSnapshot, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	cfg, err := e.globalConfig()
	if err != nil {
		return nil, err
	}
	market, err := e.market(debtAsset)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err := Accrue(market, now, e.model, cfg.ProtocolFeeBps); err != nil {
		return nil, err
	}
	position, err := e.state.Position(user, debtAsset)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, ErrPositionNotFound
	}
	position.EnsureDefaults()
	debt, err := CurrentDebt(position, market)
	if err != nil {
		return nil, err
	}

	hf := HealthFactorMax
	if debt > 0 && e.oracle != nil {
		collateralMarket, err := e.market(position.CollateralMarket)
		if err != nil {
			return nil, err
		}
		debtPrice, err := e.freshPrice(market, now)
		if err != nil {
			return nil, err
		}
		collateralPrice, err := e.freshPrice(collateralMarket, now)
		if err != nil {
			return nil, err
		}
		collateralValue, err := checkedMul(position.Collateral, collateralPrice)
		if err != nil {
			return nil, err
		}
		borrowedValue, err := checkedMul(debt, debtPrice)
		if err != nil {
			return nil, err
		}
		hf, err = HealthFactor(collateralValue, collateralMarket.LiquidationThresholdBps, borrowedValue)
		if err != nil {
			return nil, err
		}
	}
	return &PositionSnapshot{
		User:             position.User,
		Market:           position.Market,
		CollateralMarket: position.CollateralMarket,
		Collateral:       position.Collateral,
		CurrentDebt:      debt,
		HealthFactorBps:  hf,
		LastUpdated:      position.LastUpdated,
	}, nil
}
