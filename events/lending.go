package events

import "strconv"

// Event type identifiers for the lending module.
const (
	TypeMarketCreated           = "lending.market.created"
	TypeSupplied                = "lending.supplied"
	TypeWithdrawn               = "lending.withdrawn"
	TypeCollateralDeposited     = "lending.collateral.deposited"
	TypeCollateralWithdrawn     = "lending.collateral.withdrawn"
	TypeBorrowed                = "lending.borrowed"
	TypeRepaid                  = "lending.repaid"
	TypeLiquidated              = "lending.liquidated"
	TypeVaultCreated            = "lending.vault.created"
	TypeVaultAllocationsChanged = "lending.vault.allocations"
	TypeVaultRebalanced         = "lending.vault.rebalanced"
	TypeMarketPauseChanged      = "lending.market.pause"
	TypeProtocolInitialized     = "lending.initialized"
)

// MarketCreated records a new market listing.
type MarketCreated struct {
	MarketID                uint8
	Asset                   string
	Creator                 string
	LTVBps                  uint64
	LiquidationThresholdBps uint64
	Timestamp               int64
}

func (MarketCreated) EventType() string { return TypeMarketCreated }

func (e MarketCreated) Attributes() map[string]string {
	return map[string]string{
		"marketId":                strconv.FormatUint(uint64(e.MarketID), 10),
		"asset":                   e.Asset,
		"creator":                 e.Creator,
		"ltvBps":                  strconv.FormatUint(e.LTVBps, 10),
		"liquidationThresholdBps": strconv.FormatUint(e.LiquidationThresholdBps, 10),
		"timestamp":               strconv.FormatInt(e.Timestamp, 10),
	}
}

// Supplied records a deposit and the post-mutation aggregates.
type Supplied struct {
	Asset         string
	User          string
	Amount        uint64
	SharesMinted  uint64
	TotalSupplied uint64
	Timestamp     int64
}

func (Supplied) EventType() string { return TypeSupplied }

func (e Supplied) Attributes() map[string]string {
	return map[string]string{
		"asset":         e.Asset,
		"user":          e.User,
		"amount":        strconv.FormatUint(e.Amount, 10),
		"sharesMinted":  strconv.FormatUint(e.SharesMinted, 10),
		"totalSupplied": strconv.FormatUint(e.TotalSupplied, 10),
		"timestamp":     strconv.FormatInt(e.Timestamp, 10),
	}
}

// Withdrawn records a share redemption.
type Withdrawn struct {
	Asset         string
	User          string
	SharesBurned  uint64
	Amount        uint64
	TotalSupplied uint64
	Timestamp     int64
}

func (Withdrawn) EventType() string { return TypeWithdrawn }

func (e Withdrawn) Attributes() map[string]string {
	return map[string]string{
		"asset":         e.Asset,
		"user":          e.User,
		"sharesBurned":  strconv.FormatUint(e.SharesBurned, 10),
		"amount":        strconv.FormatUint(e.Amount, 10),
		"totalSupplied": strconv.FormatUint(e.TotalSupplied, 10),
		"timestamp":     strconv.FormatInt(e.Timestamp, 10),
	}
}

// CollateralDeposited records collateral pledged against a debt market.
type CollateralDeposited struct {
	Asset            string
	CollateralMarket string
	User             string
	Amount           uint64
	Collateral       uint64
	Timestamp        int64
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

func (e CollateralDeposited) Attributes() map[string]string {
	return map[string]string{
		"asset":            e.Asset,
		"collateralMarket": e.CollateralMarket,
		"user":             e.User,
		"amount":           strconv.FormatUint(e.Amount, 10),
		"collateral":       strconv.FormatUint(e.Collateral, 10),
		"timestamp":        strconv.FormatInt(e.Timestamp, 10),
	}
}

// CollateralWithdrawn records collateral released back to the user.
type CollateralWithdrawn struct {
	Asset      string
	User       string
	Amount     uint64
	Collateral uint64
	Timestamp  int64
}

func (CollateralWithdrawn) EventType() string { return TypeCollateralWithdrawn }

func (e CollateralWithdrawn) Attributes() map[string]string {
	return map[string]string{
		"asset":      e.Asset,
		"user":       e.User,
		"amount":     strconv.FormatUint(e.Amount, 10),
		"collateral": strconv.FormatUint(e.Collateral, 10),
		"timestamp":  strconv.FormatInt(e.Timestamp, 10),
	}
}

// Borrowed records a draw-down and the post-mutation aggregates.
type Borrowed struct {
	Asset          string
	User           string
	Amount         uint64
	TotalBorrowed  uint64
	UtilizationBps uint64
	Timestamp      int64
}

func (Borrowed) EventType() string { return TypeBorrowed }

func (e Borrowed) Attributes() map[string]string {
	return map[string]string{
		"asset":          e.Asset,
		"user":           e.User,
		"amount":         strconv.FormatUint(e.Amount, 10),
		"totalBorrowed":  strconv.FormatUint(e.TotalBorrowed, 10),
		"utilizationBps": strconv.FormatUint(e.UtilizationBps, 10),
		"timestamp":      strconv.FormatInt(e.Timestamp, 10),
	}
}

// Repaid records a debt repayment.
type Repaid struct {
	Asset         string
	User          string
	Amount        uint64
	TotalBorrowed uint64
	Timestamp     int64
}

func (Repaid) EventType() string { return TypeRepaid }

func (e Repaid) Attributes() map[string]string {
	return map[string]string{
		"asset":         e.Asset,
		"user":          e.User,
		"amount":        strconv.FormatUint(e.Amount, 10),
		"totalBorrowed": strconv.FormatUint(e.TotalBorrowed, 10),
		"timestamp":     strconv.FormatInt(e.Timestamp, 10),
	}
}

// Liquidated records a liquidation across the debt and collateral markets.
type Liquidated struct {
	DebtAsset        string
	CollateralAsset  string
	Liquidator       string
	Borrower         string
	RepayAmount      uint64
	CollateralSeized uint64
	Timestamp        int64
}

func (Liquidated) EventType() string { return TypeLiquidated }

func (e Liquidated) Attributes() map[string]string {
	return map[string]string{
		"debtAsset":        e.DebtAsset,
		"collateralAsset":  e.CollateralAsset,
		"liquidator":       e.Liquidator,
		"borrower":         e.Borrower,
		"repayAmount":      strconv.FormatUint(e.RepayAmount, 10),
		"collateralSeized": strconv.FormatUint(e.CollateralSeized, 10),
		"timestamp":        strconv.FormatInt(e.Timestamp, 10),
	}
}

// VaultCreated records a new vault account.
type VaultCreated struct {
	Owner     string
	Strategy  uint8
	Timestamp int64
}

func (VaultCreated) EventType() string { return TypeVaultCreated }

func (e VaultCreated) Attributes() map[string]string {
	return map[string]string{
		"owner":     e.Owner,
		"strategy":  strconv.FormatUint(uint64(e.Strategy), 10),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
}

// VaultAllocationsChanged records replacement of a vault's target allocations.
type VaultAllocationsChanged struct {
	Owner     string
	TotalBps  uint64
	Markets   int
	Timestamp int64
}

func (VaultAllocationsChanged) EventType() string { return TypeVaultAllocationsChanged }

func (e VaultAllocationsChanged) Attributes() map[string]string {
	return map[string]string{
		"owner":     e.Owner,
		"totalBps":  strconv.FormatUint(e.TotalBps, 10),
		"markets":   strconv.Itoa(e.Markets),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
}

// VaultRebalanced records a rebalance stamp.
type VaultRebalanced struct {
	Owner     string
	Timestamp int64
}

func (VaultRebalanced) EventType() string { return TypeVaultRebalanced }

func (e VaultRebalanced) Attributes() map[string]string {
	return map[string]string{
		"owner":     e.Owner,
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
}

// MarketPauseChanged records an admin pause or unpause.
type MarketPauseChanged struct {
	Asset     string
	Paused    bool
	Timestamp int64
}

func (MarketPauseChanged) EventType() string { return TypeMarketPauseChanged }

func (e MarketPauseChanged) Attributes() map[string]string {
	return map[string]string{
		"asset":     e.Asset,
		"paused":    strconv.FormatBool(e.Paused),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
}

// ProtocolInitialized records creation of the global configuration.
type ProtocolInitialized struct {
	Authority string
	Treasury  string
	Timestamp int64
}

func (ProtocolInitialized) EventType() string { return TypeProtocolInitialized }

func (e ProtocolInitialized) Attributes() map[string]string {
	return map[string]string{
		"authority": e.Authority,
		"treasury":  e.Treasury,
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
}
