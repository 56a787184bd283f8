package lending

import "github.com/holiman/uint256"

// Market captures the accounting state for one listed asset. Amount fields
// are denominated in the asset's smallest unit; indices are scaled by Scale
// and only ever grow.
type Market struct {
	// MarketID is the registry-assigned identifier, unique per asset.
	MarketID uint8 `json:"marketId"`
	// Asset identifies the underlying asset this market lends.
	Asset string `json:"asset"`
	// ShareToken identifies the yield-bearing token minted to suppliers.
	ShareToken string `json:"shareToken"`
	// Oracle identifies the price feed consulted for this asset.
	Oracle string `json:"oracle"`
	// LTVBps caps the borrowable fraction of collateral value.
	LTVBps uint64 `json:"ltvBps"`
	// LiquidationThresholdBps marks where positions become liquidatable.
	LiquidationThresholdBps uint64 `json:"liquidationThresholdBps"`
	// TotalSupplied is the interest-inclusive amount owed to lenders.
	TotalSupplied uint64 `json:"totalSupplied"`
	// TotalBorrowed is the interest-inclusive amount owed by borrowers.
	TotalBorrowed uint64 `json:"totalBorrowed"`
	// TotalSupplyShares is the outstanding share-token supply.
	TotalSupplyShares uint64 `json:"totalSupplyShares"`
	// BorrowIndex is the cumulative borrow interest index.
	BorrowIndex *uint256.Int `json:"borrowIndex"`
	// SupplyIndex is the cumulative supply interest index.
	SupplyIndex *uint256.Int `json:"supplyIndex"`
	// LastAccrualTime records when the indices were last advanced.
	LastAccrualTime int64 `json:"lastAccrualTime"`
	// Paused blocks new exposure (supply, collateral deposits, borrow).
	// Withdrawals, repayments, collateral release and liquidation stay open.
	Paused bool `json:"paused"`
	// Creator records who listed the market.
	Creator string `json:"creator"`
	// CreatedAt is the listing timestamp.
	CreatedAt int64 `json:"createdAt"`
}

// EnsureDefaults populates zero-value index fields so deserialised records
// are always safe to use.
func (m *Market) EnsureDefaults() {
	if m == nil {
		return
	}
	if m.BorrowIndex == nil || m.BorrowIndex.IsZero() {
		m.BorrowIndex = unitIndex()
	}
	if m.SupplyIndex == nil || m.SupplyIndex.IsZero() {
		m.SupplyIndex = unitIndex()
	}
}

// AvailableLiquidity returns the unlent portion of the pool.
func (m *Market) AvailableLiquidity() uint64 {
	if m == nil || m.TotalBorrowed > m.TotalSupplied {
		return 0
	}
	return m.TotalSupplied - m.TotalBorrowed
}

// Clone returns a deep copy of the market record.
func (m *Market) Clone() *Market {
	if m == nil {
		return nil
	}
	clone := *m
	if m.BorrowIndex != nil {
		clone.BorrowIndex = new(uint256.Int).Set(m.BorrowIndex)
	}
	if m.SupplyIndex != nil {
		clone.SupplyIndex = new(uint256.Int).Set(m.SupplyIndex)
	}
	return &clone
}

// GlobalConfig is the protocol-wide configuration record. It is created once
// and mutated only when a market is added.
type GlobalConfig struct {
	// Authority holds the protocol admin capability.
	Authority string `json:"authority"`
	// Treasury receives the protocol's share of accrued interest.
	Treasury string `json:"treasury"`
	// ProtocolFeeBps is the cut of borrow interest withheld from suppliers.
	ProtocolFeeBps uint64 `json:"protocolFeeBps"`
	// MarketCount tracks how many markets have been created.
	MarketCount uint8 `json:"marketCount"`
}

// Clone returns a copy of the configuration record.
func (g *GlobalConfig) Clone() *GlobalConfig {
	if g == nil {
		return nil
	}
	clone := *g
	return &clone
}

// BorrowPosition records one user's obligation against a market. Principal is
// scaled forward by the ratio of the market's current borrow index to the
// snapshot taken at the last update, so interest already realised into the
// principal is never counted twice.
type BorrowPosition struct {
	// User identifies the borrower.
	User string `json:"user"`
	// Market is the asset identifier of the debt market.
	Market string `json:"market"`
	// CollateralMarket is the asset identifier backing this obligation.
	CollateralMarket string `json:"collateralMarket"`
	// Collateral is the amount pledged, in collateral-asset units.
	Collateral uint64 `json:"collateral"`
	// Principal is the debt realised as of the last update.
	Principal uint64 `json:"principal"`
	// BorrowIndexSnapshot is the market's borrow index at the last update.
	BorrowIndexSnapshot *uint256.Int `json:"borrowIndexSnapshot"`
	// CreatedAt is the position-open timestamp.
	CreatedAt int64 `json:"createdAt"`
	// LastUpdated tracks the most recent principal or collateral change.
	LastUpdated int64 `json:"lastUpdated"`
}

// EnsureDefaults populates the index snapshot for fresh or legacy records.
func (p *BorrowPosition) EnsureDefaults() {
	if p == nil {
		return
	}
	if p.BorrowIndexSnapshot == nil || p.BorrowIndexSnapshot.IsZero() {
		p.BorrowIndexSnapshot = unitIndex()
	}
}

// Clone returns a deep copy of the position record.
func (p *BorrowPosition) Clone() *BorrowPosition {
	if p == nil {
		return nil
	}
	clone := *p
	if p.BorrowIndexSnapshot != nil {
		clone.BorrowIndexSnapshot = new(uint256.Int).Set(p.BorrowIndexSnapshot)
	}
	return &clone
}

// VaultStrategy tags the risk posture of an auto-allocating vault.
type VaultStrategy uint8

const (
	StrategyConservative VaultStrategy = iota
	StrategyBalanced
	StrategyAggressive
)

// Valid reports whether the strategy is one of the known postures.
func (s VaultStrategy) Valid() bool {
	return s <= StrategyAggressive
}

// Vault is an owner-keyed account that spreads deposits across markets. The
// allocation-shifting strategy itself lives outside the accounting core; the
// record only tracks targets and the last rebalance stamp.
type Vault struct {
	// Owner manages the vault.
	Owner string `json:"owner"`
	// Strategy tags the vault's risk posture.
	Strategy VaultStrategy `json:"strategy"`
	// TotalAssets is the value under management.
	TotalAssets uint64 `json:"totalAssets"`
	// Allocations maps market id to target allocation in basis points.
	Allocations map[uint8]uint64 `json:"allocations"`
	// LastRebalance records when allocations were last reconciled.
	LastRebalance int64 `json:"lastRebalance"`
	// RebalanceThresholdBps is the drift that triggers a rebalance.
	RebalanceThresholdBps uint64 `json:"rebalanceThresholdBps"`
	// CreatedAt is the vault creation timestamp.
	CreatedAt int64 `json:"createdAt"`
}

// Clone returns a deep copy of the vault record.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := *v
	if v.Allocations != nil {
		clone.Allocations = make(map[uint8]uint64, len(v.Allocations))
		for id, bps := range v.Allocations {
			clone.Allocations[id] = bps
		}
	}
	return &clone
}
