package lending

// Scale is the fixed-point unit shared by per-second rates, interest indices
// and the share exchange rate.
const Scale uint64 = 1_000_000_000_000_000_000 // 1e18

// BpsScale expresses 100% in basis points.
const BpsScale uint64 = 10_000

// Protocol-wide bounds applied when a market is created.
const (
	MaxMarkets                            = 50
	MaxLTVBps                      uint64 = 8_000
	MinLiquidationThresholdBps     uint64 = 8_000
	DefaultLTVBps                  uint64 = 7_500
	DefaultLiquidationThresholdBps uint64 = 8_500
)

// Fee and liquidation defaults, expressed in basis points.
const (
	DefaultProtocolFeeBps uint64 = 500
	LiquidationBonusBps   uint64 = 500
	MinHealthFactorBps    uint64 = 10_000
)

// Kinked rate curve defaults. Rates are per second, scaled by Scale, so
// BaseRatePerSecond works out to roughly 2% APY over SecondsPerYear.
const (
	BaseRatePerSecond     uint64 = 634_195_839
	Slope1PerSecond       uint64 = 3_170_979_196
	Slope2PerSecond       uint64 = 31_709_791_959
	OptimalUtilizationBps uint64 = 8_000
	SecondsPerYear        uint64 = 31_536_000
)

// Operational floors and oracle tolerances.
const (
	OracleStalenessThreshold int64  = 300 // seconds
	MinBorrowAmount          uint64 = 10_000_000
	MinSupplyAmount          uint64 = 100_000_000
)

// Capability names checked through the Authorizer interface.
const (
	CapabilityPauseMarket  = "lending.market.pause"
	CapabilityCreateMarket = "lending.market.create"
)
