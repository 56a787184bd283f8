package lending

// State is the durable record store backing the lending module. The core
// reads and writes whole records; persistence mechanics belong to the host.
//
// Contract: getters return an independent copy (or nil when the record does
// not exist), so mutations abandoned mid-operation never become observable.
// The host serializes conflicting operations against the same records and
// applies the Puts of one operation as a unit.
type State interface {
	GlobalConfig() (*GlobalConfig, error)
	PutGlobalConfig(cfg *GlobalConfig) error
	Market(asset string) (*Market, error)
	PutMarket(market *Market) error
	Markets() ([]*Market, error)
	Position(user, asset string) (*BorrowPosition, error)
	PutPosition(position *BorrowPosition) error
	Vault(owner string) (*Vault, error)
	PutVault(vault *Vault) error
}

// Clock supplies the timestamps used for accrual and staleness checks. The
// reading must be monotonic; accrual treats regression as an error.
type Clock interface {
	Now() int64
}

// ValueMover moves underlying value between custodial accounts. The core only
// decides amounts, never performs the movement itself.
type ValueMover interface {
	Move(asset, from, to string, amount uint64) error
}

// ShareToken mints and burns the yield-bearing tokens representing lender
// claims, authorized by the market's own derived authority.
type ShareToken interface {
	Mint(token, to string, amount uint64) error
	Burn(token, from string, amount uint64) error
}

// PriceOracle quotes an asset price together with the quote's timestamp.
// Callers must reject quotes older than the configured staleness threshold
// before using them in health-factor or liquidation math.
type PriceOracle interface {
	PriceOf(asset string) (price uint64, asOf int64, err error)
}

// Authorizer answers capability checks: does the caller hold the named
// capability over the resource. A nil authorizer is permissive, which keeps
// library embedding and tests simple.
type Authorizer interface {
	Allow(caller, capability, resource string) bool
}
