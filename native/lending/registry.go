package lending

import (
	"sort"

	"lendhub/events"
)

// Registry manages the protocol-wide configuration record and the market
// listing lifecycle. It shares the State store with the Engine but never
// touches positions or balances.
type Registry struct {
	state   State
	clock   Clock
	auth    Authorizer
	emitter events.Emitter
}

// NewRegistry constructs a registry over the given store.
func NewRegistry(state State) *Registry {
	return &Registry{state: state, emitter: events.NoopEmitter{}}
}

// SetClock overrides the timestamp source. Nil restores the system clock.
func (r *Registry) SetClock(clock Clock) { r.clock = clock }

// SetAuthorizer wires capability checks for admin operations. A nil
// authorizer is permissive.
func (r *Registry) SetAuthorizer(auth Authorizer) { r.auth = auth }

// SetEmitter wires the event sink.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	r.emitter = emitter
}

func (r *Registry) now() int64 {
	if r.clock != nil {
		return r.clock.Now()
	}
	return systemNow()
}

func (r *Registry) allow(caller, capability, resource string) bool {
	if r.auth == nil {
		return true
	}
	return r.auth.Allow(caller, capability, resource)
}

// Initialize creates the global configuration record. It may run exactly once.
func (r *Registry) Initialize(authority, treasury string, protocolFeeBps uint64) (*GlobalConfig, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	if authority == "" || treasury == "" {
		return nil, ErrInvalidAmount
	}
	if protocolFeeBps > BpsScale {
		return nil, ErrInvalidAmount
	}
	existing, err := r.state.GlobalConfig()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyInitialized
	}
	cfg := &GlobalConfig{
		Authority:      authority,
		Treasury:       treasury,
		ProtocolFeeBps: protocolFeeBps,
	}
	if err := r.state.PutGlobalConfig(cfg); err != nil {
		return nil, err
	}
	r.emitter.Emit(events.ProtocolInitialized{Authority: authority, Treasury: treasury, Timestamp: r.now()})
	return cfg.Clone(), nil
}

// ValidateMarketRisk checks a market's risk parameters against the protocol
// bounds. The ordering is part of the contract: a threshold at or below the
// LTV is reported before either bound violation.
func ValidateMarketRisk(ltvBps, liquidationThresholdBps uint64) error {
	if liquidationThresholdBps <= ltvBps {
		return ErrThresholdTooLow
	}
	if ltvBps == 0 || ltvBps > MaxLTVBps {
		return ErrInvalidLTV
	}
	if liquidationThresholdBps < MinLiquidationThresholdBps || liquidationThresholdBps > BpsScale {
		return ErrInvalidLiquidationThreshold
	}
	return nil
}

// CreateMarket lists a new asset. The caller needs the market-create
// capability when an authorizer is wired; risk parameters must satisfy
// ValidateMarketRisk and the registry enforces the global market cap.
func (r *Registry) CreateMarket(creator, asset, shareToken, oracle string, ltvBps, liquidationThresholdBps uint64) (*Market, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	if creator == "" || asset == "" || shareToken == "" {
		return nil, ErrInvalidAmount
	}
	if !r.allow(creator, CapabilityCreateMarket, asset) {
		return nil, ErrUnauthorized
	}
	if err := ValidateMarketRisk(ltvBps, liquidationThresholdBps); err != nil {
		return nil, err
	}

	cfg, err := r.state.GlobalConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrNotInitialized
	}
	if int(cfg.MarketCount) >= MaxMarkets {
		return nil, ErrMarketLimit
	}
	existing, err := r.state.Market(asset)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrMarketExists
	}

	now := r.now()
	market := &Market{
		MarketID:                cfg.MarketCount,
		Asset:                   asset,
		ShareToken:              shareToken,
		Oracle:                  oracle,
		LTVBps:                  ltvBps,
		LiquidationThresholdBps: liquidationThresholdBps,
		BorrowIndex:             unitIndex(),
		SupplyIndex:             unitIndex(),
		LastAccrualTime:         now,
		Creator:                 creator,
		CreatedAt:               now,
	}
	cfg.MarketCount++
	if err := r.state.PutMarket(market); err != nil {
		return nil, err
	}
	if err := r.state.PutGlobalConfig(cfg); err != nil {
		return nil, err
	}
	r.emitter.Emit(events.MarketCreated{
		MarketID:                market.MarketID,
		Asset:                   asset,
		Creator:                 creator,
		LTVBps:                  ltvBps,
		LiquidationThresholdBps: liquidationThresholdBps,
		Timestamp:               now,
	})
	return market.Clone(), nil
}

// SetMarketPaused flips the market's admission switch. Only the protocol
// authority (or a caller holding the pause capability) may do this.
func (r *Registry) SetMarketPaused(caller, asset string, paused bool) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	cfg, err := r.state.GlobalConfig()
	if err != nil {
		return err
	}
	if cfg == nil {
		return ErrNotInitialized
	}
	if caller != cfg.Authority && !r.allow(caller, CapabilityPauseMarket, asset) {
		return ErrUnauthorized
	}
	market, err := r.state.Market(asset)
	if err != nil {
		return err
	}
	if market == nil {
		return ErrMarketNotFound
	}
	if market.Paused == paused {
		return nil
	}
	market.Paused = paused
	if err := r.state.PutMarket(market); err != nil {
		return err
	}
	r.emitter.Emit(events.MarketPauseChanged{Asset: asset, Paused: paused, Timestamp: r.now()})
	return nil
}

// ListMarkets returns every listed market ordered by market id.
func (r *Registry) ListMarkets() ([]*Market, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	markets, err := r.state.Markets()
	if err != nil {
		return nil, err
	}
	for _, m := range markets {
		m.EnsureDefaults()
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].MarketID < markets[j].MarketID })
	return markets, nil
}
