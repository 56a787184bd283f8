package lending

import (
	"errors"
	"fmt"
	"testing"

	"lendhub/events"
)

// memoryState is the in-memory State used across the package tests. Getters
// hand out clones so abandoned mutations stay invisible, matching the store
// contract.
type memoryState struct {
	config    *GlobalConfig
	markets   map[string]*Market
	positions map[string]*BorrowPosition
	vaults    map[string]*Vault
}

func newMemoryState() *memoryState {
	return &memoryState{
		markets:   make(map[string]*Market),
		positions: make(map[string]*BorrowPosition),
		vaults:    make(map[string]*Vault),
	}
}

func positionKey(user, asset string) string { return user + "|" + asset }

func (s *memoryState) GlobalConfig() (*GlobalConfig, error) { return s.config.Clone(), nil }

func (s *memoryState) PutGlobalConfig(cfg *GlobalConfig) error {
	s.config = cfg.Clone()
	return nil
}

func (s *memoryState) Market(asset string) (*Market, error) { return s.markets[asset].Clone(), nil }

func (s *memoryState) PutMarket(market *Market) error {
	s.markets[market.Asset] = market.Clone()
	return nil
}

func (s *memoryState) Markets() ([]*Market, error) {
	out := make([]*Market, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m.Clone())
	}
	return out, nil
}

func (s *memoryState) Position(user, asset string) (*BorrowPosition, error) {
	return s.positions[positionKey(user, asset)].Clone(), nil
}

func (s *memoryState) PutPosition(position *BorrowPosition) error {
	s.positions[positionKey(position.User, position.Market)] = position.Clone()
	return nil
}

func (s *memoryState) Vault(owner string) (*Vault, error) { return s.vaults[owner].Clone(), nil }

func (s *memoryState) PutVault(vault *Vault) error {
	s.vaults[vault.Owner] = vault.Clone()
	return nil
}

type manualClock struct{ now int64 }

func (c *manualClock) Now() int64 { return c.now }

func (c *manualClock) advance(seconds int64) { c.now += seconds }

type moveRecord struct {
	asset, from, to string
	amount          uint64
}

// ledgerMock tracks balances per asset and account, failing transfers that
// would overdraw a user account. Custody accounts may go negative-free since
// tests seed them implicitly through moves.
type ledgerMock struct {
	balances map[string]map[string]int64
	moves    []moveRecord
}

func newLedgerMock() *ledgerMock {
	return &ledgerMock{balances: make(map[string]map[string]int64)}
}

func (l *ledgerMock) credit(asset, account string, amount uint64) {
	if l.balances[asset] == nil {
		l.balances[asset] = make(map[string]int64)
	}
	l.balances[asset][account] += int64(amount)
}

func (l *ledgerMock) balance(asset, account string) int64 {
	return l.balances[asset][account]
}

func (l *ledgerMock) Move(asset, from, to string, amount uint64) error {
	if l.balances[asset] == nil {
		l.balances[asset] = make(map[string]int64)
	}
	if l.balances[asset][from] < int64(amount) {
		return fmt.Errorf("ledger: %s has %d %s, needs %d", from, l.balances[asset][from], asset, amount)
	}
	l.balances[asset][from] -= int64(amount)
	l.balances[asset][to] += int64(amount)
	l.moves = append(l.moves, moveRecord{asset: asset, from: from, to: to, amount: amount})
	return nil
}

type shareTokenMock struct {
	supply map[string]map[string]uint64
}

func newShareTokenMock() *shareTokenMock {
	return &shareTokenMock{supply: make(map[string]map[string]uint64)}
}

func (s *shareTokenMock) Mint(token, to string, amount uint64) error {
	if s.supply[token] == nil {
		s.supply[token] = make(map[string]uint64)
	}
	s.supply[token][to] += amount
	return nil
}

func (s *shareTokenMock) Burn(token, from string, amount uint64) error {
	if s.supply[token][from] < amount {
		return fmt.Errorf("share token: %s holds %d %s, burning %d", from, s.supply[token][from], token, amount)
	}
	s.supply[token][from] -= amount
	return nil
}

type oracleQuote struct {
	price uint64
	asOf  int64
}

type staticOracle struct {
	quotes map[string]oracleQuote
}

func newStaticOracle() *staticOracle {
	return &staticOracle{quotes: make(map[string]oracleQuote)}
}

func (o *staticOracle) set(asset string, price uint64, asOf int64) {
	o.quotes[asset] = oracleQuote{price: price, asOf: asOf}
}

func (o *staticOracle) PriceOf(asset string) (uint64, int64, error) {
	quote, ok := o.quotes[asset]
	if !ok {
		return 0, 0, fmt.Errorf("oracle: no feed for %s", asset)
	}
	return quote.price, quote.asOf, nil
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(ev events.Event) { c.events = append(c.events, ev) }

func (c *captureEmitter) lastType() string {
	if len(c.events) == 0 {
		return ""
	}
	return c.events[len(c.events)-1].EventType()
}

type testHarness struct {
	engine  *Engine
	state   *memoryState
	clock   *manualClock
	ledger  *ledgerMock
	shares  *shareTokenMock
	oracle  *staticOracle
	emitter *captureEmitter
}

const (
	reserveAccount    = "lending/reserve"
	collateralAccount = "lending/collateral"
)

// newTestHarness wires an engine over in-memory collaborators with two listed
// markets: usdh (80% LTV, 85% threshold) and hub (70% LTV, 85% threshold).
func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	state := newMemoryState()
	clock := &manualClock{now: 1_000}
	ledger := newLedgerMock()
	shares := newShareTokenMock()
	oracle := newStaticOracle()
	emitter := &captureEmitter{}

	registry := NewRegistry(state)
	registry.SetClock(clock)
	if _, err := registry.Initialize("authority", "treasury", DefaultProtocolFeeBps); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := registry.CreateMarket("authority", "usdh", "susdh", "usdh", 8_000, 8_500); err != nil {
		t.Fatalf("create usdh market: %v", err)
	}
	if _, err := registry.CreateMarket("authority", "hub", "shub", "hub", 7_000, 8_500); err != nil {
		t.Fatalf("create hub market: %v", err)
	}
	oracle.set("usdh", 100, clock.now)
	oracle.set("hub", 100, clock.now)

	engine := NewEngine(reserveAccount, collateralAccount)
	engine.SetState(state)
	engine.SetClock(clock)
	engine.SetValueMover(ledger)
	engine.SetShareToken(shares)
	engine.SetOracle(oracle)
	engine.SetEmitter(emitter)
	return &testHarness{engine: engine, state: state, clock: clock, ledger: ledger, shares: shares, oracle: oracle, emitter: emitter}
}

func (h *testHarness) refreshPrices() {
	for asset, quote := range h.oracle.quotes {
		h.oracle.set(asset, quote.price, h.clock.now)
	}
}

// seedBorrower funds a lender with 5B usdh of supply, pledges hub collateral
// for the borrower and draws down usdh debt.
func (h *testHarness) seedBorrower(t *testing.T, collateralAmount, borrowAmount uint64) {
	t.Helper()
	h.ledger.credit("usdh", "alice", 10_000_000_000)
	h.ledger.credit("hub", "bob", 10_000_000_000)
	if _, err := h.engine.Supply("alice", "usdh", 5_000_000_000); err != nil {
		t.Fatalf("seed supply: %v", err)
	}
	if err := h.engine.DepositCollateral("bob", "usdh", "hub", collateralAmount); err != nil {
		t.Fatalf("seed collateral: %v", err)
	}
	if err := h.engine.Borrow("bob", "usdh", borrowAmount); err != nil {
		t.Fatalf("seed borrow: %v", err)
	}
}

func TestSupplyMintsSharesAndMovesValue(t *testing.T) {
	h := newTestHarness(t)
	h.ledger.credit("usdh", "alice", 2_000_000_000)

	minted, err := h.engine.Supply("alice", "usdh", 1_000_000_000)
	if err != nil {
		t.Fatalf("Supply: %v", err)
	}
	if minted != 1_000_000_000 {
		t.Fatalf("minted = %d, want 1:1 on a fresh market", minted)
	}
	if got := h.ledger.balance("usdh", reserveAccount); got != 1_000_000_000 {
		t.Fatalf("reserve balance = %d, want 1000000000", got)
	}
	if got := h.shares.supply["susdh"]["alice"]; got != minted {
		t.Fatalf("share tokens = %d, want %d", got, minted)
	}
	market := h.state.markets["usdh"]
	if market.TotalSupplied != 1_000_000_000 || market.TotalSupplyShares != 1_000_000_000 {
		t.Fatalf("market totals = %d/%d", market.TotalSupplied, market.TotalSupplyShares)
	}
	if h.emitter.lastType() != events.TypeSupplied {
		t.Fatalf("last event = %q, want %q", h.emitter.lastType(), events.TypeSupplied)
	}
}

func TestSupplyEnforcesFloorAndPause(t *testing.T) {
	h := newTestHarness(t)
	h.ledger.credit("usdh", "alice", 2_000_000_000)

	if _, err := h.engine.Supply("alice", "usdh", MinSupplyAmount-1); !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("below minimum: got %v", err)
	}
	if _, err := h.engine.Supply("alice", "usdh", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v", err)
	}

	registry := NewRegistry(h.state)
	if err := registry.SetMarketPaused("authority", "usdh", true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := h.engine.Supply("alice", "usdh", 1_000_000_000); !errors.Is(err, ErrMarketPaused) {
		t.Fatalf("paused market: got %v", err)
	}
}

func TestWithdrawRoundTrip(t *testing.T) {
	h := newTestHarness(t)
	h.ledger.credit("usdh", "alice", 1_000_000_000)
	minted, err := h.engine.Supply("alice", "usdh", 1_000_000_000)
	if err != nil {
		t.Fatalf("Supply: %v", err)
	}
	amount, err := h.engine.Withdraw("alice", "usdh", minted)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if amount != 1_000_000_000 {
		t.Fatalf("redeemed = %d, want full deposit back", amount)
	}
	if got := h.ledger.balance("usdh", "alice"); got != 1_000_000_000 {
		t.Fatalf("alice balance = %d, want 1000000000", got)
	}
	if got := h.shares.supply["susdh"]["alice"]; got != 0 {
		t.Fatalf("share tokens remaining = %d, want 0", got)
	}
}

func TestWithdrawAllowedOnPausedMarket(t *testing.T) {
	h := newTestHarness(t)
	h.ledger.credit("usdh", "alice", 1_000_000_000)
	minted, err := h.engine.Supply("alice", "usdh", 1_000_000_000)
	if err != nil {
		t.Fatalf("Supply: %v", err)
	}

	registry := NewRegistry(h.state)
	if err := registry.SetMarketPaused("authority", "usdh", true); err != nil {
		t.Fatalf("pause: %v", err)
	}

	// Pause stops new exposure only; a lender's exit always stays open.
	amount, err := h.engine.Withdraw("alice", "usdh", minted)
	if err != nil {
		t.Fatalf("Withdraw on paused market: %v", err)
	}
	if amount != 1_000_000_000 {
		t.Fatalf("redeemed = %d, want full deposit back", amount)
	}
}

func TestSupplyRejectsZeroShareMint(t *testing.T) {
	h := newTestHarness(t)
	h.ledger.credit("usdh", "alice", 1_000_000_000)

	// Inflate the exchange rate until the deposit floors to zero shares.
	market := h.state.markets["usdh"]
	market.TotalSupplied = 1_000_000_000_000_000_000
	market.TotalSupplyShares = 1

	if _, err := h.engine.Supply("alice", "usdh", MinSupplyAmount); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero-share mint: got %v", err)
	}
	if got := h.ledger.balance("usdh", "alice"); got != 1_000_000_000 {
		t.Fatalf("alice balance = %d, want deposit untouched", got)
	}
	if got := h.ledger.balance("usdh", reserveAccount); got != 0 {
		t.Fatalf("reserve balance = %d, want 0", got)
	}
}

func TestWithdrawBoundedByLentLiquidity(t *testing.T) {
	h := newTestHarness(t)
	h.seedBorrower(t, 10_000_000_000, 4_900_000_000)

	// 5B supplied, 4.9B lent out: alice cannot redeem her full claim.
	if _, err := h.engine.Withdraw("alice", "usdh", 5_000_000_000); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if _, err := h.engine.Withdraw("alice", "usdh", 50_000_000); err != nil {
		t.Fatalf("partial withdraw within liquidity: %v", err)
	}
}

func TestBorrowRequiresCollateral(t *testing.T) {
	h := newTestHarness(t)
	h.ledger.credit("usdh", "alice", 5_000_000_000)
	if _, err := h.engine.Supply("alice", "usdh", 5_000_000_000); err != nil {
		t.Fatalf("Supply: %v", err)
	}
	if err := h.engine.Borrow("bob", "usdh", MinBorrowAmount); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
}

func TestBorrowEnforcesLTV(t *testing.T) {
	h := newTestHarness(t)
	h.ledger.credit("usdh", "alice", 5_000_000_000)
	h.ledger.credit("hub", "bob", 1_000_000_000)
	if _, err := h.engine.Supply("alice", "usdh", 5_000_000_000); err != nil {
		t.Fatalf("Supply: %v", err)
	}
	if err := h.engine.DepositCollateral("bob", "usdh", "hub", 1_000_000_000); err != nil {
		t.Fatalf("DepositCollateral: %v", err)
	}

	// Equal prices and 70% LTV on hub collateral: 1B collateral supports at
	// most 700M debt.
	if err := h.engine.Borrow("bob", "usdh", 700_000_001); !errors.Is(err, ErrHealthFactorTooLow) {
		t.Fatalf("over LTV: got %v", err)
	}
	if err := h.engine.Borrow("bob", "usdh", 700_000_000); err != nil {
		t.Fatalf("at LTV: %v", err)
	}
	if got := h.ledger.balance("usdh", "bob"); got != 700_000_000 {
		t.Fatalf("bob received %d, want 700000000", got)
	}
}

func TestBorrowEnforcesLiquidityAndFloor(t *testing.T) {
	h := newTestHarness(t)
	h.ledger.credit("usdh", "alice", 200_000_000)
	h.ledger.credit("hub", "bob", 10_000_000_000)
	if _, err := h.engine.Supply("alice", "usdh", 200_000_000); err != nil {
		t.Fatalf("Supply: %v", err)
	}
	if err := h.engine.DepositCollateral("bob", "usdh", "hub", 10_000_000_000); err != nil {
		t.Fatalf("DepositCollateral: %v", err)
	}
	if err := h.engine.Borrow("bob", "usdh", MinBorrowAmount-1); !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("below floor: got %v", err)
	}
	if err := h.engine.Borrow("bob", "usdh", 200_000_001); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("over liquidity: got %v", err)
	}
}

func TestBorrowRejectsStalePrice(t *testing.T) {
	h := newTestHarness(t)
	h.ledger.credit("usdh", "alice", 5_000_000_000)
	h.ledger.credit("hub", "bob", 1_000_000_000)
	if _, err := h.engine.Supply("alice", "usdh", 5_000_000_000); err != nil {
		t.Fatalf("Supply: %v", err)
	}
	if err := h.engine.DepositCollateral("bob", "usdh", "hub", 1_000_000_000); err != nil {
		t.Fatalf("DepositCollateral: %v", err)
	}

	h.clock.advance(OracleStalenessThreshold + 1)
	if err := h.engine.Borrow("bob", "usdh", MinBorrowAmount); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice, got %v", err)
	}
	h.refreshPrices()
	if err := h.engine.Borrow("bob", "usdh", MinBorrowAmount); err != nil {
		t.Fatalf("fresh price: %v", err)
	}
}

func TestRepayCapsAtOutstandingDebt(t *testing.T) {
	h := newTestHarness(t)
	h.seedBorrower(t, 1_000_000_000, 100_000_000)
	h.ledger.credit("usdh", "bob", 1_000_000_000)

	repaid, err := h.engine.Repay("bob", "usdh", 500_000_000)
	if err != nil {
		t.Fatalf("Repay: %v", err)
	}
	if repaid != 100_000_000 {
		t.Fatalf("repaid = %d, want capped at 100000000", repaid)
	}
	market := h.state.markets["usdh"]
	if market.TotalBorrowed != 0 {
		t.Fatalf("TotalBorrowed = %d, want 0", market.TotalBorrowed)
	}
	if _, err := h.engine.Repay("bob", "usdh", 1); !errors.Is(err, ErrNoDebt) {
		t.Fatalf("repay with no debt: got %v", err)
	}
}

func TestWithdrawCollateralKeepsPositionHealthy(t *testing.T) {
	h := newTestHarness(t)
	h.seedBorrower(t, 1_000_000_000, 500_000_000)

	// 1B hub collateral, 500M usdh debt at equal prices. The 85% threshold
	// needs roughly 588M collateral; withdrawing down to 500M must fail.
	if err := h.engine.WithdrawCollateral("bob", "usdh", 500_000_000); !errors.Is(err, ErrHealthFactorTooLow) {
		t.Fatalf("expected ErrHealthFactorTooLow, got %v", err)
	}
	if err := h.engine.WithdrawCollateral("bob", "usdh", 300_000_000); err != nil {
		t.Fatalf("healthy withdrawal: %v", err)
	}
	if got := h.ledger.balance("hub", "bob"); got != 9_300_000_000 {
		t.Fatalf("bob hub balance = %d, want 9300000000", got)
	}
}

func TestWithdrawCollateralFullAfterRepay(t *testing.T) {
	h := newTestHarness(t)
	h.seedBorrower(t, 1_000_000_000, 100_000_000)
	h.ledger.credit("usdh", "bob", 1_000_000_000)
	if _, err := h.engine.Repay("bob", "usdh", 1_000_000_000); err != nil {
		t.Fatalf("Repay: %v", err)
	}
	if err := h.engine.WithdrawCollateral("bob", "usdh", 1_000_000_000); err != nil {
		t.Fatalf("full collateral exit: %v", err)
	}
	position := h.state.positions[positionKey("bob", "usdh")]
	if position.Collateral != 0 {
		t.Fatalf("collateral = %d, want 0", position.Collateral)
	}
}

func TestDepositCollateralBindsMarket(t *testing.T) {
	h := newTestHarness(t)
	h.ledger.credit("hub", "bob", 1_000_000_000)
	h.ledger.credit("usdh", "bob", 1_000_000_000)
	if err := h.engine.DepositCollateral("bob", "usdh", "hub", 500_000_000); err != nil {
		t.Fatalf("DepositCollateral: %v", err)
	}
	if err := h.engine.DepositCollateral("bob", "usdh", "usdh", 500_000_000); !errors.Is(err, ErrCollateralMismatch) {
		t.Fatalf("expected ErrCollateralMismatch, got %v", err)
	}
	if err := h.engine.DepositCollateral("bob", "usdh", "hub", 500_000_000); err != nil {
		t.Fatalf("top-up: %v", err)
	}
	position := h.state.positions[positionKey("bob", "usdh")]
	if position.Collateral != 1_000_000_000 {
		t.Fatalf("collateral = %d, want 1000000000", position.Collateral)
	}
}

func TestLiquidateSeizesDiscountedCollateral(t *testing.T) {
	h := newTestHarness(t)
	h.seedBorrower(t, 1_000_000_000, 100_000_000)
	h.ledger.credit("usdh", "carol", 1_000_000_000)

	// Collateral price collapses: 1B hub at price 10 vs 100M usdh at price
	// 100 puts the health factor at 0.85.
	h.oracle.set("hub", 10, h.clock.now)

	repaid, seized, err := h.engine.Liquidate("carol", "bob", "usdh", 50_000_000, 0)
	if err != nil {
		t.Fatalf("Liquidate: %v", err)
	}
	if repaid != 50_000_000 {
		t.Fatalf("repaid = %d, want 50000000", repaid)
	}
	// 50M debt units at 10x price ratio is 500M collateral units, plus 5%.
	if seized != 525_000_000 {
		t.Fatalf("seized = %d, want 525000000", seized)
	}
	if got := h.ledger.balance("hub", "carol"); got != int64(seized) {
		t.Fatalf("carol hub balance = %d, want %d", got, seized)
	}
	position := h.state.positions[positionKey("bob", "usdh")]
	if position.Collateral != 1_000_000_000-seized {
		t.Fatalf("collateral = %d, want %d", position.Collateral, 1_000_000_000-seized)
	}
	if position.Principal != 50_000_000 {
		t.Fatalf("principal = %d, want 50000000", position.Principal)
	}
	if h.emitter.lastType() != events.TypeLiquidated {
		t.Fatalf("last event = %q, want %q", h.emitter.lastType(), events.TypeLiquidated)
	}
}

func TestLiquidateRejectsHealthyPosition(t *testing.T) {
	h := newTestHarness(t)
	h.seedBorrower(t, 1_000_000_000, 100_000_000)
	h.ledger.credit("usdh", "carol", 1_000_000_000)
	if _, _, err := h.engine.Liquidate("carol", "bob", "usdh", 50_000_000, 0); !errors.Is(err, ErrLiquidationNotNeeded) {
		t.Fatalf("expected ErrLiquidationNotNeeded, got %v", err)
	}
}

func TestLiquidateHonorsSlippageFloor(t *testing.T) {
	h := newTestHarness(t)
	h.seedBorrower(t, 1_000_000_000, 100_000_000)
	h.ledger.credit("usdh", "carol", 1_000_000_000)
	h.oracle.set("hub", 10, h.clock.now)

	if _, _, err := h.engine.Liquidate("carol", "bob", "usdh", 50_000_000, 525_000_001); !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("expected ErrSlippageExceeded, got %v", err)
	}
	// The failed attempt must leave no trace.
	position := h.state.positions[positionKey("bob", "usdh")]
	if position.Collateral != 1_000_000_000 || position.Principal != 100_000_000 {
		t.Fatalf("failed liquidation mutated position: %d/%d", position.Collateral, position.Principal)
	}
}

func TestLiquidateRefundsRepaymentOnFailedPayout(t *testing.T) {
	h := newTestHarness(t)
	h.seedBorrower(t, 1_000_000_000, 100_000_000)
	h.ledger.credit("usdh", "carol", 1_000_000_000)
	h.oracle.set("hub", 10, h.clock.now)

	// Drain the collateral custody account so the payout move fails after the
	// repayment has already been custodied.
	h.ledger.balances["hub"][collateralAccount] = 0

	if _, _, err := h.engine.Liquidate("carol", "bob", "usdh", 50_000_000, 0); err == nil {
		t.Fatal("expected liquidation to fail on collateral payout")
	}
	if got := h.ledger.balance("usdh", "carol"); got != 1_000_000_000 {
		t.Fatalf("carol balance = %d, want repayment refunded in full", got)
	}
	if got := h.ledger.balance("hub", "carol"); got != 0 {
		t.Fatalf("carol received %d collateral from a failed liquidation", got)
	}
	position := h.state.positions[positionKey("bob", "usdh")]
	if position.Collateral != 1_000_000_000 || position.Principal != 100_000_000 {
		t.Fatalf("failed liquidation mutated position: %d/%d", position.Collateral, position.Principal)
	}
}

func TestModulePauseBlocksOperations(t *testing.T) {
	h := newTestHarness(t)
	h.ledger.credit("usdh", "alice", 1_000_000_000)
	h.engine.SetPauses(pauseMapView{moduleName: true})
	if _, err := h.engine.Supply("alice", "usdh", 1_000_000_000); err == nil {
		t.Fatal("expected pause guard to reject supply")
	}
	h.engine.SetPauses(pauseMapView{})
	if _, err := h.engine.Supply("alice", "usdh", 1_000_000_000); err != nil {
		t.Fatalf("unpaused supply: %v", err)
	}
}

type pauseMapView map[string]bool

func (p pauseMapView) IsPaused(module string) bool { return p[module] }

func TestInterestAccruesToLendersAndBorrowers(t *testing.T) {
	h := newTestHarness(t)
	h.seedBorrower(t, 5_000_000_000, 2_500_000_000) // 50% utilization against 5B supplied

	h.clock.advance(int64(SecondsPerYear))
	h.refreshPrices()
	h.ledger.credit("usdh", "bob", 10_000_000_000)

	view, err := h.engine.PositionView("bob", "usdh")
	if err != nil {
		t.Fatalf("PositionView: %v", err)
	}
	if view.CurrentDebt <= 2_500_000_000 {
		t.Fatalf("debt did not accrue: %d", view.CurrentDebt)
	}

	repaid, err := h.engine.Repay("bob", "usdh", 10_000_000_000)
	if err != nil {
		t.Fatalf("Repay: %v", err)
	}
	if repaid <= 2_500_000_000 {
		t.Fatalf("repaid = %d, want principal plus interest", repaid)
	}

	// Lender exits with more than the deposit; the spread stays non-negative
	// because the protocol fee cushions the supply rate below the borrow rate.
	amount, err := h.engine.Withdraw("alice", "usdh", 5_000_000_000)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if amount <= 5_000_000_000 {
		t.Fatalf("lender redeemed %d, want growth over 5000000000", amount)
	}
	if amount >= repaid+2_500_000_000 {
		t.Fatalf("lender payout %d exceeds pool income", amount)
	}
}

func TestMarketViewReportsLiveRates(t *testing.T) {
	h := newTestHarness(t)
	h.seedBorrower(t, 5_000_000_000, 2_500_000_000)

	view, err := h.engine.MarketView("usdh")
	if err != nil {
		t.Fatalf("MarketView: %v", err)
	}
	if view.UtilizationBps != 5_000 {
		t.Fatalf("utilization = %d, want 5000", view.UtilizationBps)
	}
	if view.BorrowRate == 0 || view.SupplyRate == 0 {
		t.Fatalf("rates not populated: borrow %d supply %d", view.BorrowRate, view.SupplyRate)
	}
	if view.SupplyRate >= view.BorrowRate {
		t.Fatalf("supply rate %d not below borrow rate %d", view.SupplyRate, view.BorrowRate)
	}
	if view.AvailableLiquidity != 2_500_000_000 {
		t.Fatalf("available = %d, want 2500000000", view.AvailableLiquidity)
	}
}
