package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"lendhub/events"
	"lendhub/native/lending"
	"lendhub/observability"
	"lendhub/storage"
)

// Options carries the server wiring derived from daemon configuration.
type Options struct {
	Authority         string
	Treasury          string
	ReserveAccount    string
	CollateralAccount string
	APITokens         []string
	RequestsPerSecond float64
	Burst             int
	Protocol          lending.Config
}

// Server exposes the lending engine over HTTP. Mutating requests are
// serialized and run inside one store transaction each, so every operation's
// record writes commit atomically.
type Server struct {
	opts    Options
	store   *storage.Store
	ledger  *storage.Ledger
	oracle  *Oracle
	log     *slog.Logger
	limiter *rate.Limiter
	tokens  map[string]struct{}
	emitter events.Emitter

	mu sync.Mutex
}

// New assembles a server over the given store, custody ledger and oracle.
func New(store *storage.Store, ledger *storage.Ledger, oracle *Oracle, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	opts.Protocol.Normalize()
	tokens := make(map[string]struct{}, len(opts.APITokens))
	for _, token := range opts.APITokens {
		if token = strings.TrimSpace(token); token != "" {
			tokens[token] = struct{}{}
		}
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 50
	}
	if opts.Burst <= 0 {
		opts.Burst = 100
	}
	srv := &Server{
		opts:    opts,
		store:   store,
		ledger:  ledger,
		oracle:  oracle,
		log:     logger,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		tokens:  tokens,
	}
	srv.emitter = observability.NewCountingEmitter(&logEmitter{log: logger})
	return srv
}

// logEmitter writes every protocol event as a structured log line.
type logEmitter struct {
	log *slog.Logger
}

func (l *logEmitter) Emit(ev events.Event) {
	if l == nil || l.log == nil || ev == nil {
		return
	}
	attrs := make([]any, 0, 2*len(ev.Attributes()))
	for key, value := range ev.Attributes() {
		attrs = append(attrs, slog.String(key, value))
	}
	l.log.Info(ev.EventType(), attrs...)
}

func (s *Server) newEngine(state lending.State) *lending.Engine {
	engine := lending.NewEngine(s.opts.ReserveAccount, s.opts.CollateralAccount)
	engine.SetState(state)
	engine.SetValueMover(s.ledger)
	engine.SetShareToken(s.ledger)
	engine.SetOracle(s.oracle)
	engine.SetEmitter(s.emitter)
	engine.ApplyConfig(s.opts.Protocol)
	return engine
}

func (s *Server) newRegistry(state lending.State) *lending.Registry {
	registry := lending.NewRegistry(state)
	registry.SetAuthorizer(authorityOnly{authority: s.opts.Authority})
	registry.SetEmitter(s.emitter)
	return registry
}

// withEngine runs a mutating engine operation inside one store transaction.
func (s *Server) withEngine(fn func(engine *lending.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.InTransaction(func(state lending.State) error {
		return fn(s.newEngine(state))
	})
}

func (s *Server) withRegistry(fn func(registry *lending.Registry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.InTransaction(func(state lending.State) error {
		return fn(s.newRegistry(state))
	})
}

// authorityOnly grants every capability to the configured authority account
// and nothing to anyone else.
type authorityOnly struct {
	authority string
}

func (a authorityOnly) Allow(caller, capability, resource string) bool {
	return caller != "" && caller == a.authority
}

// Handler returns the HTTP routing tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.throttle)
	r.Use(s.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/markets", s.handleListMarkets)
		r.Get("/markets/{asset}", s.handleMarketView)
		r.Get("/positions/{user}/{asset}", s.handlePositionView)
		r.Get("/vaults/{owner}", s.handleVaultView)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/protocol/initialize", s.handleInitialize)
			r.Post("/markets", s.handleCreateMarket)
			r.Post("/markets/{asset}/pause", s.handleSetPaused)
			r.Post("/oracle/{asset}", s.handleSetPrice)
			r.Post("/supply", s.handleSupply)
			r.Post("/withdraw", s.handleWithdraw)
			r.Post("/collateral/deposit", s.handleDepositCollateral)
			r.Post("/collateral/withdraw", s.handleWithdrawCollateral)
			r.Post("/borrow", s.handleBorrow)
			r.Post("/repay", s.handleRepay)
			r.Post("/liquidate", s.handleLiquidate)
			r.Post("/vaults", s.handleCreateVault)
			r.Post("/vaults/{owner}/allocations", s.handleSetAllocations)
			r.Post("/vaults/{owner}/rebalance", s.handleRebalance)
		})
	})
	return r
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			observability.API().RecordThrottle(r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		observability.API().Observe(route, recorder.status, time.Since(start))
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.tokens) > 0 {
			token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
			if _, ok := s.tokens[token]; !ok {
				writeError(w, http.StatusUnauthorized, "invalid or missing api token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) fail(w http.ResponseWriter, operation string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("operation failed", slog.String("operation", operation), slog.String("error", err.Error()))
	}
	writeError(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return false
	}
	return true
}

type initializeRequest struct {
	ProtocolFeeBps uint64 `json:"protocolFeeBps"`
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ProtocolFeeBps == 0 {
		req.ProtocolFeeBps = s.opts.Protocol.ProtocolFeeBps
	}
	var cfg *lending.GlobalConfig
	err := s.observe("initialize", func() error {
		return s.withRegistry(func(registry *lending.Registry) error {
			var err error
			cfg, err = registry.Initialize(s.opts.Authority, s.opts.Treasury, req.ProtocolFeeBps)
			return err
		})
	})
	if err != nil {
		s.fail(w, "initialize", err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

type createMarketRequest struct {
	Asset                   string `json:"asset"`
	ShareToken              string `json:"shareToken"`
	Oracle                  string `json:"oracle"`
	LTVBps                  uint64 `json:"ltvBps"`
	LiquidationThresholdBps uint64 `json:"liquidationThresholdBps"`
}

func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if !decode(w, r, &req) {
		return
	}
	if req.LTVBps == 0 {
		req.LTVBps = lending.DefaultLTVBps
	}
	if req.LiquidationThresholdBps == 0 {
		req.LiquidationThresholdBps = lending.DefaultLiquidationThresholdBps
	}
	var market *lending.Market
	err := s.observe("create_market", func() error {
		return s.withRegistry(func(registry *lending.Registry) error {
			var err error
			market, err = registry.CreateMarket(s.opts.Authority, req.Asset, req.ShareToken, req.Oracle, req.LTVBps, req.LiquidationThresholdBps)
			return err
		})
	})
	if err != nil {
		s.fail(w, "create_market", err)
		return
	}
	writeJSON(w, http.StatusCreated, market)
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

func (s *Server) handleSetPaused(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	var req pauseRequest
	if !decode(w, r, &req) {
		return
	}
	err := s.observe("set_paused", func() error {
		return s.withRegistry(func(registry *lending.Registry) error {
			return registry.SetMarketPaused(s.opts.Authority, asset, req.Paused)
		})
	})
	if err != nil {
		s.fail(w, "set_paused", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"asset": asset, "paused": req.Paused})
}

type setPriceRequest struct {
	Price uint64 `json:"price"`
}

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	var req setPriceRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Price == 0 {
		writeError(w, http.StatusBadRequest, "price must be positive")
		return
	}
	s.oracle.SetPrice(asset, req.Price)
	writeJSON(w, http.StatusOK, map[string]any{"asset": asset, "price": req.Price})
}

type supplyRequest struct {
	User   string `json:"user"`
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	var req supplyRequest
	if !decode(w, r, &req) {
		return
	}
	var minted uint64
	err := s.observe("supply", func() error {
		return s.withEngine(func(engine *lending.Engine) error {
			var err error
			minted, err = engine.Supply(req.User, req.Asset, req.Amount)
			return err
		})
	})
	if err != nil {
		s.fail(w, "supply", err)
		return
	}
	s.recordMarketGauges(req.Asset)
	writeJSON(w, http.StatusOK, map[string]any{"sharesMinted": minted})
}

type withdrawRequest struct {
	User   string `json:"user"`
	Asset  string `json:"asset"`
	Shares uint64 `json:"shares"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !decode(w, r, &req) {
		return
	}
	var amount uint64
	err := s.observe("withdraw", func() error {
		return s.withEngine(func(engine *lending.Engine) error {
			var err error
			amount, err = engine.Withdraw(req.User, req.Asset, req.Shares)
			return err
		})
	})
	if err != nil {
		s.fail(w, "withdraw", err)
		return
	}
	s.recordMarketGauges(req.Asset)
	writeJSON(w, http.StatusOK, map[string]any{"amount": amount})
}

type collateralRequest struct {
	User             string `json:"user"`
	Asset            string `json:"asset"`
	CollateralMarket string `json:"collateralMarket,omitempty"`
	Amount           uint64 `json:"amount"`
}

func (s *Server) handleDepositCollateral(w http.ResponseWriter, r *http.Request) {
	var req collateralRequest
	if !decode(w, r, &req) {
		return
	}
	err := s.observe("deposit_collateral", func() error {
		return s.withEngine(func(engine *lending.Engine) error {
			return engine.DepositCollateral(req.User, req.Asset, req.CollateralMarket, req.Amount)
		})
	})
	if err != nil {
		s.fail(w, "deposit_collateral", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleWithdrawCollateral(w http.ResponseWriter, r *http.Request) {
	var req collateralRequest
	if !decode(w, r, &req) {
		return
	}
	err := s.observe("withdraw_collateral", func() error {
		return s.withEngine(func(engine *lending.Engine) error {
			return engine.WithdrawCollateral(req.User, req.Asset, req.Amount)
		})
	})
	if err != nil {
		s.fail(w, "withdraw_collateral", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type borrowRequest struct {
	User   string `json:"user"`
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if !decode(w, r, &req) {
		return
	}
	err := s.observe("borrow", func() error {
		return s.withEngine(func(engine *lending.Engine) error {
			return engine.Borrow(req.User, req.Asset, req.Amount)
		})
	})
	if err != nil {
		s.fail(w, "borrow", err)
		return
	}
	s.recordMarketGauges(req.Asset)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if !decode(w, r, &req) {
		return
	}
	var repaid uint64
	err := s.observe("repay", func() error {
		return s.withEngine(func(engine *lending.Engine) error {
			var err error
			repaid, err = engine.Repay(req.User, req.Asset, req.Amount)
			return err
		})
	})
	if err != nil {
		s.fail(w, "repay", err)
		return
	}
	s.recordMarketGauges(req.Asset)
	writeJSON(w, http.StatusOK, map[string]any{"repaid": repaid})
}

type liquidateRequest struct {
	Liquidator    string `json:"liquidator"`
	Borrower      string `json:"borrower"`
	Asset         string `json:"asset"`
	RepayAmount   uint64 `json:"repayAmount"`
	MinCollateral uint64 `json:"minCollateral"`
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if !decode(w, r, &req) {
		return
	}
	var repaid, seized uint64
	err := s.observe("liquidate", func() error {
		return s.withEngine(func(engine *lending.Engine) error {
			var err error
			repaid, seized, err = engine.Liquidate(req.Liquidator, req.Borrower, req.Asset, req.RepayAmount, req.MinCollateral)
			return err
		})
	})
	if err != nil {
		s.fail(w, "liquidate", err)
		return
	}
	observability.Lending().RecordLiquidation(req.Asset)
	s.recordMarketGauges(req.Asset)
	writeJSON(w, http.StatusOK, map[string]any{"repaid": repaid, "collateralSeized": seized})
}

type createVaultRequest struct {
	Owner                 string `json:"owner"`
	Strategy              uint8  `json:"strategy"`
	RebalanceThresholdBps uint64 `json:"rebalanceThresholdBps"`
}

func (s *Server) handleCreateVault(w http.ResponseWriter, r *http.Request) {
	var req createVaultRequest
	if !decode(w, r, &req) {
		return
	}
	var vault *lending.Vault
	err := s.observe("create_vault", func() error {
		return s.withEngine(func(engine *lending.Engine) error {
			var err error
			vault, err = engine.CreateVault(req.Owner, lending.VaultStrategy(req.Strategy), req.RebalanceThresholdBps)
			return err
		})
	})
	if err != nil {
		s.fail(w, "create_vault", err)
		return
	}
	writeJSON(w, http.StatusCreated, vault)
}

type allocationsRequest struct {
	Caller      string           `json:"caller"`
	Allocations map[uint8]uint64 `json:"allocations"`
}

func (s *Server) handleSetAllocations(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	var req allocationsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Caller == "" {
		req.Caller = owner
	}
	err := s.observe("set_allocations", func() error {
		return s.withEngine(func(engine *lending.Engine) error {
			return engine.SetVaultAllocations(req.Caller, owner, req.Allocations)
		})
	})
	if err != nil {
		s.fail(w, "set_allocations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type rebalanceRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	var req rebalanceRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Caller == "" {
		req.Caller = owner
	}
	err := s.observe("rebalance_vault", func() error {
		return s.withEngine(func(engine *lending.Engine) error {
			return engine.RebalanceVault(req.Caller, owner)
		})
	})
	if err != nil {
		s.fail(w, "rebalance_vault", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	registry := lending.NewRegistry(s.store)
	markets, err := registry.ListMarkets()
	if err != nil {
		s.fail(w, "list_markets", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets})
}

func (s *Server) handleMarketView(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	view, err := s.newEngine(s.store).MarketView(asset)
	if err != nil {
		s.fail(w, "market_view", err)
		return
	}
	observability.Lending().RecordMarket(asset, view.UtilizationBps, view.TotalSupplied, view.TotalBorrowed)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePositionView(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	asset := chi.URLParam(r, "asset")
	view, err := s.newEngine(s.store).PositionView(user, asset)
	if err != nil {
		s.fail(w, "position_view", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleVaultView(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	vault, err := s.newEngine(s.store).VaultView(owner)
	if err != nil {
		s.fail(w, "vault_view", err)
		return
	}
	writeJSON(w, http.StatusOK, vault)
}

// observe wraps an engine call with operation metrics.
func (s *Server) observe(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	observability.Lending().Observe(operation, time.Since(start), err)
	return err
}

// recordMarketGauges refreshes the per-market gauges after a mutation. Gauge
// refresh is best effort and never fails the request.
func (s *Server) recordMarketGauges(asset string) {
	market, err := s.store.Market(asset)
	if err != nil || market == nil {
		return
	}
	utilization, err := lending.UtilizationRate(market.TotalBorrowed, market.TotalSupplied)
	if err != nil {
		return
	}
	observability.Lending().RecordMarket(asset, utilization, market.TotalSupplied, market.TotalBorrowed)
}
