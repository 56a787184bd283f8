package lending

import "lendhub/events"

// Vault accounts let an owner declare target allocations across markets and
// track when they were last reconciled. The engine validates targets against
// listed markets; moving the underlying value is done through the regular
// supply and withdraw operations.

// CreateVault opens a vault for the owner with the given strategy.
func (e *Engine) CreateVault(owner string, strategy VaultStrategy, rebalanceThresholdBps uint64) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if owner == "" {
		return nil, ErrInvalidAmount
	}
	if !strategy.Valid() {
		return nil, ErrInvalidVaultStrategy
	}
	if rebalanceThresholdBps > BpsScale {
		return nil, ErrInvalidVaultAllocation
	}
	if _, err := e.globalConfig(); err != nil {
		return nil, err
	}
	existing, err := e.state.Vault(owner)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrVaultExists
	}
	now := e.now()
	vault := &Vault{
		Owner:                 owner,
		Strategy:              strategy,
		Allocations:           make(map[uint8]uint64),
		RebalanceThresholdBps: rebalanceThresholdBps,
		CreatedAt:             now,
	}
	if err := e.state.PutVault(vault); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.VaultCreated{Owner: owner, Strategy: uint8(strategy), Timestamp: now})
	return vault.Clone(), nil
}

// SetVaultAllocations replaces the vault's target allocations. Every target
// must reference a listed market and the total may not exceed 100%.
func (e *Engine) SetVaultAllocations(caller, owner string, allocations map[uint8]uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	vault, err := e.vaultOwnedBy(caller, owner)
	if err != nil {
		return err
	}
	cfg, err := e.globalConfig()
	if err != nil {
		return err
	}
	var total uint64
	for id, bps := range allocations {
		if id >= cfg.MarketCount {
			return ErrMarketNotFound
		}
		sum, err := checkedAdd(total, bps)
		if err != nil {
			return err
		}
		total = sum
	}
	if total > BpsScale {
		return ErrInvalidVaultAllocation
	}
	vault.Allocations = make(map[uint8]uint64, len(allocations))
	for id, bps := range allocations {
		vault.Allocations[id] = bps
	}
	if err := e.state.PutVault(vault); err != nil {
		return err
	}
	e.emitter.Emit(events.VaultAllocationsChanged{
		Owner:     owner,
		TotalBps:  total,
		Markets:   len(allocations),
		Timestamp: e.now(),
	})
	return nil
}

// RebalanceVault stamps a reconciliation of the vault against its targets.
func (e *Engine) RebalanceVault(caller, owner string) error {
	if err := e.ready(); err != nil {
		return err
	}
	vault, err := e.vaultOwnedBy(caller, owner)
	if err != nil {
		return err
	}
	now := e.now()
	vault.LastRebalance = now
	if err := e.state.PutVault(vault); err != nil {
		return err
	}
	e.emitter.Emit(events.VaultRebalanced{Owner: owner, Timestamp: now})
	return nil
}

// VaultView returns the vault record for the owner.
func (e *Engine) VaultView(owner string) (*Vault, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	vault, err := e.state.Vault(owner)
	if err != nil {
		return nil, err
	}
	if vault == nil {
		return nil, ErrVaultNotFound
	}
	return vault, nil
}

func (e *Engine) vaultOwnedBy(caller, owner string) (*Vault, error) {
	vault, err := e.state.Vault(owner)
	if err != nil {
		return nil, err
	}
	if vault == nil {
		return nil, ErrVaultNotFound
	}
	if caller != owner {
		return nil, ErrUnauthorized
	}
	return vault, nil
}
