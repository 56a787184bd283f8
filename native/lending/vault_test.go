package lending

import (
	"errors"
	"testing"

	"lendhub/events"
)

func TestCreateVault(t *testing.T) {
	h := newTestHarness(t)
	vault, err := h.engine.CreateVault("alice", StrategyBalanced, 500)
	if err != nil {
		t.Fatalf("CreateVault: %v", err)
	}
	if vault.Strategy != StrategyBalanced || vault.RebalanceThresholdBps != 500 {
		t.Fatalf("vault = %+v", vault)
	}
	if vault.CreatedAt != h.clock.now {
		t.Fatalf("CreatedAt = %d, want %d", vault.CreatedAt, h.clock.now)
	}
	if _, err := h.engine.CreateVault("alice", StrategyConservative, 0); !errors.Is(err, ErrVaultExists) {
		t.Fatalf("duplicate vault: got %v", err)
	}
	if _, err := h.engine.CreateVault("bob", VaultStrategy(9), 0); !errors.Is(err, ErrInvalidVaultStrategy) {
		t.Fatalf("bad strategy: got %v", err)
	}
}

func TestSetVaultAllocations(t *testing.T) {
	h := newTestHarness(t)
	if _, err := h.engine.CreateVault("alice", StrategyAggressive, 500); err != nil {
		t.Fatalf("CreateVault: %v", err)
	}

	if err := h.engine.SetVaultAllocations("alice", "alice", map[uint8]uint64{0: 6_000, 1: 4_000}); err != nil {
		t.Fatalf("SetVaultAllocations: %v", err)
	}
	vault := h.state.vaults["alice"]
	if vault.Allocations[0] != 6_000 || vault.Allocations[1] != 4_000 {
		t.Fatalf("allocations = %v", vault.Allocations)
	}
	if h.emitter.lastType() != events.TypeVaultAllocationsChanged {
		t.Fatalf("last event = %q, want %q", h.emitter.lastType(), events.TypeVaultAllocationsChanged)
	}

	if err := h.engine.SetVaultAllocations("alice", "alice", map[uint8]uint64{0: 6_000, 1: 4_001}); !errors.Is(err, ErrInvalidVaultAllocation) {
		t.Fatalf("over 100%%: got %v", err)
	}
	if err := h.engine.SetVaultAllocations("alice", "alice", map[uint8]uint64{7: 1_000}); !errors.Is(err, ErrMarketNotFound) {
		t.Fatalf("unlisted market: got %v", err)
	}
	if err := h.engine.SetVaultAllocations("mallory", "alice", map[uint8]uint64{0: 1_000}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-owner: got %v", err)
	}
}

func TestRebalanceVaultStamps(t *testing.T) {
	h := newTestHarness(t)
	if _, err := h.engine.CreateVault("alice", StrategyConservative, 250); err != nil {
		t.Fatalf("CreateVault: %v", err)
	}
	h.clock.advance(3_600)
	if err := h.engine.RebalanceVault("alice", "alice"); err != nil {
		t.Fatalf("RebalanceVault: %v", err)
	}
	if got := h.state.vaults["alice"].LastRebalance; got != h.clock.now {
		t.Fatalf("LastRebalance = %d, want %d", got, h.clock.now)
	}
	if err := h.engine.RebalanceVault("mallory", "alice"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-owner rebalance: got %v", err)
	}
	if err := h.engine.RebalanceVault("bob", "bob"); !errors.Is(err, ErrVaultNotFound) {
		t.Fatalf("missing vault: got %v", err)
	}
}
