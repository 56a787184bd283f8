package lending

import (
	"errors"
	"testing"
)

func TestExchangeRateStartsAtOne(t *testing.T) {
	m := &Market{Asset: "usdh"}
	m.EnsureDefaults()
	if rate := ExchangeRate(m); rate.Uint64() != Scale {
		t.Fatalf("empty market rate = %s, want %d", rate.Dec(), Scale)
	}
}

func TestMintSharesOneToOneOnFreshMarket(t *testing.T) {
	m := &Market{Asset: "usdh"}
	m.EnsureDefaults()
	shares, err := MintShares(m, 1_000_000)
	if err != nil {
		t.Fatalf("MintShares: %v", err)
	}
	if shares != 1_000_000 {
		t.Fatalf("shares = %d, want 1000000", shares)
	}
	if m.TotalSupplied != 1_000_000 || m.TotalSupplyShares != 1_000_000 {
		t.Fatalf("totals = %d/%d, want 1000000/1000000", m.TotalSupplied, m.TotalSupplyShares)
	}
}

func TestMintSharesAfterInterestMintsFewer(t *testing.T) {
	// Interest has pushed the exchange rate to 1.5, so a fresh deposit buys
	// two thirds as many shares.
	m := &Market{Asset: "usdh", TotalSupplied: 1_500_000, TotalSupplyShares: 1_000_000}
	m.EnsureDefaults()
	shares, err := MintShares(m, 300_000)
	if err != nil {
		t.Fatalf("MintShares: %v", err)
	}
	if shares != 200_000 {
		t.Fatalf("shares = %d, want 200000", shares)
	}
}

func TestBurnSharesRoundTripWithinOneUnit(t *testing.T) {
	m := &Market{Asset: "usdh", TotalSupplied: 1_234_567_891, TotalSupplyShares: 1_000_000_007}
	m.EnsureDefaults()
	const deposit = 98_765_432
	shares, err := MintShares(m, deposit)
	if err != nil {
		t.Fatalf("MintShares: %v", err)
	}
	redeemed, err := BurnShares(m, shares)
	if err != nil {
		t.Fatalf("BurnShares: %v", err)
	}
	if redeemed > deposit {
		t.Fatalf("redeemed %d exceeds deposit %d", redeemed, deposit)
	}
	if deposit-redeemed > 2 {
		t.Fatalf("round trip lost %d units, want at most 2", deposit-redeemed)
	}
}

func TestBurnSharesRejectsExcess(t *testing.T) {
	m := &Market{Asset: "usdh", TotalSupplied: 1_000_000, TotalSupplyShares: 1_000_000}
	m.EnsureDefaults()
	if _, err := BurnShares(m, 1_000_001); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}
}

func TestBurnSharesBoundedByLiquidity(t *testing.T) {
	m := &Market{Asset: "usdh", TotalSupplied: 1_000_000, TotalBorrowed: 900_000, TotalSupplyShares: 1_000_000}
	m.EnsureDefaults()
	if _, err := BurnShares(m, 200_000); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	redeemed, err := BurnShares(m, 100_000)
	if err != nil {
		t.Fatalf("BurnShares within liquidity: %v", err)
	}
	if redeemed != 100_000 {
		t.Fatalf("redeemed = %d, want 100000", redeemed)
	}
}

func TestBurnSharesSweepsDustOnFullExit(t *testing.T) {
	m := &Market{Asset: "usdh", TotalSupplied: 1_000_003, TotalSupplyShares: 1_000_000}
	m.EnsureDefaults()
	if _, err := BurnShares(m, 1_000_000); err != nil {
		t.Fatalf("BurnShares: %v", err)
	}
	if m.TotalSupplyShares != 0 || m.TotalSupplied != 0 {
		t.Fatalf("dust left after full exit: supplied %d, shares %d", m.TotalSupplied, m.TotalSupplyShares)
	}
}

func TestMintBurnLeavesRateStable(t *testing.T) {
	m := &Market{Asset: "usdh", TotalSupplied: 3_333_333_333, TotalSupplyShares: 2_222_222_222}
	m.EnsureDefaults()
	before := ExchangeRate(m)
	if _, err := MintShares(m, 555_555_555); err != nil {
		t.Fatalf("MintShares: %v", err)
	}
	after := ExchangeRate(m)
	if diff := absDelta(before.Uint64(), after.Uint64()); diff > 2 {
		t.Fatalf("exchange rate moved by %d on mint: %s -> %s", diff, before.Dec(), after.Dec())
	}
}

func absDelta(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
