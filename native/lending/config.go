package lending

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// RateConfig tunes the kinked interest curve. Zero values fall back to the
// protocol defaults during Normalize.
type RateConfig struct {
	BaseRatePerSecond     uint64 `toml:"BaseRatePerSecond"`
	Slope1PerSecond       uint64 `toml:"Slope1PerSecond"`
	Slope2PerSecond       uint64 `toml:"Slope2PerSecond"`
	OptimalUtilizationBps uint64 `toml:"OptimalUtilizationBps"`
}

// Config carries the operator-tunable lending parameters loaded from the
// protocol TOML file.
type Config struct {
	ProtocolFeeBps      uint64     `toml:"ProtocolFeeBps"`
	MinSupplyAmount     uint64     `toml:"MinSupplyAmount"`
	MinBorrowAmount     uint64     `toml:"MinBorrowAmount"`
	MaxPriceAgeSeconds  int64      `toml:"MaxPriceAgeSeconds"`
	Rates               RateConfig `toml:"rates"`
}

// DefaultConfig returns the built-in protocol parameters.
func DefaultConfig() Config {
	return Config{
		ProtocolFeeBps:     DefaultProtocolFeeBps,
		MinSupplyAmount:    MinSupplyAmount,
		MinBorrowAmount:    MinBorrowAmount,
		MaxPriceAgeSeconds: OracleStalenessThreshold,
		Rates: RateConfig{
			BaseRatePerSecond:     BaseRatePerSecond,
			Slope1PerSecond:       Slope1PerSecond,
			Slope2PerSecond:       Slope2PerSecond,
			OptimalUtilizationBps: OptimalUtilizationBps,
		},
	}
}

// LoadConfig reads a protocol config file, filling omitted fields with the
// defaults and validating the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("lending: decode config %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize fills zero-valued fields with the protocol defaults.
func (c *Config) Normalize() {
	if c.MaxPriceAgeSeconds <= 0 {
		c.MaxPriceAgeSeconds = OracleStalenessThreshold
	}
	if c.Rates.OptimalUtilizationBps == 0 {
		c.Rates.OptimalUtilizationBps = OptimalUtilizationBps
	}
	if c.Rates.BaseRatePerSecond == 0 && c.Rates.Slope1PerSecond == 0 && c.Rates.Slope2PerSecond == 0 {
		c.Rates.BaseRatePerSecond = BaseRatePerSecond
		c.Rates.Slope1PerSecond = Slope1PerSecond
		c.Rates.Slope2PerSecond = Slope2PerSecond
	}
}

// Validate rejects parameter combinations the core cannot operate on.
func (c Config) Validate() error {
	if c.ProtocolFeeBps > BpsScale {
		return fmt.Errorf("lending: protocol fee %d exceeds %d bps", c.ProtocolFeeBps, BpsScale)
	}
	if c.Rates.OptimalUtilizationBps == 0 || c.Rates.OptimalUtilizationBps >= BpsScale {
		return fmt.Errorf("lending: optimal utilization %d bps outside (0, %d)", c.Rates.OptimalUtilizationBps, BpsScale)
	}
	if c.MaxPriceAgeSeconds <= 0 {
		return fmt.Errorf("lending: max price age must be positive, got %d", c.MaxPriceAgeSeconds)
	}
	return nil
}

// RateModel materialises the configured interest curve.
func (c Config) RateModel() RateModel {
	return RateModel{
		BaseRatePerSecond:     c.Rates.BaseRatePerSecond,
		Slope1PerSecond:       c.Rates.Slope1PerSecond,
		Slope2PerSecond:       c.Rates.Slope2PerSecond,
		OptimalUtilizationBps: c.Rates.OptimalUtilizationBps,
	}
}
