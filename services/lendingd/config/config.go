package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime settings for the lending daemon.
type Config struct {
	ListenAddress string          `yaml:"listen"`
	Environment   string          `yaml:"environment"`
	DataDir       string          `yaml:"data_dir"`
	ProtocolFile  string          `yaml:"protocol_config"`
	LogFile       string          `yaml:"log_file"`
	Accounts      AccountsConfig  `yaml:"accounts"`
	Auth          AuthConfig      `yaml:"auth"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	Oracle        OracleConfig    `yaml:"oracle"`
}

// AccountsConfig names the privileged and custodial accounts.
type AccountsConfig struct {
	Authority  string `yaml:"authority"`
	Treasury   string `yaml:"treasury"`
	Reserve    string `yaml:"reserve"`
	Collateral string `yaml:"collateral"`
}

// AuthConfig lists the bearer tokens accepted for mutating endpoints. An
// empty list disables token checks, which is only acceptable in dev.
type AuthConfig struct {
	APITokens []string `yaml:"api_tokens"`
}

// RateLimitConfig bounds request throughput on the HTTP surface.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// OracleConfig seeds the in-process price oracle. Feeds map an asset to its
// starting price; updates arrive through the admin endpoint afterwards.
type OracleConfig struct {
	Feeds map[string]uint64 `yaml:"feeds"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		ListenAddress: ":8091",
		DataDir:       "data",
		Accounts: AccountsConfig{
			Authority:  "lendhub/authority",
			Treasury:   "lendhub/treasury",
			Reserve:    "lendhub/reserve",
			Collateral: "lendhub/collateral",
		},
		RateLimit: RateLimitConfig{RequestsPerSecond: 50, Burst: 100},
	}
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8091"
	}
	cfg.Environment = strings.TrimSpace(cfg.Environment)
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	cfg.ProtocolFile = strings.TrimSpace(cfg.ProtocolFile)
	cfg.LogFile = strings.TrimSpace(cfg.LogFile)
	cfg.Accounts.normalize()

	tokens := make([]string, 0, len(cfg.Auth.APITokens))
	for _, token := range cfg.Auth.APITokens {
		if token = strings.TrimSpace(token); token != "" {
			tokens = append(tokens, token)
		}
	}
	cfg.Auth.APITokens = tokens

	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit.RequestsPerSecond = 50
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 100
	}
}

func (cfg *AccountsConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.Authority = strings.TrimSpace(cfg.Authority)
	cfg.Treasury = strings.TrimSpace(cfg.Treasury)
	cfg.Reserve = strings.TrimSpace(cfg.Reserve)
	cfg.Collateral = strings.TrimSpace(cfg.Collateral)
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if cfg.Accounts.Authority == "" || cfg.Accounts.Treasury == "" {
		return fmt.Errorf("accounts: authority and treasury are required")
	}
	if cfg.Accounts.Reserve == "" || cfg.Accounts.Collateral == "" {
		return fmt.Errorf("accounts: reserve and collateral custody accounts are required")
	}
	if cfg.Accounts.Reserve == cfg.Accounts.Collateral {
		return fmt.Errorf("accounts: reserve and collateral custody must differ")
	}
	if len(cfg.Auth.APITokens) == 0 && !strings.EqualFold(cfg.Environment, "dev") {
		return fmt.Errorf("auth: api_tokens required outside dev environment")
	}
	return nil
}
