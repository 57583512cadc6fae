package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/viper"

	"taxed-token-ledger/core/model"
)

type FeesConfig struct {
	BuyTeam       uint64 `mapstructure:"buy_team"`
	BuyLiquidity  uint64 `mapstructure:"buy_liquidity"`
	SellTeam      uint64 `mapstructure:"sell_team"`
	SellLiquidity uint64 `mapstructure:"sell_liquidity"`
}

func (f FeesConfig) Model() model.FeeConfig {
	return model.FeeConfig{
		BuyTeamBp:       f.BuyTeam,
		BuyLiquidityBp:  f.BuyLiquidity,
		SellTeamBp:      f.SellTeam,
		SellLiquidityBp: f.SellLiquidity,
	}
}

type SellTiersConfig struct {
	Launch uint64 `mapstructure:"launch"`
	Early  uint64 `mapstructure:"early"`
	Late   uint64 `mapstructure:"late"`
}

func (t SellTiersConfig) Model() model.SellTiers {
	return model.SellTiers{LaunchBp: t.Launch, EarlyBp: t.Early, LateBp: t.Late}
}

type LiquidationConfig struct {
	// Threshold is a whole-token amount; empty keeps the supply-relative default.
	Threshold       string `mapstructure:"threshold"`
	TeamBp          uint64 `mapstructure:"team_bp"`
	Enabled         bool   `mapstructure:"enabled"`
	TeamWallet      string `mapstructure:"team_wallet"`
	LiquidityWallet string `mapstructure:"liquidity_wallet"`
}

type PoolConfig struct {
	SeedTokens   string `mapstructure:"seed_tokens"`
	SeedCurrency string `mapstructure:"seed_currency"`
}

type Config struct {
	Name          string            `mapstructure:"name"`
	Symbol        string            `mapstructure:"symbol"`
	Decimals      uint8             `mapstructure:"decimals"`
	TotalSupply   string            `mapstructure:"total_supply"`
	Owner         string            `mapstructure:"owner"`
	Fees          FeesConfig        `mapstructure:"fees"`
	SellTiers     SellTiersConfig   `mapstructure:"sell_tiers"`
	Liquidation   LiquidationConfig `mapstructure:"liquidation"`
	Pool          PoolConfig        `mapstructure:"pool"`
	Database      string            `mapstructure:"database"`
	LogLevel      string            `mapstructure:"log_level"`
	RPCURL        string            `mapstructure:"rpc_url"`
	RouterAddress string            `mapstructure:"router_address"`
}

const (
	DefaultName        = "Taxed Token"
	DefaultSymbol      = "TAX"
	DefaultDecimals    = 18
	DefaultTotalSupply = "1000000000"
	DefaultDatabase    = "taxledger.db"
	DefaultLogLevel    = "info"

	DefaultSeedTokens   = "500000000"
	DefaultSeedCurrency = "100"

	EnvPrefix = "TAXLEDGER"
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"name":                DefaultName,
		"symbol":              DefaultSymbol,
		"decimals":            DefaultDecimals,
		"total_supply":        DefaultTotalSupply,
		"fees.buy_team":       500,
		"fees.buy_liquidity":  500,
		"fees.sell_team":      500,
		"fees.sell_liquidity": 500,
		"sell_tiers.launch":   2500,
		"sell_tiers.early":    2000,
		"sell_tiers.late":     1500,
		"liquidation.team_bp": 5000,
		"liquidation.enabled": false,
		"pool.seed_tokens":    DefaultSeedTokens,
		"pool.seed_currency":  DefaultSeedCurrency,
		"database":            DefaultDatabase,
		"log_level":           DefaultLogLevel,
	}
}

// LoadConfig reads path (any format viper understands) over the defaults.
// An empty path loads defaults and environment only. Every key can be
// overridden with TAXLEDGER_<KEY>, dots replaced by underscores.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about.
	for _, key := range []string{"owner", "rpc_url", "router_address", "liquidation.threshold", "liquidation.team_wallet", "liquidation.liquidity_wallet"} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.Name == "" || cfg.Symbol == "" {
		return errors.New("name and symbol are required")
	}
	if cfg.Decimals > 36 {
		return errors.New("invalid decimals")
	}
	supply, err := cfg.Supply()
	if err != nil {
		return err
	}
	if supply.IsZero() {
		return errors.New("total_supply must be positive")
	}
	if err := cfg.Fees.Model().Validate(); err != nil {
		return err
	}
	if err := cfg.SellTiers.Model().Validate(); err != nil {
		return err
	}
	if cfg.Liquidation.TeamBp > model.BpDenominator {
		return errors.New("liquidation.team_bp exceeds 10000")
	}
	if !common.IsHexAddress(cfg.Owner) {
		return errors.New("owner must be a hex address")
	}
	for name, addr := range map[string]string{
		"router_address":               cfg.RouterAddress,
		"liquidation.team_wallet":      cfg.Liquidation.TeamWallet,
		"liquidation.liquidity_wallet": cfg.Liquidation.LiquidityWallet,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid %s", name)
		}
	}
	if cfg.RPCURL != "" {
		parsed, err := url.Parse(cfg.RPCURL)
		if err != nil || !strings.HasPrefix(parsed.Scheme, "http") && !strings.HasPrefix(parsed.Scheme, "ws") {
			return errors.New("invalid RPC URL protocol")
		}
	}
	if cfg.Database == "" {
		return errors.New("database path is empty")
	}
	return nil
}

// Supply returns the total supply in base units.
func (c *Config) Supply() (*uint256.Int, error) {
	return c.Units(c.TotalSupply)
}

// Units converts a whole-token decimal amount such as "12.5" to base units.
func (c *Config) Units(amount string) (*uint256.Int, error) {
	return ParseUnits(amount, c.Decimals)
}

func (c *Config) OwnerAddress() common.Address {
	return common.HexToAddress(c.Owner)
}

// ParseUnits converts a decimal string with at most decimals fractional
// digits into an integer scaled by 10^decimals.
func ParseUnits(amount string, decimals uint8) (*uint256.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, errors.New("empty amount")
	}
	whole, frac, _ := strings.Cut(amount, ".")
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", amount, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return new(uint256.Int), nil
	}
	z, err := uint256.FromDecimal(digits)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return z, nil
}

// FormatUnits is the inverse of ParseUnits. Trailing fractional zeros are
// dropped.
func FormatUnits(amount *uint256.Int, decimals uint8) string {
	s := amount.Dec()
	if decimals == 0 {
		return s
	}
	d := int(decimals)
	if len(s) <= d {
		s = strings.Repeat("0", d-len(s)+1) + s
	}
	whole, frac := s[:len(s)-d], strings.TrimRight(s[len(s)-d:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
