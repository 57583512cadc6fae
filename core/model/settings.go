package model

import (
	"github.com/ethereum/go-ethereum/common"
)

// Settings is the persisted form of a ledger's owner-managed configuration.
type Settings struct {
	Owner                common.Address   `json:"owner"`
	Fees                 FeeConfig        `json:"fees"`
	SellTiers            SellTiers        `json:"sell_tiers"`
	LiquidationThreshold string           `json:"liquidation_threshold"`
	TeamLiquidationBp    uint64           `json:"team_liquidation_bp"`
	LiquidationEnabled   bool             `json:"liquidation_enabled"`
	Wallets              Wallets          `json:"wallets"`
	IgnoreFees           []common.Address `json:"ignore_fees"`
	FeeCollectors        []common.Address `json:"fee_collectors"`
	TradingWhitelist     []common.Address `json:"trading_whitelist"`
	LaunchTimestamp      uint64           `json:"launch_timestamp"`
}

// Deployment records the immutable parameters a ledger was created with.
type Deployment struct {
	Token           common.Address `json:"token"`
	Name            string         `json:"name"`
	Symbol          string         `json:"symbol"`
	Decimals        uint8          `json:"decimals"`
	TotalSupply     string         `json:"total_supply"`
	Router          common.Address `json:"router"`
	WrappedCurrency common.Address `json:"wrapped_currency"`
	Pair            common.Address `json:"pair"`
}
