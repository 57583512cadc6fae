package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type Classification int8

const (
	ClassPlain Classification = 0
	ClassBuy   Classification = 1
	ClassSell  Classification = 2
)

const (
	// BpDenominator is 100% expressed in basis points.
	BpDenominator uint64 = 10000
	// MaxDirectionFeeBp caps team+liquidity fees for one direction (30%).
	MaxDirectionFeeBp uint64 = 3000
)

func (c Classification) String() string {
	names := map[Classification]string{
		ClassPlain: "PLAIN",
		ClassBuy:   "BUY",
		ClassSell:  "SELL",
	}

	name, ok := names[c]
	if !ok {
		return fmt.Sprintf("Classification(%d)", int8(c))
	}
	return name
}

type FeeConfig struct {
	BuyTeamBp       uint64 `json:"buy_team_bp"`
	BuyLiquidityBp  uint64 `json:"buy_liquidity_bp"`
	SellTeamBp      uint64 `json:"sell_team_bp"`
	SellLiquidityBp uint64 `json:"sell_liquidity_bp"`
}

func (f FeeConfig) BuyTotal() uint64 {
	return f.BuyTeamBp + f.BuyLiquidityBp
}

func (f FeeConfig) SellTotal() uint64 {
	return f.SellTeamBp + f.SellLiquidityBp
}

// TeamWeight and LiquidityWeight drive the proportional split of the
// accumulated fee balance at liquify time.
func (f FeeConfig) TeamWeight() uint64 {
	return f.BuyTeamBp + f.SellTeamBp
}

func (f FeeConfig) LiquidityWeight() uint64 {
	return f.BuyLiquidityBp + f.SellLiquidityBp
}

func (f FeeConfig) Validate() error {
	for _, bp := range []uint64{f.BuyTeamBp, f.BuyLiquidityBp, f.SellTeamBp, f.SellLiquidityBp} {
		if bp > BpDenominator {
			return fmt.Errorf("%w: fee %d bp exceeds %d", ErrConfigValidation, bp, BpDenominator)
		}
	}
	if f.BuyTotal() > MaxDirectionFeeBp {
		return fmt.Errorf("%w: buy taxes too high (%d > %d)", ErrConfigValidation, f.BuyTotal(), MaxDirectionFeeBp)
	}
	if f.SellTotal() > MaxDirectionFeeBp {
		return fmt.Errorf("%w: sell taxes too high (%d > %d)", ErrConfigValidation, f.SellTotal(), MaxDirectionFeeBp)
	}
	return nil
}

// SellTiers holds the total sell tax applied in the first three decay bands
// after launch. Values are tuned independently of the base sell rate.
type SellTiers struct {
	LaunchBp uint64 `json:"launch_bp"` // elapsed <= 5m
	EarlyBp  uint64 `json:"early_bp"`  // 5m < elapsed <= 15m
	LateBp   uint64 `json:"late_bp"`   // 15m < elapsed <= 30m
}

func (t SellTiers) Validate() error {
	for _, bp := range []uint64{t.LaunchBp, t.EarlyBp, t.LateBp} {
		if bp > MaxDirectionFeeBp {
			return fmt.Errorf("%w: sell tier %d bp exceeds %d", ErrConfigValidation, bp, MaxDirectionFeeBp)
		}
	}
	if t.LaunchBp < t.EarlyBp || t.EarlyBp < t.LateBp {
		return fmt.Errorf("%w: sell tiers must not increase over time", ErrConfigValidation)
	}
	return nil
}

type LiquiditySettings struct {
	ThresholdTokens   *uint256.Int
	TeamLiquidationBp uint64
	Enabled           bool
}

func (s LiquiditySettings) Validate(totalSupply *uint256.Int) error {
	if s.ThresholdTokens == nil || s.ThresholdTokens.Gt(totalSupply) {
		return fmt.Errorf("%w: liquidation threshold above total supply", ErrConfigValidation)
	}
	if s.TeamLiquidationBp > BpDenominator {
		return fmt.Errorf("%w: team liquidation %d bp exceeds %d", ErrConfigValidation, s.TeamLiquidationBp, BpDenominator)
	}
	return nil
}

type Wallets struct {
	Team      common.Address `json:"team"`
	Liquidity common.Address `json:"liquidity"`
}

// ERC20 is the token surface the ledger and the pool router call into.
// caller plays the role of msg.sender.
type ERC20 interface {
	Address() common.Address
	BalanceOf(account common.Address) *uint256.Int
	Allowance(owner, spender common.Address) *uint256.Int
	Approve(caller, spender common.Address, amount *uint256.Int) error
	Transfer(caller, to common.Address, amount *uint256.Int) error
	TransferFrom(caller, from, to common.Address, amount *uint256.Int) error
}

type LiquidityResult struct {
	TokenAmount    *uint256.Int
	CurrencyAmount *uint256.Int
	Liquidity      *uint256.Int
}

// PoolGateway is the market-making router the liquidity engine converts
// fees through. Implementations may call back into the token ledger.
type PoolGateway interface {
	Address() common.Address
	WrappedCurrency() common.Address

	QuoteOut(amountIn *uint256.Int, path []common.Address) (*uint256.Int, error)
	QuoteIn(amountOut *uint256.Int, path []common.Address) (*uint256.Int, error)

	SwapExactTokensForCurrency(caller common.Address, amountIn, minOut *uint256.Int, path []common.Address, recipient common.Address, deadline uint64) error
	SwapExactCurrencyForTokens(caller common.Address, value, minOut *uint256.Int, path []common.Address, recipient common.Address, deadline uint64) error
	AddLiquidity(caller, token common.Address, tokenAmount, currencyAmount, minToken, minCurrency *uint256.Int, recipient common.Address, deadline uint64) (*LiquidityResult, error)
}
