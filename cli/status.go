package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"taxed-token-ledger/core/tax"
)

func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show ledger configuration, pool reserves and fee balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rootOpts.view(cmd.Context(), status)
			if err != nil {
				return err
			}
			return res.Write(cmd.OutOrStdout(), rootOpts.Format)
		},
	}
}

func status(a *App) (Result, error) {
	l := a.Ledger
	tokenReserve, currencyReserve, err := a.poolReserves()
	if err != nil {
		return nil, err
	}
	fees := l.Fees()
	tiers := l.SellTiers()
	liq := l.LiquidationSettings()

	res := Result{}.
		Add("token", fmt.Sprintf("%s (%s) %s", l.Name(), l.Symbol(), l.Address().Hex())).
		Add("owner", l.Owner().Hex()).
		Add("total_supply", a.formatTokens(l.TotalSupply())).
		Add("trading_enabled", l.TradingEnabled())

	if l.TradingEnabled() {
		elapsed := uint64(0)
		if a.now > l.LaunchTimestamp() {
			elapsed = a.now - l.LaunchTimestamp()
		}
		res = res.
			Add("launch_timestamp", l.LaunchTimestamp()).
			Add("sell_tier", tierName(tax.SellTier(elapsed)))
	}

	return res.
		Add("buy_fees_bp", fmt.Sprintf("team=%d liquidity=%d", fees.BuyTeamBp, fees.BuyLiquidityBp)).
		Add("sell_fees_bp", fmt.Sprintf("team=%d liquidity=%d", fees.SellTeamBp, fees.SellLiquidityBp)).
		Add("sell_tiers_bp", fmt.Sprintf("launch=%d early=%d late=%d", tiers.LaunchBp, tiers.EarlyBp, tiers.LateBp)).
		Add("liquidation_enabled", liq.Enabled).
		Add("liquidation_threshold", a.formatTokens(liq.ThresholdTokens)).
		Add("team_liquidation_bp", liq.TeamLiquidationBp).
		Add("team_wallet", l.TeamWallet().Hex()).
		Add("liquidity_wallet", l.LiquidityWallet().Hex()).
		Add("fee_balance", a.formatTokens(l.BalanceOf(l.Address()))).
		Add("pair", a.Deployment.Pair.Hex()).
		Add("pool_tokens", a.formatTokens(tokenReserve)).
		Add("pool_currency", formatCurrency(currencyReserve)), nil
}

func tierName(t tax.Tier) string {
	switch t {
	case tax.TierLaunch:
		return "launch"
	case tax.TierEarly:
		return "early"
	case tax.TierLate:
		return "late"
	default:
		return "base"
	}
}
