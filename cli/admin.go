package cli

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

type AdminOptions struct {
	*RootOptions
	Caller string
}

type adminFunc func(a *App, caller common.Address, args []string) (Result, error)

// NewAdminCommand groups the owner-only operations.
func NewAdminCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AdminOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Owner-only configuration",
		Long: `Owner-only configuration.

Every subcommand is executed as --caller and is rejected unless the caller is
the current owner.

Example:
  taxledger admin --caller 0xOwner set-fees 300 200 300 200
  taxledger admin --caller 0xOwner start-trading`,
	}

	cmd.PersistentFlags().StringVar(&opts.Caller, "caller", "", "owner address (required)")
	_ = cmd.MarkPersistentFlagRequired("caller")

	cmd.AddCommand(
		adminCommand(opts, "set-fees <buy-team-bp> <buy-liquidity-bp> <sell-team-bp> <sell-liquidity-bp>",
			"Set the base buy and sell fees", 4, setFees),
		adminCommand(opts, "set-sell-tiers <launch-bp> <early-bp> <late-bp>",
			"Set the post-launch sell tax tiers", 3, setSellTiers),
		adminCommand(opts, "set-liquidation <threshold-tokens> <team-liquidation-bp> <enabled>",
			"Configure automatic fee liquidation", 3, setLiquidation),
		adminCommand(opts, "set-team-wallet <address>", "Set the team wallet", 1, setTeamWallet),
		adminCommand(opts, "set-liquidity-wallet <address>", "Set the liquidity wallet", 1, setLiquidityWallet),
		adminCommand(opts, "ignore-fees <address> <true|false>", "Exempt an account from fees", 2, ignoreFees),
		adminCommand(opts, "take-fee <address> <true|false>", "Mark an account as a pool counterparty", 2, takeFee),
		adminCommand(opts, "whitelist <address> <true|false>", "Allow an account to trade before launch", 2, whitelist),
		adminCommand(opts, "start-trading", "Open trading and start the sell tax decay", 0, startTrading),
		adminCommand(opts, "recover-token <token> <amount>", "Send tokens held by the ledger to the owner", 2, recoverToken),
		adminCommand(opts, "recover-currency <amount>", "Send currency held by the ledger to the owner", 1, recoverCurrency),
		adminCommand(opts, "transfer-ownership <address>", "Hand the ledger to a new owner", 1, transferOwnership),
		adminCommand(opts, "renounce-ownership", "Leave the ledger without an owner", 0, renounceOwnership),
	)

	return cmd
}

func adminCommand(opts *AdminOptions, use, short string, nargs int, fn adminFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.mutate(cmd.Context(), func(a *App) (Result, error) {
				caller, err := parseAddress(opts.Caller)
				if err != nil {
					return nil, err
				}
				return fn(a, caller, args)
			})
			if err != nil {
				return err
			}
			return res.Write(cmd.OutOrStdout(), opts.Format)
		},
	}
}

func parseBp(args []string) ([]uint64, error) {
	out := make([]uint64, len(args))
	for i, s := range args {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid basis points %q", s), err)
		}
		out[i] = v
	}
	return out, nil
}

func parseBool(s string) (bool, error) {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, WrapExitError(ExitCommandError, fmt.Sprintf("invalid boolean %q", s), err)
	}
	return v, nil
}

func setFees(a *App, caller common.Address, args []string) (Result, error) {
	bp, err := parseBp(args)
	if err != nil {
		return nil, err
	}
	if err := a.Ledger.SetFees(caller, bp[0], bp[1], bp[2], bp[3]); err != nil {
		return nil, err
	}
	f := a.Ledger.Fees()
	return Result{}.
		Add("buy_fees_bp", f.BuyTotal()).
		Add("sell_fees_bp", f.SellTotal()), nil
}

func setSellTiers(a *App, caller common.Address, args []string) (Result, error) {
	bp, err := parseBp(args)
	if err != nil {
		return nil, err
	}
	if err := a.Ledger.SetSellTiers(caller, bp[0], bp[1], bp[2]); err != nil {
		return nil, err
	}
	t := a.Ledger.SellTiers()
	return Result{}.Add("sell_tiers_bp", fmt.Sprintf("launch=%d early=%d late=%d", t.LaunchBp, t.EarlyBp, t.LateBp)), nil
}

func setLiquidation(a *App, caller common.Address, args []string) (Result, error) {
	threshold, err := a.tokenUnits(args[0])
	if err != nil {
		return nil, err
	}
	bp, err := parseBp(args[1:2])
	if err != nil {
		return nil, err
	}
	enabled, err := parseBool(args[2])
	if err != nil {
		return nil, err
	}
	if err := a.Ledger.SetLiquidationSettings(caller, threshold, bp[0], enabled); err != nil {
		return nil, err
	}
	s := a.Ledger.LiquidationSettings()
	return Result{}.
		Add("liquidation_threshold", a.formatTokens(s.ThresholdTokens)).
		Add("team_liquidation_bp", s.TeamLiquidationBp).
		Add("liquidation_enabled", s.Enabled), nil
}

func setTeamWallet(a *App, caller common.Address, args []string) (Result, error) {
	wallet, err := parseAddress(args[0])
	if err != nil {
		return nil, err
	}
	if err := a.Ledger.SetTeamWallet(caller, wallet); err != nil {
		return nil, err
	}
	return Result{}.Add("team_wallet", a.Ledger.TeamWallet().Hex()), nil
}

func setLiquidityWallet(a *App, caller common.Address, args []string) (Result, error) {
	wallet, err := parseAddress(args[0])
	if err != nil {
		return nil, err
	}
	if err := a.Ledger.SetLiquidityWallet(caller, wallet); err != nil {
		return nil, err
	}
	return Result{}.Add("liquidity_wallet", a.Ledger.LiquidityWallet().Hex()), nil
}

func flagArgs(args []string) (common.Address, bool, error) {
	account, err := parseAddress(args[0])
	if err != nil {
		return common.Address{}, false, err
	}
	value, err := parseBool(args[1])
	if err != nil {
		return common.Address{}, false, err
	}
	return account, value, nil
}

func ignoreFees(a *App, caller common.Address, args []string) (Result, error) {
	account, value, err := flagArgs(args)
	if err != nil {
		return nil, err
	}
	if err := a.Ledger.SetIgnoreFees(caller, account, value); err != nil {
		return nil, err
	}
	return Result{}.Add(account.Hex(), a.Ledger.IgnoreFees(account)), nil
}

func takeFee(a *App, caller common.Address, args []string) (Result, error) {
	account, value, err := flagArgs(args)
	if err != nil {
		return nil, err
	}
	if err := a.Ledger.SetTakeFeeFor(caller, account, value); err != nil {
		return nil, err
	}
	return Result{}.Add(account.Hex(), a.Ledger.TakeFeesFor(account)), nil
}

func whitelist(a *App, caller common.Address, args []string) (Result, error) {
	account, value, err := flagArgs(args)
	if err != nil {
		return nil, err
	}
	if err := a.Ledger.WhiteListTrade(caller, account, value); err != nil {
		return nil, err
	}
	return Result{}.Add(account.Hex(), a.Ledger.TradingWhiteList(account)), nil
}

func startTrading(a *App, caller common.Address, _ []string) (Result, error) {
	if err := a.Ledger.StartTrading(caller); err != nil {
		return nil, err
	}
	return Result{}.Add("launch_timestamp", a.Ledger.LaunchTimestamp()), nil
}

func recoverToken(a *App, caller common.Address, args []string) (Result, error) {
	token, err := parseAddress(args[0])
	if err != nil {
		return nil, err
	}
	var amount *uint256.Int
	if token == a.Ledger.Address() {
		amount, err = a.tokenUnits(args[1])
	} else {
		// foreign tokens take raw base units
		amount, err = uint256.FromDecimal(args[1])
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid amount", err)
	}
	if err := a.Ledger.RecoverERC20(caller, token, amount); err != nil {
		return nil, err
	}
	return Result{}.Add("recovered", amount.Dec()).Add("to", a.Ledger.Owner().Hex()), nil
}

func recoverCurrency(a *App, caller common.Address, args []string) (Result, error) {
	amount, err := currencyUnits(args[0])
	if err != nil {
		return nil, err
	}
	if err := a.Ledger.RecoverETH(caller, amount); err != nil {
		return nil, err
	}
	return Result{}.Add("recovered", formatCurrency(amount)).Add("to", a.Ledger.Owner().Hex()), nil
}

func transferOwnership(a *App, caller common.Address, args []string) (Result, error) {
	owner, err := parseAddress(args[0])
	if err != nil {
		return nil, err
	}
	if err := a.Ledger.TransferOwnership(caller, owner); err != nil {
		return nil, err
	}
	return Result{}.Add("owner", a.Ledger.Owner().Hex()), nil
}

func renounceOwnership(a *App, caller common.Address, _ []string) (Result, error) {
	if err := a.Ledger.RenounceOwnership(caller); err != nil {
		return nil, err
	}
	return Result{}.Add("owner", a.Ledger.Owner().Hex()), nil
}
