package cli

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// CallerOptions carries the --from address a command acts as.
type CallerOptions struct {
	*RootOptions
	From string
}

func (o *CallerOptions) caller() (common.Address, error) {
	return parseAddress(o.From)
}

func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Show token, currency and pool share balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rootOpts.view(cmd.Context(), func(a *App) (Result, error) {
				account, err := parseAddress(args[0])
				if err != nil {
					return nil, err
				}
				return Result{}.
					Add("address", account.Hex()).
					Add("tokens", a.formatTokens(a.Ledger.BalanceOf(account))).
					Add("currency", formatCurrency(a.State.GetBalance(account))).
					Add("pool_shares", a.Router.LiquidityOf(a.Ledger.Address(), account).Dec()), nil
			})
			if err != nil {
				return err
			}
			return res.Write(cmd.OutOrStdout(), rootOpts.Format)
		},
	}
}

func NewTransferCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "transfer <to> <amount>",
		Short:   "Transfer tokens, applying the transaction tax",
		Example: `  taxledger transfer --from 0xA11CE... 0xB0B... 1500.5`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rootOpts.mutate(cmd.Context(), func(a *App) (Result, error) {
				from, err := opts.caller()
				if err != nil {
					return nil, err
				}
				to, err := parseAddress(args[0])
				if err != nil {
					return nil, err
				}
				amount, err := a.tokenUnits(args[1])
				if err != nil {
					return nil, err
				}
				class, fee, net, err := a.Ledger.Quote(from, to, amount)
				if err != nil {
					return nil, err
				}
				if err := a.Ledger.Transfer(from, to, amount); err != nil {
					return nil, err
				}
				return Result{}.
					Add("class", class.String()).
					Add("fee", a.formatTokens(fee)).
					Add("received", a.formatTokens(net)), nil
			})
			if err != nil {
				return err
			}
			return res.Write(cmd.OutOrStdout(), rootOpts.Format)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "sender address (required)")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func NewApproveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "approve <spender> <amount>",
		Short: "Set a token allowance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rootOpts.mutate(cmd.Context(), func(a *App) (Result, error) {
				owner, err := opts.caller()
				if err != nil {
					return nil, err
				}
				spender, err := parseAddress(args[0])
				if err != nil {
					return nil, err
				}
				amount, err := a.tokenUnits(args[1])
				if err != nil {
					return nil, err
				}
				if err := a.Ledger.Approve(owner, spender, amount); err != nil {
					return nil, err
				}
				return Result{}.Add("allowance", a.formatTokens(a.Ledger.Allowance(owner, spender))), nil
			})
			if err != nil {
				return err
			}
			return res.Write(cmd.OutOrStdout(), rootOpts.Format)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "token owner address (required)")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

// NewFundCommand credits native currency out of thin air. The pool runs
// in-process, so this is how accounts get currency to buy with.
func NewFundCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fund <address> <currency-amount>",
		Short: "Credit native currency to an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rootOpts.mutate(cmd.Context(), func(a *App) (Result, error) {
				account, err := parseAddress(args[0])
				if err != nil {
					return nil, err
				}
				amount, err := currencyUnits(args[1])
				if err != nil {
					return nil, err
				}
				if err := a.State.AddBalance(account, amount); err != nil {
					return nil, err
				}
				return Result{}.Add("currency", formatCurrency(a.State.GetBalance(account))), nil
			})
			if err != nil {
				return err
			}
			return res.Write(cmd.OutOrStdout(), rootOpts.Format)
		},
	}
}
