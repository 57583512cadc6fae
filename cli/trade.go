package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"taxed-token-ledger/chain"
	"taxed-token-ledger/core/model"
)

type TradeOptions struct {
	CallerOptions
	MinOut string
}

func NewBuyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TradeOptions{CallerOptions: CallerOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "buy <currency-amount>",
		Short: "Buy tokens from the pool with native currency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rootOpts.mutate(cmd.Context(), func(a *App) (Result, error) {
				return a.buy(opts, args[0])
			})
			if err != nil {
				return err
			}
			return res.Write(cmd.OutOrStdout(), rootOpts.Format)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "buyer address (required)")
	cmd.Flags().StringVar(&opts.MinOut, "min-out", "0", "minimum tokens received")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func NewSellCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TradeOptions{CallerOptions: CallerOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "sell <token-amount>",
		Short: "Sell tokens to the pool for native currency",
		Long: `Sell tokens to the pool for native currency.

The sell is taxed at the current sell rate. When the ledger's fee balance has
reached the liquidation threshold, the collected fees are liquified inside the
same operation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rootOpts.mutate(cmd.Context(), func(a *App) (Result, error) {
				return a.sell(opts, args[0])
			})
			if err != nil {
				return err
			}
			return res.Write(cmd.OutOrStdout(), rootOpts.Format)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "seller address (required)")
	cmd.Flags().StringVar(&opts.MinOut, "min-out", "0", "minimum currency received")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func (a *App) buy(opts *TradeOptions, amount string) (Result, error) {
	buyer, err := opts.caller()
	if err != nil {
		return nil, err
	}
	value, err := currencyUnits(amount)
	if err != nil {
		return nil, err
	}
	minOut, err := a.tokenUnits(opts.MinOut)
	if err != nil {
		return nil, err
	}

	path := []common.Address{a.Router.WrappedCurrency(), a.Ledger.Address()}
	before := a.Ledger.BalanceOf(buyer)
	if err := a.Router.SwapExactCurrencyForTokens(buyer, value, minOut, path, buyer, a.deadline()); err != nil {
		return nil, err
	}
	received := new(uint256.Int).Sub(a.Ledger.BalanceOf(buyer), before)

	return Result{}.
		Add("paid", formatCurrency(value)).
		Add("received", a.formatTokens(received)).
		Add("balance", a.formatTokens(a.Ledger.BalanceOf(buyer))), nil
}

func (a *App) sell(opts *TradeOptions, amount string) (Result, error) {
	seller, err := opts.caller()
	if err != nil {
		return nil, err
	}
	tokens, err := a.tokenUnits(amount)
	if err != nil {
		return nil, err
	}
	minOut, err := currencyUnits(opts.MinOut)
	if err != nil {
		return nil, err
	}

	liquifiesBefore := len(a.State.FilterLogs(a.Ledger.Address(), model.TopicLiquify))
	before := a.State.GetBalance(seller)
	err = a.State.Atomic(func() error {
		if err := a.Ledger.Approve(seller, a.Router.Address(), tokens); err != nil {
			return err
		}
		return a.Router.SwapExactTokensForCurrency(seller, tokens, minOut, a.Path(), seller, a.deadline())
	})
	if err != nil {
		return nil, err
	}
	received := new(uint256.Int).Sub(a.State.GetBalance(seller), before)
	liquified := len(a.State.FilterLogs(a.Ledger.Address(), model.TopicLiquify)) > liquifiesBefore

	return Result{}.
		Add("sold", a.formatTokens(tokens)).
		Add("received", formatCurrency(received)).
		Add("liquified", liquified), nil
}

type QuoteOptions struct {
	*RootOptions
	Side   string
	From   string
	Remote bool
	Path   []string
}

func NewQuoteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QuoteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "quote <amount>",
		Short: "Quote a trade including the transaction tax",
		Long: `Quote a trade including the transaction tax.

For --side sell the amount is in tokens, for --side buy it is in currency.
With --remote the quote is taken from the router at rpc_url/router_address
instead; amounts are then raw base units, --path is required, and --side buy
reports the input needed for the given output.

Example:
  taxledger quote --side sell 1000
  taxledger quote --remote --path 0xToken,0xWETH 1000000000000000000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				res Result
				err error
			)
			if opts.Remote {
				res, err = quoteRemote(cmd.Context(), opts, args[0])
			} else {
				res, err = rootOpts.view(cmd.Context(), func(a *App) (Result, error) {
					return a.quote(opts, args[0])
				})
			}
			if err != nil {
				return err
			}
			return res.Write(cmd.OutOrStdout(), rootOpts.Format)
		},
	}

	cmd.Flags().StringVar(&opts.Side, "side", "sell", "buy|sell")
	cmd.Flags().StringVar(&opts.From, "from", "", "trader address used for fee exemptions")
	cmd.Flags().BoolVar(&opts.Remote, "remote", false, "quote against the on-chain router")
	cmd.Flags().StringSliceVar(&opts.Path, "path", nil, "swap path for --remote")

	return cmd
}

func (a *App) quote(opts *QuoteOptions, amount string) (Result, error) {
	var trader common.Address
	if opts.From != "" {
		var err error
		if trader, err = parseAddress(opts.From); err != nil {
			return nil, err
		}
	}
	pair := a.Deployment.Pair

	switch opts.Side {
	case "sell":
		tokens, err := a.tokenUnits(amount)
		if err != nil {
			return nil, err
		}
		class, fee, net, err := a.Ledger.Quote(trader, pair, tokens)
		if err != nil {
			return nil, err
		}
		out, err := a.Router.QuoteOut(net, a.Path())
		if err != nil {
			return nil, err
		}
		return Result{}.
			Add("class", class.String()).
			Add("fee", a.formatTokens(fee)).
			Add("into_pool", a.formatTokens(net)).
			Add("currency_out", formatCurrency(out)), nil

	case "buy":
		value, err := currencyUnits(amount)
		if err != nil {
			return nil, err
		}
		gross, err := a.Router.QuoteOut(value, []common.Address{a.Router.WrappedCurrency(), a.Ledger.Address()})
		if err != nil {
			return nil, err
		}
		class, fee, net, err := a.Ledger.Quote(pair, trader, gross)
		if err != nil {
			return nil, err
		}
		return Result{}.
			Add("class", class.String()).
			Add("from_pool", a.formatTokens(gross)).
			Add("fee", a.formatTokens(fee)).
			Add("tokens_out", a.formatTokens(net)), nil
	}
	return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid side %q: must be buy or sell", opts.Side))
}

func quoteRemote(ctx context.Context, opts *QuoteOptions, amount string) (Result, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.RPCURL == "" || cfg.RouterAddress == "" {
		return nil, NewExitError(ExitCommandError, "--remote needs rpc_url and router_address in the config")
	}
	if len(opts.Path) < 2 {
		return nil, NewExitError(ExitCommandError, "--remote needs a --path of at least two addresses")
	}
	path := make([]common.Address, len(opts.Path))
	for i, p := range opts.Path {
		if path[i], err = parseAddress(strings.TrimSpace(p)); err != nil {
			return nil, err
		}
	}
	value, err := uint256.FromDecimal(amount)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid raw amount", err)
	}

	client, err := chain.DialRouter(cfg.RPCURL, common.HexToAddress(cfg.RouterAddress))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to dial rpc", err)
	}

	var amounts []*uint256.Int
	if opts.Side == "buy" {
		amounts, err = client.GetAmountsIn(ctx, value, path)
	} else {
		amounts, err = client.GetAmountsOut(ctx, value, path)
	}
	if err != nil {
		return nil, WrapExitError(ExitFailure, "router quote failed", err)
	}

	res := Result{}.Add("router", cfg.RouterAddress)
	for i, v := range amounts {
		res = res.Add(fmt.Sprintf("amount_%d", i), v.Dec())
	}
	return res, nil
}
