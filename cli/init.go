package cli

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taxed-token-ledger/amm"
	"taxed-token-ledger/config"
	"taxed-token-ledger/core"
	"taxed-token-ledger/core/model"
	"taxed-token-ledger/core/state"
	"taxed-token-ledger/store"
)

type InitOptions struct {
	*RootOptions
	Force bool
}

func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Deploy the ledger and seed its pool",
		Long: `Deploy a new ledger from the config file.

The whole supply is minted to the owner, a token/currency pair is created on
the in-process router and marked as a fee collector, and the pool is seeded
with pool.seed_tokens and pool.seed_currency from the owner.

Example:
  taxledger init --config ./taxledger.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runInit(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return res.Write(cmd.OutOrStdout(), opts.Format)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing deployment")

	return cmd
}

func runInit(ctx context.Context, opts *InitOptions) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	initialized, err := st.Initialized(ctx)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to read database", err)
	}
	if initialized && !opts.Force {
		st.Close()
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s already holds a deployment, use --force to replace it", cfg.Database))
	}

	app := &App{Config: cfg, Store: st, State: state.New(), now: opts.clock()}
	defer app.Close()

	if err := app.deploy(); err != nil {
		return nil, WrapExitError(ExitFailure, "deployment failed", err)
	}
	if err := app.Save(ctx); err != nil {
		return nil, err
	}

	tokenReserve, currencyReserve, err := app.poolReserves()
	if err != nil {
		return nil, WrapExitError(ExitFailure, "deployment failed", err)
	}
	return Result{}.
		Add("token", app.Ledger.Address().Hex()).
		Add("router", app.Router.Address().Hex()).
		Add("pair", app.Deployment.Pair.Hex()).
		Add("owner", app.Ledger.Owner().Hex()).
		Add("total_supply", app.formatTokens(app.Ledger.TotalSupply())).
		Add("pool_tokens", app.formatTokens(tokenReserve)).
		Add("pool_currency", formatCurrency(currencyReserve)), nil
}

func (a *App) deploy() error {
	cfg := a.Config
	supply, err := cfg.Supply()
	if err != nil {
		return err
	}
	owner := cfg.OwnerAddress()
	routerAddr, wrapped, tokenAddr := deployAddresses(cfg)

	a.Router = amm.NewRouter(a.State, routerAddr, wrapped, a.clock)
	a.Ledger, err = core.New(a.State, core.Options{
		Address:     tokenAddr,
		Name:        cfg.Name,
		Symbol:      cfg.Symbol,
		Decimals:    cfg.Decimals,
		Owner:       owner,
		TotalSupply: supply,
		Gateway:     a.Router,
		Clock:       a.clock,
	})
	if err != nil {
		return err
	}
	pair, err := a.Router.CreatePair(a.Ledger)
	if err != nil {
		return err
	}
	a.Deployment = model.Deployment{
		Token:           tokenAddr,
		Name:            cfg.Name,
		Symbol:          cfg.Symbol,
		Decimals:        cfg.Decimals,
		TotalSupply:     supply.Dec(),
		Router:          routerAddr,
		WrappedCurrency: wrapped,
		Pair:            pair,
	}

	if err := configure(a.Ledger, cfg, owner, pair); err != nil {
		return err
	}
	return a.seedPool(owner)
}

func configure(l *core.Ledger, cfg *config.Config, owner, pair common.Address) error {
	if err := l.SetTakeFeeFor(owner, pair, true); err != nil {
		return err
	}
	f := cfg.Fees
	if err := l.SetFees(owner, f.BuyTeam, f.BuyLiquidity, f.SellTeam, f.SellLiquidity); err != nil {
		return err
	}
	t := cfg.SellTiers
	if err := l.SetSellTiers(owner, t.Launch, t.Early, t.Late); err != nil {
		return err
	}

	threshold := l.LiquidationSettings().ThresholdTokens
	if cfg.Liquidation.Threshold != "" {
		var err error
		if threshold, err = cfg.Units(cfg.Liquidation.Threshold); err != nil {
			return err
		}
	}
	if err := l.SetLiquidationSettings(owner, threshold, cfg.Liquidation.TeamBp, cfg.Liquidation.Enabled); err != nil {
		return err
	}

	if w := cfg.Liquidation.TeamWallet; w != "" {
		if err := l.SetTeamWallet(owner, common.HexToAddress(w)); err != nil {
			return err
		}
	}
	if w := cfg.Liquidation.LiquidityWallet; w != "" {
		if err := l.SetLiquidityWallet(owner, common.HexToAddress(w)); err != nil {
			return err
		}
	}
	return nil
}

// seedPool credits the owner with the seed currency and deposits it with
// the seed tokens as the pool's first liquidity.
func (a *App) seedPool(owner common.Address) error {
	tokens, err := a.Config.Units(a.Config.Pool.SeedTokens)
	if err != nil {
		return err
	}
	currency, err := config.ParseUnits(a.Config.Pool.SeedCurrency, CurrencyDecimals)
	if err != nil {
		return err
	}
	if tokens.IsZero() || currency.IsZero() {
		logrus.Warn("pool seed amounts are zero, pool left empty")
		return nil
	}

	return a.State.Atomic(func() error {
		if err := a.State.AddBalance(owner, currency); err != nil {
			return err
		}
		if err := a.Ledger.Approve(owner, a.Router.Address(), tokens); err != nil {
			return err
		}
		zero := new(uint256.Int)
		res, err := a.Router.AddLiquidity(owner, a.Ledger.Address(), tokens, currency, zero, zero, owner, a.deadline())
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"tokens":    res.TokenAmount.Dec(),
			"currency":  res.CurrencyAmount.Dec(),
			"liquidity": res.Liquidity.Dec(),
		}).Info("pool seeded")
		return nil
	})
}
