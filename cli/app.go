package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"taxed-token-ledger/amm"
	"taxed-token-ledger/config"
	"taxed-token-ledger/core"
	"taxed-token-ledger/core/model"
	"taxed-token-ledger/core/state"
	"taxed-token-ledger/store"
)

const (
	metaDeployment = "deployment"
	metaSettings   = "settings"

	// CurrencyDecimals is the precision of the native currency.
	CurrencyDecimals uint8 = 18

	// swaps submitted from the command line stay valid for this long
	deadlineGrace uint64 = 300
)

// App is one loaded ledger deployment. Every command runs as a single
// block: the clock is frozen when the app is opened.
type App struct {
	Config     *config.Config
	Store      *store.Store
	State      *state.StateDB
	Ledger     *core.Ledger
	Router     *amm.Router
	Deployment model.Deployment

	now uint64
}

func (o *RootOptions) clock() uint64 {
	if o.Clock != nil {
		return o.Clock()
	}
	return uint64(time.Now().Unix())
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.LogLevel == "" {
		SetLogLevel(cfg.LogLevel)
	}
	return cfg, nil
}

// deployAddresses derives the router, wrapped currency and token addresses
// from the owner so a fresh init is reproducible.
func deployAddresses(cfg *config.Config) (router, wrapped, token common.Address) {
	owner := cfg.OwnerAddress()
	router = model.DeriveAddress(owner)
	if cfg.RouterAddress != "" {
		router = common.HexToAddress(cfg.RouterAddress)
	}
	wrapped = model.DeriveAddress(router)
	token = model.DeriveAddress(owner, router)
	return router, wrapped, token
}

// openApp loads a previously initialized deployment.
func (o *RootOptions) openApp(ctx context.Context) (*App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	db, meta, err := st.LoadState(ctx)
	if err != nil {
		st.Close()
		if errors.Is(err, store.ErrNotInitialized) {
			return nil, WrapExitError(ExitCommandError, "ledger not initialized, run init first", err)
		}
		return nil, WrapExitError(ExitCommandError, "failed to load state", err)
	}

	app := &App{Config: cfg, Store: st, State: db, now: o.clock()}
	if err := app.restore(meta); err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to restore ledger", err)
	}
	return app, nil
}

func (a *App) restore(meta map[string]string) error {
	var settings model.Settings
	if err := json.Unmarshal([]byte(meta[metaDeployment]), &a.Deployment); err != nil {
		return fmt.Errorf("decode deployment: %w", err)
	}
	if err := json.Unmarshal([]byte(meta[metaSettings]), &settings); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	supply, err := uint256.FromDecimal(a.Deployment.TotalSupply)
	if err != nil {
		return fmt.Errorf("decode total supply: %w", err)
	}

	d := a.Deployment
	a.Router = amm.NewRouter(a.State, d.Router, d.WrappedCurrency, a.clock)
	a.Ledger, err = core.Restore(a.State, core.Options{
		Address:     d.Token,
		Name:        d.Name,
		Symbol:      d.Symbol,
		Decimals:    d.Decimals,
		Owner:       settings.Owner,
		TotalSupply: supply,
		Gateway:     a.Router,
		Clock:       a.clock,
	}, settings)
	if err != nil {
		return err
	}
	pair, err := a.Router.CreatePair(a.Ledger)
	if err != nil {
		return err
	}
	if pair != d.Pair {
		return fmt.Errorf("pair %s does not match deployment %s", pair.Hex(), d.Pair.Hex())
	}
	return nil
}

func (a *App) clock() uint64 {
	return a.now
}

// poolReserves returns the token and currency reserves of the ledger's pool.
func (a *App) poolReserves() (*uint256.Int, *uint256.Int, error) {
	tokenReserve, currencyReserve, err := a.Router.Reserves(a.Ledger.Address())
	if err != nil {
		return nil, nil, fmt.Errorf("pool reserves for %s: %w", a.Ledger.Address().Hex(), err)
	}
	return tokenReserve, currencyReserve, nil
}

func (a *App) deadline() uint64 {
	return a.now + deadlineGrace
}

// Save writes the committed state and current settings.
func (a *App) Save(ctx context.Context) error {
	deployment, err := json.Marshal(a.Deployment)
	if err != nil {
		return err
	}
	settings, err := json.Marshal(a.Ledger.Settings())
	if err != nil {
		return err
	}
	meta := map[string]string{
		metaDeployment: string(deployment),
		metaSettings:   string(settings),
	}
	if err := a.Store.SaveState(ctx, a.State, meta); err != nil {
		return WrapExitError(ExitCommandError, "failed to save state", err)
	}
	logrus.WithField("database", a.Config.Database).Debug("state saved")
	return nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

func (a *App) Path() []common.Address {
	return []common.Address{a.Ledger.Address(), a.Router.WrappedCurrency()}
}

func (a *App) tokenUnits(amount string) (*uint256.Int, error) {
	v, err := config.ParseUnits(amount, a.Ledger.Decimals())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid token amount", err)
	}
	return v, nil
}

func (a *App) formatTokens(v *uint256.Int) string {
	return config.FormatUnits(v, a.Ledger.Decimals())
}

func currencyUnits(amount string) (*uint256.Int, error) {
	v, err := config.ParseUnits(amount, CurrencyDecimals)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid currency amount", err)
	}
	return v, nil
}

func formatCurrency(v *uint256.Int) string {
	return config.FormatUnits(v, CurrencyDecimals)
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid address %q", s))
	}
	return common.HexToAddress(s), nil
}

// mutate runs fn against a loaded app and saves only when fn succeeds.
func (o *RootOptions) mutate(ctx context.Context, fn func(*App) (Result, error)) (Result, error) {
	app, err := o.openApp(ctx)
	if err != nil {
		return nil, err
	}
	defer app.Close()

	res, err := fn(app)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, err
		}
		return nil, WrapExitError(ExitFailure, "operation rejected", err)
	}
	if err := app.Save(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// view runs fn against a loaded app without saving.
func (o *RootOptions) view(ctx context.Context, fn func(*App) (Result, error)) (Result, error) {
	app, err := o.openApp(ctx)
	if err != nil {
		return nil, err
	}
	defer app.Close()

	res, err := fn(app)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, err
		}
		return nil, WrapExitError(ExitFailure, "query failed", err)
	}
	return res, nil
}
