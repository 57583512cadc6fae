package core

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxed-token-ledger/amm"
	"taxed-token-ledger/core/model"
	"taxed-token-ledger/core/state"
)

const launchTime uint64 = 1_700_000_000

var (
	tokenAddr   = common.HexToAddress("0x7000000000000000000000000000000000000001")
	routerAddr  = common.HexToAddress("0x7a00000000000000000000000000000000000001")
	wrappedAddr = common.HexToAddress("0x7e00000000000000000000000000000000000001")
	owner       = common.HexToAddress("0x0100000000000000000000000000000000000001")
	alice       = common.HexToAddress("0xa100000000000000000000000000000000000001")
	bob         = common.HexToAddress("0xb000000000000000000000000000000000000001")
	carol       = common.HexToAddress("0xc000000000000000000000000000000000000001")
	teamWallet  = common.HexToAddress("0x7ea0000000000000000000000000000000000001")
	liqWallet   = common.HexToAddress("0x11c0000000000000000000000000000000000001")
)

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

type env struct {
	t      *testing.T
	db     *state.StateDB
	ledger *Ledger
	router *amm.Router
	pair   common.Address
	now    uint64
}

func (e *env) clock() uint64 {
	return e.now
}

// newEnv deploys a 1,000,000 unit ledger owned by owner with a router pool
// seeded at 500,000 tokens / 100,000 currency.
func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{t: t, db: state.New(), now: launchTime}
	e.router = amm.NewRouter(e.db, routerAddr, wrappedAddr, e.clock)

	var err error
	e.ledger, err = New(e.db, Options{
		Address:     tokenAddr,
		Name:        "Taxed",
		Symbol:      "TAX",
		Decimals:    18,
		Owner:       owner,
		TotalSupply: u(1_000_000),
		Gateway:     e.router,
		Clock:       e.clock,
	})
	require.NoError(t, err)

	e.pair, err = e.router.CreatePair(e.ledger)
	require.NoError(t, err)
	require.NoError(t, e.ledger.SetTakeFeeFor(owner, e.pair, true))

	require.NoError(t, e.db.AddBalance(owner, u(100_000)))
	require.NoError(t, e.ledger.Approve(owner, routerAddr, state.MaxAllowance()))
	_, err = e.router.AddLiquidity(owner, tokenAddr, u(500_000), u(100_000), u(0), u(0), owner, e.now)
	require.NoError(t, err)
	return e
}

func (e *env) fund(account common.Address, amount uint64) {
	e.t.Helper()
	require.NoError(e.t, e.ledger.Transfer(owner, account, u(amount)))
}

func (e *env) launch() {
	e.t.Helper()
	require.NoError(e.t, e.ledger.StartTrading(owner))
}

func TestNewMintsSupplyToOwner(t *testing.T) {
	db := state.New()
	l, err := New(db, Options{Address: tokenAddr, Owner: owner, TotalSupply: u(1_000)})
	require.NoError(t, err)

	assert.Equal(t, u(1_000), l.BalanceOf(owner))
	assert.Equal(t, u(1_000), l.TotalSupply())
	assert.NoError(t, l.CheckConservation())

	mints := db.FilterLogs(tokenAddr, model.TopicTransfer)
	require.Len(t, mints, 1)
	ev, err := model.ParseTransferEvent(mints[0])
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, ev.From)
	assert.Equal(t, owner, ev.To)
}

func TestNewValidation(t *testing.T) {
	db := state.New()

	_, err := New(db, Options{Address: tokenAddr, TotalSupply: u(1)})
	assert.ErrorIs(t, err, model.ErrZeroAddress)

	_, err = New(db, Options{Address: tokenAddr, Owner: owner})
	assert.ErrorIs(t, err, ErrMissingSupply)

	_, err = New(db, Options{Owner: owner, TotalSupply: u(1)})
	assert.ErrorIs(t, err, model.ErrZeroAddress)

	huge := new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 255), uint256.NewInt(1))
	l, err := New(state.New(), Options{Address: tokenAddr, Owner: owner, TotalSupply: huge})
	require.NoError(t, err)
	want := new(uint256.Int).Div(huge, u(10_000))
	want.Mul(want, u(5))
	require.NotNil(t, l.LiquidationSettings().ThresholdTokens)
	assert.Equal(t, want, l.LiquidationSettings().ThresholdTokens)
	assert.Equal(t, want.Dec(), l.Settings().LiquidationThreshold)
}

func TestDefaultConfiguration(t *testing.T) {
	e := newEnv(t)
	l := e.ledger

	assert.Equal(t, DefaultFees, l.Fees())
	assert.Equal(t, DefaultSellTiers, l.SellTiers())
	assert.Equal(t, owner, l.TeamWallet())
	assert.Equal(t, owner, l.LiquidityWallet())
	assert.True(t, l.IgnoreFees(owner))
	assert.True(t, l.IgnoreFees(tokenAddr))
	assert.True(t, l.TakeFeesFor(e.pair))
	assert.False(t, l.TradingEnabled())

	liq := l.LiquidationSettings()
	assert.False(t, liq.Enabled)
	assert.Equal(t, u(500), liq.ThresholdTokens)
	assert.Equal(t, uint64(5000), liq.TeamLiquidationBp)
}

func TestAllowanceHelpers(t *testing.T) {
	e := newEnv(t)
	l := e.ledger

	require.NoError(t, l.Approve(alice, bob, u(10)))
	require.NoError(t, l.IncreaseAllowance(alice, bob, u(5)))
	assert.Equal(t, u(15), l.Allowance(alice, bob))

	require.NoError(t, l.DecreaseAllowance(alice, bob, u(15)))
	assert.True(t, l.Allowance(alice, bob).IsZero())

	var allowErr *model.InsufficientAllowanceError
	assert.ErrorAs(t, l.DecreaseAllowance(alice, bob, u(1)), &allowErr)
	assert.ErrorIs(t, l.Approve(alice, common.Address{}, u(1)), model.ErrZeroAddress)
}

func TestOwnerOnlySetters(t *testing.T) {
	e := newEnv(t)
	l := e.ledger

	calls := map[string]func(caller common.Address) error{
		"SetFees":                func(c common.Address) error { return l.SetFees(c, 100, 100, 100, 100) },
		"SetSellTiers":           func(c common.Address) error { return l.SetSellTiers(c, 3000, 2000, 1000) },
		"SetTeamWallet":          func(c common.Address) error { return l.SetTeamWallet(c, teamWallet) },
		"SetLiquidityWallet":     func(c common.Address) error { return l.SetLiquidityWallet(c, liqWallet) },
		"SetLiquidationSettings": func(c common.Address) error { return l.SetLiquidationSettings(c, u(100), 2500, true) },
		"SetIgnoreFees":          func(c common.Address) error { return l.SetIgnoreFees(c, alice, true) },
		"SetTakeFeeFor":          func(c common.Address) error { return l.SetTakeFeeFor(c, alice, true) },
		"WhiteListTrade":         func(c common.Address) error { return l.WhiteListTrade(c, alice, true) },
		"StartTrading":           func(c common.Address) error { return l.StartTrading(c) },
		"RecoverETH":             func(c common.Address) error { return l.RecoverETH(c, u(0)) },
		"TransferOwnership":      func(c common.Address) error { return l.TransferOwnership(c, owner) },
	}

	before := l.Settings()
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, call(alice), model.ErrUnauthorized)
		})
	}
	assert.Equal(t, before, l.Settings())

	for name, call := range calls {
		t.Run(name+"/owner", func(t *testing.T) {
			assert.NoError(t, call(owner))
		})
	}
	assert.Equal(t, teamWallet, l.TeamWallet())
	assert.Equal(t, liqWallet, l.LiquidityWallet())
	assert.True(t, l.TradingWhiteList(alice))
}

func TestSetFeesBounds(t *testing.T) {
	e := newEnv(t)
	l := e.ledger

	require.NoError(t, l.SetFees(owner, 1500, 1500, 1000, 2000))
	assert.Equal(t, model.FeeConfig{BuyTeamBp: 1500, BuyLiquidityBp: 1500, SellTeamBp: 1000, SellLiquidityBp: 2000}, l.Fees())

	err := l.SetFees(owner, 1337, 2000, 600, 2401)
	assert.ErrorIs(t, err, model.ErrConfigValidation)
	assert.Equal(t, uint64(1500), l.Fees().BuyTeamBp)

	assert.ErrorIs(t, l.SetFees(owner, 0, 0, 3001, 0), model.ErrConfigValidation)
	assert.ErrorIs(t, l.SetSellTiers(owner, 3001, 0, 0), model.ErrConfigValidation)
	assert.ErrorIs(t, l.SetSellTiers(owner, 1000, 2000, 500), model.ErrConfigValidation)
}

func TestSetLiquidationBounds(t *testing.T) {
	e := newEnv(t)
	l := e.ledger

	require.NoError(t, l.SetLiquidationSettings(owner, u(1_000_000), 10_000, true))
	assert.ErrorIs(t, l.SetLiquidationSettings(owner, u(1_000_001), 0, true), model.ErrConfigValidation)
	assert.ErrorIs(t, l.SetLiquidationSettings(owner, u(1), 10_001, true), model.ErrConfigValidation)

	assert.ErrorIs(t, l.SetTeamWallet(owner, common.Address{}), model.ErrZeroAddress)
	assert.ErrorIs(t, l.SetLiquidityWallet(owner, common.Address{}), model.ErrZeroAddress)
}

func TestStartTradingOnce(t *testing.T) {
	e := newEnv(t)
	l := e.ledger

	require.NoError(t, l.StartTrading(owner))
	assert.True(t, l.TradingEnabled())
	assert.Equal(t, launchTime, l.LaunchTimestamp())

	e.now += 60
	assert.ErrorIs(t, l.StartTrading(owner), model.ErrTradingAlreadyStarted)
	assert.Equal(t, launchTime, l.LaunchTimestamp())
}

func TestOwnershipTransfer(t *testing.T) {
	e := newEnv(t)
	l := e.ledger

	assert.ErrorIs(t, l.TransferOwnership(owner, common.Address{}), model.ErrZeroAddress)
	require.NoError(t, l.TransferOwnership(owner, alice))
	assert.Equal(t, alice, l.Owner())
	assert.ErrorIs(t, l.SetFees(owner, 0, 0, 0, 0), model.ErrUnauthorized)

	require.NoError(t, l.RenounceOwnership(alice))
	assert.Equal(t, common.Address{}, l.Owner())
	assert.ErrorIs(t, l.SetFees(alice, 0, 0, 0, 0), model.ErrUnauthorized)
	assert.ErrorIs(t, l.SetFees(common.Address{}, 0, 0, 0, 0), model.ErrUnauthorized)
}

func TestRestoreFromSettings(t *testing.T) {
	e := newEnv(t)
	l := e.ledger
	require.NoError(t, l.SetFees(owner, 300, 200, 300, 200))
	require.NoError(t, l.SetLiquidationSettings(owner, u(300), 4000, true))
	require.NoError(t, l.WhiteListTrade(owner, alice, true))
	e.launch()
	require.NoError(t, l.RenounceOwnership(owner))

	settings := l.Settings()
	restored, err := Restore(state.FromDump(e.db.Dump()), Options{
		Address:     tokenAddr,
		TotalSupply: u(1_000_000),
		Clock:       e.clock,
	}, settings)
	require.NoError(t, err)

	assert.Equal(t, settings, restored.Settings())
	assert.Equal(t, l.BalanceOf(owner), restored.BalanceOf(owner))
	assert.True(t, restored.TradingEnabled())
	assert.NoError(t, restored.CheckConservation())

	settings.Fees.SellLiquidityBp = 2801
	_, err = Restore(state.New(), Options{Address: tokenAddr, TotalSupply: u(1_000_000)}, settings)
	assert.ErrorIs(t, err, model.ErrConfigValidation)
}
