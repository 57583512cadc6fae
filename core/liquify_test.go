package core

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taxed-token-ledger/core/model"
	"taxed-token-ledger/core/state"
)

var mockPair = common.HexToAddress("0x9a00000000000000000000000000000000000001")

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Address() common.Address {
	return routerAddr
}

func (m *mockGateway) WrappedCurrency() common.Address {
	return wrappedAddr
}

func (m *mockGateway) QuoteOut(amountIn *uint256.Int, path []common.Address) (*uint256.Int, error) {
	args := m.Called(amountIn, path)
	out, _ := args.Get(0).(*uint256.Int)
	return out, args.Error(1)
}

func (m *mockGateway) QuoteIn(amountOut *uint256.Int, path []common.Address) (*uint256.Int, error) {
	args := m.Called(amountOut, path)
	in, _ := args.Get(0).(*uint256.Int)
	return in, args.Error(1)
}

func (m *mockGateway) SwapExactTokensForCurrency(caller common.Address, amountIn, minOut *uint256.Int, path []common.Address, recipient common.Address, deadline uint64) error {
	return m.Called(caller, amountIn, minOut, path, recipient, deadline).Error(0)
}

func (m *mockGateway) SwapExactCurrencyForTokens(caller common.Address, value, minOut *uint256.Int, path []common.Address, recipient common.Address, deadline uint64) error {
	return m.Called(caller, value, minOut, path, recipient, deadline).Error(0)
}

func (m *mockGateway) AddLiquidity(caller, token common.Address, tokenAmount, currencyAmount, minToken, minCurrency *uint256.Int, recipient common.Address, deadline uint64) (*model.LiquidityResult, error) {
	args := m.Called(caller, token, tokenAmount, currencyAmount, minToken, minCurrency, recipient, deadline)
	res, _ := args.Get(0).(*model.LiquidityResult)
	return res, args.Error(1)
}

// newMockLedger returns a launched ledger whose fee balance holds 3700
// tokens, weighted 3:2 team to liquidity, with alice fee-exempt so her
// sells trigger liquify without adding to the fee balance.
func newMockLedger(t *testing.T, gw *mockGateway) (*Ledger, *state.StateDB) {
	t.Helper()
	db := state.New()
	l, err := New(db, Options{
		Address:     tokenAddr,
		Owner:       owner,
		TotalSupply: u(1_000_000),
		Gateway:     gw,
		Clock:       func() uint64 { return launchTime },
	})
	require.NoError(t, err)

	require.NoError(t, l.SetTakeFeeFor(owner, mockPair, true))
	require.NoError(t, l.SetFees(owner, 300, 200, 300, 200))
	require.NoError(t, l.SetLiquidationSettings(owner, u(3_000), 5_000, true))
	require.NoError(t, l.SetTeamWallet(owner, teamWallet))
	require.NoError(t, l.SetLiquidityWallet(owner, liqWallet))
	require.NoError(t, l.SetIgnoreFees(owner, alice, true))
	require.NoError(t, l.StartTrading(owner))

	require.NoError(t, l.Transfer(owner, tokenAddr, u(3_700)))
	require.NoError(t, l.Transfer(owner, alice, u(10_000)))
	return l, db
}

func TestPlanLiquify(t *testing.T) {
	fees := model.FeeConfig{BuyTeamBp: 300, BuyLiquidityBp: 200, SellTeamBp: 300, SellLiquidityBp: 200}

	plan, err := PlanLiquify(u(3_700), fees, 5_000)
	require.NoError(t, err)
	assert.Equal(t, u(2_220), plan.TeamShare)
	assert.Equal(t, u(1_480), plan.LiquidityShare)
	assert.Equal(t, u(740), plan.LiquiditySwap)
	assert.Equal(t, u(740), plan.LiquidityPaired)
	assert.Equal(t, u(1_110), plan.TeamSwap)
	assert.Equal(t, u(1_110), plan.TeamDirect)
}

func TestPlanLiquifyRemainders(t *testing.T) {
	fees := model.FeeConfig{BuyTeamBp: 100, SellLiquidityBp: 200}

	plan, err := PlanLiquify(u(1_001), fees, 3_333)
	require.NoError(t, err)
	assert.Equal(t, u(333), plan.TeamShare)
	assert.Equal(t, u(668), plan.LiquidityShare)
	assert.Equal(t, u(334), plan.LiquiditySwap)
	assert.Equal(t, u(334), plan.LiquidityPaired)
	assert.Equal(t, u(110), plan.TeamSwap)
	assert.Equal(t, u(223), plan.TeamDirect)

	plan, err = PlanLiquify(u(7), model.FeeConfig{}, 5_000)
	require.NoError(t, err)
	assert.True(t, plan.TeamShare.IsZero())
	assert.Equal(t, u(7), plan.LiquidityShare)
	assert.Equal(t, u(3), plan.LiquiditySwap)
	assert.Equal(t, u(4), plan.LiquidityPaired)
}

func TestLiquifyDistributesFeeBalance(t *testing.T) {
	gw := &mockGateway{}
	l, db := newMockLedger(t, gw)
	path := []common.Address{tokenAddr, wrappedAddr}
	zero := new(uint256.Int)

	// the pool pulls the approved tokens and pays out currency
	pull := func(recipient common.Address, paid uint64) func(mock.Arguments) {
		return func(args mock.Arguments) {
			amount := args.Get(1).(*uint256.Int)
			require.NoError(t, l.TransferFrom(routerAddr, tokenAddr, mockPair, amount))
			require.NoError(t, db.AddBalance(recipient, u(paid)))
		}
	}

	gw.On("SwapExactTokensForCurrency", tokenAddr, u(740), zero, path, tokenAddr, launchTime).
		Run(pull(tokenAddr, 55)).Return(nil).Once()
	gw.On("AddLiquidity", tokenAddr, tokenAddr, u(740), u(55), zero, zero, liqWallet, launchTime).
		Run(func(args mock.Arguments) {
			require.NoError(t, l.TransferFrom(routerAddr, tokenAddr, mockPair, u(740)))
			require.NoError(t, db.SubBalance(tokenAddr, u(55)))
		}).
		Return(&model.LiquidityResult{TokenAmount: u(740), CurrencyAmount: u(55), Liquidity: u(201)}, nil).Once()
	gw.On("SwapExactTokensForCurrency", tokenAddr, u(1_110), zero, path, teamWallet, launchTime).
		Run(pull(teamWallet, 80)).Return(nil).Once()

	require.NoError(t, l.Transfer(alice, mockPair, u(1_000)))
	gw.AssertExpectations(t)

	assert.True(t, l.BalanceOf(tokenAddr).IsZero())
	assert.Equal(t, u(1_110), l.BalanceOf(teamWallet))
	assert.Equal(t, u(80), db.GetBalance(teamWallet))
	assert.Equal(t, u(740+740+1_110+1_000), l.BalanceOf(mockPair))
	assert.True(t, db.GetBalance(tokenAddr).IsZero())
	assert.NoError(t, l.CheckConservation())

	events := db.FilterLogs(tokenAddr, model.TopicLiquify)
	require.Len(t, events, 1)
	ev, err := model.ParseLiquifyEvent(events[0])
	require.NoError(t, err)
	assert.Equal(t, u(740), ev.TokensSwapped)
	assert.Equal(t, u(55), ev.CurrencyReceived)
	assert.Equal(t, u(740), ev.TokensIntoLiquidity)
}

func TestLiquifyClearsUnusedRouterAllowance(t *testing.T) {
	gw := &mockGateway{}
	l, db := newMockLedger(t, gw)
	require.NoError(t, l.SetLiquidationSettings(owner, u(3_000), 0, true))
	path := []common.Address{tokenAddr, wrappedAddr}
	zero := new(uint256.Int)

	gw.On("SwapExactTokensForCurrency", tokenAddr, u(740), zero, path, tokenAddr, launchTime).
		Run(func(mock.Arguments) {
			require.NoError(t, l.TransferFrom(routerAddr, tokenAddr, mockPair, u(740)))
			require.NoError(t, db.AddBalance(tokenAddr, u(55)))
		}).Return(nil).Once()
	// the pool ratio only takes 700 of the 740 approved
	gw.On("AddLiquidity", tokenAddr, tokenAddr, u(740), u(55), zero, zero, liqWallet, launchTime).
		Run(func(mock.Arguments) {
			require.NoError(t, l.TransferFrom(routerAddr, tokenAddr, mockPair, u(700)))
			require.NoError(t, db.SubBalance(tokenAddr, u(55)))
		}).
		Return(&model.LiquidityResult{TokenAmount: u(700), CurrencyAmount: u(55), Liquidity: u(190)}, nil).Once()

	require.NoError(t, l.Transfer(alice, mockPair, u(1_000)))
	gw.AssertExpectations(t)

	assert.True(t, l.Allowance(tokenAddr, routerAddr).IsZero())
	assert.Equal(t, u(40), l.BalanceOf(tokenAddr))
	assert.Equal(t, u(2_220), l.BalanceOf(teamWallet))
	assert.NoError(t, l.CheckConservation())

	events := db.FilterLogs(tokenAddr, model.TopicLiquify)
	require.Len(t, events, 1)
	ev, err := model.ParseLiquifyEvent(events[0])
	require.NoError(t, err)
	assert.Equal(t, u(700), ev.TokensIntoLiquidity)
}

func TestLiquifyTriggers(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(l *Ledger)
		from    common.Address
		to      common.Address
	}{
		{"disabled", func(l *Ledger) {
			require.NoError(t, l.SetLiquidationSettings(owner, u(3_000), 5_000, false))
		}, alice, mockPair},
		{"below threshold", func(l *Ledger) {
			require.NoError(t, l.SetLiquidationSettings(owner, u(3_701), 5_000, true))
		}, alice, mockPair},
		{"buy", func(l *Ledger) {
			require.NoError(t, l.SetTakeFeeFor(owner, mockPair, false))
			require.NoError(t, l.Transfer(owner, mockPair, u(1_000)))
			require.NoError(t, l.SetTakeFeeFor(owner, mockPair, true))
		}, mockPair, alice},
		{"plain", func(*Ledger) {}, alice, bob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &mockGateway{}
			gw.On("SwapExactTokensForCurrency", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(nil).Maybe()
			gw.On("AddLiquidity", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(&model.LiquidityResult{TokenAmount: u(0), CurrencyAmount: u(0), Liquidity: u(0)}, nil).Maybe()
			l, db := newMockLedger(t, gw)
			tt.prepare(l)
			gw.Calls = nil
			liquified := len(db.FilterLogs(tokenAddr, model.TopicLiquify))

			require.NoError(t, l.Transfer(tt.from, tt.to, u(100)))
			gw.AssertNotCalled(t, "SwapExactTokensForCurrency", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			assert.Len(t, db.FilterLogs(tokenAddr, model.TopicLiquify), liquified)
		})
	}
}

func TestLiquifyFailureRevertsTransfer(t *testing.T) {
	gw := &mockGateway{}
	l, db := newMockLedger(t, gw)
	logs := len(db.Logs())

	gw.On("SwapExactTokensForCurrency", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("pool paused")).Once()

	err := l.Transfer(alice, mockPair, u(1_000))
	var poolErr *model.PoolOperationError
	require.ErrorAs(t, err, &poolErr)
	assert.Equal(t, "swapExactTokensForCurrency", poolErr.Op)

	assert.Equal(t, u(10_000), l.BalanceOf(alice))
	assert.Equal(t, u(3_700), l.BalanceOf(tokenAddr))
	assert.True(t, l.Allowance(tokenAddr, routerAddr).IsZero())
	assert.Len(t, db.Logs(), logs)
	assert.False(t, l.guard.active)

	// the pool recovers; no currency comes back so the pairing step is skipped
	gw.On("SwapExactTokensForCurrency", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil)

	require.NoError(t, l.Transfer(alice, mockPair, u(1_000)))
	gw.AssertNotCalled(t, "AddLiquidity", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, u(1_110), l.BalanceOf(teamWallet))
	assert.Len(t, db.FilterLogs(tokenAddr, model.TopicLiquify), 1)
	assert.False(t, l.guard.active)
}

func TestLiquifyWithoutGateway(t *testing.T) {
	db := state.New()
	l, err := New(db, Options{Address: tokenAddr, Owner: owner, TotalSupply: u(1_000_000), Clock: func() uint64 { return launchTime }})
	require.NoError(t, err)
	require.NoError(t, l.SetTakeFeeFor(owner, mockPair, true))
	require.NoError(t, l.SetLiquidationSettings(owner, u(0), 5_000, true))
	require.NoError(t, l.StartTrading(owner))
	require.NoError(t, l.Transfer(owner, alice, u(100)))

	assert.ErrorIs(t, l.Transfer(alice, mockPair, u(100)), model.ErrNoGateway)
	assert.Equal(t, u(100), l.BalanceOf(alice))
}

// With the ledger itself no longer fee-exempt, every pool pull during
// liquify is a taxed sell that routes back into transfer. The guard keeps
// those nested sells from starting a second conversion.
func TestLiquifyIsNotReentrant(t *testing.T) {
	e := newEnv(t)
	l := e.ledger
	require.NoError(t, l.SetLiquidationSettings(owner, u(300), 5_000, true))
	require.NoError(t, l.SetTeamWallet(owner, teamWallet))
	require.NoError(t, l.SetLiquidityWallet(owner, liqWallet))
	require.NoError(t, l.SetIgnoreFees(owner, tokenAddr, false))
	e.fund(alice, 10_000)
	e.fund(tokenAddr, 5_000)
	e.launch()
	e.now = launchTime + 24*60*60 + 1

	require.NoError(t, l.Transfer(alice, e.pair, u(1_000)))

	assert.Len(t, e.db.FilterLogs(tokenAddr, model.TopicLiquify), 1)
	assert.False(t, l.guard.active)
	assert.NoError(t, l.CheckConservation())
	assert.False(t, e.router.LiquidityOf(tokenAddr, liqWallet).IsZero())
	assert.False(t, e.db.GetBalance(teamWallet).IsZero())
	assert.True(t, l.BalanceOf(tokenAddr).Lt(u(5_000)))

	rT, _, err := e.router.Reserves(tokenAddr)
	require.NoError(t, err)
	assert.True(t, rT.Lt(l.BalanceOf(e.pair)), "the seller's net amount lands after the pool syncs")
}
