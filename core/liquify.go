package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"taxed-token-ledger/core/model"
)

// conversionGuard keeps liquify from being re-entered while its own pool
// calls route transfers back through the ledger.
type conversionGuard struct {
	active bool
}

// acquire returns false when the guard is already held. The release func
// must run on every exit path.
func (g *conversionGuard) acquire() (release func(), ok bool) {
	if g.active {
		return func() {}, false
	}
	g.active = true
	return func() { g.active = false }, true
}

// LiquifyPlan is the split of the accumulated fee balance for one
// liquify run.
type LiquifyPlan struct {
	PoolTokens      *uint256.Int
	TeamShare       *uint256.Int
	LiquidityShare  *uint256.Int
	LiquiditySwap   *uint256.Int // half of LiquidityShare sold for currency
	LiquidityPaired *uint256.Int // the other half, paired with the proceeds
	TeamSwap        *uint256.Int // sold for currency sent to the team wallet
	TeamDirect      *uint256.Int // sent to the team wallet as tokens
}

// PlanLiquify splits poolTokens by the team:liquidity weights of fees.
// Floor remainders stay on the liquidity side. With both weights zero the
// whole balance goes to liquidity.
func PlanLiquify(poolTokens *uint256.Int, fees model.FeeConfig, teamLiquidationBp uint64) (*LiquifyPlan, error) {
	teamWeight := fees.TeamWeight()
	totalWeight := teamWeight + fees.LiquidityWeight()

	teamShare := new(uint256.Int)
	if totalWeight > 0 {
		var err error
		teamShare, err = model.MulDiv(poolTokens, uint256.NewInt(teamWeight), uint256.NewInt(totalWeight))
		if err != nil {
			return nil, err
		}
	}
	liquidityShare, err := model.SafeSub(poolTokens, teamShare)
	if err != nil {
		return nil, err
	}

	half := new(uint256.Int).Rsh(liquidityShare, 1)
	paired := new(uint256.Int).Sub(liquidityShare, half)

	teamSwap, err := model.ApplyBp(teamShare, teamLiquidationBp)
	if err != nil {
		return nil, err
	}
	teamDirect, err := model.SafeSub(teamShare, teamSwap)
	if err != nil {
		return nil, err
	}

	return &LiquifyPlan{
		PoolTokens:      poolTokens.Clone(),
		TeamShare:       teamShare,
		LiquidityShare:  liquidityShare,
		LiquiditySwap:   half,
		LiquidityPaired: paired,
		TeamSwap:        teamSwap,
		TeamDirect:      teamDirect,
	}, nil
}

func (l *Ledger) shouldLiquify() bool {
	s := l.cfg.liquidation
	if !s.Enabled || l.guard.active {
		return false
	}
	return !l.BalanceOf(l.address).Lt(s.ThresholdTokens)
}

// liquify converts the whole fee balance: half of the liquidity share is
// sold and paired with the other half as pool liquidity owned by the
// liquidity wallet, and the team share is partly sold for currency and
// partly sent as tokens to the team wallet. It runs inside the triggering
// transfer's Atomic call, so any failure unwinds both.
func (l *Ledger) liquify() error {
	release, ok := l.guard.acquire()
	if !ok {
		return nil
	}
	defer release()

	if l.gateway == nil {
		return model.ErrNoGateway
	}

	plan, err := PlanLiquify(l.BalanceOf(l.address), l.cfg.fees, l.cfg.liquidation.TeamLiquidationBp)
	if err != nil {
		return err
	}

	deadline := l.now()
	path := []common.Address{l.address, l.gateway.WrappedCurrency()}
	zero := new(uint256.Int)

	ev := &model.LiquifyEvent{
		TokensSwapped:       new(uint256.Int),
		CurrencyReceived:    new(uint256.Int),
		TokensIntoLiquidity: new(uint256.Int),
	}

	if !plan.LiquiditySwap.IsZero() {
		before := l.db.GetBalance(l.address)
		if err := l.sellForCurrency(plan.LiquiditySwap, path, l.address, deadline); err != nil {
			return l.liquifyFailed(plan, err)
		}
		received, err := model.SafeSub(l.db.GetBalance(l.address), before)
		if err != nil {
			return err
		}
		ev.TokensSwapped = plan.LiquiditySwap.Clone()
		ev.CurrencyReceived = received

		if !received.IsZero() {
			if err := l.approve(l.address, l.gateway.Address(), plan.LiquidityPaired); err != nil {
				return err
			}
			res, err := l.gateway.AddLiquidity(l.address, l.address, plan.LiquidityPaired, received, zero, zero, l.cfg.wallets.Liquidity, deadline)
			if err != nil {
				return l.liquifyFailed(plan, &model.PoolOperationError{Op: "addLiquidity", Err: err})
			}
			ev.TokensIntoLiquidity = res.TokenAmount.Clone()
			// the router may pull less than approved at the pool ratio
			if err := l.approve(l.address, l.gateway.Address(), zero); err != nil {
				return err
			}
		}
	}

	if !plan.TeamSwap.IsZero() {
		if err := l.sellForCurrency(plan.TeamSwap, path, l.cfg.wallets.Team, deadline); err != nil {
			return l.liquifyFailed(plan, err)
		}
	}
	if !plan.TeamDirect.IsZero() {
		if err := l.transfer(l.address, l.cfg.wallets.Team, plan.TeamDirect); err != nil {
			return err
		}
	}

	l.db.AddLog(model.NewLiquifyLog(l.address, ev))
	logrus.WithFields(logrus.Fields{
		"pool_tokens":     plan.PoolTokens.Dec(),
		"team_share":      plan.TeamShare.Dec(),
		"liquidity_share": plan.LiquidityShare.Dec(),
		"currency":        ev.CurrencyReceived.Dec(),
		"into_liquidity":  ev.TokensIntoLiquidity.Dec(),
	}).Info("fees liquified")
	return nil
}

func (l *Ledger) sellForCurrency(amount *uint256.Int, path []common.Address, recipient common.Address, deadline uint64) error {
	if err := l.approve(l.address, l.gateway.Address(), amount); err != nil {
		return err
	}
	err := l.gateway.SwapExactTokensForCurrency(l.address, amount, new(uint256.Int), path, recipient, deadline)
	if err != nil {
		return &model.PoolOperationError{Op: "swapExactTokensForCurrency", Err: err}
	}
	return nil
}

func (l *Ledger) liquifyFailed(plan *LiquifyPlan, err error) error {
	logrus.WithFields(logrus.Fields{
		"pool_tokens": plan.PoolTokens.Dec(),
		"error":       err,
	}).Warn("liquify aborted")
	return err
}
