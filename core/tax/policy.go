package tax

import (
	"github.com/holiman/uint256"

	"taxed-token-ledger/core/model"
)

// Sell decay band upper edges, in seconds since launch. Each band is
// exclusive on its lower edge and inclusive on its upper edge.
const (
	LaunchBandEnd uint64 = 5 * 60
	EarlyBandEnd  uint64 = 15 * 60
	LateBandEnd   uint64 = 30 * 60
	DecayHorizon  uint64 = 24 * 60 * 60
)

type Tier int

const (
	TierLaunch Tier = 0
	TierEarly  Tier = 1
	TierLate   Tier = 2
	TierBase   Tier = 3
)

func SellTier(elapsed uint64) Tier {
	switch {
	case elapsed > DecayHorizon:
		return TierBase
	case elapsed <= LaunchBandEnd:
		return TierLaunch
	case elapsed <= EarlyBandEnd:
		return TierEarly
	case elapsed <= LateBandEnd:
		return TierLate
	default:
		return TierBase
	}
}

type Policy struct {
	Fees  model.FeeConfig
	Tiers model.SellTiers
}

// Rates returns the team and liquidity basis points for a fee-applicable
// transfer. Before launch (launched == false) sells pay the base rate.
func (p Policy) Rates(class model.Classification, launched bool, elapsed uint64) (teamBp, liquidityBp uint64) {
	switch class {
	case model.ClassBuy:
		return p.Fees.BuyTeamBp, p.Fees.BuyLiquidityBp
	case model.ClassSell:
		if !launched {
			return p.Fees.SellTeamBp, p.Fees.SellLiquidityBp
		}
		switch SellTier(elapsed) {
		case TierLaunch:
			return p.splitSell(p.Tiers.LaunchBp)
		case TierEarly:
			return p.splitSell(p.Tiers.EarlyBp)
		case TierLate:
			return p.splitSell(p.Tiers.LateBp)
		}
		return p.Fees.SellTeamBp, p.Fees.SellLiquidityBp
	}
	return 0, 0
}

// splitSell divides a tier total using the configured sell team:liquidity
// ratio. A tier never charges less than the base sell rate. Only the total
// matters for the fee itself.
func (p Policy) splitSell(total uint64) (uint64, uint64) {
	sellTotal := p.Fees.SellTotal()
	if total <= sellTotal {
		return p.Fees.SellTeamBp, p.Fees.SellLiquidityBp
	}
	if sellTotal == 0 {
		return 0, total
	}
	team := total * p.Fees.SellTeamBp / sellTotal
	return team, total - team
}

// Split returns fee = floor(gross*totalBp/10000) and net = gross - fee.
func Split(gross *uint256.Int, totalBp uint64) (fee, net *uint256.Int, err error) {
	if totalBp > model.BpDenominator {
		return nil, nil, model.ErrOverflow
	}
	fee, err = model.ApplyBp(gross, totalBp)
	if err != nil {
		return nil, nil, err
	}
	net, err = model.SafeSub(gross, fee)
	if err != nil {
		return nil, nil, err
	}
	return fee, net, nil
}
