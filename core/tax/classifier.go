package tax

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"taxed-token-ledger/core/model"
)

// Membership answers the three independent address-flag questions the
// classifier needs.
type Membership interface {
	IsFeeCollector(account common.Address) bool
	IsIgnored(account common.Address) bool
	IsWhitelisted(account common.Address) bool
}

// Classify labels a transfer by which side is a fee collector.
// Collector-to-collector transfers are PLAIN.
func Classify(from, to common.Address, m Membership) model.Classification {
	fromCollector := m.IsFeeCollector(from)
	toCollector := m.IsFeeCollector(to)

	switch {
	case fromCollector && !toCollector:
		return model.ClassBuy
	case toCollector && !fromCollector:
		return model.ClassSell
	default:
		return model.ClassPlain
	}
}

// Exempt reports whether either side bypasses the pre-launch gate.
func Exempt(from, to common.Address, m Membership) bool {
	return m.IsIgnored(from) || m.IsIgnored(to) || m.IsWhitelisted(from) || m.IsWhitelisted(to)
}

// Gate rejects transfers touching a fee collector before trading starts,
// unless one side is exempt.
func Gate(from, to common.Address, m Membership, tradingEnabled bool) error {
	if tradingEnabled {
		return nil
	}
	if !m.IsFeeCollector(from) && !m.IsFeeCollector(to) {
		return nil
	}
	if Exempt(from, to, m) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", model.ErrTradingNotStarted, from.Hex(), to.Hex())
}

// FeeApplies assumes Gate already passed.
func FeeApplies(class model.Classification, from, to common.Address, m Membership) bool {
	if class == model.ClassPlain {
		return false
	}
	return !m.IsIgnored(from) && !m.IsIgnored(to)
}
