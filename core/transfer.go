package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"taxed-token-ledger/core/model"
	"taxed-token-ledger/core/tax"
)

// Transfer moves amount from caller to to, applying the transaction tax.
func (l *Ledger) Transfer(caller, to common.Address, amount *uint256.Int) error {
	return l.db.Atomic(func() error {
		return l.transfer(caller, to, amount)
	})
}

// TransferFrom spends caller's allowance over from's tokens.
func (l *Ledger) TransferFrom(caller, from, to common.Address, amount *uint256.Int) error {
	return l.db.Atomic(func() error {
		if err := l.db.SpendAllowance(l.address, from, caller, amount); err != nil {
			return err
		}
		return l.transfer(from, to, amount)
	})
}

// Quote reports how a transfer would be classified and taxed right now,
// without moving anything.
func (l *Ledger) Quote(from, to common.Address, amount *uint256.Int) (class model.Classification, fee, net *uint256.Int, err error) {
	if err := tax.Gate(from, to, l.cfg, l.cfg.tradingEnabled()); err != nil {
		return model.ClassPlain, nil, nil, err
	}
	class = tax.Classify(from, to, l.cfg)
	fee, net, err = l.fee(class, from, to, amount)
	return class, fee, net, err
}

func (l *Ledger) elapsed() uint64 {
	now := l.now()
	if now < l.cfg.launchTimestamp {
		return 0
	}
	return now - l.cfg.launchTimestamp
}

func (l *Ledger) fee(class model.Classification, from, to common.Address, amount *uint256.Int) (fee, net *uint256.Int, err error) {
	if !tax.FeeApplies(class, from, to, l.cfg) {
		return new(uint256.Int), amount.Clone(), nil
	}
	teamBp, liquidityBp := l.cfg.policy().Rates(class, l.cfg.tradingEnabled(), l.elapsed())
	return tax.Split(amount, teamBp+liquidityBp)
}

// transfer runs inside an enclosing Atomic call. The recipient is credited
// last so that pool swaps made by the liquidity engine see pool balances
// without the in-flight amount.
func (l *Ledger) transfer(from, to common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return fmt.Errorf("%w: transfer %s -> %s", model.ErrZeroAddress, from.Hex(), to.Hex())
	}
	if err := tax.Gate(from, to, l.cfg, l.cfg.tradingEnabled()); err != nil {
		return err
	}

	class := tax.Classify(from, to, l.cfg)
	fee, net, err := l.fee(class, from, to, amount)
	if err != nil {
		return err
	}

	if err := l.db.SubTokenBalance(l.address, from, amount); err != nil {
		return err
	}
	if !fee.IsZero() {
		if err := l.db.AddTokenBalance(l.address, l.address, fee); err != nil {
			return err
		}
		l.db.AddLog(model.NewTransferLog(l.address, from, l.address, fee))
	}

	if class == model.ClassSell && l.shouldLiquify() {
		if err := l.liquify(); err != nil {
			return err
		}
	}

	if err := l.db.AddTokenBalance(l.address, to, net); err != nil {
		return err
	}
	l.db.AddLog(model.NewTransferLog(l.address, from, to, net))
	return nil
}
