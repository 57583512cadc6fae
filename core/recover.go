package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"taxed-token-ledger/core/model"
)

// RegisterToken makes a foreign token recoverable with RecoverERC20.
func (l *Ledger) RegisterToken(token model.ERC20) {
	l.tokens[token.Address()] = token
}

// RecoverERC20 sends amount of token held by the ledger account to the
// owner. token may be the ledger itself.
func (l *Ledger) RecoverERC20(caller, token common.Address, amount *uint256.Int) error {
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	owner := l.cfg.owner

	err := l.db.Atomic(func() error {
		if token == l.address {
			return l.transfer(l.address, owner, amount)
		}
		t, ok := l.tokens[token]
		if !ok {
			return fmt.Errorf("%w: %s", model.ErrUnknownToken, token.Hex())
		}
		return t.Transfer(l.address, owner, amount)
	})
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"token": token.Hex(), "amount": amount.Dec()}).Info("tokens recovered")
	return nil
}

// RecoverETH sends native currency held by the ledger account to the owner.
func (l *Ledger) RecoverETH(caller common.Address, amount *uint256.Int) error {
	if err := l.onlyOwner(caller); err != nil {
		return err
	}
	err := l.db.Atomic(func() error {
		return l.db.TransferNative(l.address, l.cfg.owner, amount)
	})
	if err != nil {
		return err
	}
	logrus.WithField("amount", amount.Dec()).Info("currency recovered")
	return nil
}
