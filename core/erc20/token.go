// Package erc20 is a plain, untaxed fungible token over the shared state.
package erc20

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"taxed-token-ledger/core/model"
	"taxed-token-ledger/core/state"
)

type Token struct {
	address common.Address
	symbol  string
	db      *state.StateDB
}

// New deploys a token and mints supply to holder.
func New(db *state.StateDB, address common.Address, symbol string, holder common.Address, supply *uint256.Int) (*Token, error) {
	t := &Token{address: address, symbol: symbol, db: db}
	err := db.Atomic(func() error {
		if err := db.AddTokenBalance(address, holder, supply); err != nil {
			return err
		}
		db.AddLog(model.NewTransferLog(address, common.Address{}, holder, supply))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Attach wraps a token whose balances already live in db.
func Attach(db *state.StateDB, address common.Address, symbol string) *Token {
	return &Token{address: address, symbol: symbol, db: db}
}

func (t *Token) Address() common.Address {
	return t.address
}

func (t *Token) Symbol() string {
	return t.symbol
}

func (t *Token) BalanceOf(account common.Address) *uint256.Int {
	return t.db.TokenBalance(t.address, account)
}

func (t *Token) Allowance(owner, spender common.Address) *uint256.Int {
	return t.db.Allowance(t.address, owner, spender)
}

func (t *Token) Approve(caller, spender common.Address, amount *uint256.Int) error {
	return t.db.Atomic(func() error {
		t.db.SetAllowance(t.address, caller, spender, amount)
		t.db.AddLog(model.NewApprovalLog(t.address, caller, spender, amount))
		return nil
	})
}

func (t *Token) Transfer(caller, to common.Address, amount *uint256.Int) error {
	return t.db.Atomic(func() error {
		return t.move(caller, to, amount)
	})
}

func (t *Token) TransferFrom(caller, from, to common.Address, amount *uint256.Int) error {
	return t.db.Atomic(func() error {
		if err := t.db.SpendAllowance(t.address, from, caller, amount); err != nil {
			return err
		}
		return t.move(from, to, amount)
	})
}

func (t *Token) move(from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("%w: transfer to zero address", model.ErrZeroAddress)
	}
	if err := t.db.SubTokenBalance(t.address, from, amount); err != nil {
		return err
	}
	if err := t.db.AddTokenBalance(t.address, to, amount); err != nil {
		return err
	}
	t.db.AddLog(model.NewTransferLog(t.address, from, to, amount))
	return nil
}
