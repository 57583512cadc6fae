package model

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrUnauthorized          = errors.New("caller is not the owner")
	ErrConfigValidation      = errors.New("invalid configuration")
	ErrTradingNotStarted     = errors.New("trading not started")
	ErrTradingAlreadyStarted = errors.New("trading already started")
	ErrOverflow              = errors.New("arithmetic overflow")
	ErrDivisionByZero        = errors.New("division by zero")
	ErrZeroAddress           = errors.New("zero address")
	ErrUnknownToken          = errors.New("unknown token")
	ErrNoGateway             = errors.New("pool gateway not configured")
)

// InsufficientBalanceError reports a debit above the available balance.
// Asset is the zero address for native currency.
type InsufficientBalanceError struct {
	Asset   common.Address
	Account common.Address
	Balance *uint256.Int
	Needed  *uint256.Int
}

func (e *InsufficientBalanceError) Error() string {
	if e.Asset == (common.Address{}) {
		return fmt.Sprintf("insufficient currency balance: %s has %s, needs %s", e.Account.Hex(), e.Balance.Dec(), e.Needed.Dec())
	}
	return fmt.Sprintf("insufficient balance of %s: %s has %s, needs %s", e.Asset.Hex(), e.Account.Hex(), e.Balance.Dec(), e.Needed.Dec())
}

type InsufficientAllowanceError struct {
	Token     common.Address
	Owner     common.Address
	Spender   common.Address
	Allowance *uint256.Int
	Needed    *uint256.Int
}

func (e *InsufficientAllowanceError) Error() string {
	return fmt.Sprintf("insufficient allowance of %s: %s approved %s for %s, needs %s",
		e.Token.Hex(), e.Owner.Hex(), e.Spender.Hex(), e.Allowance.Dec(), e.Needed.Dec())
}

// PoolOperationError wraps a failure bubbled up from the pool gateway.
type PoolOperationError struct {
	Op  string
	Err error
}

func (e *PoolOperationError) Error() string {
	return fmt.Sprintf("pool %s failed: %v", e.Op, e.Err)
}

func (e *PoolOperationError) Unwrap() error {
	return e.Err
}
