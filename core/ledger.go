package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"taxed-token-ledger/core/model"
	"taxed-token-ledger/core/state"
)

var ErrMissingSupply = errors.New("total supply must be positive")

// Options are the immutable deployment parameters of a Ledger.
type Options struct {
	Address     common.Address
	Name        string
	Symbol      string
	Decimals    uint8
	Owner       common.Address
	TotalSupply *uint256.Int
	Gateway     model.PoolGateway
	// Clock returns the current block time in unix seconds.
	Clock func() uint64
}

// Ledger is the fee-taking token. Its own address accumulates fee tokens
// until the liquidity engine converts them.
type Ledger struct {
	address     common.Address
	name        string
	symbol      string
	decimals    uint8
	totalSupply *uint256.Int

	db      *state.StateDB
	cfg     *AdminConfig
	gateway model.PoolGateway
	now     func() uint64

	// foreign tokens the owner may sweep with RecoverERC20
	tokens map[common.Address]model.ERC20

	guard conversionGuard
}

func newLedger(db *state.StateDB, opts Options) (*Ledger, error) {
	if opts.TotalSupply == nil || opts.TotalSupply.IsZero() {
		return nil, ErrMissingSupply
	}
	if opts.Address == (common.Address{}) {
		return nil, fmt.Errorf("%w: ledger address is required", model.ErrZeroAddress)
	}
	now := opts.Clock
	if now == nil {
		now = func() uint64 { return uint64(time.Now().Unix()) }
	}
	return &Ledger{
		address:     opts.Address,
		name:        opts.Name,
		symbol:      opts.Symbol,
		decimals:    opts.Decimals,
		totalSupply: opts.TotalSupply.Clone(),
		db:          db,
		gateway:     opts.Gateway,
		now:         now,
		tokens:      make(map[common.Address]model.ERC20),
	}, nil
}

// New deploys a ledger and mints the whole supply to the owner.
func New(db *state.StateDB, opts Options) (*Ledger, error) {
	if opts.Owner == (common.Address{}) {
		return nil, fmt.Errorf("%w: owner is required", model.ErrZeroAddress)
	}
	l, err := newLedger(db, opts)
	if err != nil {
		return nil, err
	}
	l.cfg = defaultAdminConfig(opts.Owner, l.address, l.totalSupply)

	err = db.Atomic(func() error {
		if err := db.AddTokenBalance(l.address, opts.Owner, l.totalSupply); err != nil {
			return err
		}
		db.AddLog(model.NewTransferLog(l.address, common.Address{}, opts.Owner, l.totalSupply))
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"token":  l.address.Hex(),
		"owner":  opts.Owner.Hex(),
		"supply": l.totalSupply.Dec(),
	}).Info("ledger deployed")
	return l, nil
}

// Restore rebuilds a ledger over existing state without minting. The owner
// comes from settings and may be zero after renouncement.
func Restore(db *state.StateDB, opts Options, settings model.Settings) (*Ledger, error) {
	l, err := newLedger(db, opts)
	if err != nil {
		return nil, err
	}
	cfg, err := adminConfigFromSettings(settings, l.totalSupply)
	if err != nil {
		return nil, err
	}
	l.cfg = cfg
	return l, nil
}

func (l *Ledger) Address() common.Address {
	return l.address
}

func (l *Ledger) Name() string {
	return l.name
}

func (l *Ledger) Symbol() string {
	return l.symbol
}

func (l *Ledger) Decimals() uint8 {
	return l.decimals
}

func (l *Ledger) TotalSupply() *uint256.Int {
	return l.totalSupply.Clone()
}

func (l *Ledger) State() *state.StateDB {
	return l.db
}

func (l *Ledger) BalanceOf(account common.Address) *uint256.Int {
	return l.db.TokenBalance(l.address, account)
}

func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	return l.db.Allowance(l.address, owner, spender)
}

func (l *Ledger) Approve(caller, spender common.Address, amount *uint256.Int) error {
	return l.db.Atomic(func() error {
		return l.approve(caller, spender, amount)
	})
}

func (l *Ledger) IncreaseAllowance(caller, spender common.Address, added *uint256.Int) error {
	return l.db.Atomic(func() error {
		next, err := model.SafeAdd(l.Allowance(caller, spender), added)
		if err != nil {
			return err
		}
		return l.approve(caller, spender, next)
	})
}

func (l *Ledger) DecreaseAllowance(caller, spender common.Address, subtracted *uint256.Int) error {
	return l.db.Atomic(func() error {
		current := l.Allowance(caller, spender)
		if current.Lt(subtracted) {
			return &model.InsufficientAllowanceError{
				Token: l.address, Owner: caller, Spender: spender,
				Allowance: current, Needed: subtracted.Clone(),
			}
		}
		return l.approve(caller, spender, current.Sub(current, subtracted))
	})
}

func (l *Ledger) approve(owner, spender common.Address, amount *uint256.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return fmt.Errorf("%w: approve %s -> %s", model.ErrZeroAddress, owner.Hex(), spender.Hex())
	}
	l.db.SetAllowance(l.address, owner, spender, amount)
	l.db.AddLog(model.NewApprovalLog(l.address, owner, spender, amount))
	return nil
}

// CheckConservation verifies that balances still sum to the total supply.
func (l *Ledger) CheckConservation() error {
	sum, err := l.db.TokenSupply(l.address)
	if err != nil {
		return err
	}
	if !sum.Eq(l.totalSupply) {
		return fmt.Errorf("supply mismatch: balances sum to %s, total supply is %s", sum.Dec(), l.totalSupply.Dec())
	}
	return nil
}
