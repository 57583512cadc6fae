// Package amm is an in-process constant-product router with one
// token/currency pair per token. Pool state lives in the shared StateDB so
// it unwinds together with the call that changed it.
package amm

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

var (
	ErrExpired                     = errors.New("router: expired")
	ErrInsufficientInput           = errors.New("router: insufficient input amount")
	ErrInsufficientOutput          = errors.New("router: insufficient output amount")
	ErrInsufficientLiquidity       = errors.New("router: insufficient liquidity")
	ErrInsufficientAmount          = errors.New("router: insufficient amount")
	ErrInsufficientLiquidityMinted = errors.New("router: insufficient liquidity minted")
	ErrInvalidPath                 = errors.New("router: invalid path")
	ErrPairNotFound                = errors.New("router: pair not found")
	ErrPairExists                  = errors.New("router: pair exists")
)

const (
	slotReserveToken    = "reserveToken"
	slotReserveCurrency = "reserveCurrency"
	slotTotalSupply     = "totalSupply"
)

// deadAddress holds the liquidity locked at first mint.
var deadAddress = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

type pair struct {
	address common.Address
	token   model.ERC20
}

type Router struct {
	db      *state.StateDB
	address common.Address
	wrapped common.Address
	now     func() uint64
	pairs   map[common.Address]*pair
}

func NewRouter(db *state.StateDB, address, wrapped common.Address, clock func() uint64) *Router {
	if clock == nil {
		clock = func() uint64 { return uint64(time.Now().Unix()) }
	}
	return &Router{
		db:      db,
		address: address,
		wrapped: wrapped,
		now:     clock,
		pairs:   make(map[common.Address]*pair),
	}
}

func (r *Router) Address() common.Address {
	return r.address
}

func (r *Router) WrappedCurrency() common.Address {
	return r.wrapped
}

// PairFor returns the deterministic pair address for token.
func (r *Router) PairFor(token common.Address) common.Address {
	return model.DeriveAddress(r.address, token, r.wrapped)
}

// CreatePair registers the token/currency pair. Registration does not
// touch state, so it is also how a router is rebuilt over persisted state.
func (r *Router) CreatePair(token model.ERC20) (common.Address, error) {
	if _, ok := r.pairs[token.Address()]; ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrPairExists, token.Address().Hex())
	}
	p := &pair{address: r.PairFor(token.Address()), token: token}
	r.pairs[token.Address()] = p
	logrus.WithFields(logrus.Fields{"token": token.Address().Hex(), "pair": p.address.Hex()}).Debug("pair registered")
	return p.address, nil
}

// Reserves returns the token and currency reserves of token's pair.
func (r *Router) Reserves(token common.Address) (tokenReserve, currencyReserve *uint256.Int, err error) {
	p, ok := r.pairs[token]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrPairNotFound, token.Hex())
	}
	tokenReserve, currencyReserve = r.reserves(p)
	return tokenReserve, currencyReserve, nil
}

// LiquidityOf returns holder's pool share tokens for token's pair.
func (r *Router) LiquidityOf(token, holder common.Address) *uint256.Int {
	return r.db.TokenBalance(r.PairFor(token), holder)
}

func (r *Router) reserves(p *pair) (*uint256.Int, *uint256.Int) {
	return r.db.GetState(p.address, slotReserveToken), r.db.GetState(p.address, slotReserveCurrency)
}

func (r *Router) sync(p *pair) {
	r.db.SetState(p.address, slotReserveToken, p.token.BalanceOf(p.address))
	r.db.SetState(p.address, slotReserveCurrency, r.db.GetBalance(p.address))
}

func (r *Router) ensure(deadline uint64) error {
	if deadline < r.now() {
		return ErrExpired
	}
	return nil
}

// resolve validates a two-hop path and returns the pair plus whether the
// path sells the token for currency.
func (r *Router) resolve(path []common.Address) (*pair, bool, error) {
	if len(path) != 2 {
		return nil, false, ErrInvalidPath
	}
	switch {
	case path[1] == r.wrapped:
		if p, ok := r.pairs[path[0]]; ok {
			return p, true, nil
		}
		return nil, false, fmt.Errorf("%w: %s", ErrPairNotFound, path[0].Hex())
	case path[0] == r.wrapped:
		if p, ok := r.pairs[path[1]]; ok {
			return p, false, nil
		}
		return nil, false, fmt.Errorf("%w: %s", ErrPairNotFound, path[1].Hex())
	}
	return nil, false, ErrInvalidPath
}

func (r *Router) QuoteOut(amountIn *uint256.Int, path []common.Address) (*uint256.Int, error) {
	p, sell, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	rT, rC := r.reserves(p)
	if sell {
		return GetAmountOut(amountIn, rT, rC)
	}
	return GetAmountOut(amountIn, rC, rT)
}

func (r *Router) QuoteIn(amountOut *uint256.Int, path []common.Address) (*uint256.Int, error) {
	p, sell, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	rT, rC := r.reserves(p)
	if sell {
		return GetAmountIn(amountOut, rT, rC)
	}
	return GetAmountIn(amountOut, rC, rT)
}

// SwapExactTokensForCurrency pulls amountIn from caller (router allowance
// required) and pays currency to recipient. The input is measured as what
// the pair actually received, so taxed tokens are supported.
func (r *Router) SwapExactTokensForCurrency(caller common.Address, amountIn, minOut *uint256.Int, path []common.Address, recipient common.Address, deadline uint64) error {
	if err := r.ensure(deadline); err != nil {
		return err
	}
	p, sell, err := r.resolve(path)
	if err != nil {
		return err
	}
	if !sell {
		return ErrInvalidPath
	}

	return r.db.Atomic(func() error {
		if err := p.token.TransferFrom(r.address, caller, p.address, amountIn); err != nil {
			return err
		}
		rT, rC := r.reserves(p)
		balance := p.token.BalanceOf(p.address)
		if !balance.Gt(rT) {
			return ErrInsufficientInput
		}
		received := new(uint256.Int).Sub(balance, rT)
		out, err := GetAmountOut(received, rT, rC)
		if err != nil {
			return err
		}
		if out.Lt(minOut) {
			return ErrInsufficientOutput
		}
		if err := r.db.TransferNative(p.address, recipient, out); err != nil {
			return err
		}
		r.sync(p)
		return nil
	})
}

// SwapExactCurrencyForTokens sends value from caller into the pair and pays
// tokens to recipient. minOut is checked against what recipient actually
// received.
func (r *Router) SwapExactCurrencyForTokens(caller common.Address, value, minOut *uint256.Int, path []common.Address, recipient common.Address, deadline uint64) error {
	if err := r.ensure(deadline); err != nil {
		return err
	}
	p, sell, err := r.resolve(path)
	if err != nil {
		return err
	}
	if sell {
		return ErrInvalidPath
	}

	return r.db.Atomic(func() error {
		if err := r.db.TransferNative(caller, p.address, value); err != nil {
			return err
		}
		rT, rC := r.reserves(p)
		received, err := model.SafeSub(r.db.GetBalance(p.address), rC)
		if err != nil {
			return err
		}
		out, err := GetAmountOut(received, rC, rT)
		if err != nil {
			return err
		}
		before := p.token.BalanceOf(recipient)
		if err := p.token.Transfer(p.address, recipient, out); err != nil {
			return err
		}
		got, err := model.SafeSub(p.token.BalanceOf(recipient), before)
		if err != nil {
			return err
		}
		if got.Lt(minOut) {
			return ErrInsufficientOutput
		}
		r.sync(p)
		return nil
	})
}

// AddLiquidity deposits token and currency at the current ratio and mints
// pool shares to recipient. Unused currency stays with the caller.
func (r *Router) AddLiquidity(caller, token common.Address, tokenAmount, currencyAmount, minToken, minCurrency *uint256.Int, recipient common.Address, deadline uint64) (*model.LiquidityResult, error) {
	if err := r.ensure(deadline); err != nil {
		return nil, err
	}
	p, ok := r.pairs[token]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPairNotFound, token.Hex())
	}

	var result *model.LiquidityResult
	err := r.db.Atomic(func() error {
		amountToken, amountCurrency, err := r.optimalAmounts(p, tokenAmount, currencyAmount, minToken, minCurrency)
		if err != nil {
			return err
		}
		if err := p.token.TransferFrom(r.address, caller, p.address, amountToken); err != nil {
			return err
		}
		if err := r.db.TransferNative(caller, p.address, amountCurrency); err != nil {
			return err
		}
		liquidity, err := r.mint(p, recipient)
		if err != nil {
			return err
		}
		result = &model.LiquidityResult{
			TokenAmount:    amountToken,
			CurrencyAmount: amountCurrency,
			Liquidity:      liquidity,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Router) optimalAmounts(p *pair, tokenDesired, currencyDesired, tokenMin, currencyMin *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	rT, rC := r.reserves(p)
	if rT.IsZero() && rC.IsZero() {
		return tokenDesired.Clone(), currencyDesired.Clone(), nil
	}

	currencyOptimal, err := Quote(tokenDesired, rT, rC)
	if err != nil {
		return nil, nil, err
	}
	if !currencyOptimal.Gt(currencyDesired) {
		if currencyOptimal.Lt(currencyMin) {
			return nil, nil, fmt.Errorf("%w: currency", ErrInsufficientAmount)
		}
		return tokenDesired.Clone(), currencyOptimal, nil
	}

	tokenOptimal, err := Quote(currencyDesired, rC, rT)
	if err != nil {
		return nil, nil, err
	}
	if tokenOptimal.Lt(tokenMin) {
		return nil, nil, fmt.Errorf("%w: token", ErrInsufficientAmount)
	}
	return tokenOptimal, currencyDesired.Clone(), nil
}

func (r *Router) mint(p *pair, to common.Address) (*uint256.Int, error) {
	rT, rC := r.reserves(p)
	amountToken, err := model.SafeSub(p.token.BalanceOf(p.address), rT)
	if err != nil {
		return nil, err
	}
	amountCurrency, err := model.SafeSub(r.db.GetBalance(p.address), rC)
	if err != nil {
		return nil, err
	}

	supply := r.db.GetState(p.address, slotTotalSupply)
	var liquidity *uint256.Int
	if supply.IsZero() {
		product, err := model.SafeMul(amountToken, amountCurrency)
		if err != nil {
			return nil, err
		}
		root := new(uint256.Int).Sqrt(product)
		minimum := uint256.NewInt(MinimumLiquidity)
		if !root.Gt(minimum) {
			return nil, ErrInsufficientLiquidityMinted
		}
		liquidity = root.Sub(root, minimum)
		if err := r.mintShares(p, deadAddress, minimum); err != nil {
			return nil, err
		}
	} else {
		byToken, err := model.MulDiv(amountToken, supply, rT)
		if err != nil {
			return nil, err
		}
		byCurrency, err := model.MulDiv(amountCurrency, supply, rC)
		if err != nil {
			return nil, err
		}
		liquidity = model.MinInt(byToken, byCurrency)
	}
	if liquidity.IsZero() {
		return nil, ErrInsufficientLiquidityMinted
	}
	if err := r.mintShares(p, to, liquidity); err != nil {
		return nil, err
	}
	r.sync(p)
	return liquidity, nil
}

func (r *Router) mintShares(p *pair, to common.Address, amount *uint256.Int) error {
	supply, err := model.SafeAdd(r.db.GetState(p.address, slotTotalSupply), amount)
	if err != nil {
		return err
	}
	r.db.SetState(p.address, slotTotalSupply, supply)
	if err := r.db.AddTokenBalance(p.address, to, amount); err != nil {
		return err
	}
	r.db.AddLog(model.NewTransferLog(p.address, common.Address{}, to, amount))
	return nil
}
