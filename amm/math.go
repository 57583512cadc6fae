package amm

import (
	"github.com/holiman/uint256"

	"taxed-token-ledger/core/model"
)

// Constant-product pool constants (UniswapV2).
const (
	SwapFeeNumerator   uint64 = 997
	SwapFeeDenominator uint64 = 1000
	MinimumLiquidity   uint64 = 1000
)

// GetAmountOut returns the output for amountIn against the given reserves,
// after the 0.3% swap fee:
//
//	out = in*997*reserveOut / (reserveIn*1000 + in*997)
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountIn.IsZero() {
		return nil, ErrInsufficientInput
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	inWithFee, err := model.SafeMul(amountIn, uint256.NewInt(SwapFeeNumerator))
	if err != nil {
		return nil, err
	}
	numerator, err := model.SafeMul(inWithFee, reserveOut)
	if err != nil {
		return nil, err
	}
	denominator, err := model.SafeMul(reserveIn, uint256.NewInt(SwapFeeDenominator))
	if err != nil {
		return nil, err
	}
	if denominator, err = model.SafeAdd(denominator, inWithFee); err != nil {
		return nil, err
	}
	return numerator.Div(numerator, denominator), nil
}

// GetAmountIn returns the input required to receive amountOut.
//
//	in = reserveIn*out*1000 / ((reserveOut-out)*997) + 1
func GetAmountIn(amountOut, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountOut.IsZero() {
		return nil, ErrInsufficientOutput
	}
	if reserveIn.IsZero() || reserveOut.IsZero() || !amountOut.Lt(reserveOut) {
		return nil, ErrInsufficientLiquidity
	}
	numerator, err := model.SafeMul(reserveIn, amountOut)
	if err != nil {
		return nil, err
	}
	if numerator, err = model.SafeMul(numerator, uint256.NewInt(SwapFeeDenominator)); err != nil {
		return nil, err
	}
	remaining := new(uint256.Int).Sub(reserveOut, amountOut)
	denominator, err := model.SafeMul(remaining, uint256.NewInt(SwapFeeNumerator))
	if err != nil {
		return nil, err
	}
	amountIn := numerator.Div(numerator, denominator)
	return amountIn.AddUint64(amountIn, 1), nil
}

// Quote returns the amount of the other asset equal in value to amountA at
// the current reserve ratio.
func Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	if amountA.IsZero() {
		return nil, ErrInsufficientAmount
	}
	if reserveA.IsZero() || reserveB.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	return model.MulDiv(amountA, reserveB, reserveA)
}
