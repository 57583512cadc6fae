package model

import (
	"github.com/holiman/uint256"
)

// Checked uint256 helpers. Division floors; every overflow is reported as
// ErrOverflow instead of wrapping.

func SafeAdd(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

func SafeSub(a, b *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, ErrOverflow
	}
	return z, nil
}

func SafeMul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulDiv returns floor(a*b/d).
func MulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, err := SafeMul(a, b)
	if err != nil {
		return nil, err
	}
	return z.Div(z, d), nil
}

// ApplyBp returns floor(amount*bp/10000).
func ApplyBp(amount *uint256.Int, bp uint64) (*uint256.Int, error) {
	return MulDiv(amount, uint256.NewInt(bp), uint256.NewInt(BpDenominator))
}

func MinInt(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a.Clone()
	}
	return b.Clone()
}
