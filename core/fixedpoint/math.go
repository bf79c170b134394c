// Package fixedpoint implements the non-negative arbitrary precision integer
// arithmetic used by every accounting engine. Division truncates toward zero
// and every helper returns a fresh value so callers never alias stored state.
package fixedpoint

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	dexerrors "dexcore/core/errors"
)

const (
	// PercentDenominator is the denominator used for fee percentages
	// (300 == 0.3%).
	PercentDenominator = 100_000
	// BasisPoints is the denominator used for penalty and APR settings.
	BasisPoints = 10_000
)

var (
	percentDenominator = big.NewInt(PercentDenominator)
	basisPoints        = big.NewInt(BasisPoints)
	one                = big.NewInt(1)
)

// MustBigInt parses a base-10 constant, panicking on malformed input. It is
// intended for package level constants only.
func MustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// Parse converts a base-10 string into a non-negative integer.
func Parse(value string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%w: malformed integer %q", dexerrors.ErrInvalidAmount, value)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative integer %q", dexerrors.ErrInvalidAmount, value)
	}
	return v, nil
}

// Zero returns a fresh zero value.
func Zero() *big.Int { return new(big.Int) }

// FromUint64 wraps v in a fresh big integer.
func FromUint64(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

// Copy returns a deep copy of x, mapping nil to zero.
func Copy(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}

// IsPositive reports whether x is strictly greater than zero.
func IsPositive(x *big.Int) bool { return x != nil && x.Sign() > 0 }

// IsZero reports whether x is nil or zero.
func IsZero(x *big.Int) bool { return x == nil || x.Sign() == 0 }

// Add returns a + b.
func Add(a, b *big.Int) *big.Int {
	return new(big.Int).Add(Copy(a), Copy(b))
}

// Sub returns a - b, failing with ErrArithmetic when b > a.
func Sub(a, b *big.Int) (*big.Int, error) {
	x, y := Copy(a), Copy(b)
	if x.Cmp(y) < 0 {
		return nil, fmt.Errorf("%w: subtraction underflow %s - %s", dexerrors.ErrArithmetic, x, y)
	}
	return x.Sub(x, y), nil
}

// SaturatingSub returns a - b floored at zero.
func SaturatingSub(a, b *big.Int) *big.Int {
	x, y := Copy(a), Copy(b)
	if x.Cmp(y) <= 0 {
		return new(big.Int)
	}
	return x.Sub(x, y)
}

// Mul returns a * b.
func Mul(a, b *big.Int) *big.Int {
	return new(big.Int).Mul(Copy(a), Copy(b))
}

// Div returns a / b truncated, failing with ErrArithmetic when b is zero.
func Div(a, b *big.Int) (*big.Int, error) {
	if IsZero(b) {
		return nil, fmt.Errorf("%w: division by zero", dexerrors.ErrArithmetic)
	}
	return new(big.Int).Quo(Copy(a), b), nil
}

// MulDiv returns a * b / c, multiplying before dividing.
func MulDiv(a, b, c *big.Int) (*big.Int, error) {
	return Div(Mul(a, b), c)
}

// MulDivCeil returns ceil(a * b / c).
func MulDivCeil(a, b, c *big.Int) (*big.Int, error) {
	if IsZero(c) {
		return nil, fmt.Errorf("%w: division by zero", dexerrors.ErrArithmetic)
	}
	product := Mul(a, b)
	quotient, remainder := new(big.Int).QuoRem(product, c, new(big.Int))
	if remainder.Sign() != 0 {
		quotient.Add(quotient, one)
	}
	return quotient, nil
}

// RuleOfThree returns part * value / total, the proportional slice of value
// that part represents within total.
func RuleOfThree(part, total, value *big.Int) (*big.Int, error) {
	return MulDiv(part, value, total)
}

// Percent applies a fee percentage expressed over PercentDenominator.
func Percent(amount *big.Int, percent uint64) *big.Int {
	out := Mul(amount, FromUint64(percent))
	return out.Quo(out, percentDenominator)
}

// Bps applies a basis point ratio expressed over BasisPoints.
func Bps(amount *big.Int, bps uint64) *big.Int {
	out := Mul(amount, FromUint64(bps))
	return out.Quo(out, basisPoints)
}

// Sqrt returns floor(sqrt(x)).
func Sqrt(x *big.Int) *big.Int {
	if !IsPositive(x) {
		return new(big.Int)
	}
	return new(big.Int).Sqrt(x)
}

// Min returns a copy of the smaller value.
func Min(a, b *big.Int) *big.Int {
	if Copy(a).Cmp(Copy(b)) <= 0 {
		return Copy(a)
	}
	return Copy(b)
}

// Max returns a copy of the larger value.
func Max(a, b *big.Int) *big.Int {
	if Copy(a).Cmp(Copy(b)) >= 0 {
		return Copy(a)
	}
	return Copy(b)
}

// ToUint256 narrows x into a 256-bit word, failing with ErrArithmetic on
// negative values or overflow.
func ToUint256(x *big.Int) (*uint256.Int, error) {
	if x == nil {
		return new(uint256.Int), nil
	}
	if x.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value %s", dexerrors.ErrArithmetic, x)
	}
	word, overflow := uint256.FromBig(x)
	if overflow {
		return nil, fmt.Errorf("%w: value %s exceeds 256 bits", dexerrors.ErrArithmetic, x)
	}
	return word, nil
}
