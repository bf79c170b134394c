package pair

import (
	"fmt"
	"math/big"

	dexerrors "dexcore/core/errors"
	"dexcore/core/fixedpoint"
)

var maxPercentage = big.NewInt(MaxPercentage)

func requireSwapInputs(amount, reserveIn, reserveOut *big.Int) error {
	if !fixedpoint.IsPositive(amount) {
		return fmt.Errorf("pair: %w: amount must be positive", dexerrors.ErrInvalidAmount)
	}
	if !fixedpoint.IsPositive(reserveIn) || !fixedpoint.IsPositive(reserveOut) {
		return fmt.Errorf("pair: %w: pool has no liquidity", dexerrors.ErrInsufficientReserve)
	}
	return nil
}

// GetAmountOut returns the output of a fixed input swap with the total fee
// deducted from amountIn:
//
//	out = in*(MAX-fee)*Rout / (Rin*MAX + in*(MAX-fee))
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int, totalFeePercent uint64) (*big.Int, error) {
	if err := requireSwapInputs(amountIn, reserveIn, reserveOut); err != nil {
		return nil, err
	}
	if totalFeePercent >= MaxPercentage {
		return nil, fmt.Errorf("pair: %w: fee %d", dexerrors.ErrArithmetic, totalFeePercent)
	}
	amountInWithFee := fixedpoint.Mul(amountIn, fixedpoint.FromUint64(MaxPercentage-totalFeePercent))
	numerator := fixedpoint.Mul(amountInWithFee, reserveOut)
	denominator := fixedpoint.Add(fixedpoint.Mul(reserveIn, maxPercentage), amountInWithFee)
	out, err := fixedpoint.Div(numerator, denominator)
	if err != nil {
		return nil, err
	}
	if out.Sign() == 0 {
		return nil, fmt.Errorf("pair: %w: output rounds to zero", dexerrors.ErrInvalidAmount)
	}
	return out, nil
}

// GetAmountIn returns the input a fixed output swap must pay, rounded up so
// the pool is never under-compensated:
//
//	in = Rin*out*MAX / ((Rout-out)*(MAX-fee)) + 1
func GetAmountIn(amountOut, reserveIn, reserveOut *big.Int, totalFeePercent uint64) (*big.Int, error) {
	if err := requireSwapInputs(amountOut, reserveIn, reserveOut); err != nil {
		return nil, err
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, fmt.Errorf("pair: %w: output %s drains reserve %s", dexerrors.ErrInsufficientReserve, amountOut, reserveOut)
	}
	if totalFeePercent >= MaxPercentage {
		return nil, fmt.Errorf("pair: %w: fee %d", dexerrors.ErrArithmetic, totalFeePercent)
	}
	numerator := fixedpoint.Mul(fixedpoint.Mul(reserveIn, amountOut), maxPercentage)
	remaining := new(big.Int).Sub(reserveOut, amountOut)
	denominator := fixedpoint.Mul(remaining, fixedpoint.FromUint64(MaxPercentage-totalFeePercent))
	in, err := fixedpoint.Div(numerator, denominator)
	if err != nil {
		return nil, err
	}
	return in.Add(in, big.NewInt(1)), nil
}

// GetAmountOutNoFee is the fee-less constant product output used for
// internal fee conversions.
func GetAmountOutNoFee(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if err := requireSwapInputs(amountIn, reserveIn, reserveOut); err != nil {
		return nil, err
	}
	return fixedpoint.MulDiv(amountIn, reserveOut, fixedpoint.Add(reserveIn, amountIn))
}

// Quote returns amount * reserveOut / reserveIn, the spot equivalent of
// amount without price impact.
func Quote(amount, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if err := requireSwapInputs(amount, reserveIn, reserveOut); err != nil {
		return nil, err
	}
	return fixedpoint.MulDiv(amount, reserveOut, reserveIn)
}
