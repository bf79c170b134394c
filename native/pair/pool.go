package pair

import (
	"fmt"
	"math/big"

	dexerrors "dexcore/core/errors"
	"dexcore/core/fixedpoint"
)

// KCheck selects the direction ValidateK enforces.
type KCheck uint8

const (
	// KNonDecreasing applies to swaps: new K >= old K.
	KNonDecreasing KCheck = iota
	// KIncreasing applies to deposits: new K > old K.
	KIncreasing
	// KDecreasing applies to withdrawals: new K < old K.
	KDecreasing
)

// K returns first_reserve * second_reserve.
func (r *ReserveState) K() *big.Int {
	return fixedpoint.Mul(r.FirstReserve, r.SecondReserve)
}

// ValidateK is the constant product guard re-run after every reserve
// mutation.
func ValidateK(oldK, newK *big.Int, check KCheck) error {
	cmp := fixedpoint.Copy(newK).Cmp(fixedpoint.Copy(oldK))
	var ok bool
	switch check {
	case KNonDecreasing:
		ok = cmp >= 0
	case KIncreasing:
		ok = cmp > 0
	case KDecreasing:
		ok = cmp < 0
	}
	if !ok {
		return fmt.Errorf("%w: k moved from %s to %s", dexerrors.ErrInvariantViolation, oldK, newK)
	}
	return nil
}

// reserves returns (reserve_in, reserve_out) for a swap of tokenIn.
func (r *ReserveState) reserves(tokenIn string) (*big.Int, *big.Int, error) {
	switch tokenIn {
	case r.FirstToken:
		return r.FirstReserve, r.SecondReserve, nil
	case r.SecondToken:
		return r.SecondReserve, r.FirstReserve, nil
	default:
		return nil, nil, fmt.Errorf("pair: %w: %s", dexerrors.ErrInvalidToken, tokenIn)
	}
}

func (r *ReserveState) otherToken(token string) (string, error) {
	switch token {
	case r.FirstToken:
		return r.SecondToken, nil
	case r.SecondToken:
		return r.FirstToken, nil
	default:
		return "", fmt.Errorf("pair: %w: %s", dexerrors.ErrInvalidToken, token)
	}
}

func (r *ReserveState) addReserve(token string, amount *big.Int) error {
	switch token {
	case r.FirstToken:
		r.FirstReserve = fixedpoint.Add(r.FirstReserve, amount)
	case r.SecondToken:
		r.SecondReserve = fixedpoint.Add(r.SecondReserve, amount)
	default:
		return fmt.Errorf("pair: %w: %s", dexerrors.ErrInvalidToken, token)
	}
	return nil
}

func (r *ReserveState) subReserve(token string, amount *big.Int) error {
	var err error
	switch token {
	case r.FirstToken:
		r.FirstReserve, err = fixedpoint.Sub(r.FirstReserve, amount)
	case r.SecondToken:
		r.SecondReserve, err = fixedpoint.Sub(r.SecondReserve, amount)
	default:
		return fmt.Errorf("pair: %w: %s", dexerrors.ErrInvalidToken, token)
	}
	return err
}

// OptimalAmounts sizes a two-sided deposit to the current reserve ratio. An
// empty pool accepts the desired amounts unchanged.
func (r *ReserveState) OptimalAmounts(desiredA, desiredB, minA, minB *big.Int) (*big.Int, *big.Int, error) {
	if !fixedpoint.IsPositive(desiredA) || !fixedpoint.IsPositive(desiredB) {
		return nil, nil, fmt.Errorf("pair: %w: deposit amounts must be positive", dexerrors.ErrInvalidAmount)
	}
	if fixedpoint.IsZero(r.FirstReserve) || fixedpoint.IsZero(r.SecondReserve) {
		return fixedpoint.Copy(desiredA), fixedpoint.Copy(desiredB), nil
	}
	optimalB, err := fixedpoint.MulDiv(desiredA, r.SecondReserve, r.FirstReserve)
	if err != nil {
		return nil, nil, err
	}
	if optimalB.Cmp(desiredB) <= 0 {
		if optimalB.Cmp(fixedpoint.Copy(minB)) < 0 {
			return nil, nil, fmt.Errorf("pair: %w: second amount %s below minimum %s", dexerrors.ErrSlippage, optimalB, minB)
		}
		return fixedpoint.Copy(desiredA), optimalB, nil
	}
	optimalA, err := fixedpoint.MulDiv(desiredB, r.FirstReserve, r.SecondReserve)
	if err != nil {
		return nil, nil, err
	}
	if optimalA.Cmp(desiredA) > 0 || optimalA.Cmp(fixedpoint.Copy(minA)) < 0 {
		return nil, nil, fmt.Errorf("pair: %w: first amount %s outside [%s, %s]", dexerrors.ErrSlippage, optimalA, minA, desiredA)
	}
	return optimalA, fixedpoint.Copy(desiredB), nil
}

// AddLiquidity mints shares for a deposit already sized by OptimalAmounts.
// The first deposit permanently locks MinimumLiquidity shares; the returned
// liquidity excludes them.
func (r *ReserveState) AddLiquidity(amountA, amountB *big.Int, policy BootstrapPolicy) (liquidity, locked *big.Int, err error) {
	if !fixedpoint.IsPositive(amountA) || !fixedpoint.IsPositive(amountB) {
		return nil, nil, fmt.Errorf("pair: %w: deposit amounts must be positive", dexerrors.ErrInvalidAmount)
	}
	oldK := r.K()
	locked = fixedpoint.Zero()
	if fixedpoint.IsZero(r.LPSupply) {
		var total *big.Int
		if policy == BootstrapMin {
			total = fixedpoint.Min(amountA, amountB)
		} else {
			total = fixedpoint.Sqrt(fixedpoint.Mul(amountA, amountB))
		}
		locked = big.NewInt(MinimumLiquidity)
		if total.Cmp(locked) <= 0 {
			return nil, nil, fmt.Errorf("pair: %w: first deposit must exceed %d shares", dexerrors.ErrZeroLiquidity, MinimumLiquidity)
		}
		liquidity = new(big.Int).Sub(total, locked)
	} else {
		byA, err := fixedpoint.MulDiv(amountA, r.LPSupply, r.FirstReserve)
		if err != nil {
			return nil, nil, err
		}
		byB, err := fixedpoint.MulDiv(amountB, r.LPSupply, r.SecondReserve)
		if err != nil {
			return nil, nil, err
		}
		liquidity = fixedpoint.Min(byA, byB)
	}
	if liquidity.Sign() == 0 {
		return nil, nil, fmt.Errorf("pair: %w", dexerrors.ErrZeroLiquidity)
	}
	next := r.Clone()
	next.FirstReserve = fixedpoint.Add(r.FirstReserve, amountA)
	next.SecondReserve = fixedpoint.Add(r.SecondReserve, amountB)
	next.LPSupply = fixedpoint.Add(fixedpoint.Add(r.LPSupply, liquidity), locked)
	if err := ValidateK(oldK, next.K(), KIncreasing); err != nil {
		return nil, nil, err
	}
	*r = *next
	return liquidity, locked, nil
}

// TokensForLiquidity returns the reserve share backing liquidity.
func (r *ReserveState) TokensForLiquidity(liquidity *big.Int) (*big.Int, *big.Int, error) {
	if !fixedpoint.IsPositive(liquidity) {
		return nil, nil, fmt.Errorf("pair: %w: liquidity must be positive", dexerrors.ErrInvalidAmount)
	}
	if fixedpoint.Copy(liquidity).Cmp(fixedpoint.Copy(r.LPSupply)) > 0 {
		return nil, nil, fmt.Errorf("pair: %w: burning %s of %s", dexerrors.ErrInsufficientSupply, liquidity, r.LPSupply)
	}
	amountA, err := fixedpoint.MulDiv(liquidity, r.FirstReserve, r.LPSupply)
	if err != nil {
		return nil, nil, err
	}
	amountB, err := fixedpoint.MulDiv(liquidity, r.SecondReserve, r.LPSupply)
	if err != nil {
		return nil, nil, err
	}
	return amountA, amountB, nil
}

// RemoveLiquidity burns liquidity shares for their proportional reserves.
func (r *ReserveState) RemoveLiquidity(liquidity, minA, minB *big.Int) (*big.Int, *big.Int, error) {
	amountA, amountB, err := r.TokensForLiquidity(liquidity)
	if err != nil {
		return nil, nil, err
	}
	if amountA.Sign() == 0 || amountB.Sign() == 0 {
		return nil, nil, fmt.Errorf("pair: %w: liquidity %s too small to withdraw", dexerrors.ErrZeroLiquidity, liquidity)
	}
	if amountA.Cmp(fixedpoint.Copy(minA)) < 0 || amountB.Cmp(fixedpoint.Copy(minB)) < 0 {
		return nil, nil, fmt.Errorf("pair: %w: withdrawal (%s, %s) below minimum (%s, %s)", dexerrors.ErrSlippage, amountA, amountB, minA, minB)
	}
	oldK := r.K()
	next := r.Clone()
	if next.FirstReserve, err = fixedpoint.Sub(r.FirstReserve, amountA); err != nil {
		return nil, nil, err
	}
	if next.SecondReserve, err = fixedpoint.Sub(r.SecondReserve, amountB); err != nil {
		return nil, nil, err
	}
	if next.LPSupply, err = fixedpoint.Sub(r.LPSupply, liquidity); err != nil {
		return nil, nil, err
	}
	if err := ValidateK(oldK, next.K(), KDecreasing); err != nil {
		return nil, nil, err
	}
	*r = *next
	return amountA, amountB, nil
}
