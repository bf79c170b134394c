package pair

import (
	"fmt"
	"math/big"

	dexerrors "dexcore/core/errors"
	nativecommon "dexcore/native/common"
)

// GetReserves returns a copy of the current reserves.
func (e *Engine) GetReserves() (*ReserveState, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	return st.Reserves.Clone(), nil
}

// Status returns the contract state.
func (e *Engine) Status() (nativecommon.ContractState, error) {
	st, err := e.load()
	if err != nil {
		return nativecommon.StateInactive, err
	}
	return st.Status, nil
}

// FeeConfig returns a copy of the fee configuration.
func (e *Engine) FeeConfig() (FeeConfig, error) {
	st, err := e.load()
	if err != nil {
		return FeeConfig{}, err
	}
	return st.Fees.Clone(), nil
}

// GetAmountOut quotes a fixed input swap.
func (e *Engine) GetAmountOut(tokenIn string, amountIn *big.Int) (*big.Int, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	reserveIn, reserveOut, err := st.Reserves.reserves(normalizeToken(tokenIn))
	if err != nil {
		return nil, err
	}
	return GetAmountOut(amountIn, reserveIn, reserveOut, st.Fees.TotalFeePercent)
}

// GetAmountIn quotes the input needed to receive amountOut of tokenWanted.
func (e *Engine) GetAmountIn(tokenWanted string, amountOut *big.Int) (*big.Int, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	tokenIn, err := st.Reserves.otherToken(normalizeToken(tokenWanted))
	if err != nil {
		return nil, err
	}
	reserveIn, reserveOut, err := st.Reserves.reserves(tokenIn)
	if err != nil {
		return nil, err
	}
	return GetAmountIn(amountOut, reserveIn, reserveOut, st.Fees.TotalFeePercent)
}

// GetEquivalent values amount of tokenIn in the other token at the spot
// reserve ratio.
func (e *Engine) GetEquivalent(tokenIn string, amount *big.Int) (*big.Int, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	reserveIn, reserveOut, err := st.Reserves.reserves(normalizeToken(tokenIn))
	if err != nil {
		return nil, err
	}
	return Quote(amount, reserveIn, reserveOut)
}

// GetTokensForGivenPosition returns the reserves backing liquidity shares.
func (e *Engine) GetTokensForGivenPosition(liquidity *big.Int) (*big.Int, *big.Int, error) {
	st, err := e.load()
	if err != nil {
		return nil, nil, err
	}
	return st.Reserves.TokensForLiquidity(liquidity)
}

func (e *Engine) observationWindow(st *State, startRound, endRound uint64) (PriceObservation, PriceObservation, error) {
	if startRound >= endRound {
		return PriceObservation{}, PriceObservation{}, fmt.Errorf("%w: start %d must precede end %d", dexerrors.ErrSameRound, startRound, endRound)
	}
	if endRound > e.block.Round {
		return PriceObservation{}, PriceObservation{}, fmt.Errorf("%w: end round %d is in the future", dexerrors.ErrObservationNotFound, endRound)
	}
	sp := newSafePrice(e.store, e.params.MaxObservations)
	start, err := sp.Find(st.Oracle, startRound, e.block.Timestamp, &st.Reserves)
	if err != nil {
		return PriceObservation{}, PriceObservation{}, err
	}
	end, err := sp.Find(st.Oracle, endRound, e.block.Timestamp, &st.Reserves)
	if err != nil {
		return PriceObservation{}, PriceObservation{}, err
	}
	return start, end, nil
}

// GetSafePrice converts amount of tokenIn using the time weighted reserves
// between startRound and endRound.
func (e *Engine) GetSafePrice(startRound, endRound uint64, tokenIn string, amount *big.Int) (*big.Int, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	start, end, err := e.observationWindow(st, startRound, endRound)
	if err != nil {
		return nil, err
	}
	return ComputeWeightedPrice(start, end, &st.Reserves, normalizeToken(tokenIn), amount)
}

// GetSafePriceByDefaultOffset prices over the configured window ending at
// the current round, clamped to the oldest retained observation.
func (e *Engine) GetSafePriceByDefaultOffset(tokenIn string, amount *big.Int) (*big.Int, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	end := e.block.Round
	start := uint64(0)
	if end > e.params.SafePriceOffset {
		start = end - e.params.SafePriceOffset
	}
	if st.Oracle.Count > 0 {
		sp := newSafePrice(e.store, e.params.MaxObservations)
		oldest, err := sp.at(st.Oracle, 0)
		if err != nil {
			return nil, err
		}
		if start < oldest.Round {
			start = oldest.Round
		}
	}
	startObs, endObs, err := e.observationWindow(st, start, end)
	if err != nil {
		return nil, err
	}
	return ComputeWeightedPrice(startObs, endObs, &st.Reserves, normalizeToken(tokenIn), amount)
}

// GetLPTokensSafePrice values liquidity shares in both tokens over a window.
func (e *Engine) GetLPTokensSafePrice(startRound, endRound uint64, liquidity *big.Int) (*big.Int, *big.Int, error) {
	st, err := e.load()
	if err != nil {
		return nil, nil, err
	}
	start, end, err := e.observationWindow(st, startRound, endRound)
	if err != nil {
		return nil, nil, err
	}
	return ComputeLPTokensPrice(start, end, liquidity)
}
