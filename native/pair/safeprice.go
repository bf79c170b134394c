package pair

import (
	"fmt"
	"math/big"

	dexerrors "dexcore/core/errors"
	"dexcore/core/fixedpoint"
)

// safePrice maintains the time weighted reserve accumulators of a pair in a
// fixed capacity ring buffer. Slots are 1-based; slot 0 is never written.
type safePrice struct {
	store    *Store
	capacity uint64
}

func newSafePrice(store *Store, capacity uint64) *safePrice {
	if capacity == 0 {
		capacity = DefaultMaxObservations
	}
	return &safePrice{store: store, capacity: capacity}
}

// nextObservation accumulates reserves over the rounds elapsed since last.
// The very first observation carries a weight of one.
func nextObservation(last *PriceObservation, round, timestamp uint64, reserves *ReserveState) PriceObservation {
	weight := uint64(1)
	base := PriceObservation{}
	if last != nil {
		base = last.Clone()
		if round > last.Round {
			weight = round - last.Round
		}
	}
	w := fixedpoint.FromUint64(weight)
	return PriceObservation{
		Round:               round,
		Timestamp:           timestamp,
		FirstAccumulated:    fixedpoint.Add(base.FirstAccumulated, fixedpoint.Mul(w, reserves.FirstReserve)),
		SecondAccumulated:   fixedpoint.Add(base.SecondAccumulated, fixedpoint.Mul(w, reserves.SecondReserve)),
		LPSupplyAccumulated: fixedpoint.Add(base.LPSupplyAccumulated, fixedpoint.Mul(w, reserves.LPSupply)),
		WeightAccumulated:   base.WeightAccumulated + weight,
	}
}

func (sp *safePrice) latest(cursor OracleCursor) (*PriceObservation, error) {
	if cursor.Count == 0 {
		return nil, nil
	}
	obs, ok, err := sp.store.Observation(cursor.CurrentIndex)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("pair oracle: slot %d missing", cursor.CurrentIndex)
	}
	return &obs, nil
}

// Record stores an observation for round using the reserves that were live
// since the previous observation. At most one observation is kept per
// round; later calls within the same round leave it untouched.
func (sp *safePrice) Record(cursor *OracleCursor, round, timestamp uint64, reserves *ReserveState) error {
	if fixedpoint.IsZero(reserves.FirstReserve) || fixedpoint.IsZero(reserves.SecondReserve) {
		return nil
	}
	last, err := sp.latest(*cursor)
	if err != nil {
		return err
	}
	if last != nil && last.Round >= round {
		return nil
	}
	obs := nextObservation(last, round, timestamp, reserves)
	index := uint64(1)
	if cursor.Count > 0 {
		index = cursor.CurrentIndex%sp.capacity + 1
	}
	if err := sp.store.PutObservation(index, obs); err != nil {
		return err
	}
	cursor.CurrentIndex = index
	if cursor.Count < sp.capacity {
		cursor.Count++
	}
	return nil
}

// oldestIndex is the slot holding the oldest retained observation.
func (sp *safePrice) oldestIndex(cursor OracleCursor) uint64 {
	if cursor.Count < sp.capacity {
		return 1
	}
	return cursor.CurrentIndex%sp.capacity + 1
}

// slot maps a logical position (0 = oldest) onto a ring buffer slot.
func (sp *safePrice) slot(cursor OracleCursor, position uint64) uint64 {
	return (sp.oldestIndex(cursor)-1+position)%sp.capacity + 1
}

func (sp *safePrice) at(cursor OracleCursor, position uint64) (PriceObservation, error) {
	index := sp.slot(cursor, position)
	obs, ok, err := sp.store.Observation(index)
	if err != nil {
		return PriceObservation{}, err
	}
	if !ok {
		return PriceObservation{}, fmt.Errorf("pair oracle: slot %d missing", index)
	}
	return obs, nil
}

// Find returns the observation at round. Rounds past the last observation
// are extrapolated from the live reserves; rounds between two observations
// are linearly interpolated.
func (sp *safePrice) Find(cursor OracleCursor, round, timestamp uint64, live *ReserveState) (PriceObservation, error) {
	last, err := sp.latest(cursor)
	if err != nil {
		return PriceObservation{}, err
	}
	if last == nil {
		return PriceObservation{}, fmt.Errorf("%w: no observations recorded", dexerrors.ErrObservationNotFound)
	}
	if round == last.Round {
		return *last, nil
	}
	if round > last.Round {
		return nextObservation(last, round, timestamp, live), nil
	}

	oldest, err := sp.at(cursor, 0)
	if err != nil {
		return PriceObservation{}, err
	}
	if round < oldest.Round {
		return PriceObservation{}, fmt.Errorf("%w: round %d precedes oldest retained round %d", dexerrors.ErrObservationNotFound, round, oldest.Round)
	}
	if round == oldest.Round {
		return oldest, nil
	}

	// Invariant: at(lo).Round < round < at(hi).Round.
	lo, hi := uint64(0), cursor.Count-1
	left, right := oldest, *last
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		obs, err := sp.at(cursor, mid)
		if err != nil {
			return PriceObservation{}, err
		}
		switch {
		case obs.Round == round:
			return obs, nil
		case obs.Round < round:
			lo, left = mid, obs
		default:
			hi, right = mid, obs
		}
	}
	return interpolate(left, right, round), nil
}

// interpolate weights each bracketing observation by its distance to the
// opposite bracket.
func interpolate(left, right PriceObservation, round uint64) PriceObservation {
	leftWeight := fixedpoint.FromUint64(right.Round - round)
	rightWeight := fixedpoint.FromUint64(round - left.Round)
	span := fixedpoint.FromUint64(right.Round - left.Round)

	mix := func(a, b *big.Int) *big.Int {
		sum := fixedpoint.Add(fixedpoint.Mul(a, leftWeight), fixedpoint.Mul(b, rightWeight))
		return sum.Quo(sum, span)
	}
	return PriceObservation{
		Round:               round,
		Timestamp:           mix(fixedpoint.FromUint64(left.Timestamp), fixedpoint.FromUint64(right.Timestamp)).Uint64(),
		FirstAccumulated:    mix(left.FirstAccumulated, right.FirstAccumulated),
		SecondAccumulated:   mix(left.SecondAccumulated, right.SecondAccumulated),
		LPSupplyAccumulated: mix(left.LPSupplyAccumulated, right.LPSupplyAccumulated),
		WeightAccumulated:   mix(fixedpoint.FromUint64(left.WeightAccumulated), fixedpoint.FromUint64(right.WeightAccumulated)).Uint64(),
	}
}

// averages returns the time weighted (first, second, lp supply) between two
// observations.
func averages(start, end PriceObservation) (*big.Int, *big.Int, *big.Int, error) {
	if end.WeightAccumulated <= start.WeightAccumulated {
		return nil, nil, nil, fmt.Errorf("%w: rounds %d..%d", dexerrors.ErrSameRound, start.Round, end.Round)
	}
	weight := fixedpoint.FromUint64(end.WeightAccumulated - start.WeightAccumulated)
	avg := func(a, b *big.Int) (*big.Int, error) {
		diff, err := fixedpoint.Sub(b, a)
		if err != nil {
			return nil, err
		}
		return fixedpoint.Div(diff, weight)
	}
	first, err := avg(start.FirstAccumulated, end.FirstAccumulated)
	if err != nil {
		return nil, nil, nil, err
	}
	second, err := avg(start.SecondAccumulated, end.SecondAccumulated)
	if err != nil {
		return nil, nil, nil, err
	}
	lp, err := avg(start.LPSupplyAccumulated, end.LPSupplyAccumulated)
	if err != nil {
		return nil, nil, nil, err
	}
	return first, second, lp, nil
}

// ComputeWeightedPrice converts amountIn of tokenIn using the average
// reserves between start and end.
func ComputeWeightedPrice(start, end PriceObservation, reserves *ReserveState, tokenIn string, amountIn *big.Int) (*big.Int, error) {
	first, second, _, err := averages(start, end)
	if err != nil {
		return nil, err
	}
	switch tokenIn {
	case reserves.FirstToken:
		return Quote(amountIn, first, second)
	case reserves.SecondToken:
		return Quote(amountIn, second, first)
	default:
		return nil, fmt.Errorf("pair: %w: %s", dexerrors.ErrInvalidToken, tokenIn)
	}
}

// ComputeLPTokensPrice values liquidity shares in both tokens using the
// average reserves and supply between start and end.
func ComputeLPTokensPrice(start, end PriceObservation, liquidity *big.Int) (*big.Int, *big.Int, error) {
	if !fixedpoint.IsPositive(liquidity) {
		return nil, nil, fmt.Errorf("pair: %w: liquidity must be positive", dexerrors.ErrInvalidAmount)
	}
	first, second, lp, err := averages(start, end)
	if err != nil {
		return nil, nil, err
	}
	if lp.Sign() == 0 {
		return nil, nil, fmt.Errorf("pair: %w: no average supply", dexerrors.ErrInsufficientSupply)
	}
	firstAmount, err := fixedpoint.MulDiv(liquidity, first, lp)
	if err != nil {
		return nil, nil, err
	}
	secondAmount, err := fixedpoint.MulDiv(liquidity, second, lp)
	if err != nil {
		return nil, nil, err
	}
	return firstAmount, secondAmount, nil
}
