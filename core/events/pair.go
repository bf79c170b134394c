package events

import (
	"math/big"

	"dexcore/core/types"
	"dexcore/crypto"
)

const (
	TypeSwapExecuted     = "pair.swap"
	TypeLiquidityAdded   = "pair.liquidityAdded"
	TypeLiquidityRemoved = "pair.liquidityRemoved"
	TypeFeeRouted        = "pair.feeRouted"
	TypeFeeReinjected    = "pair.feeReinjected"
)

// SwapExecuted is emitted after a swap settles.
type SwapExecuted struct {
	Pair      crypto.Address
	Caller    crypto.Address
	TokenIn   string
	AmountIn  *big.Int
	TokenOut  string
	AmountOut *big.Int
	FeeAmount *big.Int
	Round     uint64
}

func (SwapExecuted) EventType() string { return TypeSwapExecuted }

func (e SwapExecuted) Event() *types.Event {
	return &types.Event{
		Type: TypeSwapExecuted,
		Attributes: map[string]string{
			"pair":      formatAddress(e.Pair),
			"caller":    formatAddress(e.Caller),
			"tokenIn":   e.TokenIn,
			"amountIn":  formatAmount(e.AmountIn),
			"tokenOut":  e.TokenOut,
			"amountOut": formatAmount(e.AmountOut),
			"fee":       formatAmount(e.FeeAmount),
			"round":     formatUint(e.Round),
		},
	}
}

// LiquidityAdded is emitted when liquidity shares are minted.
type LiquidityAdded struct {
	Pair         crypto.Address
	Caller       crypto.Address
	FirstAmount  *big.Int
	SecondAmount *big.Int
	Liquidity    *big.Int
	TotalSupply  *big.Int
}

func (LiquidityAdded) EventType() string { return TypeLiquidityAdded }

func (e LiquidityAdded) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidityAdded,
		Attributes: map[string]string{
			"pair":         formatAddress(e.Pair),
			"caller":       formatAddress(e.Caller),
			"firstAmount":  formatAmount(e.FirstAmount),
			"secondAmount": formatAmount(e.SecondAmount),
			"liquidity":    formatAmount(e.Liquidity),
			"totalSupply":  formatAmount(e.TotalSupply),
		},
	}
}

// LiquidityRemoved is emitted when liquidity shares are burned.
type LiquidityRemoved struct {
	Pair         crypto.Address
	Caller       crypto.Address
	FirstAmount  *big.Int
	SecondAmount *big.Int
	Liquidity    *big.Int
	TotalSupply  *big.Int
}

func (LiquidityRemoved) EventType() string { return TypeLiquidityRemoved }

func (e LiquidityRemoved) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidityRemoved,
		Attributes: map[string]string{
			"pair":         formatAddress(e.Pair),
			"caller":       formatAddress(e.Caller),
			"firstAmount":  formatAmount(e.FirstAmount),
			"secondAmount": formatAmount(e.SecondAmount),
			"liquidity":    formatAmount(e.Liquidity),
			"totalSupply":  formatAmount(e.TotalSupply),
		},
	}
}

// FeeRouted is emitted for every fee slice delivered to a destination.
type FeeRouted struct {
	Pair        crypto.Address
	Destination crypto.Address
	Token       string
	Amount      *big.Int
	Burned      bool
}

func (FeeRouted) EventType() string { return TypeFeeRouted }

func (e FeeRouted) Event() *types.Event {
	burned := "false"
	if e.Burned {
		burned = "true"
	}
	return &types.Event{
		Type: TypeFeeRouted,
		Attributes: map[string]string{
			"pair":        formatAddress(e.Pair),
			"destination": formatAddress(e.Destination),
			"token":       e.Token,
			"amount":      formatAmount(e.Amount),
			"burned":      burned,
		},
	}
}

// FeeReinjected is emitted when a fee slice falls back to the pool reserve.
type FeeReinjected struct {
	Pair   crypto.Address
	Token  string
	Amount *big.Int
	Reason string
}

func (FeeReinjected) EventType() string { return TypeFeeReinjected }

func (e FeeReinjected) Event() *types.Event {
	return &types.Event{
		Type: TypeFeeReinjected,
		Attributes: map[string]string{
			"pair":   formatAddress(e.Pair),
			"token":  e.Token,
			"amount": formatAmount(e.Amount),
			"reason": e.Reason,
		},
	}
}
