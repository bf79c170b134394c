package pair

import (
	"context"
	"fmt"
	"math/big"

	dexerrors "dexcore/core/errors"
	"dexcore/core/proxy"
	"dexcore/crypto"
)

const (
	FunctionGetEquivalent               = "getEquivalent"
	FunctionGetSafePriceByDefaultOffset = "getSafePriceByDefaultOffset"
)

// Dispatch serves cross-contract calls. Payments attached to the call have
// already been credited to the pair.
func (e *Engine) Dispatch(ctx context.Context, call proxy.Call) ([]byte, error) {
	switch call.Function {
	case FunctionSwapNoFeeAndForward:
		if len(call.Payments) != 1 || call.Payments[0].Nonce != 0 {
			return nil, fmt.Errorf("pair: %w: exactly one fungible payment required", dexerrors.ErrInvalidToken)
		}
		var tokenOut string
		var destination crypto.Address
		if err := proxy.DecodeArg(call.Args, 0, &tokenOut); err != nil {
			return nil, err
		}
		if err := proxy.DecodeArg(call.Args, 1, &destination); err != nil {
			return nil, err
		}
		payment := call.Payments[0]
		out, err := e.swapNoFeeAndForward(call.From, payment.Token, payment.Amount, tokenOut, destination)
		if err != nil {
			return nil, err
		}
		return proxy.EncodeResult(out)
	case FunctionGetEquivalent, FunctionGetSafePriceByDefaultOffset:
		var token string
		amount := new(big.Int)
		if err := proxy.DecodeArg(call.Args, 0, &token); err != nil {
			return nil, err
		}
		if err := proxy.DecodeArg(call.Args, 1, amount); err != nil {
			return nil, err
		}
		var (
			out *big.Int
			err error
		)
		if call.Function == FunctionGetEquivalent {
			out, err = e.GetEquivalent(token, amount)
		} else {
			out, err = e.GetSafePriceByDefaultOffset(token, amount)
		}
		if err != nil {
			return nil, err
		}
		return proxy.EncodeResult(out)
	default:
		return nil, fmt.Errorf("pair %s: %w: %q", e.params.Name, dexerrors.ErrUnknownFunction, call.Function)
	}
}

var _ proxy.Handler = (*Engine)(nil)
