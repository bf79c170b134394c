// Package proxy models synchronous cross-contract calls. A call either
// returns its result or fails, and a failed call leaves no state behind.
package proxy

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	dexerrors "dexcore/core/errors"
	"dexcore/crypto"
)

// Payment is a token transfer attached to a call. Nonce zero denotes a
// fungible token.
type Payment struct {
	Token  string
	Nonce  uint64
	Amount *big.Int
}

// Call describes a synchronous invocation of a sibling contract.
type Call struct {
	From     crypto.Address
	To       crypto.Address
	Function string
	Args     [][]byte
	Payments []Payment
}

// Caller performs cross-contract calls on behalf of a contract.
type Caller interface {
	Call(ctx context.Context, call Call) ([]byte, error)
}

// Handler is implemented by contracts reachable through a Caller.
type Handler interface {
	Dispatch(ctx context.Context, call Call) ([]byte, error)
}

// EncodeArgs rlp-encodes every value into its own argument slot.
func EncodeArgs(values ...interface{}) ([][]byte, error) {
	args := make([][]byte, 0, len(values))
	for i, v := range values {
		encoded, err := rlp.EncodeToBytes(v)
		if err != nil {
			return nil, fmt.Errorf("proxy: encode arg %d: %w", i, err)
		}
		args = append(args, encoded)
	}
	return args, nil
}

// DecodeArg decodes args[index] into out. Missing or malformed arguments fail
// with ErrDecoding.
func DecodeArg(args [][]byte, index int, out interface{}) error {
	if index < 0 || index >= len(args) {
		return fmt.Errorf("%w: missing argument %d", dexerrors.ErrDecoding, index)
	}
	if err := rlp.DecodeBytes(args[index], out); err != nil {
		return fmt.Errorf("%w: argument %d: %v", dexerrors.ErrDecoding, index, err)
	}
	return nil
}

// EncodeResult rlp-encodes a call result.
func EncodeResult(v interface{}) ([]byte, error) {
	return rlp.EncodeToBytes(v)
}

// DecodeResult decodes a call result into out.
func DecodeResult(data []byte, out interface{}) error {
	if err := rlp.DecodeBytes(data, out); err != nil {
		return fmt.Errorf("%w: call result: %v", dexerrors.ErrDecoding, err)
	}
	return nil
}

// NoopCaller rejects every call. Engines fall back to it when no router is
// wired.
type NoopCaller struct{}

// Call implements Caller.
func (NoopCaller) Call(_ context.Context, call Call) ([]byte, error) {
	return nil, fmt.Errorf("proxy: %w: no route to %s", dexerrors.ErrNotConfigured, call.To)
}
