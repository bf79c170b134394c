package proxy

import (
	"context"
	"errors"
	"math/big"
	"testing"

	dexerrors "dexcore/core/errors"
	"dexcore/crypto"
)

func TestArgsRoundTrip(t *testing.T) {
	args, err := EncodeArgs("USDC-1234", big.NewInt(77), uint64(9))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var token string
	var amount big.Int
	var epoch uint64
	if err := DecodeArg(args, 0, &token); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if err := DecodeArg(args, 1, &amount); err != nil {
		t.Fatalf("decode amount: %v", err)
	}
	if err := DecodeArg(args, 2, &epoch); err != nil {
		t.Fatalf("decode epoch: %v", err)
	}
	if token != "USDC-1234" || amount.Int64() != 77 || epoch != 9 {
		t.Fatalf("unexpected args %q %s %d", token, &amount, epoch)
	}
}

func TestDecodeArgFailsClosed(t *testing.T) {
	var token string
	if err := DecodeArg(nil, 0, &token); !errors.Is(err, dexerrors.ErrDecoding) {
		t.Fatalf("expected decoding error for missing arg, got %v", err)
	}
	args, _ := EncodeArgs(uint64(5))
	var out []string
	if err := DecodeArg(args, 0, &out); !errors.Is(err, dexerrors.ErrDecoding) {
		t.Fatalf("expected decoding error for type mismatch, got %v", err)
	}
}

func TestNoopCallerRejects(t *testing.T) {
	_, err := NoopCaller{}.Call(context.Background(), Call{To: crypto.ContractAddress("pair", "X")})
	if !errors.Is(err, dexerrors.ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}
