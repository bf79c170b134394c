package fixedpoint

import (
	"errors"
	"math/big"
	"testing"

	dexerrors "dexcore/core/errors"
)

func TestSubUnderflow(t *testing.T) {
	if _, err := Sub(big.NewInt(3), big.NewInt(4)); !errors.Is(err, dexerrors.ErrArithmetic) {
		t.Fatalf("expected arithmetic error, got %v", err)
	}
	out, err := Sub(big.NewInt(10), big.NewInt(4))
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if out.Int64() != 6 {
		t.Fatalf("unexpected difference %s", out)
	}
}

func TestMulDivMultipliesFirst(t *testing.T) {
	// (7 / 3) * 3 would lose the remainder.
	out, err := MulDiv(big.NewInt(7), big.NewInt(3), big.NewInt(3))
	if err != nil {
		t.Fatalf("muldiv: %v", err)
	}
	if out.Int64() != 7 {
		t.Fatalf("expected 7, got %s", out)
	}
	if _, err := MulDiv(big.NewInt(1), big.NewInt(1), big.NewInt(0)); !errors.Is(err, dexerrors.ErrArithmetic) {
		t.Fatalf("expected division by zero error, got %v", err)
	}
}

func TestMulDivCeil(t *testing.T) {
	cases := []struct {
		a, b, c int64
		want    int64
	}{
		{10, 1, 3, 4},
		{9, 1, 3, 3},
		{0, 5, 7, 0},
	}
	for _, tc := range cases {
		got, err := MulDivCeil(big.NewInt(tc.a), big.NewInt(tc.b), big.NewInt(tc.c))
		if err != nil {
			t.Fatalf("ceil %d*%d/%d: %v", tc.a, tc.b, tc.c, err)
		}
		if got.Int64() != tc.want {
			t.Fatalf("ceil %d*%d/%d: got %s want %d", tc.a, tc.b, tc.c, got, tc.want)
		}
	}
}

func TestPercentAndBps(t *testing.T) {
	if got := Percent(big.NewInt(1_000), 50); got.Sign() != 0 {
		t.Fatalf("expected truncated zero special fee, got %s", got)
	}
	if got := Percent(big.NewInt(100_000), 300); got.Int64() != 300 {
		t.Fatalf("unexpected percent %s", got)
	}
	if got := Bps(big.NewInt(1_000), 1_000); got.Int64() != 100 {
		t.Fatalf("unexpected bps %s", got)
	}
}

func TestSqrtFloor(t *testing.T) {
	got := Sqrt(new(big.Int).Mul(big.NewInt(1_001_000), big.NewInt(1_000_000)))
	if got.Int64() != 1_000_499 {
		t.Fatalf("unexpected sqrt %s", got)
	}
	if Sqrt(nil).Sign() != 0 {
		t.Fatalf("sqrt of nil should be zero")
	}
}

func TestToUint256Overflow(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 256)
	if _, err := ToUint256(huge); !errors.Is(err, dexerrors.ErrArithmetic) {
		t.Fatalf("expected overflow error, got %v", err)
	}
	word, err := ToUint256(big.NewInt(42))
	if err != nil || word.Uint64() != 42 {
		t.Fatalf("unexpected conversion %v %v", word, err)
	}
}

func TestCopyDoesNotAlias(t *testing.T) {
	src := big.NewInt(5)
	dup := Copy(src)
	dup.SetInt64(9)
	if src.Int64() != 5 {
		t.Fatalf("copy aliased source")
	}
}
