package farm

import (
	"errors"
	"math/big"
	"testing"

	dexerrors "dexcore/core/errors"
)

func samplePosition() FarmAttributes {
	return FarmAttributes{
		RewardPerShare:        big.NewInt(42),
		EnteringEpoch:         7,
		OriginalEnteringEpoch: 3,
		InitialFarmingAmount:  big.NewInt(900),
		CompoundedReward:      big.NewInt(100),
		CurrentFarmAmount:     big.NewInt(1_000),
	}
}

func TestFarmAttributesDecodeStrict(t *testing.T) {
	raw, err := samplePosition().Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeFarmAttributes(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.CurrentFarmAmount.Int64() != 1_000 || decoded.EnteringEpoch != 7 {
		t.Fatalf("unexpected attributes %+v", decoded)
	}

	unbond, err := UnbondAttributes{UnlockEpoch: 9}.Encode()
	if err != nil {
		t.Fatalf("encode unbond: %v", err)
	}
	broken := samplePosition()
	broken.CompoundedReward = big.NewInt(101)
	inconsistent, err := broken.Encode()
	if err != nil {
		t.Fatalf("encode broken: %v", err)
	}
	empty := samplePosition()
	empty.InitialFarmingAmount, empty.CompoundedReward, empty.CurrentFarmAmount = big.NewInt(0), big.NewInt(0), big.NewInt(0)
	emptyRaw, err := empty.Encode()
	if err != nil {
		t.Fatalf("encode empty: %v", err)
	}

	cases := map[string][]byte{
		"nil":            nil,
		"tag only":       {byte(kindFarmPosition)},
		"wrong kind":     unbond,
		"trailing bytes": append(append([]byte(nil), raw...), 0x01),
		"truncated":      raw[:len(raw)-2],
		"inconsistent":   inconsistent,
		"empty position": emptyRaw,
	}
	for name, input := range cases {
		if _, err := DecodeFarmAttributes(input); !errors.Is(err, dexerrors.ErrDecoding) {
			t.Fatalf("%s: expected decoding error, got %v", name, err)
		}
	}
}

func TestUnbondAttributesRejectPositions(t *testing.T) {
	raw, err := samplePosition().Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeUnbondAttributes(raw); !errors.Is(err, dexerrors.ErrDecoding) {
		t.Fatalf("expected decoding error, got %v", err)
	}
	raw, err = UnbondAttributes{UnlockEpoch: 12}.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	attrs, err := DecodeUnbondAttributes(raw)
	if err != nil || attrs.UnlockEpoch != 12 {
		t.Fatalf("decode: %+v %v", attrs, err)
	}
}

func TestScaledSplitsCompoundedShare(t *testing.T) {
	part, err := samplePosition().scaled(big.NewInt(333))
	if err != nil {
		t.Fatalf("scale: %v", err)
	}
	// 333 * 100 / 1000 = 33 compounded, the rest initial.
	if part.CompoundedReward.Int64() != 33 || part.InitialFarmingAmount.Int64() != 300 || part.CurrentFarmAmount.Int64() != 333 {
		t.Fatalf("unexpected split %+v", part)
	}
	if part.RewardPerShare.Int64() != 42 || part.EnteringEpoch != 7 {
		t.Fatalf("checkpoint must be preserved: %+v", part)
	}
}
