package farm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	dexerrors "dexcore/core/errors"
	"dexcore/core/fixedpoint"
)

// attributeKind tags the schema of encoded token attributes so a position
// can never be decoded as an unbond receipt or the reverse.
type attributeKind byte

const (
	kindFarmPosition attributeKind = 0x01
	kindUnbond       attributeKind = 0x02
)

// FarmAttributes are carried by every farm position token.
type FarmAttributes struct {
	RewardPerShare        *big.Int
	EnteringEpoch         uint64
	OriginalEnteringEpoch uint64
	InitialFarmingAmount  *big.Int
	CompoundedReward      *big.Int
	CurrentFarmAmount     *big.Int
}

// UnbondAttributes are carried by staking unbond receipts.
type UnbondAttributes struct {
	UnlockEpoch uint64
}

func encodeTagged(kind attributeKind, body interface{}) ([]byte, error) {
	payload, err := rlp.EncodeToBytes(body)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(kind)}, payload...), nil
}

func decodeTagged(raw []byte, kind attributeKind, out interface{}) error {
	if len(raw) < 2 {
		return fmt.Errorf("%w: attributes too short", dexerrors.ErrDecoding)
	}
	if attributeKind(raw[0]) != kind {
		return fmt.Errorf("%w: attribute kind %#x, want %#x", dexerrors.ErrDecoding, raw[0], byte(kind))
	}
	// DecodeBytes rejects trailing bytes and missing or surplus list
	// elements, so no field is ever defaulted.
	if err := rlp.DecodeBytes(raw[1:], out); err != nil {
		return fmt.Errorf("%w: %v", dexerrors.ErrDecoding, err)
	}
	return nil
}

// Encode serialises farm position attributes.
func (a FarmAttributes) Encode() ([]byte, error) {
	return encodeTagged(kindFarmPosition, &a)
}

// DecodeFarmAttributes parses and validates position attributes.
func DecodeFarmAttributes(raw []byte) (FarmAttributes, error) {
	var attrs FarmAttributes
	if err := decodeTagged(raw, kindFarmPosition, &attrs); err != nil {
		return FarmAttributes{}, err
	}
	if err := attrs.validate(); err != nil {
		return FarmAttributes{}, err
	}
	return attrs, nil
}

func (a FarmAttributes) validate() error {
	if a.RewardPerShare == nil || a.InitialFarmingAmount == nil || a.CompoundedReward == nil || a.CurrentFarmAmount == nil {
		return fmt.Errorf("%w: incomplete position attributes", dexerrors.ErrDecoding)
	}
	if !fixedpoint.IsPositive(a.CurrentFarmAmount) {
		return fmt.Errorf("%w: empty position", dexerrors.ErrDecoding)
	}
	if fixedpoint.Add(a.InitialFarmingAmount, a.CompoundedReward).Cmp(a.CurrentFarmAmount) != 0 {
		return fmt.Errorf("%w: initial %s plus compounded %s differs from current %s",
			dexerrors.ErrDecoding, a.InitialFarmingAmount, a.CompoundedReward, a.CurrentFarmAmount)
	}
	if a.OriginalEnteringEpoch > a.EnteringEpoch {
		return fmt.Errorf("%w: original epoch %d after entering epoch %d", dexerrors.ErrDecoding, a.OriginalEnteringEpoch, a.EnteringEpoch)
	}
	return nil
}

// scaled returns the attributes describing amount units of the position.
// The compounded share is split by rule of three and the initial share takes
// the remainder, so the parts always sum to amount.
func (a FarmAttributes) scaled(amount *big.Int) (FarmAttributes, error) {
	if amount.Cmp(a.CurrentFarmAmount) == 0 {
		return a.clone(), nil
	}
	compounded, err := fixedpoint.RuleOfThree(amount, a.CurrentFarmAmount, a.CompoundedReward)
	if err != nil {
		return FarmAttributes{}, err
	}
	initial, err := fixedpoint.Sub(amount, compounded)
	if err != nil {
		return FarmAttributes{}, err
	}
	out := a.clone()
	out.CompoundedReward = compounded
	out.InitialFarmingAmount = initial
	out.CurrentFarmAmount = fixedpoint.Copy(amount)
	return out, nil
}

func (a FarmAttributes) clone() FarmAttributes {
	a.RewardPerShare = fixedpoint.Copy(a.RewardPerShare)
	a.InitialFarmingAmount = fixedpoint.Copy(a.InitialFarmingAmount)
	a.CompoundedReward = fixedpoint.Copy(a.CompoundedReward)
	a.CurrentFarmAmount = fixedpoint.Copy(a.CurrentFarmAmount)
	return a
}

// Encode serialises unbond attributes.
func (a UnbondAttributes) Encode() ([]byte, error) {
	return encodeTagged(kindUnbond, &a)
}

// DecodeUnbondAttributes parses unbond receipt attributes.
func DecodeUnbondAttributes(raw []byte) (UnbondAttributes, error) {
	var attrs UnbondAttributes
	if err := decodeTagged(raw, kindUnbond, &attrs); err != nil {
		return UnbondAttributes{}, err
	}
	return attrs, nil
}
