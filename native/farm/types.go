package farm

import (
	"fmt"
	"math/big"
	"strings"

	dexerrors "dexcore/core/errors"
	"dexcore/crypto"
	nativecommon "dexcore/native/common"
)

const (
	// BasisPoints is the denominator of penalty and APR ratios.
	BasisPoints = 10_000
	// BlocksPerYear assumes six second blocks.
	BlocksPerYear = 5_256_000

	DefaultPenaltyBps      = 1_000
	DefaultMinFarmEpochs   = 3
	DefaultMinUnbondEpochs = 10
)

// DefaultDivisionSafetyConstant scales reward per share.
var DefaultDivisionSafetyConstant = big.NewInt(1_000_000_000_000)

// Variant selects how positions leave the farm.
type Variant string

const (
	// VariantFarm exits immediately, burning a penalty on early exits.
	VariantFarm Variant = "farm"
	// VariantStaking exits into an unbond token redeemable after a delay.
	VariantStaking Variant = "staking"
)

// ParseVariant maps a configuration string onto a Variant.
func ParseVariant(raw string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(raw))) {
	case "", VariantFarm:
		return VariantFarm, nil
	case VariantStaking:
		return VariantStaking, nil
	default:
		return "", fmt.Errorf("farm: unknown variant %q", raw)
	}
}

// RewardState is the reward per share ledger of one farm.
type RewardState struct {
	RewardPerShare         *big.Int
	RewardReserve          *big.Int
	FarmTokenSupply        *big.Int
	LastRewardBlock        uint64
	PerBlockRewardAmount   *big.Int
	DivisionSafetyConstant *big.Int
	// Produced is the total ever accrued; RewardCapacity bounds it when
	// rewards are funded rather than minted.
	Produced       *big.Int
	RewardCapacity *big.Int
	ProduceRewards bool
	MaxAPRBps      uint64
}

// Clone returns a deep copy of the ledger.
func (r RewardState) Clone() RewardState {
	clone := r
	clone.RewardPerShare = cloneBig(r.RewardPerShare)
	clone.RewardReserve = cloneBig(r.RewardReserve)
	clone.FarmTokenSupply = cloneBig(r.FarmTokenSupply)
	clone.PerBlockRewardAmount = cloneBig(r.PerBlockRewardAmount)
	clone.DivisionSafetyConstant = cloneBig(r.DivisionSafetyConstant)
	clone.Produced = cloneBig(r.Produced)
	clone.RewardCapacity = cloneBig(r.RewardCapacity)
	return clone
}

// State is the persisted farm contract state.
type State struct {
	Rewards RewardState
	Status  nativecommon.ContractState
	Owner   crypto.Address
}

// Params describe a farm instance. Zero values fall back to defaults.
type Params struct {
	Name         string
	Variant      Variant
	FarmingToken string
	FarmToken    string
	RewardToken  string
	UnbondToken  string
	Owner        crypto.Address
	InitialState nativecommon.ContractState

	PerBlockRewardAmount   *big.Int
	DivisionSafetyConstant *big.Int
	MinimumFarmingEpochs   uint64
	PenaltyBps             uint64
	MinUnbondEpochs        uint64
	ProduceRewards         bool
	// FundedRewards draws rewards from deposits made through TopUpRewards
	// instead of minting them.
	FundedRewards bool
	MaxAPRBps     uint64

	// LockedRewards pays rewards through the locked token factory.
	LockedRewards bool
	LockedFactory crypto.Address
}

// Address returns the farm contract address.
func (p Params) Address() crypto.Address {
	return crypto.ContractAddress("farm", strings.TrimSpace(p.Name))
}

// Validate checks the farm parameters.
func (p Params) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("farm: name required")
	}
	if p.FarmingToken == "" || p.FarmToken == "" || p.RewardToken == "" {
		return fmt.Errorf("farm %s: %w: farming, farm and reward tokens required", p.Name, dexerrors.ErrInvalidToken)
	}
	if p.FarmingToken == p.FarmToken || p.RewardToken == p.FarmToken {
		return fmt.Errorf("farm %s: %w: farm token must be distinct", p.Name, dexerrors.ErrInvalidToken)
	}
	if p.Variant == VariantStaking && (p.UnbondToken == "" || p.UnbondToken == p.FarmToken) {
		return fmt.Errorf("farm %s: %w: staking requires a distinct unbond token", p.Name, dexerrors.ErrInvalidToken)
	}
	if p.DivisionSafetyConstant == nil || p.DivisionSafetyConstant.Sign() <= 0 {
		return fmt.Errorf("farm %s: division safety constant must be positive", p.Name)
	}
	if p.PenaltyBps > BasisPoints {
		return fmt.Errorf("farm %s: penalty %d bps exceeds %d", p.Name, p.PenaltyBps, BasisPoints)
	}
	if p.PerBlockRewardAmount != nil && p.PerBlockRewardAmount.Sign() < 0 {
		return fmt.Errorf("farm %s: %w: negative per block reward", p.Name, dexerrors.ErrInvalidAmount)
	}
	if p.LockedRewards && p.LockedFactory.IsZero() {
		return fmt.Errorf("farm %s: locked rewards need a factory address", p.Name)
	}
	return nil
}

// Compoundable reports whether rewards can be folded into positions.
func (p Params) Compoundable() bool { return p.RewardToken == p.FarmingToken }

// EnterResult is the outcome of entering the farm.
type EnterResult struct {
	Nonce      uint64
	Amount     *big.Int
	Attributes FarmAttributes
}

// ClaimResult is the outcome of a claim or compound.
type ClaimResult struct {
	Nonce      uint64
	Amount     *big.Int
	Reward     *big.Int
	Attributes FarmAttributes
	// LockedNonce is the locked token instance when rewards are locked.
	LockedNonce uint64
}

// Penalty reports what an early exit burned.
type Penalty struct {
	Principal *big.Int
	Reward    *big.Int
}

// ExitResult is the outcome of exiting a position.
type ExitResult struct {
	FarmingAmount *big.Int
	Reward        *big.Int
	Penalty       *Penalty
	UnbondNonce   uint64
	UnlockEpoch   uint64
	LockedNonce   uint64
}

func normalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

func cloneBig(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}
