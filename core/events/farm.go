package events

import (
	"math/big"

	"dexcore/core/types"
	"dexcore/crypto"
)

const (
	TypeFarmEntered         = "farm.entered"
	TypeRewardsClaimed      = "farm.rewardsClaimed"
	TypeRewardsCompounded   = "farm.rewardsCompounded"
	TypeFarmExited          = "farm.exited"
	TypePenaltyApplied      = "farm.penaltyApplied"
	TypeUnbonded            = "farm.unbonded"
	TypeLockedRewardCreated = "locked.created"
)

// FarmEntered is emitted when a new position token is minted on enter.
type FarmEntered struct {
	Farm           crypto.Address
	Caller         crypto.Address
	Nonce          uint64
	Amount         *big.Int
	RewardPerShare *big.Int
	Merged         int
}

func (FarmEntered) EventType() string { return TypeFarmEntered }

func (e FarmEntered) Event() *types.Event {
	return &types.Event{
		Type: TypeFarmEntered,
		Attributes: map[string]string{
			"farm":           formatAddress(e.Farm),
			"caller":         formatAddress(e.Caller),
			"nonce":          formatUint(e.Nonce),
			"amount":         formatAmount(e.Amount),
			"rewardPerShare": formatAmount(e.RewardPerShare),
			"merged":         formatUint(uint64(e.Merged)),
		},
	}
}

// RewardsClaimed is emitted when rewards are paid out of a position.
type RewardsClaimed struct {
	Farm     crypto.Address
	Caller   crypto.Address
	OldNonce uint64
	NewNonce uint64
	Reward   *big.Int
}

func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

func (e RewardsClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsClaimed,
		Attributes: map[string]string{
			"farm":     formatAddress(e.Farm),
			"caller":   formatAddress(e.Caller),
			"oldNonce": formatUint(e.OldNonce),
			"newNonce": formatUint(e.NewNonce),
			"reward":   formatAmount(e.Reward),
		},
	}
}

// RewardsCompounded is emitted when rewards are folded into a position.
type RewardsCompounded struct {
	Farm      crypto.Address
	Caller    crypto.Address
	OldNonce  uint64
	NewNonce  uint64
	Reward    *big.Int
	NewAmount *big.Int
}

func (RewardsCompounded) EventType() string { return TypeRewardsCompounded }

func (e RewardsCompounded) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsCompounded,
		Attributes: map[string]string{
			"farm":      formatAddress(e.Farm),
			"caller":    formatAddress(e.Caller),
			"oldNonce":  formatUint(e.OldNonce),
			"newNonce":  formatUint(e.NewNonce),
			"reward":    formatAmount(e.Reward),
			"newAmount": formatAmount(e.NewAmount),
		},
	}
}

// FarmExited is emitted when a position is redeemed.
type FarmExited struct {
	Farm          crypto.Address
	Caller        crypto.Address
	Nonce         uint64
	FarmingAmount *big.Int
	Reward        *big.Int
	UnbondNonce   uint64
}

func (FarmExited) EventType() string { return TypeFarmExited }

func (e FarmExited) Event() *types.Event {
	return &types.Event{
		Type: TypeFarmExited,
		Attributes: map[string]string{
			"farm":          formatAddress(e.Farm),
			"caller":        formatAddress(e.Caller),
			"nonce":         formatUint(e.Nonce),
			"farmingAmount": formatAmount(e.FarmingAmount),
			"reward":        formatAmount(e.Reward),
			"unbondNonce":   formatUint(e.UnbondNonce),
		},
	}
}

// PenaltyApplied is the notice emitted when an early exit burns a share of
// the principal and reward.
type PenaltyApplied struct {
	Farm             crypto.Address
	Caller           crypto.Address
	PrincipalBurned  *big.Int
	RewardBurned     *big.Int
	EnteringEpoch    uint64
	CurrentEpoch     uint64
	MinFarmingEpochs uint64
}

func (PenaltyApplied) EventType() string { return TypePenaltyApplied }

func (e PenaltyApplied) Event() *types.Event {
	return &types.Event{
		Type: TypePenaltyApplied,
		Attributes: map[string]string{
			"farm":             formatAddress(e.Farm),
			"caller":           formatAddress(e.Caller),
			"principalBurned":  formatAmount(e.PrincipalBurned),
			"rewardBurned":     formatAmount(e.RewardBurned),
			"enteringEpoch":    formatUint(e.EnteringEpoch),
			"currentEpoch":     formatUint(e.CurrentEpoch),
			"minFarmingEpochs": formatUint(e.MinFarmingEpochs),
		},
	}
}

// Unbonded is emitted when an unbond token is redeemed.
type Unbonded struct {
	Farm   crypto.Address
	Caller crypto.Address
	Nonce  uint64
	Amount *big.Int
}

func (Unbonded) EventType() string { return TypeUnbonded }

func (e Unbonded) Event() *types.Event {
	return &types.Event{
		Type: TypeUnbonded,
		Attributes: map[string]string{
			"farm":   formatAddress(e.Farm),
			"caller": formatAddress(e.Caller),
			"nonce":  formatUint(e.Nonce),
			"amount": formatAmount(e.Amount),
		},
	}
}

// LockedRewardCreated is emitted by the locked token factory.
type LockedRewardCreated struct {
	Factory     crypto.Address
	Recipient   crypto.Address
	Token       string
	Amount      *big.Int
	Nonce       uint64
	UnlockEpoch uint64
}

func (LockedRewardCreated) EventType() string { return TypeLockedRewardCreated }

func (e LockedRewardCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeLockedRewardCreated,
		Attributes: map[string]string{
			"factory":     formatAddress(e.Factory),
			"recipient":   formatAddress(e.Recipient),
			"token":       e.Token,
			"amount":      formatAmount(e.Amount),
			"nonce":       formatUint(e.Nonce),
			"unlockEpoch": formatUint(e.UnlockEpoch),
		},
	}
}
