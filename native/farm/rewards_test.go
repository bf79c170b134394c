package farm

import (
	"errors"
	"math/big"
	"testing"

	dexerrors "dexcore/core/errors"
)

func ledgerWith(supply, perBlock int64) RewardState {
	return RewardState{
		RewardPerShare:         new(big.Int),
		RewardReserve:          new(big.Int),
		FarmTokenSupply:        big.NewInt(supply),
		PerBlockRewardAmount:   big.NewInt(perBlock),
		DivisionSafetyConstant: new(big.Int).Set(DefaultDivisionSafetyConstant),
		Produced:               new(big.Int),
		RewardCapacity:         new(big.Int),
		ProduceRewards:         true,
	}
}

func TestGenerateAggregatedRewards(t *testing.T) {
	tests := []struct {
		name     string
		ledger   func() RewardState
		block    uint64
		funded   bool
		accrued  int64
		rps      string
		lastSeen uint64
	}{
		{
			name:     "proportional to elapsed blocks",
			ledger:   func() RewardState { return ledgerWith(150_000_000, 1_000) },
			block:    10,
			accrued:  10_000,
			rps:      "66666666",
			lastSeen: 10,
		},
		{
			name:     "zero supply only advances the checkpoint",
			ledger:   func() RewardState { return ledgerWith(0, 1_000) },
			block:    10,
			accrued:  0,
			rps:      "0",
			lastSeen: 10,
		},
		{
			name: "stopped emission",
			ledger: func() RewardState {
				l := ledgerWith(1_000, 1_000)
				l.ProduceRewards = false
				return l
			},
			block:    10,
			accrued:  0,
			rps:      "0",
			lastSeen: 10,
		},
		{
			name: "apr bound",
			ledger: func() RewardState {
				l := ledgerWith(1_000_000, 1_000)
				l.MaxAPRBps = 1_000
				return l
			},
			block:    BlocksPerYear,
			accrued:  100_000,
			rps:      "100000000000",
			lastSeen: BlocksPerYear,
		},
		{
			name: "funded capacity",
			ledger: func() RewardState {
				l := ledgerWith(1_000_000, 1_000)
				l.RewardCapacity = big.NewInt(5_000)
				return l
			},
			block:    10,
			funded:   true,
			accrued:  5_000,
			rps:      "5000000000",
			lastSeen: 10,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := tc.ledger()
			got := l.GenerateAggregatedRewards(tc.block, tc.funded)
			if got.Int64() != tc.accrued {
				t.Fatalf("accrued %s, want %d", got, tc.accrued)
			}
			if l.RewardPerShare.String() != tc.rps {
				t.Fatalf("reward per share %s, want %s", l.RewardPerShare, tc.rps)
			}
			if l.LastRewardBlock != tc.lastSeen {
				t.Fatalf("last reward block %d, want %d", l.LastRewardBlock, tc.lastSeen)
			}
			if l.RewardReserve.Int64() != tc.accrued {
				t.Fatalf("reserve %s, want %d", l.RewardReserve, tc.accrued)
			}
		})
	}
}

func TestGenerateIsIdempotentWithinBlock(t *testing.T) {
	l := ledgerWith(1_000, 10)
	l.GenerateAggregatedRewards(5, false)
	before := new(big.Int).Set(l.RewardPerShare)
	if got := l.GenerateAggregatedRewards(5, false); got.Sign() != 0 {
		t.Fatalf("second generation in the same block accrued %s", got)
	}
	if got := l.GenerateAggregatedRewards(3, false); got.Sign() != 0 {
		t.Fatalf("an older block must not accrue, got %s", got)
	}
	if l.RewardPerShare.Cmp(before) != 0 || l.LastRewardBlock != 5 {
		t.Fatalf("ledger moved: rps %s last %d", l.RewardPerShare, l.LastRewardBlock)
	}
}

func TestFundedCapacityExhausts(t *testing.T) {
	l := ledgerWith(1_000, 1_000)
	l.RewardCapacity = big.NewInt(2_500)
	l.GenerateAggregatedRewards(2, true)
	l.GenerateAggregatedRewards(4, true)
	if got := l.GenerateAggregatedRewards(6, true); got.Sign() != 0 {
		t.Fatalf("exhausted capacity accrued %s", got)
	}
	if l.Produced.Int64() != 2_500 {
		t.Fatalf("produced %s, want 2500", l.Produced)
	}
}

func TestRewardForPosition(t *testing.T) {
	dsc := DefaultDivisionSafetyConstant
	got, err := RewardForPosition(big.NewInt(100_000_000), big.NewInt(66_666_666), big.NewInt(0), dsc)
	if err != nil || got.Int64() != 6_666 {
		t.Fatalf("reward %v err %v", got, err)
	}
	got, err = RewardForPosition(big.NewInt(5), big.NewInt(9), big.NewInt(9), dsc)
	if err != nil || got.Sign() != 0 {
		t.Fatalf("fresh checkpoint earned %v err %v", got, err)
	}
	if _, err := RewardForPosition(big.NewInt(5), big.NewInt(1), big.NewInt(2), dsc); !errors.Is(err, dexerrors.ErrArithmetic) {
		t.Fatalf("checkpoint ahead of ledger must fail, got %v", err)
	}
}

func TestDecreaseRewardReserve(t *testing.T) {
	l := ledgerWith(1, 1)
	l.RewardReserve = big.NewInt(10)
	if err := l.DecreaseRewardReserve(big.NewInt(4)); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if err := l.DecreaseRewardReserve(big.NewInt(7)); !errors.Is(err, dexerrors.ErrInsufficientReserve) {
		t.Fatalf("expected insufficient reserve, got %v", err)
	}
	if l.RewardReserve.Int64() != 6 {
		t.Fatalf("reserve %s, want 6", l.RewardReserve)
	}
}

func TestWeightedRewardPerShareRoundsUp(t *testing.T) {
	parts := []positionPart{
		{amount: big.NewInt(2), rewardPerShare: big.NewInt(10)},
		{amount: big.NewInt(1), rewardPerShare: big.NewInt(11)},
	}
	got, err := weightedRewardPerShare(parts)
	if err != nil {
		t.Fatalf("weighted: %v", err)
	}
	// (20 + 11) / 3 = 10.33
	if got.Int64() != 11 {
		t.Fatalf("weighted checkpoint %s, want 11", got)
	}
}
