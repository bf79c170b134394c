package farm

import (
	"fmt"
	"math/big"

	dexerrors "dexcore/core/errors"
	"dexcore/core/fixedpoint"
)

var (
	basisPoints   = big.NewInt(BasisPoints)
	blocksPerYear = big.NewInt(BlocksPerYear)
)

// GenerateAggregatedRewards advances the ledger to block. Rewards for the
// elapsed blocks become distributable and raise the reward per share; the
// amount accrued is returned so the caller can mint it. With no farm tokens
// in circulation the checkpoint moves without accruing anything.
func (r *RewardState) GenerateAggregatedRewards(block uint64, funded bool) *big.Int {
	if block <= r.LastRewardBlock {
		return fixedpoint.Zero()
	}
	elapsed := fixedpoint.FromUint64(block - r.LastRewardBlock)
	r.LastRewardBlock = block
	if !r.ProduceRewards || !fixedpoint.IsPositive(r.FarmTokenSupply) {
		return fixedpoint.Zero()
	}
	accrued := fixedpoint.Mul(elapsed, r.PerBlockRewardAmount)
	if r.MaxAPRBps > 0 {
		// supply * apr * elapsed / (10_000 * blocks per year)
		bound := fixedpoint.Mul(fixedpoint.Mul(r.FarmTokenSupply, fixedpoint.FromUint64(r.MaxAPRBps)), elapsed)
		bound.Quo(bound, fixedpoint.Mul(basisPoints, blocksPerYear))
		accrued = fixedpoint.Min(accrued, bound)
	}
	if funded {
		accrued = fixedpoint.Min(accrued, fixedpoint.SaturatingSub(r.RewardCapacity, r.Produced))
	}
	if accrued.Sign() == 0 {
		return accrued
	}
	increase := fixedpoint.Mul(accrued, r.DivisionSafetyConstant)
	increase.Quo(increase, r.FarmTokenSupply)
	r.RewardPerShare = fixedpoint.Add(r.RewardPerShare, increase)
	r.RewardReserve = fixedpoint.Add(r.RewardReserve, accrued)
	r.Produced = fixedpoint.Add(r.Produced, accrued)
	return accrued
}

// RewardForPosition returns amount * (current - entry) / dsc. A checkpoint
// ahead of the ledger means the position was forged or the ledger went
// backwards, both fatal.
func RewardForPosition(amount, currentRPS, entryRPS, dsc *big.Int) (*big.Int, error) {
	delta, err := fixedpoint.Sub(currentRPS, entryRPS)
	if err != nil {
		return nil, fmt.Errorf("farm: position checkpoint %s ahead of ledger %s: %w", entryRPS, currentRPS, err)
	}
	return fixedpoint.MulDiv(amount, delta, dsc)
}

// DecreaseRewardReserve takes amount out of the undistributed rewards.
func (r *RewardState) DecreaseRewardReserve(amount *big.Int) error {
	if amount.Cmp(fixedpoint.Copy(r.RewardReserve)) > 0 {
		return fmt.Errorf("farm: %w: reward %s exceeds reserve %s", dexerrors.ErrInsufficientReserve, amount, r.RewardReserve)
	}
	r.RewardReserve = new(big.Int).Sub(r.RewardReserve, amount)
	return nil
}

func (r *RewardState) addSupply(amount *big.Int) {
	r.FarmTokenSupply = fixedpoint.Add(r.FarmTokenSupply, amount)
}

func (r *RewardState) subSupply(amount *big.Int) error {
	next, err := fixedpoint.Sub(r.FarmTokenSupply, amount)
	if err != nil {
		return fmt.Errorf("farm: %w: exit of %s exceeds farm supply %s", dexerrors.ErrInsufficientSupply, amount, r.FarmTokenSupply)
	}
	r.FarmTokenSupply = next
	return nil
}

// penaltyApplies reports whether exiting at epoch is early.
func penaltyApplies(enteringEpoch, minEpochs, epoch uint64) bool {
	return enteringEpoch+minEpochs > epoch
}

// weightedRewardPerShare averages entry checkpoints weighted by amount,
// rounding up so merging never creates rewards.
func weightedRewardPerShare(parts []positionPart) (*big.Int, error) {
	weighted := fixedpoint.Zero()
	total := fixedpoint.Zero()
	for _, p := range parts {
		weighted.Add(weighted, fixedpoint.Mul(p.amount, p.rewardPerShare))
		total.Add(total, p.amount)
	}
	return fixedpoint.MulDivCeil(weighted, big.NewInt(1), total)
}

// positionPart is one contribution to a merged position.
type positionPart struct {
	amount         *big.Int
	rewardPerShare *big.Int
	initial        *big.Int
	compounded     *big.Int
	originalEpoch  uint64
}
