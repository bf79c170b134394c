package farm

import (
	"fmt"
	"math/big"

	dexerrors "dexcore/core/errors"
)

// Rewards returns a copy of the reward ledger as last persisted.
func (e *Engine) Rewards() (RewardState, error) {
	st, err := e.load()
	if err != nil {
		return RewardState{}, err
	}
	return st.Rewards.Clone(), nil
}

// Position decodes the attributes of position nonce.
func (e *Engine) Position(nonce uint64) (FarmAttributes, error) {
	if _, err := e.load(); err != nil {
		return FarmAttributes{}, err
	}
	inst, err := e.bank.IssuedInstance(e.params.FarmToken, nonce, e.address)
	if err != nil {
		return FarmAttributes{}, err
	}
	return DecodeFarmAttributes(inst.Attributes)
}

// CalculateRewardsForGivenPosition simulates the reward amount units of a
// position carrying attributes would earn at block. Nothing is persisted.
func (e *Engine) CalculateRewardsForGivenPosition(amount *big.Int, attributes []byte, block uint64) (*big.Int, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	attrs, err := DecodeFarmAttributes(attributes)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 || amount.Cmp(attrs.CurrentFarmAmount) > 0 {
		return nil, fmt.Errorf("farm: %w: amount outside position size", dexerrors.ErrInvalidAmount)
	}
	ledger := st.Rewards.Clone()
	ledger.GenerateAggregatedRewards(block, e.params.FundedRewards)
	if attrs.RewardPerShare.Cmp(ledger.RewardPerShare) > 0 {
		return nil, fmt.Errorf("%w: position checkpoint ahead of ledger", dexerrors.ErrDecoding)
	}
	return RewardForPosition(amount, ledger.RewardPerShare, attrs.RewardPerShare, ledger.DivisionSafetyConstant)
}
