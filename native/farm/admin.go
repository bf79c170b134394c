package farm

import (
	"fmt"
	"math/big"

	dexerrors "dexcore/core/errors"
	"dexcore/core/fixedpoint"
	"dexcore/crypto"
	nativecommon "dexcore/native/common"
)

func (e *Engine) privileged(caller crypto.Address) (*State, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	if caller != st.Owner {
		return nil, fmt.Errorf("farm %s: %w", e.params.Name, dexerrors.ErrUnauthorized)
	}
	return st, nil
}

// SetStatus switches the contract state.
func (e *Engine) SetStatus(caller crypto.Address, status nativecommon.ContractState) error {
	st, err := e.privileged(caller)
	if err != nil {
		return err
	}
	st.Status = status
	return e.save(st)
}

// SetPerBlockRewardAmount changes the emission rate. Rewards up to the
// current block are generated at the old rate first.
func (e *Engine) SetPerBlockRewardAmount(caller crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("farm: %w: per block reward must be non-negative", dexerrors.ErrInvalidAmount)
	}
	st, err := e.privileged(caller)
	if err != nil {
		return err
	}
	if err := e.accrue(st); err != nil {
		return err
	}
	st.Rewards.PerBlockRewardAmount = fixedpoint.Copy(amount)
	return e.save(st)
}

// StartProduceRewards resumes emission from the current block.
func (e *Engine) StartProduceRewards(caller crypto.Address) error {
	return e.setProduceRewards(caller, true)
}

// EndProduceRewards stops emission after generating what is due.
func (e *Engine) EndProduceRewards(caller crypto.Address) error {
	return e.setProduceRewards(caller, false)
}

func (e *Engine) setProduceRewards(caller crypto.Address, produce bool) error {
	st, err := e.privileged(caller)
	if err != nil {
		return err
	}
	if err := e.accrue(st); err != nil {
		return err
	}
	st.Rewards.ProduceRewards = produce
	return e.save(st)
}

// TopUpRewards deposits reward tokens and raises the reward capacity of a
// funded farm.
func (e *Engine) TopUpRewards(caller crypto.Address, amount *big.Int) error {
	if !e.params.FundedRewards {
		return fmt.Errorf("farm %s: %w: rewards are minted", e.params.Name, dexerrors.ErrNotConfigured)
	}
	if !fixedpoint.IsPositive(amount) {
		return fmt.Errorf("farm: %w: top up must be positive", dexerrors.ErrInvalidAmount)
	}
	st, err := e.privileged(caller)
	if err != nil {
		return err
	}
	if err := e.accrue(st); err != nil {
		return err
	}
	if err := e.bank.Transfer(caller, e.address, e.params.RewardToken, 0, amount); err != nil {
		return err
	}
	st.Rewards.RewardCapacity = fixedpoint.Add(st.Rewards.RewardCapacity, amount)
	return e.save(st)
}
