package farm

import (
	"context"
	"fmt"
	"math/big"

	dexerrors "dexcore/core/errors"
	"dexcore/core/events"
	"dexcore/core/fixedpoint"
	"dexcore/core/proxy"
	"dexcore/crypto"
)

// Enter deposits amount of the farming token and mints one position. Farm
// tokens passed in merge are burned and folded into the new position; their
// entry checkpoints are averaged by amount, so their pending rewards carry
// over instead of being paid.
func (e *Engine) Enter(ctx context.Context, caller crypto.Address, amount *big.Int, merge []proxy.Payment) (*EnterResult, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	if err := e.requireActive(st); err != nil {
		return nil, err
	}
	if !fixedpoint.IsPositive(amount) {
		return nil, fmt.Errorf("farm: %w: deposit must be positive", dexerrors.ErrInvalidAmount)
	}
	if err := e.accrue(st); err != nil {
		return nil, err
	}

	parts := []positionPart{{
		amount:         fixedpoint.Copy(amount),
		rewardPerShare: fixedpoint.Copy(st.Rewards.RewardPerShare),
		initial:        fixedpoint.Copy(amount),
		compounded:     fixedpoint.Zero(),
		originalEpoch:  e.block.Epoch,
	}}
	for _, payment := range merge {
		if normalizeToken(payment.Token) != e.params.FarmToken {
			return nil, fmt.Errorf("farm: %w: cannot merge %s", dexerrors.ErrInvalidToken, payment.Token)
		}
		attrs, err := e.loadPosition(st, caller, payment.Nonce, payment.Amount)
		if err != nil {
			return nil, err
		}
		if err := e.bank.BurnInstance(caller, e.params.FarmToken, payment.Nonce, payment.Amount); err != nil {
			return nil, err
		}
		parts = append(parts, positionPart{
			amount:         attrs.CurrentFarmAmount,
			rewardPerShare: attrs.RewardPerShare,
			initial:        attrs.InitialFarmingAmount,
			compounded:     attrs.CompoundedReward,
			originalEpoch:  attrs.OriginalEnteringEpoch,
		})
	}

	if err := e.bank.Transfer(caller, e.address, e.params.FarmingToken, 0, amount); err != nil {
		return nil, err
	}
	rps, err := weightedRewardPerShare(parts)
	if err != nil {
		return nil, err
	}
	merged := FarmAttributes{
		RewardPerShare:        rps,
		EnteringEpoch:         e.block.Epoch,
		OriginalEnteringEpoch: e.block.Epoch,
		InitialFarmingAmount:  fixedpoint.Zero(),
		CompoundedReward:      fixedpoint.Zero(),
		CurrentFarmAmount:     fixedpoint.Zero(),
	}
	for _, p := range parts {
		merged.InitialFarmingAmount.Add(merged.InitialFarmingAmount, p.initial)
		merged.CompoundedReward.Add(merged.CompoundedReward, p.compounded)
		merged.CurrentFarmAmount.Add(merged.CurrentFarmAmount, p.amount)
		if p.originalEpoch < merged.OriginalEnteringEpoch {
			merged.OriginalEnteringEpoch = p.originalEpoch
		}
	}
	st.Rewards.addSupply(amount)

	nonce, err := e.mintPosition(caller, merged)
	if err != nil {
		return nil, err
	}
	if err := e.save(st); err != nil {
		return nil, err
	}
	e.emit(events.FarmEntered{
		Farm:           e.address,
		Caller:         caller,
		Nonce:          nonce,
		Amount:         fixedpoint.Copy(merged.CurrentFarmAmount),
		RewardPerShare: fixedpoint.Copy(rps),
		Merged:         len(merge),
	})
	return &EnterResult{Nonce: nonce, Amount: fixedpoint.Copy(merged.CurrentFarmAmount), Attributes: merged}, nil
}

// harvest settles the reward of amount units of a position: the ledger is
// accrued, the reward leaves the reserve and the old units are burned.
func (e *Engine) harvest(st *State, caller crypto.Address, nonce uint64, amount *big.Int) (FarmAttributes, *big.Int, error) {
	if err := e.accrue(st); err != nil {
		return FarmAttributes{}, nil, err
	}
	attrs, err := e.loadPosition(st, caller, nonce, amount)
	if err != nil {
		return FarmAttributes{}, nil, err
	}
	reward, err := RewardForPosition(amount, st.Rewards.RewardPerShare, attrs.RewardPerShare, st.Rewards.DivisionSafetyConstant)
	if err != nil {
		return FarmAttributes{}, nil, err
	}
	if err := st.Rewards.DecreaseRewardReserve(reward); err != nil {
		return FarmAttributes{}, nil, err
	}
	if err := e.bank.BurnInstance(caller, e.params.FarmToken, nonce, amount); err != nil {
		return FarmAttributes{}, nil, err
	}
	return attrs, reward, nil
}

// Claim pays the reward of amount units of position nonce and reissues them
// checkpointed at the current reward per share.
func (e *Engine) Claim(ctx context.Context, caller crypto.Address, nonce uint64, amount *big.Int) (*ClaimResult, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	if err := e.requireActive(st); err != nil {
		return nil, err
	}
	attrs, reward, err := e.harvest(st, caller, nonce, amount)
	if err != nil {
		return nil, err
	}
	attrs.RewardPerShare = fixedpoint.Copy(st.Rewards.RewardPerShare)
	newNonce, err := e.mintPosition(caller, attrs)
	if err != nil {
		return nil, err
	}
	lockedNonce, err := e.payReward(ctx, caller, reward)
	if err != nil {
		return nil, err
	}
	if err := e.save(st); err != nil {
		return nil, err
	}
	e.emit(events.RewardsClaimed{
		Farm:     e.address,
		Caller:   caller,
		OldNonce: nonce,
		NewNonce: newNonce,
		Reward:   fixedpoint.Copy(reward),
	})
	return &ClaimResult{
		Nonce:       newNonce,
		Amount:      fixedpoint.Copy(attrs.CurrentFarmAmount),
		Reward:      reward,
		Attributes:  attrs,
		LockedNonce: lockedNonce,
	}, nil
}

// Compound folds the reward of amount units back into the position. It is
// only possible when the reward token is the farming token.
func (e *Engine) Compound(ctx context.Context, caller crypto.Address, nonce uint64, amount *big.Int) (*ClaimResult, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if !e.params.Compoundable() {
		return nil, fmt.Errorf("farm %s: %w: reward %s is not the farming token", e.params.Name, dexerrors.ErrCompoundNotAllowed, e.params.RewardToken)
	}
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	if err := e.requireActive(st); err != nil {
		return nil, err
	}
	attrs, reward, err := e.harvest(st, caller, nonce, amount)
	if err != nil {
		return nil, err
	}
	attrs.RewardPerShare = fixedpoint.Copy(st.Rewards.RewardPerShare)
	attrs.CompoundedReward = fixedpoint.Add(attrs.CompoundedReward, reward)
	attrs.CurrentFarmAmount = fixedpoint.Add(attrs.CurrentFarmAmount, reward)
	st.Rewards.addSupply(reward)
	newNonce, err := e.mintPosition(caller, attrs)
	if err != nil {
		return nil, err
	}
	if err := e.save(st); err != nil {
		return nil, err
	}
	e.emit(events.RewardsCompounded{
		Farm:      e.address,
		Caller:    caller,
		OldNonce:  nonce,
		NewNonce:  newNonce,
		Reward:    fixedpoint.Copy(reward),
		NewAmount: fixedpoint.Copy(attrs.CurrentFarmAmount),
	})
	return &ClaimResult{
		Nonce:      newNonce,
		Amount:     fixedpoint.Copy(attrs.CurrentFarmAmount),
		Reward:     reward,
		Attributes: attrs,
	}, nil
}

// Exit redeems amount units of position nonce. Farms return the principal
// at once, burning a penalty when the position is younger than the minimum
// farming epochs; the penalty hits the initial deposit and the reward but
// not previously compounded rewards. Staking farms lock the principal in an
// unbond token instead.
func (e *Engine) Exit(ctx context.Context, caller crypto.Address, nonce uint64, amount *big.Int) (*ExitResult, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	attrs, reward, err := e.harvest(st, caller, nonce, amount)
	if err != nil {
		return nil, err
	}
	if err := st.Rewards.subSupply(amount); err != nil {
		return nil, err
	}
	result := &ExitResult{FarmingAmount: fixedpoint.Copy(amount), Reward: reward}

	switch e.params.Variant {
	case VariantStaking:
		result.UnlockEpoch = e.block.Epoch + e.params.MinUnbondEpochs
		encoded, err := UnbondAttributes{UnlockEpoch: result.UnlockEpoch}.Encode()
		if err != nil {
			return nil, err
		}
		result.UnbondNonce, err = e.bank.CreateInstance(e.address, caller, e.params.UnbondToken, amount, encoded)
		if err != nil {
			return nil, err
		}
	default:
		if e.params.PenaltyBps > 0 && penaltyApplies(attrs.EnteringEpoch, e.params.MinimumFarmingEpochs, e.block.Epoch) {
			penalty, err := e.burnPenalty(caller, attrs, reward)
			if err != nil {
				return nil, err
			}
			result.Penalty = penalty
			result.FarmingAmount = new(big.Int).Sub(result.FarmingAmount, penalty.Principal)
			result.Reward = new(big.Int).Sub(result.Reward, penalty.Reward)
		}
		if err := e.bank.Transfer(e.address, caller, e.params.FarmingToken, 0, result.FarmingAmount); err != nil {
			return nil, err
		}
	}

	result.LockedNonce, err = e.payReward(ctx, caller, result.Reward)
	if err != nil {
		return nil, err
	}
	if err := e.save(st); err != nil {
		return nil, err
	}
	e.emit(events.FarmExited{
		Farm:          e.address,
		Caller:        caller,
		Nonce:         nonce,
		FarmingAmount: fixedpoint.Copy(result.FarmingAmount),
		Reward:        fixedpoint.Copy(result.Reward),
		UnbondNonce:   result.UnbondNonce,
	})
	return result, nil
}

func (e *Engine) burnPenalty(caller crypto.Address, attrs FarmAttributes, reward *big.Int) (*Penalty, error) {
	penalty := &Penalty{
		Principal: fixedpoint.Bps(attrs.InitialFarmingAmount, e.params.PenaltyBps),
		Reward:    fixedpoint.Bps(reward, e.params.PenaltyBps),
	}
	if err := e.bank.Burn(e.address, e.params.FarmingToken, penalty.Principal); err != nil {
		return nil, err
	}
	if err := e.bank.Burn(e.address, e.params.RewardToken, penalty.Reward); err != nil {
		return nil, err
	}
	e.metrics.ObservePenalty(e.params.Name)
	e.logger.Info("farm early exit penalised",
		"farm", e.params.Name,
		"caller", caller.String(),
		"principal", penalty.Principal.String(),
		"reward", penalty.Reward.String())
	e.emit(events.PenaltyApplied{
		Farm:             e.address,
		Caller:           caller,
		PrincipalBurned:  fixedpoint.Copy(penalty.Principal),
		RewardBurned:     fixedpoint.Copy(penalty.Reward),
		EnteringEpoch:    attrs.EnteringEpoch,
		CurrentEpoch:     e.block.Epoch,
		MinFarmingEpochs: e.params.MinimumFarmingEpochs,
	})
	return penalty, nil
}

// Unbond redeems caller's whole holding of unbond token nonce for the
// farming token once its unlock epoch is reached.
func (e *Engine) Unbond(caller crypto.Address, nonce uint64) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if e.params.Variant != VariantStaking {
		return nil, fmt.Errorf("farm %s: %w: unbond requires a staking farm", e.params.Name, dexerrors.ErrInvalidToken)
	}
	if _, err := e.load(); err != nil {
		return nil, err
	}
	inst, err := e.bank.IssuedInstance(e.params.UnbondToken, nonce, e.address)
	if err != nil {
		return nil, err
	}
	attrs, err := DecodeUnbondAttributes(inst.Attributes)
	if err != nil {
		return nil, err
	}
	if e.block.Epoch < attrs.UnlockEpoch {
		return nil, fmt.Errorf("farm %s: %w: unlocks at epoch %d, now %d", e.params.Name, dexerrors.ErrUnbondTooEarly, attrs.UnlockEpoch, e.block.Epoch)
	}
	held, err := e.bank.Balance(caller, e.params.UnbondToken, nonce)
	if err != nil {
		return nil, err
	}
	if held.Sign() == 0 {
		return nil, fmt.Errorf("farm: %s/%d: %w", e.params.UnbondToken, nonce, dexerrors.ErrPositionNotFound)
	}
	if err := e.bank.BurnInstance(caller, e.params.UnbondToken, nonce, held); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(e.address, caller, e.params.FarmingToken, 0, held); err != nil {
		return nil, err
	}
	e.metrics.ObserveUnbond(e.params.Name)
	e.emit(events.Unbonded{Farm: e.address, Caller: caller, Nonce: nonce, Amount: fixedpoint.Copy(held)})
	return held, nil
}
