package runtime

import (
	"fmt"
	"strings"

	"dexcore/config"
	"dexcore/crypto"
	nativecommon "dexcore/native/common"
	"dexcore/native/farm"
	"dexcore/native/locked"
	"dexcore/native/pair"
)

// PairAddress is the contract address of the pair configured under name.
func PairAddress(name string) crypto.Address {
	return pair.Params{Name: strings.TrimSpace(name)}.Address()
}

func pairParams(c config.Pair) (pair.Params, error) {
	owner, err := config.ResolveAccount(c.Owner)
	if err != nil {
		return pair.Params{}, fmt.Errorf("pair %s: owner: %w", c.Name, err)
	}
	status, err := nativecommon.ParseContractState(c.InitialState)
	if err != nil {
		return pair.Params{}, fmt.Errorf("pair %s: %w", c.Name, err)
	}
	bootstrap, err := pair.ParseBootstrapPolicy(c.Bootstrap)
	if err != nil {
		return pair.Params{}, err
	}
	return pair.Params{
		Name:              strings.TrimSpace(c.Name),
		FirstToken:        c.FirstToken,
		SecondToken:       c.SecondToken,
		LPToken:           c.LPToken,
		TotalFeePercent:   c.TotalFeePercent,
		SpecialFeePercent: c.SpecialFeePercent,
		Owner:             owner,
		InitialState:      status,
		Bootstrap:         bootstrap,
		MaxObservations:   c.MaxObservations,
		SafePriceOffset:   c.SafePriceOffset,
	}, nil
}

func lockedParams(c config.Locked) (locked.Params, error) {
	owner, err := config.ResolveAccount(c.Owner)
	if err != nil {
		return locked.Params{}, fmt.Errorf("locked %s: owner: %w", c.Name, err)
	}
	return locked.Params{
		Name:        strings.TrimSpace(c.Name),
		LockedToken: c.LockedToken,
		LockEpochs:  c.LockEpochs,
		Owner:       owner,
	}, nil
}

func farmParams(c config.Farm, factories map[string]*locked.Factory) (farm.Params, error) {
	owner, err := config.ResolveAccount(c.Owner)
	if err != nil {
		return farm.Params{}, fmt.Errorf("farm %s: owner: %w", c.Name, err)
	}
	status, err := nativecommon.ParseContractState(c.InitialState)
	if err != nil {
		return farm.Params{}, fmt.Errorf("farm %s: %w", c.Name, err)
	}
	variant, err := farm.ParseVariant(c.Variant)
	if err != nil {
		return farm.Params{}, err
	}
	perBlock, err := config.ParseAmount(c.PerBlockRewardAmount)
	if err != nil {
		return farm.Params{}, fmt.Errorf("farm %s: %w", c.Name, err)
	}
	params := farm.Params{
		Name:                 strings.TrimSpace(c.Name),
		Variant:              variant,
		FarmingToken:         c.FarmingToken,
		FarmToken:            c.FarmToken,
		RewardToken:          c.RewardToken,
		UnbondToken:          c.UnbondToken,
		Owner:                owner,
		InitialState:         status,
		PerBlockRewardAmount: perBlock,
		MinimumFarmingEpochs: c.MinimumFarmingEpochs,
		PenaltyBps:           c.PenaltyBps,
		MinUnbondEpochs:      c.MinUnbondEpochs,
		ProduceRewards:       c.ProduceRewards,
		FundedRewards:        c.FundedRewards,
		MaxAPRBps:            c.MaxAPRBps,
	}
	if strings.TrimSpace(c.DivisionSafetyConstant) != "" {
		if params.DivisionSafetyConstant, err = config.ParseAmount(c.DivisionSafetyConstant); err != nil {
			return farm.Params{}, fmt.Errorf("farm %s: %w", c.Name, err)
		}
	}
	if name := strings.TrimSpace(c.LockedFactory); name != "" {
		factory, ok := factories[name]
		if !ok {
			return farm.Params{}, fmt.Errorf("farm %s: unknown locked factory %q", c.Name, name)
		}
		params.LockedRewards = true
		params.LockedFactory = factory.Address()
	}
	return params, nil
}

// bootstrap initialises every configured contract and applies the
// configured cross-contract wiring. Every step is idempotent.
func (r *Runtime) bootstrap(s *Session) error {
	for _, f := range r.factoryOrder {
		factory := r.factories[f]
		for _, farmName := range r.farmOrder {
			engine := r.farms[farmName]
			if engine.Params().LockedRewards && engine.Params().LockedFactory == factory.Address() {
				if err := factory.AddCreator(factory.Params().Owner, engine.Address()); err != nil {
					return err
				}
			}
		}
	}
	for _, c := range r.cfg.Pairs {
		engine := r.pairs[strings.TrimSpace(c.Name)]
		if err := engine.Initialize(); err != nil {
			return err
		}
		owner := engine.Params().Owner
		for _, d := range c.FeeDestinations {
			dest, err := config.ResolveAccount(d.Address)
			if err != nil {
				return err
			}
			if err := engine.AddFeeDestination(owner, dest, d.Token); err != nil {
				return err
			}
		}
		for _, tp := range c.TrustedPairs {
			if err := engine.AddTrustedPair(owner, tp.FirstToken, tp.SecondToken, PairAddress(tp.Pair)); err != nil {
				return err
			}
		}
		for _, w := range c.Whitelist {
			addr := PairAddress(w)
			if _, ok := r.pairs[strings.TrimSpace(w)]; !ok {
				var err error
				if addr, err = config.ResolveAccount(w); err != nil {
					return err
				}
			}
			if err := engine.AddWhitelist(owner, addr); err != nil {
				return err
			}
		}
	}
	for _, name := range r.farmOrder {
		if err := r.farms[name].Initialize(); err != nil {
			return err
		}
	}
	return nil
}
