package config

import (
	"fmt"
	"strings"
)

const (
	maxFeePercent = 100_000
	maxBps        = 10_000
)

// ValidateConfig checks the configuration before any contract is built.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	switch cfg.StorageBackend {
	case BackendLevelDB, BackendBolt, BackendMemory:
	default:
		return fmt.Errorf("config: unknown storage backend %q", cfg.StorageBackend)
	}
	if r := cfg.Telemetry.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry: sample ratio %v outside [0, 1]", r)
	}

	issued := issuedTokens{}
	pairs := make(map[string]struct{}, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return fmt.Errorf("pairs: name required")
		}
		if _, dup := pairs[name]; dup {
			return fmt.Errorf("pairs: duplicate pair %q", name)
		}
		pairs[name] = struct{}{}
		if err := issued.claim(p.LPToken, "pair "+name); err != nil {
			return err
		}
		if p.TotalFeePercent >= maxFeePercent {
			return fmt.Errorf("pair %s: total fee %d must be below %d", name, p.TotalFeePercent, maxFeePercent)
		}
		if p.SpecialFeePercent > p.TotalFeePercent {
			return fmt.Errorf("pair %s: special fee %d exceeds total fee %d", name, p.SpecialFeePercent, p.TotalFeePercent)
		}
		if _, err := ResolveAccount(p.Owner); err != nil {
			return fmt.Errorf("pair %s: owner: %w", name, err)
		}
		for _, d := range p.FeeDestinations {
			if _, err := ResolveAccount(d.Address); err != nil {
				return fmt.Errorf("pair %s: fee destination: %w", name, err)
			}
			if strings.TrimSpace(d.Token) == "" {
				return fmt.Errorf("pair %s: fee destination %s needs a token", name, d.Address)
			}
		}
	}
	for _, p := range cfg.Pairs {
		for _, tp := range p.TrustedPairs {
			if _, ok := pairs[strings.TrimSpace(tp.Pair)]; !ok {
				return fmt.Errorf("pair %s: trusted pair %q is not configured", p.Name, tp.Pair)
			}
		}
	}

	factories := make(map[string]struct{}, len(cfg.Locked))
	for _, l := range cfg.Locked {
		name := strings.TrimSpace(l.Name)
		if name == "" || strings.TrimSpace(l.LockedToken) == "" {
			return fmt.Errorf("locked: name and token required")
		}
		if _, err := ResolveAccount(l.Owner); err != nil {
			return fmt.Errorf("locked %s: owner: %w", name, err)
		}
		factories[name] = struct{}{}
		if err := issued.claim(l.LockedToken, "locked "+name); err != nil {
			return err
		}
	}

	farms := make(map[string]struct{}, len(cfg.Farms))
	for _, f := range cfg.Farms {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("farms: name required")
		}
		if _, dup := farms[name]; dup {
			return fmt.Errorf("farms: duplicate farm %q", name)
		}
		farms[name] = struct{}{}
		if err := issued.claim(f.FarmToken, "farm "+name); err != nil {
			return err
		}
		if strings.TrimSpace(f.UnbondToken) != "" {
			if err := issued.claim(f.UnbondToken, "farm "+name); err != nil {
				return err
			}
		}
		if _, err := ResolveAccount(f.Owner); err != nil {
			return fmt.Errorf("farm %s: owner: %w", name, err)
		}
		if _, err := ParseAmount(f.PerBlockRewardAmount); err != nil {
			return fmt.Errorf("farm %s: per block reward: %w", name, err)
		}
		if strings.TrimSpace(f.DivisionSafetyConstant) != "" {
			dsc, err := ParseAmount(f.DivisionSafetyConstant)
			if err != nil {
				return fmt.Errorf("farm %s: division safety constant: %w", name, err)
			}
			if dsc.Sign() == 0 {
				return fmt.Errorf("farm %s: division safety constant must be positive", name)
			}
		}
		if f.PenaltyBps > maxBps {
			return fmt.Errorf("farm %s: penalty %d bps exceeds %d", name, f.PenaltyBps, maxBps)
		}
		if f.LockedFactory != "" {
			if _, ok := factories[strings.TrimSpace(f.LockedFactory)]; !ok {
				return fmt.Errorf("farm %s: locked factory %q is not configured", name, f.LockedFactory)
			}
		}
	}
	return nil
}

// issuedTokens maps every token a contract mints to its issuer. Each
// contract owns its token identifiers exclusively.
type issuedTokens map[string]string

func (t issuedTokens) claim(token, issuer string) error {
	id := strings.ToUpper(strings.TrimSpace(token))
	if id == "" {
		return fmt.Errorf("%s: issued token required", issuer)
	}
	if owner, taken := t[id]; taken {
		return fmt.Errorf("%s: token %s is already issued by %s", issuer, id, owner)
	}
	t[id] = issuer
	return nil
}
