package config

import (
	"fmt"
	"math/big"
	"strings"

	"dexcore/crypto"
)

// Telemetry configures OpenTelemetry export and the Prometheus endpoint.
type Telemetry struct {
	ServiceName    string            `toml:"ServiceName"`
	Endpoint       string            `toml:"Endpoint"`
	Insecure       bool              `toml:"Insecure"`
	Headers        map[string]string `toml:"Headers"`
	Traces         bool              `toml:"Traces"`
	Metrics        bool              `toml:"Metrics"`
	SampleRatio    float64           `toml:"SampleRatio"`
	MetricsAddress string            `toml:"MetricsAddress"`
}

// FeeDestination receives a slice of the special fee. Token is what the
// destination wants to be paid in.
type FeeDestination struct {
	Address string `toml:"Address"`
	Token   string `toml:"Token"`
}

// TrustedPair names a sibling pair used to convert fee slices.
type TrustedPair struct {
	FirstToken  string `toml:"FirstToken"`
	SecondToken string `toml:"SecondToken"`
	Pair        string `toml:"Pair"`
}

// Pair configures one liquidity pool.
type Pair struct {
	Name              string           `toml:"Name"`
	FirstToken        string           `toml:"FirstToken"`
	SecondToken       string           `toml:"SecondToken"`
	LPToken           string           `toml:"LPToken"`
	TotalFeePercent   uint64           `toml:"TotalFeePercent"`
	SpecialFeePercent uint64           `toml:"SpecialFeePercent"`
	Owner             string           `toml:"Owner"`
	InitialState      string           `toml:"InitialState"`
	Bootstrap         string           `toml:"Bootstrap"`
	MaxObservations   uint64           `toml:"MaxObservations"`
	SafePriceOffset   uint64           `toml:"SafePriceOffset"`
	FeeDestinations   []FeeDestination `toml:"FeeDestinations"`
	TrustedPairs      []TrustedPair    `toml:"TrustedPairs"`
	// Whitelist lists callers allowed to swap without fees, typically
	// sibling pairs by name.
	Whitelist []string `toml:"Whitelist"`
}

// Farm configures one farm or staking contract.
type Farm struct {
	Name                   string `toml:"Name"`
	Variant                string `toml:"Variant"`
	FarmingToken           string `toml:"FarmingToken"`
	FarmToken              string `toml:"FarmToken"`
	RewardToken            string `toml:"RewardToken"`
	UnbondToken            string `toml:"UnbondToken"`
	Owner                  string `toml:"Owner"`
	InitialState           string `toml:"InitialState"`
	PerBlockRewardAmount   string `toml:"PerBlockRewardAmount"`
	DivisionSafetyConstant string `toml:"DivisionSafetyConstant"`
	MinimumFarmingEpochs   uint64 `toml:"MinimumFarmingEpochs"`
	PenaltyBps             uint64 `toml:"PenaltyBps"`
	MinUnbondEpochs        uint64 `toml:"MinUnbondEpochs"`
	ProduceRewards         bool   `toml:"ProduceRewards"`
	FundedRewards          bool   `toml:"FundedRewards"`
	MaxAPRBps              uint64 `toml:"MaxAPRBps"`
	// LockedFactory names a [[Locked]] factory; rewards are then paid in
	// locked tokens.
	LockedFactory string `toml:"LockedFactory"`
}

// Locked configures a locked token factory.
type Locked struct {
	Name        string `toml:"Name"`
	LockedToken string `toml:"LockedToken"`
	LockEpochs  uint64 `toml:"LockEpochs"`
	Owner       string `toml:"Owner"`
}

// ResolveAccount maps a configured account onto an address. Bech32 strings
// are decoded; anything else is treated as a named account.
func ResolveAccount(v string) (crypto.Address, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return crypto.Address{}, fmt.Errorf("empty account")
	}
	if strings.HasPrefix(strings.ToLower(v), crypto.AddressPrefix+"1") {
		return crypto.DecodeAddress(v)
	}
	return crypto.ContractAddress("user", v), nil
}

// ParseAmount parses a non-negative base-10 integer. Empty means zero.
func ParseAmount(v string) (*big.Int, error) {
	v = strings.TrimSpace(strings.ReplaceAll(v, "_", ""))
	if v == "" {
		return new(big.Int), nil
	}
	amount, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", v)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", v)
	}
	return amount, nil
}
