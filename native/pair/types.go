package pair

import (
	"fmt"
	"math/big"
	"strings"

	"dexcore/core/fixedpoint"
	"dexcore/crypto"
	nativecommon "dexcore/native/common"
)

const (
	// MaxPercentage is the fee denominator: 300 equals 0.3%.
	MaxPercentage = fixedpoint.PercentDenominator
	// MinimumLiquidity is the share floor locked on the first deposit.
	MinimumLiquidity = 1_000
	// DefaultMaxObservations is the safe price ring buffer capacity.
	DefaultMaxObservations = 65_536
	// DefaultSafePriceOffset is the window, in rounds, used by
	// GetSafePriceByDefaultOffset.
	DefaultSafePriceOffset = 600
)

// BootstrapPolicy selects how shares are minted for the first deposit.
type BootstrapPolicy string

const (
	// BootstrapSqrt mints sqrt(a*b) shares.
	BootstrapSqrt BootstrapPolicy = "sqrt"
	// BootstrapMin mints min(a, b) shares.
	BootstrapMin BootstrapPolicy = "min"
)

// ParseBootstrapPolicy defaults to BootstrapSqrt.
func ParseBootstrapPolicy(v string) (BootstrapPolicy, error) {
	switch BootstrapPolicy(strings.ToLower(strings.TrimSpace(v))) {
	case "", BootstrapSqrt:
		return BootstrapSqrt, nil
	case BootstrapMin:
		return BootstrapMin, nil
	default:
		return "", fmt.Errorf("pair: unknown bootstrap policy %q", v)
	}
}

// ReserveState holds the pooled reserves and the liquidity share supply.
type ReserveState struct {
	FirstToken    string
	SecondToken   string
	LPToken       string
	FirstReserve  *big.Int
	SecondReserve *big.Int
	LPSupply      *big.Int
}

// Clone returns a deep copy of the reserves.
func (r *ReserveState) Clone() *ReserveState {
	if r == nil {
		return nil
	}
	clone := *r
	clone.FirstReserve = fixedpoint.Copy(r.FirstReserve)
	clone.SecondReserve = fixedpoint.Copy(r.SecondReserve)
	clone.LPSupply = fixedpoint.Copy(r.LPSupply)
	return &clone
}

// FeeDestination receives an even slice of every special fee, converted to
// Token when it differs from the fee token. The zero address burns.
type FeeDestination struct {
	Address crypto.Address
	Token   string
}

// FeeConfig describes the trading fee split. Percentages are expressed over
// MaxPercentage.
type FeeConfig struct {
	TotalFeePercent   uint64
	SpecialFeePercent uint64
	Enabled           bool
	Destinations      []FeeDestination
}

// Validate enforces special <= total < 100%.
func (c FeeConfig) Validate() error {
	if c.TotalFeePercent >= MaxPercentage {
		return fmt.Errorf("pair: total fee %d must be below %d", c.TotalFeePercent, MaxPercentage)
	}
	if c.SpecialFeePercent > c.TotalFeePercent {
		return fmt.Errorf("pair: special fee %d exceeds total fee %d", c.SpecialFeePercent, c.TotalFeePercent)
	}
	return nil
}

// Clone returns a deep copy of the fee config.
func (c FeeConfig) Clone() FeeConfig {
	clone := c
	clone.Destinations = append([]FeeDestination(nil), c.Destinations...)
	return clone
}

// TrustedPair is a sibling pair allowed to convert fee slices into tokens
// outside this pair.
type TrustedPair struct {
	FirstToken  string
	SecondToken string
	Address     crypto.Address
}

// PriceObservation is one entry of the safe price ring buffer. Accumulators
// hold sum(reserve * rounds) since the first observation and
// WeightAccumulated holds the matching sum(rounds).
type PriceObservation struct {
	Round               uint64
	Timestamp           uint64
	FirstAccumulated    *big.Int
	SecondAccumulated   *big.Int
	LPSupplyAccumulated *big.Int
	WeightAccumulated   uint64
}

// Clone returns a deep copy of the observation.
func (o PriceObservation) Clone() PriceObservation {
	clone := o
	clone.FirstAccumulated = fixedpoint.Copy(o.FirstAccumulated)
	clone.SecondAccumulated = fixedpoint.Copy(o.SecondAccumulated)
	clone.LPSupplyAccumulated = fixedpoint.Copy(o.LPSupplyAccumulated)
	return clone
}

// OracleCursor tracks the ring buffer position. Indexes are 1-based; zero
// means the buffer is empty.
type OracleCursor struct {
	CurrentIndex uint64
	Count        uint64
}

// PendingDeposit stages one side of a two-sided deposit.
type PendingDeposit struct {
	Caller crypto.Address
	Token  string
	Amount *big.Int
}

// State is the persisted pair contract state.
type State struct {
	Reserves     ReserveState
	Fees         FeeConfig
	Status       nativecommon.ContractState
	Owner        crypto.Address
	Router       crypto.Address
	Oracle       OracleCursor
	Whitelist    []crypto.Address
	TrustedPairs []TrustedPair
}

func (s *State) isWhitelisted(addr crypto.Address) bool {
	for _, w := range s.Whitelist {
		if w == addr {
			return true
		}
	}
	return false
}

func (s *State) isPrivileged(addr crypto.Address) bool {
	return addr == s.Owner || (!s.Router.IsZero() && addr == s.Router)
}

func (s *State) trustedPair(a, b string) (crypto.Address, bool) {
	for _, p := range s.TrustedPairs {
		if (p.FirstToken == a && p.SecondToken == b) || (p.FirstToken == b && p.SecondToken == a) {
			return p.Address, true
		}
	}
	return crypto.Address{}, false
}

// Params configures a pair instance.
type Params struct {
	Name              string
	FirstToken        string
	SecondToken       string
	LPToken           string
	TotalFeePercent   uint64
	SpecialFeePercent uint64
	Owner             crypto.Address
	Router            crypto.Address
	InitialState      nativecommon.ContractState
	Bootstrap         BootstrapPolicy
	MaxObservations   uint64
	SafePriceOffset   uint64
}

// Validate checks the static configuration of a pair.
func (p Params) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("pair: name required")
	}
	first := normalizeToken(p.FirstToken)
	second := normalizeToken(p.SecondToken)
	lp := normalizeToken(p.LPToken)
	if first == "" || second == "" || lp == "" {
		return fmt.Errorf("pair %s: token identifiers required", p.Name)
	}
	if first == second || lp == first || lp == second {
		return fmt.Errorf("pair %s: token identifiers must be distinct", p.Name)
	}
	return FeeConfig{TotalFeePercent: p.TotalFeePercent, SpecialFeePercent: p.SpecialFeePercent}.Validate()
}

// Address is the deterministic contract address of the pair.
func (p Params) Address() crypto.Address {
	return crypto.ContractAddress("pair", p.Name)
}

func normalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

// SwapResult reports the settlement of a swap.
type SwapResult struct {
	TokenIn   string
	AmountIn  *big.Int
	TokenOut  string
	AmountOut *big.Int
	Refund    *big.Int
	FeeAmount *big.Int
	Routing   RoutingReport
}

// LiquidityResult reports an add or remove liquidity operation.
type LiquidityResult struct {
	FirstAmount  *big.Int
	SecondAmount *big.Int
	Liquidity    *big.Int
	Locked       *big.Int
	FirstRefund  *big.Int
	SecondRefund *big.Int
}
