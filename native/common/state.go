package common

import (
	"fmt"
	"strings"
)

// ContractState gates which operations a contract accepts.
type ContractState uint8

const (
	// StateInactive rejects every state-mutating call except withdrawals.
	StateInactive ContractState = iota
	// StateActive accepts every call.
	StateActive
	// StatePartialActive only accepts privileged setup calls such as the
	// owner's initial liquidity.
	StatePartialActive
)

func (s ContractState) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StatePartialActive:
		return "partial_active"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ParseContractState maps a configuration string onto a ContractState.
func ParseContractState(v string) (ContractState, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "active":
		return StateActive, nil
	case "inactive":
		return StateInactive, nil
	case "partial_active", "partial-active", "partialactive":
		return StatePartialActive, nil
	default:
		return StateInactive, fmt.Errorf("common: unknown contract state %q", v)
	}
}
