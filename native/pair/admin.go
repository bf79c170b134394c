package pair

import (
	"fmt"

	dexerrors "dexcore/core/errors"
	"dexcore/crypto"
	nativecommon "dexcore/native/common"
)

// privileged loads the state after checking caller is the owner or router.
func (e *Engine) privileged(caller crypto.Address) (*State, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	if !st.isPrivileged(caller) {
		return nil, fmt.Errorf("pair %s: %w", e.params.Name, dexerrors.ErrUnauthorized)
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

// SetFeePercents replaces the total and special fee and toggles fee routing.
func (e *Engine) SetFeePercents(caller crypto.Address, total, special uint64, enabled bool) error {
	st, err := e.privileged(caller)
	if err != nil {
		return err
	}
	next := st.Fees.Clone()
	next.TotalFeePercent = total
	next.SpecialFeePercent = special
	next.Enabled = enabled
	if err := next.Validate(); err != nil {
		return err
	}
	st.Fees = next
	return e.save(st)
}

// AddFeeDestination registers (or re-targets) a fee receiver. The pair
// itself cannot receive a slice.
func (e *Engine) AddFeeDestination(caller crypto.Address, dest crypto.Address, token string) error {
	st, err := e.privileged(caller)
	if err != nil {
		return err
	}
	if dest == e.address {
		return fmt.Errorf("pair: %w: %s cannot be its own fee destination", dexerrors.ErrUnauthorized, e.params.Name)
	}
	token = normalizeToken(token)
	if token == "" {
		return fmt.Errorf("pair: %w: fee destination token required", dexerrors.ErrInvalidToken)
	}
	for i, existing := range st.Fees.Destinations {
		if existing.Address == dest {
			st.Fees.Destinations[i].Token = token
			return e.save(st)
		}
	}
	st.Fees.Destinations = append(st.Fees.Destinations, FeeDestination{Address: dest, Token: token})
	return e.save(st)
}

// RemoveFeeDestination drops a fee receiver.
func (e *Engine) RemoveFeeDestination(caller crypto.Address, dest crypto.Address) error {
	st, err := e.privileged(caller)
	if err != nil {
		return err
	}
	kept := st.Fees.Destinations[:0]
	for _, existing := range st.Fees.Destinations {
		if existing.Address != dest {
			kept = append(kept, existing)
		}
	}
	st.Fees.Destinations = kept
	return e.save(st)
}

// AddWhitelist allows addr to call the fee-less swap.
func (e *Engine) AddWhitelist(caller crypto.Address, addr crypto.Address) error {
	st, err := e.privileged(caller)
	if err != nil {
		return err
	}
	if !st.isWhitelisted(addr) {
		st.Whitelist = append(st.Whitelist, addr)
	}
	return e.save(st)
}

// AddTrustedPair registers a sibling pair used to convert fees into tokens
// this pair does not hold.
func (e *Engine) AddTrustedPair(caller crypto.Address, firstToken, secondToken string, addr crypto.Address) error {
	st, err := e.privileged(caller)
	if err != nil {
		return err
	}
	firstToken, secondToken = normalizeToken(firstToken), normalizeToken(secondToken)
	if firstToken == "" || secondToken == "" || firstToken == secondToken {
		return fmt.Errorf("pair: %w: trusted pair tokens", dexerrors.ErrInvalidToken)
	}
	if _, ok := st.trustedPair(firstToken, secondToken); ok {
		return nil
	}
	st.TrustedPairs = append(st.TrustedPairs, TrustedPair{FirstToken: firstToken, SecondToken: secondToken, Address: addr})
	return e.save(st)
}
