package pair

import (
	"errors"
	"math/big"

	"dexcore/core/state"
	"dexcore/crypto"
)

var errNilStore = errors.New("pair store: state not configured")

// Store persists one pair's state, observations and pending deposits.
type Store struct {
	kv   state.KVStore
	name string
}

// NewStore binds a pair store to kv.
func NewStore(kv state.KVStore, name string) *Store {
	return &Store{kv: kv, name: name}
}

func (s *Store) ready() error {
	if s == nil || s.kv == nil {
		return errNilStore
	}
	return nil
}

// LoadState reads the pair state. The boolean reports whether the pair has
// been initialised.
func (s *Store) LoadState() (*State, bool, error) {
	if err := s.ready(); err != nil {
		return nil, false, err
	}
	var st State
	ok, err := s.kv.KVGet(pairStateKey(s.name), &st)
	if err != nil || !ok {
		return nil, ok, err
	}
	st.Reserves = *st.Reserves.Clone()
	return &st, true, nil
}

// SaveState writes the pair state.
func (s *Store) SaveState(st *State) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.kv.KVPut(pairStateKey(s.name), st)
}

// Observation reads ring buffer slot index.
func (s *Store) Observation(index uint64) (PriceObservation, bool, error) {
	if err := s.ready(); err != nil {
		return PriceObservation{}, false, err
	}
	var obs PriceObservation
	ok, err := s.kv.KVGet(pairObservationKey(s.name, index), &obs)
	if err != nil || !ok {
		return PriceObservation{}, ok, err
	}
	return obs.Clone(), true, nil
}

// PutObservation writes ring buffer slot index.
func (s *Store) PutObservation(index uint64, obs PriceObservation) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.kv.KVPut(pairObservationKey(s.name, index), obs.Clone())
}

// Pending returns the staged deposit of caller for token, zero when absent.
func (s *Store) Pending(caller crypto.Address, token string) (*big.Int, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var dep PendingDeposit
	ok, err := s.kv.KVGet(pairPendingKey(s.name, caller, token), &dep)
	if err != nil {
		return nil, err
	}
	if !ok || dep.Amount == nil {
		return new(big.Int), nil
	}
	return dep.Amount, nil
}

// PutPending replaces the staged deposit; zero amounts clear it.
func (s *Store) PutPending(caller crypto.Address, token string, amount *big.Int) error {
	if err := s.ready(); err != nil {
		return err
	}
	key := pairPendingKey(s.name, caller, token)
	if amount == nil || amount.Sign() == 0 {
		return s.kv.KVDelete(key)
	}
	return s.kv.KVPut(key, &PendingDeposit{Caller: caller, Token: token, Amount: new(big.Int).Set(amount)})
}
