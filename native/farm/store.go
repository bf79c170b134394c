package farm

import (
	"errors"
	"strings"

	"dexcore/core/state"
)

var (
	errNilStore     = errors.New("farm store: state not configured")
	farmStatePrefix = []byte("farm/state/")
)

func farmStateKey(name string) []byte {
	trimmed := strings.TrimSpace(name)
	buf := make([]byte, len(farmStatePrefix)+len(trimmed))
	copy(buf, farmStatePrefix)
	copy(buf[len(farmStatePrefix):], trimmed)
	return buf
}

// Store persists one farm's state.
type Store struct {
	kv   state.KVStore
	name string
}

// NewStore binds a farm store to kv.
func NewStore(kv state.KVStore, name string) *Store {
	return &Store{kv: kv, name: name}
}

// LoadState reads the farm state. The boolean reports whether the farm has
// been initialised.
func (s *Store) LoadState() (*State, bool, error) {
	if s == nil || s.kv == nil {
		return nil, false, errNilStore
	}
	var st State
	ok, err := s.kv.KVGet(farmStateKey(s.name), &st)
	if err != nil || !ok {
		return nil, ok, err
	}
	st.Rewards = st.Rewards.Clone()
	return &st, true, nil
}

// SaveState writes the farm state.
func (s *Store) SaveState(st *State) error {
	if s == nil || s.kv == nil {
		return errNilStore
	}
	return s.kv.KVPut(farmStateKey(s.name), st)
}
