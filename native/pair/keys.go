package pair

import (
	"fmt"
	"strings"

	"dexcore/crypto"
)

var (
	pairStatePrefix       = []byte("pair/state/")
	pairObservationPrefix = []byte("pair/observation/")
	pairPendingPrefix     = []byte("pair/pending/")
)

func pairStateKey(name string) []byte {
	trimmed := strings.TrimSpace(name)
	buf := make([]byte, len(pairStatePrefix)+len(trimmed))
	copy(buf, pairStatePrefix)
	copy(buf[len(pairStatePrefix):], trimmed)
	return buf
}

func pairObservationKey(name string, index uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%d", pairObservationPrefix, strings.TrimSpace(name), index))
}

func pairPendingKey(name string, caller crypto.Address, token string) []byte {
	return []byte(fmt.Sprintf("%s%s/%x/%s", pairPendingPrefix, strings.TrimSpace(name), caller[:], token))
}
