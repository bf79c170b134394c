package events

import (
	"math/big"
	"strconv"

	"dexcore/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddress(a crypto.Address) string {
	return a.String()
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
