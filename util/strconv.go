package util

import (
	"strconv"
	"strings"
)

/*
AmountToString formats amount given in the smallest denomination as decimal
string with "decimals" fractional digits, ie AmountToString(1_500_000, 6)
returns "1.500000".
*/
func AmountToString(amount int64, decimals uint32) string {
	neg := amount < 0
	s := strconv.FormatUint(absUint64(amount), 10)
	if decimals > 0 {
		if n := int(decimals) + 1 - len(s); n > 0 {
			s = strings.Repeat("0", n) + s
		}
		dot := len(s) - int(decimals)
		s = s[:dot] + "." + s[dot:]
	}
	if neg {
		return "-" + s
	}
	return s
}

func absUint64(v int64) uint64 {
	if v < 0 {
		return uint64(^v) + 1
	}
	return uint64(v)
}
