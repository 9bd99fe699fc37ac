package util

import (
	"errors"
	"math"
)

var ErrOverflow = errors.New("integer overflow")

// AddInt64 adds two int64 values, ok is false when the result does not fit into int64.
func AddInt64(a, b int64) (sum int64, ok bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}

// MulInt64 multiplies two int64 values, ok is false when the result does not fit into int64.
func MulInt64(a, b int64) (product int64, ok bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) || p/b != a {
		return 0, false
	}
	return p, true
}

/*
SumInt64 adds all the arguments, returns ErrOverflow when the sum does not
fit into int64.
*/
func SumInt64(values ...int64) (int64, error) {
	var sum int64
	for _, v := range values {
		var ok bool
		if sum, ok = AddInt64(sum, v); !ok {
			return 0, ErrOverflow
		}
	}
	return sum, nil
}
