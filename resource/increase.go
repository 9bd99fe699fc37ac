package resource

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"github.com/resmeter/resmeter/util"
)

/*
Increase advances usage counter "lastUsage", last updated at slot "lastSlot",
to slot "now" and adds "added" to it.

The old usage decays linearly and reaches zero after "window" slots:

	lastUsage * max(0, window - (now - lastSlot)) / window + added

When "now" is not after "lastSlot" the counter does not decay. The decay
product is computed exactly, ErrUsageOverflow is returned when the result
doesn't fit into int64.
*/
func Increase(lastUsage, added, lastSlot, now, window int64) (int64, error) {
	if lastUsage < 0 || added < 0 {
		return 0, fmt.Errorf("%w: last usage %d, added %d", ErrNegativeUsage, lastUsage, added)
	}
	if window <= 0 {
		return 0, fmt.Errorf("invalid window size %d", window)
	}

	var elapsed int64
	if now > lastSlot {
		elapsed = now - lastSlot
	}
	remaining := max(0, window-elapsed)

	decayed := uint256.NewInt(uint64(lastUsage))
	decayed.Mul(decayed, uint256.NewInt(uint64(remaining)))
	decayed.Div(decayed, uint256.NewInt(uint64(window)))

	// lastUsage*remaining/window <= lastUsage so it fits
	usage, ok := util.AddInt64(int64(decayed.Uint64()), added)
	if !ok {
		return 0, fmt.Errorf("%w: %d + %d", ErrUsageOverflow, decayed.Uint64(), added)
	}
	return usage, nil
}

/*
globalLimit converts frozen balance into credit limit:

	floor(floor(frozen / TrxPrecision) * totalLimit / totalWeight)

Balance below one TRX, or non-positive total weight, gives no credit.
*/
func globalLimit(frozen, totalLimit, totalWeight int64) int64 {
	if frozen < TrxPrecision || totalWeight <= 0 || totalLimit <= 0 {
		return 0
	}
	limit := uint256.NewInt(uint64(frozen / TrxPrecision))
	limit.Mul(limit, uint256.NewInt(uint64(totalLimit)))
	limit.Div(limit, uint256.NewInt(uint64(totalWeight)))
	if !limit.IsUint64() || limit.Uint64() > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(limit.Uint64())
}
