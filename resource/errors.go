package resource

import "errors"

var (
	ErrAccountResourceInsufficient = errors.New("account resource insufficient")
	ErrContractValidate            = errors.New("contract validation failed")
	ErrTooBigTransactionResult     = errors.New("transaction result is too big")
	ErrBalanceInsufficient         = errors.New("balance insufficient")

	ErrUsageOverflow = errors.New("usage overflow")
	ErrNegativeUsage = errors.New("negative usage")
)
