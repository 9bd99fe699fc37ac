package types

import (
	"fmt"
	"math"
)

// TransactionResult accumulates the fee charged across the contracts of a transaction.
type TransactionResult struct {
	Fee int64
}

func (r *TransactionResult) AddFee(fee int64) error {
	if fee < 0 || r.Fee > math.MaxInt64-fee {
		return fmt.Errorf("invalid fee %d added to %d", fee, r.Fee)
	}
	r.Fee += fee
	return nil
}

/*
Receipt is the post execution record of what the transaction spent on
bandwidth and energy, both in credit and in fee.
*/
type Receipt struct {
	_                 struct{} `cbor:",toarray"`
	NetUsage          int64          `json:"net_usage"`
	NetFee            int64          `json:"net_fee"`
	EnergyUsage       int64          `json:"energy_usage"`
	EnergyFee         int64          `json:"energy_fee"`
	OriginEnergyUsage int64          `json:"origin_energy_usage"`
	EnergyUsageTotal  int64          `json:"energy_usage_total"`
	Result            ContractStatus `json:"result"`
}

// Copy returns an independent copy of the receipt.
func (r *Receipt) Copy() *Receipt {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// TotalFee is the sum of bandwidth and energy fees.
func (r *Receipt) TotalFee() int64 {
	return r.NetFee + r.EnergyFee
}
