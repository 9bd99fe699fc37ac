package types

import (
	"maps"
)

type (
	// Account is the persisted account record. Usage counters are decayed
	// values as of the slot stored in the matching "latest" field.
	Account struct {
		_                   struct{} `cbor:",toarray"`
		Address             Address
		Balance             int64
		FrozenBalance       int64 // frozen for bandwidth
		EnergyFrozenBalance int64 // frozen for energy

		NetUsage          int64
		LatestConsumeTime int64 // slot

		FreeNetUsage          int64
		LatestConsumeFreeTime int64 // slot

		// wall clock time (ms) of the latest operation
		LatestOperationTime int64

		EnergyUsage                int64
		LatestConsumeTimeForEnergy int64 // slot

		AssetMap                 map[string]int64
		FreeAssetNetUsage        map[string]int64
		LatestAssetOperationTime map[string]int64 // slot
	}

	// AssetIssue is the persisted record of a token.
	AssetIssue struct {
		_                       struct{} `cbor:",toarray"`
		Name                    string
		OwnerAddress            Address
		FreeAssetNetLimit       int64 // per holder
		PublicFreeAssetNetLimit int64 // shared by all holders
		PublicFreeAssetNetUsage int64
		PublicLatestFreeNetTime int64 // slot
	}
)

func NewAccount(addr Address, balance int64) *Account {
	return &Account{Address: addr, Balance: balance}
}

// Copy returns deep copy of the account.
func (a *Account) Copy() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.AssetMap = maps.Clone(a.AssetMap)
	c.FreeAssetNetUsage = maps.Clone(a.FreeAssetNetUsage)
	c.LatestAssetOperationTime = maps.Clone(a.LatestAssetOperationTime)
	return &c
}

func (a *Account) AssetBalance(name string) int64 {
	return a.AssetMap[name]
}

func (a *Account) SetAssetBalance(name string, value int64) {
	if a.AssetMap == nil {
		a.AssetMap = make(map[string]int64)
	}
	a.AssetMap[name] = value
}

func (a *Account) FreeAssetNetUsageOf(name string) int64 {
	return a.FreeAssetNetUsage[name]
}

func (a *Account) SetFreeAssetNetUsage(name string, value int64) {
	if a.FreeAssetNetUsage == nil {
		a.FreeAssetNetUsage = make(map[string]int64)
	}
	a.FreeAssetNetUsage[name] = value
}

func (a *Account) LatestAssetOperationTimeOf(name string) int64 {
	return a.LatestAssetOperationTime[name]
}

func (a *Account) SetLatestAssetOperationTime(name string, slot int64) {
	if a.LatestAssetOperationTime == nil {
		a.LatestAssetOperationTime = make(map[string]int64)
	}
	a.LatestAssetOperationTime[name] = slot
}

func (a *AssetIssue) Copy() *AssetIssue {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
