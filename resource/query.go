package resource

import (
	"errors"
	"fmt"
	"sort"

	"github.com/resmeter/resmeter/state"
	"github.com/resmeter/resmeter/types"
)

type (
	// AccountResources is the resource view of an account as of the head slot.
	AccountResources struct {
		Address           types.Address `json:"address"`
		Slot              int64         `json:"slot,string"`
		Balance           int64         `json:"balance,string"`
		FreeNetLimit      int64         `json:"freeNetLimit,string"`
		FreeNetUsed       int64         `json:"freeNetUsed,string"`
		NetLimit          int64         `json:"netLimit,string"`
		NetUsed           int64         `json:"netUsed,string"`
		EnergyLimit       int64         `json:"energyLimit,string"`
		EnergyUsed        int64         `json:"energyUsed,string"`
		PublicNetLimit    int64         `json:"publicNetLimit,string"`
		PublicNetUsed     int64         `json:"publicNetUsed,string"`
		FreeAssetNetUsage []*AssetUsage `json:"freeAssetNetUsage,omitempty"`
	}

	AssetUsage struct {
		Name  string `json:"name"`
		Limit int64  `json:"limit,string"`
		Used  int64  `json:"used,string"`
	}
)

// FreeNetLeft returns the free bandwidth the account can still use.
func (r *AccountResources) FreeNetLeft() int64 {
	return max(r.FreeNetLimit-r.FreeNetUsed, 0)
}

// NetLeft returns the bandwidth left from the frozen balance.
func (r *AccountResources) NetLeft() int64 {
	return max(r.NetLimit-r.NetUsed, 0)
}

// EnergyLeft returns the energy left from the balance frozen for energy.
func (r *AccountResources) EnergyLeft() int64 {
	return max(r.EnergyLimit-r.EnergyUsed, 0)
}

/*
QueryAccountResources returns resources of the account "addr" with the usage
counters decayed to the head slot. Nothing is persisted.
*/
func QueryAccountResources(bp *BandwidthProcessor, ep *EnergyProcessor, addr types.Address) (*AccountResources, error) {
	if bp == nil || ep == nil {
		return nil, errors.New("resource processor is nil")
	}
	acc, err := bp.state.GetAccount(addr)
	if err != nil {
		return nil, fmt.Errorf("loading account %s: %w", addr, err)
	}
	now, err := bp.clock.HeadSlot()
	if err != nil {
		return nil, fmt.Errorf("reading head slot: %w", err)
	}
	if err := bp.UpdateUsage(acc, now); err != nil {
		return nil, err
	}
	if err := ep.UpdateUsage(acc, now); err != nil {
		return nil, err
	}

	res := &AccountResources{
		Address:     acc.Address,
		Slot:        now,
		Balance:     acc.Balance,
		FreeNetUsed: acc.FreeNetUsage,
		NetUsed:     acc.NetUsage,
		EnergyUsed:  acc.EnergyUsage,
	}
	if res.FreeNetLimit, err = bp.dp.Get(state.FreeNetLimit); err != nil {
		return nil, err
	}
	if res.NetLimit, err = bp.CalculateGlobalNetLimit(acc.FrozenBalance); err != nil {
		return nil, err
	}
	if res.EnergyLimit, err = ep.CalculateGlobalEnergyLimit(acc.EnergyFrozenBalance); err != nil {
		return nil, err
	}
	if res.PublicNetLimit, err = bp.dp.Get(state.PublicNetLimit); err != nil {
		return nil, err
	}
	publicNetUsage, err := bp.dp.Get(state.PublicNetUsage)
	if err != nil {
		return nil, err
	}
	publicNetTime, err := bp.dp.Get(state.PublicNetTime)
	if err != nil {
		return nil, err
	}
	if res.PublicNetUsed, err = bp.increase(publicNetUsage, 0, publicNetTime, now); err != nil {
		return nil, err
	}

	for name, used := range acc.FreeAssetNetUsage {
		au := &AssetUsage{Name: name, Used: used}
		asset, err := bp.state.GetAsset(name)
		switch {
		case err == nil:
			au.Limit = asset.FreeAssetNetLimit
		case !errors.Is(err, state.ErrNotFound):
			return nil, fmt.Errorf("loading asset %q: %w", name, err)
		}
		res.FreeAssetNetUsage = append(res.FreeAssetNetUsage, au)
	}
	sort.Slice(res.FreeAssetNetUsage, func(i, j int) bool { return res.FreeAssetNetUsage[i].Name < res.FreeAssetNetUsage[j].Name })
	return res, nil
}
