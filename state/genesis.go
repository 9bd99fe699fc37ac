package state

import (
	"errors"
	"fmt"
	"maps"

	"github.com/resmeter/resmeter/types"
)

type (
	// GenesisParams is the initial fee schedule, limits and ledger content.
	GenesisParams struct {
		GenesisTimestamp              int64         `yaml:"genesis_timestamp"` // ms
		PublicNetLimit                int64         `yaml:"public_net_limit"`
		TotalNetLimit                 int64         `yaml:"total_net_limit"`
		TotalNetWeight                int64         `yaml:"total_net_weight"`
		TotalEnergyLimit              int64         `yaml:"total_energy_limit"`
		TotalEnergyWeight             int64         `yaml:"total_energy_weight"`
		FreeNetLimit                  int64         `yaml:"free_net_limit"`
		TransactionFee                int64         `yaml:"transaction_fee"`
		CreateAccountFee              int64         `yaml:"create_account_fee"`
		EnergyFee                     int64         `yaml:"energy_fee"`
		CreateNewAccountBandwidthRate int64         `yaml:"create_new_account_bandwidth_rate"`
		AllowVM                       bool          `yaml:"allow_vm"`
		BlackholeAddress              types.Address `yaml:"blackhole_address"`

		Accounts []*GenesisAccount `yaml:"accounts"`
		Assets   []*GenesisAsset   `yaml:"assets"`
	}

	GenesisAccount struct {
		Address             types.Address    `yaml:"address"`
		Balance             int64            `yaml:"balance"`
		FrozenBalance       int64            `yaml:"frozen_balance"`
		EnergyFrozenBalance int64            `yaml:"energy_frozen_balance"`
		Assets              map[string]int64 `yaml:"assets"`
	}

	GenesisAsset struct {
		Name                    string        `yaml:"name"`
		Owner                   types.Address `yaml:"owner"`
		FreeAssetNetLimit       int64         `yaml:"free_asset_net_limit"`
		PublicFreeAssetNetLimit int64         `yaml:"public_free_asset_net_limit"`
	}
)

// DefaultGenesisParams returns the parameters of a fresh network without any accounts.
func DefaultGenesisParams() *GenesisParams {
	return &GenesisParams{
		PublicNetLimit:                14_400_000_000,
		TotalNetLimit:                 43_200_000_000,
		TotalEnergyLimit:              50_000_000_000,
		FreeNetLimit:                  5000,
		TransactionFee:                10,
		CreateAccountFee:              100_000,
		EnergyFee:                     100,
		CreateNewAccountBandwidthRate: 1,
	}
}

func (p *GenesisParams) Validate() error {
	if p == nil {
		return errors.New("genesis parameters are nil")
	}
	var errs []error
	nonNegative := func(name string, v int64) {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", name, v))
		}
	}
	nonNegative("genesis_timestamp", p.GenesisTimestamp)
	nonNegative("public_net_limit", p.PublicNetLimit)
	nonNegative("total_net_limit", p.TotalNetLimit)
	nonNegative("total_net_weight", p.TotalNetWeight)
	nonNegative("total_energy_limit", p.TotalEnergyLimit)
	nonNegative("total_energy_weight", p.TotalEnergyWeight)
	nonNegative("free_net_limit", p.FreeNetLimit)
	nonNegative("transaction_fee", p.TransactionFee)
	nonNegative("create_account_fee", p.CreateAccountFee)
	nonNegative("energy_fee", p.EnergyFee)
	nonNegative("create_new_account_bandwidth_rate", p.CreateNewAccountBandwidthRate)
	if p.BlackholeAddress.IsZero() {
		errs = append(errs, errors.New("blackhole address is not set"))
	}

	seen := map[types.Address]struct{}{}
	for i, a := range p.Accounts {
		if a == nil {
			errs = append(errs, fmt.Errorf("account[%d] is nil", i))
			continue
		}
		if _, ok := seen[a.Address]; ok {
			errs = append(errs, fmt.Errorf("account[%d]: duplicate address %s", i, a.Address))
		}
		seen[a.Address] = struct{}{}
		nonNegative(fmt.Sprintf("account[%d] balance", i), a.Balance)
		nonNegative(fmt.Sprintf("account[%d] frozen_balance", i), a.FrozenBalance)
		nonNegative(fmt.Sprintf("account[%d] energy_frozen_balance", i), a.EnergyFrozenBalance)
	}
	for i, a := range p.Assets {
		if a == nil || a.Name == "" {
			errs = append(errs, fmt.Errorf("asset[%d] must have a name", i))
			continue
		}
		nonNegative(fmt.Sprintf("asset[%d] free_asset_net_limit", i), a.FreeAssetNetLimit)
		nonNegative(fmt.Sprintf("asset[%d] public_free_asset_net_limit", i), a.PublicFreeAssetNetLimit)
	}
	return errors.Join(errs...)
}

func (a *GenesisAccount) toAccount() *types.Account {
	acc := types.NewAccount(a.Address, a.Balance)
	acc.FrozenBalance = a.FrozenBalance
	acc.EnergyFrozenBalance = a.EnergyFrozenBalance
	if len(a.Assets) > 0 {
		acc.AssetMap = maps.Clone(a.Assets)
	}
	return acc
}

func (a *GenesisAsset) toAsset() *types.AssetIssue {
	return &types.AssetIssue{
		Name:                    a.Name,
		OwnerAddress:            a.Owner,
		FreeAssetNetLimit:       a.FreeAssetNetLimit,
		PublicFreeAssetNetLimit: a.PublicFreeAssetNetLimit,
	}
}
