package state

import (
	"fmt"

	"github.com/resmeter/resmeter/types"
)

// Property is the name of the global parameter or counter.
type Property string

const (
	PublicNetLimit                Property = "public_net_limit"
	PublicNetUsage                Property = "public_net_usage"
	PublicNetTime                 Property = "public_net_time"
	TotalNetLimit                 Property = "total_net_limit"
	TotalNetWeight                Property = "total_net_weight"
	TotalEnergyLimit              Property = "total_energy_limit"
	TotalEnergyWeight             Property = "total_energy_weight"
	FreeNetLimit                  Property = "free_net_limit"
	TransactionFee                Property = "transaction_fee"
	CreateAccountFee              Property = "create_account_fee"
	EnergyFee                     Property = "energy_fee"
	CreateNewAccountBandwidthRate Property = "create_new_account_bandwidth_rate"
	AllowVM                       Property = "allow_vm"
	GenesisTimestamp              Property = "genesis_timestamp"
	LatestBlockHeaderTimestamp    Property = "latest_block_header_timestamp"
	TotalTransactionCost          Property = "total_transaction_cost"
	TotalCreateAccountCost        Property = "total_create_account_cost"

	blackholeKey = propertyPrefix + "blackhole_address"
)

// Properties lists all the known properties.
var Properties = []Property{
	PublicNetLimit, PublicNetUsage, PublicNetTime,
	TotalNetLimit, TotalNetWeight, TotalEnergyLimit, TotalEnergyWeight,
	FreeNetLimit, TransactionFee, CreateAccountFee, EnergyFee,
	CreateNewAccountBandwidthRate, AllowVM,
	GenesisTimestamp, LatestBlockHeaderTimestamp,
	TotalTransactionCost, TotalCreateAccountCost,
}

/*
DynamicProperties is a read view of the global parameters and counters,
values which have never been set read as zero.
*/
type DynamicProperties struct {
	s *State
}

func (s *State) DynamicProperties() *DynamicProperties {
	return &DynamicProperties{s: s}
}

func (dp *DynamicProperties) Get(p Property) (int64, error) {
	var v int64
	if _, err := dp.s.get(propertyKey(p), &v); err != nil {
		return 0, fmt.Errorf("reading %s: %w", p, err)
	}
	return v, nil
}

// SupportVM returns true when the VM (and thus result size padding) is enabled.
func (dp *DynamicProperties) SupportVM() (bool, error) {
	v, err := dp.Get(AllowVM)
	return v == 1, err
}

// HeadBlockTimestamp returns wall time (ms) of the latest block.
func (dp *DynamicProperties) HeadBlockTimestamp() (int64, error) {
	return dp.Get(LatestBlockHeaderTimestamp)
}

func (dp *DynamicProperties) BlackholeAddress() (types.Address, error) {
	var addr types.Address
	found, err := dp.s.get([]byte(blackholeKey), &addr)
	if err != nil {
		return addr, fmt.Errorf("reading blackhole address: %w", err)
	}
	if !found {
		return addr, fmt.Errorf("blackhole address: %w", ErrNotFound)
	}
	return addr, nil
}

// All returns the current value of every known property.
func (dp *DynamicProperties) All() (map[Property]int64, error) {
	m := make(map[Property]int64, len(Properties))
	for _, p := range Properties {
		v, err := dp.Get(p)
		if err != nil {
			return nil, err
		}
		m[p] = v
	}
	return m, nil
}

/*
Init writes the genesis parameters, accounts and assets into the state as
single atomic operation. The changes must be committed by the caller.
*/
func (dp *DynamicProperties) Init(params *GenesisParams) error {
	if err := params.Validate(); err != nil {
		return fmt.Errorf("invalid genesis parameters: %w", err)
	}
	allowVM := int64(0)
	if params.AllowVM {
		allowVM = 1
	}
	actions := []Action{
		SetProperty(PublicNetLimit, params.PublicNetLimit),
		SetProperty(TotalNetLimit, params.TotalNetLimit),
		SetProperty(TotalNetWeight, params.TotalNetWeight),
		SetProperty(TotalEnergyLimit, params.TotalEnergyLimit),
		SetProperty(TotalEnergyWeight, params.TotalEnergyWeight),
		SetProperty(FreeNetLimit, params.FreeNetLimit),
		SetProperty(TransactionFee, params.TransactionFee),
		SetProperty(CreateAccountFee, params.CreateAccountFee),
		SetProperty(EnergyFee, params.EnergyFee),
		SetProperty(CreateNewAccountBandwidthRate, params.CreateNewAccountBandwidthRate),
		SetProperty(AllowVM, allowVM),
		SetProperty(GenesisTimestamp, params.GenesisTimestamp),
		SetProperty(LatestBlockHeaderTimestamp, params.GenesisTimestamp),
	}
	for _, a := range params.Accounts {
		actions = append(actions, AddAccount(a.toAccount()))
	}
	for _, a := range params.Assets {
		actions = append(actions, SetAsset(a.toAsset()))
	}
	// blackhole account is created unless listed in the accounts
	actions = append(actions,
		SetBlackholeAddress(params.BlackholeAddress),
		AddBalance(params.BlackholeAddress, 0),
	)
	return dp.s.Apply(actions...)
}
