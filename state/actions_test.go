package state

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/resmeter/resmeter/types"
	"github.com/resmeter/resmeter/util"
)

func TestSetAccount(t *testing.T) {
	s, _ := newState(t)
	require.EqualError(t, s.Apply(SetAccount(nil)), "account is nil")
	require.ErrorIs(t, s.Apply(SetAccount(types.NewAccount(addr1, -1))), ErrNegativeBalance)
	require.NoError(t, s.Apply(SetAccount(types.NewAccount(addr1, 1))))
}

func TestAddAccount(t *testing.T) {
	s, _ := newState(t)
	require.EqualError(t, s.Apply(AddAccount(nil)), "account is nil")
	require.NoError(t, s.Apply(AddAccount(types.NewAccount(addr1, 1))))
	require.ErrorContains(t, s.Apply(AddAccount(types.NewAccount(addr1, 2))), "already exists")
}

func TestUpdateAccount(t *testing.T) {
	s, _ := newState(t)
	require.NoError(t, s.Apply(SetAccount(types.NewAccount(addr1, 10))))

	tests := []struct {
		name    string
		addr    types.Address
		f       UpdateAccountFunction
		wantErr string
	}{
		{name: "nil func", addr: addr1, wantErr: "update function is nil"},
		{name: "missing account", addr: addr2, f: func(*types.Account) error { return nil }, wantErr: "not found"},
		{name: "func fails", addr: addr1, f: func(*types.Account) error { return util.ErrOverflow }, wantErr: "unable to update account"},
		{name: "negative balance", addr: addr1, f: func(a *types.Account) error { a.Balance = -1; return nil }, wantErr: "negative balance"},
		{name: "ok", addr: addr1, f: func(a *types.Account) error { a.NetUsage = 200; return nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Apply(UpdateAccount(tt.addr, tt.f))
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
	acc, err := s.GetAccount(addr1)
	require.NoError(t, err)
	require.EqualValues(t, 200, acc.NetUsage)
	require.EqualValues(t, 10, acc.Balance)
}

func TestAddBalance(t *testing.T) {
	s, _ := newState(t)
	// creates missing account
	require.NoError(t, s.Apply(AddBalance(addr1, 5)))
	acc, err := s.GetAccount(addr1)
	require.NoError(t, err)
	require.EqualValues(t, 5, acc.Balance)

	require.ErrorIs(t, s.Apply(AddBalance(addr1, -6)), ErrNegativeBalance)
	require.ErrorIs(t, s.Apply(AddBalance(addr2, -1)), ErrNotFound)
	require.ErrorIs(t, s.Apply(AddBalance(addr1, math.MaxInt64)), util.ErrOverflow)
	require.NoError(t, s.Apply(AddBalance(addr1, -5)))
	acc, err = s.GetAccount(addr1)
	require.NoError(t, err)
	require.Zero(t, acc.Balance)
}

func TestSetAsset(t *testing.T) {
	s, _ := newState(t)
	require.EqualError(t, s.Apply(SetAsset(nil)), "asset is nil")
	require.EqualError(t, s.Apply(SetAsset(&types.AssetIssue{})), "asset name is empty")
	require.NoError(t, s.Apply(SetAsset(&types.AssetIssue{Name: "tok", FreeAssetNetLimit: 10})))
	a, err := s.GetAsset("tok")
	require.NoError(t, err)
	require.EqualValues(t, 10, a.FreeAssetNetLimit)
}

func TestAddProperty(t *testing.T) {
	s, _ := newState(t)
	dp := s.DynamicProperties()
	require.NoError(t, s.Apply(AddProperty(TotalTransactionCost, 10), AddProperty(TotalTransactionCost, 5)))
	v, err := dp.Get(TotalTransactionCost)
	require.NoError(t, err)
	require.EqualValues(t, 15, v)

	require.ErrorIs(t, s.Apply(AddProperty(TotalTransactionCost, math.MaxInt64)), util.ErrOverflow)
	v, err = dp.Get(TotalTransactionCost)
	require.NoError(t, err)
	require.EqualValues(t, 15, v)
}
