package state

import (
	"errors"
	"fmt"

	"github.com/resmeter/resmeter/types"
	"github.com/resmeter/resmeter/util"
)

type (
	Action func(s LedgerView) error

	// UpdateAccountFunction modifies the account in place.
	UpdateAccountFunction func(acc *types.Account) error
)

var ErrNegativeBalance = errors.New("negative balance")

// SetAccount adds a new account or replaces the existing account record.
func SetAccount(acc *types.Account) Action {
	return func(s LedgerView) error {
		if acc == nil {
			return errors.New("account is nil")
		}
		if acc.Balance < 0 {
			return fmt.Errorf("account %s: %w", acc.Address, ErrNegativeBalance)
		}
		if err := s.Put(accountKey(acc.Address), acc); err != nil {
			return fmt.Errorf("unable to store account %s: %w", acc.Address, err)
		}
		return nil
	}
}

// AddAccount adds a new account, it is an error if the account already exists.
func AddAccount(acc *types.Account) Action {
	return func(s LedgerView) error {
		if acc == nil {
			return errors.New("account is nil")
		}
		found, err := s.Get(accountKey(acc.Address), &types.Account{})
		if err != nil {
			return fmt.Errorf("unable to read account %s: %w", acc.Address, err)
		}
		if found {
			return fmt.Errorf("account %s already exists", acc.Address)
		}
		return SetAccount(acc)(s)
	}
}

// UpdateAccount loads the account, calls f to modify it and stores the result.
func UpdateAccount(addr types.Address, f UpdateAccountFunction) Action {
	return func(s LedgerView) error {
		if f == nil {
			return errors.New("update function is nil")
		}
		acc := &types.Account{}
		found, err := s.Get(accountKey(addr), acc)
		if err != nil {
			return fmt.Errorf("failed to get account %s: %w", addr, err)
		}
		if !found {
			return fmt.Errorf("account %s: %w", addr, ErrNotFound)
		}
		if err := f(acc); err != nil {
			return fmt.Errorf("unable to update account %s: %w", addr, err)
		}
		return SetAccount(acc)(s)
	}
}

/*
AddBalance adds delta to the balance of the account, the account is created
when it doesn't exist and delta is not negative.
*/
func AddBalance(addr types.Address, delta int64) Action {
	return func(s LedgerView) error {
		acc := &types.Account{}
		found, err := s.Get(accountKey(addr), acc)
		if err != nil {
			return fmt.Errorf("failed to get account %s: %w", addr, err)
		}
		if !found {
			if delta < 0 {
				return fmt.Errorf("account %s: %w", addr, ErrNotFound)
			}
			acc = types.NewAccount(addr, 0)
		}
		balance, ok := util.AddInt64(acc.Balance, delta)
		if !ok {
			return fmt.Errorf("account %s balance: %w", addr, util.ErrOverflow)
		}
		if balance < 0 {
			return fmt.Errorf("account %s: %w", addr, ErrNegativeBalance)
		}
		acc.Balance = balance
		return SetAccount(acc)(s)
	}
}

// SetAsset adds a new asset or replaces the existing asset record.
func SetAsset(asset *types.AssetIssue) Action {
	return func(s LedgerView) error {
		if asset == nil {
			return errors.New("asset is nil")
		}
		if asset.Name == "" {
			return errors.New("asset name is empty")
		}
		if err := s.Put(assetKey(asset.Name), asset); err != nil {
			return fmt.Errorf("unable to store asset %q: %w", asset.Name, err)
		}
		return nil
	}
}

func SetProperty(p Property, value int64) Action {
	return func(s LedgerView) error {
		if err := s.Put(propertyKey(p), value); err != nil {
			return fmt.Errorf("unable to store %s: %w", p, err)
		}
		return nil
	}
}

// AddProperty adds delta to the counter, the counter must not overflow.
func AddProperty(p Property, delta int64) Action {
	return func(s LedgerView) error {
		var value int64
		if _, err := s.Get(propertyKey(p), &value); err != nil {
			return fmt.Errorf("unable to read %s: %w", p, err)
		}
		sum, ok := util.AddInt64(value, delta)
		if !ok {
			return fmt.Errorf("%s: %w", p, util.ErrOverflow)
		}
		return SetProperty(p, sum)(s)
	}
}

func SetBlackholeAddress(addr types.Address) Action {
	return func(s LedgerView) error {
		if err := s.Put([]byte(blackholeKey), addr); err != nil {
			return fmt.Errorf("unable to store blackhole address: %w", err)
		}
		return nil
	}
}
