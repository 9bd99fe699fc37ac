package resource

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/resmeter/resmeter/logger"
	"github.com/resmeter/resmeter/observability"
	"github.com/resmeter/resmeter/state"
	"github.com/resmeter/resmeter/types"
	"github.com/resmeter/resmeter/util"
)

/*
EnergyProcessor tracks the energy (VM computation credit) granted by the
balance frozen for energy and bills the energy used by the transaction.
*/
type EnergyProcessor struct {
	*processor

	energyFee metric.Int64Counter
	bills     metric.Int64Counter
}

var _ Processor = (*EnergyProcessor)(nil)

func NewEnergyProcessor(s *state.State, clock SlotSource, observe Observability, opts ...Option) (*EnergyProcessor, error) {
	p, err := newProcessor(s, clock, observe, "resource.energy", opts...)
	if err != nil {
		return nil, err
	}
	ep := &EnergyProcessor{processor: p}
	ep.log = p.log.With(logger.Module("energy"))
	m := observe.Meter("resource.energy")
	if ep.energyFee, err = m.Int64Counter("energy.fee", metric.WithDescription("Energy shortfall paid from the balance"), metric.WithUnit("{sun}")); err != nil {
		return nil, fmt.Errorf("creating energy fee counter: %w", err)
	}
	if ep.bills, err = m.Int64Counter("energy.bills", metric.WithDescription("Number of energy bills by outcome")); err != nil {
		return nil, fmt.Errorf("creating energy bill counter: %w", err)
	}
	return ep, nil
}

/*
UpdateUsage refreshes the energy usage of the account as of slot "now", the
timestamp is advanced to "now". Like BandwidthProcessor.UpdateUsage the result
is a projection which must not be stored.
*/
func (ep *EnergyProcessor) UpdateUsage(acc *types.Account, now int64) error {
	usage, err := ep.increase(acc.EnergyUsage, 0, acc.LatestConsumeTimeForEnergy, now)
	if err != nil {
		return fmt.Errorf("energy usage: %w", err)
	}
	acc.EnergyUsage = usage
	acc.LatestConsumeTimeForEnergy = max(acc.LatestConsumeTimeForEnergy, now)
	return nil
}

// CalculateGlobalEnergyLimit returns energy limit granted by the balance frozen for energy.
func (ep *EnergyProcessor) CalculateGlobalEnergyLimit(frozenForEnergy int64) (int64, error) {
	totalEnergyLimit, err := ep.dp.Get(state.TotalEnergyLimit)
	if err != nil {
		return 0, err
	}
	totalEnergyWeight, err := ep.dp.Get(state.TotalEnergyWeight)
	if err != nil {
		return 0, err
	}
	return globalLimit(frozenForEnergy, totalEnergyLimit, totalEnergyWeight), nil
}

// AccountLeftEnergyFromFreeze returns energy available to the account at slot "now".
func (ep *EnergyProcessor) AccountLeftEnergyFromFreeze(acc *types.Account, now int64) (int64, error) {
	limit, err := ep.CalculateGlobalEnergyLimit(acc.EnergyFrozenBalance)
	if err != nil {
		return 0, err
	}
	usage, err := ep.increase(acc.EnergyUsage, 0, acc.LatestConsumeTimeForEnergy, now)
	if err != nil {
		return 0, err
	}
	return max(limit-usage, 0), nil
}

/*
UseEnergy deducts "energy" from the energy available to the account and
persists the account. Returns false without changing anything when there is
not enough energy.
*/
func (ep *EnergyProcessor) UseEnergy(acc *types.Account, energy, now int64) (bool, error) {
	headTs, err := ep.headBlockTimestamp()
	if err != nil {
		return false, err
	}
	updated := acc.Copy()
	ok, err := ep.useEnergy(updated, energy, now, headTs)
	if err != nil || !ok {
		return false, err
	}
	if err := ep.state.Apply(state.SetAccount(updated)); err != nil {
		return false, fmt.Errorf("storing account: %w", err)
	}
	*acc = *updated
	return true, nil
}

// useEnergy is UseEnergy without persisting the account.
func (ep *EnergyProcessor) useEnergy(acc *types.Account, energy, now, headTs int64) (bool, error) {
	if energy < 0 {
		return false, fmt.Errorf("%w: energy %d", ErrNegativeUsage, energy)
	}
	limit, err := ep.CalculateGlobalEnergyLimit(acc.EnergyFrozenBalance)
	if err != nil {
		return false, err
	}
	usage, err := ep.increase(acc.EnergyUsage, 0, acc.LatestConsumeTimeForEnergy, now)
	if err != nil {
		return false, err
	}
	if energy > limit-usage {
		return false, nil
	}
	if usage, err = ep.increase(usage, energy, now, now); err != nil {
		return false, err
	}
	acc.EnergyUsage = usage
	acc.LatestConsumeTimeForEnergy = now
	acc.LatestOperationTime = headTs
	return true, nil
}

// energyFeeRate returns the dynamic energy fee or SunPerEnergy when it is not set.
func (ep *EnergyProcessor) energyFeeRate() (int64, error) {
	rate, err := ep.dp.Get(state.EnergyFee)
	if err != nil {
		return 0, err
	}
	if rate <= 0 {
		return SunPerEnergy, nil
	}
	return rate, nil
}

/*
PayEnergyBill bills receipt.EnergyUsageTotal. When caller and origin (the
contract developer) differ, origin pays "percent" of the total, limited by
the energy it has available, and the caller pays the rest. Caller's shortfall
of energy is converted into fee which is moved from caller's balance to the
blackhole.

All the changes are persisted as single atomic operation, on error nothing
is changed (including the receipt).
*/
func (ep *EnergyProcessor) PayEnergyBill(receipt *types.Receipt, origin, caller *types.Account, percent, now int64) error {
	err := ep.payEnergyBill(receipt, origin, caller, percent, now)
	ep.bills.Add(context.Background(), 1, metric.WithAttributes(observability.ErrStatus(err)))
	return err
}

func (ep *EnergyProcessor) payEnergyBill(receipt *types.Receipt, origin, caller *types.Account, percent, now int64) error {
	if receipt == nil {
		return fmt.Errorf("receipt is nil")
	}
	if receipt.EnergyUsageTotal <= 0 {
		return nil
	}
	if caller == nil {
		return fmt.Errorf("%w: caller account is nil", ErrContractValidate)
	}
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: origin energy percent %d out of range [0, 100]", ErrContractValidate, percent)
	}
	headTs, err := ep.headBlockTimestamp()
	if err != nil {
		return err
	}

	bill := receipt.Copy()
	callerAcc := caller.Copy()
	var actions []state.Action
	callerUsage := receipt.EnergyUsageTotal

	if origin != nil && origin.Address != caller.Address {
		originAcc := origin.Copy()
		originUsage, ok := util.MulInt64(receipt.EnergyUsageTotal, percent)
		if !ok {
			return fmt.Errorf("%w: energy %d * %d", ErrUsageOverflow, receipt.EnergyUsageTotal, percent)
		}
		originUsage /= 100
		left, err := ep.AccountLeftEnergyFromFreeze(originAcc, now)
		if err != nil {
			return fmt.Errorf("origin energy: %w", err)
		}
		originUsage = min(originUsage, left)
		if _, err := ep.useEnergy(originAcc, originUsage, now, headTs); err != nil {
			return fmt.Errorf("origin energy: %w", err)
		}
		bill.OriginEnergyUsage = originUsage
		callerUsage -= originUsage
		actions = append(actions, state.SetAccount(originAcc))
	}

	fee, callerActions, err := ep.payCallerEnergy(bill, callerAcc, callerUsage, now, headTs)
	if err != nil {
		return err
	}
	actions = append(actions, callerActions...)
	if err := ep.state.Apply(actions...); err != nil {
		return fmt.Errorf("storing energy bill: %w", err)
	}
	*receipt = *bill
	if fee > 0 {
		ep.energyFee.Add(context.Background(), fee)
		ep.feeBurned.Add(context.Background(), fee)
	}
	ep.log.Debug(fmt.Sprintf("energy billed: caller %d, origin %d, fee %d", bill.EnergyUsage, bill.OriginEnergyUsage, bill.EnergyFee),
		logger.Address(caller.Address), logger.Slot(now))
	return nil
}

// payCallerEnergy bills "usage" to the caller, returns the fee and the actions persisting the bill.
func (ep *EnergyProcessor) payCallerEnergy(bill *types.Receipt, acc *types.Account, usage, now, headTs int64) (int64, []state.Action, error) {
	left, err := ep.AccountLeftEnergyFromFreeze(acc, now)
	if err != nil {
		return 0, nil, fmt.Errorf("caller energy: %w", err)
	}
	if left >= usage {
		if _, err := ep.useEnergy(acc, usage, now, headTs); err != nil {
			return 0, nil, fmt.Errorf("caller energy: %w", err)
		}
		bill.EnergyUsage = usage
		return 0, []state.Action{state.SetAccount(acc)}, nil
	}

	if _, err := ep.useEnergy(acc, left, now, headTs); err != nil {
		return 0, nil, fmt.Errorf("caller energy: %w", err)
	}
	rate, err := ep.energyFeeRate()
	if err != nil {
		return 0, nil, err
	}
	fee, ok := util.MulInt64(usage-left, rate)
	if !ok {
		return 0, nil, fmt.Errorf("%w: energy fee %d * %d", ErrUsageOverflow, usage-left, rate)
	}
	bill.EnergyUsage = left
	bill.EnergyFee = fee
	if acc.Balance < fee {
		return 0, nil, fmt.Errorf("%w: account %s balance %d is less than energy fee %d", ErrBalanceInsufficient, acc.Address, acc.Balance, fee)
	}
	ok, actions, err := ep.consumeFeeActions(acc, fee)
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return 0, nil, fmt.Errorf("%w: account %s", ErrBalanceInsufficient, acc.Address)
	}
	return fee, actions, nil
}
