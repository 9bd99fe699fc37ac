package trace

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/resmeter/resmeter/logger"
	"github.com/resmeter/resmeter/resource"
	"github.com/resmeter/resmeter/state"
	"github.com/resmeter/resmeter/types"
)

var ErrFinalized = errors.New("transaction trace is finalized")

/*
TransactionTrace collects the resource bill of a single transaction. It owns a
state savepoint: Finalize keeps the changes made by the billing when all the
steps succeeded and rolls them back otherwise.
*/
type TransactionTrace struct {
	tx    *types.Transaction
	txID  []byte
	state *state.State
	bp    *resource.BandwidthProcessor
	ep    *resource.EnergyProcessor
	clock resource.SlotSource
	log   *slog.Logger

	savepoint int
	receipt   *types.Receipt
	result    *types.TransactionResult
	err       error
	finalized bool
}

var _ resource.NetBillSetter = (*TransactionTrace)(nil)

func New(tx *types.Transaction, s *state.State, clock resource.SlotSource, bp *resource.BandwidthProcessor, ep *resource.EnergyProcessor, log *slog.Logger) (*TransactionTrace, error) {
	if s == nil || clock == nil || bp == nil || ep == nil {
		return nil, errors.New("trace dependencies must not be nil")
	}
	txID, err := tx.ID()
	if err != nil {
		return nil, fmt.Errorf("calculating transaction id: %w", err)
	}
	if log == nil {
		log = logger.NOP()
	}
	return &TransactionTrace{
		tx:        tx,
		txID:      txID,
		state:     s,
		bp:        bp,
		ep:        ep,
		clock:     clock,
		log:       log.With(logger.TxID(txID)),
		savepoint: s.Savepoint(),
		receipt:   &types.Receipt{Result: types.StatusDefault},
		result:    &types.TransactionResult{},
	}, nil
}

func (t *TransactionTrace) SetNetBill(netUsage, netFee int64) {
	t.receipt.NetUsage = netUsage
	t.receipt.NetFee = netFee
}

// PayBandwidth bills the bandwidth of all the contracts of the transaction.
func (t *TransactionTrace) PayBandwidth() error {
	if t.finalized {
		return ErrFinalized
	}
	if err := t.bp.Consume(t.tx, t.result, t); err != nil {
		return t.fail(fmt.Errorf("paying bandwidth: %w", err))
	}
	return nil
}

// SetEnergyUsageTotal records the energy spent by the VM executing the transaction.
func (t *TransactionTrace) SetEnergyUsageTotal(energy int64) error {
	if t.finalized {
		return ErrFinalized
	}
	if energy < 0 {
		return t.fail(fmt.Errorf("%w: energy %d", resource.ErrNegativeUsage, energy))
	}
	t.receipt.EnergyUsageTotal = energy
	return nil
}

func (t *TransactionTrace) SetResult(status types.ContractStatus) {
	t.receipt.Result = status
}

/*
PayEnergy bills the energy usage total to the caller and "origin" (the
contract developer) which covers "percent" of it.
*/
func (t *TransactionTrace) PayEnergy(origin, caller types.Address, percent int64) error {
	if t.finalized {
		return ErrFinalized
	}
	callerAcc, err := t.state.GetAccount(caller)
	if err != nil {
		return t.fail(fmt.Errorf("%w: caller: %w", resource.ErrContractValidate, err))
	}
	originAcc := callerAcc
	if origin != caller {
		if originAcc, err = t.state.GetAccount(origin); err != nil {
			return t.fail(fmt.Errorf("%w: origin: %w", resource.ErrContractValidate, err))
		}
	}
	now, err := t.clock.HeadSlot()
	if err != nil {
		return t.fail(fmt.Errorf("reading head slot: %w", err))
	}
	if err := t.ep.PayEnergyBill(t.receipt, originAcc, callerAcc, percent, now); err != nil {
		return t.fail(fmt.Errorf("paying energy: %w", err))
	}
	return nil
}

// Result returns fees charged by the bandwidth billing.
func (t *TransactionTrace) Result() types.TransactionResult {
	return *t.result
}

// Receipt returns copy of the current receipt.
func (t *TransactionTrace) Receipt() *types.Receipt {
	return t.receipt.Copy()
}

/*
Finalize releases the savepoint when billing succeeded, the changes remain
in the state until it is committed (or reverted). On failure the changes made
by the trace are rolled back and the first error is returned.
*/
func (t *TransactionTrace) Finalize() (*types.Receipt, error) {
	if t.finalized {
		return nil, ErrFinalized
	}
	t.finalized = true
	if t.err != nil {
		t.state.RollbackToSavepoint(t.savepoint)
		t.log.Debug("transaction billing rolled back", logger.Error(t.err))
		return nil, t.err
	}
	t.state.ReleaseToSavepoint(t.savepoint)
	t.log.Debug(fmt.Sprintf("transaction billed: net usage %d, net fee %d, energy usage %d, energy fee %d",
		t.receipt.NetUsage, t.receipt.NetFee, t.receipt.EnergyUsage, t.receipt.EnergyFee))
	return t.receipt.Copy(), nil
}

func (t *TransactionTrace) fail(err error) error {
	if t.err == nil {
		t.err = err
	}
	return err
}
