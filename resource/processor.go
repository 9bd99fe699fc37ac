package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/resmeter/resmeter/state"
	"github.com/resmeter/resmeter/types"
)

type (
	// Processor is the capability set shared by the bandwidth and energy processors.
	Processor interface {
		// UpdateUsage refreshes the decayed usage counters of the account
		// (in memory) as of slot "now".
		UpdateUsage(acc *types.Account, now int64) error
		// ConsumeFee moves "fee" from the account to the blackhole, returns
		// false (and doesn't change anything) when the balance is too low.
		ConsumeFee(acc *types.Account, fee int64) (bool, error)
	}

	// SlotSource supplies the head slot, the time axis of the decay.
	SlotSource interface {
		HeadSlot() (int64, error)
	}

	Observability interface {
		Meter(name string, opts ...metric.MeterOption) metric.Meter
		Logger() *slog.Logger
	}

	// processor implements the routines shared by the concrete processors.
	processor struct {
		state      *state.State
		dp         *state.DynamicProperties
		clock      SlotSource
		windowSize int64
		log        *slog.Logger

		feeBurned metric.Int64Counter
	}
)

func newProcessor(s *state.State, clock SlotSource, observe Observability, meterName string, opts ...Option) (*processor, error) {
	if s == nil {
		return nil, errors.New("state is nil")
	}
	if clock == nil {
		return nil, errors.New("slot source is nil")
	}
	if observe == nil {
		return nil, errors.New("observability is nil")
	}
	options := loadOptions(opts...)
	if options.windowSize <= 0 {
		return nil, fmt.Errorf("invalid window size %d", options.windowSize)
	}
	p := &processor{
		state:      s,
		dp:         s.DynamicProperties(),
		clock:      clock,
		windowSize: options.windowSize,
		log:        observe.Logger(),
	}
	var err error
	m := observe.Meter(meterName)
	if p.feeBurned, err = m.Int64Counter("fee.burned", metric.WithDescription("Amount of sun moved to the blackhole"), metric.WithUnit("{sun}")); err != nil {
		return nil, fmt.Errorf("creating fee counter: %w", err)
	}
	return p, nil
}

func (p *processor) increase(lastUsage, added, lastSlot, now int64) (int64, error) {
	return Increase(lastUsage, added, lastSlot, now, p.windowSize)
}

func (p *processor) ConsumeFee(acc *types.Account, fee int64) (bool, error) {
	updated := acc.Copy()
	ok, actions, err := p.consumeFeeActions(updated, fee)
	if err != nil || !ok {
		return false, err
	}
	if err := p.state.Apply(actions...); err != nil {
		return false, fmt.Errorf("storing fee payment: %w", err)
	}
	*acc = *updated
	p.feeBurned.Add(context.Background(), fee)
	return true, nil
}

/*
consumeFeeActions debits the fee from "acc" (in memory) and returns the
actions which persist the account and credit the blackhole. When the balance
is insufficient "acc" is not modified and ok is false.
*/
func (p *processor) consumeFeeActions(acc *types.Account, fee int64) (ok bool, actions []state.Action, err error) {
	if fee < 0 {
		return false, nil, fmt.Errorf("invalid fee %d", fee)
	}
	if acc.Balance < fee {
		return false, nil, nil
	}
	blackhole, err := p.dp.BlackholeAddress()
	if err != nil {
		return false, nil, err
	}
	acc.Balance -= fee
	return true, []state.Action{state.SetAccount(acc), state.AddBalance(blackhole, fee)}, nil
}

func (p *processor) headBlockTimestamp() (int64, error) {
	return p.dp.HeadBlockTimestamp()
}
