package state

import (
	"fmt"
)

// BlockProducedInterval is the block cadence in milliseconds, one slot per block.
const BlockProducedInterval = 3000

/*
Clock derives the head slot from the timestamps kept in the dynamic
properties.
*/
type Clock struct {
	dp *DynamicProperties
}

func NewClock(s *State) *Clock {
	return &Clock{dp: s.DynamicProperties()}
}

// HeadSlot returns number of slots elapsed since genesis at the head block.
func (c *Clock) HeadSlot() (int64, error) {
	genesis, err := c.dp.Get(GenesisTimestamp)
	if err != nil {
		return 0, err
	}
	head, err := c.dp.HeadBlockTimestamp()
	if err != nil {
		return 0, err
	}
	if head < genesis {
		return 0, fmt.Errorf("head block timestamp %d is before genesis timestamp %d", head, genesis)
	}
	return (head - genesis) / BlockProducedInterval, nil
}

func (c *Clock) HeadBlockTimestamp() (int64, error) {
	return c.dp.HeadBlockTimestamp()
}

// SlotTimestamp returns the wall time (ms) of the given slot.
func (c *Clock) SlotTimestamp(slot int64) (int64, error) {
	genesis, err := c.dp.Get(GenesisTimestamp)
	if err != nil {
		return 0, err
	}
	return genesis + slot*BlockProducedInterval, nil
}

/*
AdvanceTo sets the head block timestamp, the timestamp must not move
backwards. The change must be committed by the caller.
*/
func (c *Clock) AdvanceTo(timestamp int64) error {
	head, err := c.dp.HeadBlockTimestamp()
	if err != nil {
		return err
	}
	if timestamp < head {
		return fmt.Errorf("timestamp %d is before the head block timestamp %d", timestamp, head)
	}
	return c.dp.s.Apply(SetProperty(LatestBlockHeaderTimestamp, timestamp))
}
