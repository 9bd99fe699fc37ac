package cmd

import (
	"errors"
	"fmt"

	"github.com/resmeter/resmeter/keyvaluedb"
	"github.com/resmeter/resmeter/keyvaluedb/boltdb"
	"github.com/resmeter/resmeter/observability"
	"github.com/resmeter/resmeter/resource"
	"github.com/resmeter/resmeter/state"
)

// ledger is the state loaded from the database file with the processors wired to it.
type ledger struct {
	db    *boltdb.BoltDB
	state *state.State
	clock *state.Clock
	bp    *resource.BandwidthProcessor
	ep    *resource.EnergyProcessor
}

/*
openLedger opens the ledger database "file" which must have been initialized
by the genesis command.
*/
func openLedger(file string, observe *observability.Observability) (*ledger, error) {
	db, err := boltdb.New(file)
	if err != nil {
		return nil, fmt.Errorf("opening ledger database %s: %w", file, err)
	}
	l, err := newLedger(db, observe)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return l, nil
}

func newLedger(db *boltdb.BoltDB, observe *observability.Observability) (*ledger, error) {
	empty, err := keyvaluedb.IsEmpty(db)
	if err != nil {
		return nil, fmt.Errorf("checking ledger database: %w", err)
	}
	if empty {
		return nil, fmt.Errorf("ledger database %s is not initialized, run genesis first", db.Path())
	}

	s, err := state.New(db, state.WithLogger(observe.Logger()))
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}
	clock := state.NewClock(s)
	bp, err := resource.NewBandwidthProcessor(s, clock, observe)
	if err != nil {
		return nil, fmt.Errorf("creating bandwidth processor: %w", err)
	}
	ep, err := resource.NewEnergyProcessor(s, clock, observe)
	if err != nil {
		return nil, fmt.Errorf("creating energy processor: %w", err)
	}
	return &ledger{db: db, state: s, clock: clock, bp: bp, ep: ep}, nil
}

func (l *ledger) Close() error {
	return l.db.Close()
}
