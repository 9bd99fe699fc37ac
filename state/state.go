package state

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/resmeter/resmeter/keyvaluedb"
	"github.com/resmeter/resmeter/logger"
	"github.com/resmeter/resmeter/types"
)

var ErrNotFound = errors.New("not found")

const (
	accountPrefix  = "acc/"
	assetPrefix    = "ast/"
	propertyPrefix = "dp/"
)

type (
	// State is the chain state the metering core reads and mutates: accounts,
	// assets and dynamic properties.
	//
	// State can be changed by calling Apply function with one or more Action function. Savepoint method can be used
	// to add a special marker to the state that allows all actions that are executed after savepoint was established
	// to be rolled back. Calling a Commit method writes the latest savepoint to the database in a single database
	// transaction and releases all savepoints.
	State struct {
		mutex sync.RWMutex
		db    keyvaluedb.KeyValueDB
		log   *slog.Logger

		// savepoints[0] holds changes not yet committed to the db, every
		// following savepoint is a copy of the previous one plus the changes
		// made after it was established.
		savepoints []journal
	}

	// journal maps key to encoded record, nil value marks deleted record.
	journal map[string][]byte

	// LedgerView is the view of the latest savepoint given to the Action functions.
	LedgerView interface {
		Get(key []byte, v any) (bool, error)
		Put(key []byte, v any) error
		Delete(key []byte) error
	}

	view struct {
		changes journal
		db      keyvaluedb.RawReader
	}

	Option func(s *State)
)

// WithLogger sets the logger used for savepoint and commit diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(s *State) {
		s.log = log
	}
}

func New(db keyvaluedb.KeyValueDB, opts ...Option) (*State, error) {
	if db == nil {
		return nil, errors.New("database is nil")
	}
	s := &State{
		db:         db,
		log:        logger.NOP(),
		savepoints: []journal{{}},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func accountKey(addr types.Address) []byte {
	return append([]byte(accountPrefix), addr[:]...)
}

func assetKey(name string) []byte {
	return []byte(assetPrefix + name)
}

func propertyKey(p Property) []byte {
	return []byte(propertyPrefix + string(p))
}

// GetAccount returns copy of the account record, ErrNotFound is returned when
// the account does not exist.
func (s *State) GetAccount(addr types.Address) (*types.Account, error) {
	acc := &types.Account{}
	found, err := s.get(accountKey(addr), acc)
	if err != nil {
		return nil, fmt.Errorf("reading account %s: %w", addr, err)
	}
	if !found {
		return nil, fmt.Errorf("account %s: %w", addr, ErrNotFound)
	}
	return acc, nil
}

func (s *State) HasAccount(addr types.Address) (bool, error) {
	_, err := s.GetAccount(addr)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// GetAsset returns copy of the asset record, ErrNotFound is returned when
// the asset does not exist.
func (s *State) GetAsset(name string) (*types.AssetIssue, error) {
	asset := &types.AssetIssue{}
	found, err := s.get(assetKey(name), asset)
	if err != nil {
		return nil, fmt.Errorf("reading asset %q: %w", name, err)
	}
	if !found {
		return nil, fmt.Errorf("asset %q: %w", name, ErrNotFound)
	}
	return asset, nil
}

/*
Accounts returns all the accounts committed to the database, in the order of
the address. Changes not yet committed are not visible.
*/
func (s *State) Accounts() ([]*types.Account, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var accounts []*types.Account
	err := keyvaluedb.ForEach(s.db, []byte(accountPrefix), func(key []byte, value func(any) error) error {
		acc := &types.Account{}
		if err := value(acc); err != nil {
			return fmt.Errorf("reading account %X: %w", key[len(accountPrefix):], err)
		}
		accounts = append(accounts, acc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *State) get(key []byte, v any) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.latestSavepoint().Get(key, v)
}

// Apply applies given actions to the state. All Action functions are executed together as a single atomic operation. If
// any of the Action functions returns an error all previous state changes made by any of the action function will be
// reverted.
func (s *State) Apply(actions ...Action) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	id := s.createSavepoint()
	for _, action := range actions {
		if err := action(s.latestSavepoint()); err != nil {
			s.rollbackToSavepoint(id)
			return err
		}
	}
	s.releaseToSavepoint(id)
	return nil
}

// Savepoint creates a new savepoint and returns an id of the savepoint. Use RollbackToSavepoint to roll back all
// changes made after calling Savepoint method. Use ReleaseToSavepoint to save all changes made to the state.
func (s *State) Savepoint() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.createSavepoint()
}

// RollbackToSavepoint destroys savepoints without keeping the changes in the state. All actions that were executed
// after the savepoint was established are rolled back, restoring the state to what it was at the time of the savepoint.
func (s *State) RollbackToSavepoint(id int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.rollbackToSavepoint(id)
}

// ReleaseToSavepoint destroys all savepoints, keeping all state changes after it was created. If a savepoint with given
// id does not exist then this method does nothing.
func (s *State) ReleaseToSavepoint(id int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.releaseToSavepoint(id)
}

// Commit writes the changes in the latest savepoint to the database.
func (s *State) Commit() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	changes := s.savepoints[len(s.savepoints)-1]
	if len(changes) == 0 {
		s.savepoints = []journal{{}}
		return nil
	}
	tx, err := s.db.StartTx()
	if err != nil {
		return fmt.Errorf("starting db transaction: %w", err)
	}
	for k, v := range changes {
		if v == nil {
			err = tx.Delete([]byte(k))
		} else {
			err = tx.WriteRaw([]byte(k), v)
		}
		if err != nil {
			return errors.Join(fmt.Errorf("writing %q: %w", k, err), tx.Rollback())
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing db transaction: %w", err)
	}
	s.log.Debug("state committed", logger.Data(len(changes)))
	s.savepoints = []journal{{}}
	return nil
}

// Revert rolls back all changes made to the state after the latest commit.
func (s *State) Revert() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.savepoints = []journal{{}}
}

// IsCommitted returns true when there is no uncommitted changes in the state.
func (s *State) IsCommitted() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.savepoints) == 1 && len(s.savepoints[0]) == 0
}

func (s *State) latestSavepoint() *view {
	return &view{changes: s.savepoints[len(s.savepoints)-1], db: s.db}
}

func (s *State) createSavepoint() int {
	s.savepoints = append(s.savepoints, maps.Clone(s.savepoints[len(s.savepoints)-1]))
	return len(s.savepoints) - 1
}

func (s *State) rollbackToSavepoint(id int) {
	if id < 1 || id >= len(s.savepoints) {
		// nothing to revert
		return
	}
	s.savepoints = s.savepoints[0:id]
}

func (s *State) releaseToSavepoint(id int) {
	if id < 1 || id >= len(s.savepoints) {
		// nothing to release
		return
	}
	s.savepoints[id-1] = s.savepoints[len(s.savepoints)-1]
	s.savepoints = s.savepoints[0:id]
}

func (v *view) Get(key []byte, value any) (bool, error) {
	data, ok := v.changes[string(key)]
	if !ok {
		var err error
		if data, ok, err = v.db.ReadRaw(key); err != nil || !ok {
			return false, err
		}
	}
	if data == nil {
		return false, nil
	}
	if err := types.Cbor.Unmarshal(data, value); err != nil {
		return true, fmt.Errorf("decoding %q: %w", key, err)
	}
	return true, nil
}

func (v *view) Put(key []byte, value any) error {
	if err := keyvaluedb.ValidateEntry(key, value); err != nil {
		return err
	}
	data, err := types.Cbor.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	v.changes[string(key)] = data
	return nil
}

func (v *view) Delete(key []byte) error {
	if err := keyvaluedb.ValidateKey(key); err != nil {
		return err
	}
	v.changes[string(key)] = nil
	return nil
}
