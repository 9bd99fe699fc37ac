package memorydb

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/resmeter/resmeter/keyvaluedb"
)

var _ keyvaluedb.KeyValueDB = (*MemoryDB)(nil)

/*
MemoryDB keeps the encoded values in a map. It is meant for tests and for
throwaway ledgers, nothing survives the process.
*/
type MemoryDB struct {
	lock     sync.RWMutex
	data     map[string][]byte
	encode   keyvaluedb.EncodeFn
	decode   keyvaluedb.DecodeFn
	writeErr error
	txOpen   bool
}

func New() *MemoryDB {
	return &MemoryDB{
		data:   make(map[string][]byte),
		encode: keyvaluedb.Encode,
		decode: keyvaluedb.Decode,
	}
}

// Empty returns true when no values are stored.
func (db *MemoryDB) Empty() bool {
	db.lock.RLock()
	defer db.lock.RUnlock()
	return len(db.data) == 0
}

func (db *MemoryDB) Read(key []byte, value any) (bool, error) {
	if err := keyvaluedb.ValidateEntry(key, value); err != nil {
		return false, err
	}
	data, found, err := db.ReadRaw(key)
	if err != nil || !found {
		return false, err
	}
	return true, db.decode(data, value)
}

// ReadRaw returns copy of the encoded value.
func (db *MemoryDB) ReadRaw(key []byte) ([]byte, bool, error) {
	if err := keyvaluedb.ValidateKey(key); err != nil {
		return nil, false, err
	}
	db.lock.RLock()
	defer db.lock.RUnlock()
	if db.data == nil {
		return nil, false, errClosed
	}
	data, ok := db.data[string(key)]
	return bytes.Clone(data), ok, nil
}

func (db *MemoryDB) Write(key []byte, value any) error {
	if err := keyvaluedb.ValidateEntry(key, value); err != nil {
		return err
	}
	data, err := db.encode(value)
	if err != nil {
		return fmt.Errorf("encoding value of %x: %w", key, err)
	}
	return db.apply(map[string][]byte{string(key): data})
}

func (db *MemoryDB) Delete(key []byte) error {
	if err := keyvaluedb.ValidateKey(key); err != nil {
		return err
	}
	return db.apply(map[string][]byte{string(key): nil})
}

// apply stores the batch, nil value deletes the key.
func (db *MemoryDB) apply(batch map[string][]byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	if db.data == nil {
		return errClosed
	}
	if db.writeErr != nil {
		return db.writeErr
	}
	for k, v := range batch {
		if v == nil {
			delete(db.data, k)
		} else {
			db.data[k] = v
		}
	}
	return nil
}

func (db *MemoryDB) First() keyvaluedb.Iterator {
	return db.Find(nil)
}

func (db *MemoryDB) Find(key []byte) keyvaluedb.Iterator {
	db.lock.RLock()
	defer db.lock.RUnlock()
	return newIterator(db.data, key, db.decode)
}

func (db *MemoryDB) StartTx() (keyvaluedb.DBTransaction, error) {
	db.lock.Lock()
	defer db.lock.Unlock()
	if db.data == nil {
		return nil, fmt.Errorf("starting transaction: %w", errClosed)
	}
	if db.txOpen {
		return nil, fmt.Errorf("starting transaction: another transaction is open")
	}
	db.txOpen = true
	return &tx{db: db, pending: make(map[string][]byte)}, nil
}

// MockWriteError makes all the following writes fail with given error,
// nil restores normal operation.
func (db *MemoryDB) MockWriteError(err error) {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.writeErr = err
}

func (db *MemoryDB) Close() error {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.data = nil
	return nil
}
