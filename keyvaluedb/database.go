package keyvaluedb

import (
	"bytes"
	"errors"
	"fmt"
)

type (
	Reader interface {
		// Read decodes the value stored under the key into "value", returns
		// false when the key is not present.
		Read(key []byte, value any) (bool, error)
	}

	// RawReader returns the stored bytes without decoding them.
	RawReader interface {
		ReadRaw(key []byte) ([]byte, bool, error)
	}

	Writer interface {
		Write(key []byte, value any) error
		// Delete removes the key, deleting missing key is not an error.
		Delete(key []byte) error
	}

	/*
	Iterable returns iterators over the keys in binary order. The iterator
	MUST be closed, an open iterator may block writers of the database.
	*/
	Iterable interface {
		// First returns iterator positioned at the smallest key.
		First() Iterator
		// Find returns iterator positioned at the first key >= "key".
		Find(key []byte) Iterator
	}

	Iterator interface {
		Next()
		// Valid is false when the iterator has moved past the last key.
		Valid() bool
		// Key returns nil when the iterator is not valid.
		Key() []byte
		Value(value any) error
		// Close is safe to call more than once.
		Close() error
	}

	/*
	Transactional databases support atomic batch writes. Only one read-write
	transaction may be open at a time and it must be finished with either
	Commit or Rollback.
	*/
	Transactional interface {
		StartTx() (DBTransaction, error)
	}

	DBTransaction interface {
		Reader
		Writer
		// WriteRaw stores already encoded value.
		WriteRaw(key, data []byte) error
		Commit() error
		Rollback() error
	}

	// KeyValueDB is the storage of the ledger state.
	KeyValueDB interface {
		Reader
		RawReader
		Writer
		Iterable
		Transactional
		Close() error
	}
)

// ErrStop can be returned by the ForEach callback to end the iteration early.
var ErrStop = errors.New("stop iteration")

/*
ForEach calls "fn" for every key starting with "prefix", in binary order.
The "value" argument of the callback decodes the value of the current key.
*/
func ForEach(db Iterable, prefix []byte, fn func(key []byte, value func(v any) error) error) (err error) {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	it := db.Find(prefix)
	defer func() { err = errors.Join(err, it.Close()) }()

	for ; it.Valid() && bytes.HasPrefix(it.Key(), prefix); it.Next() {
		if err := fn(it.Key(), it.Value); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// IsEmpty returns true when the database doesn't contain any keys.
func IsEmpty(db KeyValueDB) (bool, error) {
	if db == nil {
		return true, fmt.Errorf("db is nil")
	}
	empty := true
	err := ForEach(db, nil, func([]byte, func(any) error) error {
		empty = false
		return ErrStop
	})
	return empty, err
}
