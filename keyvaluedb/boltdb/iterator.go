package boltdb

import (
	"errors"

	bolt "go.etcd.io/bbolt"

	"github.com/resmeter/resmeter/keyvaluedb"
)

var errInvalidIterator = errors.New("iterator is not valid")

// iterator holds a read-only bolt transaction open until Close is called.
type iterator struct {
	tx     *bolt.Tx
	cursor *bolt.Cursor
	decode keyvaluedb.DecodeFn
	key    []byte
	value  []byte
}

// newIterator positions the iterator at the first key >= "seek". Failure
// to begin the transaction results in an invalid iterator.
func newIterator(db *bolt.DB, seek []byte, decode keyvaluedb.DecodeFn) *iterator {
	btx, err := db.Begin(false)
	if err != nil {
		return &iterator{}
	}
	it := &iterator{tx: btx, cursor: btx.Bucket(ledgerBucket).Cursor(), decode: decode}
	if len(seek) == 0 {
		it.key, it.value = it.cursor.First()
	} else {
		it.key, it.value = it.cursor.Seek(seek)
	}
	return it
}

func (it *iterator) Next() {
	if it.Valid() {
		it.key, it.value = it.cursor.Next()
	}
}

func (it *iterator) Valid() bool {
	return it.key != nil
}

func (it *iterator) Key() []byte {
	return it.key
}

func (it *iterator) Value(v any) error {
	if !it.Valid() {
		return errInvalidIterator
	}
	return it.decode(it.value, v)
}

func (it *iterator) Close() error {
	if it.tx == nil {
		return nil
	}
	err := it.tx.Rollback()
	*it = iterator{}
	return err
}
