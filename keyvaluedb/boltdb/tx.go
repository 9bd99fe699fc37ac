package boltdb

import (
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/resmeter/resmeter/keyvaluedb"
)

var errTxClosed = errors.New("bolt db transaction is closed")

// tx is a read-write bolt transaction.
type tx struct {
	tx     *bolt.Tx
	bucket *bolt.Bucket
	encode keyvaluedb.EncodeFn
	decode keyvaluedb.DecodeFn
}

func (t *tx) Read(key []byte, v any) (bool, error) {
	if err := keyvaluedb.ValidateEntry(key, v); err != nil {
		return false, err
	}
	if t.closed() {
		return false, errTxClosed
	}
	data := t.bucket.Get(key)
	if data == nil {
		return false, nil
	}
	return true, t.decode(data, v)
}

func (t *tx) Write(key []byte, value any) error {
	if err := keyvaluedb.ValidateEntry(key, value); err != nil {
		return err
	}
	data, err := t.encode(value)
	if err != nil {
		return fmt.Errorf("encoding value of %x: %w", key, err)
	}
	return t.WriteRaw(key, data)
}

func (t *tx) WriteRaw(key, data []byte) error {
	if err := keyvaluedb.ValidateKey(key); err != nil {
		return err
	}
	if t.closed() {
		return errTxClosed
	}
	return t.bucket.Put(key, data)
}

func (t *tx) Delete(key []byte) error {
	if err := keyvaluedb.ValidateKey(key); err != nil {
		return err
	}
	if t.closed() {
		return errTxClosed
	}
	return t.bucket.Delete(key)
}

func (t *tx) Commit() error {
	if t.closed() {
		return errTxClosed
	}
	return t.tx.Commit()
}

func (t *tx) Rollback() error {
	if t.closed() {
		return nil
	}
	return t.tx.Rollback()
}

// bolt detaches the transaction from the db when it is finished
func (t *tx) closed() bool {
	return t.tx.DB() == nil
}
