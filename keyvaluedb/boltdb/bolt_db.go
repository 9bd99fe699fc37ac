package boltdb

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/resmeter/resmeter/keyvaluedb"
)

// all the ledger records are kept in a single bucket
var ledgerBucket = []byte("ledger")

var _ keyvaluedb.KeyValueDB = (*BoltDB)(nil)

// BoltDB is the persistent ledger database backed by a bbolt file.
type BoltDB struct {
	db     *bolt.DB
	encode keyvaluedb.EncodeFn
	decode keyvaluedb.DecodeFn
}

/*
New opens (and creates when missing) the database file. The file is locked
while open, waiting for the lock of another process times out after 3s.
*/
func New(dbFile string) (*BoltDB, error) {
	db, err := bolt.Open(dbFile, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db %s: %w", dbFile, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(ledgerBucket)
		return err
	}); err != nil {
		return nil, errors.Join(fmt.Errorf("creating bucket: %w", err), db.Close())
	}
	return &BoltDB{db: db, encode: keyvaluedb.Encode, decode: keyvaluedb.Decode}, nil
}

func (db *BoltDB) Path() string {
	return db.db.Path()
}

func (db *BoltDB) Read(key []byte, v any) (bool, error) {
	if err := keyvaluedb.ValidateEntry(key, v); err != nil {
		return false, err
	}
	data, found, err := db.ReadRaw(key)
	if err != nil || !found {
		return false, err
	}
	if err := db.decode(data, v); err != nil {
		return true, fmt.Errorf("bolt db read failed, decoding %x: %w", key, err)
	}
	return true, nil
}

func (db *BoltDB) ReadRaw(key []byte) (data []byte, found bool, err error) {
	if err := keyvaluedb.ValidateKey(key); err != nil {
		return nil, false, err
	}
	err = db.db.View(func(tx *bolt.Tx) error {
		// value returned by Get is only valid for the life of the transaction
		if v := tx.Bucket(ledgerBucket).Get(key); v != nil {
			data, found = bytes.Clone(v), true
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("bolt db read failed: %w", err)
	}
	return data, found, nil
}

func (db *BoltDB) Write(key []byte, v any) error {
	if err := keyvaluedb.ValidateEntry(key, v); err != nil {
		return err
	}
	data, err := db.encode(v)
	if err != nil {
		return fmt.Errorf("encoding value of %x: %w", key, err)
	}
	return db.update(func(b *bolt.Bucket) error { return b.Put(key, data) })
}

func (db *BoltDB) Delete(key []byte) error {
	if err := keyvaluedb.ValidateKey(key); err != nil {
		return err
	}
	return db.update(func(b *bolt.Bucket) error { return b.Delete(key) })
}

func (db *BoltDB) update(f func(b *bolt.Bucket) error) error {
	if err := db.db.Update(func(tx *bolt.Tx) error { return f(tx.Bucket(ledgerBucket)) }); err != nil {
		return fmt.Errorf("bolt db write failed: %w", err)
	}
	return nil
}

func (db *BoltDB) First() keyvaluedb.Iterator {
	return newIterator(db.db, nil, db.decode)
}

func (db *BoltDB) Find(key []byte) keyvaluedb.Iterator {
	return newIterator(db.db, key, db.decode)
}

func (db *BoltDB) StartTx() (keyvaluedb.DBTransaction, error) {
	btx, err := db.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("starting bolt db transaction: %w", err)
	}
	return &tx{tx: btx, bucket: btx.Bucket(ledgerBucket), encode: db.encode, decode: db.decode}, nil
}

func (db *BoltDB) Close() error {
	return db.db.Close()
}
