package memorydb

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/resmeter/resmeter/keyvaluedb"
)

var errTxClosed = errors.New("memory db transaction is closed")

// tx buffers the changes until Commit, nil value marks deleted key.
type tx struct {
	db      *MemoryDB
	pending map[string][]byte
}

func (t *tx) Read(key []byte, v any) (bool, error) {
	if err := keyvaluedb.ValidateEntry(key, v); err != nil {
		return false, err
	}
	if t.pending == nil {
		return false, errTxClosed
	}
	data, ok := t.pending[string(key)]
	if !ok {
		return t.db.Read(key, v)
	}
	if data == nil {
		return false, nil
	}
	return true, t.db.decode(data, v)
}

func (t *tx) Write(key []byte, value any) error {
	if err := keyvaluedb.ValidateEntry(key, value); err != nil {
		return err
	}
	data, err := t.db.encode(value)
	if err != nil {
		return fmt.Errorf("encoding value of %x: %w", key, err)
	}
	return t.WriteRaw(key, data)
}

func (t *tx) WriteRaw(key, data []byte) error {
	if err := keyvaluedb.ValidateKey(key); err != nil {
		return err
	}
	if t.pending == nil {
		return errTxClosed
	}
	if err := t.writeErr(); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	t.pending[string(key)] = bytes.Clone(data)
	return nil
}

func (t *tx) Delete(key []byte) error {
	if err := keyvaluedb.ValidateKey(key); err != nil {
		return err
	}
	if t.pending == nil {
		return errTxClosed
	}
	t.pending[string(key)] = nil
	return nil
}

func (t *tx) Commit() error {
	if t.pending == nil {
		return errTxClosed
	}
	defer t.close()
	return t.db.apply(t.pending)
}

func (t *tx) Rollback() error {
	if t.pending != nil {
		t.close()
	}
	return nil
}

func (t *tx) close() {
	t.pending = nil
	t.db.lock.Lock()
	t.db.txOpen = false
	t.db.lock.Unlock()
}

func (t *tx) writeErr() error {
	t.db.lock.RLock()
	defer t.db.lock.RUnlock()
	return t.db.writeErr
}
