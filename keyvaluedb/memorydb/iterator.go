package memorydb

import (
	"bytes"
	"errors"
	"slices"
	"strings"

	"github.com/resmeter/resmeter/keyvaluedb"
)

var (
	errClosed          = errors.New("memory db is closed")
	errInvalidIterator = errors.New("iterator is not valid")
)

type entry struct {
	key   []byte
	value []byte
}

// iterator walks over a sorted snapshot of the database taken when it was created.
type iterator struct {
	entries []entry
	pos     int
	decode  keyvaluedb.DecodeFn
}

// newIterator positions the iterator at the first key >= "seek".
func newIterator(data map[string][]byte, seek []byte, decode keyvaluedb.DecodeFn) *iterator {
	keys := make([]string, 0, len(data))
	for k := range data {
		if bytes.Compare([]byte(k), seek) >= 0 {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, strings.Compare)

	it := &iterator{entries: make([]entry, len(keys)), decode: decode}
	for i, k := range keys {
		it.entries[i] = entry{key: []byte(k), value: data[k]}
	}
	return it
}

func (it *iterator) Next() {
	if it.Valid() {
		it.pos++
	}
}

func (it *iterator) Valid() bool {
	return it.pos < len(it.entries)
}

func (it *iterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.entries[it.pos].key
}

func (it *iterator) Value(v any) error {
	if !it.Valid() {
		return errInvalidIterator
	}
	return it.decode(it.entries[it.pos].value, v)
}

func (it *iterator) Close() error {
	it.entries = nil
	return nil
}
