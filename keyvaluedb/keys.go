package keyvaluedb

import (
	"errors"
	"fmt"
	"reflect"
)

// MaxKeyLength is the longest key accepted, ledger keys are a short prefix
// followed by an address or an asset name.
const MaxKeyLength = 512

var (
	ErrInvalidKey = errors.New("invalid key")
	ErrNilValue   = errors.New("value is nil")
)

func ValidateKey(key []byte) error {
	switch {
	case len(key) == 0:
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	case len(key) > MaxKeyLength:
		return fmt.Errorf("%w: length %d exceeds %d", ErrInvalidKey, len(key), MaxKeyLength)
	}
	return nil
}

// ValidateEntry checks the key and that the value is not a nil pointer.
func ValidateEntry(key []byte, value any) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if value == nil {
		return ErrNilValue
	}
	if v := reflect.ValueOf(value); v.Kind() == reflect.Pointer && v.IsNil() {
		return ErrNilValue
	}
	return nil
}
