package keyvaluedb

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

type (
	EncodeFn func(v any) ([]byte, error)
	DecodeFn func(data []byte, v any) error
)

// values are stored in deterministic CBOR so that identical records
// produce identical bytes on every node.
var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("creating CBOR encoding mode: %w", err))
	}
	return em
}()

// Encode is the default value encoder of the databases.
func Encode(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Decode is the default value decoder of the databases.
func Decode(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
