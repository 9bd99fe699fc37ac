package types

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

type (
	cborHandler struct {
		encMode cbor.EncMode
		decMode cbor.DecMode
	}

	RawCBOR = cbor.RawMessage
)

// Cbor is the codec of all the records, deterministic encoding is used so
// that every node computes the same serialized size for the same value.
var Cbor = newCborHandler()

func newCborHandler() cborHandler {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("creating CBOR encoding mode: %w", err))
	}
	dm, err := cbor.DecOptions{MaxArrayElements: 65536, MaxMapPairs: 65536}.DecMode()
	if err != nil {
		panic(fmt.Errorf("creating CBOR decoding mode: %w", err))
	}
	return cborHandler{encMode: em, decMode: dm}
}

func (c cborHandler) Marshal(v any) ([]byte, error) {
	return c.encMode.Marshal(v)
}

func (c cborHandler) Unmarshal(data []byte, v any) error {
	return c.decMode.Unmarshal(data, v)
}

// Size returns the length of the canonical encoding of v.
func (c cborHandler) Size(v any) (int, error) {
	b, err := c.encMode.Marshal(v)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}
