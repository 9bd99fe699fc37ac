package types

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	AddressLength = 20

	// AddressPrefix is the version byte of the base58check text form.
	AddressPrefix byte = 0x41
)

type Address [AddressLength]byte

// AddressFromBytes converts b into Address, b must be exactly AddressLength bytes.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, fmt.Errorf("invalid address length %d, expected %d", len(b), AddressLength)
	}
	copy(a[:], b)
	return a, nil
}

/*
ParseAddress accepts either base58check encoded address (with AddressPrefix
as the version byte) or hex encoded 20 byte address (optionally prefixed by
"0x" or by the "41" version byte).
*/
func ParseAddress(s string) (Address, error) {
	if b, ver, err := base58.CheckDecode(s); err == nil {
		if ver != AddressPrefix {
			return Address{}, fmt.Errorf("invalid address version byte %#x", ver)
		}
		return AddressFromBytes(b)
	}

	hs := s
	if len(hs) > 2 && (hs[:2] == "0x" || hs[:2] == "0X") {
		hs = hs[2:]
	}
	b, err := hex.DecodeString(hs)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: not base58check nor hex encoded", s)
	}
	if len(b) == AddressLength+1 && b[0] == AddressPrefix {
		b = b[1:]
	}
	return AddressFromBytes(b)
}

func (a Address) Bytes() []byte {
	return bytes.Clone(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) String() string {
	return base58.CheckEncode(a[:], AddressPrefix)
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	v, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
