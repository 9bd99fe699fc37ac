package test

import (
	"crypto/rand"

	"github.com/resmeter/resmeter/types"
)

func RandomBytes(len int) []byte {
	bytes := make([]byte, len)
	_, err := rand.Read(bytes)
	if err != nil {
		panic(err)
	}
	return bytes
}

// RandomAddress returns random non-zero account address.
func RandomAddress() types.Address {
	for {
		addr, err := types.AddressFromBytes(RandomBytes(len(types.Address{})))
		if err != nil {
			panic(err)
		}
		if !addr.IsZero() {
			return addr
		}
	}
}
