package crypto

import (
	"github.com/eth2030/merkledrop/core/types"
	"golang.org/x/crypto/sha3"
)

// Keccak256 calculates the Keccak-256 hash of the given data.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash calculates Keccak-256 and returns it as a types.Hash.
func Keccak256Hash(data ...[]byte) types.Hash {
	var h types.Hash
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	d.Sum(h[:0])
	return h
}

// DoubleKeccak256Hash returns Keccak256(Keccak256(data...)). Leaves are
// hashed twice so their preimages can never be 64-byte internal node
// encodings.
func DoubleKeccak256Hash(data ...[]byte) types.Hash {
	inner := Keccak256Hash(data...)
	return Keccak256Hash(inner[:])
}
