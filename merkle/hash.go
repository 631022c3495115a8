// Package merkle builds and verifies the sorted-pair keccak256 Merkle
// commitment over a list of entitlements.
//
// Leaves are keccak256(keccak256(abi.encode(address, uint256))). Internal
// nodes are keccak256 of the two child digests in ascending byte order, so a
// proof is just the list of sibling digests from leaf to root and carries no
// position bits.
package merkle

import (
	"github.com/holiman/uint256"

	"github.com/eth2030/merkledrop/core/types"
	"github.com/eth2030/merkledrop/crypto"
)

// EncodedEntitlementSize is the length of an ABI encoded (address, uint256).
const EncodedEntitlementSize = 64

// EncodeEntitlement returns abi.encode(account, amount): the address
// left-padded to 32 bytes followed by the 32-byte big-endian amount. A nil
// amount encodes as zero.
func EncodeEntitlement(account types.Address, amount *uint256.Int) []byte {
	buf := make([]byte, EncodedEntitlementSize)
	copy(buf[12:32], account[:])
	if amount != nil {
		amount.WriteToSlice(buf[32:64])
	}
	return buf
}

// LeafHash returns the double-hashed leaf digest for an entitlement.
func LeafHash(account types.Address, amount *uint256.Int) types.Hash {
	return crypto.DoubleKeccak256Hash(EncodeEntitlement(account, amount))
}

// EntitlementLeaf is LeafHash for an Entitlement value.
func EntitlementLeaf(e types.Entitlement) types.Hash {
	return LeafHash(e.Account, e.Amount)
}

// HashPair hashes two sibling digests in sorted order.
func HashPair(a, b types.Hash) types.Hash {
	if b.Less(a) {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}
