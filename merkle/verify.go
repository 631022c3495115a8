package merkle

import (
	"github.com/holiman/uint256"

	"github.com/eth2030/merkledrop/core/types"
)

// ProcessProof folds proof into leaf and returns the resulting root.
func ProcessProof(leaf types.Hash, proof []types.Hash) types.Hash {
	computed := leaf
	for _, sibling := range proof {
		computed = HashPair(computed, sibling)
	}
	return computed
}

// Verify reports whether proof links leaf to root. It never fails on
// malformed input: empty, short or overlong proofs simply do not verify
// unless they genuinely recompute root.
func Verify(leaf types.Hash, proof []types.Hash, root types.Hash) bool {
	return ProcessProof(leaf, proof) == root
}

// VerifyEntitlement recomputes the leaf for (account, amount) and verifies it
// against root.
func VerifyEntitlement(account types.Address, amount *uint256.Int, proof []types.Hash, root types.Hash) bool {
	return Verify(LeafHash(account, amount), proof, root)
}
