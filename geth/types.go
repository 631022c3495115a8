// Package geth provides an adapter layer between merkledrop's type system and
// go-ethereum. Address types are layout-compatible, so conversion is
// zero-copy.
package geth

import (
	"math/big"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/eth2030/merkledrop/core/types"
)

// --- Address conversion (zero-copy, layout-compatible) ---

// FromGethAddress converts a go-ethereum Address to a merkledrop Address.
func FromGethAddress(a gethcommon.Address) types.Address {
	return types.Address(a)
}

// --- Amount conversion ---

// ToUint256 converts *big.Int to *uint256.Int. Negative or overflowing values
// report ok=false.
func ToUint256(b *big.Int) (*uint256.Int, bool) {
	if b == nil {
		return new(uint256.Int), true
	}
	if b.Sign() < 0 {
		return nil, false
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return nil, false
	}
	return u, true
}
