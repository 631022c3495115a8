package crypto

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/eth2030/merkledrop/core/types"
	"github.com/eth2030/merkledrop/geth"
)

// secp256k1N is the order of the secp256k1 curve.
var secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)

// secp256k1halfN is half the order, used for the low-S check.
var secp256k1halfN = new(big.Int).Div(secp256k1N, big.NewInt(2))

// GenerateKey generates a new secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return gethcrypto.GenerateKey()
}

// HexToECDSA parses a hex encoded secp256k1 private key.
func HexToECDSA(hexkey string) (*ecdsa.PrivateKey, error) {
	if has0x(hexkey) {
		hexkey = hexkey[2:]
	}
	return gethcrypto.HexToECDSA(hexkey)
}

// Sign produces a low-S recoverable signature over a 32-byte digest.
func Sign(digest types.Hash, prv *ecdsa.PrivateKey) (*CompactSignature, error) {
	if prv == nil {
		return nil, errors.New("crypto: nil private key")
	}
	sig, err := gethcrypto.Sign(digest[:], prv)
	if err != nil {
		return nil, err
	}
	return ParseCompactSignature(sig)
}

// SigToPub recovers the public key from hash and 65-byte [R || S || V]
// signature with V in {0, 1}.
func SigToPub(hash, sig []byte) (*ecdsa.PublicKey, error) {
	if len(sig) != 65 {
		return nil, errors.New("signature must be 65 bytes [R || S || V]")
	}
	if len(hash) != 32 {
		return nil, errors.New("hash must be 32 bytes")
	}
	return gethcrypto.SigToPub(hash, sig)
}

// PubkeyToAddress derives the Ethereum address from a public key.
// Address = Keccak256(pubkey[1:])[12:]
func PubkeyToAddress(p ecdsa.PublicKey) types.Address {
	return geth.FromGethAddress(gethcrypto.PubkeyToAddress(p))
}

func has0x(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
