// ECDSA signature recovery for claim authorization.
//
// Provides compact signature representation (65 bytes: R || S || V),
// signer recovery from a digest, claimed-identity comparison and batch
// recovery for auditing many signed claims at once.
//
// V value encoding accepted on input:
//   - 0 or 1: raw recovery ID
//   - 27 or 28: Ethereum legacy encoding
//
// Signature malleability: S must be in the lower half of the curve order.
// A high-S signature is rejected instead of being normalized, so each
// authorization has exactly one valid encoding.
package crypto

import (
	"errors"
	"math/big"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/eth2030/merkledrop/core/types"
)

// SigRecover provides ECDSA signature recovery operations. Stateless; all
// methods are safe for concurrent use.
type SigRecover struct{}

// NewSigRecover creates a new SigRecover instance.
func NewSigRecover() *SigRecover {
	return &SigRecover{}
}

var defaultRecover = NewSigRecover()

// CompactSignature is a 65-byte ECDSA signature: R (32) || S (32) || V (1).
// V is the raw recovery ID after parsing.
type CompactSignature struct {
	R [32]byte
	S [32]byte
	V byte
}

// Errors for signature recovery operations.
var (
	ErrSigRecoverInvalidLength = errors.New("sig_recover: signature must be 65 bytes")
	ErrSigRecoverInvalidV      = errors.New("sig_recover: invalid V value")
	ErrSigRecoverInvalidR      = errors.New("sig_recover: R must be in [1, n-1]")
	ErrSigRecoverInvalidS      = errors.New("sig_recover: S must be in [1, n-1]")
	ErrSigRecoverMalleable     = errors.New("sig_recover: S is in upper half (malleable)")
	ErrSigRecoverNil           = errors.New("sig_recover: nil signature")
	ErrSigRecoverFailed        = errors.New("sig_recover: public key recovery failed")
	ErrSigRecoverBatchMismatch = errors.New("sig_recover: batch lengths do not match")
)

// ParseCompactSignature parses a 65-byte signature into a CompactSignature.
// Does not validate the signature components; use Validate for that.
func ParseCompactSignature(sig []byte) (*CompactSignature, error) {
	if len(sig) != 65 {
		return nil, ErrSigRecoverInvalidLength
	}
	cs := &CompactSignature{V: NormalizeV(sig[64])}
	copy(cs.R[:], sig[:32])
	copy(cs.S[:], sig[32:64])
	return cs, nil
}

// Bytes encodes the compact signature as 65 bytes: R || S || V.
func (cs *CompactSignature) Bytes() []byte {
	buf := make([]byte, 65)
	copy(buf[:32], cs.R[:])
	copy(buf[32:64], cs.S[:])
	buf[64] = cs.V
	return buf
}

// RBigInt returns R as a big.Int.
func (cs *CompactSignature) RBigInt() *big.Int {
	return new(big.Int).SetBytes(cs.R[:])
}

// SBigInt returns S as a big.Int.
func (cs *CompactSignature) SBigInt() *big.Int {
	return new(big.Int).SetBytes(cs.S[:])
}

// NormalizeV converts a legacy V (27/28) to the raw recovery ID. Any other
// value is returned unchanged and later rejected by Validate.
func NormalizeV(v byte) byte {
	if v == 27 || v == 28 {
		return v - 27
	}
	return v
}

// EncodeVLegacy encodes a raw V (0 or 1) as legacy Ethereum V (27 or 28).
func EncodeVLegacy(rawV byte) byte {
	return rawV + 27
}

// Validate checks that the signature components are valid:
//   - R in [1, n-1]
//   - S in [1, n-1]
//   - S in lower half of curve order (non-malleable)
//   - V is 0 or 1
func (cs *CompactSignature) Validate() error {
	if cs == nil {
		return ErrSigRecoverNil
	}
	return validateSigComponents(cs.RBigInt(), cs.SBigInt(), cs.V)
}

// validateSigComponents checks r, s, v for correctness.
func validateSigComponents(r, s *big.Int, v byte) error {
	if v > 1 {
		return ErrSigRecoverInvalidV
	}
	if r.Sign() <= 0 || r.Cmp(secp256k1N) >= 0 {
		return ErrSigRecoverInvalidR
	}
	if s.Sign() <= 0 || s.Cmp(secp256k1N) >= 0 {
		return ErrSigRecoverInvalidS
	}
	if s.Cmp(secp256k1halfN) > 0 {
		return ErrSigRecoverMalleable
	}
	return nil
}

// RecoverAddress recovers the signer address from a digest and signature,
// reporting why recovery failed.
func (sr *SigRecover) RecoverAddress(digest types.Hash, sig *CompactSignature) (types.Address, error) {
	if err := sig.Validate(); err != nil {
		return types.Address{}, err
	}
	pub, err := SigToPub(digest[:], sig.Bytes())
	if err != nil || pub == nil {
		return types.Address{}, ErrSigRecoverFailed
	}
	return PubkeyToAddress(*pub), nil
}

// RecoverSigner recovers the signer of digest. Any malformed, non-canonical
// or unrecoverable signature yields ok=false.
func (sr *SigRecover) RecoverSigner(digest types.Hash, sig *CompactSignature) (types.Address, bool) {
	addr, err := sr.RecoverAddress(digest, sig)
	if err != nil {
		return types.Address{}, false
	}
	return addr, true
}

// IsAuthorized reports whether sig over digest was produced by claimed.
func (sr *SigRecover) IsAuthorized(claimed types.Address, digest types.Hash, sig *CompactSignature) bool {
	signer, ok := sr.RecoverSigner(digest, sig)
	return ok && signer == claimed
}

// RecoverSigner recovers the signer of digest using a shared SigRecover.
func RecoverSigner(digest types.Hash, sig *CompactSignature) (types.Address, bool) {
	return defaultRecover.RecoverSigner(digest, sig)
}

// IsAuthorized reports whether sig over digest was produced by claimed.
func IsAuthorized(claimed types.Address, digest types.Hash, sig *CompactSignature) bool {
	return defaultRecover.IsAuthorized(claimed, digest, sig)
}

// BatchRecoveryResult holds the result of a single recovery in a batch.
type BatchRecoveryResult struct {
	Address types.Address
	Err     error
}

// BatchRecover recovers the signer of every (digest, signature) pair.
// Results are returned in input order. At most workers goroutines run at
// once; values below one fall back to GOMAXPROCS.
func (sr *SigRecover) BatchRecover(digests []types.Hash, sigs []*CompactSignature, workers int) ([]BatchRecoveryResult, error) {
	n := len(digests)
	if n != len(sigs) {
		return nil, ErrSigRecoverBatchMismatch
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]BatchRecoveryResult, n)

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range n {
		g.Go(func() error {
			results[i] = sr.recoverOne(digests[i], sigs[i])
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (sr *SigRecover) recoverOne(digest types.Hash, sig *CompactSignature) BatchRecoveryResult {
	addr, err := sr.RecoverAddress(digest, sig)
	return BatchRecoveryResult{Address: addr, Err: err}
}
