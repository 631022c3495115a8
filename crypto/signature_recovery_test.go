package crypto

import (
	"math/big"
	"testing"

	"github.com/eth2030/merkledrop/core/types"
)

func mustKey(t *testing.T) (*SigRecover, types.Address, func(types.Hash) *CompactSignature) {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	sign := func(h types.Hash) *CompactSignature {
		sig, err := Sign(h, key)
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		return sig
	}
	return NewSigRecover(), PubkeyToAddress(key.PublicKey), sign
}

func TestParseCompactSignature(t *testing.T) {
	sig := make([]byte, 65)
	sig[0] = 0xAA  // first byte of R
	sig[32] = 0xBB // first byte of S
	sig[64] = 1    // V

	cs, err := ParseCompactSignature(sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs.R[0] != 0xAA {
		t.Fatalf("R[0] = %x, want 0xAA", cs.R[0])
	}
	if cs.S[0] != 0xBB {
		t.Fatalf("S[0] = %x, want 0xBB", cs.S[0])
	}
	if cs.V != 1 {
		t.Fatalf("V = %d, want 1", cs.V)
	}
}

func TestParseCompactSignatureTooShort(t *testing.T) {
	_, err := ParseCompactSignature(make([]byte, 64))
	if err != ErrSigRecoverInvalidLength {
		t.Fatalf("expected ErrSigRecoverInvalidLength, got %v", err)
	}
}

func TestParseCompactSignatureLegacyV(t *testing.T) {
	sig := make([]byte, 65)
	sig[64] = 28
	cs, err := ParseCompactSignature(sig)
	if err != nil {
		t.Fatal(err)
	}
	if cs.V != 1 {
		t.Fatalf("V = %d, want 1", cs.V)
	}
}

func TestNormalizeV(t *testing.T) {
	tests := []struct {
		in, want byte
	}{
		{0, 0}, {1, 1}, {27, 0}, {28, 1}, {2, 2}, {29, 29},
	}
	for _, tt := range tests {
		if got := NormalizeV(tt.in); got != tt.want {
			t.Errorf("NormalizeV(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if EncodeVLegacy(1) != 28 {
		t.Error("EncodeVLegacy(1) != 28")
	}
}

func TestValidateRejectsBadComponents(t *testing.T) {
	one := [32]byte{31: 1}
	var nBytes, highS [32]byte
	secp256k1N.FillBytes(nBytes[:])
	new(big.Int).Add(secp256k1halfN, big.NewInt(1)).FillBytes(highS[:])

	tests := []struct {
		name string
		sig  *CompactSignature
		want error
	}{
		{"nil", nil, ErrSigRecoverNil},
		{"zero R", &CompactSignature{S: one}, ErrSigRecoverInvalidR},
		{"zero S", &CompactSignature{R: one}, ErrSigRecoverInvalidS},
		{"R = n", &CompactSignature{R: nBytes, S: one}, ErrSigRecoverInvalidR},
		{"high S", &CompactSignature{R: one, S: highS}, ErrSigRecoverMalleable},
		{"bad V", &CompactSignature{R: one, S: one, V: 4}, ErrSigRecoverInvalidV},
	}
	for _, tt := range tests {
		if err := tt.sig.Validate(); err != tt.want {
			t.Errorf("%s: Validate() = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestSignAndRecover(t *testing.T) {
	sr, addr, sign := mustKey(t)
	digest := Keccak256Hash([]byte("claim"))
	sig := sign(digest)

	got, ok := sr.RecoverSigner(digest, sig)
	if !ok {
		t.Fatal("recovery failed")
	}
	if got != addr {
		t.Fatalf("recovered %s, want %s", got, addr)
	}
	if !IsAuthorized(addr, digest, sig) {
		t.Fatal("IsAuthorized should accept the real signer")
	}
	if IsAuthorized(types.HexToAddress("0x01"), digest, sig) {
		t.Fatal("IsAuthorized should reject a different identity")
	}
}

func TestRecoverSignerToleratesGarbage(t *testing.T) {
	digest := Keccak256Hash([]byte("claim"))
	garbage := []*CompactSignature{
		nil,
		{},
		{R: [32]byte{0: 0xff, 1: 0xff, 2: 0xff, 3: 0xff, 4: 0xff, 5: 0xff, 6: 0xff, 7: 0xff, 8: 0xff, 9: 0xff, 10: 0xff, 11: 0xff, 12: 0xff, 13: 0xff, 14: 0xff, 15: 0xff}, S: [32]byte{31: 1}, V: 0},
		{R: [32]byte{31: 1}, S: [32]byte{31: 1}, V: 9},
	}
	for i, sig := range garbage {
		if _, ok := RecoverSigner(digest, sig); ok {
			t.Errorf("case %d: garbage signature recovered an identity", i)
		}
	}
}

func TestHighSRejectedEvenIfRecoverable(t *testing.T) {
	_, addr, sign := mustKey(t)
	digest := Keccak256Hash([]byte("malleable"))
	sig := sign(digest)

	// Flip to the high-S twin: mathematically valid, but non-canonical.
	s := new(big.Int).Sub(secp256k1N, sig.SBigInt())
	flipped := &CompactSignature{R: sig.R, V: sig.V ^ 1}
	s.FillBytes(flipped.S[:])

	if IsAuthorized(addr, digest, flipped) {
		t.Fatal("high-S signature must not authorize")
	}
	if err := flipped.Validate(); err != ErrSigRecoverMalleable {
		t.Fatalf("Validate = %v, want ErrSigRecoverMalleable", err)
	}
	if !IsAuthorized(addr, digest, sig) {
		t.Fatal("canonical signature should authorize")
	}
}

func TestBatchRecover(t *testing.T) {
	sr, addr, sign := mustKey(t)
	n := 12
	digests := make([]types.Hash, n)
	sigs := make([]*CompactSignature, n)
	for i := 0; i < n; i++ {
		digests[i] = Keccak256Hash([]byte{byte(i)})
		sigs[i] = sign(digests[i])
	}
	sigs[5] = &CompactSignature{}

	for _, workers := range []int{0, 1, 3} {
		results, err := sr.BatchRecover(digests, sigs, workers)
		if err != nil {
			t.Fatal(err)
		}
		checkBatch(t, results, addr)
	}

	if _, err := sr.BatchRecover(digests, sigs[:3], 2); err != ErrSigRecoverBatchMismatch {
		t.Fatalf("expected ErrSigRecoverBatchMismatch, got %v", err)
	}
	if results, err := sr.BatchRecover(nil, nil, 2); err != nil || len(results) != 0 {
		t.Fatalf("empty batch: %v, %v", results, err)
	}
}

func checkBatch(t *testing.T, results []BatchRecoveryResult, addr types.Address) {
	t.Helper()
	for i, r := range results {
		if i == 5 {
			if r.Err == nil {
				t.Errorf("result %d: expected error", i)
			}
			continue
		}
		if r.Err != nil || r.Address != addr {
			t.Errorf("result %d: got (%s, %v), want %s", i, r.Address, r.Err, addr)
		}
	}
}
