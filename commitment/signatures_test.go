package commitment

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/eth2030/merkledrop/core/types"
	"github.com/eth2030/merkledrop/crypto"
	"github.com/eth2030/merkledrop/merkle"
)

func signedSetup(t *testing.T, n int) (*Commitment, *crypto.Domain, []*ecdsa.PrivateKey) {
	t.Helper()
	keys := make([]*ecdsa.PrivateKey, n)
	ents := make([]types.Entitlement, n)
	for i := range keys {
		k, err := crypto.GenerateKey()
		if err != nil {
			t.Fatal(err)
		}
		keys[i] = k
		ents[i] = types.NewEntitlement(crypto.PubkeyToAddress(k.PublicKey), uint256.NewInt(uint64(10*(i+1))))
	}
	tree, err := merkle.Build(ents)
	if err != nil {
		t.Fatal(err)
	}
	domain := crypto.NewDomain("MerkleDrop", "1", uint256.NewInt(1), types.HexToAddress("0xc0ffee"))
	return FromTree(tree), domain, keys
}

func signEntry(t *testing.T, c *Commitment, d *crypto.Domain, key *ecdsa.PrivateKey) SignedClaim {
	t.Helper()
	account := crypto.PubkeyToAddress(key.PublicKey)
	e, err := c.Lookup(account)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := crypto.Sign(d.ClaimDigest(account, e.Amount), key)
	if err != nil {
		t.Fatal(err)
	}
	return SignedClaim{Account: account, Signature: sig}
}

func TestCheckSignatures(t *testing.T) {
	c, domain, keys := signedSetup(t, 4)
	other := crypto.NewDomain("MerkleDrop", "1", uint256.NewInt(5), types.HexToAddress("0xc0ffee"))

	stranger, _ := crypto.GenerateKey()
	foreign := signEntry(t, c, domain, keys[1])
	foreign.Account = crypto.PubkeyToAddress(keys[2].PublicKey)

	claims := []SignedClaim{
		signEntry(t, c, domain, keys[0]),
		signEntry(t, c, domain, keys[1]),
		signEntry(t, c, other, keys[3]),
		{Account: crypto.PubkeyToAddress(stranger.PublicKey), Signature: signEntry(t, c, domain, keys[0]).Signature},
		foreign,
		{Account: crypto.PubkeyToAddress(keys[0].PublicKey), Signature: &crypto.CompactSignature{}},
	}
	for _, workers := range []int{0, 2} {
		res, err := c.CheckSignatures(domain, claims, workers)
		if err != nil {
			t.Fatal(err)
		}
		if res.Checked != len(claims) {
			t.Fatalf("Checked = %d", res.Checked)
		}
		if fmt.Sprint(res.Failed) != "[2 3 4 5]" {
			t.Fatalf("Failed = %v", res.Failed)
		}
		for i, err := range res.Errs {
			want := ErrBadSignature
			if res.Failed[i] == 3 {
				want = ErrUnknownAccount
			}
			if !errors.Is(err, want) {
				t.Errorf("claim %d: got %v, want %v", res.Failed[i], err, want)
			}
		}
	}
}

func TestCheckSignaturesAllValid(t *testing.T) {
	c, domain, keys := signedSetup(t, 3)
	var claims []SignedClaim
	for _, k := range keys {
		claims = append(claims, signEntry(t, c, domain, k))
	}
	res, err := c.CheckSignatures(domain, claims, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK() || res.Err() != nil {
		t.Fatalf("unexpected failures: %v", res.Err())
	}
}

func TestLoadSignedClaims(t *testing.T) {
	c, domain, keys := signedSetup(t, 1)
	sc := signEntry(t, c, domain, keys[0])
	raw := sc.Signature.Bytes()
	raw[64] = crypto.EncodeVLegacy(raw[64])

	doc := fmt.Sprintf(`[{"account": %q, "signature": %q}]`, sc.Account.Hex(), hexutil.Encode(raw))
	claims, err := LoadSignedClaims(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if len(claims) != 1 || claims[0].Account != sc.Account || *claims[0].Signature != *sc.Signature {
		t.Fatalf("loaded %+v", claims)
	}

	for name, bad := range map[string]string{
		"short":   fmt.Sprintf(`[{"account": %q, "signature": "0x01"}]`, sc.Account.Hex()),
		"no0x":    fmt.Sprintf(`[{"account": %q, "signature": "00"}]`, sc.Account.Hex()),
		"unknown": `[{"account": "0x01", "signature": "0x00", "amount": "1"}]`,
		"object":  `{}`,
	} {
		if _, err := LoadSignedClaims(strings.NewReader(bad)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
