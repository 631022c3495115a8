package commitment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/eth2030/merkledrop/core/types"
	"github.com/eth2030/merkledrop/crypto"
)

var ErrBadSignature = errors.New("commitment: signature does not authorize claim")

// SignedClaim is a claimant's signature over its published entitlement.
type SignedClaim struct {
	Account   types.Address
	Signature *crypto.CompactSignature
}

type jsonSignedClaim struct {
	Account   types.Address `json:"account"`
	Signature hexutil.Bytes `json:"signature"`
}

// LoadSignedClaims reads a JSON array of {"account", "signature"} objects,
// signatures being 0x-prefixed 65-byte hex as printed by merkledrop sign.
func LoadSignedClaims(r io.Reader) ([]SignedClaim, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var raw []jsonSignedClaim
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("commitment: decode signed claims: %w", err)
	}
	out := make([]SignedClaim, len(raw))
	for i, c := range raw {
		sig, err := crypto.ParseCompactSignature(c.Signature)
		if err != nil {
			return nil, fmt.Errorf("commitment: signed claim %d: %w", i, err)
		}
		out[i] = SignedClaim{Account: c.Account, Signature: sig}
	}
	return out, nil
}

// CheckSignatures recovers the signer of every claim over the entitlement
// published for its account under domain, using up to workers goroutines.
// Claims for unknown accounts fail with ErrUnknownAccount, claims not signed
// by their account with ErrBadSignature.
func (c *Commitment) CheckSignatures(domain *crypto.Domain, claims []SignedClaim, workers int) (*AuditResult, error) {
	errs := make([]error, len(claims))
	var (
		idx     []int
		digests []types.Hash
		sigs    []*crypto.CompactSignature
	)
	for i, sc := range claims {
		e, err := c.Lookup(sc.Account)
		if err != nil {
			errs[i] = err
			continue
		}
		idx = append(idx, i)
		digests = append(digests, domain.ClaimDigest(e.Account, e.Amount))
		sigs = append(sigs, sc.Signature)
	}

	results, err := crypto.NewSigRecover().BatchRecover(digests, sigs, workers)
	if err != nil {
		return nil, err
	}
	for j, r := range results {
		i := idx[j]
		switch {
		case r.Err != nil:
			errs[i] = fmt.Errorf("%w: %w", ErrBadSignature, r.Err)
		case r.Address != claims[i].Account:
			errs[i] = fmt.Errorf("%w: signed by %s", ErrBadSignature, r.Address.Hex())
		}
	}

	res := &AuditResult{Checked: len(claims)}
	for i, err := range errs {
		if err != nil {
			res.Failed = append(res.Failed, i)
			res.Errs = append(res.Errs, err)
		}
	}
	return res, nil
}
