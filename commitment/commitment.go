// Package commitment is the published form of a Merkle distribution: the
// root plus every entitlement with its leaf digest and proof, so claimants
// can fetch their proof and anyone can audit the list against the root.
package commitment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/holiman/uint256"

	"github.com/eth2030/merkledrop/core/types"
	"github.com/eth2030/merkledrop/merkle"
)

var (
	ErrLeafMismatch   = errors.New("commitment: leaf does not match entitlement")
	ErrProofMismatch  = errors.New("commitment: proof does not reach root")
	ErrUnknownAccount = errors.New("commitment: account not in commitment")
)

// Entry is one published entitlement.
type Entry struct {
	Account types.Address
	Amount  *uint256.Int
	Leaf    types.Hash
	Proof   []types.Hash
}

// Verify recomputes the leaf from Account and Amount and checks the proof
// against root.
func (e Entry) Verify(root types.Hash) error {
	leaf := merkle.LeafHash(e.Account, e.Amount)
	if leaf != e.Leaf {
		return fmt.Errorf("%w: %s", ErrLeafMismatch, e.Account.Hex())
	}
	if !merkle.Verify(leaf, e.Proof, root) {
		return fmt.Errorf("%w: %s", ErrProofMismatch, e.Account.Hex())
	}
	return nil
}

// Commitment is a root and the entries it commits to, in leaf order.
type Commitment struct {
	Root      types.Hash
	OddPolicy merkle.OddPolicy
	Entries   []Entry
}

// FromTree captures a built tree for publication.
func FromTree(tree *merkle.Tree) *Commitment {
	c := &Commitment{
		Root:      tree.Root(),
		OddPolicy: tree.OddPolicy(),
		Entries:   make([]Entry, tree.Len()),
	}
	for i := range c.Entries {
		e, _ := tree.Entitlement(i)
		leaf, _ := tree.Leaf(i)
		proof, _ := tree.Proof(i)
		c.Entries[i] = Entry{Account: e.Account, Amount: e.Amount, Leaf: leaf, Proof: proof}
	}
	return c
}

// Verify checks every entry against the root and returns the first failure.
func (c *Commitment) Verify() error {
	for i, e := range c.Entries {
		if err := e.Verify(c.Root); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}

// Lookup returns the first entry for account.
func (c *Commitment) Lookup(account types.Address) (Entry, error) {
	for _, e := range c.Entries {
		if e.Account == account {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrUnknownAccount, account.Hex())
}

// Total returns the sum of all entry amounts, or false if it overflows.
func (c *Commitment) Total() (*uint256.Int, bool) {
	sum := new(uint256.Int)
	for _, e := range c.Entries {
		if e.Amount == nil {
			continue
		}
		if _, overflow := sum.AddOverflow(sum, e.Amount); overflow {
			return nil, false
		}
	}
	return sum, true
}

type jsonEntry struct {
	Account types.Address `json:"account"`
	Amount  string        `json:"amount"`
	Leaf    types.Hash    `json:"leaf"`
	Proof   []types.Hash  `json:"proof"`
}

type jsonCommitment struct {
	Root      types.Hash  `json:"root"`
	OddPolicy string      `json:"oddPolicy"`
	Entries   []jsonEntry `json:"entries"`
}

// MarshalJSON encodes digests and addresses as 0x hex and amounts as
// decimal strings.
func (c *Commitment) MarshalJSON() ([]byte, error) {
	out := jsonCommitment{
		Root:      c.Root,
		OddPolicy: c.OddPolicy.String(),
		Entries:   make([]jsonEntry, len(c.Entries)),
	}
	for i, e := range c.Entries {
		amount := "0"
		if e.Amount != nil {
			amount = e.Amount.Dec()
		}
		proof := e.Proof
		if proof == nil {
			proof = []types.Hash{}
		}
		out.Entries[i] = jsonEntry{Account: e.Account, Amount: amount, Leaf: e.Leaf, Proof: proof}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Commitment) UnmarshalJSON(data []byte) error {
	var in jsonCommitment
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	odd, err := parseOddPolicy(in.OddPolicy)
	if err != nil {
		return err
	}
	entries := make([]Entry, len(in.Entries))
	for i, e := range in.Entries {
		amount, err := ParseAmount(e.Amount)
		if err != nil {
			return fmt.Errorf("commitment: entry %d: %w", i, err)
		}
		entries[i] = Entry{Account: e.Account, Amount: amount, Leaf: e.Leaf, Proof: e.Proof}
	}
	*c = Commitment{Root: in.Root, OddPolicy: odd, Entries: entries}
	return nil
}

func parseOddPolicy(s string) (merkle.OddPolicy, error) {
	switch s {
	case "", merkle.CarryOdd.String():
		return merkle.CarryOdd, nil
	case merkle.DuplicateOdd.String():
		return merkle.DuplicateOdd, nil
	default:
		return 0, fmt.Errorf("commitment: unknown odd policy %q", s)
	}
}

// Write encodes c as indented JSON.
func (c *Commitment) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// Read decodes a commitment from r.
func Read(r io.Reader) (*Commitment, error) {
	c := new(Commitment)
	if err := json.NewDecoder(r).Decode(c); err != nil {
		return nil, fmt.Errorf("commitment: decode: %w", err)
	}
	return c, nil
}

// WriteFile writes c to path, replacing any existing file.
func (c *Commitment) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads a commitment from path.
func ReadFile(path string) (*Commitment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
