package claim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/eth2030/merkledrop/core/rawdb"
	"github.com/eth2030/merkledrop/core/types"
)

// RedemptionRecord tracks which accounts have redeemed. An entry moves from
// unclaimed to claimed once; ClearClaimed exists only to roll back a claim
// whose payout failed.
type RedemptionRecord interface {
	IsClaimed(account types.Address) (bool, error)
	SetClaimed(account types.Address) error
	ClearClaimed(account types.Address) error
}

// RootBinder is implemented by records that remember which commitment root
// they were created for.
type RootBinder interface {
	BindRoot(root types.Hash) error
}

var claimedMarker = []byte{0x01}

// Record is a RedemptionRecord stored in a key-value database under
// rawdb.ClaimedKey.
type Record struct {
	mu sync.Mutex // guards root binding
	db rawdb.KeyValueStore
}

// NewRecord returns a record persisted in db.
func NewRecord(db rawdb.KeyValueStore) *Record {
	return &Record{db: db}
}

// NewMemoryRecord returns a record held in memory only.
func NewMemoryRecord() *Record {
	return NewRecord(rawdb.NewMemoryDB())
}

// IsClaimed reports whether account has redeemed.
func (r *Record) IsClaimed(account types.Address) (bool, error) {
	ok, err := r.db.Has(rawdb.ClaimedKey(account))
	if err != nil {
		return false, fmt.Errorf("claim: read record for %s: %w", account.Hex(), err)
	}
	return ok, nil
}

// SetClaimed marks account as redeemed.
func (r *Record) SetClaimed(account types.Address) error {
	if err := r.db.Put(rawdb.ClaimedKey(account), claimedMarker); err != nil {
		return fmt.Errorf("claim: mark %s: %w", account.Hex(), err)
	}
	return nil
}

// ClearClaimed removes the redeemed mark for account.
func (r *Record) ClearClaimed(account types.Address) error {
	if err := r.db.Delete(rawdb.ClaimedKey(account)); err != nil {
		return fmt.Errorf("claim: unmark %s: %w", account.Hex(), err)
	}
	return nil
}

// BindRoot stores root on first use and afterwards rejects any other root,
// so a persisted record cannot be reused for a different commitment.
func (r *Record) BindRoot(root types.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.db.Get(rawdb.RootKey())
	switch {
	case errors.Is(err, rawdb.ErrNotFound):
		if err := r.db.Put(rawdb.RootKey(), root.Bytes()); err != nil {
			return fmt.Errorf("claim: bind root: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("claim: read root: %w", err)
	}
	if types.BytesToHash(stored) != root || len(stored) != types.HashLength {
		return fmt.Errorf("%w: stored %x, want %s", ErrRootMismatch, stored, root.Hex())
	}
	return nil
}

// Claimed lists every redeemed account in ascending order. It requires a
// backing store that supports iteration.
func (r *Record) Claimed() ([]types.Address, error) {
	itdb, ok := r.db.(rawdb.KeyValueIterator)
	if !ok {
		return nil, errors.New("claim: record store does not support iteration")
	}
	it := itdb.NewIterator(rawdb.ClaimedPrefix())
	defer it.Release()

	var out []types.Address
	prefix := len(rawdb.ClaimedPrefix())
	for it.Next() {
		key := it.Key()
		if len(key) != prefix+types.AddressLength {
			continue
		}
		out = append(out, types.BytesToAddress(key[prefix:]))
	}
	return out, nil
}
