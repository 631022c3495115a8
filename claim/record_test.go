package claim

import (
	"errors"
	"testing"

	"github.com/eth2030/merkledrop/core/rawdb"
	"github.com/eth2030/merkledrop/core/types"
)

func TestRecordTransitions(t *testing.T) {
	r := NewMemoryRecord()
	a := types.HexToAddress("0x0a")
	if ok, err := r.IsClaimed(a); err != nil || ok {
		t.Fatalf("fresh record: %v, %v", ok, err)
	}
	if err := r.SetClaimed(a); err != nil {
		t.Fatal(err)
	}
	if ok, _ := r.IsClaimed(a); !ok {
		t.Fatal("SetClaimed did not mark")
	}
	// Marking twice is idempotent.
	if err := r.SetClaimed(a); err != nil {
		t.Fatal(err)
	}
	if err := r.ClearClaimed(a); err != nil {
		t.Fatal(err)
	}
	if ok, _ := r.IsClaimed(a); ok {
		t.Fatal("ClearClaimed did not unmark")
	}
}

func TestRecordClaimedList(t *testing.T) {
	r := NewMemoryRecord()
	addrs := []types.Address{types.HexToAddress("0x03"), types.HexToAddress("0x01"), types.HexToAddress("0x02")}
	for _, a := range addrs {
		r.SetClaimed(a)
	}
	r.BindRoot(types.HexToHash("0xaa"))

	got, err := r.Claimed()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != addrs[1] || got[1] != addrs[2] || got[2] != addrs[0] {
		t.Fatalf("Claimed = %v", got)
	}
}

type plainStore struct{ rawdb.KeyValueStore }

func TestRecordClaimedNeedsIterator(t *testing.T) {
	r := NewRecord(plainStore{rawdb.NewMemoryDB()})
	if _, err := r.Claimed(); err == nil {
		t.Fatal("expected error for non-iterable store")
	}
}

func TestRecordBindRoot(t *testing.T) {
	r := NewMemoryRecord()
	root := types.HexToHash("0x1234")
	if err := r.BindRoot(root); err != nil {
		t.Fatal(err)
	}
	if err := r.BindRoot(root); err != nil {
		t.Fatalf("rebinding the same root: %v", err)
	}
	if err := r.BindRoot(types.HexToHash("0x5678")); !errors.Is(err, ErrRootMismatch) {
		t.Fatalf("got %v, want ErrRootMismatch", err)
	}
}

func TestRecordStoreErrors(t *testing.T) {
	db := rawdb.NewMemoryDB()
	r := NewRecord(db)
	db.Close()
	a := types.HexToAddress("0x0a")
	if _, err := r.IsClaimed(a); !errors.Is(err, rawdb.ErrClosed) {
		t.Fatalf("IsClaimed: %v", err)
	}
	if err := r.SetClaimed(a); !errors.Is(err, rawdb.ErrClosed) {
		t.Fatalf("SetClaimed: %v", err)
	}
	// Store failures are not domain rejections.
	for _, sentinel := range []error{ErrAlreadyClaimed, ErrInvalidSignature, ErrInvalidProof, ErrLedgerTransferFailed} {
		if err := r.SetClaimed(a); errors.Is(err, sentinel) {
			t.Fatalf("store error matched %v", sentinel)
		}
	}
}
