package claim

import "errors"

// Claim rejections. Each is returned unwrapped except ErrLedgerTransferFailed,
// which wraps the ledger's own error.
var (
	ErrAlreadyClaimed       = errors.New("claim: already claimed")
	ErrInvalidSignature     = errors.New("claim: invalid signature")
	ErrInvalidProof         = errors.New("claim: invalid proof")
	ErrLedgerTransferFailed = errors.New("claim: ledger transfer failed")
)

// Construction and storage errors.
var (
	ErrNilLedger    = errors.New("claim: nil ledger")
	ErrNilRecord    = errors.New("claim: nil redemption record")
	ErrNilChainID   = errors.New("claim: nil chain id")
	ErrZeroRoot     = errors.New("claim: zero root")
	ErrRootMismatch = errors.New("claim: record belongs to a different root")
)
