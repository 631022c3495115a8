// Package claim implements the claim state machine of a Merkle-committed
// distribution: an account redeems its entitlement once by presenting a
// membership proof and a signature over a domain-separated Claim message.
package claim

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/holiman/uint256"

	"github.com/eth2030/merkledrop/core/types"
	"github.com/eth2030/merkledrop/crypto"
	"github.com/eth2030/merkledrop/ledger"
	"github.com/eth2030/merkledrop/log"
	"github.com/eth2030/merkledrop/merkle"
	"github.com/eth2030/merkledrop/metrics"
)

// Config fixes everything a distributor commits to at construction.
type Config struct {
	Name              string
	Version           string
	ChainID           *uint256.Int
	VerifyingContract types.Address
	Root              types.Hash
}

// ClaimedEvent is published after a claim has been paid out.
type ClaimedEvent struct {
	Account types.Address
	Amount  *uint256.Int
}

// Option configures a Distributor.
type Option func(*Distributor)

// WithLogger replaces the default "claim" module logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Distributor) { d.log = l }
}

// Distributor redeems entitlements committed to by a single root. Root,
// domain and ledger never change after New. Claims are processed one at a
// time.
type Distributor struct {
	root    types.Hash
	domain  *crypto.Domain
	ledger  ledger.Ledger
	record  RedemptionRecord
	recover *crypto.SigRecover
	log     *log.Logger

	mu sync.Mutex // serializes Claim

	feed  event.Feed
	scope event.SubscriptionScope

	closeOnce sync.Once
}

// New creates a distributor. If record implements RootBinder it is bound to
// cfg.Root, so a record created for another commitment is rejected.
func New(cfg Config, l ledger.Ledger, record RedemptionRecord, opts ...Option) (*Distributor, error) {
	switch {
	case l == nil:
		return nil, ErrNilLedger
	case record == nil:
		return nil, ErrNilRecord
	case cfg.ChainID == nil:
		return nil, ErrNilChainID
	case cfg.Root.IsZero():
		return nil, ErrZeroRoot
	}
	if binder, ok := record.(RootBinder); ok {
		if err := binder.BindRoot(cfg.Root); err != nil {
			return nil, err
		}
	}
	d := &Distributor{
		root:    cfg.Root,
		domain:  crypto.NewDomain(cfg.Name, cfg.Version, cfg.ChainID, cfg.VerifyingContract),
		ledger:  l,
		record:  record,
		recover: crypto.NewSigRecover(),
		log:     log.Default().Module("claim"),
	}
	for _, opt := range opts {
		opt(d)
	}
	metrics.Distributors.Inc()
	d.log.Info("Distributor ready",
		"root", d.root.Hex(), "name", cfg.Name, "version", cfg.Version,
		"chainid", cfg.ChainID.Dec(), "contract", cfg.VerifyingContract.Hex(),
		"separator", d.domain.Separator().Hex())
	return d, nil
}

// Claim redeems amount for account. Checks run in a fixed order: replay,
// signature, proof. On success the account is marked and paid; if the
// payout fails the mark is removed and ErrLedgerTransferFailed is returned
// wrapping the ledger error.
//
// If removing the mark also fails, the error additionally wraps the record
// error and the account stays marked claimed although nothing was paid. The
// record is not transactional with the ledger, so such an account needs
// manual repair (ClearClaimed on the record) before it can claim again.
func (d *Distributor) Claim(account types.Address, amount *uint256.Int, proof []types.Hash, sig *crypto.CompactSignature) error {
	if amount == nil {
		amount = new(uint256.Int)
	}
	timer := metrics.NewTimer(metrics.ClaimLatency)
	defer timer.Stop()

	logger := d.log.With("account", account.Hex(), "amount", amount.Dec())

	d.mu.Lock()
	if err := d.check(account, amount, proof, sig); err != nil {
		d.mu.Unlock()
		countRejection(err)
		logger.Debug("Claim rejected", "err", err)
		return err
	}
	if err := d.record.SetClaimed(account); err != nil {
		d.mu.Unlock()
		logger.Error("Failed to mark claim", "err", err)
		return err
	}
	if err := d.ledger.Transfer(account, amount); err != nil {
		rollbackErr := d.record.ClearClaimed(account)
		d.mu.Unlock()
		metrics.ClaimsLedgerFailed.Inc()
		if rollbackErr != nil {
			logger.Error("Failed to roll back claim", "err", rollbackErr, "transfer", err)
			return fmt.Errorf("%w: %w (rollback: %w)", ErrLedgerTransferFailed, err, rollbackErr)
		}
		logger.Warn("Ledger transfer failed, claim rolled back", "err", err)
		return fmt.Errorf("%w: %w", ErrLedgerTransferFailed, err)
	}
	d.mu.Unlock()

	metrics.ClaimsAccepted.Inc()
	logger.Info("Claimed")
	d.feed.Send(ClaimedEvent{Account: account, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// Check runs the same validation as Claim without changing any state. A nil
// result means Claim would proceed to payout.
func (d *Distributor) Check(account types.Address, amount *uint256.Int, proof []types.Hash, sig *crypto.CompactSignature) error {
	if amount == nil {
		amount = new(uint256.Int)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.check(account, amount, proof, sig)
}

func (d *Distributor) check(account types.Address, amount *uint256.Int, proof []types.Hash, sig *crypto.CompactSignature) error {
	claimed, err := d.record.IsClaimed(account)
	if err != nil {
		return err
	}
	if claimed {
		return ErrAlreadyClaimed
	}
	if !d.recover.IsAuthorized(account, d.domain.ClaimDigest(account, amount), sig) {
		return ErrInvalidSignature
	}
	if !merkle.VerifyEntitlement(account, amount, proof, d.root) {
		return ErrInvalidProof
	}
	return nil
}

func countRejection(err error) {
	switch err {
	case ErrAlreadyClaimed:
		metrics.ClaimsAlreadyClaimed.Inc()
	case ErrInvalidSignature:
		metrics.ClaimsInvalidSignature.Inc()
	case ErrInvalidProof:
		metrics.ClaimsInvalidProof.Inc()
	}
}

// Root returns the commitment root.
func (d *Distributor) Root() types.Hash { return d.root }

// Ledger returns the ledger claims are paid from.
func (d *Distributor) Ledger() ledger.Ledger { return d.ledger }

// Domain returns the signing domain.
func (d *Distributor) Domain() *crypto.Domain { return d.domain }

// IsClaimed reports whether account has already redeemed.
func (d *Distributor) IsClaimed(account types.Address) (bool, error) {
	return d.record.IsClaimed(account)
}

// ClaimDigest returns the digest account must sign to claim amount.
func (d *Distributor) ClaimDigest(account types.Address, amount *uint256.Int) types.Hash {
	return d.domain.ClaimDigest(account, amount)
}

// SubscribeClaims delivers a ClaimedEvent for every successful claim. Feed
// delivery is synchronous: a subscriber that stops reading stalls the
// claimant whose event is pending, but not the claim lock.
func (d *Distributor) SubscribeClaims(ch chan<- ClaimedEvent) event.Subscription {
	return d.scope.Track(d.feed.Subscribe(ch))
}

// Close ends all claim subscriptions.
func (d *Distributor) Close() {
	d.closeOnce.Do(func() {
		d.scope.Close()
		metrics.Distributors.Dec()
	})
}
