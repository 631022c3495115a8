// Package ledger defines the asset ledger a distributor pays out of, plus an
// in-memory reference implementation.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/eth2030/merkledrop/core/types"
)

var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrZeroRecipient       = errors.New("ledger: transfer to zero address")
	ErrNilAmount           = errors.New("ledger: nil amount")
	ErrBalanceOverflow     = errors.New("ledger: balance overflow")
)

// Ledger moves a quantity of a single asset from the distributor's holdings
// to an account. A nil error means the transfer took effect; any error means
// it had no effect.
type Ledger interface {
	Transfer(to types.Address, amount *uint256.Int) error
}

// TokenLedger is a minimal in-memory balance sheet. Transfers always debit
// the holder account.
type TokenLedger struct {
	mu       sync.Mutex
	holder   types.Address
	balances map[types.Address]*uint256.Int
}

// NewTokenLedger creates an empty ledger that pays out of holder.
func NewTokenLedger(holder types.Address) *TokenLedger {
	return &TokenLedger{
		holder:   holder,
		balances: make(map[types.Address]*uint256.Int),
	}
}

// Holder returns the account transfers are debited from.
func (l *TokenLedger) Holder() types.Address { return l.holder }

// Mint credits amount to account.
func (l *TokenLedger) Mint(account types.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balance(account)
	sum, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return fmt.Errorf("%w: minting %s to %s", ErrBalanceOverflow, amount.Dec(), account.Hex())
	}
	l.balances[account] = sum
	return nil
}

// BalanceOf returns a copy of account's balance.
func (l *TokenLedger) BalanceOf(account types.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.balance(account))
}

// Transfer moves amount from the holder to to. A zero amount succeeds
// without touching balances.
func (l *TokenLedger) Transfer(to types.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	if to.IsZero() {
		return ErrZeroRecipient
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount.IsZero() || to == l.holder {
		return nil
	}
	from := l.balance(l.holder)
	if from.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, from.Dec(), amount.Dec())
	}
	recv, overflow := new(uint256.Int).AddOverflow(l.balance(to), amount)
	if overflow {
		return fmt.Errorf("%w: crediting %s", ErrBalanceOverflow, to.Hex())
	}
	l.balances[l.holder] = new(uint256.Int).Sub(from, amount)
	l.balances[to] = recv
	return nil
}

func (l *TokenLedger) balance(account types.Address) *uint256.Int {
	if bal, ok := l.balances[account]; ok {
		return bal
	}
	return new(uint256.Int)
}

// FailingLedger rejects every transfer with Err. It stands in for a ledger
// that is paused or out of funds.
type FailingLedger struct {
	Err error
}

// Transfer implements Ledger.
func (f FailingLedger) Transfer(types.Address, *uint256.Int) error {
	if f.Err == nil {
		return errors.New("ledger: transfer rejected")
	}
	return f.Err
}
