package types

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Entitlement is a single (recipient, amount) pair committed to by a
// distribution root. It is treated as immutable once handed to the builder.
type Entitlement struct {
	Account Address
	Amount  *uint256.Int
}

// NewEntitlement creates an entitlement, copying amount so later mutation of
// the caller's value does not leak into the commitment.
func NewEntitlement(account Address, amount *uint256.Int) Entitlement {
	var amt *uint256.Int
	if amount != nil {
		amt = new(uint256.Int).Set(amount)
	}
	return Entitlement{Account: account, Amount: amt}
}

// String implements fmt.Stringer.
func (e Entitlement) String() string {
	amt := "<nil>"
	if e.Amount != nil {
		amt = e.Amount.Dec()
	}
	return fmt.Sprintf("%s:%s", e.Account.Hex(), amt)
}
