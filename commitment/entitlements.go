package commitment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"github.com/eth2030/merkledrop/core/types"
	"github.com/eth2030/merkledrop/geth"
)

var (
	ErrEmptyAmount   = errors.New("commitment: empty amount")
	ErrInvalidAmount = errors.New("commitment: invalid amount")
)

type jsonEntitlement struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// LoadEntitlements reads a JSON array of {"account", "amount"} objects.
// Accounts must be 20-byte hex; amounts are decimal or 0x-prefixed hex.
// Unknown fields are rejected.
func LoadEntitlements(r io.Reader) ([]types.Entitlement, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var raw []jsonEntitlement
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("commitment: decode entitlements: %w", err)
	}
	out := make([]types.Entitlement, len(raw))
	for i, e := range raw {
		account, err := types.ParseAddress(e.Account)
		if err != nil {
			return nil, fmt.Errorf("commitment: entitlement %d: account %q: %w", i, e.Account, err)
		}
		amount, err := ParseAmount(e.Amount)
		if err != nil {
			return nil, fmt.Errorf("commitment: entitlement %d: %w", i, err)
		}
		out[i] = types.Entitlement{Account: account, Amount: amount}
	}
	return out, nil
}

// ParseAmount parses a decimal or 0x-prefixed hex 256-bit unsigned integer.
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyAmount
	}
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		b, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		v, ok := geth.ToUint256(b)
		if !ok {
			return nil, fmt.Errorf("%w: %q exceeds 256 bits", ErrInvalidAmount, s)
		}
		return v, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return v, nil
}
