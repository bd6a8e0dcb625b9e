package types

import "github.com/holiman/uint256"

// Account holds the ledger-visible state of one address. Balances use bounded
// 256-bit integers so every arithmetic step can detect overflow instead of
// wrapping.
type Account struct {
	Nonce   uint64       `json:"nonce"`
	Balance *uint256.Int `json:"balance"`
}

// Clone returns a deep copy so callers can mutate freely.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{Balance: uint256.NewInt(0)}
	}
	clone := &Account{Nonce: a.Nonce, Balance: uint256.NewInt(0)}
	if a.Balance != nil {
		clone.Balance = new(uint256.Int).Set(a.Balance)
	}
	return clone
}
