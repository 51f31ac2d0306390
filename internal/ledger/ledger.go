// Package ledger implements the per-player account bookkeeping (spec
// component C4): balance and per-item inventory with non-negativity
// invariants enforced as try-apply pre-checks, never post-hoc rollbacks.
// Grounded in the teacher's cancel-path discipline (pkg/orderbook/book.go
// CancelLimitOrder leaves state untouched when the lookup misses) but the
// teacher has no ledger of its own — this package is new.
package ledger

import (
	"github.com/jinzhu/copier"

	"github.com/stllok/kurumisan-stock-game/internal/apperr"
)

// Account is one player's balance and inventory. An item with quantity
// zero is never present in Inventory (spec section 3).
type Account struct {
	PlayerID  string
	Balance   float64
	Inventory map[string]float64
}

func newAccount(playerID string, startingBalance float64) *Account {
	return &Account{
		PlayerID:  playerID,
		Balance:   startingBalance,
		Inventory: make(map[string]float64),
	}
}

// Registry is the set of AccountState entries a single worker owns: the
// players who have interacted with its item. Accounts are created lazily
// on first reference and live until explicit session cleanup (owned by an
// external collaborator, out of the engine's scope).
type Registry struct {
	startingBalance float64
	accounts        map[string]*Account
}

// NewRegistry returns an empty registry that grants startingBalance to
// accounts created on first reference.
func NewRegistry(startingBalance float64) *Registry {
	return &Registry{
		startingBalance: startingBalance,
		accounts:        make(map[string]*Account),
	}
}

func (r *Registry) account(playerID string) *Account {
	acct, ok := r.accounts[playerID]
	if !ok {
		acct = newAccount(playerID, r.startingBalance)
		r.accounts[playerID] = acct
	}
	return acct
}

// GetBalance returns playerID's current balance, creating the account on
// first reference.
func (r *Registry) GetBalance(playerID string) float64 {
	return r.account(playerID).Balance
}

// GetInventory returns playerID's quantity of item (0 if absent).
func (r *Registry) GetInventory(playerID, item string) float64 {
	return r.account(playerID).Inventory[item]
}

// HasBalance reports whether playerID's balance can cover amount.
func (r *Registry) HasBalance(playerID string, amount float64) bool {
	return r.account(playerID).Balance >= amount
}

// HasInventory reports whether playerID holds at least qty of item.
func (r *Registry) HasInventory(playerID, item string, qty float64) bool {
	return r.account(playerID).Inventory[item] >= qty
}

// AdjustBalance applies delta to playerID's balance. If the result would
// be negative, the call fails with INSUFFICIENT_FUNDS and leaves the
// account untouched.
func (r *Registry) AdjustBalance(playerID string, delta float64) error {
	acct := r.account(playerID)
	next := acct.Balance + delta
	if next < 0 {
		return apperr.Newf(apperr.InsufficientFunds, "player %s balance %v cannot cover delta %v", playerID, acct.Balance, delta)
	}
	acct.Balance = next
	return nil
}

// AdjustInventory applies delta to playerID's holding of item. If the
// result would be negative, the call fails with INSUFFICIENT_INVENTORY
// and leaves the account untouched. A result of exactly zero purges the
// item from the inventory map.
func (r *Registry) AdjustInventory(playerID, item string, delta float64) error {
	acct := r.account(playerID)
	next := acct.Inventory[item] + delta
	if next < 0 {
		return apperr.Newf(apperr.InsufficientInventory, "player %s holds %v of %s, cannot cover delta %v", playerID, acct.Inventory[item], item, delta)
	}
	if next == 0 {
		delete(acct.Inventory, item)
	} else {
		acct.Inventory[item] = next
	}
	return nil
}

// Snapshot returns a deep copy of playerID's account: the caller cannot
// mutate registry state through the returned value. Uses jinzhu/copier
// for the deep-copy semantics the teacher's FillsForUser/OpenOrdersForUser
// copy-by-value pattern hints at but never needed for a nested map.
func (r *Registry) Snapshot(playerID string) Account {
	acct := r.account(playerID)
	var out Account
	if err := copier.CopyWithOption(&out, acct, copier.Option{DeepCopy: true}); err != nil {
		// copier only fails on unsupported/incompatible field shapes,
		// which cannot happen between two *Account values of the same
		// type; treat it as the internal-bug case.
		panic(apperr.Wrap(apperr.Invariant, err, "ledger snapshot deep copy failed"))
	}
	return out
}

// Restore replaces playerID's account state with snap, deep-copying in so
// the caller's copy cannot alias engine state afterward.
func (r *Registry) Restore(snap Account) {
	restored := newAccount(snap.PlayerID, r.startingBalance)
	if err := copier.CopyWithOption(restored, &snap, copier.Option{DeepCopy: true}); err != nil {
		panic(apperr.Wrap(apperr.Invariant, err, "ledger restore deep copy failed"))
	}
	r.accounts[snap.PlayerID] = restored
}
