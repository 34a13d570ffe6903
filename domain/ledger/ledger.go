// Package ledger tracks per-user, per-asset funds. It is the only
// component allowed to move value: orders lock funds here before they
// touch a book, and every trade settles through it.
package ledger

import (
	"errors"
	"sync"
)

var (
	// ErrInsufficientFunds rejects a lock that available funds cannot cover.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrInvariant marks an internal accounting violation (locked
	// underflow, non-positive amount from a caller that already
	// validated). It is fatal to the calling engine, never user-facing.
	ErrInvariant = errors.New("ledger: invariant violation")
)

// Balance is a point-in-time snapshot of one (user, asset) account.
type Balance struct {
	Available int64 `json:"available"`
	Locked    int64 `json:"locked"`
}

type accountKey struct {
	user  string
	asset string
}

func (k accountKey) less(o accountKey) bool {
	if k.user != o.user {
		return k.user < o.user
	}
	return k.asset < o.asset
}

type account struct {
	mu        sync.Mutex
	available int64
	locked    int64
}

// Ledger serializes mutations per (user, asset) so concurrent
// settlements from independent market engines cannot race on one
// balance. The outer map lock only guards account creation.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[accountKey]*account
}

func New() *Ledger {
	return &Ledger{accounts: make(map[accountKey]*account)}
}

func (l *Ledger) acct(user, asset string) *account {
	k := accountKey{user, asset}

	l.mu.RLock()
	a, ok := l.accounts[k]
	l.mu.RUnlock()
	if ok {
		return a
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok = l.accounts[k]; !ok {
		a = &account{}
		l.accounts[k] = a
	}
	return a
}

// Deposit credits available funds. Funding is external to the matching
// core; this is the seam the gateway (and tests) use.
func (l *Ledger) Deposit(user, asset string, amount int64) error {
	if amount <= 0 {
		return ErrInvariant
	}
	a := l.acct(user, asset)
	a.mu.Lock()
	a.available += amount
	a.mu.Unlock()
	return nil
}

// Lock moves amount from available to locked. No partial lock: either
// the full amount is reserved or nothing changes.
func (l *Ledger) Lock(user, asset string, amount int64) error {
	if amount <= 0 {
		return ErrInvariant
	}
	a := l.acct(user, asset)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.available < amount {
		return ErrInsufficientFunds
	}
	a.available -= amount
	a.locked += amount
	return nil
}

// Release moves amount from locked back to available.
func (l *Ledger) Release(user, asset string, amount int64) error {
	if amount <= 0 {
		return ErrInvariant
	}
	a := l.acct(user, asset)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.locked < amount {
		return ErrInvariant
	}
	a.locked -= amount
	a.available += amount
	return nil
}

// Settle atomically moves debitAmt out of the debit user's locked funds
// and credits creditAmt to the credit user's available funds. Both legs
// apply or neither; no reader observes the half-applied state.
func (l *Ledger) Settle(debitUser, debitAsset string, debitAmt int64, creditUser, creditAsset string, creditAmt int64) error {
	if debitAmt <= 0 || creditAmt <= 0 {
		return ErrInvariant
	}

	dk := accountKey{debitUser, debitAsset}
	ck := accountKey{creditUser, creditAsset}
	da := l.acct(debitUser, debitAsset)
	ca := l.acct(creditUser, creditAsset)

	// Deterministic lock order prevents deadlock between concurrent
	// settlements touching the same pair of accounts.
	switch {
	case dk == ck:
		da.mu.Lock()
		defer da.mu.Unlock()
	case dk.less(ck):
		da.mu.Lock()
		ca.mu.Lock()
		defer ca.mu.Unlock()
		defer da.mu.Unlock()
	default:
		ca.mu.Lock()
		da.mu.Lock()
		defer da.mu.Unlock()
		defer ca.mu.Unlock()
	}

	if da.locked < debitAmt {
		return ErrInvariant
	}
	da.locked -= debitAmt
	ca.available += creditAmt
	return nil
}

// Read returns a consistent snapshot of one account. Repeated reads with
// no intervening mutation return identical values.
func (l *Ledger) Read(user, asset string) Balance {
	a := l.acct(user, asset)
	a.mu.Lock()
	b := Balance{Available: a.available, Locked: a.locked}
	a.mu.Unlock()
	return b
}
