package substore

import (
	"chainstate/pkg/chainerr"
	"chainstate/pkg/domain"
	"chainstate/pkg/observable"
)

// Accounts holds a chain's accounts keyed by address. Add on an existing
// address replaces the entry.
type Accounts struct {
	c keyed[domain.Account]
}

// NewAccounts returns an empty account store.
func NewAccounts() *Accounts {
	return &Accounts{c: newKeyed("account", func(a domain.Account) string { return a.Address })}
}

// Add inserts or replaces the account with the same address.
func (a *Accounts) Add(acc domain.Account) error {
	if err := validateAccount(acc); err != nil {
		return err
	}
	a.c.upsert(acc)
	return nil
}

// Remove deletes the account at address. Absent addresses are a no-op.
func (a *Accounts) Remove(address string) bool {
	return a.c.remove(address)
}

// Update patches the account at address.
func (a *Accounts) Update(address string, patch func(*domain.Account)) error {
	return a.c.update(address, func(acc *domain.Account) error {
		patch(acc)
		return validateAccount(*acc)
	})
}

// SetBalance replaces the balance of an existing account.
func (a *Accounts) SetBalance(address string, balance domain.Amount) error {
	return a.Update(address, func(acc *domain.Account) { acc.Balance = balance })
}

// SetAll replaces every account in one notification.
func (a *Accounts) SetAll(accounts []domain.Account) error {
	for _, acc := range accounts {
		if err := validateAccount(acc); err != nil {
			return err
		}
	}
	a.c.setAll(accounts)
	return nil
}

// Get returns the account at address.
func (a *Accounts) Get(address string) (domain.Account, bool) {
	return a.c.get(address)
}

// All returns a copy of the accounts in insertion order.
func (a *Accounts) All() []domain.Account {
	return a.c.all()
}

// Store exposes the observable cell for subscriptions and UI binding.
func (a *Accounts) Store() *observable.Store[[]domain.Account] {
	return a.c.store
}

func validateAccount(acc domain.Account) error {
	if acc.Address == "" {
		return chainerr.InvalidInput("account address is required")
	}
	if acc.Balance.IsNegative() {
		return chainerr.InvalidInput("account balance must be non-negative").WithDetail("address", acc.Address)
	}
	return nil
}
