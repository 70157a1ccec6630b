package substore

import (
	"chainstate/pkg/chainerr"
	"chainstate/pkg/domain"
	"chainstate/pkg/observable"
)

// Deployment holds a chain's deployed contracts keyed by address. Add on an
// existing address replaces the entry.
type Deployment struct {
	c keyed[domain.DeployedContract]
}

// NewDeployment returns an empty deployment store.
func NewDeployment() *Deployment {
	return &Deployment{c: newKeyed("contract", func(d domain.DeployedContract) string { return d.Address })}
}

// Add inserts or replaces the contract with the same address.
func (d *Deployment) Add(contract domain.DeployedContract) error {
	if contract.Address == "" {
		return chainerr.InvalidInput("contract address is required")
	}
	d.c.upsert(contract)
	return nil
}

// Remove deletes the contract at address. Absent addresses are a no-op.
func (d *Deployment) Remove(address string) bool {
	return d.c.remove(address)
}

// Update patches the contract at address.
func (d *Deployment) Update(address string, patch func(*domain.DeployedContract)) error {
	return d.c.update(address, func(c *domain.DeployedContract) error {
		patch(c)
		return nil
	})
}

// SetBalance records a refreshed balance.
func (d *Deployment) SetBalance(address string, balance domain.Amount) error {
	return d.Update(address, func(c *domain.DeployedContract) { c.Balance = &balance })
}

// SetProxies replaces the proxy relationships of a contract.
func (d *Deployment) SetProxies(address string, proxies []domain.Proxy) error {
	cp := append([]domain.Proxy(nil), proxies...)
	return d.Update(address, func(c *domain.DeployedContract) { c.Proxies = cp })
}

// SetAll replaces every contract in one notification.
func (d *Deployment) SetAll(contracts []domain.DeployedContract) {
	d.c.setAll(contracts)
}

// Get returns the contract at address.
func (d *Deployment) Get(address string) (domain.DeployedContract, bool) {
	return d.c.get(address)
}

// All returns a copy of the contracts in insertion order.
func (d *Deployment) All() []domain.DeployedContract {
	return d.c.all()
}

// Store exposes the observable cell for subscriptions and UI binding.
func (d *Deployment) Store() *observable.Store[[]domain.DeployedContract] {
	return d.c.store
}
