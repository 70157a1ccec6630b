// Package network defines the capability surface a chain uses to talk to its
// node backend, and a closed set of network variants behind it.
package network

import (
	"context"
	"encoding/json"

	"chainstate/pkg/domain"
)

// Capability is the per-chain network collaborator. Implementations are safe
// for concurrent use.
type Capability interface {
	Kind() domain.ChainKind
	GetAccountDetails(ctx context.Context, address string) (domain.Account, bool, error)
	SetAccountBalance(ctx context.Context, req SetBalanceRequest) (bool, error)
	Deploy(ctx context.Context, req DeployRequest) (DeployResult, error)
	Call(ctx context.Context, req CallRequest) (CallResult, error)
	GetABI(ctx context.Context, address string) (ABIResult, error)
	// DumpState returns an opaque blob that the kind's constructor can restore from.
	DumpState(ctx context.Context) (json.RawMessage, error)
	OnActivate(ctx context.Context) error
	OnDeactivate(ctx context.Context) error
}

// SetBalanceRequest overrides the native balance of an address.
type SetBalanceRequest struct {
	Address string        `json:"address"`
	Balance domain.Amount `json:"balance"`
}

// DeployRequest deploys compiled bytecode from an account.
type DeployRequest struct {
	From     string                  `json:"from"`
	Contract domain.CompiledContract `json:"contract"`
	Args     json.RawMessage         `json:"args,omitempty"`
	Value    *domain.Amount          `json:"value,omitempty"`
}

// DeployResult is the outcome of a deployment. Error is set when Success is false.
type DeployResult struct {
	Success         bool            `json:"success"`
	DeployedAddress string          `json:"deployedAddress,omitempty"`
	Error           string          `json:"error,omitempty"`
	Receipt         json.RawMessage `json:"receipt,omitempty"`
	CallTrace       json.RawMessage `json:"callTrace,omitempty"`
	Events          []domain.Event  `json:"events,omitempty"`
}

// CallRequest invokes a function on a deployed contract.
type CallRequest struct {
	From         string          `json:"from"`
	To           string          `json:"to"`
	ContractName string          `json:"contractName,omitempty"`
	Function     string          `json:"function"`
	Args         json.RawMessage `json:"args,omitempty"`
	Value        *domain.Amount  `json:"value,omitempty"`
}

// CallResult is the outcome of a call. ReturnValue is the raw, undecoded output.
type CallResult struct {
	Success     bool            `json:"success"`
	ReturnValue json.RawMessage `json:"returnValue,omitempty"`
	Error       string          `json:"error,omitempty"`
	Receipt     json.RawMessage `json:"receipt,omitempty"`
	CallTrace   json.RawMessage `json:"callTrace,omitempty"`
	Events      []domain.Event  `json:"events,omitempty"`
}

// ABIResult describes a contract discovered on-chain.
type ABIResult struct {
	ABI  json.RawMessage `json:"abi"`
	Name string          `json:"name"`
}
