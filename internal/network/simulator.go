package network

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"sync"

	"chainstate/pkg/domain"
)

// ErrInactive is returned by operations issued before OnActivate or after
// OnDeactivate.
var ErrInactive = errors.New("network: capability is not active")

// CallHandler computes the raw return value of a simulated call.
type CallHandler func(req CallRequest) (json.RawMessage, error)

// Simulator is an in-process network used for local chains, tests and demos.
// Addresses are derived deterministically from the deployer and its nonce.
type Simulator struct {
	kind domain.ChainKind

	mu        sync.Mutex
	active    bool
	balances  map[string]domain.Amount
	contracts map[string]simContract
	nonces    map[string]uint64
	block     uint64
	handler   CallHandler
	failures  map[string]error
}

type simContract struct {
	Name    string          `json:"name"`
	ABI     json.RawMessage `json:"abi,omitempty"`
	Balance domain.Amount   `json:"balance"`
}

type simAccount struct {
	Address string        `json:"address"`
	Balance domain.Amount `json:"balance"`
	Nonce   uint64        `json:"nonce"`
}

type simContractEntry struct {
	Address string `json:"address"`
	simContract
}

type simState struct {
	Block     uint64             `json:"block"`
	Accounts  []simAccount       `json:"accounts"`
	Contracts []simContractEntry `json:"contracts"`
}

// NewSimulator returns an empty simulator of the given kind.
func NewSimulator(kind domain.ChainKind) *Simulator {
	return &Simulator{
		kind:      kind,
		balances:  make(map[string]domain.Amount),
		contracts: make(map[string]simContract),
		nonces:    make(map[string]uint64),
		failures:  make(map[string]error),
		handler:   echoHandler,
	}
}

// RestoreSimulator rebuilds a simulator from a DumpState blob. An empty blob
// yields a fresh simulator.
func RestoreSimulator(kind domain.ChainKind, state json.RawMessage) (*Simulator, error) {
	sim := NewSimulator(kind)
	if len(state) == 0 || string(state) == "null" {
		return sim, nil
	}
	var st simState
	if err := json.Unmarshal(state, &st); err != nil {
		return nil, fmt.Errorf("decode simulator state: %w", err)
	}
	sim.block = st.Block
	for _, acc := range st.Accounts {
		sim.balances[acc.Address] = acc.Balance
		sim.nonces[acc.Address] = acc.Nonce
	}
	for _, c := range st.Contracts {
		sim.contracts[c.Address] = c.simContract
	}
	return sim, nil
}

// Fund credits an address, creating it when absent.
func (s *Simulator) Fund(address string, amount domain.Amount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.balances[address]
	s.balances[address] = domain.AmountFromBig(new(big.Int).Add(cur.Big(), amount.Big()))
}

// HandleCalls replaces the function used to compute call return values.
func (s *Simulator) HandleCalls(h CallHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h == nil {
		h = echoHandler
	}
	s.handler = h
}

// FailNext makes the next invocation of op ("deploy", "call", "balance",
// "account", "abi", "dump") return err.
func (s *Simulator) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *Simulator) Kind() domain.ChainKind { return s.kind }

func (s *Simulator) OnActivate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.active = true
	s.mu.Unlock()
	return nil
}

func (s *Simulator) OnDeactivate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	return nil
}

// Active reports whether OnActivate has been called more recently than OnDeactivate.
func (s *Simulator) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Simulator) GetAccountDetails(ctx context.Context, address string) (domain.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.precheck(ctx, "account"); err != nil {
		return domain.Account{}, false, err
	}
	if bal, ok := s.balances[address]; ok {
		return domain.Account{Address: address, Balance: bal}, true, nil
	}
	if c, ok := s.contracts[address]; ok {
		return domain.Account{Address: address, Balance: c.Balance}, true, nil
	}
	return domain.Account{}, false, nil
}

func (s *Simulator) SetAccountBalance(ctx context.Context, req SetBalanceRequest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.precheck(ctx, "balance"); err != nil {
		return false, err
	}
	if req.Balance.IsNegative() {
		return false, nil
	}
	if c, ok := s.contracts[req.Address]; ok {
		c.Balance = req.Balance
		s.contracts[req.Address] = c
		return true, nil
	}
	s.balances[req.Address] = req.Balance
	return true, nil
}

func (s *Simulator) Deploy(ctx context.Context, req DeployRequest) (DeployResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.precheck(ctx, "deploy"); err != nil {
		return DeployResult{}, err
	}
	if !req.Contract.IsDeployable {
		return DeployResult{Success: false, Error: fmt.Sprintf("%s is not deployable", req.Contract.Name)}, nil
	}
	if _, ok := s.balances[req.From]; !ok {
		return DeployResult{Success: false, Error: fmt.Sprintf("unknown sender %s", req.From)}, nil
	}
	nonce := s.nonces[req.From]
	s.nonces[req.From] = nonce + 1
	s.block++
	addr := deriveAddress(req.From, nonce)
	value := domain.NewAmount(0)
	if req.Value != nil {
		value = *req.Value
	}
	s.contracts[addr] = simContract{Name: req.Contract.Name, ABI: req.Contract.ABI, Balance: value}
	return DeployResult{
		Success:         true,
		DeployedAddress: addr,
		Receipt:         s.receipt(addr),
		Events:          []domain.Event{{Name: "Deployed", Address: addr}},
	}, nil
}

func (s *Simulator) Call(ctx context.Context, req CallRequest) (CallResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.precheck(ctx, "call"); err != nil {
		return CallResult{}, err
	}
	if _, ok := s.contracts[req.To]; !ok {
		return CallResult{Success: false, Error: fmt.Sprintf("no contract at %s", req.To)}, nil
	}
	s.block++
	out, err := s.handler(req)
	if err != nil {
		return CallResult{Success: false, Error: err.Error(), Receipt: s.receipt(req.To)}, nil
	}
	return CallResult{Success: true, ReturnValue: out, Receipt: s.receipt(req.To)}, nil
}

func (s *Simulator) GetABI(ctx context.Context, address string) (ABIResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.precheck(ctx, "abi"); err != nil {
		return ABIResult{}, err
	}
	c, ok := s.contracts[address]
	if !ok {
		return ABIResult{}, fmt.Errorf("no contract at %s", address)
	}
	return ABIResult{ABI: c.ABI, Name: c.Name}, nil
}

// ContractBalance reads the balance held by a deployed contract.
func (s *Simulator) ContractBalance(address string) (domain.Amount, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[address]
	return c.Balance, ok
}

// DumpState serializes balances, nonces and contracts sorted by address, so
// equal simulators dump equal bytes.
func (s *Simulator) DumpState(ctx context.Context) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.takeFailure("dump"); err != nil {
		return nil, err
	}
	st := simState{Block: s.block}
	for addr, bal := range s.balances {
		st.Accounts = append(st.Accounts, simAccount{Address: addr, Balance: bal, Nonce: s.nonces[addr]})
	}
	sort.Slice(st.Accounts, func(i, j int) bool { return st.Accounts[i].Address < st.Accounts[j].Address })
	for addr, c := range s.contracts {
		st.Contracts = append(st.Contracts, simContractEntry{Address: addr, simContract: c})
	}
	sort.Slice(st.Contracts, func(i, j int) bool { return st.Contracts[i].Address < st.Contracts[j].Address })
	return json.Marshal(st)
}

// precheck must be called with s.mu held.
func (s *Simulator) precheck(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.takeFailure(op); err != nil {
		return err
	}
	if !s.active {
		return ErrInactive
	}
	return nil
}

func (s *Simulator) takeFailure(op string) error {
	err, ok := s.failures[op]
	if !ok {
		return nil
	}
	delete(s.failures, op)
	return err
}

func (s *Simulator) receipt(to string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{
		"to":          to,
		"blockNumber": strconv.FormatUint(s.block, 10),
	})
	return raw
}

func deriveAddress(from string, nonce uint64) string {
	sum := sha256.Sum256([]byte(from + ":" + strconv.FormatUint(nonce, 10)))
	return "0x" + hex.EncodeToString(sum[:20])
}

// echoHandler returns the function name as a JSON string.
func echoHandler(req CallRequest) (json.RawMessage, error) {
	return json.Marshal(req.Function)
}
