package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/sirupsen/logrus"

	"chainstate/internal/logging"
	"chainstate/internal/network"
	"chainstate/internal/substore"
	"chainstate/pkg/chainerr"
	"chainstate/pkg/domain"
	"chainstate/pkg/observable"
)

// Reporter surfaces user-facing problems. Implementations must not block.
type Reporter interface {
	Warn(message string)
	Error(err error)
}

type nopReporter struct{}

func (nopReporter) Warn(string) {}
func (nopReporter) Error(error) {}

var errAlreadyDisconnected = errors.New("chain: already disconnected")

// ValidateID reports whether id can name a chain. Ids end up inside blob
// keys, so path separators, ".." and control characters are rejected.
func ValidateID(id string) error {
	switch {
	case id == "":
		return chainerr.InvalidInput("chain id is required")
	case strings.ContainsAny(id, `/\`), strings.Contains(id, ".."):
		return chainerr.InvalidInput(fmt.Sprintf("chain id %q must not contain path elements", id))
	case strings.IndexFunc(id, unicode.IsControl) >= 0:
		return chainerr.InvalidInput(fmt.Sprintf("chain id %q contains control characters", id))
	}
	return nil
}

// Provider is the capability object of one chain. It exclusively owns the
// chain's State and is the only writer of its per-chain sub-stores.
type Provider struct {
	info     domain.ChainInfo
	net      network.Capability
	state    *State
	decoder  Decoder
	reporter Reporter
	log      *logrus.Entry

	changes   observable.Signal
	unsubs    []observable.Unsubscribe
	closeOnce sync.Once
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the provider logger.
func WithLogger(l *logrus.Entry) Option {
	return func(p *Provider) { p.log = logging.OrDiscard(l) }
}

// WithDecoder replaces the default JSONDecoder.
func WithDecoder(d Decoder) Option {
	return func(p *Provider) {
		if d != nil {
			p.decoder = d
		}
	}
}

// WithReporter routes user-facing warnings and errors.
func WithReporter(r Reporter) Option {
	return func(p *Provider) {
		if r != nil {
			p.reporter = r
		}
	}
}

// NewProvider builds a provider and its aggregate state. shared is the
// process-wide compilation store.
func NewProvider(info domain.ChainInfo, net network.Capability, shared *substore.Compilation, opts ...Option) (*Provider, error) {
	if err := ValidateID(info.ID); err != nil {
		return nil, err
	}
	if !info.Kind.Valid() {
		return nil, chainerr.InvalidInput(fmt.Sprintf("unknown chain kind %q", info.Kind))
	}
	if net == nil {
		return nil, chainerr.InvalidInput("network capability is required")
	}
	if net.Kind() != info.Kind {
		return nil, chainerr.InvalidInput(fmt.Sprintf("network kind %s does not match chain kind %s", net.Kind(), info.Kind))
	}
	p := &Provider{
		info:     info,
		net:      net,
		state:    newState(shared),
		decoder:  JSONDecoder{},
		reporter: nopReporter{},
		log:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.WithField("chain", info.ID)

	emit := p.changes.Emit
	p.unsubs = append(p.unsubs,
		p.state.Accounts.Store().OnChange(func([]domain.Account) { emit() }),
		p.state.Deployment.Store().OnChange(func([]domain.DeployedContract) { emit() }),
		p.state.History.Store().OnChange(func([]domain.TransactionRecord) { emit() }),
		p.state.Connected.OnChange(func(bool) { emit() }),
	)
	return p, nil
}

func (p *Provider) Info() domain.ChainInfo { return p.info }
func (p *Provider) ID() string { return p.info.ID }
func (p *Provider) Kind() domain.ChainKind { return p.info.Kind }
func (p *Provider) State() *State { return p.state }
func (p *Provider) Network() network.Capability { return p.net }
func (p *Provider) Connected() *observable.Store[bool] { return p.state.Connected }

// OnChange fires after any change to the chain's own sub-stores or its
// connection flag. Shared compilation changes are not relayed.
func (p *Provider) OnChange(fn func()) observable.Unsubscribe {
	return p.changes.Subscribe(fn)
}

// Connect activates the network and marks the chain connected.
func (p *Provider) Connect(ctx context.Context) error {
	if err := p.net.OnActivate(ctx); err != nil {
		return fmt.Errorf("activate %s: %w", p.info.ID, err)
	}
	if !p.state.Connected.Get() {
		p.state.Connected.Set(true)
	}
	p.log.Debug("connected")
	return nil
}

// Disconnect deactivates the network. The chain is marked disconnected even
// when deactivation fails.
func (p *Provider) Disconnect(ctx context.Context) error {
	err := p.net.OnDeactivate(ctx)
	p.ForceDisconnect()
	if err != nil {
		return fmt.Errorf("deactivate %s: %w", p.info.ID, err)
	}
	return nil
}

// ForceDisconnect marks the chain disconnected without contacting the
// backend. It does nothing when already disconnected.
func (p *Provider) ForceDisconnect() {
	_ = p.state.Connected.Mutate(func(cur bool) (bool, error) {
		if !cur {
			return cur, errAlreadyDisconnected
		}
		return false, nil
	})
}

// Deploy deploys a compiled contract and records the attempt in history.
func (p *Provider) Deploy(ctx context.Context, req network.DeployRequest) (domain.TransactionRecord, error) {
	rec := domain.TransactionRecord{
		Kind:         domain.OperationDeployment,
		From:         req.From,
		ContractName: req.Contract.Name,
	}
	res, err := p.net.Deploy(ctx, req)
	if err != nil {
		rec.Error = domain.StrPtr(err.Error())
		p.state.History.Append(rec)
		return rec, fmt.Errorf("deploy %s: %w", req.Contract.Name, err)
	}
	rec.Success = res.Success
	rec.To = res.DeployedAddress
	rec.Trace = res.CallTrace
	rec.Events = res.Events
	rec.Receipt = res.Receipt
	if !res.Success {
		rec.Error = domain.StrPtr(res.Error)
		p.state.History.Append(rec)
		return rec, nil
	}
	// The deployment happened on the network, so it is logged even when the
	// contract cannot be tracked locally.
	if err := p.state.Deployment.Add(domain.DeployedContract{
		Address:    res.DeployedAddress,
		Name:       req.Contract.Name,
		ABI:        req.Contract.ABI,
		Provenance: domain.ProvenanceCompiled,
	}); err != nil {
		rec.Error = domain.StrPtr(err.Error())
		p.state.History.Append(rec)
		return rec, err
	}
	p.state.History.Append(rec)
	p.log.WithField("address", res.DeployedAddress).Info("contract deployed")
	return rec, nil
}

// Call invokes a function and records the attempt in history. A return value
// that cannot be decoded is reported and the record is stored without Decoded.
func (p *Provider) Call(ctx context.Context, req network.CallRequest) (domain.TransactionRecord, error) {
	rec := domain.TransactionRecord{
		Kind:         domain.OperationFunctionCall,
		From:         req.From,
		To:           req.To,
		ContractName: req.ContractName,
		Function:     req.Function,
	}
	res, err := p.net.Call(ctx, req)
	if err != nil {
		rec.Error = domain.StrPtr(err.Error())
		p.state.History.Append(rec)
		return rec, fmt.Errorf("call %s: %w", req.Function, err)
	}
	rec.Success = res.Success
	rec.ReturnData = res.ReturnValue
	rec.Trace = res.CallTrace
	rec.Events = res.Events
	rec.Receipt = res.Receipt
	if !res.Success {
		rec.Error = domain.StrPtr(res.Error)
	} else {
		var abi []byte
		if c, ok := p.state.Deployment.Get(req.To); ok {
			abi = c.ABI
			if rec.ContractName == "" {
				rec.ContractName = c.Name
			}
		}
		decoded, derr := p.decoder.Decode(req.Function, abi, res.ReturnValue)
		if derr != nil {
			cerr := chainerr.Decode(req.Function, derr)
			p.log.WithError(derr).WithField("function", req.Function).Warn("return value could not be decoded")
			p.reporter.Error(cerr)
		} else {
			rec.Decoded = decoded
		}
	}
	p.state.History.Append(rec)
	return rec, nil
}

// RefreshAccount reloads an account from the network, keeping local labels.
func (p *Provider) RefreshAccount(ctx context.Context, address string) (domain.Account, error) {
	acc, ok, err := p.net.GetAccountDetails(ctx, address)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s: %w", address, err)
	}
	if !ok {
		return domain.Account{}, chainerr.NotFound("account", address)
	}
	if existing, found := p.state.Accounts.Get(address); found {
		acc.Label = existing.Label
		acc.Nickname = existing.Nickname
	}
	if err := p.state.Accounts.Add(acc); err != nil {
		return domain.Account{}, err
	}
	return acc, nil
}

// SetBalance overrides an address balance on the network and mirrors it in
// the account or deployment store.
func (p *Provider) SetBalance(ctx context.Context, address string, balance domain.Amount) error {
	if balance.IsNegative() {
		return chainerr.InvalidInput("balance must be non-negative").WithDetail("address", address)
	}
	ok, err := p.net.SetAccountBalance(ctx, network.SetBalanceRequest{Address: address, Balance: balance})
	if err != nil {
		return fmt.Errorf("set balance %s: %w", address, err)
	}
	if !ok {
		return chainerr.New(chainerr.CodeInvalidInput, "network rejected balance change").WithDetail("address", address)
	}
	if _, isContract := p.state.Deployment.Get(address); isContract {
		return p.state.Deployment.SetBalance(address, balance)
	}
	if _, exists := p.state.Accounts.Get(address); exists {
		return p.state.Accounts.SetBalance(address, balance)
	}
	return p.state.Accounts.Add(domain.Account{Address: address, Balance: balance})
}

// ImportContract registers a contract discovered on-chain.
func (p *Provider) ImportContract(ctx context.Context, address string) (domain.DeployedContract, error) {
	res, err := p.net.GetABI(ctx, address)
	if err != nil {
		return domain.DeployedContract{}, fmt.Errorf("abi %s: %w", address, err)
	}
	c := domain.DeployedContract{
		Address:    address,
		Name:       res.Name,
		ABI:        res.ABI,
		Provenance: domain.ProvenanceOnChain,
	}
	if err := p.state.Deployment.Add(c); err != nil {
		return domain.DeployedContract{}, err
	}
	return c, nil
}

// RefreshContractBalance reloads the balance held by a deployed contract.
func (p *Provider) RefreshContractBalance(ctx context.Context, address string) (domain.Amount, error) {
	if _, ok := p.state.Deployment.Get(address); !ok {
		return domain.Amount{}, chainerr.NotFound("contract", address)
	}
	acc, ok, err := p.net.GetAccountDetails(ctx, address)
	if err != nil {
		return domain.Amount{}, fmt.Errorf("contract balance %s: %w", address, err)
	}
	if !ok {
		return domain.Amount{}, chainerr.NotFound("contract", address)
	}
	if err := p.state.Deployment.SetBalance(address, acc.Balance); err != nil {
		return domain.Amount{}, err
	}
	return acc.Balance, nil
}

// Close disposes the provider's internal subscriptions. It is idempotent.
func (p *Provider) Close() {
	p.closeOnce.Do(func() {
		for _, stop := range p.unsubs {
			stop()
		}
		p.unsubs = nil
	})
}
