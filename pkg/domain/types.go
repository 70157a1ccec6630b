// Package domain holds the value types shared by chain sub-stores, the
// persistence layer and UI payloads.
package domain

import "encoding/json"

// ChainKind tags the network variant behind a chain.
type ChainKind string

const (
	// ChainLocal is a chain served by the local node backend; it depends on
	// backend availability.
	ChainLocal ChainKind = "local"
	// ChainRemote is a chain reached over a public RPC endpoint.
	ChainRemote ChainKind = "remote"
)

// Valid reports whether k is one of the known kinds.
func (k ChainKind) Valid() bool {
	return k == ChainLocal || k == ChainRemote
}

// ChainInfo is the descriptive identity of a chain. Only ID is identity-bearing.
type ChainInfo struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Kind        ChainKind `json:"kind"`
}

// Account is keyed by Address within a chain.
type Account struct {
	Address  string  `json:"address"`
	Balance  Amount  `json:"balance"`
	Label    *string `json:"label,omitempty"`
	Nickname *string `json:"nickname,omitempty"`
}

// Provenance records how a contract entered the deployment store.
type Provenance string

const (
	ProvenanceCompiled Provenance = "Compiled"
	ProvenanceOnChain  Provenance = "OnChain"
)

// ProxyKind identifies a proxy pattern (transparent, UUPS, beacon, ...).
type ProxyKind int

// Proxy links a deployed contract to the proxy that fronts it.
type Proxy struct {
	Address string    `json:"address"`
	Kind    ProxyKind `json:"kind"`
}

// DeployedContract is keyed by Address within a chain.
type DeployedContract struct {
	Address    string          `json:"address"`
	Name       string          `json:"name"`
	ABI        json.RawMessage `json:"abi,omitempty"`
	Provenance Provenance      `json:"provenance"`
	Balance    *Amount         `json:"balance,omitempty"`
	Proxies    []Proxy         `json:"proxies,omitempty"`
}

// OperationKind classifies a transaction record.
type OperationKind string

const (
	OperationDeployment   OperationKind = "Deployment"
	OperationFunctionCall OperationKind = "FunctionCall"
)

// Event is a log entry emitted during execution.
type Event struct {
	Name    string          `json:"name"`
	Address string          `json:"address"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// TransactionRecord is an append-only history entry. Decoded is absent when the
// return value could not be decoded.
type TransactionRecord struct {
	Kind         OperationKind   `json:"kind"`
	Success      bool            `json:"success"`
	From         string          `json:"from"`
	To           string          `json:"to,omitempty"`
	ContractName string          `json:"contractName,omitempty"`
	Function     string          `json:"function,omitempty"`
	ReturnData   json.RawMessage `json:"returnData,omitempty"`
	Decoded      json.RawMessage `json:"decoded,omitempty"`
	Error        *string         `json:"error,omitempty"`
	Trace        json.RawMessage `json:"trace,omitempty"`
	Events       []Event         `json:"events,omitempty"`
	Receipt      json.RawMessage `json:"receipt,omitempty"`
}

// CompiledContract is keyed by FullyQualifiedName ("path/File.sol:Name").
type CompiledContract struct {
	FullyQualifiedName string          `json:"fqn"`
	Name               string          `json:"name"`
	ABI                json.RawMessage `json:"abi,omitempty"`
	Bytecode           string          `json:"bytecode,omitempty"`
	IsDeployable       bool            `json:"isDeployable"`
}

// IssueSeverity grades a compilation diagnostic.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// CompilationIssue is a compiler diagnostic.
type CompilationIssue struct {
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
	Source   string        `json:"source,omitempty"`
	Line     int           `json:"line,omitempty"`
}

// Compilation is the process-wide compiler output shared by all chains.
type Compilation struct {
	Contracts []CompiledContract `json:"contracts"`
	Issues    []CompilationIssue `json:"issues"`
	Dirty     bool               `json:"dirty"`
}

// StrPtr is a small helper for optional string fields.
func StrPtr(s string) *string { return &s }
