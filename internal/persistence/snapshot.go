package persistence

import (
	"encoding/json"
	"fmt"
	"regexp"

	"chainstate/internal/chain"
	"chainstate/internal/fingerprint"
	"chainstate/pkg/domain"
)

// DomainState is the persisted part of a chain's sub-stores.
type DomainState struct {
	Accounts   []domain.Account           `json:"accounts"`
	Deployment []domain.DeployedContract  `json:"deployment"`
	History    []domain.TransactionRecord `json:"history"`
}

// Snapshot is the full persisted form of one chain.
type Snapshot struct {
	ID           string           `json:"id"`
	DisplayName  string           `json:"displayName"`
	Kind         domain.ChainKind `json:"kind"`
	DomainState  DomainState      `json:"domainState"`
	NetworkState json.RawMessage  `json:"networkState,omitempty"`
	Fingerprint  string           `json:"fingerprint"`
}

// Info returns the chain identity carried by the snapshot.
func (s Snapshot) Info() domain.ChainInfo {
	return domain.ChainInfo{ID: s.ID, DisplayName: s.DisplayName, Kind: s.Kind}
}

// ComputeFingerprint hashes the snapshot with its Fingerprint field cleared.
func (s Snapshot) ComputeFingerprint() (string, error) {
	s.Fingerprint = ""
	return fingerprint.Sum(s)
}

// Verify reports whether the stored fingerprint matches the content.
func (s Snapshot) Verify() (bool, error) {
	fp, err := s.ComputeFingerprint()
	if err != nil {
		return false, err
	}
	return fp == s.Fingerprint, nil
}

// ApplyTo replaces the chain's per-chain sub-stores with the snapshot content.
func (s Snapshot) ApplyTo(state *chain.State) error {
	if err := state.Accounts.SetAll(s.DomainState.Accounts); err != nil {
		return fmt.Errorf("accounts: %w", err)
	}
	state.Deployment.SetAll(s.DomainState.Deployment)
	state.History.SetAll(s.DomainState.History)
	return nil
}

// SharedSnapshot is the persisted process-wide state.
type SharedSnapshot struct {
	Compilation  domain.Compilation `json:"compilation"`
	CurrentChain string             `json:"currentChain,omitempty"`
	Fingerprint  string             `json:"fingerprint"`
}

// ComputeFingerprint hashes the snapshot with its Fingerprint field cleared.
func (s SharedSnapshot) ComputeFingerprint() (string, error) {
	s.Fingerprint = ""
	return fingerprint.Sum(s)
}

// DecodeSnapshot parses a chain blob. Missing ID or Kind fields are an error.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	if snap.ID == "" {
		return Snapshot{}, fmt.Errorf("snapshot has no id")
	}
	if !snap.Kind.Valid() {
		return Snapshot{}, fmt.Errorf("snapshot %s has unknown kind %q", snap.ID, snap.Kind)
	}
	return snap, nil
}

var displayNamePattern = regexp.MustCompile(`"displayName"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// salvageDisplayName pulls the display name out of a blob that no longer
// parses so failures can be reported by name.
func salvageDisplayName(data []byte) string {
	m := displayNamePattern.FindSubmatch(data)
	if m == nil {
		return ""
	}
	var name string
	if err := json.Unmarshal(append(append([]byte{'"'}, m[1]...), '"'), &name); err != nil {
		return string(m[1])
	}
	return name
}
