package persistence

import (
	"strings"

	"chainstate/internal/chain"
)

const (
	chainKeyPrefix = "local-"
	chainKeySuffix = ".json"

	// SharedKey names the blob holding process-wide state.
	SharedKey = "shared.json"
)

// ChainKey is the blob key of a chain snapshot. Ids accepted by
// chain.ValidateID round-trip through ChainIDFromKey.
func ChainKey(id string) string {
	return chainKeyPrefix + id + chainKeySuffix
}

// ChainIDFromKey reverses ChainKey. ok is false for keys outside the chain
// naming scheme.
func ChainIDFromKey(key string) (id string, ok bool) {
	if !strings.HasPrefix(key, chainKeyPrefix) || !strings.HasSuffix(key, chainKeySuffix) {
		return "", false
	}
	id = strings.TrimSuffix(strings.TrimPrefix(key, chainKeyPrefix), chainKeySuffix)
	if chain.ValidateID(id) != nil {
		return "", false
	}
	return id, true
}
