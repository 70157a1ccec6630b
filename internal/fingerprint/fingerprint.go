// Package fingerprint computes deterministic content hashes used to detect
// whether a snapshot changed since it was last persisted.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Size is the length of a fingerprint in hex characters.
const Size = sha256.Size * 2

// Canonical renders v as JSON with object keys sorted at every level and
// numbers kept as their literal text. Sequence order is preserved.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("re-decode: %w", err)
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("re-marshal: %w", err)
	}
	return out, nil
}

// Sum returns the lowercase hex SHA-256 of Canonical(v).
func Sum(v any) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return SumBytes(b), nil
}

// SumBytes hashes already canonical bytes.
func SumBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
