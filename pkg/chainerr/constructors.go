package chainerr

import "fmt"

// DuplicateKey reports an insert against a key that is already present.
func DuplicateKey(key any) *Error {
	return New(CodeDuplicateKey, fmt.Sprintf("key %v already exists", key)).
		WithDetail("key", fmt.Sprint(key))
}

// DuplicateChain reports registration of a chain id that is present or was used before.
func DuplicateChain(id string) *Error {
	return New(CodeDuplicateChain, fmt.Sprintf("chain %s already registered", id)).
		WithDetail("chain", id)
}

// LastChain reports an attempt to remove the only remaining chain.
func LastChain(id string) *Error {
	return New(CodeLastChain, fmt.Sprintf("chain %s is the last chain and cannot be removed", id)).
		WithDetail("chain", id)
}

// ChainNotFound reports a lookup of an unknown chain id.
func ChainNotFound(id string) *Error {
	return New(CodeNotFound, fmt.Sprintf("chain %s not found", id)).
		WithDetail("chain", id)
}

// NotFound reports a missing entity inside a store.
func NotFound(entity, key string) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s %s not found", entity, key)).
		WithDetail("entity", entity).
		WithDetail("key", key)
}

// Persistence wraps an I/O failure during save, load or delete.
func Persistence(op, key string, cause error) *Error {
	return Wrap(cause, CodePersistence, fmt.Sprintf("%s %s failed", op, key)).
		WithDetail("op", op).
		WithDetail("key", key)
}

// Decode wraps a failure to decode a call's return value.
func Decode(function string, cause error) *Error {
	return Wrap(cause, CodeDecode, fmt.Sprintf("decode return value of %s", function)).
		WithDetail("function", function)
}

// InvalidInput reports a rejected argument.
func InvalidInput(reason string) *Error {
	return New(CodeInvalidInput, fmt.Sprintf("invalid input: %s", reason))
}
