package substore

import (
	"chainstate/pkg/domain"
	"chainstate/pkg/observable"
)

// History is the append-only transaction log of a chain. Order is execution
// order; records are never mutated after insertion.
type History struct {
	store *observable.Store[[]domain.TransactionRecord]
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{store: observable.New[[]domain.TransactionRecord](nil)}
}

// Append adds rec at the end.
func (h *History) Append(rec domain.TransactionRecord) {
	h.store.Update(func(cur []domain.TransactionRecord) []domain.TransactionRecord {
		next := make([]domain.TransactionRecord, len(cur), len(cur)+1)
		copy(next, cur)
		return append(next, rec)
	})
}

// SetAll replaces the log, used when restoring a snapshot.
func (h *History) SetAll(records []domain.TransactionRecord) {
	h.store.Set(append([]domain.TransactionRecord(nil), records...))
}

// Clear empties the log.
func (h *History) Clear() {
	h.store.Set(nil)
}

// All returns a copy of the records in execution order.
func (h *History) All() []domain.TransactionRecord {
	return append([]domain.TransactionRecord(nil), h.store.Get()...)
}

// Len returns the number of records.
func (h *History) Len() int {
	return len(h.store.Get())
}

// Store exposes the observable cell for subscriptions and UI binding.
func (h *History) Store() *observable.Store[[]domain.TransactionRecord] {
	return h.store
}
