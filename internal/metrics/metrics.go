// Package metrics records the outcome and latency of persistence operations.
package metrics

import (
	"context"
	"time"
)

// Recorder observes one completed operation.
type Recorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Noop discards observations.
type Noop struct{}

// Observe implements Recorder.
func (Noop) Observe(context.Context, string, bool, time.Duration) {}

// OrNoop returns r, or Noop when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return Noop{}
	}
	return r
}

// Multi fans an observation out to every recorder.
type Multi []Recorder

// Observe implements Recorder.
func (m Multi) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		if r != nil {
			r.Observe(ctx, operation, success, duration)
		}
	}
}

// Since observes the time elapsed from start. Intended for defer.
func Since(ctx context.Context, r Recorder, operation string, start time.Time, err *error) {
	OrNoop(r).Observe(ctx, operation, err == nil || *err == nil, time.Since(start))
}
