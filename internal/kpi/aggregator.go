package kpi

import (
	"sync"

	"gnce/internal/runlog"
)

// Aggregator maintains streaming KPI state. A single writer (the broker
// consumer) updates it under the lock; any reader takes a point-in-time
// Snapshot copy under the same lock and never sees torn state.
type Aggregator struct {
	mu  sync.Mutex
	acc *accumulator
}

// NewAggregator starts from zero state.
func NewAggregator() *Aggregator {
	return &Aggregator{acc: newAccumulator()}
}

// Update folds one run event into the state.
func (a *Aggregator) Update(ev runlog.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acc.add(ev)
}

// Snapshot returns an immutable copy of the current KPIs.
func (a *Aggregator) Snapshot() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acc.summary()
}

// Reset clears the state, for consumers that rebuild from offset 0.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acc = newAccumulator()
}
