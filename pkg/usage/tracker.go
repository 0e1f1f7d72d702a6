// Package usage tracks token consumption per session and model. The
// in-memory tracker is the shared accounting surface the orchestrator
// reports into; the sqlite store optionally persists per-turn rows.
package usage

import (
	"sync"

	"github.com/arief/naia/pkg/provider"
)

// key identifies one accounting bucket. Buckets are keyed strictly by
// session id and model so cross-session collisions cannot occur.
type key struct {
	sessionID string
	model     string
}

// Tracker accumulates token usage in memory.
type Tracker struct {
	mu      sync.Mutex
	buckets map[key]*provider.TokenUsage
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		buckets: make(map[key]*provider.TokenUsage),
	}
}

// Record adds a usage report for one turn.
func (t *Tracker) Record(sessionID, model string, usage provider.TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{sessionID: sessionID, model: model}
	bucket, exists := t.buckets[k]
	if !exists {
		bucket = &provider.TokenUsage{}
		t.buckets[k] = bucket
	}
	bucket.Add(usage)
}

// ForModel returns the accumulated usage for one session and model.
func (t *Tracker) ForModel(sessionID, model string) provider.TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	if bucket, exists := t.buckets[key{sessionID: sessionID, model: model}]; exists {
		return *bucket
	}
	return provider.TokenUsage{}
}

// ForSession returns the accumulated usage across all models of a session.
func (t *Tracker) ForSession(sessionID string) provider.TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := provider.TokenUsage{}
	for k, bucket := range t.buckets {
		if k.sessionID == sessionID {
			total.Add(*bucket)
		}
	}
	return total
}

// Reset drops all buckets for a session.
func (t *Tracker) Reset(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k := range t.buckets {
		if k.sessionID == sessionID {
			delete(t.buckets, k)
		}
	}
}
