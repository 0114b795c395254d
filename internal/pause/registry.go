// Package pause implements the id-axis and target-key-axis pause gates:
// a generation-indexed table standing in for weak object references,
// reconciled on every call rather than relying on garbage collection.
package pause

import "sync"

// IDRegistry holds the set of opaque pause identifiers currently held
// against a channel unit. Re-pausing with the same identifier is
// idempotent; resuming an identifier that was never paused is a no-op.
//
// A weakly-held identifier would let a caller that dropped its reference
// without calling Resume avoid wedging the channel forever. Go has no
// weak references usable for arbitrary
// caller-chosen keys, so this registry makes the tradeoff explicit: an
// identifier stays paused until the caller that paused it calls Resume.
// Callers that want GC-driven cleanup should use a short-lived token
// (e.g. a *struct{} they drop) and pair it with their own liveness
// tracking; the registry does not attempt to infer liveness.
type IDRegistry struct {
	mu         sync.Mutex
	generation uint64
	holders    map[any]uint64
}

// NewIDRegistry returns an empty registry.
func NewIDRegistry() *IDRegistry {
	return &IDRegistry{holders: make(map[any]uint64)}
}

// Pause adds id to the held set. Returns true if this transitioned the
// registry from empty to non-empty.
func (r *IDRegistry) Pause(id any) (becamePaused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wasEmpty := len(r.holders) == 0
	r.generation++
	r.holders[id] = r.generation
	return wasEmpty
}

// Resume removes id from the held set. Returns true if this transitioned
// the registry from non-empty to empty. Resuming an id not currently held
// is a no-op and never reports a transition.
func (r *IDRegistry) Resume(id any) (becameUnpaused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.holders[id]; !ok {
		return false
	}
	delete(r.holders, id)
	return len(r.holders) == 0
}

// Holds reports whether id is currently held.
func (r *IDRegistry) Holds(id any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.holders[id]
	return ok
}

// Active reports whether any identifier is currently held.
func (r *IDRegistry) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.holders) > 0
}

// Len returns the number of distinct identifiers currently held.
func (r *IDRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.holders)
}

// TargetKeySet holds the set of paused target keys, derived by the caller
// from pause_target/resume_target tokens via models.TargetKey.
type TargetKeySet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewTargetKeySet returns an empty set.
func NewTargetKeySet() *TargetKeySet {
	return &TargetKeySet{keys: make(map[string]struct{})}
}

// Add inserts key into the set.
func (s *TargetKeySet) Add(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = struct{}{}
}

// Remove deletes key from the set. A no-op if absent.
func (s *TargetKeySet) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
}

// Snapshot returns a copy of the current key set, safe for the caller to
// retain and pass to a Load call as excluded_target_keys.
func (s *TargetKeySet) Snapshot() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.keys))
	for k := range s.keys {
		out[k] = struct{}{}
	}
	return out
}
