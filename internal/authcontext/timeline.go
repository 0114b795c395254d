// Package authcontext implements the auth-token timeline collaborator: an
// ordered, non-overlapping sequence of (token, start, end) validity
// windows that a sign-in/refresh subsystem mutates and the channel
// subsystem reads via read-only snapshots before partitioning a flush.
package authcontext

import (
	"sync"
	"time"

	"github.com/gpt-load-telemetry/channel-sdk/internal/models"
)

// Timeline is the read-only contract the channel subsystem depends on.
// The mutating sign-in/refresh subsystem lives outside this package;
// only this read surface is part of the core's collaborator contract.
type Timeline interface {
	// Snapshot returns the current windows in ascending start order. The
	// caller must take its own snapshot before iterating: the timeline
	// offers no partial views and may be mutated concurrently by the
	// owner of the sign-in/refresh subsystem.
	Snapshot() []models.AuthTokenWindow
}

// InMemoryTimeline is the default in-process Timeline implementation. It
// is also the mutation surface a host application's auth subsystem would
// call; the channel subsystem only ever calls Snapshot.
type InMemoryTimeline struct {
	mu      sync.RWMutex
	windows []models.AuthTokenWindow
}

// NewInMemoryTimeline returns a timeline with no windows: Snapshot returns
// an empty slice, which the channel unit treats as "no auth context yet"
// (outgoing token is null, per scenario 1).
func NewInMemoryTimeline() *InMemoryTimeline {
	return &InMemoryTimeline{}
}

// Snapshot implements Timeline.
func (t *InMemoryTimeline) Snapshot() []models.AuthTokenWindow {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.AuthTokenWindow, len(t.windows))
	copy(out, t.windows)
	return out
}

// SetToken closes the currently open window (if any) at `at` and opens a
// new unbounded window with `token` starting at `at`. A nil token
// represents a signed-out/anonymous period. Windows must be set in
// non-decreasing `at` order; a caller that violates this would introduce
// overlap, which is the one invariant this type trusts its caller to keep.
func (t *InMemoryTimeline) SetToken(token *string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.windows); n > 0 && t.windows[n-1].Unbounded() {
		t.windows[n-1].End = at
	}
	t.windows = append(t.windows, models.AuthTokenWindow{Token: token, Start: at})
}

// Clear discards every window, returning the timeline to its initial
// empty state (e.g. on full sign-out with history discarded).
func (t *InMemoryTimeline) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windows = nil
}
