// Package store implements durable, time-indexed, per-group persistence
// with batch checkout semantics.
package store

import (
	"errors"
	"time"

	"github.com/gpt-load-telemetry/channel-sdk/internal/models"
)

// ErrNotFound is returned by implementations when an operation expects a
// row to exist (e.g. deleting an unknown batch) and it does not.
var ErrNotFound = errors.New("store: not found")

// LoadResult is the payload delivered to a Load handler: the records
// checked out under BatchID, or zero records if the window held nothing
// eligible.
type LoadResult struct {
	Records []*models.Record
	BatchID string
}

// Store is the persistent Log Store collaborator. Save, DeleteBatch,
// DeleteGroup and Count are synchronous contract calls; Load is
// handler-based because an implementation backed by a remote service may
// complete it asynchronously, and the channel unit's single serial
// context expects completions to arrive as posted work rather than a
// blocking return.
type Store interface {
	// Save persists record under groupID with the given persistence hint.
	// A non-nil error means the record was not persisted; the caller must
	// not update its own counters.
	Save(record *models.Record, groupID string, flags models.Flags) error

	// Load selects up to limit records for groupID with timestamps in
	// [after, before), excluding any record whose every target key is in
	// excludedTargetKeys, and marks the selection as checked out under a
	// freshly minted batch id until DeleteBatch is called or the process
	// restarts. A zero before means unbounded. handler is invoked exactly
	// once with the result (possibly zero records) or a non-nil error.
	Load(groupID string, limit int, excludedTargetKeys map[string]struct{}, after, before time.Time, handler func(LoadResult, error))

	// DeleteBatch removes every record checked out under batchID for
	// groupID. Deleting an already-deleted or unknown batch is a no-op
	// returning ErrNotFound.
	DeleteBatch(batchID, groupID string) error

	// DeleteGroup removes every record for groupID regardless of checkout
	// state, used by disable-with-wipe.
	DeleteGroup(groupID string) error

	// Count returns the number of records currently persisted for
	// groupID, checked out or not.
	Count(groupID string) (int, error)
}
