// Package models defines the channel subsystem's data model: the wire-level
// Record, per-group configuration, in-flight batches, and auth-token
// validity windows described in the design's data model section.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Flags is a persistence hint attached to a record at enqueue time. It has
// no ordering privilege at the channel layer; it is passed through to the
// store as a hint for its own retention/priority policy.
type Flags int

const (
	FlagsDefault Flags = iota
	FlagsNormal
	FlagsCritical
)

func (f Flags) String() string {
	switch f {
	case FlagsNormal:
		return "normal"
	case FlagsCritical:
		return "critical"
	default:
		return "default"
	}
}

// Record is an opaque log payload plus the enrichment fields the channel
// assigns on enqueue if the producer left them unset.
type Record struct {
	ID        string
	Timestamp time.Time
	Device    string
	UserID    string
	Payload   []byte

	// Targets holds transmission-target tokens of the form "<key>-<secret>".
	// A record whose every target's key is in the paused-target-key set is
	// persisted normally but never selected for sending.
	Targets []string

	// InternalID is assigned by the channel unit during enqueue and is
	// never exposed to producers; it exists purely to give delegates a
	// stable handle across the DidPrepareLog/DidCompleteEnqueueingLog pair.
	InternalID uint64
}

// Clone returns a shallow copy of the record, used wherever the channel
// hands a record to multiple delegates or stores it for later mutation
// safety: fields must not change after DidPrepareLog runs.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Targets != nil {
		cp.Targets = append([]string(nil), r.Targets...)
	}
	return &cp
}

// TargetKey returns the prefix of a transmission-target token up to (not
// including) the first '-'. This is the identity used for per-tenant
// pausing (GLOSSARY: Target key).
func TargetKey(token string) string {
	key, _, found := strings.Cut(token, "-")
	if !found {
		return token
	}
	return key
}

// TargetKeys returns the distinct target keys for every target token on
// the record.
func (r *Record) TargetKeys() []string {
	if len(r.Targets) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r.Targets))
	seen := make(map[string]struct{}, len(r.Targets))
	for _, t := range r.Targets {
		k := TargetKey(t)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// AllTargetKeysPaused reports whether every target key on the record (if
// any) is present in pausedKeys. A record with no targets is never
// considered target-paused.
func (r *Record) AllTargetKeysPaused(pausedKeys map[string]struct{}) bool {
	keys := r.TargetKeys()
	if len(keys) == 0 {
		return false
	}
	for _, k := range keys {
		if _, ok := pausedKeys[k]; !ok {
			return false
		}
	}
	return true
}

// NewRecordID returns a fresh stable record id. Producers that don't
// supply their own id get one of these at enqueue time.
func NewRecordID() string {
	return uuid.NewString()
}

// GroupConfig is immutable after it is attached to a channel group via
// ChannelGroup.AddUnit.
type GroupConfig struct {
	GroupID             string
	Priority            int
	FlushInterval       time.Duration
	BatchSizeLimit      int
	PendingBatchesLimit int
}

// Validate reports a descriptive error for configuration that would leave
// the channel unit unable to make progress.
func (c GroupConfig) Validate() error {
	if c.GroupID == "" {
		return errGroupConfig("group_id must not be empty")
	}
	if c.BatchSizeLimit <= 0 {
		return errGroupConfig("batch_size_limit must be positive")
	}
	if c.PendingBatchesLimit <= 0 {
		return errGroupConfig("pending_batches_limit must be positive")
	}
	if c.FlushInterval < 0 {
		return errGroupConfig("flush_interval must not be negative")
	}
	return nil
}

type configError string

func (e configError) Error() string { return string(e) }

func errGroupConfig(msg string) error { return configError("invalid group configuration: " + msg) }

// PendingBatch is a batch of records checked out of the store under one
// batch id, signed (at most) with one auth token, awaiting an ingestion
// completion callback.
type PendingBatch struct {
	BatchID   string
	Records   []*Record
	AuthToken *string
}

// AuthTokenWindow is a half-open validity interval [Start, End) during
// which Token is the token to sign outgoing batches with. The last window
// in a Timeline snapshot is unbounded: its End is ignored by flush
// partitioning logic and should be the zero time.Time.
type AuthTokenWindow struct {
	Token *string
	Start time.Time
	End   time.Time
}

// Unbounded reports whether this window has no upper bound.
func (w AuthTokenWindow) Unbounded() bool {
	return w.End.IsZero()
}

// Contains reports whether t falls within [Start, End), treating a zero
// End as +infinity.
func (w AuthTokenWindow) Contains(t time.Time) bool {
	if t.Before(w.Start) {
		return false
	}
	return w.Unbounded() || t.Before(w.End)
}
