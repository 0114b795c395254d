package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gpt-load-telemetry/channel-sdk/internal/models"
)

type memoryEntry struct {
	record            *models.Record
	groupID           string
	flags             models.Flags
	checkedOutBatchID string
}

// MemoryStore is an in-memory Store, safe for concurrent use, following
// a mutex-guarded map shape for its in-memory store. It never
// persists across process restarts, which trivially satisfies the "a
// restart clears checkouts" contract: there is nothing to carry forward.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry // keyed by record id
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

// Save implements Store.
func (s *MemoryStore) Save(record *models.Record, groupID string, flags models.Flags) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[record.ID] = &memoryEntry{
		record:  record.Clone(),
		groupID: groupID,
		flags:   flags,
	}
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(groupID string, limit int, excludedTargetKeys map[string]struct{}, after, before time.Time, handler func(LoadResult, error)) {
	s.mu.Lock()

	var candidates []*memoryEntry
	for _, e := range s.entries {
		if e.groupID != groupID || e.checkedOutBatchID != "" {
			continue
		}
		if e.record.Timestamp.Before(after) {
			continue
		}
		if !before.IsZero() && !e.record.Timestamp.Before(before) {
			continue
		}
		if e.record.AllTargetKeysPaused(excludedTargetKeys) {
			continue
		}
		candidates = append(candidates, e)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].record.Timestamp.Before(candidates[j].record.Timestamp)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	var result LoadResult
	if len(candidates) > 0 {
		batchID := uuid.NewString()
		result.BatchID = batchID
		result.Records = make([]*models.Record, 0, len(candidates))
		for _, e := range candidates {
			e.checkedOutBatchID = batchID
			result.Records = append(result.Records, e.record.Clone())
		}
	}

	s.mu.Unlock()
	handler(result, nil)
}

// DeleteBatch implements Store.
func (s *MemoryStore) DeleteBatch(batchID, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for id, e := range s.entries {
		if e.groupID == groupID && e.checkedOutBatchID == batchID {
			delete(s.entries, id)
			found = true
		}
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// DeleteGroup implements Store.
func (s *MemoryStore) DeleteGroup(groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if e.groupID == groupID {
			delete(s.entries, id)
		}
	}
	return nil
}

// Count implements Store.
func (s *MemoryStore) Count(groupID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.entries {
		if e.groupID == groupID {
			n++
		}
	}
	return n, nil
}
