package channel

import (
	"fmt"
	"sync"
	"time"

	"github.com/gpt-load-telemetry/channel-sdk/internal/errors"
	"github.com/gpt-load-telemetry/channel-sdk/internal/ingestion"
	"github.com/gpt-load-telemetry/channel-sdk/internal/models"
	"github.com/gpt-load-telemetry/channel-sdk/internal/store"
)

// fakeStoredRecord pairs a persisted record with its bookkeeping state.
type fakeStoredRecord struct {
	record     *models.Record
	groupID    string
	flags      models.Flags
	checkedOut string
}

// fakeStore is a minimal store.Store used to drive the Channel Unit state
// machine deterministically in tests, mirroring internal/store.MemoryStore
// but exposing the bookkeeping tests need to assert on (which batches were
// deleted, whether save was ever asked to fail).
type fakeStore struct {
	mu             sync.Mutex
	records        []*fakeStoredRecord
	saveErr        error
	nextBatch      int
	deletedBatches []string
	deletedGroups  []string
}

func newFakeStore() *fakeStore { return &fakeStore{} }

func (s *fakeStore) Save(record *models.Record, groupID string, flags models.Flags) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records = append(s.records, &fakeStoredRecord{record: record.Clone(), groupID: groupID, flags: flags})
	return nil
}

func (s *fakeStore) Load(groupID string, limit int, excluded map[string]struct{}, after, before time.Time, handler func(store.LoadResult, error)) {
	s.mu.Lock()
	var selected []*fakeStoredRecord
	for _, r := range s.records {
		if r.groupID != groupID || r.checkedOut != "" {
			continue
		}
		if r.record.Timestamp.Before(after) {
			continue
		}
		if !before.IsZero() && !r.record.Timestamp.Before(before) {
			continue
		}
		if r.record.AllTargetKeysPaused(excluded) {
			continue
		}
		selected = append(selected, r)
		if limit > 0 && len(selected) >= limit {
			break
		}
	}

	var result store.LoadResult
	if len(selected) > 0 {
		s.nextBatch++
		batchID := fmt.Sprintf("%d", s.nextBatch)
		for _, r := range selected {
			r.checkedOut = batchID
			result.Records = append(result.Records, r.record.Clone())
		}
		result.BatchID = batchID
	}
	s.mu.Unlock()
	handler(result, nil)
}

func (s *fakeStore) DeleteBatch(batchID, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	var remaining []*fakeStoredRecord
	for _, r := range s.records {
		if r.groupID == groupID && r.checkedOut == batchID {
			found = true
			continue
		}
		remaining = append(remaining, r)
	}
	s.records = remaining
	if !found {
		return store.ErrNotFound
	}
	s.deletedBatches = append(s.deletedBatches, batchID)
	return nil
}

func (s *fakeStore) DeleteGroup(groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var remaining []*fakeStoredRecord
	for _, r := range s.records {
		if r.groupID != groupID {
			remaining = append(remaining, r)
		}
	}
	s.records = remaining
	s.deletedGroups = append(s.deletedGroups, groupID)
	return nil
}

func (s *fakeStore) Count(groupID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if r.groupID == groupID {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) countAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// sendCall is one recorded invocation of fakeIngestion.Send, held until the
// test explicitly completes it.
type sendCall struct {
	batch   *models.PendingBatch
	token   *string
	handler func(ingestion.SendResult)
}

// fakeIngestion is a controllable ingestion.Ingestion: Send always holds
// its completion until the test calls completeSuccess/completeFailure, so
// tests can assert on in-flight state (backpressure, pending batch ids)
// before resolving a send.
type fakeIngestion struct {
	mu        sync.Mutex
	ready     bool
	delegates []ingestion.Delegate
	sends     []*sendCall
}

func newFakeIngestion() *fakeIngestion {
	return &fakeIngestion{ready: true}
}

func (f *fakeIngestion) IsReadyToSend() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeIngestion) Send(batch *models.PendingBatch, token *string, handler func(ingestion.SendResult)) {
	f.mu.Lock()
	f.sends = append(f.sends, &sendCall{batch: batch, token: token, handler: handler})
	f.mu.Unlock()
}

func (f *fakeIngestion) AddDelegate(d ingestion.Delegate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delegates = append(f.delegates, d)
}

func (f *fakeIngestion) RemoveDelegate(d ingestion.Delegate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.delegates {
		if existing == d {
			f.delegates = append(f.delegates[:i], f.delegates[i+1:]...)
			return
		}
	}
}

func (f *fakeIngestion) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func (f *fakeIngestion) callAt(i int) *sendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends[i]
}

func (f *fakeIngestion) completeSuccess(i int, statusCode int) {
	call := f.callAt(i)
	call.handler(ingestion.SendResult{BatchID: call.batch.BatchID, StatusCode: statusCode})
}

func (f *fakeIngestion) completeFailure(i int, statusCode int, err error) {
	call := f.callAt(i)
	call.handler(ingestion.SendResult{BatchID: call.batch.BatchID, StatusCode: statusCode, Err: err})
}

func (f *fakeIngestion) snapshotDelegates() []ingestion.Delegate {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ingestion.Delegate, len(f.delegates))
	copy(out, f.delegates)
	return out
}

func (f *fakeIngestion) pause() {
	f.mu.Lock()
	f.ready = false
	f.mu.Unlock()
	for _, d := range f.snapshotDelegates() {
		d.IngestionDidPause(f)
	}
}

func (f *fakeIngestion) resume() {
	f.mu.Lock()
	f.ready = true
	f.mu.Unlock()
	for _, d := range f.snapshotDelegates() {
		d.IngestionDidResume(f)
	}
}

func (f *fakeIngestion) fatal(err error) {
	for _, d := range f.snapshotDelegates() {
		d.IngestionDidReceiveFatalError(f, err)
	}
}

var (
	_ store.Store          = (*fakeStore)(nil)
	_ ingestion.Ingestion  = (*fakeIngestion)(nil)
)

// recordingDelegate tracks every callback invocation for assertions.
type recordingDelegate struct {
	BaseDelegate

	mu                      sync.Mutex
	prepared                []*models.Record
	succeeded               []*models.Record
	failed                  []*models.Record
	failedErrs              []error
	pausedIDs               []any
	resumedIDs              []any
	filterFn                func(*models.Record) bool
}

func (d *recordingDelegate) PrepareLog(r *models.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prepared = append(d.prepared, r)
}

func (d *recordingDelegate) ShouldFilterLog(r *models.Record) bool {
	if d.filterFn == nil {
		return false
	}
	return d.filterFn(r)
}

func (d *recordingDelegate) DidSucceedSendingLog(r *models.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.succeeded = append(d.succeeded, r)
}

func (d *recordingDelegate) DidFailSendingLog(r *models.Record, err *errors.ChannelError) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failed = append(d.failed, r)
	d.failedErrs = append(d.failedErrs, err)
}

func (d *recordingDelegate) DidPause(id any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pausedIDs = append(d.pausedIDs, id)
}

func (d *recordingDelegate) DidResume(id any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resumedIDs = append(d.resumedIDs, id)
}

func (d *recordingDelegate) counts() (prepared, succeeded, failed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.prepared), len(d.succeeded), len(d.failed)
}
