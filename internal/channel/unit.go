// Package channel implements the Channel Unit / Channel Group state
// machine: enqueue, batching, pending-batch accounting, pause/resume
// composition, and delegate fan-out for one log group at a time.
package channel

import (
	"time"

	"github.com/gpt-load-telemetry/channel-sdk/internal/errors"
	"github.com/gpt-load-telemetry/channel-sdk/internal/ingestion"
	"github.com/gpt-load-telemetry/channel-sdk/internal/models"
	"github.com/gpt-load-telemetry/channel-sdk/internal/pause"
	"github.com/gpt-load-telemetry/channel-sdk/internal/store"
	"github.com/sirupsen/logrus"
)

// ChannelUnit is the per-group scheduler/state-machine. Every field below
// is mutated only from tasks running on the owning group's serialQueue;
// the public methods are thin non-blocking wrappers that submit a task and
// return.
type ChannelUnit struct {
	group  *ChannelGroup
	config models.GroupConfig

	delegates delegateList
	filters   filterChain

	pausedBy         *pause.IDRegistry
	pausedTargetKeys *pause.TargetKeySet

	pendingBatchIDs []string
	pendingBatches  map[string][]*models.Record
	// inFlightFlushes counts flushForTokens attempts that have asked the
	// store for records but not yet received an answer. A batch id only
	// joins pendingBatchIDs once the store answers, but the slot it will
	// occupy must be reserved the moment the attempt starts; otherwise two
	// enqueues arriving before the first Load's completion is processed
	// (itself deferred back onto this same serial queue) would both see
	// room and launch more concurrent flushes than PendingBatchesLimit
	// allows.
	inFlightFlushes int

	itemsCount  int
	enabled     bool
	discardLogs bool

	flushTimer *time.Timer
	timerArmed bool

	nextInternalID uint64
}

func newUnit(group *ChannelGroup, config models.GroupConfig) *ChannelUnit {
	return &ChannelUnit{
		group:            group,
		config:           config,
		pausedBy:         pause.NewIDRegistry(),
		pausedTargetKeys: pause.NewTargetKeySet(),
		pendingBatches:   make(map[string][]*models.Record),
		enabled:          true,
	}
}

// AddDelegate registers d to receive future lifecycle callbacks, after any
// callback currently being dispatched from an older snapshot finishes.
func (u *ChannelUnit) AddDelegate(d Delegate) {
	u.group.queue.submit(func() { u.delegates.add(d) })
}

// RemoveDelegate unregisters d.
func (u *ChannelUnit) RemoveDelegate(d Delegate) {
	u.group.queue.submit(func() { u.delegates.remove(d) })
}

// Enqueue submits record for enrichment, filtering, and persistence.
// It never blocks and never returns an error synchronously; all outcomes
// are visible only through delegate callbacks.
func (u *ChannelUnit) Enqueue(record *models.Record, flags models.Flags) {
	u.group.queue.submit(func() { u.enqueue(record, flags) })
}

func (u *ChannelUnit) enqueue(record *models.Record, flags models.Flags) {
	if record.Device == "" {
		record.Device = u.group.ambient.Device()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = u.group.ambient.Now()
	}
	if record.UserID == "" {
		if uid := u.group.ambient.UserID(); uid != nil {
			record.UserID = *uid
		}
	}
	if record.ID == "" {
		record.ID = models.NewRecordID()
	}

	snapshot := u.delegates.snapshot()
	for _, d := range snapshot {
		d.PrepareLog(record)
	}

	u.nextInternalID++
	internalID := u.nextInternalID
	record.InternalID = internalID
	for _, d := range snapshot {
		d.DidPrepareLog(record, internalID, flags)
	}
	for _, d := range snapshot {
		d.DidCompleteEnqueueingLog(record, internalID)
	}

	if u.discardLogs {
		return
	}

	if u.filters.shouldFilter(snapshot, record) {
		return
	}

	if err := u.group.store.Save(record, u.config.GroupID, flags); err != nil {
		logrus.WithFields(logrus.Fields{
			"group_id":  u.config.GroupID,
			"record_id": record.ID,
			"error":     err,
		}).Warn("store save failed, dropping record")
		return
	}

	u.itemsCount++
	u.checkPendingLogs()
}

func (u *ChannelUnit) paused() bool {
	return u.pausedBy.Active() || !u.enabled
}

func (u *ChannelUnit) pendingBatchQueueFull() bool {
	return len(u.pendingBatchIDs)+u.inFlightFlushes >= u.config.PendingBatchesLimit
}

// checkPendingLogs decides whether the current queue state warrants an
// immediate flush, arming a timer for later, or doing nothing.
func (u *ChannelUnit) checkPendingLogs() {
	if u.paused() || u.pendingBatchQueueFull() {
		return
	}
	if u.itemsCount >= u.config.BatchSizeLimit {
		u.cancelTimer()
		u.flushQueue()
		return
	}
	if u.itemsCount > 0 && !u.timerArmed {
		u.armTimer()
	}
}

func (u *ChannelUnit) cancelTimer() {
	if u.flushTimer != nil {
		u.flushTimer.Stop()
	}
	u.timerArmed = false
}

func (u *ChannelUnit) armTimer() {
	u.timerArmed = true
	u.flushTimer = time.AfterFunc(u.config.FlushInterval, func() {
		u.group.queue.submit(func() {
			if !u.timerArmed {
				return // cancelled before it fired
			}
			u.timerArmed = false
			u.flushQueue()
		})
	})
}

// flushQueue reserves a pending-batch slot and starts loading the next
// batch from the store, walking the auth-token timeline from the start.
func (u *ChannelUnit) flushQueue() {
	if u.paused() || u.pendingBatchQueueFull() {
		return
	}
	u.inFlightFlushes++
	timeline := u.group.timeline.Snapshot()
	u.flushForTokens(timeline, 0)
}

func (u *ChannelUnit) flushForTokens(timeline []models.AuthTokenWindow, i int) {
	var window models.AuthTokenWindow
	switch {
	case len(timeline) == 0:
		// No auth-token windows configured at all: treat the whole axis as
		// one unbounded, unauthenticated window.
		window = models.AuthTokenWindow{}
	case i >= len(timeline):
		return
	default:
		window = timeline[i]
		if i == len(timeline)-1 {
			// The last window is treated as unbounded: records after its
			// End still belong to it.
			window.End = time.Time{}
		}
	}

	excluded := u.pausedTargetKeys.Snapshot()
	u.group.store.Load(u.config.GroupID, u.config.BatchSizeLimit, excluded, window.Start, window.End, func(result store.LoadResult, err error) {
		u.group.queue.submit(func() {
			u.handleLoadResult(timeline, i, window, result, err)
		})
	})
}

func (u *ChannelUnit) handleLoadResult(timeline []models.AuthTokenWindow, i int, window models.AuthTokenWindow, result store.LoadResult, err error) {
	if err != nil {
		u.inFlightFlushes--
		logrus.WithFields(logrus.Fields{"group_id": u.config.GroupID, "error": err}).Warn("store load failed during flush")
		return
	}
	if len(result.Records) == 0 {
		if len(timeline) > 0 && i+1 < len(timeline) {
			// Recursing into the next window continues this same attempt;
			// the inFlightFlushes reservation carries forward rather than
			// being released and re-acquired.
			u.flushForTokens(timeline, i+1)
			return
		}
		u.inFlightFlushes--
		return
	}

	u.inFlightFlushes--
	u.pendingBatchIDs = append(u.pendingBatchIDs, result.BatchID)
	u.pendingBatches[result.BatchID] = result.Records
	u.itemsCount -= len(result.Records)
	u.sendBatch(result.Records, result.BatchID, window.Token)
}

// sendBatch notifies delegates a batch is about to be sent and hands it to
// the ingestion client.
func (u *ChannelUnit) sendBatch(records []*models.Record, batchID string, token *string) {
	snapshot := u.delegates.snapshot()
	for _, r := range records {
		for _, d := range snapshot {
			d.WillSendLog(r)
		}
	}

	batch := &models.PendingBatch{BatchID: batchID, Records: records, AuthToken: token}
	u.group.ingestion.Send(batch, token, func(result ingestion.SendResult) {
		u.group.queue.submit(func() { u.handleSendCompletion(batchID, result) })
	})
}

// handleSendCompletion resolves a batch after the ingestion client reports
// success or failure. The recoverable-vs-
// non-recoverable split is read off the ingestion client's own readiness
// rather than a field on SendResult: the Channel Group is subscribed as an
// ingestion delegate and forwards a pause to every unit (using the
// ingestion instance as the pause id) before the completion handler for a
// recoverable failure runs, since both are posted through the same serial
// queue in submission order.
func (u *ChannelUnit) handleSendCompletion(batchID string, result ingestion.SendResult) {
	records, ok := u.pendingBatches[batchID]
	if !ok {
		// Already resolved by a disable-with-wipe cancellation; a
		// later completion for the same batch is dropped.
		return
	}
	delete(u.pendingBatches, batchID)
	u.removePendingBatchID(batchID)

	if result.Err == nil {
		snapshot := u.delegates.snapshot()
		for _, r := range records {
			for _, d := range snapshot {
				d.DidSucceedSendingLog(r)
			}
		}
		u.deleteBatch(batchID, "successful send")
		u.checkPendingLogs()
		return
	}

	if !u.group.ingestion.IsReadyToSend() {
		// Recoverable: leave the records in the store for a later flush,
		// no failure callback until a disable-with-wipe wipes them.
		return
	}

	cerr := errors.WithCause(errors.ErrIngestionNonRecoverable, result.Err)
	snapshot := u.delegates.snapshot()
	for _, r := range records {
		for _, d := range snapshot {
			d.DidFailSendingLog(r, cerr)
		}
	}
	u.deleteBatch(batchID, "non-recoverable send failure")
	u.checkPendingLogs()
}

func (u *ChannelUnit) deleteBatch(batchID, reason string) {
	if err := u.group.store.DeleteBatch(batchID, u.config.GroupID); err != nil {
		logrus.WithFields(logrus.Fields{
			"group_id": u.config.GroupID,
			"batch_id": batchID,
			"reason":   reason,
			"error":    err,
		}).Warn("delete_batch failed")
	}
}

func (u *ChannelUnit) removePendingBatchID(batchID string) {
	for i, id := range u.pendingBatchIDs {
		if id == batchID {
			u.pendingBatchIDs = append(u.pendingBatchIDs[:i], u.pendingBatchIDs[i+1:]...)
			return
		}
	}
}

// Pause adds id to the unit's id-axis pause set.
func (u *ChannelUnit) Pause(id any) {
	u.group.queue.submit(func() { u.pause(id) })
}

func (u *ChannelUnit) pause(id any) {
	if u.pausedBy.Holds(id) {
		return
	}
	u.pausedBy.Pause(id)
	snapshot := u.delegates.snapshot()
	for _, d := range snapshot {
		d.DidPause(id)
	}
}

// Resume removes id from the unit's id-axis pause set.
func (u *ChannelUnit) Resume(id any) {
	u.group.queue.submit(func() { u.resume(id) })
}

func (u *ChannelUnit) resume(id any) {
	if !u.pausedBy.Holds(id) {
		return
	}
	becameUnpaused := u.pausedBy.Resume(id)
	snapshot := u.delegates.snapshot()
	for _, d := range snapshot {
		d.DidResume(id)
	}
	if becameUnpaused && u.enabled {
		u.checkPendingLogs()
	}
}

// PauseTarget derives a target key from token and adds it to the paused
// set, so records whose only targets are paused keys stop being selected
// for sending.
func (u *ChannelUnit) PauseTarget(token string) {
	key := models.TargetKey(token)
	u.group.queue.submit(func() { u.pausedTargetKeys.Add(key) })
}

// ResumeTarget reverses PauseTarget. Records already queued whose only
// target was the resumed key become eligible again, so this re-runs the
// same flush/timer check a resumed id-axis pause does.
func (u *ChannelUnit) ResumeTarget(token string) {
	key := models.TargetKey(token)
	u.group.queue.submit(func() {
		u.pausedTargetKeys.Remove(key)
		if u.enabled && !u.pausedBy.Active() {
			u.checkPendingLogs()
		}
	})
}

// SetEnabled enables or disables the unit, optionally wiping its pending
// and stored data on disable.
func (u *ChannelUnit) SetEnabled(enabled bool, deleteData bool) {
	u.group.queue.submit(func() { u.setEnabled(enabled, deleteData) })
}

func (u *ChannelUnit) setEnabled(enabled bool, deleteData bool) {
	if !enabled {
		u.enabled = false
		if deleteData {
			u.wipe()
		}
		return
	}

	u.discardLogs = false
	u.enabled = true
	if !u.pausedBy.Active() {
		u.checkPendingLogs()
	}
}

func (u *ChannelUnit) wipe() {
	u.discardLogs = true
	if err := u.group.store.DeleteGroup(u.config.GroupID); err != nil {
		logrus.WithFields(logrus.Fields{"group_id": u.config.GroupID, "error": err}).Warn("delete_group failed during disable-with-wipe")
	}

	snapshot := u.delegates.snapshot()
	for _, batchID := range u.pendingBatchIDs {
		records := u.pendingBatches[batchID]
		for _, r := range records {
			for _, d := range snapshot {
				d.DidFailSendingLog(r, errors.ErrCancelled)
			}
		}
		delete(u.pendingBatches, batchID)
	}
	u.pendingBatchIDs = nil
}

// UnitSnapshot is a point-in-time read of unit state, for tests and
// introspection. Snapshot is synchronous: it blocks until the read has run
// on the serial queue, so it must never be called from a delegate callback
// or any other code already executing on that queue.
type UnitSnapshot struct {
	Enabled          bool
	DiscardLogs      bool
	ItemsCount       int
	PendingBatchIDs  []string
	Paused           bool
	PausedTargetKeys map[string]struct{}
	State            State
}

// Snapshot returns the unit's current state. See UnitSnapshot's doc for the
// synchronous-call caveat.
func (u *ChannelUnit) Snapshot() UnitSnapshot {
	result := make(chan UnitSnapshot, 1)
	u.group.queue.submit(func() {
		result <- UnitSnapshot{
			Enabled:          u.enabled,
			DiscardLogs:      u.discardLogs,
			ItemsCount:       u.itemsCount,
			PendingBatchIDs:  append([]string(nil), u.pendingBatchIDs...),
			Paused:           u.paused(),
			PausedTargetKeys: u.pausedTargetKeys.Snapshot(),
			State:            deriveState(u.enabled, u.discardLogs, u.pausedBy.Active()),
		}
	})
	return <-result
}
