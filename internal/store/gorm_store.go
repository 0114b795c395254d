package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gpt-load-telemetry/channel-sdk/internal/models"
	"github.com/gpt-load-telemetry/channel-sdk/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	lockRetryAttempts  = 3
	lockRetryBaseDelay = 5 * time.Millisecond
)

// withLockRetry runs op and retries it, with a short doubling delay, when
// the failure looks like lock contention (SQLITE_BUSY, a deadlock, a lock
// wait timeout) rather than a real data error.
func withLockRetry(op func() error) error {
	var err error
	for attempt := 0; attempt < lockRetryAttempts; attempt++ {
		if err = op(); err == nil || !utils.IsDBLockError(err) {
			return err
		}
		time.Sleep(lockRetryBaseDelay << uint(attempt))
	}
	return err
}

// GormStore is the default durable Store, backed by any dialect gorm
// supports (sqlite/mysql/postgres, selected by DSN in internal/db.Open).
// Checkout state lives in the CheckedOutBatchID column; NewGormStore
// clears it on open so records checked out by a process that died
// mid-flight become eligible for Load again under the new process.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the schema (auto-migrating PersistedLog) on db,
// resets any checkout markers left over from a prior process, and
// returns a ready Store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&models.PersistedLog{}); err != nil {
		return nil, err
	}
	resetCheckouts := func() error {
		return db.Model(&models.PersistedLog{}).
			Where("checked_out_batch_id <> ?", "").
			Update("checked_out_batch_id", "").Error
	}
	if err := withLockRetry(resetCheckouts); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func targetsToJSON(targets []string) datatypes.JSON {
	if len(targets) == 0 {
		return nil
	}
	b, err := json.Marshal(targets)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

func targetsFromJSON(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func toRow(record *models.Record, groupID string, flags models.Flags) *models.PersistedLog {
	return &models.PersistedLog{
		ID:        record.ID,
		GroupID:   groupID,
		Timestamp: record.Timestamp,
		Device:    record.Device,
		UserID:    record.UserID,
		Payload:   record.Payload,
		Targets:   targetsToJSON(record.Targets),
		Flags:     flags.String(),
	}
}

func fromRow(row models.PersistedLog) *models.Record {
	return &models.Record{
		ID:        row.ID,
		Timestamp: row.Timestamp,
		Device:    row.Device,
		UserID:    row.UserID,
		Payload:   row.Payload,
		Targets:   targetsFromJSON(row.Targets),
	}
}

// Save implements Store.
func (g *GormStore) Save(record *models.Record, groupID string, flags models.Flags) error {
	row := toRow(record, groupID, flags)
	if err := withLockRetry(func() error { return g.db.Create(row).Error }); err != nil {
		logrus.WithFields(logrus.Fields{"group_id": groupID, "error": err}).Warn("failed to persist log record")
		return err
	}
	return nil
}

// Load implements Store. The excluded-target-key filter is applied in Go
// after fetching timestamp-window candidates, since target tokens are
// stored as an opaque JSON array whose prefix-matching isn't something
// every supported dialect can express equally well in SQL.
func (g *GormStore) Load(groupID string, limit int, excludedTargetKeys map[string]struct{}, after, before time.Time, handler func(LoadResult, error)) {
	query := g.db.Where("group_id = ? AND checked_out_batch_id = ?", groupID, "").
		Where("timestamp >= ?", after).
		Order("timestamp ASC")
	if !before.IsZero() {
		query = query.Where("timestamp < ?", before)
	}

	// Fetch a generous overscan so post-filtering by target key can still
	// fill the requested limit; a store with very high target-pause
	// cardinality may need more than one round trip, which is an
	// acceptable simplification for the default implementation.
	overscan := limit
	if overscan > 0 {
		overscan *= 4
	}

	var rows []models.PersistedLog
	q := query
	if overscan > 0 {
		q = q.Limit(overscan)
	}
	if err := withLockRetry(func() error { return q.Find(&rows).Error }); err != nil {
		handler(LoadResult{}, err)
		return
	}

	var selected []models.PersistedLog
	for _, row := range rows {
		record := fromRow(row)
		if record.AllTargetKeysPaused(excludedTargetKeys) {
			continue
		}
		selected = append(selected, row)
		if limit > 0 && len(selected) >= limit {
			break
		}
	}

	if len(selected) == 0 {
		handler(LoadResult{}, nil)
		return
	}

	batchID := uuid.NewString()
	ids := make([]string, len(selected))
	for i, row := range selected {
		ids[i] = row.ID
	}
	checkout := func() error {
		return g.db.Model(&models.PersistedLog{}).Where("id IN ?", ids).
			Update("checked_out_batch_id", batchID).Error
	}
	if err := withLockRetry(checkout); err != nil {
		handler(LoadResult{}, err)
		return
	}

	records := make([]*models.Record, len(selected))
	for i, row := range selected {
		records[i] = fromRow(row)
	}
	handler(LoadResult{Records: records, BatchID: batchID}, nil)
}

// DeleteBatch implements Store.
func (g *GormStore) DeleteBatch(batchID, groupID string) error {
	var res *gorm.DB
	err := withLockRetry(func() error {
		res = g.db.Where("group_id = ? AND checked_out_batch_id = ?", groupID, batchID).
			Delete(&models.PersistedLog{})
		return res.Error
	})
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGroup implements Store.
func (g *GormStore) DeleteGroup(groupID string) error {
	return withLockRetry(func() error {
		return g.db.Where("group_id = ?", groupID).Delete(&models.PersistedLog{}).Error
	})
}

// Count implements Store.
func (g *GormStore) Count(groupID string) (int, error) {
	var n int64
	err := withLockRetry(func() error {
		return g.db.Model(&models.PersistedLog{}).Where("group_id = ?", groupID).Count(&n).Error
	})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
