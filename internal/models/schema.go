package models

import (
	"time"

	"gorm.io/datatypes"
)

// PersistedLog is the gorm row backing GormStore. It mirrors Record plus
// the bookkeeping columns the store contract requires: a batch checkout
// marker that survives until delete_batch or process restart.
//
// TableName is explicit (rather than gorm's pluralization default) to
// match the convention of naming tables after the domain noun,
// not the Go type.
type PersistedLog struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	GroupID   string    `gorm:"type:varchar(255);not null;index:idx_group_ts"`
	Timestamp time.Time `gorm:"not null;index:idx_group_ts"`
	Device    string    `gorm:"type:varchar(255)"`
	UserID    string    `gorm:"type:varchar(255)"`
	Payload   []byte    `gorm:"type:blob"`
	Targets   datatypes.JSON

	// CheckedOutBatchID is set by Load and cleared by DeleteBatch.
	// NewGormStore clears any value left over from a process that died
	// mid-flight, so a restart makes those records eligible for Load
	// again instead of stranding them.
	CheckedOutBatchID string `gorm:"type:varchar(64);index"`

	Flags     string `gorm:"type:varchar(16)"`
	CreatedAt time.Time
}

func (PersistedLog) TableName() string {
	return "channel_logs"
}
