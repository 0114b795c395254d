package channel

import (
	"sync"
	"time"

	"github.com/gpt-load-telemetry/channel-sdk/internal/authcontext"
	"github.com/gpt-load-telemetry/channel-sdk/internal/ingestion"
	"github.com/gpt-load-telemetry/channel-sdk/internal/models"
	"github.com/gpt-load-telemetry/channel-sdk/internal/store"
)

// GroupDefaults supplies the fallback values AddUnit applies to any
// zero-valued field of a GroupConfig, so a host application that only
// wants to pin a GroupID per unit doesn't have to repeat the SDK-wide
// batching defaults on every call. ExcludedTargetKeys seeds every new
// unit's paused target-key set at construction time.
type GroupDefaults struct {
	FlushInterval       time.Duration
	BatchSizeLimit      int
	PendingBatchesLimit int
	ExcludedTargetKeys  map[string]struct{}
}

// ChannelGroup owns a set of Channel Units that share one serial execution
// context and one ingestion client: one scheduler per group. It
// multiplexes enable/disable and id-axis
// pause/resume onto every registered unit, and subscribes to the ingestion
// client so its pause/resume/fatal-error lifecycle reaches every unit
// using the ingestion instance itself as the pause identifier.
type ChannelGroup struct {
	queue     *serialQueue
	store     store.Store
	ingestion ingestion.Ingestion
	timeline  authcontext.Timeline
	ambient   Ambient
	defaults  GroupDefaults

	registryMu sync.Mutex
	units      map[string]*ChannelUnit
}

// NewChannelGroup wires a group around its shared collaborators. ambient
// may be nil, in which case NopAmbient is used. defaults fills in any
// zero-valued field a caller leaves unset on a GroupConfig passed to
// AddUnit.
func NewChannelGroup(st store.Store, ing ingestion.Ingestion, timeline authcontext.Timeline, ambient Ambient, defaults GroupDefaults) *ChannelGroup {
	if ambient == nil {
		ambient = NopAmbient{}
	}
	g := &ChannelGroup{
		queue:     newSerialQueue(),
		store:     st,
		ingestion: ing,
		timeline:  timeline,
		ambient:   ambient,
		defaults:  defaults,
		units:     make(map[string]*ChannelUnit),
	}
	ing.AddDelegate(g)
	return g
}

// AddUnit registers a new Channel Unit for config.GroupID, replacing any
// unit already registered under that id. Any of BatchSizeLimit,
// PendingBatchesLimit or FlushInterval left at its zero value is filled in
// from the group's defaults before validation.
func (g *ChannelGroup) AddUnit(config models.GroupConfig) (*ChannelUnit, error) {
	if config.BatchSizeLimit == 0 {
		config.BatchSizeLimit = g.defaults.BatchSizeLimit
	}
	if config.PendingBatchesLimit == 0 {
		config.PendingBatchesLimit = g.defaults.PendingBatchesLimit
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = g.defaults.FlushInterval
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	u := newUnit(g, config)
	for key := range g.defaults.ExcludedTargetKeys {
		u.pausedTargetKeys.Add(key)
	}
	g.registryMu.Lock()
	g.units[config.GroupID] = u
	g.registryMu.Unlock()
	return u, nil
}

// Unit returns the unit registered for groupID, if any.
func (g *ChannelGroup) Unit(groupID string) (*ChannelUnit, bool) {
	g.registryMu.Lock()
	defer g.registryMu.Unlock()
	u, ok := g.units[groupID]
	return u, ok
}

func (g *ChannelGroup) allUnits() []*ChannelUnit {
	g.registryMu.Lock()
	defer g.registryMu.Unlock()
	out := make([]*ChannelUnit, 0, len(g.units))
	for _, u := range g.units {
		out = append(out, u)
	}
	return out
}

// Pause forwards an id-axis pause to every registered unit.
func (g *ChannelGroup) Pause(id any) {
	for _, u := range g.allUnits() {
		u.Pause(id)
	}
}

// Resume forwards an id-axis resume to every registered unit.
func (g *ChannelGroup) Resume(id any) {
	for _, u := range g.allUnits() {
		u.Resume(id)
	}
}

// SetEnabled forwards enable/disable to every registered unit.
func (g *ChannelGroup) SetEnabled(enabled, deleteData bool) {
	for _, u := range g.allUnits() {
		u.SetEnabled(enabled, deleteData)
	}
}

// Drain blocks until every unit's queue has processed all tasks submitted
// before this call, plus the follow-up tasks they post back onto the queue.
// For tests and teardown only.
func (g *ChannelGroup) Drain() {
	g.queue.drain()
}

// IngestionDidPause implements ingestion.Delegate.
func (g *ChannelGroup) IngestionDidPause(ing ingestion.Ingestion) {
	for _, u := range g.allUnits() {
		u.Pause(ing)
	}
}

// IngestionDidResume implements ingestion.Delegate.
func (g *ChannelGroup) IngestionDidResume(ing ingestion.Ingestion) {
	for _, u := range g.allUnits() {
		u.Resume(ing)
	}
}

// IngestionDidReceiveFatalError implements ingestion.Delegate.
func (g *ChannelGroup) IngestionDidReceiveFatalError(ing ingestion.Ingestion, err error) {
	for _, u := range g.allUnits() {
		u.SetEnabled(false, true)
	}
}

var _ ingestion.Delegate = (*ChannelGroup)(nil)
