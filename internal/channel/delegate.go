package channel

import (
	"github.com/gpt-load-telemetry/channel-sdk/internal/errors"
	"github.com/gpt-load-telemetry/channel-sdk/internal/models"
)

// Delegate receives every lifecycle callback a Channel Unit emits for a
// record, plus pause/resume notifications for the unit as a whole.
// Registration order is preserved across dispatch; see unit.go for the
// snapshot-before-iterate discipline that makes it safe for a delegate to
// register/unregister delegates or pause/resume the channel from inside
// one of its own callbacks.
type Delegate interface {
	PrepareLog(record *models.Record)
	DidPrepareLog(record *models.Record, internalID uint64, flags models.Flags)
	DidCompleteEnqueueingLog(record *models.Record, internalID uint64)
	ShouldFilterLog(record *models.Record) bool
	WillSendLog(record *models.Record)
	DidSucceedSendingLog(record *models.Record)
	DidFailSendingLog(record *models.Record, err *errors.ChannelError)
	DidPause(id any)
	DidResume(id any)
}

// BaseDelegate is an embeddable no-op implementation; a delegate that only
// cares about a subset of callbacks embeds this and overrides the rest,
// so a caller only implements the callbacks it cares about.
type BaseDelegate struct{}

func (BaseDelegate) PrepareLog(*models.Record)                                {}
func (BaseDelegate) DidPrepareLog(*models.Record, uint64, models.Flags)       {}
func (BaseDelegate) DidCompleteEnqueueingLog(*models.Record, uint64)          {}
func (BaseDelegate) ShouldFilterLog(*models.Record) bool                      { return false }
func (BaseDelegate) WillSendLog(*models.Record)                               {}
func (BaseDelegate) DidSucceedSendingLog(*models.Record)                      {}
func (BaseDelegate) DidFailSendingLog(*models.Record, *errors.ChannelError)   {}
func (BaseDelegate) DidPause(any)                                             {}
func (BaseDelegate) DidResume(any)                                            {}

var _ Delegate = BaseDelegate{}

// delegateList is an ordered, registration-order-preserving collection of
// delegates mutated only from the owning unit's serial execution context.
// snapshot() is taken before every dispatch loop so a delegate that adds or
// removes another delegate (or itself) from within a callback never
// corrupts or skips entries mid-iteration.
type delegateList struct {
	delegates []Delegate
}

func (l *delegateList) add(d Delegate) {
	l.delegates = append(l.delegates, d)
}

func (l *delegateList) remove(d Delegate) {
	for i, existing := range l.delegates {
		if existing == d {
			l.delegates = append(l.delegates[:i], l.delegates[i+1:]...)
			return
		}
	}
}

func (l *delegateList) snapshot() []Delegate {
	out := make([]Delegate, len(l.delegates))
	copy(out, l.delegates)
	return out
}
