package channel

import "time"

// Ambient supplies the enrichment values Enqueue assigns to a record when
// the producer left them unset. A host application provides its own
// implementation (device descriptor, ambient signed-in user); NopAmbient is
// a zero-value default for tests and standalone use.
type Ambient interface {
	Device() string
	UserID() *string
	Now() time.Time
}

// NopAmbient assigns no device descriptor and no user id, and uses the
// wall clock for timestamps.
type NopAmbient struct{}

func (NopAmbient) Device() string    { return "" }
func (NopAmbient) UserID() *string   { return nil }
func (NopAmbient) Now() time.Time    { return time.Now() }

var _ Ambient = NopAmbient{}
