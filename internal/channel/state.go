package channel

// State is the Channel Unit's coarse lifecycle state. It is derived
// from enabled/discardLogs/pausedBy rather than stored independently, but
// exposed as its own type so tests and introspection can assert on it
// directly instead of re-deriving it from the lower-level fields.
type State int

const (
	StateActive State = iota
	StatePausedByID
	StateDisabled
	StateDisabledWiped
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "Active"
	case StatePausedByID:
		return "PausedByID"
	case StateDisabled:
		return "Disabled"
	case StateDisabledWiped:
		return "DisabledWiped"
	default:
		return "Unknown"
	}
}

func deriveState(enabled, discardLogs, pausedByID bool) State {
	switch {
	case !enabled && discardLogs:
		return StateDisabledWiped
	case !enabled:
		return StateDisabled
	case pausedByID:
		return StatePausedByID
	default:
		return StateActive
	}
}
