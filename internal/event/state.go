package event

import "encoding/json"

// State is the provider-reported status of an event result wrapper. The value
// gates whether the wrapper's events may be trusted and persisted.
type State string

const (
	StatePending              State = "pending"
	StateComplete             State = "complete"
	StateInvalid              State = "invalid_token"
	StateVerificationRequired State = "verification_required"
	StateBlocked              State = "result_blocked"
	StateUnknown              State = "unknown"
)

// validStates is the single source of truth for recognized wire values.
var validStates = map[State]bool{
	StatePending:              true,
	StateComplete:             true,
	StateInvalid:              true,
	StateVerificationRequired: true,
	StateBlocked:              true,
}

// UnmarshalJSON degrades unrecognized wire values to StateUnknown instead of
// failing the whole decode. New server-side states must never break old
// clients.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	candidate := State(raw)
	if !validStates[candidate] {
		candidate = StateUnknown
	}
	*s = candidate
	return nil
}

// Storable reports whether a wrapper in this state may be persisted as
// authoritative data. Pending results must never be stored.
func (s State) Storable() bool {
	return s == StateComplete
}
