// Package strippen keeps the rolling batch of short-lived disclosure
// credentials ("strippen") behind each green card topped up: it decides when
// to re-fetch, runs the exchange, and exposes a state machine the dashboard
// reacts to.
package strippen

import "time"

// LoadingState is where the refresher sits in its fetch cycle.
type LoadingState int

const (
	Idle LoadingState = iota
	Loading
	Completed
	Failed
	NoInternet
	ServerResponseHasNoChanges
)

func (s LoadingState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case NoInternet:
		return "noInternet"
	case ServerResponseHasNoChanges:
		return "serverResponseHasNoChanges"
	default:
		return "unknown"
	}
}

// ExpiryPhase classifies the credential supply across all green cards.
type ExpiryPhase int

const (
	// NoActionNeeded: every card has credentials beyond the renewal window.
	NoActionNeeded ExpiryPhase = iota
	// Expiring: at least one card's supply runs out within the renewal
	// window; Date carries the soonest exhaustion.
	Expiring
	// Expired: at least one card with live origins has no usable credential
	// right now.
	Expired
)

func (p ExpiryPhase) String() string {
	switch p {
	case NoActionNeeded:
		return "noActionNeeded"
	case Expiring:
		return "expiring"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// ExpiryState pairs the phase with the soonest exhaustion date (set for
// Expiring).
type ExpiryState struct {
	Phase ExpiryPhase
	Date  time.Time
}

// Equal compares expiry states, treating Date by instant.
func (e ExpiryState) Equal(other ExpiryState) bool {
	return e.Phase == other.Phase && e.Date.Equal(other.Date)
}

// State is the full refresher snapshot the dashboard observes.
type State struct {
	Loading                           LoadingState
	Expiry                            ExpiryState
	UserHasPreviouslyDismissedAnError bool
	ErrorOccurrenceCount              int
	// FailedError is the last failure description; cleared when a cycle
	// resolves, kept while a new cycle is still loading.
	FailedError string
}

// Equal compares states field by field.
func (s State) Equal(other State) bool {
	return s.Loading == other.Loading &&
		s.Expiry.Equal(other.Expiry) &&
		s.UserHasPreviouslyDismissedAnError == other.UserHasPreviouslyDismissedAnError &&
		s.ErrorOccurrenceCount == other.ErrorOccurrenceCount &&
		s.FailedError == other.FailedError
}

// IsRefreshing reports whether a cycle is in flight.
func (s State) IsRefreshing() bool { return s.Loading == Loading }
