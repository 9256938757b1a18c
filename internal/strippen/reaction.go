package strippen

import "time"

// ActionKind is what the dashboard must do in response to a refresher state.
type ActionKind int

const (
	// ActionNone: nothing to surface.
	ActionNone ActionKind = iota
	// ActionBlockingAlert: credentials are unusable now and the user has not
	// been warned yet.
	ActionBlockingAlert
	// ActionNonBlockingAlert: forward-looking warning carrying the expiry
	// date.
	ActionNonBlockingAlert
	// ActionPassiveError: persistent in-UI error banner.
	ActionPassiveError
	// ActionReloadDatasource: the refresh succeeded; reload green-card data
	// from the store.
	ActionReloadDatasource
)

// User-facing remedy copy keys.
const (
	MessageTryAgain        = "strippen_refresh_failed_try_again"
	MessageContactHelpdesk = "strippen_refresh_failed_contact_helpdesk"
	MessageNoInternet      = "strippen_refresh_no_internet"
)

// Reaction is the dashboard's response to one refresher state.
type Reaction struct {
	Kind       ActionKind
	ExpiryDate time.Time
	Message    string
}

// React maps a refresher state onto the dashboard action.
//
// Completion always reloads, even when the refreshed supply needs no further
// action. Repeat-alert fatigue is avoided through the dismissal flag: an
// acknowledged failure degrades from alert to banner or to nothing.
func React(s State) Reaction {
	switch s.Loading {
	case Completed:
		return Reaction{Kind: ActionReloadDatasource}
	case Idle, Loading:
		return Reaction{Kind: ActionNone}
	case ServerResponseHasNoChanges:
		// Terminal for this cycle; the issuer's clock disagrees with ours
		// and retrying would loop.
		return Reaction{Kind: ActionNone}
	}

	if s.Expiry.Phase == NoActionNeeded {
		return Reaction{Kind: ActionNone}
	}

	switch s.Loading {
	case NoInternet:
		switch {
		case s.Expiry.Phase == Expired && !s.UserHasPreviouslyDismissedAnError:
			return Reaction{Kind: ActionBlockingAlert, Message: MessageNoInternet}
		case s.Expiry.Phase == Expired:
			return Reaction{Kind: ActionPassiveError, Message: MessageNoInternet}
		case s.Expiry.Phase == Expiring && s.UserHasPreviouslyDismissedAnError:
			return Reaction{Kind: ActionNone}
		default: // expiring, not yet acknowledged
			return Reaction{Kind: ActionNonBlockingAlert, ExpiryDate: s.Expiry.Date, Message: MessageNoInternet}
		}
	case Failed:
		if s.Expiry.Phase == Expired {
			message := MessageTryAgain
			if s.ErrorOccurrenceCount > 1 {
				message = MessageContactHelpdesk
			}
			return Reaction{Kind: ActionPassiveError, Message: message}
		}
		// Expiring under a server failure: swallow and retry later.
		return Reaction{Kind: ActionNone}
	}
	return Reaction{Kind: ActionNone}
}
