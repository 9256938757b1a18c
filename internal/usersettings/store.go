// Package usersettings persists the holder's dismissal memory: which warnings
// were acknowledged and how often the credential refresh has failed. Kept out
// of the wallet store because a wallet wipe and a settings reset are separate
// user actions.
package usersettings

import "context"

// Settings is the full dismissal-memory snapshot.
type Settings struct {
	HasDismissedStrippenError       bool
	HasDismissedPolicyChangeBanner  bool
	HasDismissedBlockedEventsBanner bool
	StrippenErrorOccurrenceCount    int
}

// Store persists settings. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context) (Settings, error)
	SetDismissedStrippenError(ctx context.Context, dismissed bool) error
	SetDismissedPolicyChangeBanner(ctx context.Context, dismissed bool) error
	SetDismissedBlockedEventsBanner(ctx context.Context, dismissed bool) error
	// IncrementStrippenErrorCount bumps the failure counter and returns the
	// new value; the dashboard escalates messaging past 1.
	IncrementStrippenErrorCount(ctx context.Context) (int, error)
	ResetStrippenErrorCount(ctx context.Context) error
	Reset(ctx context.Context) error
}
