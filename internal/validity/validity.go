// Package validity decides whether a locally cached remote resource needs
// refreshing given its TTL, an optional minimum refresh interval, and whether
// the process is starting up.
package validity

import "time"

// Validity is the freshness verdict for a cached remote resource. Computed
// fresh on every evaluation; never persisted.
type Validity string

const (
	NeverFetched          Validity = "neverFetched"
	WithinTTL             Validity = "withinTTL"
	WithinMinimalInterval Validity = "withinMinimalInterval"
	RefreshNeeded         Validity = "refreshNeeded"
)

// Evaluate computes the freshness verdict. Pure; no side effects.
//
// Rules, in order:
//  1. no prior fetch → NeverFetched
//  2. lastFetched in the future → RefreshNeeded (a spoofed future timestamp
//     must never suppress refreshing)
//  3. lastFetched newer than now-ttl → WithinTTL, else tentatively RefreshNeeded
//  4. without a minimum interval the step-3 result stands
//  5. inside the minimum interval the refresh is suppressed to
//     WithinMinimalInterval, except while launching: launch always gets one
//     refresh attempt
func Evaluate(lastFetched *time.Time, ttlSeconds int, minimumIntervalSeconds *int, isAppLaunching bool, now time.Time) Validity {
	if lastFetched == nil {
		return NeverFetched
	}
	if lastFetched.After(now) {
		return RefreshNeeded
	}

	ttlThreshold := now.Add(-time.Duration(ttlSeconds) * time.Second)
	result := RefreshNeeded
	if lastFetched.After(ttlThreshold) {
		result = WithinTTL
	}

	if minimumIntervalSeconds == nil {
		return result
	}
	intervalThreshold := now.Add(-time.Duration(*minimumIntervalSeconds) * time.Second)
	isWithinMinimumInterval := lastFetched.After(intervalThreshold)
	if isWithinMinimumInterval && !isAppLaunching {
		return WithinMinimalInterval
	}
	return result
}
