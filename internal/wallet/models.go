package wallet

import (
	"time"

	"greenwallet/internal/greencard"
)

// EventGroup is one stored, signed blob of events for one provider and one
// event mode. At most one live (non-draft) group exists per provider+mode.
type EventGroup struct {
	ID                 string
	Type               greencard.OriginType
	ProviderIdentifier string
	UniqueIdentifier   string
	JSONData           []byte
	ExpiryDate         *time.Time
	IsDraft            bool
	CreatedAt          time.Time
}

// Credential is one short-lived disclosure credential backing a green card.
type Credential struct {
	Data           []byte
	ValidFrom      time.Time
	ExpirationTime time.Time
	Version        int
}

// GreenCard bundles all origins sharing a disclosure region plus the rolling
// credential supply proving them. Owned exclusively by the wallet store.
type GreenCard struct {
	ID          string
	Region      greencard.Region
	Origins     []greencard.Origin
	Credentials []Credential
}

// UnexpiredOrigins returns the origins whose expiration lies after now,
// optionally filtered by type. Future origins count as unexpired.
func (g GreenCard) UnexpiredOrigins(now time.Time, ofType *greencard.OriginType) []greencard.Origin {
	var out []greencard.Origin
	for _, origin := range g.Origins {
		if origin.IsExpiredAt(now) {
			continue
		}
		if ofType != nil && origin.Type != *ofType {
			continue
		}
		out = append(out, origin)
	}
	return out
}

// HasUnexpiredOrigins reports whether any origin is still live at now.
func (g GreenCard) HasUnexpiredOrigins(now time.Time, ofType *greencard.OriginType) bool {
	return len(g.UnexpiredOrigins(now, ofType)) > 0
}

// CurrentCredential returns the credential usable at now, preferring the one
// expiring last. Nil when the supply has run out.
func (g GreenCard) CurrentCredential(now time.Time) *Credential {
	var current *Credential
	for i := range g.Credentials {
		c := &g.Credentials[i]
		if now.Before(c.ValidFrom) || !now.Before(c.ExpirationTime) {
			continue
		}
		if current == nil || c.ExpirationTime.After(current.ExpirationTime) {
			current = c
		}
	}
	return current
}

// CredentialSupplyExpiry returns when the last credential in the supply runs
// out, or nil when the card holds no credentials at all.
func (g GreenCard) CredentialSupplyExpiry() *time.Time {
	var latest *time.Time
	for _, c := range g.Credentials {
		exp := c.ExpirationTime
		if latest == nil || exp.After(*latest) {
			latest = &exp
		}
	}
	return latest
}

// RemovalReason explains why previously accepted data disappeared.
type RemovalReason string

const (
	ReasonIdentityMismatch  RemovalReason = "identity_mismatch"
	ReasonBlockedEvent      RemovalReason = "blocked_event"
	ReasonEventGroupExpired RemovalReason = "event_group_expired"
)

// RemovedEvent is the append-only audit record behind a removal. It is never
// mutated after creation and only deleted on a full wallet wipe.
type RemovedEvent struct {
	ID        string
	Type      greencard.OriginType
	EventDate time.Time
	Reason    RemovalReason
	CreatedAt time.Time
}

// RemovedGreenCard reports one green-card removal from the expiry sweep.
type RemovedGreenCard struct {
	Region     greencard.Region
	OriginType greencard.OriginType
}
