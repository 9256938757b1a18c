package wallet

import (
	"context"
	"time"

	"greenwallet/internal/greencard"
)

// Store is the persistence boundary of the wallet. Implementations must make
// each call atomic; callers never see a half-applied mutation.
type Store interface {
	// StoreEventGroup persists one signed event blob. Returns the created
	// group or nil with an error when persistence fails.
	StoreEventGroup(ctx context.Context, eventType greencard.OriginType, providerIdentifier string, jsonData []byte, expiryDate *time.Time, isDraft bool) (*EventGroup, error)
	ListEventGroups(ctx context.Context) ([]EventGroup, error)
	// RemoveExistingEventGroups deletes the live groups for one provider and
	// mode, returning how many were removed.
	RemoveExistingEventGroups(ctx context.Context, eventType greencard.OriginType, providerIdentifier string) (int, error)
	RemoveAllEventGroups(ctx context.Context) error
	RemoveEventGroup(ctx context.Context, id string) error
	// FinalizeDraftEventGroups flips all draft groups to live once issuance
	// succeeded.
	FinalizeDraftEventGroups(ctx context.Context) error
	UpdateEventGroupExpiry(ctx context.Context, id string, expiry time.Time) error
	// ExpireEventGroups removes groups whose server-declared expiry has
	// passed. Independent of green-card expiry; both sweeps must run.
	ExpireEventGroups(ctx context.Context, now time.Time) error

	// StoreGreenCards replaces the stored green cards with the freshly signed
	// set from response, attaching credentials through converter.
	StoreGreenCards(ctx context.Context, response greencard.Response, converter CredentialConverter) error
	ListGreenCards(ctx context.Context) ([]GreenCard, error)
	GreenCardsWithUnexpiredOrigins(ctx context.Context, now time.Time, ofType *greencard.OriginType) ([]GreenCard, error)
	// RemoveExpiredGreenCards sweeps cards whose origins are all past their
	// grace window. Idempotent: a second sweep with no new data removes
	// nothing.
	RemoveExpiredGreenCards(ctx context.Context, now time.Time) ([]RemovedGreenCard, error)

	StoreRemovedEvent(ctx context.Context, removed RemovedEvent) (*RemovedEvent, error)
	ListRemovedEvents(ctx context.Context) ([]RemovedEvent, error)
	RemoveAllRemovedEvents(ctx context.Context) error

	// RemoveWallet wipes everything: groups, cards, removed-event records.
	RemoveWallet(ctx context.Context) error
}

// CredentialConverter is the slice of the crypto capability the store needs to
// attach credentials while persisting a signed response.
type CredentialConverter interface {
	DomesticCredentials(createCredentialMessages []byte) ([]Credential, error)
	EuCredential(credential []byte) (*Credential, error)
}
