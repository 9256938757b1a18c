package wallet

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"greenwallet/internal/greencard"
	"greenwallet/pkg/sentinel"
)

// Clock abstracts time.Now for testability.
type Clock func() time.Time

// InMemoryStore implements Store without external dependencies. It is the
// default for tests and single-node deployments; use PostgresStore otherwise.
type InMemoryStore struct {
	mu            sync.RWMutex
	eventGroups   map[string]EventGroup
	greenCards    map[string]GreenCard
	removedEvents []RemovedEvent
	clock         Clock
	gracePeriod   time.Duration
}

// InMemoryOption configures an InMemoryStore.
type InMemoryOption func(*InMemoryStore)

// WithClock sets the clock function for testability.
func WithClock(clock Clock) InMemoryOption {
	return func(s *InMemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithGracePeriod keeps fully expired green cards around for the given extra
// window before the sweep removes them.
func WithGracePeriod(d time.Duration) InMemoryOption {
	return func(s *InMemoryStore) {
		s.gracePeriod = d
	}
}

func NewInMemoryStore(opts ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		eventGroups: make(map[string]EventGroup),
		greenCards:  make(map[string]GreenCard),
		clock:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// uniqueIdentifier derives the identifier the issuer uses when pushing blob
// expiries for a stored group.
func uniqueIdentifier(providerIdentifier string, jsonData []byte) string {
	sum := sha256.Sum256(jsonData)
	return fmt.Sprintf("%s-%x", providerIdentifier, sum[:8])
}

func (s *InMemoryStore) StoreEventGroup(ctx context.Context, eventType greencard.OriginType, providerIdentifier string, jsonData []byte, expiryDate *time.Time, isDraft bool) (*EventGroup, error) {
	if providerIdentifier == "" {
		return nil, fmt.Errorf("provider identifier is required")
	}
	if len(jsonData) == 0 {
		return nil, fmt.Errorf("event group payload is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	group := EventGroup{
		ID:                 uuid.NewString(),
		Type:               eventType,
		ProviderIdentifier: providerIdentifier,
		UniqueIdentifier:   uniqueIdentifier(providerIdentifier, jsonData),
		JSONData:           append([]byte(nil), jsonData...),
		IsDraft:            isDraft,
		CreatedAt:          s.clock(),
	}
	if expiryDate != nil {
		expiry := *expiryDate
		group.ExpiryDate = &expiry
	}
	s.eventGroups[group.ID] = group
	return &group, nil
}

func (s *InMemoryStore) ListEventGroups(ctx context.Context) ([]EventGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EventGroup, 0, len(s.eventGroups))
	for _, group := range s.eventGroups {
		out = append(out, group)
	}
	return out, nil
}

func (s *InMemoryStore) RemoveExistingEventGroups(ctx context.Context, eventType greencard.OriginType, providerIdentifier string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, group := range s.eventGroups {
		// Drafts survive; they are replaced on finalize, not on re-fetch.
		if group.IsDraft {
			continue
		}
		if group.Type == eventType && group.ProviderIdentifier == providerIdentifier {
			delete(s.eventGroups, id)
			removed++
		}
	}
	return removed, nil
}

func (s *InMemoryStore) RemoveAllEventGroups(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventGroups = make(map[string]EventGroup)
	return nil
}

func (s *InMemoryStore) RemoveEventGroup(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.eventGroups[id]; !ok {
		return fmt.Errorf("event group %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.eventGroups, id)
	return nil
}

func (s *InMemoryStore) FinalizeDraftEventGroups(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, group := range s.eventGroups {
		if group.IsDraft {
			group.IsDraft = false
			s.eventGroups[id] = group
		}
	}
	return nil
}

func (s *InMemoryStore) UpdateEventGroupExpiry(ctx context.Context, id string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.eventGroups[id]
	if !ok {
		return fmt.Errorf("event group %s: %w", id, sentinel.ErrNotFound)
	}
	group.ExpiryDate = &expiry
	s.eventGroups[id] = group
	return nil
}

func (s *InMemoryStore) ExpireEventGroups(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, group := range s.eventGroups {
		if group.ExpiryDate != nil && !now.Before(*group.ExpiryDate) {
			delete(s.eventGroups, id)
		}
	}
	return nil
}

func (s *InMemoryStore) StoreGreenCards(ctx context.Context, response greencard.Response, converter CredentialConverter) error {
	if converter == nil {
		return fmt.Errorf("credential converter is required")
	}

	// Build the replacement set before taking the lock so a converter failure
	// leaves the stored cards untouched.
	replacement := make([]GreenCard, 0, 1+len(response.EuGreenCards))
	if response.DomesticGreenCard != nil {
		credentials, err := converter.DomesticCredentials(response.DomesticGreenCard.CreateCredentialMessages)
		if err != nil {
			return fmt.Errorf("convert domestic credentials: %w", err)
		}
		replacement = append(replacement, GreenCard{
			ID:          uuid.NewString(),
			Region:      greencard.RegionDomestic,
			Origins:     append([]greencard.Origin(nil), response.DomesticGreenCard.Origins...),
			Credentials: credentials,
		})
	}
	for _, eu := range response.EuGreenCards {
		credential, err := converter.EuCredential([]byte(eu.Credential))
		if err != nil {
			return fmt.Errorf("convert eu credential: %w", err)
		}
		card := GreenCard{
			ID:      uuid.NewString(),
			Region:  greencard.RegionEuropeanUnion,
			Origins: append([]greencard.Origin(nil), eu.Origins...),
		}
		if credential != nil {
			card.Credentials = []Credential{*credential}
		}
		replacement = append(replacement, card)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.greenCards = make(map[string]GreenCard, len(replacement))
	for _, card := range replacement {
		s.greenCards[card.ID] = card
	}
	return nil
}

func (s *InMemoryStore) ListGreenCards(ctx context.Context) ([]GreenCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]GreenCard, 0, len(s.greenCards))
	for _, card := range s.greenCards {
		out = append(out, card)
	}
	return out, nil
}

func (s *InMemoryStore) GreenCardsWithUnexpiredOrigins(ctx context.Context, now time.Time, ofType *greencard.OriginType) ([]GreenCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []GreenCard
	for _, card := range s.greenCards {
		if card.HasUnexpiredOrigins(now, ofType) {
			out = append(out, card)
		}
	}
	return out, nil
}

func (s *InMemoryStore) RemoveExpiredGreenCards(ctx context.Context, now time.Time) ([]RemovedGreenCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := []RemovedGreenCard{}
	for id, card := range s.greenCards {
		if !s.fullyExpired(card, now) {
			continue
		}
		for _, origin := range card.Origins {
			removed = append(removed, RemovedGreenCard{Region: card.Region, OriginType: origin.Type})
		}
		delete(s.greenCards, id)
	}
	return removed, nil
}

// fullyExpired reports whether every origin is past its window plus the grace
// period. Cards without origins never got issued properly and sweep too.
func (s *InMemoryStore) fullyExpired(card GreenCard, now time.Time) bool {
	for _, origin := range card.Origins {
		if now.Before(origin.ExpirationTime.Add(s.gracePeriod)) {
			return false
		}
	}
	return true
}

func (s *InMemoryStore) StoreRemovedEvent(ctx context.Context, removed RemovedEvent) (*RemovedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if removed.ID == "" {
		removed.ID = uuid.NewString()
	}
	if removed.CreatedAt.IsZero() {
		removed.CreatedAt = s.clock()
	}
	s.removedEvents = append(s.removedEvents, removed)
	return &removed, nil
}

func (s *InMemoryStore) ListRemovedEvents(ctx context.Context) ([]RemovedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]RemovedEvent(nil), s.removedEvents...), nil
}

func (s *InMemoryStore) RemoveAllRemovedEvents(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removedEvents = nil
	return nil
}

func (s *InMemoryStore) RemoveWallet(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventGroups = make(map[string]EventGroup)
	s.greenCards = make(map[string]GreenCard)
	s.removedEvents = nil
	return nil
}

var _ Store = (*InMemoryStore)(nil)
