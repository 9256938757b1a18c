//go:build integration

package wallet_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"greenwallet/internal/greencard"
	"greenwallet/internal/wallet"
	"greenwallet/pkg/sentinel"
	"greenwallet/pkg/testutil/containers"
)

// fixedConverter returns a pre-built credential set regardless of input.
type fixedConverter struct {
	domestic []wallet.Credential
	eu       *wallet.Credential
}

func (c fixedConverter) DomesticCredentials([]byte) ([]wallet.Credential, error) {
	return c.domestic, nil
}

func (c fixedConverter) EuCredential(credential []byte) (*wallet.Credential, error) {
	if c.eu == nil {
		return nil, nil
	}
	out := *c.eu
	out.Data = append([]byte(nil), credential...)
	return &out, nil
}

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	now      time.Time
	store    *wallet.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.now = time.Date(2023, 6, 15, 12, 0, 0, 0, time.UTC)
	s.store = wallet.NewPostgresStore(s.postgres.DB,
		wallet.WithPostgresClock(func() time.Time { return s.now }))
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	s.postgres.Terminate(context.Background())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.now = time.Date(2023, 6, 15, 12, 0, 0, 0, time.UTC)
	err := s.postgres.TruncateTables(context.Background(), "event_groups", "green_cards", "removed_events")
	s.Require().NoError(err)
}

// TestEventGroupLifecycle verifies store, list, replacement scoping, draft
// finalization, and removal against a real database.
func (s *PostgresStoreSuite) TestEventGroupLifecycle() {
	ctx := context.Background()

	group, err := s.store.StoreEventGroup(ctx, greencard.OriginTypeVaccination, "GGD", []byte(`{"events":[]}`), nil, false)
	s.Require().NoError(err)
	s.Require().NotNil(group)
	s.NotEmpty(group.UniqueIdentifier)
	s.True(group.CreatedAt.Equal(s.now))

	s.Run("replacement is scoped to type and provider", func() {
		_, err := s.store.StoreEventGroup(ctx, greencard.OriginTypeTest, "GGD", []byte(`{"t":1}`), nil, false)
		s.Require().NoError(err)
		_, err = s.store.StoreEventGroup(ctx, greencard.OriginTypeVaccination, "RIVM", []byte(`{"r":1}`), nil, false)
		s.Require().NoError(err)

		removed, err := s.store.RemoveExistingEventGroups(ctx, greencard.OriginTypeVaccination, "GGD")
		s.Require().NoError(err)
		s.Equal(1, removed)

		groups, err := s.store.ListEventGroups(ctx)
		s.Require().NoError(err)
		s.Len(groups, 2)
	})

	s.Run("drafts survive replacement and finalize to live", func() {
		draft, err := s.store.StoreEventGroup(ctx, greencard.OriginTypeVaccination, "RIVM", []byte(`{"d":1}`), nil, true)
		s.Require().NoError(err)
		s.True(draft.IsDraft)

		removed, err := s.store.RemoveExistingEventGroups(ctx, greencard.OriginTypeVaccination, "RIVM")
		s.Require().NoError(err)
		s.Equal(1, removed, "only the live group is replaced")

		s.Require().NoError(s.store.FinalizeDraftEventGroups(ctx))
		groups, err := s.store.ListEventGroups(ctx)
		s.Require().NoError(err)
		for _, g := range groups {
			s.False(g.IsDraft)
		}
	})

	s.Run("removing an unknown group is ErrNotFound", func() {
		err := s.store.RemoveEventGroup(ctx, "4dd38569-0000-0000-0000-000000000000")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestEventGroupExpirySweep verifies the server-declared expiry sweep.
func (s *PostgresStoreSuite) TestEventGroupExpirySweep() {
	ctx := context.Background()

	past := s.now.Add(-time.Hour)
	future := s.now.Add(time.Hour)
	_, err := s.store.StoreEventGroup(ctx, greencard.OriginTypeTest, "GGD", []byte(`{"a":1}`), &past, false)
	s.Require().NoError(err)
	_, err = s.store.StoreEventGroup(ctx, greencard.OriginTypeTest, "RIVM", []byte(`{"b":1}`), &future, false)
	s.Require().NoError(err)

	s.Require().NoError(s.store.ExpireEventGroups(ctx, s.now))

	groups, err := s.store.ListEventGroups(ctx)
	s.Require().NoError(err)
	s.Require().Len(groups, 1)
	s.Equal("RIVM", groups[0].ProviderIdentifier)
}

func (s *PostgresStoreSuite) liveOrigin() greencard.Origin {
	return greencard.Origin{
		Type:           greencard.OriginTypeVaccination,
		EventTime:      s.now.Add(-30 * 24 * time.Hour),
		ValidFrom:      s.now.Add(-24 * time.Hour),
		ExpirationTime: s.now.Add(30 * 24 * time.Hour),
	}
}

// TestGreenCardReplacement verifies StoreGreenCards replaces the full set
// atomically and credentials survive the JSONB round-trip.
func (s *PostgresStoreSuite) TestGreenCardReplacement() {
	ctx := context.Background()
	converter := fixedConverter{
		domestic: []wallet.Credential{{
			Data:           []byte("cred-1"),
			ValidFrom:      s.now.Add(-time.Hour),
			ExpirationTime: s.now.Add(24 * time.Hour),
			Version:        2,
		}},
		eu: &wallet.Credential{
			ValidFrom:      s.now.Add(-time.Hour),
			ExpirationTime: s.now.Add(90 * 24 * time.Hour),
		},
	}

	response := greencard.Response{
		DomesticGreenCard: &greencard.DomesticGreenCard{
			Origins:                  []greencard.Origin{s.liveOrigin()},
			CreateCredentialMessages: []byte(`[{}]`),
		},
		EuGreenCards: []greencard.EuGreenCard{{
			Origins:    []greencard.Origin{s.liveOrigin()},
			Credential: "dcc-blob",
		}},
	}
	s.Require().NoError(s.store.StoreGreenCards(ctx, response, converter))

	cards, err := s.store.ListGreenCards(ctx)
	s.Require().NoError(err)
	s.Require().Len(cards, 2)
	for _, card := range cards {
		s.Require().Len(card.Credentials, 1)
		if card.Region == greencard.RegionDomestic {
			s.Equal([]byte("cred-1"), card.Credentials[0].Data)
			s.Equal(2, card.Credentials[0].Version)
		} else {
			s.Equal([]byte("dcc-blob"), card.Credentials[0].Data)
		}
	}

	s.Run("a second store replaces everything", func() {
		replacement := greencard.Response{
			EuGreenCards: []greencard.EuGreenCard{{
				Origins:    []greencard.Origin{s.liveOrigin()},
				Credential: "dcc-blob-2",
			}},
		}
		s.Require().NoError(s.store.StoreGreenCards(ctx, replacement, converter))

		cards, err := s.store.ListGreenCards(ctx)
		s.Require().NoError(err)
		s.Require().Len(cards, 1)
		s.Equal(greencard.RegionEuropeanUnion, cards[0].Region)
	})
}

// TestExpiredGreenCardSweep verifies fully lapsed cards are removed with one
// record per origin and the sweep stays idempotent.
func (s *PostgresStoreSuite) TestExpiredGreenCardSweep() {
	ctx := context.Background()
	converter := fixedConverter{}

	lapsed := greencard.Origin{
		Type:           greencard.OriginTypeRecovery,
		ValidFrom:      s.now.Add(-48 * time.Hour),
		ExpirationTime: s.now.Add(-time.Hour),
	}
	response := greencard.Response{
		DomesticGreenCard: &greencard.DomesticGreenCard{Origins: []greencard.Origin{lapsed}},
		EuGreenCards: []greencard.EuGreenCard{{
			Origins:    []greencard.Origin{s.liveOrigin()},
			Credential: "dcc-blob",
		}},
	}
	s.Require().NoError(s.store.StoreGreenCards(ctx, response, converter))

	removed, err := s.store.RemoveExpiredGreenCards(ctx, s.now)
	s.Require().NoError(err)
	s.Require().Len(removed, 1)
	s.Equal(greencard.RegionDomestic, removed[0].Region)
	s.Equal(greencard.OriginTypeRecovery, removed[0].OriginType)

	s.Run("repeat sweep removes nothing", func() {
		removed, err := s.store.RemoveExpiredGreenCards(ctx, s.now)
		s.Require().NoError(err)
		s.Empty(removed)
	})

	s.Run("live cards survive", func() {
		cards, err := s.store.GreenCardsWithUnexpiredOrigins(ctx, s.now, nil)
		s.Require().NoError(err)
		s.Len(cards, 1)
	})
}

// TestRemovedEventsAuditTrail verifies the append-only removal records.
func (s *PostgresStoreSuite) TestRemovedEventsAuditTrail() {
	ctx := context.Background()

	first, err := s.store.StoreRemovedEvent(ctx, wallet.RemovedEvent{
		Type:      greencard.OriginTypeVaccination,
		EventDate: s.now.Add(-60 * 24 * time.Hour),
		Reason:    wallet.ReasonBlockedEvent,
	})
	s.Require().NoError(err)
	s.NotEmpty(first.ID)
	s.True(first.CreatedAt.Equal(s.now))

	s.now = s.now.Add(time.Minute)
	_, err = s.store.StoreRemovedEvent(ctx, wallet.RemovedEvent{
		Type:      greencard.OriginTypeTest,
		EventDate: s.now,
		Reason:    wallet.ReasonEventGroupExpired,
	})
	s.Require().NoError(err)

	records, err := s.store.ListRemovedEvents(ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(wallet.ReasonBlockedEvent, records[0].Reason)
	s.Equal(wallet.ReasonEventGroupExpired, records[1].Reason)
}

// TestRemoveWallet verifies the wipe clears all three tables in one
// transaction.
func (s *PostgresStoreSuite) TestRemoveWallet() {
	ctx := context.Background()

	_, err := s.store.StoreEventGroup(ctx, greencard.OriginTypeVaccination, "GGD", []byte(`{"e":1}`), nil, false)
	s.Require().NoError(err)
	_, err = s.store.StoreRemovedEvent(ctx, wallet.RemovedEvent{
		Type: greencard.OriginTypeTest, EventDate: s.now, Reason: wallet.ReasonBlockedEvent,
	})
	s.Require().NoError(err)

	s.Require().NoError(s.store.RemoveWallet(ctx))

	groups, err := s.store.ListEventGroups(ctx)
	s.Require().NoError(err)
	s.Empty(groups)
	records, err := s.store.ListRemovedEvents(ctx)
	s.Require().NoError(err)
	s.Empty(records)
}
