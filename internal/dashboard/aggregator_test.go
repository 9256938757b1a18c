package dashboard

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"greenwallet/internal/greencard"
	"greenwallet/internal/observatory"
	"greenwallet/internal/policy"
	"greenwallet/internal/remoteconfig"
	"greenwallet/internal/strippen"
	"greenwallet/internal/usersettings"
	"greenwallet/internal/wallet"
)

// fakeWalletReader scripts the store reads.
type fakeWalletReader struct {
	mu      sync.Mutex
	groups  []wallet.EventGroup
	cards   []wallet.GreenCard
	sweep   []wallet.RemovedGreenCard
	removed []wallet.RemovedEvent
}

func (f *fakeWalletReader) ListEventGroups(context.Context) ([]wallet.EventGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groups, nil
}

func (f *fakeWalletReader) ListGreenCards(context.Context) ([]wallet.GreenCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cards, nil
}

func (f *fakeWalletReader) RemoveExpiredGreenCards(context.Context, time.Time) ([]wallet.RemovedGreenCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	swept := f.sweep
	f.sweep = nil
	return swept, nil
}

func (f *fakeWalletReader) ListRemovedEvents(context.Context) ([]wallet.RemovedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removed, nil
}

// fakeConfig is a scriptable ConfigSource.
type fakeConfig struct {
	mu       sync.Mutex
	snapshot remoteconfig.Snapshot
	stale    bool
	updates  *observatory.Observatory[remoteconfig.Snapshot]
}

func newFakeConfig() *fakeConfig {
	return &fakeConfig{
		snapshot: remoteconfig.Default(),
		updates:  observatory.New[remoteconfig.Snapshot](),
	}
}

func (f *fakeConfig) Snapshot() remoteconfig.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeConfig) IsAlmostOutOfDate() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stale
}

func (f *fakeConfig) Updates() *observatory.Observatory[remoteconfig.Snapshot] { return f.updates }

func (f *fakeConfig) push(snapshot remoteconfig.Snapshot) {
	f.mu.Lock()
	f.snapshot = snapshot
	f.mu.Unlock()
	f.updates.Notify(snapshot)
}

// fakeRefresher is a scriptable RefresherSource.
type fakeRefresher struct {
	mu        sync.Mutex
	state     strippen.State
	observers *observatory.Observatory[strippen.State]
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{observers: observatory.New[strippen.State]()}
}

func (f *fakeRefresher) State() strippen.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeRefresher) Observers() *observatory.Observatory[strippen.State] { return f.observers }

func (f *fakeRefresher) emit(state strippen.State) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
	f.observers.Notify(state)
}

type AggregatorSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	reader    *fakeWalletReader
	config    *fakeConfig
	refresher *fakeRefresher
	settings  usersettings.Store
}

func (s *AggregatorSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2023, 6, 15, 12, 0, 0, 0, time.UTC)
	s.reader = &fakeWalletReader{}
	s.config = newFakeConfig()
	s.refresher = newFakeRefresher()
	s.settings = usersettings.NewInMemoryStore()
}

func TestAggregatorSuite(t *testing.T) {
	suite.Run(t, new(AggregatorSuite))
}

func (s *AggregatorSuite) newAggregator() *Aggregator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAggregator(s.reader, s.config, s.refresher, s.settings, logger,
		WithClock(func() time.Time { return s.now }))
}

func (s *AggregatorSuite) liveCard() wallet.GreenCard {
	return wallet.GreenCard{
		ID:     "live",
		Region: greencard.RegionDomestic,
		Origins: []greencard.Origin{{
			Type:           greencard.OriginTypeVaccination,
			ValidFrom:      s.now.Add(-24 * time.Hour),
			ExpirationTime: s.now.Add(30 * 24 * time.Hour),
		}},
		Credentials: []wallet.Credential{{
			Data:           []byte("cred"),
			ValidFrom:      s.now.Add(-time.Hour),
			ExpirationTime: s.now.Add(24 * time.Hour),
		}},
	}
}

// TestReload verifies the state rebuild from the store.
func (s *AggregatorSuite) TestReload() {
	s.reader.cards = []wallet.GreenCard{s.liveCard()}
	s.reader.sweep = []wallet.RemovedGreenCard{{Region: greencard.RegionEuropeanUnion, OriginType: greencard.OriginTypeTest}}
	s.reader.removed = []wallet.RemovedEvent{
		{Type: greencard.OriginTypeVaccination, Reason: wallet.ReasonBlockedEvent, EventDate: s.now},
		{Type: greencard.OriginTypeTest, Reason: wallet.ReasonEventGroupExpired, EventDate: s.now},
	}
	agg := s.newAggregator()
	defer agg.Close()

	s.Require().NoError(agg.Reload(s.ctx))
	state := agg.State()

	s.Require().Len(state.QRCards, 1)
	s.True(state.QRCards[0].HasValidCredential)
	s.Equal([]ExpiredCard{{Region: greencard.RegionEuropeanUnion, OriginType: greencard.OriginTypeTest}}, state.ExpiredCards)
	s.Len(state.BlockedEventItems, 1, "only blocked-event removals surface as banner items")
	s.Equal(policy.Exclusive3G, state.ActiveDisclosurePolicyMode)
}

// TestEqualityShortCircuit verifies an unchanged state notifies no observers.
func (s *AggregatorSuite) TestEqualityShortCircuit() {
	s.reader.cards = []wallet.GreenCard{s.liveCard()}
	agg := s.newAggregator()
	defer agg.Close()

	var notifications int
	token := agg.Observers().Append(func(Snapshot) { notifications++ })
	defer agg.Observers().Remove(token)

	s.Require().NoError(agg.Reload(s.ctx))
	s.Equal(1, notifications)

	s.Require().NoError(agg.Reload(s.ctx))
	s.Equal(1, notifications, "an identical rebuild must not notify")

	agg.SetClockDeviation(true)
	s.Equal(2, notifications)
	agg.SetClockDeviation(true)
	s.Equal(2, notifications, "a no-op mutation must not notify")
}

// TestPolicyChangeTracking verifies mode changes raise the banner until
// dismissed.
func (s *AggregatorSuite) TestPolicyChangeTracking() {
	agg := s.newAggregator()
	defer agg.Close()
	s.Require().NoError(agg.Reload(s.ctx))
	s.False(agg.State().PolicyModeChanged)

	changed := remoteconfig.Default()
	changed.DisclosurePolicies = []string{"1G", "3G"}
	s.config.push(changed)

	state := agg.State()
	s.Equal(policy.Combined1GAnd3G, state.ActiveDisclosurePolicyMode)
	s.True(state.PolicyModeChanged)

	s.Require().NoError(agg.DismissPolicyChangeBanner(s.ctx))
	s.False(agg.State().PolicyModeChanged)

	s.Require().NoError(agg.Reload(s.ctx))
	s.False(agg.State().PolicyModeChanged, "dismissal must survive a reload")
}

// TestStrippenReactions verifies refresher transitions fold into the state.
func (s *AggregatorSuite) TestStrippenReactions() {
	agg := s.newAggregator()
	defer agg.Close()

	s.Run("passive error sets the banner message", func() {
		s.refresher.emit(strippen.State{
			Loading:              strippen.Failed,
			Expiry:               strippen.ExpiryState{Phase: strippen.Expired},
			ErrorOccurrenceCount: 1,
		})
		state := agg.State()
		s.Equal(strippen.Failed, state.Strippen.Loading)
		s.Equal(strippen.MessageTryAgain, state.ErrorForQRCardsMissingCredentials)
	})

	s.Run("completion clears the message and reloads", func() {
		s.reader.mu.Lock()
		s.reader.cards = []wallet.GreenCard{s.liveCard()}
		s.reader.mu.Unlock()

		s.refresher.emit(strippen.State{Loading: strippen.Completed})
		state := agg.State()
		s.Empty(state.ErrorForQRCardsMissingCredentials)
		s.Len(state.QRCards, 1, "completion must reload the wallet data")
	})

	s.Run("no-changes stays silent but clears the error", func() {
		s.refresher.emit(strippen.State{
			Loading: strippen.ServerResponseHasNoChanges,
			Expiry:  strippen.ExpiryState{Phase: strippen.Expired},
		})
		s.Empty(agg.State().ErrorForQRCardsMissingCredentials)
	})

	s.Run("message survives the next in-flight cycle", func() {
		s.refresher.emit(strippen.State{
			Loading:              strippen.Failed,
			Expiry:               strippen.ExpiryState{Phase: strippen.Expired},
			ErrorOccurrenceCount: 1,
		})
		s.refresher.emit(strippen.State{Loading: strippen.Loading})
		s.Equal(strippen.MessageTryAgain, agg.State().ErrorForQRCardsMissingCredentials,
			"the banner must not flicker while a retry is in flight")
	})

	s.Run("a silent resolution clears a previous cycle's message", func() {
		s.refresher.emit(strippen.State{
			Loading:              strippen.Failed,
			Expiry:               strippen.ExpiryState{Phase: strippen.Expiring, Date: s.now.Add(48 * time.Hour)},
			ErrorOccurrenceCount: 2,
		})
		state := agg.State()
		s.Equal(strippen.Failed, state.Strippen.Loading)
		s.Empty(state.ErrorForQRCardsMissingCredentials,
			"any resolved cycle without a passive error must drop the old banner")
	})
}

// TestExpiredCardDismissal verifies swept cards stay visible until dismissed.
func (s *AggregatorSuite) TestExpiredCardDismissal() {
	s.reader.sweep = []wallet.RemovedGreenCard{{Region: greencard.RegionDomestic, OriginType: greencard.OriginTypeRecovery}}
	agg := s.newAggregator()
	defer agg.Close()

	s.Require().NoError(agg.Reload(s.ctx))
	s.Len(agg.State().ExpiredCards, 1)

	s.Require().NoError(agg.Reload(s.ctx))
	s.Len(agg.State().ExpiredCards, 1, "a later sweep must not duplicate or drop the banner")

	agg.DismissExpiredCard(greencard.RegionDomestic, greencard.OriginTypeRecovery)
	s.Empty(agg.State().ExpiredCards)
}
