package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"greenwallet/internal/event"
	"greenwallet/internal/greencard"
	"greenwallet/internal/observatory"
	"greenwallet/internal/policy"
	"greenwallet/internal/remoteconfig"
	"greenwallet/internal/strippen"
	"greenwallet/internal/usersettings"
	"greenwallet/internal/wallet"
)

// WalletReader is the slice of the wallet store the aggregator reads.
type WalletReader interface {
	ListEventGroups(ctx context.Context) ([]wallet.EventGroup, error)
	ListGreenCards(ctx context.Context) ([]wallet.GreenCard, error)
	RemoveExpiredGreenCards(ctx context.Context, now time.Time) ([]wallet.RemovedGreenCard, error)
	ListRemovedEvents(ctx context.Context) ([]wallet.RemovedEvent, error)
}

// ConfigSource exposes the remote configuration the dashboard reacts to.
type ConfigSource interface {
	Snapshot() remoteconfig.Snapshot
	IsAlmostOutOfDate() bool
	Updates() *observatory.Observatory[remoteconfig.Snapshot]
}

// RefresherSource exposes the credential refresher the aggregator observes.
type RefresherSource interface {
	State() strippen.State
	Observers() *observatory.Observatory[strippen.State]
}

// Snapshot is what observers receive: the state plus both derived panes.
type Snapshot struct {
	State              State
	DomesticCards      []Card
	InternationalCards []Card
}

// Clock abstracts time for tests.
type Clock func() time.Time

// Aggregator owns the dashboard state. All mutations funnel through mutate,
// which serializes them, short-circuits on structural equality, and only
// then re-derives the panes and notifies observers.
type Aggregator struct {
	store     WalletReader
	config    ConfigSource
	refresher RefresherSource
	settings  usersettings.Store
	clock     Clock
	logger    *slog.Logger

	mu        sync.Mutex
	state     State
	appVer    string
	observers *observatory.Observatory[Snapshot]

	refresherToken observatory.Token
	configToken    observatory.Token
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(a *Aggregator) { a.clock = clock }
}

// WithAppVersion sets the running app version used for the recommended
// update banner. Empty disables the banner.
func WithAppVersion(version string) Option {
	return func(a *Aggregator) { a.appVer = version }
}

// NewAggregator wires the aggregator to its sources and subscribes to the
// refresher and configuration streams. Call Close to unsubscribe.
func NewAggregator(
	store WalletReader,
	config ConfigSource,
	refresher RefresherSource,
	settings usersettings.Store,
	logger *slog.Logger,
	opts ...Option,
) *Aggregator {
	a := &Aggregator{
		store:     store,
		config:    config,
		refresher: refresher,
		settings:  settings,
		clock:     time.Now,
		logger:    logger,
		observers: observatory.New[Snapshot](),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.state.ActiveDisclosurePolicyMode = policy.Resolve(config.Snapshot().DisclosurePolicies)
	a.refresherToken = refresher.Observers().Append(a.handleStrippenState)
	a.configToken = config.Updates().Append(func(remoteconfig.Snapshot) {
		if err := a.Reload(context.Background()); err != nil {
			a.logger.Error("dashboard reload after config update failed", "error", err)
		}
	})
	return a
}

// Close detaches the aggregator from its sources.
func (a *Aggregator) Close() {
	a.refresher.Observers().Remove(a.refresherToken)
	a.config.Updates().Remove(a.configToken)
}

// State returns the current dashboard state.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Observers fires with a fresh Snapshot on every effective state change.
func (a *Aggregator) Observers() *observatory.Observatory[Snapshot] { return a.observers }

// Reload rebuilds the state from the wallet store, settings, and remote
// configuration. It first runs the expiry sweep so the wallet never shows a
// card whose origins have all lapsed.
func (a *Aggregator) Reload(ctx context.Context) error {
	now := a.clock()

	swept, err := a.store.RemoveExpiredGreenCards(ctx, now)
	if err != nil {
		return err
	}
	cards, err := a.store.ListGreenCards(ctx)
	if err != nil {
		return err
	}
	removed, err := a.store.ListRemovedEvents(ctx)
	if err != nil {
		return err
	}
	groups, err := a.store.ListEventGroups(ctx)
	if err != nil {
		return err
	}
	settings, err := a.settings.Get(ctx)
	if err != nil {
		return err
	}
	snapshot := a.config.Snapshot()
	mode := policy.Resolve(snapshot.DisclosurePolicies)

	a.mutate(func(s *State) {
		for _, r := range swept {
			s.ExpiredCards = append(s.ExpiredCards, ExpiredCard{Region: r.Region, OriginType: r.OriginType})
		}
		s.QRCards = qrCardsFromWallet(cards, now)
		s.BlockedEventItems = blockedItems(removed)
		s.IsAwaitingVaccinationAssessment = awaitingAssessment(groups, cards, now, a.logger)
		s.ConfigIsAlmostOutOfDate = a.config.IsAlmostOutOfDate()
		s.RecommendedUpdateAvailable = snapshot.RecommendedVersion != "" &&
			a.appVer != "" && snapshot.RecommendedVersion != a.appVer
		s.HasDismissedBlockedEventsBanner = settings.HasDismissedBlockedEventsBanner
		s.HasDismissedPolicyChangeBanner = settings.HasDismissedPolicyChangeBanner
		s.Strippen = a.refresher.State()
		if mode != s.ActiveDisclosurePolicyMode {
			s.ActiveDisclosurePolicyMode = mode
			s.PolicyModeChanged = true
		}
		if s.PolicyModeChanged && settings.HasDismissedPolicyChangeBanner {
			s.PolicyModeChanged = false
		}
	})
	return nil
}

// SetClockDeviation records whether the device clock disagrees with the
// server clock.
func (a *Aggregator) SetClockDeviation(deviates bool) {
	a.mutate(func(s *State) { s.DeviceHasClockDeviation = deviates })
}

// DismissExpiredCard drops one expired-card banner.
func (a *Aggregator) DismissExpiredCard(region greencard.Region, originType greencard.OriginType) {
	a.mutate(func(s *State) {
		for i, expired := range s.ExpiredCards {
			if expired.Region == region && expired.OriginType == originType {
				s.ExpiredCards = append(s.ExpiredCards[:i:i], s.ExpiredCards[i+1:]...)
				return
			}
		}
	})
}

// DismissBlockedEventsBanner persists the dismissal and hides the banner.
func (a *Aggregator) DismissBlockedEventsBanner(ctx context.Context) error {
	if err := a.settings.SetDismissedBlockedEventsBanner(ctx, true); err != nil {
		return err
	}
	a.mutate(func(s *State) { s.HasDismissedBlockedEventsBanner = true })
	return nil
}

// DismissPolicyChangeBanner persists the dismissal and hides the banner.
func (a *Aggregator) DismissPolicyChangeBanner(ctx context.Context) error {
	if err := a.settings.SetDismissedPolicyChangeBanner(ctx, true); err != nil {
		return err
	}
	a.mutate(func(s *State) {
		s.HasDismissedPolicyChangeBanner = true
		s.PolicyModeChanged = false
	})
	return nil
}

// handleStrippenState folds a refresher transition into the dashboard and
// applies its reaction. Reloading the datasource happens after the state is
// applied, so observers see the completed cycle before the new wallet read.
func (a *Aggregator) handleStrippenState(st strippen.State) {
	reaction := strippen.React(st)

	a.mutate(func(s *State) {
		s.Strippen = st
		// Every resolved cycle clears the previous passive error; only the
		// current reaction may set a fresh one.
		if st.Loading != strippen.Loading {
			s.ErrorForQRCardsMissingCredentials = ""
		}
		if reaction.Kind == strippen.ActionPassiveError {
			s.ErrorForQRCardsMissingCredentials = reaction.Message
		}
	})

	if reaction.Kind == strippen.ActionReloadDatasource {
		if err := a.Reload(context.Background()); err != nil {
			a.logger.Error("dashboard reload after refresh failed", "error", err)
		}
	}
}

// mutate applies fn under the lock, then notifies observers only when the
// state actually changed.
func (a *Aggregator) mutate(fn func(*State)) {
	a.mu.Lock()
	next := a.state
	next.QRCards = append([]QRCard(nil), a.state.QRCards...)
	next.ExpiredCards = append([]ExpiredCard(nil), a.state.ExpiredCards...)
	next.BlockedEventItems = append([]BlockedEventItem(nil), a.state.BlockedEventItems...)
	fn(&next)
	if next.Equal(a.state) {
		a.mu.Unlock()
		return
	}
	a.state = next
	snapshot := Snapshot{
		State:              next,
		DomesticCards:      DeriveDomesticCards(next),
		InternationalCards: DeriveInternationalCards(next),
	}
	a.mu.Unlock()

	a.observers.Notify(snapshot)
}

func qrCardsFromWallet(cards []wallet.GreenCard, now time.Time) []QRCard {
	var out []QRCard
	for _, card := range cards {
		origins := card.UnexpiredOrigins(now, nil)
		if len(origins) == 0 {
			continue
		}
		out = append(out, QRCard{
			GreenCardID:        card.ID,
			Region:             card.Region,
			Origins:            origins,
			HasValidCredential: card.CurrentCredential(now) != nil,
		})
	}
	return out
}

func blockedItems(removed []wallet.RemovedEvent) []BlockedEventItem {
	var out []BlockedEventItem
	for _, r := range removed {
		if r.Reason != wallet.ReasonBlockedEvent {
			continue
		}
		out = append(out, BlockedEventItem{
			Type:      r.Type,
			EventDate: r.EventDate,
			Reason:    string(r.Reason),
		})
	}
	return out
}

// awaitingAssessment reports whether the holder has a vaccination from
// outside the Netherlands that still lacks a completed assessment origin.
func awaitingAssessment(groups []wallet.EventGroup, cards []wallet.GreenCard, now time.Time, logger *slog.Logger) bool {
	assessment := greencard.OriginTypeVaccinationAssessment
	for _, card := range cards {
		if card.HasUnexpiredOrigins(now, &assessment) {
			return false
		}
	}
	for _, group := range groups {
		var wrapper event.ResultWrapper
		if err := json.Unmarshal(group.JSONData, &wrapper); err != nil {
			logger.Warn("skipping undecodable event group", "eventGroup", group.ID, "error", err)
			continue
		}
		for _, ev := range wrapper.Events {
			if ev.HasVaccinationOutsideNL() {
				return true
			}
		}
	}
	return false
}
