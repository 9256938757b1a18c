package strippen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"greenwallet/internal/greencard"
	"greenwallet/internal/observatory"
	"greenwallet/internal/usersettings"
	"greenwallet/internal/wallet"
)

// WalletAccess is the slice of the wallet store the refresher needs.
type WalletAccess interface {
	ListEventGroups(ctx context.Context) ([]wallet.EventGroup, error)
	GreenCardsWithUnexpiredOrigins(ctx context.Context, now time.Time, ofType *greencard.OriginType) ([]wallet.GreenCard, error)
	StoreGreenCards(ctx context.Context, response greencard.Response, converter wallet.CredentialConverter) error
	FinalizeDraftEventGroups(ctx context.Context) error
}

// RenewalWindowFunc supplies the current renewal window; read on every cycle
// because remote config pushes can change it.
type RenewalWindowFunc func() time.Duration

// Refresher drives credential refresh cycles. A newer Load supersedes an
// in-flight one: the older cycle is cancelled and its outcome discarded.
type Refresher struct {
	mu         sync.Mutex
	state      State
	generation uint64
	cancelPrev context.CancelFunc

	store         WalletAccess
	loader        Loader
	converter     wallet.CredentialConverter
	settings      usersettings.Store
	renewalWindow RenewalWindowFunc
	observers     *observatory.Observatory[State]
	clock         func() time.Time
	// timeout bounds one exchange cycle end to end.
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithRefresherClock sets the clock function for testability.
func WithRefresherClock(clock func() time.Time) Option {
	return func(r *Refresher) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithExchangeTimeout bounds one refresh cycle.
func WithExchangeTimeout(d time.Duration) Option {
	return func(r *Refresher) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewRefresher(
	store WalletAccess,
	loader Loader,
	converter wallet.CredentialConverter,
	settings usersettings.Store,
	renewalWindow RenewalWindowFunc,
	logger *slog.Logger,
	opts ...Option,
) (*Refresher, error) {
	if store == nil {
		return nil, fmt.Errorf("wallet access is required")
	}
	if loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if converter == nil {
		return nil, fmt.Errorf("credential converter is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	if renewalWindow == nil {
		return nil, fmt.Errorf("renewal window source is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Refresher{
		store:         store,
		loader:        loader,
		converter:     converter,
		settings:      settings,
		renewalWindow: renewalWindow,
		observers:     observatory.New[State](),
		clock:         time.Now,
		timeout:       30 * time.Second,
		logger:        logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// State returns the current snapshot.
func (r *Refresher) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Observers fires on every state change.
func (r *Refresher) Observers() *observatory.Observatory[State] { return r.observers }

// Load runs one refresh cycle. When the credential supply needs no action the
// cycle ends immediately. A Load issued while another is in flight cancels
// the older one; the superseded cycle leaves no trace in the state.
func (r *Refresher) Load(ctx context.Context) error {
	now := r.clock()
	expiry, err := r.computeExpiry(ctx, now)
	if err != nil {
		return fmt.Errorf("compute credential expiry: %w", err)
	}
	if expiry.Phase == NoActionNeeded {
		r.transition(func(s *State) {
			s.Loading = Idle
			s.Expiry = expiry
			s.FailedError = ""
		})
		return nil
	}

	groups, err := r.store.ListEventGroups(ctx)
	if err != nil {
		return fmt.Errorf("list event groups: %w", err)
	}

	r.mu.Lock()
	if r.cancelPrev != nil {
		r.cancelPrev()
	}
	loadCtx, cancel := context.WithTimeout(ctx, r.timeout)
	r.cancelPrev = cancel
	r.generation++
	generation := r.generation
	r.mu.Unlock()
	defer cancel()

	// The prior error message stays visible while the new cycle is loading;
	// it clears only when the cycle resolves.
	r.transition(func(s *State) {
		s.Loading = Loading
		s.Expiry = expiry
	})

	response, loadErr := r.loader.SignEventsIntoGreenCardsAndCredentials(loadCtx, groups)

	r.mu.Lock()
	superseded := generation != r.generation
	r.mu.Unlock()
	if superseded {
		return nil
	}

	if loadErr != nil {
		return r.completeWithError(ctx, loadErr)
	}
	if len(response.Origins()) == 0 {
		return r.completeWithError(ctx, ErrDidNotEvaluate)
	}

	if err := r.store.StoreGreenCards(ctx, *response, r.converter); err != nil {
		return r.completeWithError(ctx, fmt.Errorf("store green cards: %w", err))
	}
	if err := r.store.FinalizeDraftEventGroups(ctx); err != nil {
		return r.completeWithError(ctx, fmt.Errorf("finalize drafts: %w", err))
	}

	finalExpiry, err := r.computeExpiry(ctx, r.clock())
	if err != nil {
		r.logger.Warn("expiry recompute after refresh failed", "error", err)
		finalExpiry = ExpiryState{Phase: NoActionNeeded}
	}

	// When the freshly signed supply is still expired the issuer's clock
	// disagrees with ours; stop silently instead of looping on refresh.
	if expiry.Phase == Expired && finalExpiry.Phase == Expired {
		r.transition(func(s *State) {
			s.Loading = ServerResponseHasNoChanges
			s.Expiry = finalExpiry
			s.FailedError = ""
		})
		return nil
	}

	if err := r.settings.ResetStrippenErrorCount(ctx); err != nil {
		r.logger.Warn("reset error count failed", "error", err)
	}
	r.transition(func(s *State) {
		s.Loading = Completed
		s.Expiry = finalExpiry
		s.ErrorOccurrenceCount = 0
		s.FailedError = ""
	})
	return nil
}

func (r *Refresher) completeWithError(ctx context.Context, loadErr error) error {
	count, err := r.settings.IncrementStrippenErrorCount(ctx)
	if err != nil {
		r.logger.Warn("increment error count failed", "error", err)
	}
	settings, err := r.settings.Get(ctx)
	if err != nil {
		r.logger.Warn("read settings failed", "error", err)
	}

	loading := Failed
	if errors.Is(loadErr, ErrNoInternet) {
		loading = NoInternet
	}
	r.logger.Warn("credential refresh failed",
		"state", loading.String(), "occurrences", count, "error", loadErr)
	r.transition(func(s *State) {
		s.Loading = loading
		s.ErrorOccurrenceCount = count
		s.UserHasPreviouslyDismissedAnError = settings.HasDismissedStrippenError
		s.FailedError = loadErr.Error()
	})
	return loadErr
}

// transition applies a mutation atomically and notifies observers when the
// state actually changed.
func (r *Refresher) transition(mutate func(*State)) {
	r.mu.Lock()
	next := r.state
	mutate(&next)
	changed := !next.Equal(r.state)
	r.state = next
	r.mu.Unlock()
	if changed {
		r.observers.Notify(next)
	}
}

func (r *Refresher) computeExpiry(ctx context.Context, now time.Time) (ExpiryState, error) {
	cards, err := r.store.GreenCardsWithUnexpiredOrigins(ctx, now, nil)
	if err != nil {
		return ExpiryState{}, err
	}
	return ComputeExpiryState(cards, now, r.renewalWindow()), nil
}

