// Package remoteconfig guards a push/pull remote configuration snapshot
// behind a TTL so the wallet never hammers the config endpoint yet always
// refreshes once per launch.
package remoteconfig

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"greenwallet/internal/observatory"
	"greenwallet/internal/validity"
)

// Snapshot is one read-only view of the remote configuration.
type Snapshot struct {
	ConfigTTLSeconds                    int      `json:"configTTL"`
	ConfigMinimumIntervalSeconds        *int     `json:"configMinimumIntervalSeconds,omitempty"`
	ConfigAlmostOutOfDateWarningSeconds int      `json:"configAlmostOutOfDateWarningSeconds"`
	RecommendedVersion                  string   `json:"recommendedVersion"`
	CredentialRenewalDays               int      `json:"credentialRenewalDays"`
	DisclosurePolicies                  []string `json:"disclosurePolicies"`
}

// Default returns the built-in fallback used before the first fetch succeeds.
func Default() Snapshot {
	return Snapshot{
		ConfigTTLSeconds:                    3600,
		ConfigAlmostOutOfDateWarningSeconds: 300,
		CredentialRenewalDays:               5,
		DisclosurePolicies:                  []string{"3G"},
	}
}

// RenewalWindow is the period before credential-supply exhaustion in which a
// refresh should be attempted.
func (s Snapshot) RenewalWindow() time.Duration {
	days := s.CredentialRenewalDays
	if days <= 0 {
		days = Default().CredentialRenewalDays
	}
	return time.Duration(days) * 24 * time.Hour
}

func (s Snapshot) equal(other Snapshot) bool {
	return s.ConfigTTLSeconds == other.ConfigTTLSeconds &&
		equalIntPtr(s.ConfigMinimumIntervalSeconds, other.ConfigMinimumIntervalSeconds) &&
		s.ConfigAlmostOutOfDateWarningSeconds == other.ConfigAlmostOutOfDateWarningSeconds &&
		s.RecommendedVersion == other.RecommendedVersion &&
		s.CredentialRenewalDays == other.CredentialRenewalDays &&
		slices.Equal(s.DisclosurePolicies, other.DisclosurePolicies)
}

func equalIntPtr(a, b *int) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

// Fetcher retrieves a fresh snapshot from the config endpoint.
type Fetcher interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

// Manager owns the cached snapshot and its freshness bookkeeping. Observers
// on Updates fire when the snapshot content changed; observers on Reloads
// fire on every completed refresh cycle, changed or not.
type Manager struct {
	mu             sync.RWMutex
	snapshot       Snapshot
	lastFetched    *time.Time
	isAppLaunching bool

	fetcher Fetcher
	clock   func() time.Time
	logger  *slog.Logger

	updates *observatory.Observatory[Snapshot]
	reloads *observatory.Observatory[Snapshot]
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerClock sets the clock function for testability.
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

func NewManager(fetcher Fetcher, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("config fetcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		snapshot:       Default(),
		isAppLaunching: true,
		fetcher:        fetcher,
		clock:          time.Now,
		logger:         logger,
		updates:        observatory.New[Snapshot](),
		reloads:        observatory.New[Snapshot](),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Snapshot returns the current cached snapshot.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Updates fires when a refresh produced a changed snapshot.
func (m *Manager) Updates() *observatory.Observatory[Snapshot] { return m.updates }

// Reloads fires on every completed refresh cycle.
func (m *Manager) Reloads() *observatory.Observatory[Snapshot] { return m.reloads }

// Update refreshes the snapshot when the TTL calls for it. The first call
// after construction counts as launching, so it always attempts one fetch.
func (m *Manager) Update(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	verdict := validity.Evaluate(m.lastFetched, m.snapshot.ConfigTTLSeconds,
		m.snapshot.ConfigMinimumIntervalSeconds, m.isAppLaunching, m.clock())
	if verdict == validity.WithinTTL || verdict == validity.WithinMinimalInterval {
		snapshot := m.snapshot
		m.mu.Unlock()
		m.reloads.Notify(snapshot)
		return snapshot, nil
	}
	m.mu.Unlock()

	fetched, err := m.fetcher.Fetch(ctx)
	if err != nil {
		m.logger.Warn("remote config fetch failed, keeping cached snapshot", "error", err)
		return m.Snapshot(), fmt.Errorf("fetch remote config: %w", err)
	}

	m.mu.Lock()
	changed := !m.snapshot.equal(fetched)
	m.snapshot = fetched
	now := m.clock()
	m.lastFetched = &now
	m.isAppLaunching = false
	m.mu.Unlock()

	if changed {
		m.updates.Notify(fetched)
	}
	m.reloads.Notify(fetched)
	return fetched, nil
}

// IsAlmostOutOfDate reports whether the cached snapshot is nearing the end of
// its TTL, which the dashboard surfaces as a staleness warning.
func (m *Manager) IsAlmostOutOfDate() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastFetched == nil {
		return false
	}
	warnAt := m.lastFetched.Add(time.Duration(m.snapshot.ConfigTTLSeconds-m.snapshot.ConfigAlmostOutOfDateWarningSeconds) * time.Second)
	return !m.clock().Before(warnAt)
}
