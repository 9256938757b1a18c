package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"greenwallet/internal/event"
	"greenwallet/internal/greencard"
)

// ErrIdentityMismatch signals that incoming events belong to a different
// person than the data already in the wallet. The caller decides whether to
// block the merge; ingestion never stores mismatched data on its own.
var ErrIdentityMismatch = errors.New("identity mismatch")

// ErrPendingWrapper signals a wrapper whose provider has not finished
// processing; pending results must never be persisted as authoritative data.
var ErrPendingWrapper = errors.New("wrapper status does not allow storage")

// IdentityComparer decides whether newly fetched events belong to the same
// person as the payloads already stored.
type IdentityComparer interface {
	Compare(existingPayloads [][]byte, remote []event.RemoteEvent) bool
}

// Ingester runs the storage pipeline for freshly fetched remote events:
// status gate, identity reconciliation, duplicate-group replacement, then a
// fail-fast batch store.
type Ingester struct {
	store   Store
	checker IdentityComparer
	clock   Clock
	logger  *slog.Logger
}

func NewIngester(store Store, checker IdentityComparer, logger *slog.Logger) (*Ingester, error) {
	if store == nil {
		return nil, fmt.Errorf("wallet store is required")
	}
	if checker == nil {
		return nil, fmt.Errorf("identity comparer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{store: store, checker: checker, clock: time.Now, logger: logger}, nil
}

// WithClock overrides the clock, for tests.
func (i *Ingester) WithClock(clock Clock) *Ingester {
	if clock != nil {
		i.clock = clock
	}
	return i
}

// Store persists a batch of remote events of one mode. A single failed store
// aborts the whole batch; no partial commit survives except groups stored
// before the failing one, mirroring the fail-fast success flag semantics.
func (i *Ingester) Store(ctx context.Context, remotes []event.RemoteEvent, eventType greencard.OriginType, expiryDate *time.Time, asDraft bool) ([]EventGroup, error) {
	for _, remote := range remotes {
		if !remote.Wrapper.Status.Storable() {
			return nil, fmt.Errorf("provider %s status %q: %w", remote.Wrapper.ProviderIdentifier, remote.Wrapper.Status, ErrPendingWrapper)
		}
	}

	existing, err := i.store.ListEventGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list event groups: %w", err)
	}
	payloads := make([][]byte, 0, len(existing))
	for _, group := range existing {
		payloads = append(payloads, group.JSONData)
	}
	if !i.checker.Compare(payloads, remotes) {
		return nil, ErrIdentityMismatch
	}

	stored := make([]EventGroup, 0, len(remotes))
	for _, remote := range remotes {
		provider := remote.Wrapper.ProviderIdentifier
		if _, err := i.store.RemoveExistingEventGroups(ctx, eventType, provider); err != nil {
			return nil, fmt.Errorf("remove existing event groups for %s: %w", provider, err)
		}
		payload := remote.SignedResponse
		if len(payload) == 0 {
			payload, err = json.Marshal(remote.Wrapper)
			if err != nil {
				return nil, fmt.Errorf("marshal wrapper for %s: %w", provider, err)
			}
		}
		group, err := i.store.StoreEventGroup(ctx, eventType, provider, payload, expiryDate, asDraft)
		if err != nil {
			i.logger.Error("event group store failed, aborting batch",
				"provider", provider, "type", string(eventType), "error", err)
			return nil, fmt.Errorf("store event group for %s: %w", provider, err)
		}
		stored = append(stored, *group)
	}
	return stored, nil
}
