package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"greenwallet/internal/greencard"
)

// Reconciler applies server-pushed blob expiries against local state. A blob
// whose expiry lies in the future only tightens the matching group's expiry
// date; one already past turns the group into an auditable removal.
type Reconciler struct {
	store  Store
	clock  Clock
	logger *slog.Logger
}

func NewReconciler(store Store, logger *slog.Logger) (*Reconciler, error) {
	if store == nil {
		return nil, fmt.Errorf("wallet store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, clock: time.Now, logger: logger}, nil
}

// WithClock overrides the clock, for tests.
func (r *Reconciler) WithClock(clock Clock) *Reconciler {
	if clock != nil {
		r.clock = clock
	}
	return r
}

// Reconcile matches blob expiries against stored event groups. Returns the
// removed-event records created for groups that were blocked or expired.
func (r *Reconciler) Reconcile(ctx context.Context, blobs []greencard.BlobExpiry) ([]RemovedEvent, error) {
	if len(blobs) == 0 {
		return nil, nil
	}
	groups, err := r.store.ListEventGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list event groups: %w", err)
	}
	byIdentifier := make(map[string]EventGroup, len(groups))
	for _, group := range groups {
		byIdentifier[group.UniqueIdentifier] = group
	}

	now := r.clock()
	var created []RemovedEvent
	for _, blob := range blobs {
		group, ok := byIdentifier[blob.Identifier]
		if !ok {
			continue
		}
		if blob.ExpirationDate.After(now) {
			if err := r.store.UpdateEventGroupExpiry(ctx, group.ID, blob.ExpirationDate); err != nil {
				return created, fmt.Errorf("update event group expiry: %w", err)
			}
			continue
		}
		removed, err := r.store.StoreRemovedEvent(ctx, RemovedEventFromBlobExpiry(blob, group, now))
		if err != nil {
			return created, fmt.Errorf("persist removed event: %w", err)
		}
		if err := r.store.RemoveEventGroup(ctx, group.ID); err != nil {
			return created, fmt.Errorf("remove blocked event group: %w", err)
		}
		r.logger.Info("event group invalidated by issuer",
			"identifier", blob.Identifier, "reason", string(removed.Reason))
		created = append(created, *removed)
	}
	return created, nil
}
