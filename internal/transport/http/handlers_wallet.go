package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"greenwallet/internal/event"
	"greenwallet/internal/greencard"
	"greenwallet/internal/strippen"
)

type remoteEventRequest struct {
	Wrapper        event.ResultWrapper `json:"wrapper"`
	SignedResponse []byte              `json:"signedResponse,omitempty"`
}

type storeEventsRequest struct {
	EventType  greencard.OriginType `json:"eventType"`
	AsDraft    bool                 `json:"asDraft"`
	ExpiryDate *time.Time           `json:"expiryDate,omitempty"`
	Events     []remoteEventRequest `json:"events"`
}

// handleStoreEvents ingests provider events into the wallet. Pending
// wrappers and identity mismatches are rejected, never partially stored.
func (h *Handler) handleStoreEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req storeEventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if len(req.Events) == 0 {
		writeBadRequest(w, "events must not be empty")
		return
	}

	remotes := make([]event.RemoteEvent, 0, len(req.Events))
	for _, e := range req.Events {
		remotes = append(remotes, event.RemoteEvent{
			Wrapper:        e.Wrapper,
			SignedResponse: e.SignedResponse,
		})
	}

	groups, err := h.ingester.Store(ctx, remotes, req.EventType, req.ExpiryDate, req.AsDraft)
	if err != nil {
		h.logger.WarnContext(ctx, "event ingest rejected", "error", err)
		writeError(w, err)
		return
	}
	h.metrics.EventGroupsStored.Add(float64(len(groups)))

	writeJSON(w, http.StatusCreated, map[string]any{"eventGroups": groups})
}

func (h *Handler) handleListEventGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.store.ListEventGroups(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"eventGroups": groups})
}

type reconcileRequest struct {
	BlobExpireDates []greencard.BlobExpiry `json:"blobExpireDates"`
}

// handleReconcile applies server-declared blob expiries against the stored
// event groups, producing audit records for anything blocked or lapsed.
func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	removed, err := h.reconciler.Reconcile(ctx, req.BlobExpireDates)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, re := range removed {
		h.metrics.RemovedEventsStored.WithLabelValues(string(re.Reason)).Inc()
	}

	writeJSON(w, http.StatusOK, map[string]any{"removedEvents": removed})
}

// handleRefresh runs one credential refresh cycle and reports the resulting
// state. Refresh errors surface through the state machine, not as transport
// failures.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.refresher.Load(ctx); err != nil {
		h.logger.ErrorContext(ctx, "credential refresh errored", "error", err)
	}

	state := h.refresher.State()
	h.metrics.CredentialRefreshes.WithLabelValues(state.Loading.String()).Inc()
	if state.Loading == strippen.Completed {
		h.metrics.GreenCardsStored.Inc()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"loading":              state.Loading.String(),
		"expiryPhase":          state.Expiry.Phase.String(),
		"expiryDate":           state.Expiry.Date,
		"errorOccurrenceCount": state.ErrorOccurrenceCount,
		"failedError":          state.FailedError,
	})
}

// handleWipeWallet removes every event group, green card, and removal record,
// and resets the dismissal memory.
func (h *Handler) handleWipeWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.store.RemoveWallet(ctx); err != nil {
		writeError(w, err)
		return
	}
	if err := h.settings.Reset(ctx); err != nil {
		writeError(w, err)
		return
	}
	if err := h.aggregator.Reload(ctx); err != nil {
		h.logger.ErrorContext(ctx, "dashboard reload after wipe failed", "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}
