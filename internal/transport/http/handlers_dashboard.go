package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleDashboard returns the current dashboard snapshot with both derived
// panes.
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.aggregator.Reload(ctx); err != nil {
		writeError(w, err)
		return
	}
	state := h.aggregator.State()

	writeJSON(w, http.StatusOK, map[string]any{
		"qrCards":                     state.QRCards,
		"expiredCards":                state.ExpiredCards,
		"blockedEvents":               state.BlockedEventItems,
		"strippenState":               state.Strippen.Loading.String(),
		"strippenExpiryPhase":         state.Strippen.Expiry.Phase.String(),
		"errorForMissingCredentials":  state.ErrorForQRCardsMissingCredentials,
		"activeDisclosurePolicyMode":  state.ActiveDisclosurePolicyMode,
		"shouldShowTabBar":            state.ShouldShowTabBar(),
		"shouldShowOnlyInternational": state.ShouldShowOnlyInternationalPane(),
		"shouldShowAddCertificate":    state.ShouldShowAddCertificateFooter(),
	})
}

// handleDismissBanner records a banner dismissal. The banner name is part of
// the path.
func (h *Handler) handleDismissBanner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch chi.URLParam(r, "banner") {
	case "blockedEvents":
		if err := h.aggregator.DismissBlockedEventsBanner(ctx); err != nil {
			writeError(w, err)
			return
		}
	case "policyChange":
		if err := h.aggregator.DismissPolicyChangeBanner(ctx); err != nil {
			writeError(w, err)
			return
		}
	case "strippenError":
		if err := h.settings.SetDismissedStrippenError(ctx, true); err != nil {
			writeError(w, err)
			return
		}
	default:
		writeBadRequest(w, "unknown banner")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
