package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"greenwallet/internal/policy"
)

const qrImageSize = 512

func (h *Handler) handleListGreenCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.store.ListGreenCards(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"greenCards": cards})
}

// handleQR renders the QR for a green card's current credential as PNG. The
// optional policy query selects the disclosure policy; it defaults to the
// active mode.
func (h *Handler) handleQR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cardID := chi.URLParam(r, "greenCardID")
	now := h.clock()

	mode := h.aggregator.State().ActiveDisclosurePolicyMode
	switch r.URL.Query().Get("policy") {
	case "":
	case "1G":
		mode = policy.Exclusive1G
	case "3G":
		mode = policy.Exclusive3G
	default:
		writeBadRequest(w, "unknown policy")
		return
	}

	cards, err := h.store.ListGreenCards(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, card := range cards {
		if card.ID != cardID {
			continue
		}
		credential := card.CurrentCredential(now)
		if credential == nil {
			writeJSON(w, http.StatusGone, map[string]string{
				"error":             "expired",
				"error_description": "no currently valid credential for this green card",
			})
			return
		}
		payload, err := h.crypto.DiscloseCredential(credential.Data, mode)
		if err != nil {
			h.logger.ErrorContext(ctx, "credential disclosure failed",
				"greenCard", cardID,
				"error", err,
			)
			writeError(w, err)
			return
		}
		png, err := qrcode.Encode(string(payload), qrcode.Medium, qrImageSize)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
		return
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error":             "not_found",
		"error_description": "unknown green card",
	})
}
