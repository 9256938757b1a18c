// Package httptransport is the thin HTTP layer over the wallet. Handlers
// delegate to the domain services and keep transport concerns isolated.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"greenwallet/internal/crypto"
	"greenwallet/internal/dashboard"
	"greenwallet/internal/platform/metrics"
	"greenwallet/internal/strippen"
	"greenwallet/internal/usersettings"
	"greenwallet/internal/wallet"
)

// Refresher is the slice of the credential refresher the transport needs.
type Refresher interface {
	Load(ctx context.Context) error
	State() strippen.State
}

// Handler carries the wired services behind the routes.
type Handler struct {
	logger     *slog.Logger
	store      wallet.Store
	ingester   *wallet.Ingester
	reconciler *wallet.Reconciler
	refresher  Refresher
	aggregator *dashboard.Aggregator
	settings   usersettings.Store
	crypto     crypto.Manager
	metrics    *metrics.Metrics
	clock      crypto.Clock
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock overrides the time source.
func WithClock(clock crypto.Clock) Option {
	return func(h *Handler) { h.clock = clock }
}

// NewHandler wires the HTTP layer.
func NewHandler(
	store wallet.Store,
	ingester *wallet.Ingester,
	reconciler *wallet.Reconciler,
	refresher Refresher,
	aggregator *dashboard.Aggregator,
	settings usersettings.Store,
	cryptoManager crypto.Manager,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts ...Option,
) *Handler {
	h := &Handler{
		logger:     logger,
		store:      store,
		ingester:   ingester,
		reconciler: reconciler,
		refresher:  refresher,
		aggregator: aggregator,
		settings:   settings,
		crypto:     cryptoManager,
		metrics:    m,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter wires all public endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/wallet", func(r chi.Router) {
		r.Post("/events", h.handleStoreEvents)
		r.Get("/events", h.handleListEventGroups)
		r.Post("/reconcile", h.handleReconcile)
		r.Post("/refresh", h.handleRefresh)
		r.Delete("/", h.handleWipeWallet)
	})

	r.Route("/greencards", func(r chi.Router) {
		r.Get("/", h.handleListGreenCards)
		r.Get("/{greenCardID}/qr", h.handleQR)
	})

	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/", h.handleDashboard)
		r.Post("/dismiss/{banner}", h.handleDismissBanner)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
