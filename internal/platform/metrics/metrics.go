package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	EventGroupsStored   prometheus.Counter
	GreenCardsStored    prometheus.Counter
	GreenCardsExpired   prometheus.Counter
	EventGroupsExpired  prometheus.Counter
	RemovedEventsStored *prometheus.CounterVec
	CredentialRefreshes *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		EventGroupsStored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "greenwallet_event_groups_stored_total",
			Help: "Total number of event groups accepted into the wallet",
		}),
		GreenCardsStored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "greenwallet_green_cards_stored_total",
			Help: "Total number of green cards stored from signer responses",
		}),
		GreenCardsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "greenwallet_green_cards_expired_total",
			Help: "Total number of green cards removed by the expiry sweep",
		}),
		EventGroupsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "greenwallet_event_groups_expired_total",
			Help: "Total number of event groups removed past their expiry date",
		}),
		RemovedEventsStored: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "greenwallet_removed_events_total",
			Help: "Total number of removal audit records, by reason",
		}, []string{"reason"}),
		CredentialRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "greenwallet_credential_refreshes_total",
			Help: "Total number of credential refresh cycles, by result",
		}, []string{"result"}),
	}
}
