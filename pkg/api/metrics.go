package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts the contract-surface activity the operators watch: how
// many orders land, how many matches settle, and which failure kinds the
// matcher is tripping over.
type Metrics struct {
	OrdersSubmitted prometheus.Counter
	OrdersCancelled prometheus.Counter
	MatchesExecuted prometheus.Counter
	MatchFailures   *prometheus.CounterVec
}

// NewMetrics registers the settlement metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OrdersSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "darkpool_orders_submitted_total",
			Help: "Orders appended to the ledger.",
		}),
		OrdersCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "darkpool_orders_cancelled_total",
			Help: "Orders cancelled by their owners.",
		}),
		MatchesExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "darkpool_matches_executed_total",
			Help: "Successful settlement calls.",
		}),
		MatchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "darkpool_match_failures_total",
			Help: "Rejected settlement calls by failure kind.",
		}, []string{"reason"}),
	}
}
