package claimmetrics

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	claimsSubmitted      *prometheus.CounterVec
	claimAmountSubmitted *prometheus.CounterVec
	itemsReconciled      *prometheus.CounterVec
	notesSubmitted       *prometheus.CounterVec
	outOfStockItems      *prometheus.CounterVec
	providerSyncs        *prometheus.CounterVec
	lastPush             prometheus.Gauge
}

func newMetrics(registerers ...prometheus.Registerer) *metrics {
	m := &metrics{
		claimsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hmsinsure",
			Name:      "claims_submitted_total",
			Help:      "Claims submitted to an insurance provider.",
		}, []string{"company", "provider"}),
		claimAmountSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hmsinsure",
			Name:      "claim_amount_submitted_total",
			Help:      "Sum of submitted claim totals.",
		}, []string{"company", "provider"}),
		itemsReconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hmsinsure",
			Name:      "claim_items_reconciled_total",
			Help:      "Repeated claim items merged away.",
		}, []string{"company"}),
		notesSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hmsinsure",
			Name:      "delivery_notes_submitted_total",
			Help:      "Delivery notes submitted.",
		}, []string{"company"}),
		outOfStockItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hmsinsure",
			Name:      "delivery_note_out_of_stock_items_total",
			Help:      "Original delivery note items marked out of stock at validation.",
		}, []string{"company"}),
		providerSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hmsinsure",
			Name:      "provider_syncs_total",
			Help:      "Price package syncs by outcome.",
		}, []string{"provider", "company", "outcome"}),
		lastPush: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hmsinsure",
			Name:      "metrics_last_push_timestamp_seconds",
			Help:      "Unix time of the last successful metrics push.",
		}),
	}

	for _, registerer := range registerers {
		registerer.MustRegister(
			m.claimsSubmitted,
			m.claimAmountSubmitted,
			m.itemsReconciled,
			m.notesSubmitted,
			m.outOfStockItems,
			m.providerSyncs,
			m.lastPush,
		)
	}
	return m
}
