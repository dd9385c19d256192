package claimmetrics

import (
	"strings"
	"sync"
)

// Recorder counts claim accounting events. The package level functions
// forward to the active recorder, which is a no-op until Register runs.
type Recorder interface {
	RecordClaimSubmitted(company, provider string, amount float64)
	RecordItemsReconciled(company string, removed int64)
	RecordNoteSubmitted(company string)
	RecordOutOfStock(company string, count int)
	RecordProviderSync(provider, company, outcome string)
}

const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

type recorder struct {
	metrics *metrics
}

type noopRecorder struct{}

func (noopRecorder) RecordClaimSubmitted(string, string, float64) {}
func (noopRecorder) RecordItemsReconciled(string, int64)          {}
func (noopRecorder) RecordNoteSubmitted(string)                   {}
func (noopRecorder) RecordOutOfStock(string, int)                 {}
func (noopRecorder) RecordProviderSync(string, string, string)    {}

var (
	activeRecorder Recorder = noopRecorder{}
	recorderMu     sync.RWMutex
)

func setRecorder(rec Recorder) {
	if rec == nil {
		return
	}
	recorderMu.Lock()
	activeRecorder = rec
	recorderMu.Unlock()
}

func current() Recorder {
	recorderMu.RLock()
	defer recorderMu.RUnlock()
	return activeRecorder
}

func RecordClaimSubmitted(company, provider string, amount float64) {
	current().RecordClaimSubmitted(company, provider, amount)
}

func RecordItemsReconciled(company string, removed int64) {
	current().RecordItemsReconciled(company, removed)
}

func RecordNoteSubmitted(company string) {
	current().RecordNoteSubmitted(company)
}

func RecordOutOfStock(company string, count int) {
	current().RecordOutOfStock(company, count)
}

func RecordProviderSync(provider, company, outcome string) {
	current().RecordProviderSync(provider, company, outcome)
}

func (r *recorder) RecordClaimSubmitted(company, provider string, amount float64) {
	if r == nil || r.metrics == nil {
		return
	}
	labels := []string{normalizeLabel(company), normalizeLabel(provider)}
	r.metrics.claimsSubmitted.WithLabelValues(labels...).Inc()
	if amount > 0 {
		r.metrics.claimAmountSubmitted.WithLabelValues(labels...).Add(amount)
	}
}

func (r *recorder) RecordItemsReconciled(company string, removed int64) {
	if r == nil || r.metrics == nil || removed <= 0 {
		return
	}
	r.metrics.itemsReconciled.WithLabelValues(normalizeLabel(company)).Add(float64(removed))
}

func (r *recorder) RecordNoteSubmitted(company string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.notesSubmitted.WithLabelValues(normalizeLabel(company)).Inc()
}

func (r *recorder) RecordOutOfStock(company string, count int) {
	if r == nil || r.metrics == nil || count <= 0 {
		return
	}
	r.metrics.outOfStockItems.WithLabelValues(normalizeLabel(company)).Add(float64(count))
}

func (r *recorder) RecordProviderSync(provider, company, outcome string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.providerSyncs.WithLabelValues(normalizeLabel(provider), normalizeLabel(company), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
