package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the deletion workflow.
type Metrics struct {
	RequestsSubmitted    *prometheus.CounterVec
	DuplicateRequests    *prometheus.CounterVec
	Reviews              *prometheus.CounterVec
	RecordsDeleted       *prometheus.CounterVec
	InconsistentApproves *prometheus.CounterVec
	Reconciled           *prometheus.CounterVec
	ApproveDuration      prometheus.Histogram
	PendingRequests      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mastercom_deletion_requests_submitted_total",
			Help: "Deletion requests recorded in the ledger, by table",
		}, []string{"table"}),
		DuplicateRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mastercom_deletion_requests_duplicate_total",
			Help: "Submissions refused because a request was already pending, by table",
		}, []string{"table"}),
		Reviews: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mastercom_deletion_reviews_total",
			Help: "Ledger transitions out of pending, by decision",
		}, []string{"decision"}),
		RecordsDeleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mastercom_deletion_records_deleted_total",
			Help: "Records removed after approval, by table",
		}, []string{"table"}),
		InconsistentApproves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mastercom_deletion_inconsistent_approvals_total",
			Help: "Approved requests whose record delete failed, by table",
		}, []string{"table"}),
		Reconciled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mastercom_deletion_reconciled_total",
			Help: "Reconcile outcomes for approved requests, by outcome",
		}, []string{"outcome"}),
		ApproveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mastercom_deletion_approve_duration_seconds",
			Help:    "Duration of the two-phase approve sequence",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		PendingRequests: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mastercom_deletion_requests_pending",
			Help: "Pending requests seen by the last ledger listing",
		}),
	}
}

func (m *Metrics) IncSubmitted(table string) {
	if m != nil {
		m.RequestsSubmitted.WithLabelValues(table).Inc()
	}
}

func (m *Metrics) IncDuplicate(table string) {
	if m != nil {
		m.DuplicateRequests.WithLabelValues(table).Inc()
	}
}

func (m *Metrics) IncReview(decision string) {
	if m != nil {
		m.Reviews.WithLabelValues(decision).Inc()
	}
}

func (m *Metrics) IncRecordDeleted(table string) {
	if m != nil {
		m.RecordsDeleted.WithLabelValues(table).Inc()
	}
}

func (m *Metrics) IncInconsistent(table string) {
	if m != nil {
		m.InconsistentApproves.WithLabelValues(table).Inc()
	}
}

func (m *Metrics) IncReconciled(outcome string) {
	if m != nil {
		m.Reconciled.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveApprove(seconds float64) {
	if m != nil {
		m.ApproveDuration.Observe(seconds)
	}
}

func (m *Metrics) SetPending(n int) {
	if m != nil {
		m.PendingRequests.Set(float64(n))
	}
}
