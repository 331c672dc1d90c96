package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts record store writes made through the CRUD screens.
type Metrics struct {
	RecordsCreated *prometheus.CounterVec
	RecordsUpdated *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mastercom_records_created_total",
			Help: "Records inserted, by table",
		}, []string{"table"}),
		RecordsUpdated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mastercom_records_updated_total",
			Help: "Records updated, by table",
		}, []string{"table"}),
	}
}

func (m *Metrics) IncCreated(table string) {
	if m != nil {
		m.RecordsCreated.WithLabelValues(table).Inc()
	}
}

func (m *Metrics) IncUpdated(table string) {
	if m != nil {
		m.RecordsUpdated.WithLabelValues(table).Inc()
	}
}
