package sheet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/warp/order-sheet/orders"
)

// Metrics are the Prometheus collectors of the service. A nil *Metrics
// records nothing.
type Metrics struct {
	Mutations     *prometheus.CounterVec
	Saves         *prometheus.CounterVec
	RemoteApplied prometheus.Counter
	LedgerEntries prometheus.Gauge
	People        prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "order_sheet",
			Name:      "mutations_total",
			Help:      "Sheet operations by kind and result (ok, rejected).",
		}, []string{"op", "result"}),
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "order_sheet",
			Name:      "saves_total",
			Help:      "Snapshot writes by target (store, replica) and result (ok, error).",
		}, []string{"target", "result"}),
		RemoteApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "order_sheet",
			Name:      "remote_snapshots_applied_total",
			Help:      "Snapshots received from other sessions and applied.",
		}),
		LedgerEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "order_sheet",
			Name:      "ledger_entries",
			Help:      "Stored (date, person) marks.",
		}),
		People: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "order_sheet",
			Name:      "roster_people",
			Help:      "People on the roster.",
		}),
	}
	reg.MustRegister(m.Mutations, m.Saves, m.RemoteApplied, m.LedgerEntries, m.People)
	return m
}

func (m *Metrics) mutation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.Mutations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) save(target string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Saves.WithLabelValues(target, result).Inc()
}

func (m *Metrics) remoteApplied() {
	if m == nil {
		return
	}
	m.RemoteApplied.Inc()
}

func (m *Metrics) observeLedger(s *orders.State) {
	if m == nil {
		return
	}
	m.LedgerEntries.Set(float64(s.Ledger.Len()))
	m.People.Set(float64(s.Roster.Len()))
}
