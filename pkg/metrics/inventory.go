package metrics

import "github.com/prometheus/client_golang/prometheus"

// Reconciliation anomaly kinds.
const (
	AnomalyRecordMissing   = "record_missing"
	AnomalyDuplicateCreate = "duplicate_create"
	AnomalyGuardFailed     = "guard_failed"
)

// InventoryMetrics counts reservation outcomes and reconciliation anomalies.
type InventoryMetrics struct {
	operations *prometheus.CounterVec
	anomalies  *prometheus.CounterVec
}

func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "reservation_operations_total",
		Help:      "Reservation manager operations by outcome.",
	}, []string{"operation", "outcome"})
	anomalies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "reconciliation_anomalies_total",
		Help:      "Inventory record anomalies observed while reserving, committing or releasing.",
	}, []string{"kind"})
	reg.MustRegister(operations, anomalies)
	return &InventoryMetrics{operations: operations, anomalies: anomalies}
}

// ObserveOperation records operation (reserve, commit, release) with outcome (ok, error).
func (m *InventoryMetrics) ObserveOperation(operation, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

func (m *InventoryMetrics) IncAnomaly(kind string) {
	if m == nil || m.anomalies == nil {
		return
	}
	m.anomalies.WithLabelValues(normalizeLabel(kind)).Inc()
}
