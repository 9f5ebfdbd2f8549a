package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	elementsScanned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "health_processor",
		Subsystem: "scanner",
		Name:      "elements_scanned_total",
		Help:      "Export elements read off the XML stream, by element kind.",
	}, []string{"kind"})

	traversals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "health_processor",
		Subsystem: "scanner",
		Name:      "traversals_total",
		Help:      "Full streaming traversals of an export document, by operation.",
	}, []string{"operation"})

	coercionFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "health_processor",
		Subsystem: "coercion",
		Name:      "value_column_fallback_total",
		Help:      "Value columns kept as strings because at least one entry failed numeric parsing.",
	})

	datasetsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "health_processor",
		Subsystem: "report",
		Name:      "datasets_recorded_total",
		Help:      "Dataset summaries recorded into consolidated reports.",
	})

	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "health_processor",
		Subsystem: "web",
		Name:      "sessions_active",
		Help:      "Upload sessions currently held in memory.",
	})

	wsClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "health_processor",
		Subsystem: "websocket",
		Name:      "clients_connected",
		Help:      "WebSocket clients currently connected to the progress hub.",
	})
)

func init() {
	prometheus.MustRegister(
		elementsScanned,
		traversals,
		coercionFallbacks,
		datasetsRecorded,
		activeSessions,
		wsClients,
	)
}

// AddElementsScanned counts elements consumed by one traversal.
func AddElementsScanned(kind string, n int) {
	if n <= 0 {
		return
	}
	elementsScanned.WithLabelValues(kind).Add(float64(n))
}

// RecordTraversal counts one full pass over an export document.
func RecordTraversal(operation string) {
	traversals.WithLabelValues(operation).Inc()
}

// RecordCoercionFallback counts a value column that stayed textual.
func RecordCoercionFallback() {
	coercionFallbacks.Inc()
}

// RecordDatasetRecorded counts a summary added to a consolidated report.
func RecordDatasetRecorded() {
	datasetsRecorded.Inc()
}

// IncActiveSessions tracks a new upload session.
func IncActiveSessions() {
	activeSessions.Inc()
}

// DecActiveSessions tracks a removed upload session.
func DecActiveSessions() {
	activeSessions.Dec()
}

// IncWSClients tracks a connected progress client.
func IncWSClients() {
	wsClients.Inc()
}

// DecWSClients tracks a disconnected progress client.
func DecWSClients() {
	wsClients.Dec()
}

// Handler exposes the default registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
