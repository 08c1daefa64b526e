package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/s0up4200/torrentsnag/backend"
)

const namespace = "torrentsnag"

// Manager owns the registry and the application collectors.
type Manager struct {
	registry *prometheus.Registry

	dispatches *prometheus.CounterVec
	items      *prometheus.CounterVec
	errors     *prometheus.CounterVec
	detected   *prometheus.GaugeVec
}

// NewManager creates a registry with the Go and process collectors plus the
// dispatch and scan metrics. trackedEntries, when set, backs a gauge of the
// duplicate tracker size.
func NewManager(trackedEntries func() float64) *Manager {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "total",
			Help:      "Total number of dispatch calls",
		}, []string{"handler", "outcome"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "items_total",
			Help:      "Total number of dispatched links",
		}, []string{"handler", "result"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "errors_total",
			Help:      "Total number of dispatch calls that failed before any link was sent",
		}, []string{"handler", "kind"}),
		detected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "candidates",
			Help:      "Number of pending candidates per context",
		}, []string{"context"}),
	}

	registry.MustRegister(m.dispatches, m.items, m.errors, m.detected)

	if trackedEntries != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "entries",
			Help:      "Number of fingerprints in the duplicate tracker",
		}, trackedEntries))
	}

	return m
}

// Registry returns the registry to expose.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveDispatch records the outcome of a dispatch call.
func (m *Manager) ObserveDispatch(handler string, res *backend.Result, err error) {
	if err != nil {
		m.dispatches.WithLabelValues(handler, "error").Inc()
		m.errors.WithLabelValues(handler, errorKind(err)).Inc()
		return
	}

	outcome := "failure"
	if res.Success {
		outcome = "success"
	}
	m.dispatches.WithLabelValues(handler, outcome).Inc()
	m.items.WithLabelValues(handler, "success").Add(float64(res.Count))
	m.items.WithLabelValues(handler, "failure").Add(float64(res.Total - res.Count))
}

// ObserveCandidates sets the pending candidate count of a context.
func (m *Manager) ObserveCandidates(contextID string, count int) {
	m.detected.WithLabelValues(contextID).Set(float64(count))
}

// ForgetContext drops the candidate gauge of a closed context.
func (m *Manager) ForgetContext(contextID string) {
	m.detected.DeleteLabelValues(contextID)
}

func errorKind(err error) string {
	switch {
	case backend.IsConfiguration(err):
		return "configuration"
	case backend.IsAuthentication(err):
		return "authentication"
	case backend.IsNetwork(err):
		return "network"
	default:
		return "other"
	}
}
