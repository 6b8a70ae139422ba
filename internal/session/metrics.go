package session

import (
	"github.com/bissquit/incident-commander/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "session",
			Name:      "loads_total",
			Help:      "Incident loads and creations by outcome",
		},
		[]string{"kind", "result"},
	)

	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "session",
			Name:      "mutations_total",
			Help:      "Applied incident mutations by operation",
		},
		[]string{"operation"},
	)

	sharesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "session",
			Name:      "shares_total",
			Help:      "Summary share attempts by result",
		},
		[]string{"result"},
	)
)

func recordLoad(kind, result string) {
	loadsTotal.WithLabelValues(kind, result).Inc()
}

func recordMutation(operation string) {
	mutationsTotal.WithLabelValues(operation).Inc()
}

func recordShare(result string) {
	sharesTotal.WithLabelValues(result).Inc()
}
