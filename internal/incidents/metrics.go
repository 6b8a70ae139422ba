package incidents

import (
	"time"

	"github.com/bissquit/incident-commander/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	savesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "incidents",
			Name:      "saves_total",
			Help:      "Total background incident saves by result",
		},
		[]string{"result"},
	)

	saveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "incidents",
			Name:      "save_duration_seconds",
			Help:      "Time to persist one incident snapshot",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	pendingSaves = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "incidents",
			Name:      "pending_saves",
			Help:      "Incident snapshots waiting to be written",
		},
	)
)

func recordSave(result string, duration time.Duration) {
	savesTotal.WithLabelValues(result).Inc()
	saveDuration.Observe(duration.Seconds())
}

func recordPending(count int) {
	pendingSaves.Set(float64(count))
}
