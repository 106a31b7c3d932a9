package photo

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports ingestion outcomes and latency to Prometheus.
type Metrics struct {
	ingests  *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the ingestion collectors with reg, reusing collectors
// that are already registered. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	ingests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photos",
		Name:      "ingest_total",
		Help:      "Photo ingestions by outcome (success or failure kind).",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "photos",
		Name:      "ingest_duration_seconds",
		Help:      "Wall time of a photo ingestion, including uploads.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	m := &Metrics{ingests: ingests, duration: duration}
	if err := reg.Register(ingests); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register ingest counter: %w", err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("register ingest counter: %w", err)
		}
		m.ingests = existing
	}
	if err := reg.Register(duration); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register ingest histogram: %w", err)
		}
		existing, ok := are.ExistingCollector.(prometheus.Histogram)
		if !ok {
			return nil, fmt.Errorf("register ingest histogram: %w", err)
		}
		m.duration = existing
	}
	return m, nil
}

func (m *Metrics) observeIngest(kind Kind, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if kind != "" {
		outcome = string(kind)
	}
	m.ingests.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}
