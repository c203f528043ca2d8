package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects the generation counters. A nil *Metrics is valid and
// records nothing, so components can take it as an optional dependency.
type Metrics struct {
	listing       *prometheus.CounterVec
	quarantined   *prometheus.CounterVec
	droppedLayers prometheus.Counter
	placeholders  *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// NewMetrics registers the traitforge collectors on reg. A nil reg uses a
// private registry, which keeps tests from colliding on the global one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		listing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traitforge",
			Name:      "listing_requests_total",
			Help:      "Directory listings by outcome (hit, miss, error).",
		}, []string{"outcome"}),
		quarantined: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traitforge",
			Name:      "quarantined_files_total",
			Help:      "Trait files excluded because their name does not match the schema.",
		}, []string{"category"}),
		droppedLayers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traitforge",
			Name:      "dropped_layers_total",
			Help:      "Layers omitted from compositing after a failed download or decode.",
		}),
		placeholders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traitforge",
			Name:      "placeholder_images_total",
			Help:      "Placeholder images served instead of a composite.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "traitforge",
			Name:      "stage_duration_seconds",
			Help:      "Duration of generation stages.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"stage"}),
	}
	reg.MustRegister(m.listing, m.quarantined, m.droppedLayers, m.placeholders, m.duration)
	return m
}

// Listing outcomes.
const (
	ListingHit   = "hit"
	ListingMiss  = "miss"
	ListingError = "error"
)

// ObserveListing counts one listing request.
func (m *Metrics) ObserveListing(outcome string) {
	if m == nil {
		return
	}
	m.listing.WithLabelValues(outcome).Inc()
}

// Quarantined counts a rejected trait file.
func (m *Metrics) Quarantined(category string) {
	if m == nil {
		return
	}
	m.quarantined.WithLabelValues(category).Inc()
}

// LayerDropped counts a layer left out of a composite.
func (m *Metrics) LayerDropped() {
	if m == nil {
		return
	}
	m.droppedLayers.Inc()
}

// Placeholder counts a placeholder fallback.
func (m *Metrics) Placeholder(reason string) {
	if m == nil {
		return
	}
	m.placeholders.WithLabelValues(reason).Inc()
}

// ObserveStage records how long a stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
