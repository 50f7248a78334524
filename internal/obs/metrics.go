package obs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/noah-isme/taxcore/internal/engine"
	"github.com/noah-isme/taxcore/internal/tax"
)

// EngineMetrics groups Prometheus collectors for tax evaluation. It implements engine.Observer.
type EngineMetrics struct {
	RuleEvaluations *prometheus.CounterVec
	SequenceResults *prometheus.CounterVec
	ItinDuration    prometheus.Histogram
}

var _ engine.Observer = (*EngineMetrics)(nil)

// NewEngineMetrics registers and returns the engine collectors. Collectors already registered
// under the same name are reused.
func NewEngineMetrics(namespace string, buckets []float64, reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(buckets) == 0 {
		buckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25}
	} else {
		sort.Float64s(buckets)
	}
	m := &EngineMetrics{
		RuleEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_rule_evaluations_total",
			Help:      "Count of tax rule evaluations by rule kind and outcome.",
		}, []string{"rule", "outcome"}),
		SequenceResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_sequence_results_total",
			Help:      "Count of completed tax sequences by tax code and result.",
		}, []string{"tax_code", "result"}),
		ItinDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tax_itin_duration_ms",
			Help:      "Time spent evaluating all tax sequences of one itinerary in milliseconds.",
			Buckets:   buckets,
		}),
	}
	mustRegisterCollector(reg, m.RuleEvaluations, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			m.RuleEvaluations = v
		}
	})
	mustRegisterCollector(reg, m.SequenceResults, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			m.SequenceResults = v
		}
	})
	mustRegisterCollector(reg, m.ItinDuration, func(existing prometheus.Collector) {
		if v, ok := existing.(prometheus.Histogram); ok {
			m.ItinDuration = v
		}
	})
	return m
}

// RuleApplied implements engine.Observer.
func (m *EngineMetrics) RuleApplied(id tax.RuleID, outcome engine.Outcome) {
	m.RuleEvaluations.WithLabelValues(string(id), string(outcome)).Inc()
}

// SequenceCompleted implements engine.Observer.
func (m *EngineMetrics) SequenceCompleted(name tax.TaxName, passed bool) {
	result := "failed"
	if passed {
		result = "applied"
	}
	m.SequenceResults.WithLabelValues(name.TaxCode, result).Inc()
}

// ItinCompleted implements engine.Observer.
func (m *EngineMetrics) ItinCompleted(elapsed time.Duration) {
	m.ItinDuration.Observe(DurationMillis(elapsed))
}

// ParseBucketsCSV converts a comma-separated list of bucket boundaries (milliseconds) into floats.
func ParseBucketsCSV(csv string) []float64 {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		v, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			continue
		}
		if v <= 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

// DurationMillis converts a duration to milliseconds for metric observation.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register engine metric: %w", err))
	}
}
