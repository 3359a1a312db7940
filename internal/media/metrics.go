package media

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "mealog"

// Ingest results.
const (
	ingestResultStored          = "stored"
	ingestResultUnsupportedType = "unsupported_type"
	ingestResultTooLarge        = "too_large"
	ingestResultInvalidImage    = "invalid_image"
	ingestResultStorageError    = "storage_error"
)

// Cleanup results.
const (
	cleanupResultDeleted = "deleted"
	cleanupResultFailed  = "failed"
	cleanupResultSkipped = "skipped"
)

// Metrics exports image pipeline telemetry. A nil *Metrics records nothing.
type Metrics struct {
	ingestTotal    *prometheus.CounterVec
	ingestDuration prometheus.Histogram
	finalQuality   prometheus.Histogram
	storedBytes    prometheus.Counter
	overBudget     prometheus.Counter
	cleanupTotal   *prometheus.CounterVec
}

// NewMetrics registers pipeline collectors on reg, or the default registerer when reg is nil.
// Collectors already registered under the same names are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ingestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "image",
			Name:      "ingest_total",
			Help:      "Image uploads by ingestion result.",
		}, []string{"result"}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "image",
			Name:      "ingest_duration_seconds",
			Help:      "Time spent validating, transcoding and storing one upload.",
			Buckets:   prometheus.DefBuckets,
		}),
		finalQuality: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "image",
			Name:      "final_quality",
			Help:      "JPEG quality chosen for stored images.",
			Buckets:   prometheus.LinearBuckets(10, 10, 9),
		}),
		storedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "image",
			Name:      "stored_bytes_total",
			Help:      "Bytes written to the blob store by successful uploads.",
		}),
		overBudget: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "image",
			Name:      "over_budget_total",
			Help:      "Stored images that exceeded the size budget at the quality floor.",
		}),
		cleanupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "image",
			Name:      "cleanup_total",
			Help:      "Orphaned image deletions by result.",
		}, []string{"result"}),
	}

	register := func(c prometheus.Collector) (prometheus.Collector, error) {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				return are.ExistingCollector, nil
			}
			return nil, fmt.Errorf("register image metric: %w", err)
		}
		return c, nil
	}

	var err error
	var c prometheus.Collector
	if c, err = register(m.ingestTotal); err != nil {
		return nil, err
	}
	m.ingestTotal = c.(*prometheus.CounterVec)
	if c, err = register(m.ingestDuration); err != nil {
		return nil, err
	}
	m.ingestDuration = c.(prometheus.Histogram)
	if c, err = register(m.finalQuality); err != nil {
		return nil, err
	}
	m.finalQuality = c.(prometheus.Histogram)
	if c, err = register(m.storedBytes); err != nil {
		return nil, err
	}
	m.storedBytes = c.(prometheus.Counter)
	if c, err = register(m.overBudget); err != nil {
		return nil, err
	}
	m.overBudget = c.(prometheus.Counter)
	if c, err = register(m.cleanupTotal); err != nil {
		return nil, err
	}
	m.cleanupTotal = c.(*prometheus.CounterVec)
	return m, nil
}

// MustNewMetrics is NewMetrics that panics on registration failure.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	m, err := NewMetrics(reg)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metrics) recordIngest(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(result).Inc()
	m.ingestDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) recordStored(size, quality int, overBudget bool) {
	if m == nil {
		return
	}
	m.storedBytes.Add(float64(size))
	m.finalQuality.Observe(float64(quality))
	if overBudget {
		m.overBudget.Inc()
	}
}

func (m *Metrics) recordCleanup(result string) {
	if m == nil {
		return
	}
	m.cleanupTotal.WithLabelValues(result).Inc()
}
