package aggregator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "mednews"

// Metrics 采集与分类的 Prometheus 指标；nil 时所有记录方法为空操作
type Metrics struct {
	GatherArticles   *prometheus.CounterVec
	GatherFailures   *prometheus.CounterVec
	GatherDuration   prometheus.Histogram
	CategorizedCount *prometheus.GaugeVec
	DroppedArticles  *prometheus.CounterVec
}

// NewMetrics registers the aggregator metrics on reg, or on the default
// registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		GatherArticles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "gather_articles_total",
				Help:      "Articles returned by each source adapter",
			},
			[]string{"source"},
		),
		GatherFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "gather_failures_total",
				Help:      "Source adapter invocations that failed, panicked or timed out",
			},
			[]string{"source"},
		),
		GatherDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "gather_duration_seconds",
				Help:      "Wall time of one concurrent gather",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
			},
		),
		CategorizedCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "categorized_articles",
				Help:      "Articles in each bucket after the last categorization",
			},
			[]string{"category"},
		),
		DroppedArticles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "dropped_articles_total",
				Help:      "Articles left out of the digest",
			},
			[]string{"reason"},
		),
	}
}

func (m *Metrics) recordSource(source string, count int, failed bool) {
	if m == nil {
		return
	}
	if failed {
		m.GatherFailures.WithLabelValues(source).Inc()
		return
	}
	m.GatherArticles.WithLabelValues(source).Add(float64(count))
}

func (m *Metrics) observeGather(d time.Duration) {
	if m == nil {
		return
	}
	m.GatherDuration.Observe(d.Seconds())
}

func (m *Metrics) setBucket(category string, n int) {
	if m == nil {
		return
	}
	m.CategorizedCount.WithLabelValues(category).Set(float64(n))
}

func (m *Metrics) drop(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.DroppedArticles.WithLabelValues(reason).Add(float64(n))
}
