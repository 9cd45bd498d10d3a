package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the crawler.
type Metrics struct {
	CyclesTotal     prometheus.Counter
	CycleDuration   prometheus.Histogram
	StoriesTotal    *prometheus.CounterVec
	FetchesTotal    *prometheus.CounterVec
	FetchesInflight prometheus.Gauge
	FetchDuration   prometheus.Histogram
	ReportRowsTotal prometheus.Counter
	SeenStories     prometheus.Gauge
}

// NewMetrics registers the crawler metric set on reg and returns it.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ycrawler_cycles_total",
			Help: "The total number of poll cycles started",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ycrawler_cycle_duration_seconds",
			Help:    "Duration of the dispatch phase of each poll cycle",
			Buckets: prometheus.DefBuckets,
		}),
		StoriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ycrawler_stories_total",
			Help: "The total number of stories dispatched, by outcome",
		}, []string{"outcome"}), // 'processed', 'detail_failed', 'dir_failed'
		FetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ycrawler_fetches_total",
			Help: "The total number of page downloads, by outcome",
		}, []string{"outcome"}), // 'ok', 'error'
		FetchesInflight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ycrawler_fetches_inflight",
			Help: "Page downloads currently holding a fetch pool slot",
		}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ycrawler_fetch_duration_seconds",
			Help:    "Duration of individual page downloads",
			Buckets: prometheus.DefBuckets,
		}),
		ReportRowsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ycrawler_report_rows_total",
			Help: "The total number of rows appended to the report",
		}),
		SeenStories: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ycrawler_seen_stories",
			Help: "Story ids currently held by the seen registry",
		}),
	}
}

func (m *Metrics) IncCycle() {
	m.CyclesTotal.Inc()
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	m.CycleDuration.Observe(d.Seconds())
}

func (m *Metrics) IncStory(outcome string) {
	m.StoriesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFetch(d time.Duration, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.FetchesTotal.WithLabelValues(outcome).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

func (m *Metrics) IncReportRow() {
	m.ReportRowsTotal.Inc()
}

func (m *Metrics) SetSeenStories(n int) {
	m.SeenStories.Set(float64(n))
}
