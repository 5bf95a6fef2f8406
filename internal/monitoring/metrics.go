// Package monitoring exposes backfill metrics to Prometheus and raises
// webhook alerts from the run ledger.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/evdata-cli/internal/model"
)

// Metrics holds the Prometheus metrics for a backfill process. Each Metrics
// owns its registry so tests and repeated runs never collide.
type Metrics struct {
	registry *prometheus.Registry

	PagesTotal       *prometheus.CounterVec
	ArticlesTotal    *prometheus.CounterVec
	SubmissionsTotal *prometheus.CounterVec
	OCRTokensTotal   *prometheus.CounterVec
	OCRCostTotal     prometheus.Counter
	OCRDuration      *prometheus.HistogramVec
}

// NewMetrics registers the backfill metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evdata_pages_total",
			Help: "List pages processed, by result.",
		}, []string{"result"}), // ok, failed
		ArticlesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evdata_articles_total",
			Help: "Articles reaching a final pipeline stage.",
		}, []string{"stage"}),
		SubmissionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evdata_submissions_total",
			Help: "Records posted to the data API, by target table and result.",
		}, []string{"table", "result"}),
		OCRTokensTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evdata_ocr_tokens_total",
			Help: "Vision model tokens consumed.",
		}, []string{"direction"}),
		OCRCostTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "evdata_ocr_cost_usd_total",
			Help: "Estimated vision model spend in USD.",
		}),
		OCRDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evdata_ocr_duration_seconds",
			Help:    "Duration of vision extraction calls.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"success"}),
	}
}

// Page counts one processed list page.
func (m *Metrics) Page(ok bool) {
	m.PagesTotal.WithLabelValues(resultLabel(ok)).Inc()
}

// Article counts an article reaching its final stage.
func (m *Metrics) Article(stage model.OutcomeStage) {
	m.ArticlesTotal.WithLabelValues(string(stage)).Inc()
}

// Submission counts one record posted to the data API.
func (m *Metrics) Submission(table model.Table, ok bool) {
	m.SubmissionsTotal.WithLabelValues(string(table), resultLabel(ok)).Inc()
}

// OCR records the usage of one vision call.
func (m *Metrics) OCR(res model.OCRResult) {
	m.OCRTokensTotal.WithLabelValues("input").Add(float64(res.InputTokens))
	m.OCRTokensTotal.WithLabelValues("output").Add(float64(res.OutputTokens))
	m.OCRCostTotal.Add(res.Cost)

	success := "false"
	if res.Success {
		success = "true"
	}
	m.OCRDuration.WithLabelValues(success).Observe(float64(res.DurationMs) / 1000)
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
