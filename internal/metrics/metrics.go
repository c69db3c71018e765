package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cortex_sessions_total", Help: "Analysis sessions by final status"},
		[]string{"status"},
	)
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cortex_stage_duration_seconds",
			Help:    "Wall time spent per pipeline stage",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)
	LLMCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cortex_llm_calls_total", Help: "Inference calls by agent and result"},
		[]string{"agent", "result"},
	)
	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cortex_llm_tokens_total", Help: "Tokens reported by the model"},
		[]string{"kind"},
	)
	DegradedReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cortex_degraded_reports_total", Help: "Analyst reports flagged degraded"},
		[]string{"kind"},
	)
	DataFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cortex_data_fetch_total", Help: "Data vendor calls by vendor and result"},
		[]string{"vendor", "result"},
	)
)

func init() {
	prometheus.MustRegister(SessionsTotal, StageDuration, LLMCallsTotal, LLMTokensTotal, DegradedReportsTotal, DataFetchTotal)
}

// ObserveStage records the duration since start for stage.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
