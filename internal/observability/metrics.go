// Package observability は Prometheus メトリクスと /metrics 用のハンドラーを提供します。
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics はアプリケーション固有のメトリクスです。
// nil の *Metrics に対する記録は何もしません。
type Metrics struct {
	AuthEvents      *prometheus.CounterVec
	PropertyOps     *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	VerificationJob *prometheus.CounterVec
}

// NewMetrics はメトリクスを作成して reg に登録します。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pglife_auth_events_total",
				Help: "Authentication events by kind and outcome",
			},
			[]string{"event", "outcome"},
		),
		PropertyOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pglife_property_operations_total",
				Help: "Property operations by kind and outcome",
			},
			[]string{"operation", "outcome"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pglife_http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pglife_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		VerificationJob: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pglife_verification_jobs_total",
				Help: "Verification job executions by outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(m.AuthEvents, m.PropertyOps, m.HTTPRequests, m.HTTPDuration, m.VerificationJob)
	return m
}

// NewRegistry は Go ランタイムとプロセスのコレクターを登録済みのレジストリを返します。
func NewRegistry() *prometheus.Registry {
	// グローバルのレジストリは使わない
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// Handler は /metrics 用のハンドラーを返します。
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// AuthEvent は認証イベントを記録します。
func (m *Metrics) AuthEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(event, outcome).Inc()
}

// PropertyOp は物件操作を記録します。
func (m *Metrics) PropertyOp(operation, outcome string) {
	if m == nil {
		return
	}
	m.PropertyOps.WithLabelValues(operation, outcome).Inc()
}

// VerificationJobDone は確認ジョブの結果を記録します。
func (m *Metrics) VerificationJobDone(outcome string) {
	if m == nil {
		return
	}
	m.VerificationJob.WithLabelValues(outcome).Inc()
}

// GinMiddleware はリクエスト数とレイテンシを記録するミドルウェアを返します。
// ルートはパスパラメーターを含まないテンプレート（c.FullPath）で集計します。
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
