// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic: request
// counts, latencies, in-flight concurrency and response sizes. Labels:
//
//   - method:   HTTP verb
//   - path:     the registered Gin route (e.g. /api/v1/conversations/:id/messages),
//     or "unmatched" when no route matched, so scanners cannot blow up cardinality
//   - audience: "widget", "operator" or "ops", which separates the steady
//     widget polling load from operator traffic in dashboards
//   - status:   numeric status code
package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const unmatchedPath = "unmatched"

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "audience", "status"},
	)

	// httpLat omits status to keep histogram cardinality lower.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "audience"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// Chat payloads are small; a poll answer with a few hundred messages is
	// the upper end.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes.",
			Buckets: []float64{64, 256, 1 << 10, 4 << 10, 16 << 10, 64 << 10, 256 << 10, 1 << 20},
		},
		[]string{"method", "path", "audience"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize)
}

// audience classifies a route template.
func audience(path string) string {
	switch {
	case strings.Contains(path, "/operator/"):
		return "operator"
	case strings.Contains(path, "/conversations/"),
		strings.HasSuffix(path, "/customer/me"),
		strings.HasSuffix(path, "/channel/status"):
		return "widget"
	default:
		return "ops"
	}
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
//
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		aud := audience(path)
		method := c.Request.Method

		httpReqs.WithLabelValues(method, path, aud, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path, aud).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written (e.g. 204).
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path, aud).Observe(float64(size))
		}
	}
}
