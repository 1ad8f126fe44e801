package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/judyrop/epicerie-backend/cart"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epicerie_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "epicerie_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epicerie_operations_total",
			Help: "Total number of order, upload and notification operations",
		},
		[]string{"operation", "status"},
	)

	cartMutations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "epicerie_cart_mutations_total",
			Help: "Total number of applied cart mutations",
		},
	)

	cartItems = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "epicerie_cart_items",
			Help:    "Number of items in a cart after a mutation",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)
)

// PrometheusMiddleware counts requests and their duration per route.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
	}
}

func RecordOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	operations.WithLabelValues(operation, status).Inc()
}

// CartObserver feeds the cart metrics from every applied mutation.
var CartObserver = cart.ObserverFunc(func(s cart.Snapshot) {
	cartMutations.Inc()
	cartItems.Observe(float64(s.TotalItems))
})
