package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swms-manager/pkg/metrics"
	"go.uber.org/zap"
)

const slowRequest = 2 * time.Second

// LoggingMiddleware records per-route latency and status counters and flags slow requests.
type LoggingMiddleware struct {
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

func NewLoggingMiddleware(logger *zap.Logger, metrics *metrics.MetricsCollector) *LoggingMiddleware {
	return &LoggingMiddleware{
		logger:  logger,
		metrics: metrics,
	}
}

func (lm *LoggingMiddleware) LogRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		lm.metrics.ObserveLatency("http "+route, duration)
		lm.metrics.IncrementCounter("http_requests", map[string]string{
			"route":  route,
			"status": statusClass(c.Writer.Status()),
		})

		if duration > slowRequest {
			lm.logger.Warn("Slow request",
				zap.String("method", c.Request.Method),
				zap.String("route", route),
				zap.Duration("duration", duration),
				zap.String("user_id", c.GetString(ContextUserID)),
				zap.String("client_ip", c.ClientIP()))
		}
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
