package middleware

import (
	"strconv"
	"time"

	"github.com/erp/inventory-ledger/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// unmatchedRoute labels requests that hit no registered route, so that
// arbitrary paths never become metric label values
const unmatchedRoute = "unmatched"

// HTTPMetrics records request count and latency per route and status.
// Tenant is attached to the count only, keeping histogram cardinality low.
func HTTPMetrics(meter metric.Meter) (gin.HandlerFunc, error) {
	requests, err := telemetry.NewCounter(meter, telemetry.Instrument{
		Name:        "ledger_http_requests_total",
		Description: "Total number of ledger API requests",
		Unit:        "{request}",
	})
	if err != nil {
		return nil, err
	}
	duration, err := telemetry.NewHistogram(meter, telemetry.Instrument{
		Name:        "ledger_http_request_duration_seconds",
		Description: "Ledger API request latency in seconds",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		attrs := []attribute.KeyValue{
			attribute.String("method", c.Request.Method),
			attribute.String("route", route),
			attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
		}
		ctx := c.Request.Context()
		duration.Record(ctx, time.Since(start).Seconds(), attrs...)
		if tenantID := GetTenantID(c); tenantID != uuid.Nil {
			attrs = append(attrs, telemetry.AttrTenantID.String(tenantID.String()))
		}
		requests.Inc(ctx, attrs...)
	}, nil
}
