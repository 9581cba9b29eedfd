package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const defaultExportInterval = 60 * time.Second

// MeterProvider pushes metrics over OTLP gRPC on a fixed interval
type MeterProvider struct {
	lifecycle
	provider *sdkmetric.MeterProvider
}

func (mp *MeterProvider) start(ctx context.Context, cfg Config, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}
	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	mp.shutdown = mp.provider.Shutdown
	otel.SetMeterProvider(mp.provider)
	return nil
}

// Meter returns a named meter, from the global provider when disabled
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// Instrument names and describes one metric instrument
type Instrument struct {
	Name        string
	Description string
	Unit        string
	// Boundaries overrides the default histogram buckets
	Boundaries []float64
}

// Counter counts monotonically increasing events
type Counter struct {
	counter metric.Int64Counter
}

func NewCounter(meter metric.Meter, in Instrument) (*Counter, error) {
	c, err := meter.Int64Counter(in.Name, metric.WithDescription(in.Description), metric.WithUnit(in.Unit))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", in.Name, err)
	}
	return &Counter{counter: c}, nil
}

func (c *Counter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, n, metric.WithAttributes(attrs...))
}

func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

// Histogram records a float64 distribution
type Histogram struct {
	histogram metric.Float64Histogram
}

func NewHistogram(meter metric.Meter, in Instrument) (*Histogram, error) {
	opts := []metric.Float64HistogramOption{metric.WithDescription(in.Description), metric.WithUnit(in.Unit)}
	if len(in.Boundaries) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(in.Boundaries...))
	}
	h, err := meter.Float64Histogram(in.Name, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", in.Name, err)
	}
	return &Histogram{histogram: h}, nil
}

func (h *Histogram) Record(ctx context.Context, v float64, attrs ...attribute.KeyValue) {
	h.histogram.Record(ctx, v, metric.WithAttributes(attrs...))
}

// Gauge records the latest observed value of N
type Gauge[N int64 | float64] struct {
	record func(context.Context, N, ...metric.RecordOption)
}

// NewGauge creates an int64 gauge
func NewGauge(meter metric.Meter, in Instrument) (*Gauge[int64], error) {
	g, err := meter.Int64Gauge(in.Name, metric.WithDescription(in.Description), metric.WithUnit(in.Unit))
	if err != nil {
		return nil, fmt.Errorf("failed to create gauge %s: %w", in.Name, err)
	}
	return &Gauge[int64]{record: g.Record}, nil
}

// NewFloatGauge creates a float64 gauge
func NewFloatGauge(meter metric.Meter, in Instrument) (*Gauge[float64], error) {
	g, err := meter.Float64Gauge(in.Name, metric.WithDescription(in.Description), metric.WithUnit(in.Unit))
	if err != nil {
		return nil, fmt.Errorf("failed to create gauge %s: %w", in.Name, err)
	}
	return &Gauge[float64]{record: g.Record}, nil
}

func (g *Gauge[N]) Record(ctx context.Context, v N, attrs ...attribute.KeyValue) {
	g.record(ctx, v, metric.WithAttributes(attrs...))
}

// Attribute keys shared by ledger metrics.
var (
	AttrTenantID     = attribute.Key("tenant_id")
	AttrWarehouseID  = attribute.Key("warehouse_id")
	AttrMovementType = attribute.Key("movement_type")
	AttrOperation    = attribute.Key("operation")
	AttrErrorCode    = attribute.Key("error_code")
	AttrReason       = attribute.Key("reason")
)

// QuantityBuckets are bucket boundaries for posted movement quantities.
var QuantityBuckets = []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000}

// CostBuckets are bucket boundaries for absolute adjustment cost impact.
var CostBuckets = []float64{10, 100, 1000, 10000, 100000, 1000000}

// HTTPDurationBuckets are bucket boundaries in seconds for API latency.
var HTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
