// Package telemetry exports traces, metrics and logs of the ledger service
// to an OTLP collector and offers the instruments the ledger records with.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Config describes the collector every signal is exported to
type Config struct {
	Enabled           bool
	CollectorEndpoint string
	Insecure          bool
	ServiceName       string
	ServiceVersion    string
	// SamplingRatio applies to root spans only
	SamplingRatio float64
	// ExportInterval is the metric push interval, 60s when zero
	ExportInterval time.Duration
}

// Providers bundles the three signal providers of one process
type Providers struct {
	Logs   *LoggerProvider
	Traces *TracerProvider
	Meters *MeterProvider
}

// Setup creates and installs the providers. With telemetry disabled every
// provider falls back to the global no-op implementation.
func Setup(ctx context.Context, cfg Config, logger *zap.Logger) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Providers{
		Logs:   &LoggerProvider{lifecycle: lifecycle{signal: "logs", logger: logger}},
		Traces: &TracerProvider{lifecycle: lifecycle{signal: "traces", logger: logger}},
		Meters: &MeterProvider{lifecycle: lifecycle{signal: "metrics", logger: logger}},
	}
	if !cfg.Enabled {
		logger.Info("Telemetry disabled, using no-op providers")
		return p, nil
	}

	res, err := serviceResource(cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return nil, err
	}
	if err := p.Logs.start(ctx, cfg, res); err != nil {
		return nil, err
	}
	if err := p.Traces.start(ctx, cfg, res); err != nil {
		return nil, errors.Join(err, p.Logs.Shutdown(ctx))
	}
	if err := p.Meters.start(ctx, cfg, res); err != nil {
		return nil, errors.Join(err, p.Traces.Shutdown(ctx), p.Logs.Shutdown(ctx))
	}

	logger.Info("OpenTelemetry initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.String("service_name", cfg.ServiceName),
		zap.Float64("sampling_ratio", cfg.SamplingRatio),
	)
	return p, nil
}

// Shutdown flushes and stops every provider. Metrics go first so their last
// export can still be traced and logged.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.Meters.Shutdown(ctx),
		p.Traces.Shutdown(ctx),
		p.Logs.Shutdown(ctx),
	)
}

// lifecycle is the shutdown bookkeeping shared by the providers
type lifecycle struct {
	signal   string
	logger   *zap.Logger
	shutdown func(context.Context) error
}

// IsEnabled reports whether the signal is exported
func (l *lifecycle) IsEnabled() bool {
	return l.shutdown != nil
}

// Shutdown flushes pending data and stops the exporter
func (l *lifecycle) Shutdown(ctx context.Context) error {
	if l.shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := l.shutdown(ctx); err != nil {
		l.logger.Error("Telemetry shutdown failed", zap.String("signal", l.signal), zap.Error(err))
		return fmt.Errorf("shutdown %s provider: %w", l.signal, err)
	}
	return nil
}

func serviceResource(name, version string) (*resource.Resource, error) {
	if version == "" {
		version = "dev"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(name),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}
