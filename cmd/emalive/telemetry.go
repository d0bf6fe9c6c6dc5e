package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/koscakluka/ema-live/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const serviceName = "emalive"

type telemetry struct {
	shutdown      func(context.Context) error
	metricHandler http.Handler
}

// setupTelemetry installs global trace, metric and log providers. The TUI
// owns stdout, so logs and stdout traces go to files.
func setupTelemetry(ctx context.Context, cfg config.TelemetryConfig) (*telemetry, error) {
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry resource: %w", err)
	}

	var closers []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	loggerProvider, logShutdown, err := initLogs(cfg, res)
	if err != nil {
		return nil, err
	}
	closers = append(closers, logShutdown)
	global.SetLoggerProvider(loggerProvider)

	traceProvider, traceShutdown, err := initTracer(ctx, cfg, res)
	if err != nil {
		return nil, errors.Join(err, shutdown(ctx))
	}
	closers = append(closers, traceShutdown)
	otel.SetTracerProvider(traceProvider)

	meterProvider, metricHandler := initMetrics(res)
	closers = append(closers, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	return &telemetry{shutdown: shutdown, metricHandler: metricHandler}, nil
}

func initLogs(cfg config.TelemetryConfig, res *resource.Resource) (*sdklog.LoggerProvider, func(context.Context) error, error) {
	writer, closeWriter, err := openSink(cfg.LogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	exporter, err := stdoutlog.New(stdoutlog.WithWriter(writer))
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("failed to create log exporter: %w", err), closeWriter())
	}

	processor := severityFilter{
		Processor: sdklog.NewBatchProcessor(exporter),
		min:       parseSeverity(cfg.LogLevel),
	}
	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(processor),
		sdklog.WithResource(res),
	)
	return provider, func(ctx context.Context) error {
		return errors.Join(provider.Shutdown(ctx), closeWriter())
	}, nil
}

func initTracer(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	if endpoint := strings.TrimSpace(cfg.OTLPEndpoint); endpoint != "" {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create otlp trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		logger.Info("telemetry initialized", slog.String("exporter", "otlp"), slog.String("endpoint", endpoint))
		return tp, tp.Shutdown, nil
	}

	if cfg.TraceFile == "" {
		tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
		return tp, tp.Shutdown, nil
	}

	writer, closeWriter, err := openSink(cfg.TraceFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(writer))
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("failed to create trace exporter: %w", err), closeWriter())
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	logger.Info("telemetry initialized", slog.String("exporter", "stdout"), slog.String("file", cfg.TraceFile))
	return tp, func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), closeWriter())
	}, nil
}

func initMetrics(res *resource.Resource) (*sdkmetric.MeterProvider, http.Handler) {
	promExporter, err := prometheus.New()
	if err != nil {
		logger.Warn("failed to initialize prometheus exporter", slog.String("error", err.Error()))
		return sdkmetric.NewMeterProvider(sdkmetric.WithResource(res)), nil
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
		sdkmetric.WithResource(res),
	)
	return provider, otelhttp.NewHandler(promhttp.Handler(), "metrics")
}

func openSink(path string) (io.Writer, func() error, error) {
	if path == "" {
		return io.Discard, func() error { return nil }, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return file, file.Close, nil
}

// severityFilter drops records below min before they reach the exporter.
type severityFilter struct {
	sdklog.Processor
	min otellog.Severity
}

func (f severityFilter) OnEmit(ctx context.Context, record *sdklog.Record) error {
	if record.Severity() < f.min {
		return nil
	}
	return f.Processor.OnEmit(ctx, record)
}

func parseSeverity(level string) otellog.Severity {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return otellog.SeverityDebug
	case "warn", "warning":
		return otellog.SeverityWarn
	case "error":
		return otellog.SeverityError
	default:
		return otellog.SeverityInfo
	}
}
