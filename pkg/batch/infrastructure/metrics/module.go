package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.uber.org/fx"

	config "github.com/selvaebi/eva-pipeline/pkg/batch/core/config"
	metrics "github.com/selvaebi/eva-pipeline/pkg/batch/core/metrics"
	logger "github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

// ObservabilityParams are the dependencies of the recorder and tracer providers.
type ObservabilityParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Metrics   config.MetricsConfig
	Tracing   config.TracingConfig
}

// ProvideMetricRecorder builds the recorders enabled in the configuration. With none
// enabled it returns a no-op recorder.
func ProvideMetricRecorder(p ObservabilityParams) (metrics.MetricRecorder, error) {
	var recorders []metrics.MetricRecorder

	if p.Metrics.Prometheus.Enabled {
		prom := NewPrometheusRecorder()
		recorders = append(recorders, prom)
		if p.Metrics.Prometheus.Address != "" {
			server := NewMetricsServer(p.Metrics.Prometheus.Address, p.Metrics.Prometheus.Path, prom)
			p.Lifecycle.Append(fx.Hook{OnStart: server.Start, OnStop: server.Stop})
		}
	}

	if p.Metrics.Otlp.Enabled {
		mp, err := NewMeterProvider(context.Background(), p.Metrics.Otlp, p.Tracing.ServiceName)
		if err != nil {
			return nil, err
		}
		p.Lifecycle.Append(fx.Hook{OnStop: mp.Shutdown})
		rec, err := NewOtelRecorder(mp)
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, rec)
	}

	switch len(recorders) {
	case 0:
		logger.Debugf("No metric recorder enabled.")
		return metrics.NewNoOpMetricRecorder(), nil
	case 1:
		return recorders[0], nil
	default:
		return metrics.NewCompositeMetricRecorder(recorders...), nil
	}
}

// ProvideTracer returns an OpenTelemetry tracer when tracing is enabled, a no-op one otherwise.
func ProvideTracer(p ObservabilityParams) (metrics.Tracer, error) {
	if !p.Tracing.Enabled {
		return metrics.NewNoOpTracer(), nil
	}
	tp, err := NewTracerProvider(context.Background(), p.Tracing)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	p.Lifecycle.Append(fx.Hook{OnStop: tp.Shutdown})
	logger.Infof("Tracing enabled, exporting to %s over %s.", p.Tracing.Otlp.Endpoint, p.Tracing.Otlp.Protocol)
	return NewOpenTelemetryTracer(tp), nil
}

// Module is an Fx module that provides the metrics.MetricRecorder and metrics.Tracer.
var Module = fx.Options(
	fx.Provide(ProvideMetricRecorder),
	fx.Provide(ProvideTracer),
)
