package item

import (
	port "github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	metrics "github.com/selvaebi/eva-pipeline/pkg/batch/core/metrics"
	"github.com/selvaebi/eva-pipeline/pkg/batch/engine/step/completion"
	"github.com/selvaebi/eva-pipeline/pkg/batch/engine/step/skip"
)

// stepSettings holds the type-independent configuration of a ChunkStep.
type stepSettings struct {
	completionPolicy       port.CompletionPolicy
	skipPolicy             skip.SkipPolicy
	stepExecutionListeners []port.StepExecutionListener
	chunkListeners         []port.ChunkListener
	skipListeners          []port.SkipListener
	metricRecorder         metrics.MetricRecorder
	tracer                 metrics.Tracer
}

// Option configures a ChunkStep.
type Option func(*stepSettings)

func defaultSettings() stepSettings {
	return stepSettings{
		completionPolicy: &completion.SimpleCompletionPolicy{ChunkSize: completion.DefaultChunkSize},
		skipPolicy:       skip.NeverSkipPolicy{},
		metricRecorder:   metrics.NewNoOpMetricRecorder(),
		tracer:           metrics.NewNoOpTracer(),
	}
}

// WithChunkSize uses a SimpleCompletionPolicy of the given size.
func WithChunkSize(size int) Option {
	return func(s *stepSettings) {
		s.completionPolicy = &completion.SimpleCompletionPolicy{ChunkSize: size}
	}
}

// WithCompletionPolicy sets the chunk completion policy.
func WithCompletionPolicy(p port.CompletionPolicy) Option {
	return func(s *stepSettings) {
		s.completionPolicy = p
	}
}

// WithSkipPolicy sets the skip policy. Without one every item error is fatal.
func WithSkipPolicy(p skip.SkipPolicy) Option {
	return func(s *stepSettings) {
		s.skipPolicy = p
	}
}

// WithStepExecutionListeners registers step listeners.
func WithStepExecutionListeners(l ...port.StepExecutionListener) Option {
	return func(s *stepSettings) {
		s.stepExecutionListeners = append(s.stepExecutionListeners, l...)
	}
}

// WithChunkListeners registers chunk listeners.
func WithChunkListeners(l ...port.ChunkListener) Option {
	return func(s *stepSettings) {
		s.chunkListeners = append(s.chunkListeners, l...)
	}
}

// WithSkipListeners registers skip listeners.
func WithSkipListeners(l ...port.SkipListener) Option {
	return func(s *stepSettings) {
		s.skipListeners = append(s.skipListeners, l...)
	}
}

// WithMetricRecorder sets the metric recorder.
func WithMetricRecorder(r metrics.MetricRecorder) Option {
	return func(s *stepSettings) {
		if r != nil {
			s.metricRecorder = r
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t metrics.Tracer) Option {
	return func(s *stepSettings) {
		if t != nil {
			s.tracer = t
		}
	}
}
