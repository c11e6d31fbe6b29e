package logging

import "go.uber.org/fx"

// Listeners groups the logging listeners attached to every job and step.
type Listeners struct {
	Job   *LoggingJobListener
	Step  *LoggingStepListener
	Chunk *LoggingChunkListener
	Skip  *LoggingSkipListener
}

// NewListeners creates one listener of each kind.
func NewListeners() Listeners {
	return Listeners{
		Job:   NewLoggingJobListener(),
		Step:  NewLoggingStepListener(),
		Chunk: NewLoggingChunkListener(),
		Skip:  NewLoggingSkipListener(),
	}
}

// Module provides Listeners.
var Module = fx.Provide(NewListeners)
