package model

import "time"

// SkipPhase tells where a skipped item was rejected.
type SkipPhase string

const (
	SkipPhaseRead    SkipPhase = "READ"
	SkipPhaseProcess SkipPhase = "PROCESS"
)

// SkipRecord describes one item the step continued past.
type SkipRecord struct {
	// Item is the offending input. It is nil for read failures, where no item was produced.
	Item interface{}
	// Phase is READ or PROCESS.
	Phase SkipPhase
	// Classification is the registered error name the cause matched.
	Classification string
	// Position is the number of items read when the skip happened.
	Position int
	// Message is the error text.
	Message   string
	Err       error `json:"-"`
	Timestamp time.Time
}
