package skip

import (
	"errors"

	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
)

// DefaultSkipLimit is the number of malformed records a loader step tolerates by default.
const DefaultSkipLimit = 50

// SkipPolicy classifies errors raised while reading or processing a single item.
// Counting skips against the limit is the chunk step's job.
type SkipPolicy interface {
	// IsSkippable reports whether err concerns only the current item.
	IsSkippable(err error) bool
	// GetSkipLimit returns the number of skips tolerated; one more fails the step.
	GetSkipLimit() int
}

// DefaultSkipPolicyFactory creates skip policies from step configuration.
type DefaultSkipPolicyFactory struct{}

// NewDefaultSkipPolicyFactory creates a new DefaultSkipPolicyFactory.
func NewDefaultSkipPolicyFactory() *DefaultSkipPolicyFactory {
	return &DefaultSkipPolicyFactory{}
}

// Create returns a policy treating errors matching skippableExceptions as skippable.
// A negative skipLimit is rejected.
func (f *DefaultSkipPolicyFactory) Create(skipLimit int, skippableExceptions []string) (SkipPolicy, error) {
	if skipLimit < 0 {
		return nil, exception.NewBatchErrorf("skip", "skip limit must not be negative, got %d", skipLimit)
	}
	return &LimitCheckingSkipPolicy{
		skipLimit:           skipLimit,
		skippableExceptions: append([]string(nil), skippableExceptions...),
	}, nil
}

// LimitCheckingSkipPolicy matches errors by registered name, message or type.
type LimitCheckingSkipPolicy struct {
	skipLimit           int
	skippableExceptions []string
}

// NewLimitCheckingSkipPolicy creates a policy without going through the factory.
func NewLimitCheckingSkipPolicy(skipLimit int, skippableExceptions ...string) *LimitCheckingSkipPolicy {
	return &LimitCheckingSkipPolicy{skipLimit: skipLimit, skippableExceptions: skippableExceptions}
}

// IsSkippable checks, in order, the BatchError skippable flag and the configured exception names.
func (p *LimitCheckingSkipPolicy) IsSkippable(err error) bool {
	if err == nil {
		return false
	}

	var be *exception.BatchError
	if errors.As(err, &be) && be.IsSkippable() {
		return true
	}

	for _, typeName := range p.skippableExceptions {
		if exception.IsErrorOfType(err, typeName) {
			return true
		}
	}
	return false
}

// GetSkipLimit returns the configured limit.
func (p *LimitCheckingSkipPolicy) GetSkipLimit() int {
	return p.skipLimit
}

// NeverSkipPolicy treats every error as fatal.
type NeverSkipPolicy struct{}

func (NeverSkipPolicy) IsSkippable(error) bool { return false }
func (NeverSkipPolicy) GetSkipLimit() int      { return 0 }
