package item

import (
	"errors"
	"fmt"

	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
)

// SkipLimitExceededException is the registered name of SkipLimitExceededError.
const SkipLimitExceededException = "SkipLimitExceededException"

// ErrSkipLimitExceeded is matched by every SkipLimitExceededError.
var ErrSkipLimitExceeded = errors.New(SkipLimitExceededException)

// ErrStepStopped is returned when the step context was cancelled; the step stopped at a chunk boundary.
var ErrStepStopped = errors.New("step stopped at chunk boundary")

func init() {
	exception.RegisterErrorType(SkipLimitExceededException, ErrSkipLimitExceeded)
}

// SkipLimitExceededError fails a step once more items were skipped than its limit allows.
type SkipLimitExceededError struct {
	Limit int
	Count int
	// Cause is the error of the skip that exceeded the limit.
	Cause error
}

func (e *SkipLimitExceededError) Error() string {
	return fmt.Sprintf("skip limit of %d exceeded (%d items skipped), last cause: %v", e.Limit, e.Count, e.Cause)
}

func (e *SkipLimitExceededError) Unwrap() error {
	return e.Cause
}

func (e *SkipLimitExceededError) Is(target error) bool {
	return target == ErrSkipLimitExceeded
}
