package exception

import (
	"errors"
	"fmt"
	"strings"

	crdberrors "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
)

// ValidationError reports invalid job parameters. It is raised before any step starts.
type ValidationError struct {
	JobName string
	cause   error
}

// NewValidationError wraps cause, which may carry operator hints, as a ValidationError.
func NewValidationError(jobName string, cause error) *ValidationError {
	return &ValidationError{JobName: jobName, cause: cause}
}

// InvalidParameter builds a parameter error carrying a hint for the operator.
func InvalidParameter(name, reason, hint string) error {
	err := crdberrors.Newf("parameter '%s' %s", name, reason)
	if hint != "" {
		err = crdberrors.WithHint(err, hint)
	}
	return err
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameters for job '%s': %v", e.JobName, e.cause)
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

// Hints returns the operator hints attached anywhere in the cause chain.
func (e *ValidationError) Hints() string {
	return strings.TrimSpace(strings.Join(collectHints(e.cause), "\n"))
}

// collectHints descends into aggregated errors, which FlattenHints does not traverse.
func collectHints(err error) []string {
	var me *multierror.Error
	if errors.As(err, &me) {
		var hints []string
		for _, wrapped := range me.WrappedErrors() {
			hints = append(hints, collectHints(wrapped)...)
		}
		return hints
	}
	if h := crdberrors.FlattenHints(err); h != "" {
		return []string{h}
	}
	return nil
}

// IsValidationError reports whether err is, or wraps, a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return crdberrors.As(err, &ve)
}
