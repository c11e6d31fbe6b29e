// Package validator holds job parameter validators. Every failure is reported as an
// *exception.ValidationError carrying operator hints.
package validator

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	port "github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	exception "github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
)

// Func adapts a function to port.JobParametersValidator.
type Func func(params model.JobParameters) error

// Validate implements port.JobParametersValidator.
func (f Func) Validate(params model.JobParameters) error {
	return f(params)
}

// Composite runs every delegate and reports all failures together.
type Composite struct {
	jobName    string
	validators []port.JobParametersValidator
}

var _ port.JobParametersValidator = (*Composite)(nil)

// NewComposite creates a validator for jobName running delegates in order.
func NewComposite(jobName string, validators ...port.JobParametersValidator) *Composite {
	return &Composite{jobName: jobName, validators: validators}
}

// Validate returns nil or an *exception.ValidationError wrapping every delegate failure.
func (c *Composite) Validate(params model.JobParameters) error {
	var result *multierror.Error
	for _, v := range c.validators {
		if err := v.Validate(params); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if result == nil {
		return nil
	}
	result.ErrorFormat = joinErrors
	return exception.NewValidationError(c.jobName, result)
}

// Required fails when any of keys is missing or blank.
func Required(keys ...string) port.JobParametersValidator {
	return Func(func(params model.JobParameters) error {
		var result *multierror.Error
		for _, key := range keys {
			if blank(params, key) {
				result = multierror.Append(result, exception.InvalidParameter(key, "is required",
					fmt.Sprintf("pass it with --param %s=<value>", key)))
			}
		}
		if result != nil {
			result.ErrorFormat = joinErrors
		}
		return result.ErrorOrNil()
	})
}

func joinErrors(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// ReadableFile fails when key is set but does not name a readable regular file.
// Remote locations (gs://) are left to the storage adapter.
func ReadableFile(key string) port.JobParametersValidator {
	return Func(func(params model.JobParameters) error {
		path := stringValue(params, key)
		if path == "" || strings.Contains(path, "://") {
			return nil
		}
		info, err := os.Stat(path)
		if err != nil {
			return exception.InvalidParameter(key, fmt.Sprintf("points to an unreadable file %q", path),
				"check the path and the permissions of the input file")
		}
		if info.IsDir() {
			return exception.InvalidParameter(key, fmt.Sprintf("points to a directory %q", path), "pass a file, not a directory")
		}
		return nil
	})
}

// WritableDirectory fails when key is set but does not name an existing directory.
func WritableDirectory(key string) port.JobParametersValidator {
	return Func(func(params model.JobParameters) error {
		path := stringValue(params, key)
		if path == "" {
			return nil
		}
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			return exception.InvalidParameter(key, fmt.Sprintf("is not a directory: %q", path), "create the output directory first")
		}
		return nil
	})
}

// PositiveInt fails when key is set to anything but an integer greater than zero.
func PositiveInt(key string) port.JobParametersValidator {
	return intRange(key, 1, "must be a positive integer")
}

// NonNegativeInt fails when key is set to anything but an integer of at least zero.
func NonNegativeInt(key string) port.JobParametersValidator {
	return intRange(key, 0, "must be a non-negative integer")
}

func intRange(key string, min int, reason string) port.JobParametersValidator {
	return Func(func(params model.JobParameters) error {
		if _, ok := params.Params[key]; !ok {
			return nil
		}
		n, err := strconv.Atoi(stringValue(params, key))
		if err != nil || n < min {
			return exception.InvalidParameter(key, fmt.Sprintf("%s, got %v", reason, params.Get(key)), "")
		}
		return nil
	})
}

// Bool fails when key is set to anything strconv.ParseBool rejects.
func Bool(key string) port.JobParametersValidator {
	return Func(func(params model.JobParameters) error {
		if _, ok := params.Params[key]; !ok {
			return nil
		}
		if _, err := strconv.ParseBool(stringValue(params, key)); err != nil {
			return exception.InvalidParameter(key, fmt.Sprintf("must be true or false, got %v", params.Get(key)), "")
		}
		return nil
	})
}

// OneOf fails when key is set to a value outside allowed. The comparison ignores case.
func OneOf(key string, allowed ...string) port.JobParametersValidator {
	return Func(func(params model.JobParameters) error {
		if _, ok := params.Params[key]; !ok {
			return nil
		}
		value := stringValue(params, key)
		for _, a := range allowed {
			if strings.EqualFold(a, value) {
				return nil
			}
		}
		return exception.InvalidParameter(key, fmt.Sprintf("has unsupported value %q", value),
			"use one of "+strings.Join(allowed, ", "))
	})
}

func stringValue(params model.JobParameters, key string) string {
	v, ok := params.Params[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}

func blank(params model.JobParameters, key string) bool {
	return stringValue(params, key) == ""
}
