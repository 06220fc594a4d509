// Package errs holds the error kinds a turn can fail with.
package errs

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ValidationError rejects user input before anything is sent or recorded.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid prompt: %s", e.Reason)
}

// UpstreamError is a failed, timed out or malformed generation call.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("upstream error: %v", e.Err)
	}
	return fmt.Sprintf("%s upstream error: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ConfigurationError means a client could not be initialized. It is fatal for
// the session.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func Validation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func Upstream(provider string, err error) error {
	if err == nil {
		return nil
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return err
	}
	return &UpstreamError{Provider: provider, Err: err}
}

func Upstreamf(provider string, format string, args ...any) error {
	return &UpstreamError{Provider: provider, Err: errors.Newf(format, args...)}
}

func Configuration(err error) error {
	if err == nil {
		return nil
	}
	return &ConfigurationError{Err: err}
}

func Configurationf(format string, args ...any) error {
	return &ConfigurationError{Err: errors.Newf(format, args...)}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsUpstream(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// Kind names the error kind for display and logging.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return "validation"
	case IsConfiguration(err):
		return "configuration"
	case IsUpstream(err):
		return "upstream"
	default:
		return "internal"
	}
}
