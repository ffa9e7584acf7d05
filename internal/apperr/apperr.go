// Package apperr defines the error kinds surfaced to users of the bot.
// Errors are wrapped with %w and classified with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrAccessDenied      = errors.New("access denied")
	ErrValidation        = errors.New("validation error")
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	ErrConfiguration     = errors.New("configuration error")
)

// Validation returns an ErrValidation carrying a formatted detail.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Remote wraps a transport fault as ErrRemoteUnavailable.
func Remote(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrRemoteUnavailable, op, err)
}

// Configuration returns an ErrConfiguration carrying a formatted detail.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
