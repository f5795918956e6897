// Package errors provides error handling helpers used across the project,
// the standard Is/As/Unwrap semantics are preserved.
package errors

import (
	"errors"
	"fmt"
)

func New(text string) error {
	return errors.New(text)
}

func Errorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// PrefixError wraps the error with a prefix message, the original error is preserved for Is/As.
func PrefixError(err error, prefix string) error {
	return fmt.Errorf("%s: %w", prefix, err)
}

func PrefixErrorf(err error, format string, a ...any) error {
	return PrefixError(err, fmt.Sprintf(format, a...))
}
