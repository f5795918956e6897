package errors

import (
	"fmt"
	"strings"
)

// MultiError collects multiple errors into one.
// Appending nil is a no-op, so results of optional operations can be appended directly.
type MultiError interface {
	error
	Len() int
	Append(errs ...error)
	AppendWithPrefix(err error, prefix string)
	AppendWithPrefixf(err error, format string, a ...any)
	WrappedErrors() []error
	ErrorOrNil() error
	Unwrap() []error
}

type multiError struct {
	errs []error
}

func NewMultiError(errs ...error) MultiError {
	e := &multiError{}
	e.Append(errs...)
	return e
}

func (e *multiError) Len() int {
	return len(e.errs)
}

func (e *multiError) Append(errs ...error) {
	for _, err := range errs {
		if err == nil {
			continue
		}
		if v, ok := err.(*multiError); ok {
			e.errs = append(e.errs, v.errs...)
		} else {
			e.errs = append(e.errs, err)
		}
	}
}

func (e *multiError) AppendWithPrefix(err error, prefix string) {
	if err != nil {
		e.Append(PrefixError(err, prefix))
	}
}

func (e *multiError) AppendWithPrefixf(err error, format string, a ...any) {
	e.AppendWithPrefix(err, fmt.Sprintf(format, a...))
}

func (e *multiError) WrappedErrors() []error {
	out := make([]error, len(e.errs))
	copy(out, e.errs)
	return out
}

func (e *multiError) ErrorOrNil() error {
	if len(e.errs) == 0 {
		return nil
	}
	return e
}

func (e *multiError) Unwrap() []error {
	return e.errs
}

func (e *multiError) Error() string {
	switch len(e.errs) {
	case 0:
		return ""
	case 1:
		return e.errs[0].Error()
	default:
		var out strings.Builder
		out.WriteString(fmt.Sprintf("%d errors occurred:", len(e.errs)))
		for _, err := range e.errs {
			for _, line := range strings.Split(err.Error(), "\n") {
				out.WriteString("\n  ")
				out.WriteString(line)
			}
		}
		return out.String()
	}
}
