package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type ErrorCode string

const (
	ErrorInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrorUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrorConfig           ErrorCode = "CONFIG_ERROR"
	ErrorProvider         ErrorCode = "PROVIDER_ERROR"
	ErrorReportGeneration ErrorCode = "REPORT_GENERATION_ERROR"
	ErrorPersistence      ErrorCode = "PERSISTENCE_ERROR"
	ErrorNotification     ErrorCode = "NOTIFICATION_ERROR"
	ErrorInternal         ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or ErrorInternal.
func CodeOf(err error) ErrorCode {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code
	}
	return ErrorInternal
}

// providerError classifies a failed provider call. Deadline expiry keeps its own
// reason so timeouts are distinguishable in logs.
func providerError(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrorProvider, op+"_timeout", err)
	}
	return newError(ErrorProvider, op+"_error", err)
}

// ValidationErrors lists every problem found in a generated report.
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return "invalid report: " + strings.Join(v, "; ")
}
