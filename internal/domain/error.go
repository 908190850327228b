package domain

import (
	"context"
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeInvalidArgument  ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeUnavailable      ErrorCode = "UNAVAILABLE"
	CodeFailedPrecond    ErrorCode = "FAILED_PRECONDITION"
	CodeUnauthenticated  ErrorCode = "UNAUTHENTICATED"
	CodeInternal         ErrorCode = "INTERNAL"
	CodeCanceled         ErrorCode = "CANCELED"
	CodeDeadlineExceeded ErrorCode = "DEADLINE_EXCEEDED"
)

var (
	ErrConnectionFailed  = errors.New("connection failed")
	ErrNotConnected      = errors.New("tool not connected")
	ErrUnknownTool       = errors.New("unknown tool")
	ErrProbeTimeout      = errors.New("health probe timed out")
	ErrProbeFailure      = errors.New("health probe failed")
	ErrAuthExpired       = errors.New("credentials expired")
	ErrTransient         = errors.New("transient network error")
	ErrInvalidTransition = errors.New("invalid connection transition")
	ErrOperationPanicked = errors.New("operation panicked")
)

type Error struct {
	Code      ErrorCode
	Op        string
	Message   string
	Cause     error
	Retryable bool
	Meta      map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:      existing.Code,
			Op:        op,
			Message:   existing.Message,
			Cause:     existing.Cause,
			Retryable: existing.Retryable,
			Meta:      existing.Meta,
		}
	}
	return E(code, op, "", err)
}

// ConnectionError reports a failed connect for toolID. It stays retryable unless
// the cause is a credential or catalog problem.
func ConnectionError(toolID string, cause error) *Error {
	if cause == nil {
		cause = ErrConnectionFailed
	}
	if !errors.Is(cause, ErrConnectionFailed) && !errors.Is(cause, ErrAuthExpired) && !errors.Is(cause, ErrUnknownTool) {
		cause = fmt.Errorf("%w: %w", ErrConnectionFailed, cause)
	}
	code, ok := CodeFrom(cause)
	if !ok {
		code = CodeUnavailable
	}
	return &Error{
		Code:      code,
		Op:        "connect",
		Message:   fmt.Sprintf("%s: %s", toolID, cause.Error()),
		Cause:     cause,
		Retryable: ClassifyFailure(cause).Retryable(),
		Meta:      map[string]string{"toolId": toolID},
	}
}

// NotConnectedError reports an operation attempted on a tool that is not connected.
func NotConnectedError(op, toolID string) *Error {
	return &Error{
		Code:    CodeFailedPrecond,
		Op:      op,
		Message: fmt.Sprintf("%s: %s", toolID, ErrNotConnected.Error()),
		Cause:   ErrNotConnected,
		Meta:    map[string]string{"toolId": toolID},
	}
}

// UnknownToolError reports a tool id missing from the catalog.
func UnknownToolError(toolID string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s: %q", ErrUnknownTool.Error(), toolID),
		Cause:   ErrUnknownTool,
		Meta:    map[string]string{"toolId": toolID},
	}
}

func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrUnknownTool):
		return CodeNotFound, true
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrInvalidTransition):
		return CodeFailedPrecond, true
	case errors.Is(err, ErrAuthExpired):
		return CodeUnauthenticated, true
	case errors.Is(err, ErrProbeTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeDeadlineExceeded, true
	case errors.Is(err, context.Canceled):
		return CodeCanceled, true
	case errors.Is(err, ErrConnectionFailed), errors.Is(err, ErrProbeFailure), errors.Is(err, ErrTransient):
		return CodeUnavailable, true
	case errors.Is(err, ErrOperationPanicked):
		return CodeInternal, true
	default:
		return "", false
	}
}

// IsRetryable reports whether the engine may retry the failed operation.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Retryable
	}
	return ClassifyFailure(err).Retryable()
}

// ClassifyFailure maps an error onto a FailureKind.
func ClassifyFailure(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrAuthExpired):
		return FailureAuthExpired
	case errors.Is(err, ErrUnknownTool):
		return FailureMisconfigured
	case errors.Is(err, ErrProbeTimeout), errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, ErrTransient), errors.Is(err, ErrConnectionFailed), errors.Is(err, ErrProbeFailure):
		return FailureTransient
	default:
		return FailureUnknown
	}
}
