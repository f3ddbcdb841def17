package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeUnavailable     ErrorCode = "UNAVAILABLE"
	CodeFailedPrecond   ErrorCode = "FAILED_PRECONDITION"
	CodeNotVisible      ErrorCode = "NOT_VISIBLE"
	CodeInternal        ErrorCode = "INTERNAL"
)

var (
	ErrCategoryNotFound   = errors.New("category not found")
	ErrToolNotFound       = errors.New("tool not found")
	ErrToolNotVisible     = errors.New("tool not enabled for session")
	ErrSessionUnavailable = errors.New("session context unavailable")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidCatalog     = errors.New("invalid tool catalog")
	ErrInvalidToolMode    = errors.New("invalid tool mode")
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
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

func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrInvalidCatalog), errors.Is(err, ErrInvalidToolMode):
		return CodeInvalidArgument, true
	case errors.Is(err, ErrCategoryNotFound), errors.Is(err, ErrToolNotFound), errors.Is(err, ErrSessionNotFound):
		return CodeNotFound, true
	case errors.Is(err, ErrToolNotVisible):
		return CodeNotVisible, true
	case errors.Is(err, ErrSessionUnavailable):
		return CodeUnavailable, true
	default:
		return "", false
	}
}

// VisibilityError is returned when a session dispatches a tool outside its visible set.
type VisibilityError struct {
	Tool    string
	Session string
}

func (e *VisibilityError) Error() string {
	return fmt.Sprintf("Tool '%s' is not enabled for your session. Use '%s' to enable the required tool category first.", e.Tool, ManageToolsName)
}

func (e *VisibilityError) Unwrap() error {
	return ErrToolNotVisible
}

// Hint is the follow-up suggestion shown to the agent with a visibility denial.
func (e *VisibilityError) Hint() string {
	return fmt.Sprintf("Try: %s(list_available_categories=true) to see available tool categories.", ManageToolsName)
}
