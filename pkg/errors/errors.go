package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is a domain error carrying a stable code that handlers translate
// into an HTTP status and real-time error events.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches another *AppError by code, so errors.Is(err, ErrForbidden) works
// for any forbidden error regardless of its message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Constructors
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error {
	return New(CodeInvalidArgument, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func Forbidden(msg string) error {
	return New(CodeForbidden, msg)
}

func Unauthorized(msg string) error {
	return New(CodeUnauthenticated, msg)
}

func InvalidState(msg string) error {
	return New(CodeInvalidState, msg)
}

func PeerUnreachable(msg string) error {
	return New(CodePeerUnreachable, msg)
}

func AlreadyExists(msg string) error {
	return New(CodeAlreadyExists, msg)
}

func Internal(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound              = &AppError{Code: CodeNotFound}
	ErrForbidden             = &AppError{Code: CodeForbidden}
	ErrInvalidArgument       = &AppError{Code: CodeInvalidArgument}
	ErrInvalidState          = &AppError{Code: CodeInvalidState}
	ErrPeerUnreachable       = &AppError{Code: CodePeerUnreachable}
	ErrAlreadyFriends        = &AppError{Code: CodeAlreadyFriends, Message: "already friends"}
	ErrRequestAlreadyPending = &AppError{Code: CodeRequestAlreadyPending, Message: "friend request already pending"}
	ErrUnauthenticated       = &AppError{Code: CodeUnauthenticated}
	ErrAlreadyExists         = &AppError{Code: CodeAlreadyExists}
)

// CodeOf returns the code of the first AppError in err's chain.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// MessageOf returns a client-safe message for err.
func MessageOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		if appErr.Message != "" {
			return appErr.Message
		}
		return string(appErr.Code)
	}
	return "internal server error"
}
