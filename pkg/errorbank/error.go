package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"google.golang.org/grpc/codes"
)

// Kind enumerates supported application error categories.
type Kind string

const (
	KindBadRequest          Kind = "bad_request"
	KindConflict            Kind = "conflict"
	KindNotFound            Kind = "not_found"
	KindUnprocessableEntity Kind = "unprocessable_entity"
	KindValidation          Kind = "validation"
	KindUnauthenticated     Kind = "unauthenticated"
	KindUnauthorized        Kind = "unauthorized"
	KindRateLimited         Kind = "rate_limited"
	KindStorage             Kind = "storage"
	KindInternal            Kind = "internal"
)

const maxStackDepth = 32

// Frame is a single captured call site.
type Frame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// AppError captures rich error context shared across transports.
type AppError struct {
	kind    Kind
	message string
	details map[string]any
	query   string
	cause   error
	stack   []Frame
}

// Option mutates an AppError during construction.
type Option func(*AppError)

// WithCause attaches an underlying error.
func WithCause(err error) Option {
	return func(appErr *AppError) {
		appErr.cause = err
	}
}

// WithDetail adds a single named detail value.
func WithDetail(key string, value any) Option {
	return func(appErr *AppError) {
		if appErr.details == nil {
			appErr.details = make(map[string]any)
		}
		appErr.details[key] = value
	}
}

// WithDetails merges multiple detail values.
func WithDetails(details map[string]any) Option {
	return func(appErr *AppError) {
		if len(details) == 0 {
			return
		}
		if appErr.details == nil {
			appErr.details = make(map[string]any)
		}
		for k, v := range details {
			appErr.details[k] = v
		}
	}
}

// WithModel records which record lookup failed.
func WithModel(model string, id any) Option {
	return func(appErr *AppError) {
		WithDetail("model", model)(appErr)
		WithDetail("id", id)(appErr)
	}
}

// WithFieldErrors attaches per-field validation messages.
func WithFieldErrors(fields map[string]string) Option {
	return func(appErr *AppError) {
		if len(fields) == 0 {
			return
		}
		WithDetail("errors", fields)(appErr)
	}
}

// WithQuery keeps the SQL text that failed. It is never rendered outside diagnostic mode.
func WithQuery(query string) Option {
	return func(appErr *AppError) {
		appErr.query = query
	}
}

// New constructs a new AppError with the supplied kind and message.
func New(kind Kind, message string, opts ...Option) *AppError {
	if message == "" {
		message = string(kind)
	}
	appErr := &AppError{kind: kind, message: message, stack: captureStack()}
	for _, opt := range opts {
		opt(appErr)
	}
	return appErr
}

func captureStack() []Frame {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	stack := make([]Frame, 0, n)
	for {
		frame, more := frames.Next()
		if !strings.HasSuffix(frame.File, "/errorbank/error.go") {
			stack = append(stack, Frame{Function: frame.Function, File: frame.File, Line: frame.Line})
		}
		if !more {
			break
		}
	}
	return stack
}

// Error satisfies the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Kind returns the error category.
func (e *AppError) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

// Message returns the human-readable message.
func (e *AppError) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Details returns optional metadata about the error.
func (e *AppError) Details() map[string]any {
	if e == nil {
		return nil
	}
	return e.details
}

// Query returns the failing SQL text, if any.
func (e *AppError) Query() string {
	if e == nil {
		return ""
	}
	return e.query
}

// Stack returns the call sites captured when the error was built.
func (e *AppError) Stack() []Frame {
	if e == nil {
		return nil
	}
	return e.stack
}

// Origin returns the file and line where the error was built.
func (e *AppError) Origin() (string, int) {
	if e == nil || len(e.stack) == 0 {
		return "", 0
	}
	return e.stack[0].File, e.stack[0].Line
}

// StatusCode resolves the HTTP status for the error kind.
func (e *AppError) StatusCode() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	return lookup(e.kind).Status
}

// GRPCCode maps the error kind onto a gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if e == nil {
		return codes.Internal
	}
	switch e.kind {
	case KindBadRequest, KindValidation:
		return codes.InvalidArgument
	case KindConflict:
		return codes.AlreadyExists
	case KindNotFound:
		return codes.NotFound
	case KindUnprocessableEntity:
		return codes.FailedPrecondition
	case KindUnauthenticated:
		return codes.Unauthenticated
	case KindUnauthorized:
		return codes.PermissionDenied
	case KindRateLimited:
		return codes.ResourceExhausted
	case KindStorage:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// BadRequest constructs a 400 error.
func BadRequest(message string, opts ...Option) *AppError {
	return New(KindBadRequest, message, opts...)
}

// Conflict constructs a 409 error.
func Conflict(message string, opts ...Option) *AppError {
	return New(KindConflict, message, opts...)
}

// NotFound constructs a 404 error.
func NotFound(message string, opts ...Option) *AppError {
	return New(KindNotFound, message, opts...)
}

// Unprocessable constructs a 422 error.
func Unprocessable(message string, opts ...Option) *AppError {
	return New(KindUnprocessableEntity, message, opts...)
}

// Validation constructs a 422 error carrying per-field messages.
func Validation(message string, fields map[string]string, opts ...Option) *AppError {
	return New(KindValidation, message, append([]Option{WithFieldErrors(fields)}, opts...)...)
}

// Unauthenticated constructs a 401 error.
func Unauthenticated(message string, opts ...Option) *AppError {
	return New(KindUnauthenticated, message, opts...)
}

// Unauthorized constructs a 403 error.
func Unauthorized(message string, opts ...Option) *AppError {
	return New(KindUnauthorized, message, opts...)
}

// RateLimited constructs a 429 error.
func RateLimited(message string, opts ...Option) *AppError {
	return New(KindRateLimited, message, opts...)
}

// Storage constructs a 500 error for database faults.
func Storage(message string, opts ...Option) *AppError {
	return New(KindStorage, message, opts...)
}

// Internal constructs a generic 500 error.
func Internal(message string, opts ...Option) *AppError {
	return New(KindInternal, message, opts...)
}

// From returns an AppError for any error input, wrapping unexpected values.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if mapped := fromForeign(err); mapped != nil {
		return mapped
	}
	return Internal("internal error", WithCause(err))
}
