package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

// Context keys populated by the HTTP middleware.
const (
	RequestIDKey  = "request_id"
	DiagnosticKey = "diagnostic"
)

// Request id headers, in lookup order.
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

const maxTraceFrames = 5

// Normalize converts any error, including echo's own, into an AppError.
func Normalize(err error) *errorbank.AppError {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg := http.StatusText(httpErr.Code)
		if s, ok := httpErr.Message.(string); ok && s != "" {
			msg = s
		}
		return errorbank.New(errorbank.KindForStatus(httpErr.Code), msg, errorbank.WithCause(err))
	}
	return errorbank.From(err)
}

// BuildDetails collects the request and fault context rendered under "details".
// Internals (SQL text, origin, call stack) are only included in diagnostic mode.
func BuildDetails(err error, req *http.Request, diagnostic bool) map[string]any {
	appErr := Normalize(err)
	details := map[string]any{}
	if req != nil {
		details["path"] = req.URL.Path
		details["method"] = req.Method
	}

	for k, v := range appErr.Details() {
		details[k] = v
	}

	if appErr.Kind() == errorbank.KindStorage {
		if code := errorbank.SQLCode(err); code != "" {
			details["sql_code"] = code
		}
		if diagnostic && appErr.Query() != "" {
			details["query"] = appErr.Query()
		}
	}

	if diagnostic {
		if file, line := appErr.Origin(); file != "" {
			details["file"] = file
			details["line"] = line
		}
		stack := appErr.Stack()
		if len(stack) > maxTraceFrames {
			stack = stack[:maxTraceFrames]
		}
		if len(stack) > 0 {
			trace := make([]string, 0, len(stack))
			for _, f := range stack {
				trace = append(trace, fmt.Sprintf("%s:%d %s", f.File, f.Line, f.Function))
			}
			details["trace"] = trace
		}
		if cause := errors.Unwrap(appErr); cause != nil {
			details["cause"] = cause.Error()
		}
	}
	return details
}

// RequestID returns the id assigned to the request by the middleware, or the
// inbound header when the middleware did not run.
func RequestID(c echo.Context) string {
	if id, ok := c.Get(RequestIDKey).(string); ok && id != "" {
		return id
	}
	if id := c.Request().Header.Get(HeaderRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(HeaderCorrelationID)
}

// Diagnostic reports whether the request may expose internals.
func Diagnostic(c echo.Context) bool {
	d, _ := c.Get(DiagnosticKey).(bool)
	return d
}
