package http

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Additional-Code/shopfloor/internal/presentation/http/response"
	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

// RequestContext assigns a request id and the diagnostic flag to every request.
func RequestContext(diagnostic bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(response.HeaderRequestID)
			if id == "" {
				id = req.Header.Get(response.HeaderCorrelationID)
			}
			if id == "" {
				id = uuid.NewString()
			}
			c.Set(response.RequestIDKey, id)
			c.Set(response.DiagnosticKey, diagnostic)
			c.Response().Header().Set(response.HeaderRequestID, id)
			return next(c)
		}
	}
}

// RequestLogger writes one zap line per request. Server errors log at warn.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", response.RequestID(c)),
			}
			if v.Status >= 500 {
				logger.Warn("http request", fields...)
				return nil
			}
			logger.Info("http request", fields...)
			return nil
		},
	})
}

// ErrorHandler renders every unhandled error through the response envelope.
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		appErr := response.Normalize(err)
		fields := []zap.Field{
			zap.Error(err),
			zap.String("path", c.Request().URL.Path),
			zap.String("request_id", response.RequestID(c)),
		}
		switch appErr.Kind() {
		case errorbank.KindStorage, errorbank.KindInternal:
			logger.Error("http request failed", fields...)
		default:
			logger.Debug("http request rejected", fields...)
		}
		if rerr := response.New(c).WithError(err).Build(); rerr != nil {
			logger.Warn("write error response", zap.Error(rerr))
		}
	}
}

// Validator adapts go-playground/validator to echo.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds the request validator.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate checks struct tags, returning a validation fault with per-field messages.
func (v *Validator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return errorbank.From(err)
	}
	return nil
}
