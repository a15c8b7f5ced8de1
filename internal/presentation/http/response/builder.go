package response

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

// Builder helps construct consistent HTTP responses.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError records an error to be rendered.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta appends auxiliary metadata to the response.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// Build finalises and emits the HTTP response.
func (b *Builder) Build() error {
	if b.err != nil {
		return b.buildError()
	}
	return b.buildSuccess()
}

func (b *Builder) buildSuccess() error {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	payload := struct {
		Success bool           `json:"success"`
		Data    any            `json:"data,omitempty"`
		Meta    map[string]any `json:"meta,omitempty"`
	}{
		Success: true,
		Data:    b.data,
		Meta:    b.meta,
	}
	return b.ctx.JSON(b.status, payload)
}

func (b *Builder) buildError() error {
	appErr := Normalize(b.err)
	class := errorbank.Classify(appErr)
	status := b.status
	if status < 400 {
		status = class.Status
	}
	diagnostic := Diagnostic(b.ctx)

	message := appErr.Message()
	if (class.Kind == errorbank.KindStorage || class.Kind == errorbank.KindInternal) && !diagnostic {
		message = class.Message
	}

	payload := ErrorEnvelope{
		Success:    false,
		Error:      message,
		Code:       class.Code,
		StatusCode: status,
		Details:    BuildDetails(b.err, b.ctx.Request(), diagnostic),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RequestID:  RequestID(b.ctx),
		Meta:       b.meta,
	}
	return b.ctx.JSON(status, payload)
}

// ErrorEnvelope is the body of every failed response.
type ErrorEnvelope struct {
	Success    bool           `json:"success"`
	Error      string         `json:"error"`
	Code       string         `json:"code"`
	StatusCode int            `json:"status_code"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  string         `json:"timestamp"`
	RequestID  string         `json:"request_id,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}
