package http

import (
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/shopfloor/internal/presentation/http/response"
	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zap.NewNop())
	e.Validator = NewValidator()
	e.Use(RequestContext(false))
	return e
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	e := newTestEcho()
	e.GET("/boom", func(c echo.Context) error {
		return errorbank.Conflict("station busy")
	})

	req := httptest.NewRequest(nethttp.MethodGet, "/boom", nil)
	req.Header.Set(response.HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, nethttp.StatusConflict, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(response.HeaderRequestID))
	var body response.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "req-42", body.RequestID)
	assert.Equal(t, "CONFLICT", body.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/boom", nil))
	assert.Len(t, rec.Header().Get(response.HeaderRequestID), 36)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	e := newTestEcho()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/nope", nil))

	assert.Equal(t, nethttp.StatusNotFound, rec.Code)
	var body response.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.Equal(t, "/nope", body.Details["path"])
}

func TestValidatorProducesFieldErrors(t *testing.T) {
	type payload struct {
		Quantity int `validate:"required,gt=0"`
	}
	err := NewValidator().Validate(payload{})
	require.Error(t, err)
	appErr := errorbank.From(err)
	assert.Equal(t, errorbank.KindValidation, appErr.Kind())
	assert.Equal(t, map[string]string{"quantity": "quantity is required"}, appErr.Details()["errors"])
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func TestHealthReportsDatabase(t *testing.T) {
	cases := []struct {
		name   string
		db     Pinger
		status int
		body   string
	}{
		{name: "no database", db: nil, status: nethttp.StatusOK, body: `{"status":"ok"}`},
		{name: "database up", db: fakePinger{}, status: nethttp.StatusOK, body: `{"status":"ok","database":"up"}`},
		{name: "database down", db: fakePinger{err: errors.New("dial tcp: refused")}, status: nethttp.StatusServiceUnavailable, body: `{"status":"degraded","database":"down"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEcho()
			e.GET("/health", Health(tc.db))

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/health", nil))

			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestRequestLoggerWritesOneLine(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := newTestEcho()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(nethttp.StatusNoContent) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/ping", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "http request", entry.Message)
	assert.Equal(t, int64(nethttp.StatusNoContent), entry.ContextMap()["status"])
	assert.NotEmpty(t, entry.ContextMap()["request_id"])
}
