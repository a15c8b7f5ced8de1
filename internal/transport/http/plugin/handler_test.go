package plugin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/shopfloor/internal/entity"
	server "github.com/Additional-Code/shopfloor/internal/server/http"
	"github.com/Additional-Code/shopfloor/internal/service/plugin"
)

type registry struct {
	plugins map[string]*entity.Plugin
	payload json.RawMessage
}

func (r *registry) Register(_ context.Context, in plugin.RegisterInput) (*entity.Plugin, error) {
	p := &entity.Plugin{ID: int64(len(r.plugins) + 1), Name: in.Name, Version: in.Version, Dependencies: in.Dependencies}
	r.plugins[in.Name] = p
	return p, nil
}

func (r *registry) Activate(_ context.Context, name string) (*plugin.Result, error) {
	p := r.plugins[name]
	for _, dep := range p.Dependencies {
		if d, ok := r.plugins[dep]; !ok || !d.IsActive {
			return &plugin.Result{Success: false, Plugin: p, Reason: plugin.ReasonMissingDependency, Missing: []string{dep}}, nil
		}
	}
	p.IsActive = true
	return &plugin.Result{Success: true, Plugin: p}, nil
}

func (r *registry) Deactivate(_ context.Context, name string) (*plugin.Result, error) {
	p := r.plugins[name]
	p.IsActive = false
	return &plugin.Result{Success: true, Plugin: p}, nil
}

func (r *registry) RegisterHook(_ context.Context, name, hook, callback string, priority int) (*entity.PluginHook, error) {
	return &entity.PluginHook{PluginID: r.plugins[name].ID, Hook: hook, Callback: callback, Priority: priority}, nil
}

func (r *registry) ExecuteHook(_ context.Context, hook string, payload json.RawMessage) ([]plugin.Execution, error) {
	r.payload = payload
	return []plugin.Execution{{Plugin: "audit", Hook: hook, Callback: "onStage", Payload: payload}}, nil
}

func (r *registry) List(context.Context) ([]entity.Plugin, error) {
	var out []entity.Plugin
	for _, p := range r.plugins {
		out = append(out, *p)
	}
	return out, nil
}

func newServer() (*echo.Echo, *registry) {
	e := echo.New()
	e.HTTPErrorHandler = server.ErrorHandler(zap.NewNop())
	e.Validator = server.NewValidator()
	r := &registry{plugins: map[string]*entity.Plugin{}}
	Register(e, NewHandler(r))
	return e, r
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMissingDependencyIsSoftFailure(t *testing.T) {
	e, _ := newServer()

	require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/plugins", `{"name":"reports","version":"1.0.0","dependencies":["audit"]}`).Code)

	rec := do(e, http.MethodPost, "/plugins/reports/activate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reason":"missing_dependency"`)
	assert.Contains(t, rec.Body.String(), `"missing":["audit"]`)

	require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/plugins", `{"name":"audit","version":"0.1.0"}`).Code)
	require.Equal(t, http.StatusOK, do(e, http.MethodPost, "/plugins/audit/activate", "").Code)
	rec = do(e, http.MethodPost, "/plugins/reports/activate", "")
	assert.Contains(t, rec.Body.String(), `"is_active":true`)

	rec = do(e, http.MethodGet, "/plugins", "")
	assert.Contains(t, rec.Body.String(), `"count":2`)
}

func TestRegisterValidation(t *testing.T) {
	e, _ := newServer()
	rec := do(e, http.MethodPost, "/plugins", `{"version":"1.0.0"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name is required"`)
}

func TestHookRoutes(t *testing.T) {
	e, r := newServer()
	require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/plugins", `{"name":"audit","version":"1"}`).Code)

	assert.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/plugins/audit/hooks", `{"hook":"stage.advanced","callback":"onStage","priority":5}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(e, http.MethodPost, "/plugins/audit/hooks", `{"hook":"stage.advanced"}`).Code)

	rec := do(e, http.MethodPost, "/hooks/stage.advanced/execute", `{"order_id":4}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"order_id":4}`, string(r.payload))
	assert.Contains(t, rec.Body.String(), `"executed":1`)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/hooks/stage.advanced/execute", `{broken`).Code)
}
