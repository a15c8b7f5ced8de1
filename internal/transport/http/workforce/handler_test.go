package workforce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Additional-Code/shopfloor/internal/entity"
	server "github.com/Additional-Code/shopfloor/internal/server/http"
	"github.com/Additional-Code/shopfloor/internal/service/workersync"
	"github.com/Additional-Code/shopfloor/internal/service/workforce"
	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

type roster struct {
	open      map[int64]bool
	syncLimit int
	synced    string
}

func (r *roster) ResolveStatus(_ context.Context, id int64) (*workforce.WorkerStatus, error) {
	status := workforce.StatusOffline
	if r.open[id] {
		status = workforce.StatusAvailable
	}
	return &workforce.WorkerStatus{WorkerID: id, Status: status}, nil
}

func (r *roster) GetStatusSummary(context.Context) (*workforce.Summary, error) {
	return &workforce.Summary{Total: 2, Counts: map[string]int{workforce.StatusAvailable: 1, workforce.StatusOffline: 1}}, nil
}

func (r *roster) ClockIn(_ context.Context, id int64) (*entity.Attendance, error) {
	if r.open[id] {
		return nil, errorbank.Conflict("worker already clocked in")
	}
	r.open[id] = true
	return &entity.Attendance{ID: 1, CheckIn: time.Now()}, nil
}

func (r *roster) ClockOut(_ context.Context, id int64) (*entity.Attendance, error) {
	if !r.open[id] {
		return nil, errorbank.Unprocessable("worker is not clocked in")
	}
	r.open[id] = false
	return &entity.Attendance{ID: 1}, nil
}

func (r *roster) SyncWorkers(_ context.Context, limit int) (*workersync.Report, error) {
	r.syncLimit = limit
	return &workersync.Report{Fetched: 3, Created: 2, Updated: 1}, nil
}

func (r *roster) SyncWorker(_ context.Context, id string) (*entity.Worker, error) {
	r.synced = id
	return &entity.Worker{ID: 9, EmployeeCode: "E-" + id}, nil
}

func (r *roster) LastSync(context.Context) (*entity.SyncState, error) {
	return nil, errorbank.NotFound("worker sync has never run")
}

func newServer() (*echo.Echo, *roster) {
	e := echo.New()
	e.HTTPErrorHandler = server.ErrorHandler(zap.NewNop())
	e.Validator = server.NewValidator()
	r := &roster{open: map[int64]bool{}}
	Register(e, NewHandler(r, r))
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

func TestClockCycle(t *testing.T) {
	e, _ := newServer()

	assert.Contains(t, do(e, http.MethodGet, "/workers/3/status", "").Body.String(), `"status":"offline"`)
	assert.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/workers/3/clock-in", "").Code)
	assert.Equal(t, http.StatusConflict, do(e, http.MethodPost, "/workers/3/clock-in", "").Code)
	assert.Contains(t, do(e, http.MethodGet, "/workers/3/status", "").Body.String(), `"status":"available"`)
	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/workers/3/clock-out", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(e, http.MethodPost, "/workers/3/clock-out", "").Code)
}

func TestSummaryRouteIsNotAnID(t *testing.T) {
	e, _ := newServer()
	rec := do(e, http.MethodGet, "/workers/status/summary", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":2`)
}

func TestSync(t *testing.T) {
	e, r := newServer()

	rec := do(e, http.MethodPost, "/workers/sync", `{"limit":50}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, r.syncLimit)
	assert.Contains(t, rec.Body.String(), `"imported":3`)

	rec = do(e, http.MethodPost, "/workers/sync", `{"employee_id":"77"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "77", r.synced)

	assert.Equal(t, http.StatusUnprocessableEntity, do(e, http.MethodPost, "/workers/sync", `{"limit":-1}`).Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/workers/sync", "").Code)
}
