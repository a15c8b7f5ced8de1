package production

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/shopfloor/internal/entity"
	server "github.com/Additional-Code/shopfloor/internal/server/http"
	"github.com/Additional-Code/shopfloor/internal/service/production"
	"github.com/Additional-Code/shopfloor/internal/service/smartproduction"
	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

var stages = []string{"design", "cutting", "completed"}

type floor struct {
	order        entity.Order
	startedWith  [2]*int64
	lastHours    *decimal.Decimal
	started bool
}

func (f *floor) StartProduction(_ context.Context, orderID int64) ([]entity.OrderProductionTracking, error) {
	if f.started {
		return nil, errorbank.Conflict("production already started")
	}
	f.started = true
	return []entity.OrderProductionTracking{{ID: 1, OrderID: orderID, Status: "pending"}, {ID: 2, OrderID: orderID, Status: "pending"}}, nil
}

func (f *floor) StartStage(_ context.Context, trackingID int64, workerID, stationID *int64) (*entity.OrderProductionTracking, error) {
	f.startedWith = [2]*int64{workerID, stationID}
	return &entity.OrderProductionTracking{ID: trackingID, Status: "in_progress", WorkerID: workerID, StationID: stationID}, nil
}

func (f *floor) CompleteStage(_ context.Context, trackingID int64) (*entity.OrderProductionTracking, error) {
	return nil, errorbank.Unprocessable("stage is not in progress", errorbank.WithModel("tracking", trackingID))
}

func (f *floor) GetOrderProgress(_ context.Context, orderID int64) (*production.Progress, error) {
	return &production.Progress{OrderID: orderID, Total: 3, Completed: 1, Percentage: decimal.RequireFromString("33.33")}, nil
}

func (f *floor) StartSmartProduction(_ context.Context, orderID int64) (*smartproduction.StartResult, error) {
	f.order.ProductionStage = stages[0]
	return &smartproduction.StartResult{OrderID: orderID, Stage: stages[0]}, nil
}

func (f *floor) MoveToNextStage(_ context.Context, _ int64, hours *decimal.Decimal) (bool, error) {
	f.lastHours = hours
	if hours != nil && hours.IsNegative() {
		return false, errorbank.Validation("invalid hours", map[string]string{"completed_hours": "completed_hours must be at least 0"})
	}
	for i, s := range stages[:len(stages)-1] {
		if s == f.order.ProductionStage {
			f.order.ProductionStage = stages[i+1]
			return true, nil
		}
	}
	return false, nil
}

func (f *floor) Get(_ context.Context, id int64) (*entity.Order, error) {
	o := f.order
	o.ID = id
	return &o, nil
}

func newServer() (*echo.Echo, *floor) {
	e := echo.New()
	e.HTTPErrorHandler = server.ErrorHandler(zap.NewNop())
	e.Validator = server.NewValidator()
	f := &floor{}
	Register(e, NewHandler(f, f, f))
	return e, f
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

type nextStageBody struct {
	Data struct {
		Moved bool `json:"moved"`
		Order struct {
			ProductionStage string `json:"production_stage"`
		} `json:"order"`
	} `json:"data"`
}

func TestStageWalkThroughHTTP(t *testing.T) {
	e, f := newServer()

	rec := do(e, http.MethodPost, "/orders/5/smart-production/start", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(e, http.MethodPost, "/orders/5/stages/next", `{"completed_hours":"3.5"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body nextStageBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Data.Moved)
	assert.Equal(t, "cutting", body.Data.Order.ProductionStage)
	require.NotNil(t, f.lastHours)
	assert.Equal(t, "3.5", f.lastHours.String())

	require.Equal(t, http.StatusOK, do(e, http.MethodPost, "/orders/5/stages/next", "").Code)
	assert.Nil(t, f.lastHours)

	rec = do(e, http.MethodPost, "/orders/5/stages/next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = nextStageBody{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Data.Moved)
	assert.Equal(t, "completed", body.Data.Order.ProductionStage)
}

func TestNextStageRejectsNegativeHours(t *testing.T) {
	e, _ := newServer()
	rec := do(e, http.MethodPost, "/orders/5/stages/next", `{"completed_hours":-1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "completed_hours")
}

func TestTrackerRoutes(t *testing.T) {
	e, f := newServer()

	rec := do(e, http.MethodPost, "/orders/9/production/start", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stages":2`)
	assert.Equal(t, http.StatusConflict, do(e, http.MethodPost, "/orders/9/production/start", "").Code)

	rec = do(e, http.MethodPost, "/trackings/4/start", `{"worker_id":7,"station_id":2}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.startedWith[0])
	assert.Equal(t, int64(7), *f.startedWith[0])
	assert.Equal(t, int64(2), *f.startedWith[1])

	assert.Equal(t, http.StatusUnprocessableEntity, do(e, http.MethodPost, "/trackings/4/start", `{"worker_id":-3}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(e, http.MethodPost, "/trackings/4/complete", "").Code)

	rec = do(e, http.MethodGet, "/orders/9/production/progress", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"percentage":"33.33"`)
}
