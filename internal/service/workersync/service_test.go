package workersync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/shopfloor/internal/biometric"
	"github.com/Additional-Code/shopfloor/internal/config"
	"github.com/Additional-Code/shopfloor/internal/entity"
	workerrepo "github.com/Additional-Code/shopfloor/internal/repository/worker"
	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

type gateway struct {
	employees []biometric.Employee
	err       error
}

func (g *gateway) GetEmployees(_ context.Context, limit int) ([]biometric.Employee, error) {
	if g.err != nil {
		return nil, g.err
	}
	if limit > 0 && limit < len(g.employees) {
		return g.employees[:limit], nil
	}
	return g.employees, nil
}

func (g *gateway) GetEmployee(_ context.Context, id string) (*biometric.Employee, error) {
	for _, e := range g.employees {
		if e.ID.Value() == id {
			return &e, nil
		}
	}
	return nil, biometric.ErrEmployeeNotFound
}

type store struct {
	workers map[string]entity.Worker
	states  map[string]entity.SyncState
	nextID  int64
	failOn  string
}

func newStore() *store {
	return &store{workers: map[string]entity.Worker{}, states: map[string]entity.SyncState{}}
}

func (s *store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	workers := make(map[string]entity.Worker, len(s.workers))
	for k, v := range s.workers {
		workers[k] = v
	}
	states := make(map[string]entity.SyncState, len(s.states))
	for k, v := range s.states {
		states[k] = v
	}
	if err := fn(ctx); err != nil {
		s.workers, s.states = workers, states
		return err
	}
	return nil
}

func (s *store) GetByCode(_ context.Context, code string) (*entity.Worker, error) {
	w, ok := s.workers[code]
	if !ok {
		return nil, workerrepo.ErrNotFound
	}
	return &w, nil
}

func (s *store) Save(_ context.Context, w *entity.Worker) error {
	if w.EmployeeCode == s.failOn {
		return errorbank.Storage("insert worker failed")
	}
	if w.ID == 0 {
		s.nextID++
		w.ID = s.nextID
	}
	s.workers[w.EmployeeCode] = *w
	return nil
}

func (s *store) GetSyncState(_ context.Context, job string) (*entity.SyncState, error) {
	st, ok := s.states[job]
	if !ok {
		return nil, workerrepo.ErrNotFound
	}
	return &st, nil
}

func (s *store) SaveSyncState(_ context.Context, st *entity.SyncState) error {
	s.states[st.Job] = *st
	return nil
}

func newTestService(src Source, st *store) *Service {
	cfg := config.Config{Payroll: config.Payroll{
		HourlyRate:    decimal.RequireFromString("5.00"),
		OvertimeRate:  decimal.RequireFromString("7.50"),
		HoursPerDay:   8,
		HoursPerWeek:  40,
		HoursPerMonth: 160,
	}}
	svc := NewService(Params{Source: src, Workers: st, Transactor: st, Config: cfg})
	svc.now = func() time.Time { return time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestSyncWorkersCreatesAndUpdates(t *testing.T) {
	st := newStore()
	st.workers["E-1"] = entity.Worker{ID: 1, EmployeeCode: "E-1", Name: "Old Name", HourlyRate: decimal.NewFromInt(12), IsActive: true}
	st.nextID = 1

	src := &gateway{employees: []biometric.Employee{
		{Code: biometric.Text("E-1"), Name: biometric.Text("Ana Ruiz"), Role: biometric.Text("Cutting")},
		{ID: biometric.Text("2"), Name: biometric.Object(map[string]any{"first_name": "Luis", "last_name": "Mora"}), Role: biometric.Text("Sewing")},
		{Name: biometric.Text("no code")},
	}}
	svc := newTestService(src, st)

	report, err := svc.SyncWorkers(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Updated)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, 2, report.Skipped[0].Index)

	updated := st.workers["E-1"]
	assert.Equal(t, "Ana Ruiz", updated.Name)
	assert.Equal(t, "cutting", updated.Specialty)
	assert.True(t, updated.HourlyRate.Equal(decimal.NewFromInt(12)), "existing pay rate is kept")

	created := st.workers["2"]
	assert.Equal(t, "Luis Mora", created.Name)
	assert.True(t, created.HourlyRate.Equal(decimal.RequireFromString("5.00")))
	assert.Equal(t, 160, created.StandardHoursMonth)

	state := st.states[JobName]
	assert.Equal(t, 2, state.LastCount)
	require.NotNil(t, state.LastSyncedAt)
	assert.Empty(t, state.LastError)
}

func TestSyncWorkersRollsBackOnStorageFault(t *testing.T) {
	st := newStore()
	st.failOn = "B"
	src := &gateway{employees: []biometric.Employee{
		{Code: biometric.Text("A"), Name: biometric.Text("A")},
		{Code: biometric.Text("B"), Name: biometric.Text("B")},
	}}
	svc := newTestService(src, st)

	_, err := svc.SyncWorkers(context.Background(), 0)
	require.Error(t, err)
	assert.Empty(t, st.workers)
	assert.Empty(t, st.states)
}

func TestSyncWorkersRecordsSourceFailure(t *testing.T) {
	st := newStore()
	svc := newTestService(&gateway{err: errors.New("connection refused")}, st)

	_, err := svc.SyncWorkers(context.Background(), 10)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindInternal, errorbank.From(err).Kind())
	assert.Equal(t, "connection refused", st.states[JobName].LastError)

	_, err = svc.LastSync(context.Background())
	require.NoError(t, err)
}

func TestSyncWorker(t *testing.T) {
	st := newStore()
	src := &gateway{employees: []biometric.Employee{
		{ID: biometric.Text("7"), Code: biometric.Text("E-7"), Name: biometric.Text("Mia")},
	}}
	svc := newTestService(src, st)

	w, err := svc.SyncWorker(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "E-7", w.EmployeeCode)
	assert.NotZero(t, w.ID)

	_, err = svc.SyncWorker(context.Background(), "99")
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestLastSyncBeforeFirstRun(t *testing.T) {
	svc := newTestService(&gateway{}, newStore())
	_, err := svc.LastSync(context.Background())
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}
