package worker

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/Additional-Code/shopfloor/internal/database/dbtest"
	"github.com/Additional-Code/shopfloor/internal/entity"
)

func saveWorker(t *testing.T, repo *Repository, code, specialty string, active bool) *entity.Worker {
	t.Helper()
	w := &entity.Worker{EmployeeCode: code, Name: code, Specialty: specialty, HourlyRate: decimal.NewFromInt(20), IsActive: active}
	require.NoError(t, repo.Save(context.Background(), w))
	require.NotZero(t, w.ID)
	return w
}

func TestFindQualifiedOrdersByLoad(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))

	busy := saveWorker(t, repo, "C-1", "cutting", true)
	idle := saveWorker(t, repo, "C-2", "cutting", true)
	lightly := saveWorker(t, repo, "C-3", "cutting", true)
	saveWorker(t, repo, "C-4", "cutting", false)
	saveWorker(t, repo, "S-1", "sewing", true)

	for i, w := range []*entity.Worker{busy, busy, lightly} {
		require.NoError(t, repo.CreateTask(ctx, &entity.WorkerTask{WorkerID: w.ID, OrderID: int64(i + 1), Stage: "cutting", Status: entity.TaskInProgress}))
	}
	require.NoError(t, repo.CreateTask(ctx, &entity.WorkerTask{WorkerID: idle.ID, OrderID: 9, Stage: "cutting", Status: entity.TaskCompleted}))

	got, err := repo.FindQualified(ctx, "cutting")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{idle.ID, lightly.ID, busy.ID}, []int64{got[0].ID, got[1].ID, got[2].ID})

	none, err := repo.FindQualified(ctx, "embroidery")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveUpdatesByID(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))
	w := saveWorker(t, repo, "E-7", "design", true)

	w.Name = "Rosa Parra"
	w.IsActive = false
	require.NoError(t, repo.Save(ctx, w))

	got, err := repo.GetByCode(ctx, "E-7")
	require.NoError(t, err)
	assert.Equal(t, "Rosa Parra", got.Name)
	assert.False(t, got.IsActive)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = repo.GetByID(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteTasksClosesOnlyTheStage(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))
	w := saveWorker(t, repo, "D-1", "design", true)

	require.NoError(t, repo.CreateTask(ctx, &entity.WorkerTask{WorkerID: w.ID, OrderID: 1, Stage: "design", Status: entity.TaskInProgress}))
	require.NoError(t, repo.CreateTask(ctx, &entity.WorkerTask{WorkerID: w.ID, OrderID: 1, Stage: "design", Status: entity.TaskPending}))
	require.NoError(t, repo.CreateTask(ctx, &entity.WorkerTask{WorkerID: w.ID, OrderID: 1, Stage: "cutting", Status: entity.TaskInProgress}))

	n, err := repo.CompleteTasks(ctx, 1, "design", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.CompleteTasks(ctx, 1, "design", time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)

	busy, err := repo.HasTaskInStatus(ctx, w.ID, entity.TaskInProgress)
	require.NoError(t, err)
	assert.True(t, busy, "cutting task is still open")

	pending, err := repo.HasTaskInStatus(ctx, w.ID, entity.TaskPending)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestAttendanceForDayWindow(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))
	day := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)

	sessions := []time.Time{
		time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	for _, in := range sessions {
		require.NoError(t, repo.CreateAttendance(ctx, &entity.Attendance{WorkerCode: "E-7", Date: in, CheckIn: in}))
	}
	other := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateAttendance(ctx, &entity.Attendance{WorkerCode: "E-8", Date: other, CheckIn: other}))

	got, err := repo.AttendanceForDay(ctx, "E-7", day)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].CheckIn.Equal(sessions[2]), got[0].CheckIn.String())
	assert.True(t, got[1].CheckIn.Equal(sessions[1]), got[1].CheckIn.String())
	assert.True(t, got[0].Open())
}

func TestCloseAttendanceOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))
	in := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	a := &entity.Attendance{WorkerCode: "E-7", Date: in, CheckIn: in}
	require.NoError(t, repo.CreateAttendance(ctx, a))

	require.NoError(t, repo.CloseAttendance(ctx, a.ID, in.Add(8*time.Hour)))
	assert.ErrorIs(t, repo.CloseAttendance(ctx, a.ID, in.Add(9*time.Hour)), ErrNotFound)

	got, err := repo.AttendanceForDay(ctx, "E-7", in)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].CheckOut)
	assert.True(t, got[0].CheckOut.Equal(in.Add(8*time.Hour)))
}

func TestSaveSyncStateUpserts(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))

	_, err := repo.GetSyncState(ctx, "biometric")
	assert.ErrorIs(t, err, ErrNotFound)

	first := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveSyncState(ctx, &entity.SyncState{Job: "biometric", LastSyncedAt: &first, LastCount: 12}))

	second := first.Add(6 * time.Hour)
	require.NoError(t, repo.SaveSyncState(ctx, &entity.SyncState{Job: "biometric", LastSyncedAt: &second, LastCount: 3, LastError: "gateway timeout"}))

	got, err := repo.GetSyncState(ctx, "biometric")
	require.NoError(t, err)
	assert.Equal(t, 3, got.LastCount)
	assert.Equal(t, "gateway timeout", got.LastError)
	require.NotNil(t, got.LastSyncedAt)
	assert.True(t, got.LastSyncedAt.Equal(second))
}

func TestUpsertSyncStateMySQLSyntax(t *testing.T) {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	db := bun.NewDB(sqldb, mysqldialect.New())
	t.Cleanup(func() { _ = db.Close() })

	query := upsertSyncState(db, &entity.SyncState{Job: "biometric", LastCount: 1}).String()

	assert.Contains(t, query, "ON DUPLICATE KEY UPDATE last_synced_at = VALUES(last_synced_at), last_count = VALUES(last_count), last_error = VALUES(last_error), updated_at = VALUES(updated_at)")
	assert.NotContains(t, query, "EXCLUDED")
	assert.NotContains(t, query, "CONFLICT")
}

func TestUpsertSyncStateConflictSyntax(t *testing.T) {
	conns := dbtest.Open(t)

	query := upsertSyncState(conns.Writer, &entity.SyncState{Job: "biometric"}).String()

	assert.Contains(t, query, "ON CONFLICT (job) DO UPDATE SET last_synced_at = EXCLUDED.last_synced_at")
	assert.NotContains(t, query, "DUPLICATE KEY")
}
