package production

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/shopfloor/internal/database"
	"github.com/Additional-Code/shopfloor/internal/database/dbtest"
	"github.com/Additional-Code/shopfloor/internal/entity"
)

func seedStages(t *testing.T, conns *database.Connections) []entity.ProductionStage {
	t.Helper()
	stages := []entity.ProductionStage{
		{Name: "cutting", OrderIndex: 2, EstimatedHours: decimal.NewFromInt(3), IsActive: true},
		{Name: "design", OrderIndex: 1, EstimatedHours: decimal.NewFromInt(2), IsActive: true},
		{Name: "embroidery", OrderIndex: 3, EstimatedHours: decimal.NewFromInt(4), IsActive: false},
	}
	_, err := conns.Writer.NewInsert().Model(&stages).Exec(context.Background())
	require.NoError(t, err)
	return stages
}

func seedTrackings(t *testing.T, repo *Repository, orderID int64, stages []entity.ProductionStage) {
	t.Helper()
	rows := make([]entity.OrderProductionTracking, 0, len(stages))
	for _, s := range stages {
		rows = append(rows, entity.OrderProductionTracking{
			OrderID: orderID, StageID: s.ID, StageName: s.Name,
			Status: entity.TrackingPending, EstimatedHours: s.EstimatedHours,
		})
	}
	require.NoError(t, repo.CreateTrackings(context.Background(), rows))
}

func TestActiveStagesInProductionOrder(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	repo := NewRepository(conns)
	seeded := seedStages(t, conns)

	stages, err := repo.ActiveStages(ctx)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "design", stages[0].Name)
	assert.Equal(t, "cutting", stages[1].Name)

	got, err := repo.GetStage(ctx, seeded[2].ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = repo.GetStage(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTrackingGuardsStatus(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	repo := NewRepository(conns)
	stages := seedStages(t, conns)
	seedTrackings(t, repo, 1, stages[:2])

	row, err := repo.FindTrackingByStage(ctx, 1, "design")
	require.NoError(t, err)
	assert.Equal(t, entity.TrackingPending, row.Status)

	started := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	worker := int64(5)
	row.Status = entity.TrackingInProgress
	row.StartedAt = &started
	row.WorkerID = &worker
	require.NoError(t, repo.UpdateTracking(ctx, row, entity.TrackingPending))

	row.Status = entity.TrackingCompleted
	assert.ErrorIs(t, repo.UpdateTracking(ctx, row, entity.TrackingPending), ErrNotFound, "row already left pending")

	got, err := repo.GetTracking(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TrackingInProgress, got.Status)
	require.NotNil(t, got.WorkerID)
	assert.Equal(t, worker, *got.WorkerID)

	require.NoError(t, repo.UpdateTracking(ctx, row, entity.TrackingInProgress))
	got, err = repo.GetTracking(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TrackingCompleted, got.Status)

	_, err = repo.FindTrackingByStage(ctx, 1, "sewing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountOpenTrackings(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	repo := NewRepository(conns)
	stages := seedStages(t, conns)
	seedTrackings(t, repo, 1, stages)
	seedTrackings(t, repo, 2, stages[:1])

	n, err := repo.CountOpenTrackings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := repo.ListTrackings(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	first := rows[0]
	first.Status = entity.TrackingCompleted
	require.NoError(t, repo.UpdateTracking(ctx, &first, entity.TrackingPending))

	n, err = repo.CountOpenTrackings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.CountOpenTrackings(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, repo.CreateTrackings(ctx, nil))
}

func TestStationStatus(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	repo := NewRepository(conns)

	st := &entity.Station{Name: "press-1", Status: entity.StationAvailable}
	_, err := conns.Writer.NewInsert().Model(st).Exec(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.SetStationStatus(ctx, st.ID, entity.StationBusy))
	got, err := repo.GetStation(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StationBusy, got.Status)

	assert.ErrorIs(t, repo.SetStationStatus(ctx, 404, entity.StationBusy), ErrNotFound)
	_, err = repo.GetStation(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}
