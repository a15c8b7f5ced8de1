package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/shopfloor/internal/database"
	"github.com/Additional-Code/shopfloor/internal/database/dbtest"
	"github.com/Additional-Code/shopfloor/internal/entity"
)

func seedMaterial(t *testing.T, conns *database.Connections, qty int64, active bool) *entity.Material {
	t.Helper()
	m := &entity.Material{Name: "wool", Unit: "m", Quantity: decimal.NewFromInt(qty), CostPerUnit: decimal.NewFromInt(4), IsActive: active}
	_, err := conns.Writer.NewInsert().Model(m).Exec(context.Background())
	require.NoError(t, err)
	return m
}

func TestDecrementTakesStockWhenAvailable(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	repo := NewRepository(conns)
	m := seedMaterial(t, conns, 10, true)

	ok, err := repo.Decrement(ctx, m.ID, decimal.NewFromInt(4))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Decrement(ctx, m.ID, decimal.NewFromInt(6))
	require.NoError(t, err)
	assert.True(t, ok, "taking exactly the remainder is allowed")

	got, err := repo.GetMaterial(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.IsZero(), got.Quantity.String())
}

func TestDecrementRefusesShortage(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	repo := NewRepository(conns)
	m := seedMaterial(t, conns, 5, true)

	ok, err := repo.Decrement(ctx, m.ID, decimal.NewFromInt(6))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetMaterial(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(got.Quantity), got.Quantity.String())
}

func TestDecrementRefusesInactiveMaterial(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	repo := NewRepository(conns)
	m := seedMaterial(t, conns, 50, false)

	ok, err := repo.Decrement(ctx, m.ID, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetMaterial(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(got.Quantity), got.Quantity.String())

	ok, err = repo.Decrement(ctx, 9999, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIncrementReturnsStock(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	repo := NewRepository(conns)
	m := seedMaterial(t, conns, 2, true)

	require.NoError(t, repo.Increment(ctx, m.ID, decimal.NewFromInt(3)))
	got, err := repo.GetMaterial(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(got.Quantity), got.Quantity.String())

	assert.ErrorIs(t, repo.Increment(ctx, 9999, decimal.NewFromInt(1)), ErrNotFound)
	_, err = repo.GetMaterial(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateReservationOnlyTouchesReservedRows(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	repo := NewRepository(conns)
	m := seedMaterial(t, conns, 20, true)

	res := &entity.MaterialReservation{
		OrderID: 1, MaterialID: m.ID, StageID: 11,
		QuantityReserved: decimal.NewFromInt(6),
		Status:           entity.ReservationReserved,
	}
	require.NoError(t, repo.CreateReservation(ctx, res))
	require.NotZero(t, res.ID)

	found, err := repo.FindReservation(ctx, 1, m.ID, 11, entity.ReservationReserved)
	require.NoError(t, err)
	assert.Equal(t, res.ID, found.ID)

	found.QuantityUsed = decimal.NewFromInt(4)
	found.QuantityReturned = decimal.NewFromInt(2)
	found.Status = entity.ReservationUsed
	require.NoError(t, repo.UpdateReservation(ctx, found))

	found.QuantityReturned = decimal.NewFromInt(5)
	assert.ErrorIs(t, repo.UpdateReservation(ctx, found), ErrNotFound)

	used, err := repo.FindReservation(ctx, 1, m.ID, 11, entity.ReservationUsed)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2).Equal(used.QuantityReturned), used.QuantityReturned.String())

	_, err = repo.FindReservation(ctx, 1, m.ID, 11, entity.ReservationReserved)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListReservationsFilters(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	repo := NewRepository(conns)
	m := seedMaterial(t, conns, 20, true)

	rows := []entity.MaterialReservation{
		{OrderID: 1, MaterialID: m.ID, StageID: 11, QuantityReserved: decimal.NewFromInt(1), Status: entity.ReservationReserved},
		{OrderID: 1, MaterialID: m.ID, StageID: 12, QuantityReserved: decimal.NewFromInt(2), Status: entity.ReservationReserved},
		{OrderID: 1, MaterialID: m.ID, StageID: 12, QuantityReserved: decimal.NewFromInt(3), Status: entity.ReservationReleased},
		{OrderID: 2, MaterialID: m.ID, StageID: 11, QuantityReserved: decimal.NewFromInt(4), Status: entity.ReservationReserved},
	}
	for i := range rows {
		require.NoError(t, repo.CreateReservation(ctx, &rows[i]))
	}

	all, err := repo.ListReservations(ctx, 1, ReservationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	stage := int64(12)
	byStage, err := repo.ListReservations(ctx, 1, ReservationFilter{StageID: &stage})
	require.NoError(t, err)
	assert.Len(t, byStage, 2)

	open, err := repo.ListReservations(ctx, 1, ReservationFilter{StageID: &stage, Status: entity.ReservationReserved})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, rows[1].ID, open[0].ID)
}

func TestDecrementRollsBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	repo := NewRepository(conns)
	m := seedMaterial(t, conns, 10, true)

	err := conns.RunInTx(ctx, func(ctx context.Context) error {
		ok, err := repo.Decrement(ctx, m.ID, decimal.NewFromInt(7))
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, repo.LogTransaction(ctx, &entity.InventoryTransaction{
			MaterialID: m.ID, Type: entity.TransactionReservation, Quantity: decimal.NewFromInt(7),
		}))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	got, err := repo.GetMaterial(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(got.Quantity), got.Quantity.String())

	n, err := conns.Reader.NewSelect().Model((*entity.InventoryTransaction)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListMaterials(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	repo := NewRepository(conns)
	a := seedMaterial(t, conns, 1, true)
	b := seedMaterial(t, conns, 2, true)
	seedMaterial(t, conns, 3, true)

	got, err := repo.ListMaterials(ctx, []int64{b.ID, a.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID)
	assert.Equal(t, b.ID, got[1].ID)

	none, err := repo.ListMaterials(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}
