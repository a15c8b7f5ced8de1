package migration

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/Additional-Code/shopfloor/internal/entity"
)

func openSQLite(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateUpAndDown(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	m, err := NewForDB("sqlite", db, nil)
	require.NoError(t, err)

	require.NoError(t, m.Up(ctx))
	version, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(steps)), version)

	require.NoError(t, m.Up(ctx), "second run is a no-op")

	material := &entity.Material{Name: "Oak board", Unit: "m", Quantity: decimal.NewFromInt(40), CostPerUnit: decimal.RequireFromString("3.25"), IsActive: true}
	_, err = db.NewInsert().Model(material).Exec(ctx)
	require.NoError(t, err)
	assert.NotZero(t, material.ID)

	var loaded entity.Material
	require.NoError(t, db.NewSelect().Model(&loaded).Where("id = ?", material.ID).Scan(ctx))
	assert.True(t, loaded.Quantity.Equal(decimal.NewFromInt(40)))

	require.NoError(t, m.Down(ctx, 0, true))
	version, err = m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)
}

func TestUnsupportedDialect(t *testing.T) {
	_, err := gooseDialect("oracle")
	assert.Error(t, err)
}
