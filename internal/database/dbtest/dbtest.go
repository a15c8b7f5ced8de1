// Package dbtest opens migrated in-memory sqlite databases for repository tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/Additional-Code/shopfloor/internal/database"
	"github.com/Additional-Code/shopfloor/internal/migration"
)

var seq atomic.Int64

// Open returns connections to a fresh, fully migrated database private to t.
// Writer and reader share one handle.
func Open(t testing.TB) *database.Connections {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	m, err := migration.NewForDB("sqlite", db, nil)
	require.NoError(t, err)
	require.NoError(t, m.Up(context.Background()))

	return &database.Connections{Writer: db, Reader: db}
}
