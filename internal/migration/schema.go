package migration

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/shopfloor/internal/entity"
)

type index struct {
	model   any
	name    string
	columns []string
	unique  bool
}

// step is one schema version: tables created in order, dropped in reverse.
type step struct {
	version int64
	tables  []any
	indexes []index
}

var steps = []step{
	{
		version: 1,
		tables: []any{
			(*entity.ProductionStage)(nil),
			(*entity.Station)(nil),
			(*entity.Material)(nil),
			(*entity.Product)(nil),
			(*entity.ProductMaterial)(nil),
			(*entity.ProductStageEstimate)(nil),
		},
		indexes: []index{
			{(*entity.ProductMaterial)(nil), "product_materials_product_material_uidx", []string{"product_id", "material_id"}, true},
			{(*entity.ProductStageEstimate)(nil), "product_stage_estimates_product_stage_uidx", []string{"product_id", "stage_id"}, true},
		},
	},
	{
		version: 2,
		tables: []any{
			(*entity.Order)(nil),
			(*entity.Sale)(nil),
			(*entity.OrderProductionTracking)(nil),
			(*entity.MaterialReservation)(nil),
			(*entity.InventoryTransaction)(nil),
		},
		indexes: []index{
			{(*entity.OrderProductionTracking)(nil), "order_production_trackings_order_stage_uidx", []string{"order_id", "stage_id"}, true},
			{(*entity.MaterialReservation)(nil), "material_reservations_order_stage_idx", []string{"order_id", "stage_id"}, false},
			{(*entity.InventoryTransaction)(nil), "inventory_transactions_material_idx", []string{"material_id"}, false},
		},
	},
	{
		version: 3,
		tables: []any{
			(*entity.Worker)(nil),
			(*entity.WorkerTask)(nil),
			(*entity.Attendance)(nil),
			(*entity.SyncState)(nil),
		},
		indexes: []index{
			{(*entity.WorkerTask)(nil), "worker_tasks_worker_status_idx", []string{"worker_id", "status"}, false},
			{(*entity.Attendance)(nil), "attendances_worker_date_idx", []string{"worker_code", "date"}, false},
		},
	},
	{
		version: 4,
		tables: []any{
			(*entity.Plugin)(nil),
			(*entity.PluginHook)(nil),
		},
		indexes: []index{
			{(*entity.PluginHook)(nil), "plugin_hooks_hook_idx", []string{"hook", "priority"}, false},
		},
	},
}

// goMigrations renders every schema step through bun so the DDL matches the dialect.
func goMigrations(db *bun.DB) []*goose.Migration {
	out := make([]*goose.Migration, 0, len(steps))
	for _, s := range steps {
		s := s
		up := &goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
			for _, model := range s.tables {
				if _, err := db.NewCreateTable().Conn(tx).Model(model).IfNotExists().Exec(ctx); err != nil {
					return fmt.Errorf("create table for %T: %w", model, err)
				}
			}
			for _, idx := range s.indexes {
				q := db.NewCreateIndex().Conn(tx).Model(idx.model).Index(idx.name).Column(idx.columns...)
				if idx.unique {
					q = q.Unique()
				}
				if _, err := q.Exec(ctx); err != nil {
					return fmt.Errorf("create index %s: %w", idx.name, err)
				}
			}
			return nil
		}}
		down := &goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
			for i := len(s.tables) - 1; i >= 0; i-- {
				if _, err := db.NewDropTable().Conn(tx).Model(s.tables[i]).IfExists().Exec(ctx); err != nil {
					return fmt.Errorf("drop table for %T: %w", s.tables[i], err)
				}
			}
			return nil
		}}
		out = append(out, goose.NewGoMigration(s.version, up, down))
	}
	return out
}
