package seeder

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/shopfloor/internal/config"
	"github.com/Additional-Code/shopfloor/internal/database"
	"github.com/Additional-Code/shopfloor/internal/entity"
	"github.com/Additional-Code/shopfloor/internal/production/stage"
)

// Module provides the seeder to Fx.
var Module = fx.Options(
	stage.Module,
	fx.Provide(New),
)

// stageHours are the default estimates of the built-in work stages.
var stageHours = map[stage.Name]string{
	stage.Design:           "2",
	stage.Cutting:          "3",
	stage.Sewing:           "6",
	stage.Fitting:          "1.5",
	stage.Finishing:        "2",
	stage.QualityCheck:     "1",
	stage.ReadyForDelivery: "0.5",
}

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	conns   *database.Connections
	stages  stage.Sequence
	payroll config.Payroll
	logger  *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, seq stage.Sequence, cfg config.Config, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{conns: conns, stages: seq, payroll: cfg.Payroll, logger: logger}
}

// All seeds the catalog, stations and workers in one transaction.
func (s *Seeder) All(ctx context.Context) error {
	return s.conns.RunInTx(ctx, func(ctx context.Context) error {
		db := s.conns.WriterFor(ctx)
		stages, err := s.Stages(ctx, db)
		if err != nil {
			return err
		}
		materials, err := s.Materials(ctx, db)
		if err != nil {
			return err
		}
		if err := s.Products(ctx, db, materials, stages); err != nil {
			return err
		}
		if err := s.Stations(ctx, db); err != nil {
			return err
		}
		return s.Workers(ctx, db)
	})
}

// Stages seeds one catalog row per work stage of the configured sequence.
func (s *Seeder) Stages(ctx context.Context, db bun.IDB) (map[stage.Name]int64, error) {
	ids := make(map[stage.Name]int64)
	for i, name := range s.stages.Work() {
		hours := decimal.NewFromInt(1)
		if h, ok := stageHours[name]; ok {
			hours = decimal.RequireFromString(h)
		}
		row := &entity.ProductionStage{Name: name.String(), OrderIndex: i + 1, EstimatedHours: hours, IsActive: true}
		if _, err := db.NewInsert().Model(row).Ignore().Exec(ctx); err != nil {
			return nil, err
		}
		existing := new(entity.ProductionStage)
		if err := db.NewSelect().Model(existing).Where("name = ?", row.Name).Scan(ctx); err != nil {
			return nil, err
		}
		ids[name] = existing.ID
	}
	s.logger.Info("seeded production stages", zap.Int("count", len(ids)))
	return ids, nil
}

// Materials seeds the raw material ledger.
func (s *Seeder) Materials(ctx context.Context, db bun.IDB) (map[string]int64, error) {
	samples := []entity.Material{
		{Name: "Wool fabric", Unit: "m", Quantity: decimal.NewFromInt(200), CostPerUnit: decimal.RequireFromString("18.50")},
		{Name: "Cotton fabric", Unit: "m", Quantity: decimal.NewFromInt(300), CostPerUnit: decimal.RequireFromString("7.20")},
		{Name: "Lining", Unit: "m", Quantity: decimal.NewFromInt(150), CostPerUnit: decimal.RequireFromString("4.10")},
		{Name: "Thread", Unit: "spool", Quantity: decimal.NewFromInt(500), CostPerUnit: decimal.RequireFromString("0.90")},
		{Name: "Buttons", Unit: "pcs", Quantity: decimal.NewFromInt(2000), CostPerUnit: decimal.RequireFromString("0.15")},
	}

	ids := make(map[string]int64, len(samples))
	for _, sample := range samples {
		m := sample
		m.IsActive = true
		id, err := s.findOrInsert(ctx, db, &m, m.Name, func() int64 { return m.ID })
		if err != nil {
			return nil, err
		}
		ids[m.Name] = id
	}
	s.logger.Info("seeded materials", zap.Int("count", len(ids)))
	return ids, nil
}

// Products seeds products with their bill of materials and stage estimates.
func (s *Seeder) Products(ctx context.Context, db bun.IDB, materials map[string]int64, stages map[stage.Name]int64) error {
	type bomLine struct {
		material string
		qty      string
	}
	samples := []struct {
		product   entity.Product
		bom       []bomLine
		overrides map[stage.Name]string
	}{
		{
			product: entity.Product{Name: "Two-piece suit", BasePrice: decimal.RequireFromString("420.00"), EstimatedHours: decimal.NewFromInt(17)},
			bom: []bomLine{
				{"Wool fabric", "3.5"}, {"Lining", "2"}, {"Thread", "2"}, {"Buttons", "8"},
			},
			overrides: map[stage.Name]string{stage.Sewing: "8"},
		},
		{
			product: entity.Product{Name: "Dress shirt", BasePrice: decimal.RequireFromString("85.00"), EstimatedHours: decimal.NewFromInt(6)},
			bom: []bomLine{
				{"Cotton fabric", "1.8"}, {"Thread", "1"}, {"Buttons", "10"},
			},
			overrides: map[stage.Name]string{stage.Sewing: "2", stage.Fitting: "0.5"},
		},
	}

	for _, sample := range samples {
		p := sample.product
		productID, err := s.findOrInsert(ctx, db, &p, p.Name, func() int64 { return p.ID })
		if err != nil {
			return err
		}
		for _, line := range sample.bom {
			materialID, ok := materials[line.material]
			if !ok {
				continue
			}
			row := &entity.ProductMaterial{ProductID: productID, MaterialID: materialID, Quantity: decimal.RequireFromString(line.qty)}
			if _, err := db.NewInsert().Model(row).Ignore().Exec(ctx); err != nil {
				return err
			}
		}
		for name, hours := range sample.overrides {
			stageID, ok := stages[name]
			if !ok {
				continue
			}
			row := &entity.ProductStageEstimate{ProductID: productID, StageID: stageID, EstimatedHours: decimal.RequireFromString(hours)}
			if _, err := db.NewInsert().Model(row).Ignore().Exec(ctx); err != nil {
				return err
			}
		}
	}
	s.logger.Info("seeded products", zap.Int("count", len(samples)))
	return nil
}

// Stations seeds work stations.
func (s *Seeder) Stations(ctx context.Context, db bun.IDB) error {
	now := time.Now().UTC()
	for _, name := range []string{"Cutting table 1", "Sewing line A", "Sewing line B", "Pressing"} {
		st := &entity.Station{Name: name, Status: entity.StationAvailable, UpdatedAt: now}
		if _, err := s.findOrInsert(ctx, db, st, name, func() int64 { return st.ID }); err != nil {
			return err
		}
	}
	s.logger.Info("seeded stations", zap.Int("count", 4))
	return nil
}

// Workers seeds a small crew covering the built-in work stages.
func (s *Seeder) Workers(ctx context.Context, db bun.IDB) error {
	now := time.Now().UTC()
	crew := []struct{ code, name, specialty string }{
		{"EMP-001", "Ana Ruiz", stage.Design.String()},
		{"EMP-002", "Luis Mora", stage.Cutting.String()},
		{"EMP-003", "Mia Chen", stage.Sewing.String()},
		{"EMP-004", "Omar Haddad", stage.Fitting.String()},
		{"EMP-005", "Sara Lind", stage.QualityCheck.String()},
	}
	for _, c := range crew {
		w := &entity.Worker{
			EmployeeCode:       c.code,
			Name:               c.name,
			Role:               "Tailor",
			Department:         "Production",
			Specialty:          c.specialty,
			HourlyRate:         s.payroll.HourlyRate,
			OvertimeRate:       s.payroll.OvertimeRate,
			StandardHoursDay:   s.payroll.HoursPerDay,
			StandardHoursWeek:  s.payroll.HoursPerWeek,
			StandardHoursMonth: s.payroll.HoursPerMonth,
			IsActive:           true,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if _, err := db.NewInsert().Model(w).Ignore().Exec(ctx); err != nil {
			return err
		}
	}
	s.logger.Info("seeded workers", zap.Int("count", len(crew)))
	return nil
}

// findOrInsert inserts model unless a row of the same table already has name.
func (s *Seeder) findOrInsert(ctx context.Context, db bun.IDB, model any, name string, id func() int64) (int64, error) {
	var existing int64
	err := db.NewSelect().Model(model).Column("id").Where("name = ?", name).Limit(1).Scan(ctx, &existing)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, err
	}
	if _, err := db.NewInsert().Model(model).Exec(ctx); err != nil {
		return 0, err
	}
	return id(), nil
}
