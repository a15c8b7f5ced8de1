package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/shopfloor/internal/cache"
	"github.com/Additional-Code/shopfloor/internal/config"
	"github.com/Additional-Code/shopfloor/internal/database"
	"github.com/Additional-Code/shopfloor/internal/entity"
	"github.com/Additional-Code/shopfloor/internal/observability"
	inventoryrepo "github.com/Additional-Code/shopfloor/internal/repository/inventory"
	orderrepo "github.com/Additional-Code/shopfloor/internal/repository/order"
	productionrepo "github.com/Additional-Code/shopfloor/internal/repository/production"
	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/shopfloor/service/inventory")

// Soft failure reasons reported in result payloads.
const (
	ReasonInsufficientStock   = entity.ShortageInsufficientStock
	ReasonMaterialNotFound    = entity.ShortageMaterialNotFound
	ReasonMaterialInactive    = entity.ShortageMaterialInactive
	ReasonReservationNotFound = entity.ShortageReservationNotFound
)

// Ledger is the material ledger and reservation storage.
type Ledger interface {
	GetMaterial(ctx context.Context, id int64) (*entity.Material, error)
	ListMaterials(ctx context.Context, ids []int64) ([]entity.Material, error)
	Decrement(ctx context.Context, materialID int64, qty decimal.Decimal) (bool, error)
	Increment(ctx context.Context, materialID int64, qty decimal.Decimal) error
	CreateReservation(ctx context.Context, res *entity.MaterialReservation) error
	FindReservation(ctx context.Context, orderID, materialID, stageID int64, status string) (*entity.MaterialReservation, error)
	ListReservations(ctx context.Context, orderID int64, filter inventoryrepo.ReservationFilter) ([]entity.MaterialReservation, error)
	UpdateReservation(ctx context.Context, res *entity.MaterialReservation) error
	LogTransaction(ctx context.Context, tx *entity.InventoryTransaction) error
}

// OrderReader loads orders.
type OrderReader interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
}

// BillOfMaterials returns a product's per-unit material lines.
type BillOfMaterials interface {
	BillOfMaterials(ctx context.Context, productID int64) ([]entity.ProductMaterial, error)
}

// StageReader loads catalog stages.
type StageReader interface {
	GetStage(ctx context.Context, id int64) (*entity.ProductionStage, error)
}

// Service reserves, consumes and releases materials for order stages.
type Service struct {
	ledger   Ledger
	orders   OrderReader
	bom      BillOfMaterials
	stages   StageReader
	tx       database.Transactor
	cache    cache.Store
	cacheTTL time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Ledger     Ledger
	Orders     OrderReader
	BOM        BillOfMaterials
	Stages     StageReader
	Transactor database.Transactor
	Cache      cache.Store
	Config     config.Config
	Metrics    *observability.Metrics `optional:"true"`
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ledger:   p.Ledger,
		orders:   p.Orders,
		bom:      p.BOM,
		stages:   p.Stages,
		tx:       p.Transactor,
		cache:    p.Cache,
		cacheTTL: p.Config.Production.ReportCacheTTL,
		metrics:  p.Metrics,
		logger:   logger,
	}
}

// ReservedLine is a material successfully reserved.
type ReservedLine struct {
	ReservationID int64           `json:"reservation_id"`
	MaterialID    int64           `json:"material_id"`
	MaterialName  string          `json:"material_name"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// FailedLine is a material that could not be reserved or settled.
type FailedLine struct {
	MaterialID   int64           `json:"material_id"`
	MaterialName string          `json:"material_name,omitempty"`
	Required     decimal.Decimal `json:"required"`
	Available    decimal.Decimal `json:"available"`
	Reason       string          `json:"reason"`
}

// ReservationResult reports per-material outcomes of a reservation call.
type ReservationResult struct {
	OrderID   int64          `json:"order_id"`
	StageID   int64          `json:"stage_id"`
	Succeeded []ReservedLine `json:"succeeded"`
	Failed    []FailedLine   `json:"failed"`
}

// ReserveMaterialsForStage reserves the order's bill of materials for one stage.
// Short materials are reported in Failed; only storage faults abort the call,
// rolling back every reservation it made.
func (s *Service) ReserveMaterialsForStage(ctx context.Context, orderID, stageID int64) (*ReservationResult, error) {
	ctx, span := serviceTracer.Start(ctx, "InventoryService.ReserveMaterialsForStage", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("stage.id", stageID),
	))
	defer span.End()

	result := &ReservationResult{OrderID: orderID, StageID: stageID, Succeeded: []ReservedLine{}, Failed: []FailedLine{}}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.loadOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.checkStage(ctx, stageID); err != nil {
			return err
		}
		lines, err := s.bom.BillOfMaterials(ctx, order.ProductID)
		if err != nil {
			return err
		}

		for _, line := range lines {
			required := line.Quantity.Mul(order.Quantity)
			reserved, failed, err := s.reserveLine(ctx, order.ID, stageID, line.MaterialID, required)
			if err != nil {
				return err
			}
			if failed != nil {
				result.Failed = append(result.Failed, *failed)
				s.metrics.Reservation(ctx, failed.Reason)
				continue
			}
			result.Succeeded = append(result.Succeeded, *reserved)
			s.metrics.Reservation(ctx, entity.ReservationReserved)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reservation failed")
		s.logger.Error("material reservation rolled back",
			zap.Int64("order_id", orderID), zap.Int64("stage_id", stageID), zap.Error(err))
		return nil, err
	}

	s.invalidateReport(ctx, orderID)
	if len(result.Failed) > 0 {
		s.logger.Warn("materials partially reserved",
			zap.Int64("order_id", orderID), zap.Int64("stage_id", stageID),
			zap.Int("reserved", len(result.Succeeded)), zap.Int("failed", len(result.Failed)))
	} else {
		s.logger.Info("materials reserved",
			zap.Int64("order_id", orderID), zap.Int64("stage_id", stageID), zap.Int("reserved", len(result.Succeeded)))
	}
	return result, nil
}

func (s *Service) reserveLine(ctx context.Context, orderID, stageID, materialID int64, required decimal.Decimal) (*ReservedLine, *FailedLine, error) {
	material, err := s.ledger.GetMaterial(ctx, materialID)
	if errors.Is(err, inventoryrepo.ErrNotFound) {
		return nil, &FailedLine{MaterialID: materialID, Required: required, Available: decimal.Zero, Reason: ReasonMaterialNotFound}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if !material.IsActive {
		return nil, &FailedLine{MaterialID: materialID, MaterialName: material.Name, Required: required, Available: material.Quantity, Reason: ReasonMaterialInactive}, nil
	}

	ok, err := s.ledger.Decrement(ctx, materialID, required)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, &FailedLine{
			MaterialID:   materialID,
			MaterialName: material.Name,
			Required:     required,
			Available:    material.Quantity,
			Reason:       ReasonInsufficientStock,
		}, nil
	}

	res := &entity.MaterialReservation{
		OrderID:          orderID,
		MaterialID:       materialID,
		StageID:          stageID,
		QuantityReserved: required,
		QuantityUsed:     decimal.Zero,
		QuantityReturned: decimal.Zero,
		Status:           entity.ReservationReserved,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.ledger.CreateReservation(ctx, res); err != nil {
		return nil, nil, err
	}
	if err := s.logMovement(ctx, materialID, orderID, stageID, entity.TransactionReservation, required,
		fmt.Sprintf("reserved for order %d stage %d", orderID, stageID)); err != nil {
		return nil, nil, err
	}

	return &ReservedLine{ReservationID: res.ID, MaterialID: materialID, MaterialName: material.Name, Quantity: required}, nil, nil
}

// SettledLine reports how a reservation was settled by usage or release.
type SettledLine struct {
	ReservationID int64           `json:"reservation_id"`
	MaterialID    int64           `json:"material_id"`
	Reserved      decimal.Decimal `json:"reserved"`
	Used          decimal.Decimal `json:"used"`
	Returned      decimal.Decimal `json:"returned"`
	Status        string          `json:"status"`
}

// UsageResult reports the outcome of recording actual usage.
type UsageResult struct {
	OrderID int64         `json:"order_id"`
	StageID int64         `json:"stage_id"`
	Updated []SettledLine `json:"updated"`
	Failed  []FailedLine  `json:"failed"`
}

// UpdateInventoryUsage records actual consumption against a stage's reservations.
// A reservation flips to used once fully consumed; any surplus goes back to the ledger.
func (s *Service) UpdateInventoryUsage(ctx context.Context, orderID, stageID int64, used map[int64]decimal.Decimal) (*UsageResult, error) {
	ctx, span := serviceTracer.Start(ctx, "InventoryService.UpdateInventoryUsage", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("stage.id", stageID),
	))
	defer span.End()

	if len(used) == 0 {
		return nil, errorbank.Validation("usage is required", map[string]string{"used": "at least one material usage is required"})
	}
	for materialID, qty := range used {
		if qty.IsNegative() {
			return nil, errorbank.Validation("invalid usage", map[string]string{
				fmt.Sprintf("used.%d", materialID): "usage must not be negative",
			})
		}
	}

	materialIDs := make([]int64, 0, len(used))
	for id := range used {
		materialIDs = append(materialIDs, id)
	}
	sort.Slice(materialIDs, func(i, j int) bool { return materialIDs[i] < materialIDs[j] })

	result := &UsageResult{OrderID: orderID, StageID: stageID, Updated: []SettledLine{}, Failed: []FailedLine{}}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		for _, materialID := range materialIDs {
			qty := used[materialID]
			res, err := s.ledger.FindReservation(ctx, orderID, materialID, stageID, entity.ReservationReserved)
			if errors.Is(err, inventoryrepo.ErrNotFound) {
				result.Failed = append(result.Failed, FailedLine{MaterialID: materialID, Required: qty, Available: decimal.Zero, Reason: ReasonReservationNotFound})
				continue
			}
			if err != nil {
				return err
			}
			if qty.GreaterThan(res.QuantityReserved) {
				return errorbank.Validation("usage exceeds reservation", map[string]string{
					fmt.Sprintf("used.%d", materialID): fmt.Sprintf("usage %s exceeds reserved %s", qty, res.QuantityReserved),
				})
			}

			line, failed, err := s.settleUsage(ctx, res, qty)
			if err != nil {
				return err
			}
			if failed != nil {
				result.Failed = append(result.Failed, *failed)
				continue
			}
			result.Updated = append(result.Updated, *line)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "usage update failed")
		s.logger.Error("inventory usage rolled back", zap.Int64("order_id", orderID), zap.Int64("stage_id", stageID), zap.Error(err))
		return nil, err
	}

	s.invalidateReport(ctx, orderID)
	s.logger.Info("inventory usage recorded",
		zap.Int64("order_id", orderID), zap.Int64("stage_id", stageID),
		zap.Int("updated", len(result.Updated)), zap.Int("failed", len(result.Failed)))
	return result, nil
}

// settleUsage moves the reservation to the new usage level. The ledger keeps
// reserved-minus-returned on claim, so a revised usage can hand back more or
// take back some of what was returned earlier.
func (s *Service) settleUsage(ctx context.Context, res *entity.MaterialReservation, used decimal.Decimal) (*SettledLine, *FailedLine, error) {
	surplus := res.QuantityReserved.Sub(used)
	delta := surplus.Sub(res.QuantityReturned)

	switch {
	case delta.IsPositive():
		if err := s.ledger.Increment(ctx, res.MaterialID, delta); err != nil {
			return nil, nil, err
		}
		if err := s.logMovement(ctx, res.MaterialID, res.OrderID, res.StageID, entity.TransactionReturn, delta,
			fmt.Sprintf("unused surplus of reservation %d", res.ID)); err != nil {
			return nil, nil, err
		}
	case delta.IsNegative():
		reclaim := delta.Neg()
		ok, err := s.ledger.Decrement(ctx, res.MaterialID, reclaim)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, &FailedLine{MaterialID: res.MaterialID, Required: reclaim, Available: decimal.Zero, Reason: ReasonInsufficientStock}, nil
		}
		if err := s.logMovement(ctx, res.MaterialID, res.OrderID, res.StageID, entity.TransactionReservation, reclaim,
			fmt.Sprintf("reclaimed for revised usage of reservation %d", res.ID)); err != nil {
			return nil, nil, err
		}
	}

	res.QuantityUsed = used
	res.QuantityReturned = surplus
	if used.Equal(res.QuantityReserved) {
		res.Status = entity.ReservationUsed
	}
	if err := s.ledger.UpdateReservation(ctx, res); err != nil {
		return nil, nil, err
	}

	return &SettledLine{
		ReservationID: res.ID,
		MaterialID:    res.MaterialID,
		Reserved:      res.QuantityReserved,
		Used:          res.QuantityUsed,
		Returned:      res.QuantityReturned,
		Status:        res.Status,
	}, nil, nil
}

// ReleaseResult reports the reservations released for a stage.
type ReleaseResult struct {
	OrderID  int64         `json:"order_id"`
	StageID  int64         `json:"stage_id"`
	Released []SettledLine `json:"released"`
}

// ReleaseMaterialReservation releases every still-reserved row of the stage and
// returns the outstanding quantity to the ledger.
func (s *Service) ReleaseMaterialReservation(ctx context.Context, orderID, stageID int64) (*ReleaseResult, error) {
	ctx, span := serviceTracer.Start(ctx, "InventoryService.ReleaseMaterialReservation", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("stage.id", stageID),
	))
	defer span.End()

	result := &ReleaseResult{OrderID: orderID, StageID: stageID, Released: []SettledLine{}}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		rows, err := s.ledger.ListReservations(ctx, orderID, inventoryrepo.ReservationFilter{StageID: &stageID, Status: entity.ReservationReserved})
		if err != nil {
			return err
		}
		for i := range rows {
			res := &rows[i]
			outstanding := res.Outstanding()
			if outstanding.IsPositive() {
				if err := s.ledger.Increment(ctx, res.MaterialID, outstanding); err != nil {
					return err
				}
				if err := s.logMovement(ctx, res.MaterialID, orderID, stageID, entity.TransactionRelease, outstanding,
					fmt.Sprintf("released reservation %d", res.ID)); err != nil {
					return err
				}
				res.QuantityReturned = res.QuantityReturned.Add(outstanding)
			}
			res.Status = entity.ReservationReleased
			if err := s.ledger.UpdateReservation(ctx, res); err != nil {
				return err
			}
			result.Released = append(result.Released, SettledLine{
				ReservationID: res.ID,
				MaterialID:    res.MaterialID,
				Reserved:      res.QuantityReserved,
				Used:          res.QuantityUsed,
				Returned:      outstanding,
				Status:        res.Status,
			})
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "release failed")
		s.logger.Error("reservation release rolled back", zap.Int64("order_id", orderID), zap.Int64("stage_id", stageID), zap.Error(err))
		return nil, err
	}

	s.invalidateReport(ctx, orderID)
	s.logger.Info("reservations released", zap.Int64("order_id", orderID), zap.Int64("stage_id", stageID), zap.Int("count", len(result.Released)))
	return result, nil
}

// MaterialReportLine aggregates one material's reservations for an order.
type MaterialReportLine struct {
	MaterialID   int64           `json:"material_id"`
	MaterialName string          `json:"material_name"`
	Reserved     decimal.Decimal `json:"reserved"`
	Used         decimal.Decimal `json:"used"`
	Waste        decimal.Decimal `json:"waste"`
	CostPerUnit  decimal.Decimal `json:"cost_per_unit"`
	Cost         decimal.Decimal `json:"cost"`
}

// MaterialReport aggregates material usage for an order.
type MaterialReport struct {
	OrderID       int64                `json:"order_id"`
	Lines         []MaterialReportLine `json:"lines"`
	TotalReserved decimal.Decimal      `json:"total_reserved"`
	TotalUsed     decimal.Decimal      `json:"total_used"`
	TotalWaste    decimal.Decimal      `json:"total_waste"`
	TotalCost     decimal.Decimal      `json:"total_cost"`
}

// GetOrderMaterialReport sums reserved, used, waste and cost per material. Released
// reservations are excluded since nothing was consumed from them.
func (s *Service) GetOrderMaterialReport(ctx context.Context, orderID int64) (*MaterialReport, error) {
	ctx, span := serviceTracer.Start(ctx, "InventoryService.GetOrderMaterialReport", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if report, err := s.reportFromCache(ctx, orderID); err == nil {
		return report, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("material report cache read failed", zap.Int64("order_id", orderID), zap.Error(err))
	}

	if _, err := s.loadOrder(ctx, orderID); err != nil {
		return nil, err
	}
	rows, err := s.ledger.ListReservations(ctx, orderID, inventoryrepo.ReservationFilter{})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	lines := make(map[int64]*MaterialReportLine)
	var ids []int64
	for _, r := range rows {
		if r.Status == entity.ReservationReleased && r.QuantityUsed.IsZero() {
			continue
		}
		line, ok := lines[r.MaterialID]
		if !ok {
			line = &MaterialReportLine{MaterialID: r.MaterialID}
			lines[r.MaterialID] = line
			ids = append(ids, r.MaterialID)
		}
		line.Reserved = line.Reserved.Add(r.QuantityReserved)
		line.Used = line.Used.Add(r.QuantityUsed)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	materials, err := s.ledger.ListMaterials(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]entity.Material, len(materials))
	for _, m := range materials {
		byID[m.ID] = m
	}

	report := &MaterialReport{OrderID: orderID, Lines: make([]MaterialReportLine, 0, len(ids))}
	for _, id := range ids {
		line := lines[id]
		m := byID[id]
		line.MaterialName = m.Name
		line.CostPerUnit = m.CostPerUnit
		line.Cost = line.Used.Mul(m.CostPerUnit)
		line.Waste = line.Reserved.Sub(line.Used)

		report.TotalReserved = report.TotalReserved.Add(line.Reserved)
		report.TotalUsed = report.TotalUsed.Add(line.Used)
		report.TotalWaste = report.TotalWaste.Add(line.Waste)
		report.TotalCost = report.TotalCost.Add(line.Cost)
		report.Lines = append(report.Lines, *line)
	}

	if err := s.storeReport(ctx, report); err != nil {
		s.logger.Warn("material report cache write failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
	return report, nil
}

func (s *Service) loadOrder(ctx context.Context, orderID int64) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, orderrepo.ErrNotFound) {
		return nil, errorbank.NotFound("order not found", errorbank.WithModel("order", orderID))
	}
	return order, err
}

func (s *Service) checkStage(ctx context.Context, stageID int64) error {
	_, err := s.stages.GetStage(ctx, stageID)
	if errors.Is(err, productionrepo.ErrNotFound) {
		return errorbank.NotFound("production stage not found", errorbank.WithModel("production_stage", stageID))
	}
	return err
}

func (s *Service) logMovement(ctx context.Context, materialID, orderID, stageID int64, kind string, qty decimal.Decimal, notes string) error {
	oid, sid := orderID, stageID
	if err := s.ledger.LogTransaction(ctx, &entity.InventoryTransaction{
		MaterialID: materialID,
		OrderID:    &oid,
		StageID:    &sid,
		Type:       kind,
		Quantity:   qty,
		Notes:      notes,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		return err
	}
	f, _ := qty.Float64()
	s.metrics.LedgerMovement(ctx, kind, f)
	return nil
}

func (s *Service) reportFromCache(ctx context.Context, orderID int64) (*MaterialReport, error) {
	var report MaterialReport
	if err := cache.GetJSON(ctx, s.cache, cache.MaterialReportKey(orderID), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Service) storeReport(ctx context.Context, report *MaterialReport) error {
	return cache.SetJSON(ctx, s.cache, cache.MaterialReportKey(report.OrderID), report, s.cacheTTL)
}

func (s *Service) invalidateReport(ctx context.Context, orderID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.MaterialReportKey(orderID)); err != nil {
		s.logger.Warn("material report cache invalidation failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
}
