package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Reservation status values. Rows are immutable once used or released.
const (
	ReservationReserved = "reserved"
	ReservationUsed     = "used"
	ReservationReleased = "released"
)

// Inventory transaction types.
const (
	TransactionReservation = "reservation"
	TransactionRelease     = "release"
	TransactionReturn      = "return"
	TransactionConsumption = "consumption"
)

// Reasons a material line could not be claimed.
const (
	ShortageInsufficientStock   = "insufficient_stock"
	ShortageMaterialNotFound    = "material_not_found"
	ShortageMaterialInactive    = "material_inactive"
	ShortageReservationNotFound = "reservation_not_found"
)

// Material is a ledger entry holding the on-hand quantity of a raw material.
type Material struct {
	bun.BaseModel `bun:"table:materials"`

	ID          int64           `bun:",pk,autoincrement" json:"id"`
	Name        string          `bun:"name" json:"name"`
	Unit        string          `bun:"unit" json:"unit"`
	Quantity    decimal.Decimal `bun:"quantity,type:numeric" json:"quantity"`
	CostPerUnit decimal.Decimal `bun:"cost_per_unit,type:numeric" json:"cost_per_unit"`
	IsActive    bool            `bun:"is_active" json:"is_active"`
	CreatedAt   time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `bun:"updated_at,nullzero" json:"updated_at"`
}

// MaterialReservation is a claim on material for one order stage.
type MaterialReservation struct {
	bun.BaseModel `bun:"table:material_reservations"`

	ID               int64           `bun:",pk,autoincrement" json:"id"`
	OrderID          int64           `bun:"order_id" json:"order_id"`
	MaterialID       int64           `bun:"material_id" json:"material_id"`
	StageID          int64           `bun:"stage_id" json:"stage_id"`
	QuantityReserved decimal.Decimal `bun:"quantity_reserved,type:numeric" json:"quantity_reserved"`
	QuantityUsed     decimal.Decimal `bun:"quantity_used,type:numeric" json:"quantity_used"`
	QuantityReturned decimal.Decimal `bun:"quantity_returned,type:numeric" json:"quantity_returned"`
	Status           string          `bun:"status" json:"status"`
	CreatedAt        time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time       `bun:"updated_at,nullzero" json:"updated_at"`
}

// Outstanding is the reserved quantity that is neither consumed nor already
// handed back to the ledger.
func (r MaterialReservation) Outstanding() decimal.Decimal {
	return r.QuantityReserved.Sub(r.QuantityUsed).Sub(r.QuantityReturned)
}

// Waste is the reserved quantity that was not consumed.
func (r MaterialReservation) Waste() decimal.Decimal {
	return r.QuantityReserved.Sub(r.QuantityUsed)
}

// InventoryTransaction is an append-only log of ledger movements.
type InventoryTransaction struct {
	bun.BaseModel `bun:"table:inventory_transactions"`

	ID         int64           `bun:",pk,autoincrement" json:"id"`
	MaterialID int64           `bun:"material_id" json:"material_id"`
	OrderID    *int64          `bun:"order_id" json:"order_id,omitempty"`
	StageID    *int64          `bun:"stage_id" json:"stage_id,omitempty"`
	Type       string          `bun:"type" json:"type"`
	Quantity   decimal.Decimal `bun:"quantity,type:numeric" json:"quantity"`
	Notes      string          `bun:"notes" json:"notes"`
	CreatedAt  time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}

// Product is the template an order is manufactured from.
type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID             int64           `bun:",pk,autoincrement" json:"id"`
	Name           string          `bun:"name" json:"name"`
	BasePrice      decimal.Decimal `bun:"base_price,type:numeric" json:"base_price"`
	EstimatedHours decimal.Decimal `bun:"estimated_hours,type:numeric" json:"estimated_hours"`
}

// ProductMaterial is one bill-of-materials line, quantity per produced unit.
type ProductMaterial struct {
	bun.BaseModel `bun:"table:product_materials"`

	ID         int64           `bun:",pk,autoincrement" json:"id"`
	ProductID  int64           `bun:"product_id" json:"product_id"`
	MaterialID int64           `bun:"material_id" json:"material_id"`
	Quantity   decimal.Decimal `bun:"quantity,type:numeric" json:"quantity"`
}

// ProductStageEstimate overrides a stage's default hours for one product.
type ProductStageEstimate struct {
	bun.BaseModel `bun:"table:product_stage_estimates"`

	ID             int64           `bun:",pk,autoincrement" json:"id"`
	ProductID      int64           `bun:"product_id" json:"product_id"`
	StageID        int64           `bun:"stage_id" json:"stage_id"`
	EstimatedHours decimal.Decimal `bun:"estimated_hours,type:numeric" json:"estimated_hours"`
}
