package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Tracking row status values.
const (
	TrackingPending    = "pending"
	TrackingInProgress = "in_progress"
	TrackingCompleted  = "completed"
)

// Station status values.
const (
	StationAvailable = "available"
	StationBusy      = "busy"
)

// ProductionStage is catalog data describing one phase of production.
type ProductionStage struct {
	bun.BaseModel `bun:"table:production_stages"`

	ID             int64           `bun:",pk,autoincrement" json:"id"`
	Name           string          `bun:"name,unique" json:"name"`
	OrderIndex     int             `bun:"order_index" json:"order_index"`
	EstimatedHours decimal.Decimal `bun:"estimated_hours,type:numeric" json:"estimated_hours"`
	IsActive       bool            `bun:"is_active" json:"is_active"`
}

// OrderProductionTracking records an order's progress through one stage.
type OrderProductionTracking struct {
	bun.BaseModel `bun:"table:order_production_trackings"`

	ID             int64           `bun:",pk,autoincrement" json:"id"`
	OrderID        int64           `bun:"order_id" json:"order_id"`
	StageID        int64           `bun:"stage_id" json:"stage_id"`
	StageName      string          `bun:"stage_name" json:"stage_name"`
	WorkerID       *int64          `bun:"worker_id" json:"worker_id,omitempty"`
	StationID      *int64          `bun:"station_id" json:"station_id,omitempty"`
	Status         string          `bun:"status" json:"status"`
	EstimatedHours decimal.Decimal `bun:"estimated_hours,type:numeric" json:"estimated_hours"`
	ActualHours    decimal.Decimal `bun:"actual_hours,type:numeric" json:"actual_hours"`
	StartedAt      *time.Time      `bun:"started_at" json:"started_at,omitempty"`
	CompletedAt    *time.Time      `bun:"completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `bun:"updated_at,nullzero" json:"updated_at"`
}

// Station is a physical work station that can host one stage at a time.
type Station struct {
	bun.BaseModel `bun:"table:stations"`

	ID        int64     `bun:",pk,autoincrement" json:"id"`
	Name      string    `bun:"name" json:"name"`
	Status    string    `bun:"status" json:"status"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}
