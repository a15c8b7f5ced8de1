package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Order status values.
const (
	OrderStatusPending    = "pending"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// Quality and delivery status values set by stage transitions.
const (
	QualityStatusPending    = "pending"
	QualityStatusApproved   = "approved"
	DeliveryStatusPending   = "pending"
	DeliveryStatusReady     = "ready"
	DeliveryStatusDelivered = "delivered"
)

// Order is a customer order moving through production.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID               int64           `bun:",pk,autoincrement" json:"id"`
	Number           string          `bun:"number,unique" json:"number"`
	ClientID         int64           `bun:"client_id" json:"client_id"`
	ProductID        int64           `bun:"product_id" json:"product_id"`
	Quantity         decimal.Decimal `bun:"quantity,type:numeric" json:"quantity"`
	Status           string          `bun:"status" json:"status"`
	ProductionStage  string          `bun:"production_stage" json:"production_stage"`
	QualityStatus    string          `bun:"quality_status" json:"quality_status"`
	DeliveryStatus   string          `bun:"delivery_status" json:"delivery_status"`
	AssignedWorkerID *int64          `bun:"assigned_worker_id" json:"assigned_worker_id,omitempty"`
	EstimatedHours   decimal.Decimal `bun:"estimated_hours,type:numeric" json:"estimated_hours"`
	TotalCost        decimal.Decimal `bun:"total_cost,type:numeric" json:"total_cost"`
	CompletedDate    *time.Time      `bun:"completed_date" json:"completed_date,omitempty"`
	CreatedAt        time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time       `bun:"updated_at,nullzero" json:"updated_at"`
}

// Sale is booked once per order when it reaches the completed stage.
type Sale struct {
	bun.BaseModel `bun:"table:sales"`

	ID        int64           `bun:",pk,autoincrement" json:"id"`
	OrderID   int64           `bun:"order_id,unique" json:"order_id"`
	ClientID  int64           `bun:"client_id" json:"client_id"`
	Amount    decimal.Decimal `bun:"amount,type:numeric" json:"amount"`
	Status    string          `bun:"status" json:"status"`
	SoldAt    time.Time       `bun:"sold_at" json:"sold_at"`
	CreatedAt time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}

// SaleStatusCompleted marks a sale synthesized from a completed order.
const SaleStatusCompleted = "completed"
