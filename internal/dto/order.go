package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/shopfloor/internal/entity"
)

// CreateOrderRequest is the payload of POST /orders.
type CreateOrderRequest struct {
	ClientID  int64           `json:"client_id" validate:"gte=0"`
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID               int64           `json:"id"`
	Number           string          `json:"number"`
	ClientID         int64           `json:"client_id"`
	ProductID        int64           `json:"product_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	Status           string          `json:"status"`
	ProductionStage  string          `json:"production_stage"`
	QualityStatus    string          `json:"quality_status"`
	DeliveryStatus   string          `json:"delivery_status"`
	AssignedWorkerID *int64          `json:"assigned_worker_id,omitempty"`
	EstimatedHours   decimal.Decimal `json:"estimated_hours"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	CompletedDate    *time.Time      `json:"completed_date,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewOrderResponse maps an order entity.
func NewOrderResponse(o *entity.Order) OrderResponse {
	return OrderResponse{
		ID:               o.ID,
		Number:           o.Number,
		ClientID:         o.ClientID,
		ProductID:        o.ProductID,
		Quantity:         o.Quantity,
		Status:           o.Status,
		ProductionStage:  o.ProductionStage,
		QualityStatus:    o.QualityStatus,
		DeliveryStatus:   o.DeliveryStatus,
		AssignedWorkerID: o.AssignedWorkerID,
		EstimatedHours:   o.EstimatedHours,
		TotalCost:        o.TotalCost,
		CompletedDate:    o.CompletedDate,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}
