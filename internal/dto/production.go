package dto

import "github.com/shopspring/decimal"

// NextStageRequest is the payload of POST /orders/:id/stages/next.
type NextStageRequest struct {
	CompletedHours *decimal.Decimal `json:"completed_hours"`
}

// NextStageResponse reports whether the order moved.
type NextStageResponse struct {
	Moved bool          `json:"moved"`
	Order OrderResponse `json:"order"`
}

// StartStageRequest is the payload of POST /trackings/:id/start.
type StartStageRequest struct {
	WorkerID  *int64 `json:"worker_id" validate:"omitempty,gt=0"`
	StationID *int64 `json:"station_id" validate:"omitempty,gt=0"`
}

// UsageLine is one material consumption entry.
type UsageLine struct {
	MaterialID int64           `json:"material_id" validate:"required,gt=0"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// UsageRequest is the payload of POST .../materials/usage.
type UsageRequest struct {
	Materials []UsageLine `json:"materials" validate:"required,min=1,dive"`
}

// Quantities keys the usage lines by material.
func (r UsageRequest) Quantities() map[int64]decimal.Decimal {
	out := make(map[int64]decimal.Decimal, len(r.Materials))
	for _, l := range r.Materials {
		out[l.MaterialID] = out[l.MaterialID].Add(l.Quantity)
	}
	return out
}
