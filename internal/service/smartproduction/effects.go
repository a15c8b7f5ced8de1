package smartproduction

import (
	"context"
	"time"

	"github.com/Additional-Code/shopfloor/internal/entity"
	"github.com/Additional-Code/shopfloor/internal/production/stage"
)

// effect mutates the order when it enters a stage. It runs inside the
// transition's transaction.
type effect func(ctx context.Context, s *Service, order *entity.Order, at time.Time) error

// effects is keyed by the stage being entered. Stages without an entry only
// move production_stage.
var effects = map[stage.Name]effect{
	stage.QualityCheck: func(_ context.Context, _ *Service, order *entity.Order, _ time.Time) error {
		order.QualityStatus = entity.QualityStatusPending
		return nil
	},
	stage.ReadyForDelivery: func(_ context.Context, _ *Service, order *entity.Order, _ time.Time) error {
		order.DeliveryStatus = entity.DeliveryStatusReady
		order.QualityStatus = entity.QualityStatusApproved
		return nil
	},
	stage.Completed: completeOrder,
}

func (s *Service) effectFor(n stage.Name) effect {
	if fn, ok := effects[n]; ok {
		return fn
	}
	if s.seq.IsFinal(n) {
		return completeOrder
	}
	return nil
}

// completeOrder closes the order and books its sale once.
func completeOrder(ctx context.Context, s *Service, order *entity.Order, at time.Time) error {
	order.Status = entity.OrderStatusCompleted
	order.CompletedDate = &at
	order.DeliveryStatus = entity.DeliveryStatusDelivered

	exists, err := s.orders.SaleExists(ctx, order.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.orders.CreateSale(ctx, &entity.Sale{
		OrderID:   order.ID,
		ClientID:  order.ClientID,
		Amount:    order.TotalCost,
		Status:    entity.SaleStatusCompleted,
		SoldAt:    at,
		CreatedAt: at,
	})
}
