package order

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/shopfloor/internal/config"
	"github.com/Additional-Code/shopfloor/internal/messaging"
	ordersvc "github.com/Additional-Code/shopfloor/internal/service/order"
	"github.com/Additional-Code/shopfloor/internal/service/smartproduction"
	"github.com/Additional-Code/shopfloor/internal/worker"
	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/shopfloor/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		func(s *smartproduction.Service) ProductionStarter { return s },
		fx.Annotate(
			NewOrderCreatedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
		fx.Annotate(
			NewOrderCompletedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// ProductionStarter starts the stage machine for a new order.
type ProductionStarter interface {
	StartSmartProduction(ctx context.Context, orderID int64) (*smartproduction.StartResult, error)
}

// NewOrderCreatedHandler starts production for new orders when auto start is enabled.
func NewOrderCreatedHandler(logger *zap.Logger, cfg config.Config, starter ProductionStarter) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.created", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event ordersvc.OrderCreatedEvent
		if _, err := msg.Decode(&event); err != nil {
			logger.Error("failed to decode order created", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		span.SetAttributes(attribute.Int64("order.id", event.ID))

		if !cfg.Production.AutoStartOnCreate {
			logger.Info("order created event processed",
				zap.Int64("id", event.ID),
				zap.String("number", event.Number),
			)
			return nil
		}

		result, err := starter.StartSmartProduction(ctx, event.ID)
		if err != nil {
			// A redelivered event for an order that already started is done.
			switch errorbank.From(err).Kind() {
			case errorbank.KindConflict, errorbank.KindUnprocessableEntity, errorbank.KindNotFound:
				logger.Warn("skipping production auto start", zap.Int64("id", event.ID), zap.Error(err))
				return nil
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "start production failed")
			return err
		}

		logger.Info("production auto started",
			zap.Int64("id", event.ID),
			zap.String("stage", result.Stage),
			zap.Int("shortages", len(result.Shortages)),
		)
		return nil
	}

	return worker.HandlerRegistration{
		EventType: messaging.EventOrderCreated,
		Handler:   handler,
	}
}

// NewOrderCompletedHandler logs finished orders.
func NewOrderCompletedHandler(logger *zap.Logger) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		var event smartproduction.OrderCompletedEvent
		if _, err := msg.Decode(&event); err != nil {
			logger.Error("failed to decode order completed", zap.Error(err))
			return err
		}
		logger.Info("order completed", zap.Int64("id", event.OrderID))
		return nil
	}

	return worker.HandlerRegistration{
		EventType: messaging.EventOrderCompleted,
		Handler:   handler,
	}
}
