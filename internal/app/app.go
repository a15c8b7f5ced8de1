package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/shopfloor/internal/biometric"
	"github.com/Additional-Code/shopfloor/internal/cache"
	"github.com/Additional-Code/shopfloor/internal/config"
	"github.com/Additional-Code/shopfloor/internal/database"
	"github.com/Additional-Code/shopfloor/internal/logger"
	"github.com/Additional-Code/shopfloor/internal/messaging"
	"github.com/Additional-Code/shopfloor/internal/observability"
	"github.com/Additional-Code/shopfloor/internal/production/stage"
	repositoryinventory "github.com/Additional-Code/shopfloor/internal/repository/inventory"
	repositoryorder "github.com/Additional-Code/shopfloor/internal/repository/order"
	repositoryplugin "github.com/Additional-Code/shopfloor/internal/repository/plugin"
	repositoryproduct "github.com/Additional-Code/shopfloor/internal/repository/product"
	repositoryproduction "github.com/Additional-Code/shopfloor/internal/repository/production"
	repositoryworker "github.com/Additional-Code/shopfloor/internal/repository/worker"
	grpcserver "github.com/Additional-Code/shopfloor/internal/server/grpc"
	httpserver "github.com/Additional-Code/shopfloor/internal/server/http"
	serviceinventory "github.com/Additional-Code/shopfloor/internal/service/inventory"
	serviceorder "github.com/Additional-Code/shopfloor/internal/service/order"
	serviceplugin "github.com/Additional-Code/shopfloor/internal/service/plugin"
	serviceproduction "github.com/Additional-Code/shopfloor/internal/service/production"
	servicesmartproduction "github.com/Additional-Code/shopfloor/internal/service/smartproduction"
	serviceworkersync "github.com/Additional-Code/shopfloor/internal/service/workersync"
	serviceworkforce "github.com/Additional-Code/shopfloor/internal/service/workforce"
	transporthttp "github.com/Additional-Code/shopfloor/internal/transport/http"
	"github.com/Additional-Code/shopfloor/internal/worker"
	workerorder "github.com/Additional-Code/shopfloor/internal/worker/order"
)

// Infra provides configuration, logging, storage and telemetry without domain services.
var Infra = fx.Options(
	config.Module,
	logger.Module,
	database.Module,
	observability.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Infra,
	cache.Module,
	messaging.Module,
	stage.Module,
	biometric.Module,
	repositoryinventory.Module,
	repositoryorder.Module,
	repositoryplugin.Module,
	repositoryproduct.Module,
	repositoryproduction.Module,
	repositoryworker.Module,
	serviceinventory.Module,
	serviceorder.Module,
	serviceplugin.Module,
	serviceproduction.Module,
	servicesmartproduction.Module,
	serviceworkersync.Module,
	serviceworkforce.Module,
)

// HTTP wires the HTTP and gRPC transports on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// All runs the transports and the worker in one process, for the in-memory bus.
var All = fx.Options(
	HTTP,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP and gRPC).
var Module = HTTP
