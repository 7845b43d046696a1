package di

import (
	"rndindex/application/commands/bus"
	"rndindex/application/ports"
	querybus "rndindex/application/queries/bus"
	"rndindex/application/services"
	"rndindex/infrastructure/config"
	"rndindex/pkg/observability"
	"rndindex/pkg/ratelimit"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	Logger         *zap.Logger
	ChangeLog      ports.ChangeLogStore
	Lock           ports.RebuildLock
	Events         ports.EventPublisher
	Metrics        ports.Metrics
	Tracer         *observability.Tracer
	Builder        *services.ReferenceGraphBuilder
	Scheduler      *services.RebuildScheduler
	RebuildLimiter ratelimit.Limiter
	CommandBus     *bus.CommandBus
	QueryBus       *querybus.QueryBus
}
