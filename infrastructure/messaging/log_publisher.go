// Package messaging holds event publishers that do not need a broker.
package messaging

import (
	"context"

	"rndindex/application/ports"
	"rndindex/domain/events"

	"go.uber.org/zap"
)

// LogPublisher writes domain events to the structured log
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a publisher for deployments without an event bus
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs a single event
func (p *LogPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.logger.Info("Domain event",
		zap.String("eventType", event.GetEventType()),
		zap.String("aggregateID", event.GetAggregateID()),
		zap.Time("timestamp", event.GetTimestamp()),
		zap.Any("event", event),
	)
	return nil
}

// PublishBatch logs every event
func (p *LogPublisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for _, event := range domainEvents {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

var _ ports.EventPublisher = (*LogPublisher)(nil)
