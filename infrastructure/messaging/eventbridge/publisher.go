package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"rndindex/application/ports"
	"rndindex/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// Source is the EventBridge source of every index event
const Source = "rndindex.reference-graph"

// PutEventsAPI is the subset of the EventBridge client the publisher uses
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher implements the EventPublisher port using AWS EventBridge
type Publisher struct {
	client       PutEventsAPI
	eventBusName string
	logger       *zap.Logger
}

// NewPublisher creates a new EventBridge publisher
func NewPublisher(client PutEventsAPI, eventBusName string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
	}
}

// Publish sends a single event to EventBridge
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends multiple events to EventBridge
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	// EventBridge limits to 10 events per PutEvents call
	const batchSize = 10

	for i := 0; i < len(domainEvents); i += batchSize {
		end := i + batchSize
		if end > len(domainEvents) {
			end = len(domainEvents)
		}
		if err := p.publishBatch(ctx, domainEvents[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// publishBatch publishes a batch of events (max 10)
func (p *Publisher) publishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(domainEvents))
	published := make([]events.DomainEvent, 0, len(domainEvents))

	for _, event := range domainEvents {
		eventData, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("Failed to marshal event",
				zap.Error(err),
				zap.String("eventType", event.GetEventType()),
			)
			continue
		}

		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(Source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(eventData)),
			Time:         aws.Time(event.GetTimestamp()),
			Resources:    []string{fmt.Sprintf("rndindex:run/%s", event.GetAggregateID())},
		})
		published = append(published, event)
	}

	if len(entries) == 0 {
		return nil
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to publish events to EventBridge: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil && i < len(published) {
				p.logger.Error("Failed to publish event",
					zap.String("eventType", published[i].GetEventType()),
					zap.String("errorCode", aws.ToString(entry.ErrorCode)),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d events failed to publish", result.FailedEntryCount)
	}

	p.logger.Debug("Events published to EventBridge",
		zap.Int("count", len(entries)),
		zap.String("eventBus", p.eventBusName),
	)
	return nil
}

var _ ports.EventPublisher = (*Publisher)(nil)
