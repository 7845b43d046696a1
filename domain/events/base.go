package events

import (
	"time"

	"rndindex/domain/graph"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

const (
	TypeRebuildStarted   = "index.rebuild_started"
	TypeIndexPublished   = "index.published"
	TypeRebuildFailed    = "index.rebuild_failed"
	TypeRebuildDiscarded = "index.rebuild_discarded"
)

// Index Events

// RebuildStarted is raised when a rebuild run acquires the rebuild lock
type RebuildStarted struct {
	BaseEvent
	RunID     string `json:"run_id"`
	Trigger   string `json:"trigger"`
	Watermark int64  `json:"watermark"`
}

// NewRebuildStarted creates a RebuildStarted event
func NewRebuildStarted(runID, trigger string, watermark int64, timestamp time.Time) RebuildStarted {
	return RebuildStarted{
		BaseEvent: BaseEvent{
			AggregateID: runID,
			EventType:   TypeRebuildStarted,
			Timestamp:   timestamp,
			Version:     1,
		},
		RunID:     runID,
		Trigger:   trigger,
		Watermark: watermark,
	}
}

// IndexPublished is raised when a new generation becomes visible to lookups
type IndexPublished struct {
	BaseEvent
	RunID        string      `json:"run_id"`
	GenerationID int64       `json:"generation_id"`
	Checksum     string      `json:"checksum"`
	Watermark    int64       `json:"watermark"`
	Stats        graph.Stats `json:"stats"`
	DurationMs   int64       `json:"duration_ms"`
}

// NewIndexPublished creates an IndexPublished event
func NewIndexPublished(g *graph.Generation, duration time.Duration, timestamp time.Time) IndexPublished {
	return IndexPublished{
		BaseEvent: BaseEvent{
			AggregateID: g.RunID,
			EventType:   TypeIndexPublished,
			Timestamp:   timestamp,
			Version:     1,
		},
		RunID:        g.RunID,
		GenerationID: g.ID,
		Checksum:     g.Checksum,
		Watermark:    g.Watermark,
		Stats:        g.Stats(),
		DurationMs:   duration.Milliseconds(),
	}
}

// RebuildFailed is raised when a run aborts; the previous generation stays active
type RebuildFailed struct {
	BaseEvent
	RunID  string `json:"run_id"`
	Reason string `json:"reason"`
}

// NewRebuildFailed creates a RebuildFailed event
func NewRebuildFailed(runID string, reason error, timestamp time.Time) RebuildFailed {
	return RebuildFailed{
		BaseEvent: BaseEvent{
			AggregateID: runID,
			EventType:   TypeRebuildFailed,
			Timestamp:   timestamp,
			Version:     1,
		},
		RunID:  runID,
		Reason: reason.Error(),
	}
}

// RebuildDiscarded is raised when a finished run lost the race to a newer generation
type RebuildDiscarded struct {
	BaseEvent
	RunID        string `json:"run_id"`
	GenerationID int64  `json:"generation_id"`
}

// NewRebuildDiscarded creates a RebuildDiscarded event
func NewRebuildDiscarded(runID string, generationID int64, timestamp time.Time) RebuildDiscarded {
	return RebuildDiscarded{
		BaseEvent: BaseEvent{
			AggregateID: runID,
			EventType:   TypeRebuildDiscarded,
			Timestamp:   timestamp,
			Version:     1,
		},
		RunID:        runID,
		GenerationID: generationID,
	}
}
