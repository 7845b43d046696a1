package ports

import (
	"context"
	"errors"
	"math"
	"time"

	"rndindex/domain/core/entities"
	"rndindex/domain/core/valueobjects"
	"rndindex/domain/events"
)

// Latest reads the change log without an upper sequence bound
const Latest int64 = math.MaxInt64

// ChangeLogReader is the read side of the upstream change log.
// This is a port in hexagonal architecture - the engine never writes the log.
// Every read takes an upper sequence bound so a rebuild can pin a snapshot.
type ChangeLogReader interface {
	// Watermark returns the highest sequence number currently in the log
	Watermark(ctx context.Context) (int64, error)

	// ListObjects returns every object with at least one record at or below upTo
	ListObjects(ctx context.Context, upTo int64) ([]valueobjects.ObjectID, error)

	// GetChanges returns the records of one object at or below upTo, in log order
	GetChanges(ctx context.Context, id valueobjects.ObjectID, upTo int64) ([]entities.ChangeRecord, error)
}

// ChangeLogWriter appends to the change log. Only fixtures, seeding tools
// and tests use it; the engine itself is read-only.
type ChangeLogWriter interface {
	// Append stores records and assigns sequence numbers to those without one
	Append(ctx context.Context, records ...entities.ChangeRecord) error
}

// ChangeLogStore combines both sides of the change log
type ChangeLogStore interface {
	ChangeLogReader
	ChangeLogWriter
}

// ErrLockHeld is returned when another rebuild owns the rebuild lock
var ErrLockHeld = errors.New("rebuild lock is held by another run")

// Lock is a held rebuild lock
type Lock interface {
	// Release gives the lock up; releasing twice is a no-op
	Release(ctx context.Context) error
}

// RebuildLock serialises rebuild runs, possibly across processes
type RebuildLock interface {
	// Acquire takes the lock for ttl or fails with ErrLockHeld
	Acquire(ctx context.Context, owner string, ttl time.Duration) (Lock, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Metrics records rebuild and lookup measurements
type Metrics interface {
	RecordRebuild(ctx context.Context, duration time.Duration, objects, edges, dangling int)
	RecordRebuildFailure(ctx context.Context, reason string)
	RecordLookup(ctx context.Context, found bool, duration time.Duration)
}
