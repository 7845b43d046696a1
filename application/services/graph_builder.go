package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rndindex/application/ports"
	"rndindex/domain/core/entities"
	"rndindex/domain/core/valueobjects"
	"rndindex/domain/events"
	"rndindex/domain/graph"
	"rndindex/domain/references"
	"rndindex/domain/versioning"
	"rndindex/pkg/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrRebuildSuperseded is returned by a run that a newer run cancelled
var ErrRebuildSuperseded = errors.New("rebuild superseded by a newer run")

// Run states reported by the builder
const (
	RunStateIdle       = "idle"
	RunStateRunning    = "running"
	RunStateSucceeded  = "succeeded"
	RunStateFailed     = "failed"
	RunStateSuperseded = "superseded"
)

// RunStatus describes the most recent rebuild run
type RunStatus struct {
	RunID        string     `json:"runId,omitempty"`
	Trigger      string     `json:"trigger,omitempty"`
	State        string     `json:"state"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	GenerationID int64      `json:"generationId,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// BuilderOptions tunes a ReferenceGraphBuilder
type BuilderOptions struct {
	Concurrency int
	LockTTL     time.Duration
}

// ReferenceGraphBuilder rebuilds the reference graph from the change log and
// publishes it as a new generation. Only one run is active per process; a new
// run cancels the one in flight, and the rebuild lock keeps runs in other
// processes out.
type ReferenceGraphBuilder struct {
	changeLog ports.ChangeLogReader
	histories *versioning.Builder
	extractor *references.Extractor
	publisher *graph.Publisher
	lock      ports.RebuildLock
	events    ports.EventPublisher
	metrics   ports.Metrics
	tracer    *observability.Tracer
	logger    *zap.Logger
	opts      BuilderOptions
	now       func() time.Time

	runMu sync.Mutex

	cancelMu sync.Mutex
	inFlight *runHandle

	statusMu sync.RWMutex
	status   RunStatus
}

type runHandle struct {
	cancel     context.CancelFunc
	superseded bool
}

// NewReferenceGraphBuilder creates a new builder
func NewReferenceGraphBuilder(
	changeLog ports.ChangeLogReader,
	histories *versioning.Builder,
	extractor *references.Extractor,
	publisher *graph.Publisher,
	lock ports.RebuildLock,
	eventPublisher ports.EventPublisher,
	metrics ports.Metrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
	opts BuilderOptions,
) *ReferenceGraphBuilder {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 15 * time.Minute
	}
	return &ReferenceGraphBuilder{
		changeLog: changeLog,
		histories: histories,
		extractor: extractor,
		publisher: publisher,
		lock:      lock,
		events:    eventPublisher,
		metrics:   metrics,
		tracer:    tracer,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
		status:    RunStatus{State: RunStateIdle},
	}
}

// Status returns the state of the most recent run
func (b *ReferenceGraphBuilder) Status() RunStatus {
	b.statusMu.RLock()
	defer b.statusMu.RUnlock()
	return b.status
}

// Current returns the published generation, or nil before the first successful run
func (b *ReferenceGraphBuilder) Current() *graph.Generation {
	return b.publisher.Current()
}

// IsStale reports whether the change log moved past the published generation
func (b *ReferenceGraphBuilder) IsStale(ctx context.Context) (bool, error) {
	current := b.publisher.Current()
	watermark, err := b.changeLog.Watermark(ctx)
	if err != nil {
		return false, err
	}
	return current == nil || watermark > current.Watermark, nil
}

// Rebuild computes a new generation from a snapshot of the change log and
// publishes it atomically. On failure the previous generation stays active.
func (b *ReferenceGraphBuilder) Rebuild(ctx context.Context, trigger string) (*graph.Generation, error) {
	runCtx, handle := b.supersede(ctx)
	defer b.finish(handle)

	b.runMu.Lock()
	defer b.runMu.Unlock()

	if runCtx.Err() != nil {
		return nil, b.cancellationError(ctx, handle)
	}

	runID := uuid.NewString()
	lock, err := b.lock.Acquire(runCtx, runID, b.opts.LockTTL)
	if err != nil {
		if errors.Is(err, ports.ErrLockHeld) {
			b.logger.Info("Rebuild skipped, lock held elsewhere", zap.String("trigger", trigger))
			return nil, err
		}
		return nil, fmt.Errorf("failed to acquire rebuild lock: %w", err)
	}
	defer func() {
		// the run context may already be cancelled; release regardless
		if err := lock.Release(context.Background()); err != nil {
			b.logger.Warn("Failed to release rebuild lock", zap.String("runID", runID), zap.Error(err))
		}
	}()

	started := b.now()
	b.setStatus(RunStatus{RunID: runID, Trigger: trigger, State: RunStateRunning, StartedAt: &started})
	b.logger.Info("Rebuild started", zap.String("runID", runID), zap.String("trigger", trigger))

	var generation *graph.Generation
	err = b.tracer.TraceFunction(runCtx, "RebuildIndex", func(ctx context.Context) error {
		b.tracer.AddAnnotation(ctx, "runID", runID)
		var buildErr error
		generation, buildErr = b.build(ctx, runID, trigger)
		return buildErr
	})
	finished := b.now()

	if err != nil {
		state := RunStateFailed
		if runCtx.Err() != nil {
			err = b.cancellationError(ctx, handle)
			if errors.Is(err, ErrRebuildSuperseded) {
				state = RunStateSuperseded
			}
		}
		b.setStatus(RunStatus{RunID: runID, Trigger: trigger, State: state, StartedAt: &started, FinishedAt: &finished, Error: err.Error()})
		b.metrics.RecordRebuildFailure(context.Background(), state)
		b.publish(events.NewRebuildFailed(runID, err, finished))
		b.logger.Error("Rebuild failed, previous generation stays active",
			zap.String("runID", runID),
			zap.String("state", state),
			zap.Error(err),
		)
		return nil, err
	}

	duration := finished.Sub(started)
	if !b.publisher.Publish(generation) {
		b.publish(events.NewRebuildDiscarded(runID, generation.ID, finished))
		b.logger.Warn("Generation discarded, a newer one is already active",
			zap.String("runID", runID),
			zap.Int64("generation", generation.ID),
		)
	} else {
		b.publish(events.NewIndexPublished(generation, duration, finished))
	}

	stats := generation.Stats()
	b.metrics.RecordRebuild(context.Background(), duration, stats.Objects, stats.Edges, stats.DanglingReferences)
	b.setStatus(RunStatus{
		RunID:        runID,
		Trigger:      trigger,
		State:        RunStateSucceeded,
		StartedAt:    &started,
		FinishedAt:   &finished,
		GenerationID: generation.ID,
	})
	b.logger.Info("Rebuild completed",
		zap.String("runID", runID),
		zap.Int64("generation", generation.ID),
		zap.String("checksum", generation.Checksum),
		zap.Int("objects", stats.Objects),
		zap.Int("edges", stats.Edges),
		zap.Int("dangling", stats.DanglingReferences),
		zap.Duration("duration", duration),
	)
	return generation, nil
}

// supersede cancels the run in flight and registers a new one
func (b *ReferenceGraphBuilder) supersede(ctx context.Context) (context.Context, *runHandle) {
	runCtx, cancel := context.WithCancel(ctx)
	handle := &runHandle{cancel: cancel}

	b.cancelMu.Lock()
	defer b.cancelMu.Unlock()
	if b.inFlight != nil {
		b.inFlight.superseded = true
		b.inFlight.cancel()
	}
	b.inFlight = handle
	return runCtx, handle
}

func (b *ReferenceGraphBuilder) finish(handle *runHandle) {
	b.cancelMu.Lock()
	defer b.cancelMu.Unlock()
	if b.inFlight == handle {
		b.inFlight = nil
	}
	handle.cancel()
}

func (b *ReferenceGraphBuilder) cancellationError(parent context.Context, handle *runHandle) error {
	b.cancelMu.Lock()
	superseded := handle.superseded
	b.cancelMu.Unlock()
	if superseded && parent.Err() == nil {
		return ErrRebuildSuperseded
	}
	if err := parent.Err(); err != nil {
		return fmt.Errorf("rebuild cancelled: %w", err)
	}
	return context.Canceled
}

func (b *ReferenceGraphBuilder) build(ctx context.Context, runID, trigger string) (*graph.Generation, error) {
	watermark, err := b.changeLog.Watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read change log watermark: %w", err)
	}
	b.publish(events.NewRebuildStarted(runID, trigger, watermark, b.now()))

	ids, err := b.changeLog.ListObjects(ctx, watermark)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	histories, err := b.loadHistories(ctx, ids, watermark)
	if err != nil {
		return nil, err
	}

	gb := graph.NewGenerationBuilder()
	for _, h := range histories {
		gb.AddObject(h.Object, h.All())
	}

	byID := make(map[valueobjects.ObjectID]*versioning.History, len(histories))
	for _, h := range histories {
		byID[h.Object] = h
	}

	for _, h := range histories {
		// checkpoint: one object's full history at a time
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, v := range h.All() {
			b.addEdges(gb, byID, h.Object.Type, v)
		}
	}

	return gb.Seal(b.publisher.NextID(), runID, b.now().UTC(), watermark), nil
}

// loadHistories reads and sequences every object of the snapshot concurrently
func (b *ReferenceGraphBuilder) loadHistories(ctx context.Context, ids []valueobjects.ObjectID, watermark int64) ([]*versioning.History, error) {
	histories := make([]*versioning.History, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records, err := b.changeLog.GetChanges(gctx, id, watermark)
			if err != nil {
				return fmt.Errorf("failed to read changes for %s: %w", id, err)
			}
			h, err := b.histories.Build(id, records)
			if err != nil {
				return err
			}
			histories[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// objects whose records all sit above the watermark have empty histories
	out := histories[:0]
	for _, h := range histories {
		if !h.IsEmpty() {
			out = append(out, h)
		}
	}
	return out, nil
}

// addEdges resolves each candidate of v against the target's state at v's start.
// Polymorphic candidates take the first target type that resolves; candidates
// that resolve to nothing are counted as dangling and dropped.
func (b *ReferenceGraphBuilder) addEdges(
	gb *graph.GenerationBuilder,
	histories map[valueobjects.ObjectID]*versioning.History,
	sourceType valueobjects.ObjectType,
	v entities.ObjectVersion,
) {
	for _, candidate := range b.extractor.Extract(sourceType, v.Attributes) {
		resolved := false
		for _, target := range candidate.TargetIDs() {
			th, ok := histories[target]
			if !ok {
				continue
			}
			tv, ok := th.VersionAt(v.ValidFrom)
			if !ok {
				continue
			}
			gb.AddEdge(entities.ReferenceEdge{Source: v.Ref, Target: tv.Ref, Attribute: candidate.Attribute})
			resolved = true
			break
		}
		if !resolved {
			gb.AddDangling(1)
		}
	}
}

func (b *ReferenceGraphBuilder) setStatus(status RunStatus) {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()
	b.status = status
}

func (b *ReferenceGraphBuilder) publish(event events.DomainEvent) {
	if err := b.events.Publish(context.Background(), event); err != nil {
		b.logger.Warn("Failed to publish index event",
			zap.String("eventType", event.GetEventType()),
			zap.Error(err),
		)
	}
}
