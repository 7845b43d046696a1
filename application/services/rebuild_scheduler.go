package services

import (
	"context"
	"errors"
	"time"

	"rndindex/application/ports"
	"rndindex/domain/graph"

	"go.uber.org/zap"
)

// Rebuilder runs one index rebuild
type Rebuilder interface {
	Rebuild(ctx context.Context, trigger string) (*graph.Generation, error)
}

// Rebuild triggers
const (
	TriggerStartup   = "startup"
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
	TriggerStale     = "stale"
)

// RebuildScheduler runs periodic batch rebuilds
type RebuildScheduler struct {
	rebuilder Rebuilder
	interval  time.Duration
	logger    *zap.Logger
}

// NewRebuildScheduler creates a scheduler; a non-positive interval only runs the startup rebuild
func NewRebuildScheduler(rebuilder Rebuilder, interval time.Duration, logger *zap.Logger) *RebuildScheduler {
	return &RebuildScheduler{
		rebuilder: rebuilder,
		interval:  interval,
		logger:    logger,
	}
}

// Run rebuilds once immediately and then on every tick until ctx is done
func (s *RebuildScheduler) Run(ctx context.Context) {
	s.runOnce(ctx, TriggerStartup)
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Rebuild scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx, TriggerScheduled)
		}
	}
}

func (s *RebuildScheduler) runOnce(ctx context.Context, trigger string) {
	_, err := s.rebuilder.Rebuild(ctx, trigger)
	switch {
	case err == nil:
	case errors.Is(err, ports.ErrLockHeld), errors.Is(err, ErrRebuildSuperseded):
		s.logger.Info("Scheduled rebuild skipped", zap.String("trigger", trigger), zap.Error(err))
	case ctx.Err() != nil:
	default:
		s.logger.Error("Scheduled rebuild failed", zap.String("trigger", trigger), zap.Error(err))
	}
}
