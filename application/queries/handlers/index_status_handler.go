package handlers

import (
	"context"

	"rndindex/application/queries"
	"rndindex/application/services"
	"rndindex/pkg/utils"

	"go.uber.org/zap"
)

// IndexStatusSource reports the builder's published generation and last run
type IndexStatusSource interface {
	GenerationSource
	Status() services.RunStatus
	IsStale(ctx context.Context) (bool, error)
}

// IndexStatusHandler reports on the reference index
type IndexStatusHandler struct {
	builder IndexStatusSource
	logger  *zap.Logger
}

// NewIndexStatusHandler creates a new index status handler
func NewIndexStatusHandler(builder IndexStatusSource, logger *zap.Logger) *IndexStatusHandler {
	return &IndexStatusHandler{
		builder: builder,
		logger:  logger,
	}
}

// Handle executes the status query
func (h *IndexStatusHandler) Handle(ctx context.Context, query queries.IndexStatusQuery) (*queries.IndexStatusResult, error) {
	status := h.builder.Status()
	result := &queries.IndexStatusResult{
		LastRun: queries.RunInfo{
			RunID:        status.RunID,
			Trigger:      status.Trigger,
			State:        status.State,
			GenerationID: status.GenerationID,
			Error:        status.Error,
		},
	}
	if status.StartedAt != nil {
		result.LastRun.StartedAt = utils.FormatTimestamp(*status.StartedAt)
	}
	if status.FinishedAt != nil {
		result.LastRun.FinishedAt = utils.FormatTimestamp(*status.FinishedAt)
	}

	if g := h.builder.Current(); g != nil {
		result.Generation = &queries.GenerationInfo{
			ID:        g.ID,
			RunID:     g.RunID,
			BuiltAt:   utils.FormatTimestamp(g.BuiltAt),
			Watermark: g.Watermark,
			Checksum:  g.Checksum,
			Stats:     g.Stats(),
		}
	}

	stale, err := h.builder.IsStale(ctx)
	if err != nil {
		h.logger.Warn("Failed to check index staleness", zap.Error(err))
	}
	result.Stale = stale
	return result, nil
}
