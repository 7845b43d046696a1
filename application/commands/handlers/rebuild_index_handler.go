package handlers

import (
	"context"
	"errors"
	"fmt"

	"rndindex/application/commands"
	"rndindex/application/ports"
	"rndindex/application/services"
	apperrors "rndindex/pkg/errors"

	"go.uber.org/zap"
)

// RebuildIndexHandler handles index rebuild commands
type RebuildIndexHandler struct {
	rebuilder services.Rebuilder
	logger    *zap.Logger
}

// NewRebuildIndexHandler creates a new rebuild handler
func NewRebuildIndexHandler(rebuilder services.Rebuilder, logger *zap.Logger) *RebuildIndexHandler {
	return &RebuildIndexHandler{
		rebuilder: rebuilder,
		logger:    logger,
	}
}

// Handle executes the rebuild command. The run is synchronous; the published
// generation is visible to queries once Handle returns nil.
func (h *RebuildIndexHandler) Handle(ctx context.Context, cmd commands.RebuildIndexCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	generation, err := h.rebuilder.Rebuild(ctx, cmd.Trigger)
	switch {
	case err == nil:
		h.logger.Info("Index rebuilt",
			zap.String("trigger", cmd.Trigger),
			zap.Int64("generation", generation.ID),
		)
		return nil
	case errors.Is(err, ports.ErrLockHeld):
		return apperrors.NewConflictError("a rebuild is already running").WithCause(err)
	case errors.Is(err, services.ErrRebuildSuperseded):
		return apperrors.NewConflictError("rebuild superseded by a newer run").WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("rebuild").WithCause(err)
	default:
		return apperrors.NewInternalError(fmt.Sprintf("rebuild failed: %v", err)).WithCause(err)
	}
}
