package handlers

import (
	"net/http"

	"rndindex/application/commands"
	"rndindex/application/commands/bus"
	"rndindex/application/queries"
	querybus "rndindex/application/queries/bus"
	"rndindex/application/services"
	apperrors "rndindex/pkg/errors"

	"go.uber.org/zap"
)

// IndexHandler administers the reference index
type IndexHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *apperrors.ErrorHandler
	logger     *zap.Logger
}

// NewIndexHandler creates a new index handler
func NewIndexHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errorHandler *apperrors.ErrorHandler,
	logger *zap.Logger,
) *IndexHandler {
	return &IndexHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errorHandler,
		logger:     logger,
	}
}

// Rebuild handles POST /api/rnd/index/rebuild and answers with the new index status
func (h *IndexHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	cmd := commands.RebuildIndexCommand{Trigger: services.TriggerManual}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.Status(w, r)
}

// Status handles GET /api/rnd/index
func (h *IndexHandler) Status(w http.ResponseWriter, r *http.Request) {
	result, err := h.status(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, result)
}

// Ready reports whether a generation has been published
func (h *IndexHandler) Ready(w http.ResponseWriter, r *http.Request) {
	result, err := h.status(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if result.Generation == nil {
		respondJSON(w, h.logger, http.StatusServiceUnavailable, map[string]string{"status": "building"})
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"status":     "ready",
		"generation": result.Generation.ID,
	})
}

func (h *IndexHandler) status(r *http.Request) (*queries.IndexStatusResult, error) {
	raw, err := h.queryBus.Ask(r.Context(), queries.IndexStatusQuery{})
	if err != nil {
		return nil, err
	}
	result, ok := raw.(*queries.IndexStatusResult)
	if !ok {
		return nil, apperrors.NewInternalError("unexpected query result")
	}
	return result, nil
}
