package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"rndindex/application/queries"
	querybus "rndindex/application/queries/bus"
	apperrors "rndindex/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// VersionHandler serves historical object versions and their references
type VersionHandler struct {
	queryBus *querybus.QueryBus
	errors   *apperrors.ErrorHandler
	logger   *zap.Logger
}

// NewVersionHandler creates a new version handler
func NewVersionHandler(
	queryBus *querybus.QueryBus,
	errorHandler *apperrors.ErrorHandler,
	logger *zap.Logger,
) *VersionHandler {
	return &VersionHandler{
		queryBus: queryBus,
		errors:   errorHandler,
		logger:   logger,
	}
}

// GetVersion handles GET /api/rnd/{source}/{objectType}/{key}/versions/{version}
func (h *VersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		// a malformed version number is just a version that does not exist
		result := queries.NotFoundResult(key)
		respondJSON(w, h.logger, http.StatusNotFound, result)
		return
	}

	query := queries.GetVersionQuery{
		Source:     chi.URLParam(r, "source"),
		ObjectType: chi.URLParam(r, "objectType"),
		Key:        key,
		Version:    version,
	}

	raw, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.logger.Error("Failed to get version",
			zap.String("objectType", query.ObjectType),
			zap.String("key", query.Key),
			zap.Int("version", query.Version),
			zap.Error(err),
		)
		h.errors.Handle(w, r, err)
		return
	}

	result, ok := raw.(*queries.GetVersionResult)
	if !ok {
		h.errors.HandleStatus(w, r, http.StatusInternalServerError, "Unexpected query result")
		return
	}

	respondJSON(w, h.logger, apperrors.StatusOf(result.Err()), result)
}

// ListVersions handles GET /api/rnd/{source}/{objectType}/{key}/versions
func (h *VersionHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	query := queries.ListVersionsQuery{
		Source:     chi.URLParam(r, "source"),
		ObjectType: chi.URLParam(r, "objectType"),
		Key:        chi.URLParam(r, "key"),
	}

	raw, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.logger.Error("Failed to list versions",
			zap.String("objectType", query.ObjectType),
			zap.String("key", query.Key),
			zap.Error(err),
		)
		h.errors.Handle(w, r, err)
		return
	}

	result, ok := raw.(*queries.ListVersionsResult)
	if !ok {
		h.errors.HandleStatus(w, r, http.StatusInternalServerError, "Unexpected query result")
		return
	}

	respondJSON(w, h.logger, apperrors.StatusOf(result.Err()), result)
}

// respondJSON writes data as the JSON body with the given status
func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
