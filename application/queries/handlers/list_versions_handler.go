package handlers

import (
	"context"
	"strings"

	"rndindex/application/ports"
	"rndindex/application/queries"
	"rndindex/domain/core/entities"
	"rndindex/domain/versioning"

	"go.uber.org/zap"
)

// ListVersionsHandler lists the versions of an object's latest lifetime
type ListVersionsHandler struct {
	changeLog ports.ChangeLogReader
	histories *versioning.Builder
	source    string
	logger    *zap.Logger
}

// NewListVersionsHandler creates a new version listing handler
func NewListVersionsHandler(
	changeLog ports.ChangeLogReader,
	histories *versioning.Builder,
	source string,
	logger *zap.Logger,
) *ListVersionsHandler {
	return &ListVersionsHandler{
		changeLog: changeLog,
		histories: histories,
		source:    strings.ToUpper(source),
		logger:    logger,
	}
}

// Handle executes the version listing
func (h *ListVersionsHandler) Handle(ctx context.Context, query queries.ListVersionsQuery) (*queries.ListVersionsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	notFound := &queries.ListVersionsResult{
		NotFound: true,
		Messages: []entities.Message{entities.NewNoObjectMessage(query.Key)},
	}
	if !strings.EqualFold(query.Source, h.source) {
		return notFound, nil
	}

	history, err := loadHistory(ctx, h.changeLog, h.histories, query.ObjectType, query.Key)
	if err != nil {
		return nil, err
	}
	if history == nil {
		return notFound, nil
	}

	current := history.Current()
	result := &queries.ListVersionsResult{
		Type:       string(history.Object.Type),
		PrimaryKey: current[len(current)-1].Ref.Key,
		Source:     h.source,
		Deleted:    history.Deleted(),
		Versions:   make([]queries.VersionInfo, 0, len(current)),
	}
	for _, v := range current {
		result.Versions = append(result.Versions, queries.NewVersionInfo(h.source, v))
	}

	h.logger.Debug("Listed versions",
		zap.String("object", history.Object.String()),
		zap.Int("versions", len(result.Versions)),
		zap.Int("lifetimes", len(history.Lifetimes)),
	)
	return result, nil
}
