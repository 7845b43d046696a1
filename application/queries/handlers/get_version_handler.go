package handlers

import (
	"context"
	"strings"
	"time"

	"rndindex/application/ports"
	"rndindex/application/queries"
	"rndindex/domain/core/entities"
	"rndindex/domain/core/valueobjects"
	"rndindex/domain/graph"
	"rndindex/domain/versioning"
	apperrors "rndindex/pkg/errors"
	"rndindex/pkg/utils"

	"go.uber.org/zap"
)

// GenerationSource exposes the currently published reference graph
type GenerationSource interface {
	Current() *graph.Generation
}

// GetVersionHandler assembles a single-version lookup. Versions are read live
// from the change log; edges come from the generation captured at the start
// of the request.
type GetVersionHandler struct {
	changeLog   ports.ChangeLogReader
	histories   *versioning.Builder
	generations GenerationSource
	source      string
	metrics     ports.Metrics
	logger      *zap.Logger
}

// NewGetVersionHandler creates a new version lookup handler
func NewGetVersionHandler(
	changeLog ports.ChangeLogReader,
	histories *versioning.Builder,
	generations GenerationSource,
	source string,
	metrics ports.Metrics,
	logger *zap.Logger,
) *GetVersionHandler {
	return &GetVersionHandler{
		changeLog:   changeLog,
		histories:   histories,
		generations: generations,
		source:      strings.ToUpper(source),
		metrics:     metrics,
		logger:      logger,
	}
}

// Handle executes the version lookup
func (h *GetVersionHandler) Handle(ctx context.Context, query queries.GetVersionQuery) (*queries.GetVersionResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := h.lookup(ctx, query)
	if err != nil {
		return nil, err
	}
	h.metrics.RecordLookup(ctx, !result.NotFound, time.Since(start))
	return result, nil
}

func (h *GetVersionHandler) lookup(ctx context.Context, query queries.GetVersionQuery) (*queries.GetVersionResult, error) {
	// one generation serves the whole request even if a rebuild publishes meanwhile
	g := h.generations.Current()

	if !strings.EqualFold(query.Source, h.source) {
		return queries.NotFoundResult(query.Key), nil
	}

	history, err := loadHistory(ctx, h.changeLog, h.histories, query.ObjectType, query.Key)
	if err != nil {
		return nil, err
	}
	if history == nil {
		return queries.NotFoundResult(query.Key), nil
	}

	version, ok := history.Version(query.Version)
	if !ok {
		return queries.NotFoundResult(query.Key), nil
	}

	info := queries.NewVersionInfo(h.source, version)
	result := &queries.GetVersionResult{
		Object: &queries.ObjectData{
			Type:       string(version.Ref.Type),
			PrimaryKey: version.Ref.Key,
			Source:     h.source,
			Attributes: entities.CopyAttributes(version.Attributes),
		},
		Version: &info,
	}
	if version.CollisionCount > 1 {
		result.Messages = append(result.Messages, entities.NewCollisionMessage(version.CollisionCount))
	}

	if g == nil {
		return result, nil
	}
	result.Generation = g.ID

	span, indexed := g.Span(version.Ref)
	if !indexed || !span.SameContent(version) {
		h.logger.Debug("Version not covered by published generation",
			zap.String("version", version.Ref.String()),
			zap.Int64("generation", g.ID),
		)
		return result, nil
	}

	result.Indexed = true
	result.Outgoing = groupReferences(h.source, g, g.Outgoing(version.Ref), func(e entities.ReferenceEdge) valueobjects.VersionRef {
		return e.Target
	})
	result.Incoming = groupReferences(h.source, g, g.Incoming(version.Ref), func(e entities.ReferenceEdge) valueobjects.VersionRef {
		return e.Source
	})
	return result, nil
}

// loadHistory builds the live history of one object. A nil history means the
// object is unknown.
func loadHistory(
	ctx context.Context,
	changeLog ports.ChangeLogReader,
	histories *versioning.Builder,
	objectType, key string,
) (*versioning.History, error) {
	id, err := valueobjects.NewObjectID(objectType, key)
	if err != nil {
		return nil, nil
	}

	records, err := changeLog.GetChanges(ctx, id, ports.Latest)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get changes", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	history, err := histories.Build(id, records)
	if err != nil {
		return nil, apperrors.NewInternalError("build history").WithCause(err)
	}
	if history.IsEmpty() {
		return nil, nil
	}
	return history, nil
}

// groupReferences merges edges pointing at the same version into one
// reference carrying every attribute name, keeping edge order. Versions of a
// superseded lifetime get no link.
func groupReferences(
	source string,
	g *graph.Generation,
	edges []entities.ReferenceEdge,
	other func(entities.ReferenceEdge) valueobjects.VersionRef,
) []queries.VersionReference {
	if len(edges) == 0 {
		return nil
	}

	index := make(map[valueobjects.VersionRef]int, len(edges))
	var refs []queries.VersionReference
	for _, edge := range edges {
		ref := other(edge)
		if i, ok := index[ref]; ok {
			refs[i].Attributes = appendUnique(refs[i].Attributes, edge.Attribute)
			continue
		}

		reference := queries.VersionReference{
			Type:       string(ref.Type),
			Key:        ref.Key,
			Lifetime:   ref.Lifetime,
			Revision:   ref.Version,
			Attributes: []string{edge.Attribute},
		}
		// lookups address the latest lifetime only
		if latest, ok := g.LatestLifetime(ref.ObjectID()); !ok || latest == ref.Lifetime {
			reference.Link = queries.VersionLink(source, ref)
		}
		if span, ok := g.Span(ref); ok {
			reference.From = utils.FormatTimestamp(span.ValidFrom)
			if span.ValidTo != nil {
				reference.To = utils.FormatTimestamp(*span.ValidTo)
			}
		}
		index[ref] = len(refs)
		refs = append(refs, reference)
	}
	return refs
}

func appendUnique(values []string, value string) []string {
	for _, v := range values {
		if v == value {
			return values
		}
	}
	return append(values, value)
}
